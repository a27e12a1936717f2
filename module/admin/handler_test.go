package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"RTChat/service/broker"
	"RTChat/service/chat"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopBroker struct{}

func (nopBroker) Publish(context.Context, string, []byte) error { return nil }

func (nopBroker) Subscribe(context.Context, ...string) (<-chan broker.Message, error) {
	return make(chan broker.Message), nil
}

func (nopBroker) Close() error { return nil }

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	srv := chat.NewServer(chat.Config{GatewayID: "gw-test"}, nil, nil, nopBroker{}, nil)
	r := gin.New()
	NewHandler(srv).Register(r.Group("/admin"))
	return r
}

func do(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestStatsEmpty(t *testing.T) {
	w := do(newRouter(), http.MethodGet, "/admin/stats", "")
	require.Equal(t, http.StatusOK, w.Code)

	var st chat.Stats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	assert.Zero(t, st.TotalConnections)
	assert.Zero(t, st.TotalChannels)
}

func TestNewMessageRequiresChannel(t *testing.T) {
	w := do(newRouter(), http.MethodPost, "/admin/messages", `{"data":{"content":"hi"}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestNewMessageAccepted(t *testing.T) {
	w := do(newRouter(), http.MethodPost, "/admin/messages",
		`{"channel_id":"c1","data":{"content":"hi","sender_id":7}}`)
	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestInvalidBody(t *testing.T) {
	w := do(newRouter(), http.MethodPost, "/admin/messages", `{broken`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMessageDeletedRequiresIDs(t *testing.T) {
	r := newRouter()
	w := do(r, http.MethodPost, "/admin/messages/deleted", `{"channel_id":"c1"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/admin/messages/deleted", `{"channel_id":"c1","message_id":"m1"}`)
	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestMentionRequiresUser(t *testing.T) {
	r := newRouter()
	w := do(r, http.MethodPost, "/admin/mentions", `{"data":{}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/admin/mentions", `{"user_id":"u1","data":{"message_id":"m1"}}`)
	require.Equal(t, http.StatusAccepted, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, false, resp["delivered_locally"], "nobody is connected")
}

func TestForceDisconnectAbsentUser(t *testing.T) {
	w := do(newRouter(), http.MethodPost, "/admin/force-disconnect", `{"user_id":"ghost"}`)
	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestPresenceUnknownUser(t *testing.T) {
	w := do(newRouter(), http.MethodGet, "/admin/presence/ghost", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, false, resp["online"])
	assert.NotContains(t, resp, "last_transition")
}

func TestChannelCreated(t *testing.T) {
	w := do(newRouter(), http.MethodPost, "/admin/channels/created",
		`{"data":{"id":"c9","name":"general"}}`)
	assert.Equal(t, http.StatusAccepted, w.Code)
}
