package chat

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"RTChat/service/broker"
	"RTChat/service/storage"

	"github.com/stretchr/testify/require"
)

// fakeConn is an in-memory Transport that records everything the write pump
// emits.
type fakeConn struct {
	mu        sync.Mutex
	frames    [][]byte
	closed    bool
	closeCode int
}

func (f *fakeConn) WriteMessage(_ int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return errors.New("write on closed conn")
	}
	f.frames = append(f.frames, append([]byte(nil), data...))
	return nil
}

func (f *fakeConn) WriteControl(_ int, data []byte, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(data) >= 2 {
		f.closeCode = int(data[0])<<8 | int(data[1])
	}
	return nil
}

func (f *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) Frames() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.frames))
	copy(out, f.frames)
	return out
}

func (f *fakeConn) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeConn) CloseCode() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closeCode
}

// envelopes decodes every recorded frame.
func (f *fakeConn) envelopes(t *testing.T) []Envelope {
	t.Helper()
	frames := f.Frames()
	out := make([]Envelope, 0, len(frames))
	for _, raw := range frames {
		var e Envelope
		require.NoError(t, json.Unmarshal(raw, &e))
		out = append(out, e)
	}
	return out
}

// countType is assertion-free so it can run inside an Eventually poll.
func (f *fakeConn) countType(typ string) int {
	n := 0
	for _, raw := range f.Frames() {
		var e Envelope
		if json.Unmarshal(raw, &e) == nil && e.Type == typ {
			n++
		}
	}
	return n
}

// fakeStore is an in-memory MembershipStore.
type fakeStore struct {
	channels map[string][]string        // userID -> channels for auto-join
	members  map[string]map[string]bool // channelID -> userID -> member
	names    map[string]string
	listErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		channels: map[string][]string{},
		members:  map[string]map[string]bool{},
		names:    map[string]string{},
	}
}

func (s *fakeStore) allow(userID, channelID string) {
	if s.members[channelID] == nil {
		s.members[channelID] = map[string]bool{}
	}
	s.members[channelID][userID] = true
}

func (s *fakeStore) ListUserChannels(_ context.Context, userID string) ([]string, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.channels[userID], nil
}

func (s *fakeStore) IsMember(_ context.Context, userID, channelID string) (bool, error) {
	return s.members[channelID][userID], nil
}

func (s *fakeStore) Username(_ context.Context, userID string) (string, error) {
	name, ok := s.names[userID]
	if !ok {
		return "", storage.ErrNotFound
	}
	return name, nil
}

// memBroker delivers published messages to every matching in-process
// subscription, including the publisher's own.
type memBroker struct {
	mu   sync.Mutex
	subs []*memSub
}

type memSub struct {
	patterns []string
	ch       chan broker.Message
}

func newMemBroker() *memBroker { return &memBroker{} }

func topicMatches(pattern, topic string) bool {
	if prefix, ok := strings.CutSuffix(pattern, ".*"); ok {
		return strings.HasPrefix(topic, prefix+".")
	}
	return pattern == topic
}

func (b *memBroker) Publish(_ context.Context, topic string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subs {
		for _, p := range sub.patterns {
			if topicMatches(p, topic) {
				sub.ch <- broker.Message{Topic: topic, Payload: append([]byte(nil), payload...)}
				break
			}
		}
	}
	return nil
}

func (b *memBroker) Subscribe(ctx context.Context, patterns ...string) (<-chan broker.Message, error) {
	sub := &memSub{patterns: patterns, ch: make(chan broker.Message, 256)}
	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()
	return sub.ch, nil
}

func (b *memBroker) Close() error { return nil }

// ===== builders =====

func newTestServer(t *testing.T, gatewayID string, store *fakeStore, brk broker.Broker) *Server {
	t.Helper()
	if store == nil {
		store = newFakeStore()
	}
	if brk == nil {
		brk = newMemBroker()
	}
	verifier := VerifierFunc(func(token string) (string, error) {
		if token == "" {
			return "", errors.New("empty token")
		}
		return token, nil
	})
	return NewServer(Config{GatewayID: gatewayID}, store, verifier, brk, nil)
}

func attach(t *testing.T, s *Server, userID, username string) (*Client, *fakeConn) {
	t.Helper()
	ws := &fakeConn{}
	c := NewClient("conn-"+userID, userID, username, ws, 64, time.Second)
	s.Connect(c)
	return c, ws
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 2*time.Millisecond)
}
