package chat

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomIndexJoinLeave(t *testing.T) {
	ri := NewRoomIndex()

	require.True(t, ri.Join("u1", "c1"))
	assert.False(t, ri.Join("u1", "c1"), "second join is not a change")
	require.True(t, ri.Join("u2", "c1"))

	assert.ElementsMatch(t, []string{"u1", "u2"}, ri.Members("c1"))
	assert.True(t, ri.IsMember("u1", "c1"))
	assert.False(t, ri.IsMember("u3", "c1"))

	require.True(t, ri.Leave("u1", "c1"))
	assert.False(t, ri.Leave("u1", "c1"), "second leave is not a change")
	assert.ElementsMatch(t, []string{"u2"}, ri.Members("c1"))
}

func TestRoomIndexUnknownRoom(t *testing.T) {
	ri := NewRoomIndex()
	assert.Empty(t, ri.Members("nope"))
	assert.False(t, ri.Leave("u1", "nope"))
}

func TestRoomIndexEmptyRoomsDropped(t *testing.T) {
	ri := NewRoomIndex()
	ri.Join("u1", "c1")
	ri.Leave("u1", "c1")
	assert.Empty(t, ri.Counts())
}

func TestRoomIndexRemoveAll(t *testing.T) {
	ri := NewRoomIndex()
	ri.Join("u1", "c1")
	ri.Join("u1", "c2")
	ri.Join("u2", "c1")

	gone := ri.RemoveAll("u1")
	assert.ElementsMatch(t, []string{"c1", "c2"}, gone)
	assert.Empty(t, ri.RoomsOf("u1"))
	assert.ElementsMatch(t, []string{"u2"}, ri.Members("c1"))

	assert.Empty(t, ri.RemoveAll("u1"), "second removal finds nothing")
}

// Users churning join/leave on one room must always see themselves in the
// membership right after their own Join returns: only the user itself may
// remove its entry, so no interleaving of other users' leaves (including one
// that empties and drops the room) can lose the join.
func TestRoomIndexConcurrentJoinLeave(t *testing.T) {
	ri := NewRoomIndex()
	users := []string{"u1", "u2", "u3", "u4", "u5", "u6"}

	var wg sync.WaitGroup
	for _, u := range users {
		u := u
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				ri.Join(u, "c1")
				var seen bool
				for _, id := range ri.Members("c1") {
					if id == u {
						seen = true
						break
					}
				}
				if !seen {
					t.Errorf("%s joined but is missing from the room membership", u)
					return
				}
				if !ri.IsMember(u, "c1") {
					t.Errorf("%s joined but IsMember reports false", u)
					return
				}
				ri.Leave(u, "c1")
			}
		}()
	}
	wg.Wait()

	// No stale byUser entries may survive the churn: a fresh join is still
	// a membership change.
	assert.Empty(t, ri.Counts())
	assert.True(t, ri.Join("u1", "c1"))
}

func TestRoomIndexCounts(t *testing.T) {
	ri := NewRoomIndex()
	ri.Join("u1", "c1")
	ri.Join("u2", "c1")
	ri.Join("u2", "c2")
	assert.Equal(t, map[string]int{"c1": 2, "c2": 1}, ri.Counts())
}
