package chat

import (
	"sync"
)

type room struct {
	mu      sync.RWMutex
	members map[string]struct{}
}

func (rm *room) snapshot() []string {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	out := make([]string, 0, len(rm.members))
	for id := range rm.members {
		out = append(out, id)
	}
	return out
}

// RoomIndex is the per-process presence cache of channel membership.
// Membership is not authorization; the membership store is checked before a
// join is accepted. Mutations hold the outer lock end to end; fan-out reads
// take only the per-room lock so unrelated rooms never serialize.
type RoomIndex struct {
	mu     sync.RWMutex
	rooms  map[string]*room
	byUser map[string]map[string]struct{} // userID -> set of channelIDs
}

func NewRoomIndex() *RoomIndex {
	return &RoomIndex{
		rooms:  make(map[string]*room),
		byUser: make(map[string]map[string]struct{}),
	}
}

// Join adds the user to the room, creating it lazily. Returns true only on
// an actual membership change. The member insert happens under the outer
// lock: a concurrent Leave may otherwise drop the room between the map
// update and the insert, stranding the join on an orphaned room object.
func (ri *RoomIndex) Join(userID, channelID string) bool {
	ri.mu.Lock()
	defer ri.mu.Unlock()

	rm, ok := ri.rooms[channelID]
	if !ok {
		rm = &room{members: make(map[string]struct{})}
		ri.rooms[channelID] = rm
	}
	if ri.byUser[userID] == nil {
		ri.byUser[userID] = make(map[string]struct{})
	}
	_, already := ri.byUser[userID][channelID]
	ri.byUser[userID][channelID] = struct{}{}

	rm.mu.Lock()
	rm.members[userID] = struct{}{}
	rm.mu.Unlock()
	return !already
}

// Leave removes the user from the room; empty rooms are dropped. Returns
// true only if the user had been a member.
func (ri *RoomIndex) Leave(userID, channelID string) bool {
	ri.mu.Lock()
	defer ri.mu.Unlock()
	return ri.leaveLocked(userID, channelID)
}

func (ri *RoomIndex) leaveLocked(userID, channelID string) bool {
	if set := ri.byUser[userID]; set != nil {
		delete(set, channelID)
		if len(set) == 0 {
			delete(ri.byUser, userID)
		}
	}
	rm, ok := ri.rooms[channelID]
	if !ok {
		return false
	}

	rm.mu.Lock()
	_, was := rm.members[userID]
	delete(rm.members, userID)
	empty := len(rm.members) == 0
	rm.mu.Unlock()

	if empty {
		delete(ri.rooms, channelID)
	}
	return was
}

// RemoveAll removes the user from every room and returns the channels they
// had been a member of.
func (ri *RoomIndex) RemoveAll(userID string) []string {
	ri.mu.Lock()
	defer ri.mu.Unlock()

	set := ri.byUser[userID]
	channels := make([]string, 0, len(set))
	for ch := range set {
		channels = append(channels, ch)
	}
	for _, ch := range channels {
		ri.leaveLocked(userID, ch)
	}
	return channels
}

// Members snapshots the room's membership; an unknown room is empty, never
// an error.
func (ri *RoomIndex) Members(channelID string) []string {
	ri.mu.RLock()
	rm, ok := ri.rooms[channelID]
	ri.mu.RUnlock()
	if !ok {
		return nil
	}
	return rm.snapshot()
}

func (ri *RoomIndex) IsMember(userID, channelID string) bool {
	ri.mu.RLock()
	defer ri.mu.RUnlock()
	set, ok := ri.byUser[userID]
	if !ok {
		return false
	}
	_, in := set[channelID]
	return in
}

// RoomsOf returns the channels the user is currently attached to.
func (ri *RoomIndex) RoomsOf(userID string) []string {
	ri.mu.RLock()
	defer ri.mu.RUnlock()
	set := ri.byUser[userID]
	out := make([]string, 0, len(set))
	for ch := range set {
		out = append(out, ch)
	}
	return out
}

// Counts reports member counts per room, for stats.
func (ri *RoomIndex) Counts() map[string]int {
	ri.mu.RLock()
	defer ri.mu.RUnlock()
	out := make(map[string]int, len(ri.rooms))
	for ch, rm := range ri.rooms {
		rm.mu.RLock()
		out[ch] = len(rm.members)
		rm.mu.RUnlock()
	}
	return out
}
