package chat

import "sync"

// TypingState holds the per-channel sets of users currently typing. There is
// no time-based expiry: a flag clears on an explicit is_typing=false, a room
// leave, or a disconnect.
type TypingState struct {
	mu        sync.RWMutex
	byChannel map[string]map[string]struct{}
}

func NewTypingState() *TypingState {
	return &TypingState{byChannel: make(map[string]map[string]struct{})}
}

func (t *TypingState) Set(userID, channelID string, typing bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	set := t.byChannel[channelID]
	if typing {
		if set == nil {
			set = make(map[string]struct{})
			t.byChannel[channelID] = set
		}
		set[userID] = struct{}{}
		return
	}
	if set != nil {
		delete(set, userID)
		if len(set) == 0 {
			delete(t.byChannel, channelID)
		}
	}
}

// Clear drops the user's flag in one channel.
func (t *TypingState) Clear(userID, channelID string) {
	t.Set(userID, channelID, false)
}

// ClearAll drops the user's flag everywhere; used on disconnect.
func (t *TypingState) ClearAll(userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for ch, set := range t.byChannel {
		delete(set, userID)
		if len(set) == 0 {
			delete(t.byChannel, ch)
		}
	}
}

// Typing snapshots the users currently typing in a channel.
func (t *TypingState) Typing(channelID string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	set := t.byChannel[channelID]
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

func (t *TypingState) IsTyping(userID, channelID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	set, ok := t.byChannel[channelID]
	if !ok {
		return false
	}
	_, in := set[userID]
	return in
}
