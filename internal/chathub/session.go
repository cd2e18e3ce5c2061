package chathub

import (
	"sync"

	"friendchat/backend/internal/models"

	"github.com/samber/lo"
)

// SessionState is the lifecycle stage of one connection.
type SessionState int

const (
	StateConnecting SessionState = iota
	StateAuthenticated
	StateDisconnected
)

func (s SessionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "disconnected"
	}
}

// Session is the hub's record of one connection: its state, the rooms it joined and
// the conversations in which it is currently marked as typing.
type Session struct {
	client Client
	lang   string

	mu            sync.Mutex
	state         SessionState
	rooms         map[string]struct{}
	conversations map[string]struct{}
	typing        map[string]struct{}
}

func newSession(client Client, lang string) *Session {
	return &Session{
		client:        client,
		lang:          lang,
		state:         StateConnecting,
		rooms:         make(map[string]struct{}),
		conversations: make(map[string]struct{}),
		typing:        make(map[string]struct{}),
	}
}

func (s *Session) Client() Client { return s.client }

func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// InConversation reports whether the session joined the conversation room.
func (s *Session) InConversation(conversationID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.conversations[conversationID]
	return ok
}

// Conversations returns the joined conversation ids.
func (s *Session) Conversations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return lo.Keys(s.conversations)
}

func (s *Session) authenticate() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateConnecting {
		return false
	}
	s.state = StateAuthenticated
	return true
}

// addRoom runs join and records the room while the session lock is held, so a
// concurrent disconnect either sees the room and leaves it or makes addRoom fail.
// Lock order is session, then rooms.
func (s *Session) addRoom(room string, conversation bool, join func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateAuthenticated {
		return false
	}
	join()
	s.rooms[room] = struct{}{}
	if conversation {
		s.conversations[room] = struct{}{}
	}
	return true
}

// markTyping reports whether the session was not already typing in the conversation.
func (s *Session) markTyping(conversationID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.typing[conversationID]; ok {
		return false
	}
	s.typing[conversationID] = struct{}{}
	return true
}

func (s *Session) unmarkTyping(conversationID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.typing[conversationID]; !ok {
		return false
	}
	delete(s.typing, conversationID)
	return true
}

// disconnect moves the session to its final state and returns what it had joined.
// ok is false when the session was already disconnected.
func (s *Session) disconnect() (rooms, conversations []string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateDisconnected {
		return nil, nil, false
	}
	s.state = StateDisconnected
	rooms = lo.Keys(s.rooms)
	conversations = lo.Keys(s.conversations)
	s.rooms = map[string]struct{}{}
	s.conversations = map[string]struct{}{}
	s.typing = map[string]struct{}{}
	return rooms, conversations, true
}

// deliver sends event straight to this session unless it is already disconnected.
func (s *Session) deliver(event models.Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateDisconnected {
		return false
	}
	return trySend(s.client, event)
}
