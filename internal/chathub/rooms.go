package chathub

import (
	"log/slog"
	"sort"
	"sync"

	"friendchat/backend/internal/models"

	"github.com/samber/lo"
)

// Broadcaster is the room capability the hub fans out through. Publish must never
// block on I/O.
type Broadcaster interface {
	Join(c Client, room string)
	Leave(c Client, room string)
	Publish(room string, event models.Event)
	Members(room string) []Client
}

// LocalPublisher is implemented by broadcasters that can deliver to the members
// connected to this process without forwarding to other nodes.
type LocalPublisher interface {
	PublishLocal(room string, event models.Event)
}

// UserRoom is the personal room every session of userID joins on connect.
func UserRoom(userID string) string {
	return "user:" + userID
}

// Rooms is the in-process Broadcaster. Sends are non-blocking: a client whose buffer
// is full misses the event.
type Rooms struct {
	mu    sync.RWMutex
	rooms map[string]map[string]Client // room -> sessionID -> client
	log   *slog.Logger
}

func NewRooms(log *slog.Logger) *Rooms {
	return &Rooms{
		rooms: make(map[string]map[string]Client),
		log:   log,
	}
}

func (r *Rooms) Join(c Client, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[room]
	if !ok {
		members = make(map[string]Client)
		r.rooms[room] = members
	}
	members[c.GetSessionID()] = c
}

// Leave removes c from room. Once it returns, no Publish still sends to c for that room.
func (r *Rooms) Leave(c Client, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[room]
	if !ok {
		return
	}
	delete(members, c.GetSessionID())
	if len(members) == 0 {
		delete(r.rooms, room)
	}
}

// Publish delivers event to every member of room. The read lock is held across the
// sends so that Leave followed by Close cannot race a send on a closed channel.
func (r *Rooms) Publish(room string, event models.Event) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for sessionID, c := range r.rooms[room] {
		select {
		case c.GetSendChannel() <- event:
		default:
			r.log.Warn("Send buffer full, dropping event",
				"room", room, "event", event.Type, "session_id", sessionID, "user_id", c.GetUserID())
		}
	}
}

// PublishLocal is Publish: Rooms only has local members.
func (r *Rooms) PublishLocal(room string, event models.Event) {
	r.Publish(room, event)
}

// Members returns the clients in room ordered by session id.
func (r *Rooms) Members(room string) []Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := lo.Values(r.rooms[room])
	sort.Slice(members, func(i, j int) bool {
		return members[i].GetSessionID() < members[j].GetSessionID()
	})
	return members
}
