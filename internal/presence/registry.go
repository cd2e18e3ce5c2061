// Package presence tracks which users have at least one live connection.
//
// Sessions are partitioned into shards keyed by a hash of the user id, so connects and
// disconnects of unrelated users never contend on the same lock, while every mutation
// of one user's session set happens under that user's shard lock. The online/offline
// transition of a user is detected and announced under the same lock, which makes the
// announcement exactly-once per transition. Announcements of different users are
// serialized by the online-set lock.
package presence

import (
	"hash/fnv"
	"log/slog"
	"sort"
	"sync"

	"github.com/samber/lo"
)

// Observer receives presence transitions. Callbacks run while the user's shard lock and
// the online-set lock are held, so they arrive in the order the online set changed.
// They must not block and must not call back into the Registry.
type Observer interface {
	// UserOnline is called when userID gets its first session. online is the full set
	// of online user ids at that moment, so a late subscriber can resync from it.
	UserOnline(userID string, online []string)
	// UserOffline is called when userID loses its last session.
	UserOffline(userID string)
}

type shard struct {
	mu       sync.Mutex
	sessions map[string]map[string]struct{} // userID -> sessionIDs
}

type Registry struct {
	shards []*shard
	log    *slog.Logger

	// onlineMu guards the set of online user ids and serializes observer calls.
	// Lock order: shard, then onlineMu.
	onlineMu sync.RWMutex
	online   map[string]struct{}

	observersMu sync.RWMutex
	observers   []Observer
}

func NewRegistry(log *slog.Logger, shards int) *Registry {
	if shards <= 0 {
		shards = 1
	}
	r := &Registry{
		shards: make([]*shard, shards),
		log:    log,
		online: make(map[string]struct{}),
	}
	for i := range r.shards {
		r.shards[i] = &shard{sessions: make(map[string]map[string]struct{})}
	}
	return r
}

// Observe subscribes o to future transitions.
func (r *Registry) Observe(o Observer) {
	r.observersMu.Lock()
	defer r.observersMu.Unlock()
	r.observers = append(r.observers, o)
}

func (r *Registry) shardFor(userID string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return r.shards[h.Sum32()%uint32(len(r.shards))]
}

// Register adds sessionID under userID. It reports whether this was the user's first
// session, in which case observers have been told the user came online.
func (r *Registry) Register(userID, sessionID string) bool {
	sh := r.shardFor(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	sessions, ok := sh.sessions[userID]
	if !ok {
		sessions = make(map[string]struct{})
		sh.sessions[userID] = sessions
	}
	sessions[sessionID] = struct{}{}
	if ok {
		return false
	}

	r.onlineMu.Lock()
	defer r.onlineMu.Unlock()
	r.online[userID] = struct{}{}
	snapshot := sortedKeys(r.online)

	r.log.Debug("User came online", "user_id", userID, "online", len(snapshot))
	for _, o := range r.snapshotObservers() {
		o.UserOnline(userID, snapshot)
	}
	return true
}

// Unregister removes sessionID from userID. It reports whether that was the user's last
// session, in which case observers have been told the user went offline. Unknown
// sessions are ignored.
func (r *Registry) Unregister(userID, sessionID string) bool {
	sh := r.shardFor(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	sessions, ok := sh.sessions[userID]
	if !ok {
		return false
	}
	if _, ok := sessions[sessionID]; !ok {
		return false
	}
	delete(sessions, sessionID)
	if len(sessions) > 0 {
		return false
	}
	delete(sh.sessions, userID)

	r.onlineMu.Lock()
	defer r.onlineMu.Unlock()
	delete(r.online, userID)

	r.log.Debug("User went offline", "user_id", userID)
	for _, o := range r.snapshotObservers() {
		o.UserOffline(userID)
	}
	return true
}

func (r *Registry) IsOnline(userID string) bool {
	r.onlineMu.RLock()
	defer r.onlineMu.RUnlock()
	_, ok := r.online[userID]
	return ok
}

// OnlineUserIDs returns the sorted ids of every online user.
func (r *Registry) OnlineUserIDs() []string {
	r.onlineMu.RLock()
	defer r.onlineMu.RUnlock()
	return sortedKeys(r.online)
}

// Sessions returns the live session ids of userID.
func (r *Registry) Sessions(userID string) []string {
	sh := r.shardFor(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	ids := lo.Keys(sh.sessions[userID])
	sort.Strings(ids)
	return ids
}

func (r *Registry) snapshotObservers() []Observer {
	r.observersMu.RLock()
	defer r.observersMu.RUnlock()
	return r.observers
}

func sortedKeys(set map[string]struct{}) []string {
	keys := lo.Keys(set)
	sort.Strings(keys)
	return keys
}
