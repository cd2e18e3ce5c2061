package chathub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"friendchat/backend/internal/errs"
	"friendchat/backend/internal/localization"
	"friendchat/backend/internal/models"
	"friendchat/backend/internal/presence"

	"github.com/go-playground/validator/v10"
)

type ConversationResolver interface {
	Resolve(ctx context.Context, userA, userB string) (string, error)
}

type FriendChecker interface {
	AreFriends(ctx context.Context, userID, friendID string) (bool, error)
}

type MessageSender interface {
	SendToConversation(ctx context.Context, conversationID, senderID, content string) (*models.Message, error)
	SendToBroadcastRoom(ctx context.Context, senderID, content string) (*models.Message, error)
}

type TypingSignals interface {
	SetTyping(conversationID, userID, displayName string)
	ClearTyping(conversationID, userID string)
}

// Dependencies are the components the hub composes.
type Dependencies struct {
	Presence   *presence.Registry
	Rooms      Broadcaster
	Resolver   ConversationResolver
	Friends    FriendChecker
	Messages   MessageSender
	Typing     TypingSignals
	Localizer  *localization.Localizer
	PublicRoom string
	E2EEnabled bool
}

// ManagerService is the session gateway: it owns every live Session, checks the
// preconditions of each inbound event and delegates to the domain components.
// Events of one session are handled in the order its read pump delivers them.
type ManagerService struct {
	deps     Dependencies
	validate *validator.Validate
	log      *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewManagerService(deps Dependencies, log *slog.Logger) *ManagerService {
	m := &ManagerService{
		deps:     deps,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		log:      log,
		sessions: make(map[string]*Session),
	}
	deps.Presence.Observe(m)
	return m
}

// Connect authenticates client, places it in its personal room and the public room,
// and registers it with presence. A client without a user id is rejected before any
// room is joined.
func (m *ManagerService) Connect(client Client, lang string) (*Session, error) {
	sess := newSession(client, lang)
	userID, sessionID := client.GetUserID(), client.GetSessionID()
	if userID == "" || sessionID == "" {
		sess.disconnect()
		return nil, errs.ErrUnauthenticated
	}
	sess.authenticate()

	m.mu.Lock()
	m.sessions[sessionID] = sess
	m.mu.Unlock()

	m.join(sess, UserRoom(userID), false)
	m.join(sess, m.deps.PublicRoom, false)

	if first := m.deps.Presence.Register(userID, sessionID); !first {
		// Інші сесії вже онлайн, тож загальної події не буде: надсилаємо знімок напряму
		sess.deliver(models.Event{Type: models.EventUserOnline, Data: m.deps.Presence.OnlineUserIDs()})
	}

	m.log.Info("Client connected", "user_id", userID, "session_id", sessionID)
	return sess, nil
}

// HandleEvent decodes and dispatches one inbound frame of the session. Failures are
// reported to that session as an error event.
func (m *ManagerService) HandleEvent(ctx context.Context, sessionID string, raw []byte) {
	sess := m.Session(sessionID)
	if sess == nil {
		m.log.Warn("Event for unknown session", "session_id", sessionID)
		return
	}
	if err := m.dispatch(ctx, sess, raw); err != nil {
		m.reportError(sess, err)
	}
}

func (m *ManagerService) dispatch(ctx context.Context, sess *Session, raw []byte) error {
	if sess.State() != StateAuthenticated {
		return errs.ErrUnauthenticated
	}

	var in models.InboundEvent
	if err := m.decode(raw, &in); err != nil {
		return err
	}

	switch in.Type {
	case models.EventJoinConversation:
		var req models.JoinConversationRequest
		if err := m.decode(in.Data, &req); err != nil {
			return err
		}
		return m.joinConversation(ctx, sess, req.OtherUserID)

	case models.EventConversationMessage:
		var req models.ConversationMessageRequest
		if err := m.decode(in.Data, &req); err != nil {
			return err
		}
		if !sess.InConversation(req.ConversationID) {
			return errs.ErrNotInRoom
		}
		_, err := m.deps.Messages.SendToConversation(ctx, req.ConversationID, sess.client.GetUserID(), req.Content)
		return err

	case models.EventPublicRoomMessage:
		var req models.PublicRoomMessageRequest
		if err := m.decode(in.Data, &req); err != nil {
			return err
		}
		_, err := m.deps.Messages.SendToBroadcastRoom(ctx, sess.client.GetUserID(), req.Content)
		return err

	case models.EventTyping, models.EventRemoveTyping:
		var req models.TypingRequest
		if err := m.decode(in.Data, &req); err != nil {
			return err
		}
		if !sess.InConversation(req.ConversationID) {
			return errs.ErrNotInRoom
		}
		m.typing(sess, req.ConversationID, in.Type == models.EventTyping)
		return nil
	}
	return errs.ErrMalformedEvent
}

func (m *ManagerService) joinConversation(ctx context.Context, sess *Session, otherUserID string) error {
	userID := sess.client.GetUserID()
	if otherUserID == userID {
		return errs.ErrSelfConversation
	}

	ok, err := m.deps.Friends.AreFriends(ctx, userID, otherUserID)
	if err != nil {
		return err
	}
	if !ok {
		return errs.ErrNotFriends
	}

	conversationID, err := m.deps.Resolver.Resolve(ctx, userID, otherUserID)
	if err != nil {
		return err
	}
	if !m.join(sess, conversationID, true) {
		return nil
	}

	sess.deliver(models.Event{
		Type: models.EventJoinedConversation,
		Data: models.JoinedConversationPayload{ConversationID: conversationID, E2EEnabled: m.deps.E2EEnabled},
	})
	m.log.Debug("Joined conversation", "user_id", userID, "session_id", sess.client.GetSessionID(), "conversation_id", conversationID)
	return nil
}

// typing forwards start/stop signals, suppressing repeats within the session.
func (m *ManagerService) typing(sess *Session, conversationID string, started bool) {
	c := sess.client
	if started {
		if sess.markTyping(conversationID) {
			m.deps.Typing.SetTyping(conversationID, c.GetUserID(), c.GetDisplayName())
		}
		return
	}
	if sess.unmarkTyping(conversationID) {
		m.deps.Typing.ClearTyping(conversationID, c.GetUserID())
	}
}

// Disconnect tears the session down: it leaves every room, clears typing in each joined
// conversation, unregisters from presence and closes the client. Repeated calls are no-ops.
func (m *ManagerService) Disconnect(sessionID string) {
	m.mu.Lock()
	sess, ok := m.sessions[sessionID]
	delete(m.sessions, sessionID)
	m.mu.Unlock()
	if !ok {
		return
	}

	rooms, conversations, ok := sess.disconnect()
	if !ok {
		return
	}
	c := sess.client
	for _, room := range rooms {
		m.deps.Rooms.Leave(c, room)
	}
	for _, conversationID := range conversations {
		m.deps.Typing.ClearTyping(conversationID, c.GetUserID())
	}
	offline := m.deps.Presence.Unregister(c.GetUserID(), sessionID)
	c.Close()

	m.log.Info("Client disconnected", "user_id", c.GetUserID(), "session_id", sessionID, "offline", offline)
}

// Shutdown disconnects every session.
func (m *ManagerService) Shutdown() {
	m.mu.RLock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	for _, id := range ids {
		m.Disconnect(id)
	}
	m.log.Info("Hub stopped", "sessions", len(ids))
}

func (m *ManagerService) Session(sessionID string) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[sessionID]
}

func (m *ManagerService) SessionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// UserOnline implements presence.Observer.
func (m *ManagerService) UserOnline(userID string, online []string) {
	m.publishPresence(models.Event{Type: models.EventUserOnline, Data: online})
}

// UserOffline implements presence.Observer.
func (m *ManagerService) UserOffline(userID string) {
	m.publishPresence(models.Event{
		Type: models.EventUserOffline,
		Data: models.UserOfflinePayload{UserID: userID},
	})
}

// publishPresence keeps presence events on this node. The registry only knows this
// node's sessions, so its sets and transitions are not valid on other nodes.
func (m *ManagerService) publishPresence(event models.Event) {
	if local, ok := m.deps.Rooms.(LocalPublisher); ok {
		local.PublishLocal(m.deps.PublicRoom, event)
		return
	}
	m.deps.Rooms.Publish(m.deps.PublicRoom, event)
}

func (m *ManagerService) join(sess *Session, room string, conversation bool) bool {
	return sess.addRoom(room, conversation, func() { m.deps.Rooms.Join(sess.client, room) })
}

func (m *ManagerService) decode(data []byte, dst any) error {
	if err := json.Unmarshal(data, dst); err != nil {
		return errs.Wrap(errs.ErrMalformedEvent, err)
	}
	if err := m.validate.Struct(dst); err != nil {
		return errs.Wrap(errs.ErrMalformedEvent, err)
	}
	return nil
}

func (m *ManagerService) reportError(sess *Session, err error) {
	c := sess.client
	if errs.KindOf(err) == errs.KindInternal {
		m.log.Error("Event handling failed", "user_id", c.GetUserID(), "session_id", c.GetSessionID(), "error", err)
	} else {
		m.log.Debug("Event rejected", "user_id", c.GetUserID(), "code", errs.CodeOf(err), "error", err)
	}

	message := errs.PublicMessage(err)
	if m.deps.Localizer != nil {
		message = m.deps.Localizer.ErrorMessage(sess.lang, err)
	}
	code := errs.CodeOf(err)
	if errs.KindOf(err) == errs.KindInternal {
		code = "internal"
	}
	sess.deliver(models.Event{Type: models.EventError, Data: models.ErrorPayload{Message: message, Code: code}})
}

func trySend(c Client, event models.Event) bool {
	select {
	case c.GetSendChannel() <- event:
		return true
	default:
		return false
	}
}
