package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"friendchat/backend/internal/api/handler"
	"friendchat/backend/internal/auth"
	"friendchat/backend/internal/chathub"
	"friendchat/backend/internal/conversation"
	"friendchat/backend/internal/friendship"
	"friendchat/backend/internal/localization"
	"friendchat/backend/internal/messaging"
	"friendchat/backend/internal/models"
	"friendchat/backend/internal/presence"
	"friendchat/backend/internal/storage"
	"friendchat/backend/internal/storage/storagetest"
	"friendchat/backend/internal/typing"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const publicRoom = "public"

type testServer struct {
	router  *gin.Engine
	store   *storage.Service
	tokens  *auth.TokenService
	friends *friendship.Service
}

type serverOption func(*handler.Options, *gin.HandlerFunc)

func withOrigin(origin string) serverOption {
	return func(o *handler.Options, _ *gin.HandlerFunc) { o.AllowedOrigin = origin }
}

func withRateLimit(requests int, localizer *localization.Localizer) serverOption {
	return func(_ *handler.Options, rl *gin.HandlerFunc) {
		*rl = handler.RateLimitMiddleware(requests, time.Hour, localizer)
	}
}

func testLogger() *slog.Logger {
	return logs.GetLoggerFromLevel(slog.LevelDebug)
}

func newTestServer(t *testing.T, opts ...serverOption) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := testLogger()

	store := storagetest.New(t)
	rooms := chathub.NewRooms(log)
	friends := friendship.NewService(store, chathub.NewUserNotifier(rooms), log)
	resolver := conversation.NewResolver(store, log)
	messages := messaging.NewService(store, rooms, publicRoom, log)
	localizer, err := localization.NewDefault()
	require.NoError(t, err)

	hub := chathub.NewManagerService(chathub.Dependencies{
		Presence:   presence.NewRegistry(log, 4),
		Rooms:      rooms,
		Resolver:   resolver,
		Friends:    friends,
		Messages:   messages,
		Typing:     typing.NewTracker(rooms),
		Localizer:  localizer,
		PublicRoom: publicRoom,
		E2EEnabled: true,
	}, log)
	t.Cleanup(hub.Shutdown)

	tokens := auth.NewTokenService("test-secret", "friendchat", time.Hour)
	options := handler.Options{
		Hub:            hub,
		Friends:        friends,
		Messages:       messages,
		Conversations:  resolver,
		Tokens:         tokens,
		Localizer:      localizer,
		SendBufferSize: 16,
	}
	var rateLimit gin.HandlerFunc
	for _, opt := range opts {
		opt(&options, &rateLimit)
	}

	return &testServer{
		router:  handler.NewRouter(handler.NewHandler(options, log), rateLimit),
		store:   store,
		tokens:  tokens,
		friends: friends,
	}
}

func (s *testServer) token(t *testing.T, user *models.User) string {
	t.Helper()
	token, err := s.tokens.Issue(user)
	require.NoError(t, err)
	return token
}

type response struct {
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
}

func (s *testServer) do(t *testing.T, method, path, token string, body any, headers ...string) (int, response) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var resp response
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	}
	return w.Code, resp
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	code, _ := s.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)

	code, resp := s.do(t, http.MethodGet, "/friend/all/someone", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "unauthenticated", resp.Code)

	code, _ = s.do(t, http.MethodGet, "/friend/all/someone", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestFriendRequestFlow(t *testing.T) {
	req := require.New(t)
	s := newTestServer(t)
	alice := storagetest.SeedUser(t, s.store, "alice")
	bob := storagetest.SeedUser(t, s.store, "bob")
	aliceToken, bobToken := s.token(t, alice), s.token(t, bob)

	// Given: alice sends a request by email
	code, resp := s.do(t, http.MethodPost, "/friend/send-request", aliceToken, map[string]string{"to_user_email": "bob@example.com"})
	req.Equal(http.StatusCreated, code)
	var sent models.FriendRequest
	req.NoError(json.Unmarshal(resp.Data, &sent))
	req.Equal(models.StatusPending, sent.Status)

	// When: the reverse request is attempted
	code, resp = s.do(t, http.MethodPost, "/friend/send-request", bobToken, map[string]string{"to_user_email": "alice@example.com"})
	req.Equal(http.StatusConflict, code)
	req.Equal("duplicate_request", resp.Code)

	// Then: both sides see the pending request
	code, resp = s.do(t, http.MethodGet, "/friend/all/requests/"+bob.ID, bobToken, nil)
	req.Equal(http.StatusOK, code)
	var incoming []models.FriendRequest
	req.NoError(json.Unmarshal(resp.Data, &incoming))
	req.Len(incoming, 1)
	req.Equal("alice", incoming[0].FromUser.Name)

	code, resp = s.do(t, http.MethodGet, "/friend/all/sent-requests/"+alice.ID, aliceToken, nil)
	req.Equal(http.StatusOK, code)
	var outgoing []models.FriendRequest
	req.NoError(json.Unmarshal(resp.Data, &outgoing))
	req.Len(outgoing, 1)
	req.Equal("bob", outgoing[0].ToUser.Name)

	// the sender cannot answer its own request
	code, resp = s.do(t, http.MethodPost, "/friend/response-request", aliceToken, map[string]string{"request_id": sent.ID, "status": "accepted"})
	req.Equal(http.StatusNotFound, code)
	req.Equal("request_not_found", resp.Code)

	code, _ = s.do(t, http.MethodPost, "/friend/response-request", bobToken, map[string]string{"request_id": sent.ID, "status": "accepted"})
	req.Equal(http.StatusOK, code)

	code, resp = s.do(t, http.MethodGet, "/friend/all/"+alice.ID, aliceToken, nil)
	req.Equal(http.StatusOK, code)
	var friends []models.Friend
	req.NoError(json.Unmarshal(resp.Data, &friends))
	req.Len(friends, 1)
	req.Equal(bob.ID, friends[0].FriendID)
}

func TestSendRequest_ValidationAndLocalization(t *testing.T) {
	s := newTestServer(t)
	alice := storagetest.SeedUser(t, s.store, "alice")
	token := s.token(t, alice)

	code, resp := s.do(t, http.MethodPost, "/friend/send-request", token, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "missing_identifier", resp.Code)

	code, resp = s.do(t, http.MethodPost, "/friend/send-request", token,
		map[string]string{"to_user_email": "ghost@example.com"}, "Accept-Language", "uk-UA,uk;q=0.9")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "user_not_found", resp.Code)
	assert.Equal(t, "Користувача з таким email не існує.", resp.Error)

	code, resp = s.do(t, http.MethodPost, "/friend/send-request", token, map[string]string{"to_user_email": "alice@example.com"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "self_request", resp.Code)
}

func TestRemoveRequest(t *testing.T) {
	s := newTestServer(t)
	alice := storagetest.SeedUser(t, s.store, "alice")
	bob := storagetest.SeedUser(t, s.store, "bob")
	fr, err := s.friends.SendRequest(context.Background(), alice.ID, bob.ID)
	require.NoError(t, err)

	code, resp := s.do(t, http.MethodDelete, "/friend/remove-request", s.token(t, bob), map[string]string{"request_id": fr.ID})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "not_request_sender", resp.Code)

	code, _ = s.do(t, http.MethodDelete, "/friend/remove-request", s.token(t, alice), map[string]string{"request_id": fr.ID})
	assert.Equal(t, http.StatusOK, code)

	code, resp = s.do(t, http.MethodDelete, "/friend/remove-request", s.token(t, alice), map[string]string{"request_id": fr.ID})
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "request_not_found", resp.Code)
}

func TestListRoutesRejectForeignUser(t *testing.T) {
	s := newTestServer(t)
	alice := storagetest.SeedUser(t, s.store, "alice")
	bob := storagetest.SeedUser(t, s.store, "bob")

	for _, path := range []string{"/friend/all/", "/friend/all/requests/", "/friend/all/sent-requests/"} {
		code, resp := s.do(t, http.MethodGet, path+bob.ID, s.token(t, alice), nil)
		assert.Equal(t, http.StatusUnauthorized, code, path)
		assert.Equal(t, "foreign_resource", resp.Code, path)
	}
}

func TestConversationHistory(t *testing.T) {
	req := require.New(t)
	s := newTestServer(t)
	ctx := context.Background()
	alice := storagetest.SeedUser(t, s.store, "alice")
	bob := storagetest.SeedUser(t, s.store, "bob")
	mallory := storagetest.SeedUser(t, s.store, "mallory")

	conv, _, err := s.store.FindOrCreateConversation(ctx, alice.ID, bob.ID)
	req.NoError(err)
	for _, text := range []string{"one", "two", "three"} {
		req.NoError(s.store.SaveMessage(ctx, &models.Message{ConversationID: conv.ID, SenderID: alice.ID, Content: text}))
	}

	code, resp := s.do(t, http.MethodGet, "/message/all/"+conv.ID, s.token(t, bob), nil)
	req.Equal(http.StatusOK, code)
	var history []models.Message
	req.NoError(json.Unmarshal(resp.Data, &history))
	req.Len(history, 3)
	req.Equal("one", history[0].Content)
	req.Equal("three", history[2].Content)
	req.Equal("alice", history[0].Sender.Name)

	code, resp = s.do(t, http.MethodGet, "/message/all/"+conv.ID, s.token(t, mallory), nil)
	req.Equal(http.StatusUnauthorized, code)
	req.Equal("not_participant", resp.Code)

	code, resp = s.do(t, http.MethodGet, "/message/all/unknown", s.token(t, bob), nil)
	req.Equal(http.StatusNotFound, code)
	req.Equal("conversation_not_found", resp.Code)
}

func TestPublicHistory(t *testing.T) {
	s := newTestServer(t)
	alice := storagetest.SeedUser(t, s.store, "alice")
	require.NoError(t, s.store.SaveMessage(context.Background(), &models.Message{ConversationID: publicRoom, SenderID: alice.ID, Content: "hello"}))

	code, resp := s.do(t, http.MethodGet, "/message/all/msg/public", s.token(t, alice), nil)

	require.Equal(t, http.StatusOK, code)
	var history []models.Message
	require.NoError(t, json.Unmarshal(resp.Data, &history))
	require.Len(t, history, 1)
	assert.Equal(t, "hello", history[0].Content)
}

func TestOriginMiddleware(t *testing.T) {
	s := newTestServer(t, withOrigin("https://chat.example.com"))

	code, resp := s.do(t, http.MethodGet, "/healthz", "", nil, "Origin", "https://evil.example.com")
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "origin_not_allowed", resp.Code)

	req := httptest.NewRequest(http.MethodOptions, "/friend/send-request", nil)
	req.Header.Set("Origin", "https://chat.example.com")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://chat.example.com", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimit(t *testing.T) {
	localizer, err := localization.NewDefault()
	require.NoError(t, err)
	s := newTestServer(t, withRateLimit(2, localizer))

	for i := 0; i < 2; i++ {
		code, _ := s.do(t, http.MethodGet, "/healthz", "", nil)
		assert.Equal(t, http.StatusOK, code)
	}
	code, resp := s.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Equal(t, "rate_limited", resp.Code)
}

func dial(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readUntil(t *testing.T, conn *websocket.Conn, eventType string) json.RawMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var e models.InboundEvent
		require.NoError(t, conn.ReadJSON(&e))
		if e.Type == eventType {
			return e.Data
		}
	}
}

func TestWebSocket_JoinAndMessage(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	alice := storagetest.SeedUser(t, s.store, "alice")
	bob := storagetest.SeedUser(t, s.store, "bob")
	fr, err := s.friends.SendRequest(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	_, err = s.friends.Respond(ctx, fr.ID, bob.ID, models.StatusAccepted)
	require.NoError(t, err)

	srv := httptest.NewServer(s.router)
	t.Cleanup(srv.Close)

	a := dial(t, srv, s.token(t, alice))
	readUntil(t, a, models.EventUserOnline)
	b := dial(t, srv, s.token(t, bob))
	readUntil(t, b, models.EventUserOnline)

	require.NoError(t, a.WriteJSON(map[string]any{"type": models.EventJoinConversation, "data": map[string]string{"other_user_id": bob.ID}}))
	var joinedA models.JoinedConversationPayload
	require.NoError(t, json.Unmarshal(readUntil(t, a, models.EventJoinedConversation), &joinedA))
	assert.True(t, joinedA.E2EEnabled)

	require.NoError(t, b.WriteJSON(map[string]any{"type": models.EventJoinConversation, "data": map[string]string{"other_user_id": alice.ID}}))
	var joinedB models.JoinedConversationPayload
	require.NoError(t, json.Unmarshal(readUntil(t, b, models.EventJoinedConversation), &joinedB))
	assert.Equal(t, joinedA.ConversationID, joinedB.ConversationID)

	require.NoError(t, a.WriteJSON(map[string]any{
		"type": models.EventConversationMessage,
		"data": map[string]string{"conversation_id": joinedA.ConversationID, "content": "hi bob"},
	}))
	var got models.ConversationMessagePayload
	require.NoError(t, json.Unmarshal(readUntil(t, b, models.EventConversationMessage), &got))
	assert.Equal(t, "hi bob", got.Content)
	assert.Equal(t, "alice", got.FromName)

	require.NoError(t, a.Close())
	var offline models.UserOfflinePayload
	require.NoError(t, json.Unmarshal(readUntil(t, b, models.EventUserOffline), &offline))
	assert.Equal(t, alice.ID, offline.UserID)
}

func TestWebSocket_RejectsMissingToken(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.router)
	t.Cleanup(srv.Close)

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
