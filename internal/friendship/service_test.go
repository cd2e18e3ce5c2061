package friendship_test

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"friendchat/backend/internal/errs"
	"friendchat/backend/internal/friendship"
	"friendchat/backend/internal/models"
	"friendchat/backend/internal/storage"
	"friendchat/backend/internal/storage/storagetest"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type notification struct {
	event models.Event
	users []string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notification
}

func (n *recordingNotifier) NotifyUsers(event models.Event, userIDs ...string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification{event: event, users: userIDs})
}

func (n *recordingNotifier) types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.sent))
	for _, s := range n.sent {
		out = append(out, s.event.Type)
	}
	return out
}

type fixture struct {
	store    *storage.Service
	svc      *friendship.Service
	notifier *recordingNotifier
	alice    *models.User
	bob      *models.User
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	store := storagetest.New(t)
	notifier := &recordingNotifier{}
	return fixture{
		store:    store,
		svc:      friendship.NewService(store, notifier, logs.GetLoggerFromLevel(slog.LevelDebug)),
		notifier: notifier,
		alice:    storagetest.SeedUser(t, store, "alice"),
		bob:      storagetest.SeedUser(t, store, "bob"),
	}
}

func countRows(t *testing.T, store *storage.Service, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, store.DB.Model(model).Count(&n).Error)
	return n
}

func TestSendRequest_ValidatesInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.SendRequest(ctx, f.alice.ID, f.alice.ID)
	assert.ErrorIs(t, err, errs.ErrSelfRequest)

	_, err = f.svc.SendRequestByEmail(ctx, f.alice.ID, "nobody@example.com")
	assert.ErrorIs(t, err, errs.ErrUserNotFound)
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))

	_, err = f.svc.SendRequestByEmail(ctx, f.alice.ID, "  ")
	assert.ErrorIs(t, err, errs.ErrMissingIdentifier)
}

func TestSendRequest_ByEmailNotifiesBothParties(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	// Given / When
	fr, err := f.svc.SendRequestByEmail(context.Background(), f.alice.ID, "bob@example.com")

	// Then
	req.NoError(err)
	req.Equal(models.StatusPending, fr.Status)
	req.Equal(f.alice.ID, fr.FromUserID)
	req.Equal(f.bob.ID, fr.ToUserID)
	req.Len(f.notifier.sent, 1)
	req.Equal(models.EventNewFriendRequest, f.notifier.sent[0].event.Type)
	req.ElementsMatch([]string{f.alice.ID, f.bob.ID}, f.notifier.sent[0].users)
}

func TestSendRequest_ReverseWhilePendingConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.SendRequest(ctx, f.alice.ID, f.bob.ID)
	require.NoError(t, err)

	_, err = f.svc.SendRequest(ctx, f.bob.ID, f.alice.ID)
	assert.ErrorIs(t, err, errs.ErrDuplicateRequest)
	assert.Equal(t, errs.KindConflict, errs.KindOf(err))

	_, err = f.svc.SendRequest(ctx, f.alice.ID, f.bob.ID)
	assert.ErrorIs(t, err, errs.ErrDuplicateRequest)
}

func TestSendRequest_RejectedIsRevivedInPlace(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()

	// Given
	first, err := f.svc.SendRequest(ctx, f.alice.ID, f.bob.ID)
	req.NoError(err)
	_, err = f.svc.Respond(ctx, first.ID, f.bob.ID, models.StatusRejected)
	req.NoError(err)

	// When
	revived, err := f.svc.SendRequest(ctx, f.bob.ID, f.alice.ID)

	// Then
	req.NoError(err)
	req.Equal(first.ID, revived.ID)
	req.Equal(f.bob.ID, revived.FromUserID)
	req.Equal(f.alice.ID, revived.ToUserID)
	req.Equal(models.StatusPending, revived.Status)
	req.EqualValues(1, countRows(t, f.store, &models.FriendRequest{}))
}

func TestRespond_AcceptWritesBothFriendRows(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()

	fr, err := f.svc.SendRequest(ctx, f.alice.ID, f.bob.ID)
	req.NoError(err)

	accepted, err := f.svc.Respond(ctx, fr.ID, f.bob.ID, models.StatusAccepted)
	req.NoError(err)
	req.Equal(models.StatusAccepted, accepted.Status)

	for _, pair := range [][2]string{{f.alice.ID, f.bob.ID}, {f.bob.ID, f.alice.ID}} {
		ok, err := f.svc.AreFriends(ctx, pair[0], pair[1])
		req.NoError(err)
		req.True(ok)
	}

	_, err = f.svc.SendRequest(ctx, f.bob.ID, f.alice.ID)
	req.ErrorIs(err, errs.ErrAlreadyFriends)

	friends, err := f.svc.ListFriends(ctx, f.alice.ID)
	req.NoError(err)
	req.Len(friends, 1)
	req.Equal("bob", friends[0].Friend.Name)

	req.Equal([]string{models.EventNewFriendRequest, models.EventRespondFriendReq}, f.notifier.types())
}

func TestRespond_Guards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	fr, err := f.svc.SendRequest(ctx, f.alice.ID, f.bob.ID)
	require.NoError(t, err)

	_, err = f.svc.Respond(ctx, "missing", f.bob.ID, models.StatusAccepted)
	assert.ErrorIs(t, err, errs.ErrRequestNotFound)

	// the sender is not the addressed recipient
	_, err = f.svc.Respond(ctx, fr.ID, f.alice.ID, models.StatusAccepted)
	assert.ErrorIs(t, err, errs.ErrRequestNotFound)

	_, err = f.svc.Respond(ctx, fr.ID, f.bob.ID, models.RequestStatus("maybe"))
	assert.ErrorIs(t, err, errs.ErrInvalidDecision)

	_, err = f.svc.Respond(ctx, fr.ID, f.bob.ID, models.StatusRejected)
	require.NoError(t, err)
	_, err = f.svc.Respond(ctx, fr.ID, f.bob.ID, models.StatusAccepted)
	assert.ErrorIs(t, err, errs.ErrAlreadyResolved)
	assert.EqualValues(t, 0, countRows(t, f.store, &models.Friend{}))
}

func TestRespond_ConcurrentAcceptsResolveOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	fr, err := f.svc.SendRequest(ctx, f.alice.ID, f.bob.ID)
	require.NoError(t, err)

	const callers = 8
	results := make(chan error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Respond(ctx, fr.ID, f.bob.ID, models.StatusAccepted)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, errs.ErrAlreadyResolved)
	}
	assert.Equal(t, 1, succeeded)
	assert.EqualValues(t, 2, countRows(t, f.store, &models.Friend{}))
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	fr, err := f.svc.SendRequest(ctx, f.alice.ID, f.bob.ID)
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, fr.ID, f.bob.ID)
	assert.ErrorIs(t, err, errs.ErrNotRequestSender)
	assert.Equal(t, errs.KindUnauthorized, errs.KindOf(err))

	_, err = f.svc.Cancel(ctx, "missing", f.alice.ID)
	assert.ErrorIs(t, err, errs.ErrRequestNotFound)

	cancelled, err := f.svc.Cancel(ctx, fr.ID, f.alice.ID)
	require.NoError(t, err)
	assert.Equal(t, fr.ID, cancelled.ID)
	assert.EqualValues(t, 0, countRows(t, f.store, &models.FriendRequest{}))
	assert.Equal(t, models.EventRemoveFriendReq, f.notifier.types()[1])

	// the pair is free again
	_, err = f.svc.SendRequest(ctx, f.bob.ID, f.alice.ID)
	assert.NoError(t, err)
}

func TestCancel_AcceptedRequestIsKept(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	fr, err := f.svc.SendRequest(ctx, f.alice.ID, f.bob.ID)
	require.NoError(t, err)
	_, err = f.svc.Respond(ctx, fr.ID, f.bob.ID, models.StatusAccepted)
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, fr.ID, f.alice.ID)
	assert.ErrorIs(t, err, errs.ErrAlreadyResolved)
	assert.EqualValues(t, 1, countRows(t, f.store, &models.FriendRequest{}))
}

func TestListIncomingAndOutgoing(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()
	carol := storagetest.SeedUser(t, f.store, "carol")

	_, err := f.svc.SendRequest(ctx, f.alice.ID, f.bob.ID)
	req.NoError(err)
	_, err = f.svc.SendRequest(ctx, carol.ID, f.bob.ID)
	req.NoError(err)

	incoming, err := f.svc.ListIncoming(ctx, f.bob.ID)
	req.NoError(err)
	req.Len(incoming, 2)
	req.Equal("alice", incoming[0].FromUser.Name)
	req.Equal("carol", incoming[1].FromUser.Name)

	outgoing, err := f.svc.ListOutgoing(ctx, f.alice.ID)
	req.NoError(err)
	req.Len(outgoing, 1)
	req.Equal("bob", outgoing[0].ToUser.Name)
}
