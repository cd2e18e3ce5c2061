// Package friendship drives the friend-request state machine. Request identity is the
// unordered pair of users; each transition is one read-modify-write under a row lock,
// and accepting writes both directed friendship rows in the same transaction.
package friendship

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"friendchat/backend/internal/errs"
	"friendchat/backend/internal/models"
	"friendchat/backend/internal/storage"
)

// Store is the storage surface the state machine uses.
type Store interface {
	GetUserByID(ctx context.Context, userID string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateFriendRequestByPair(ctx context.Context, userA, userB string, fn storage.RequestMutation) (*models.FriendRequest, error)
	UpdateFriendRequestByID(ctx context.Context, requestID string, fn storage.RequestMutation) (*models.FriendRequest, error)
	ListIncomingRequests(ctx context.Context, userID string) ([]models.FriendRequest, error)
	ListOutgoingRequests(ctx context.Context, userID string) ([]models.FriendRequest, error)
	ListFriends(ctx context.Context, userID string) ([]models.Friend, error)
	AreFriends(ctx context.Context, userID, friendID string) (bool, error)
}

// Notifier delivers an event to every live session of the given users. Offline users
// are skipped silently.
type Notifier interface {
	NotifyUsers(event models.Event, userIDs ...string)
}

type Service struct {
	store    Store
	notifier Notifier
	log      *slog.Logger
}

func NewService(store Store, notifier Notifier, log *slog.Logger) *Service {
	return &Service{store: store, notifier: notifier, log: log}
}

// SendRequestByEmail resolves the recipient by email and sends a request to them.
func (s *Service) SendRequestByEmail(ctx context.Context, fromUserID, toEmail string) (*models.FriendRequest, error) {
	toEmail = strings.TrimSpace(toEmail)
	if toEmail == "" {
		return nil, errs.ErrMissingIdentifier
	}
	to, err := s.store.GetUserByEmail(ctx, toEmail)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, errs.ErrUserNotFound
	}
	if err != nil {
		return nil, errs.Internal(fmt.Errorf("lookup recipient: %w", err))
	}
	return s.SendRequest(ctx, fromUserID, to.ID)
}

// SendRequest creates a pending request from -> to, or revives a rejected one for the
// pair with the new direction.
func (s *Service) SendRequest(ctx context.Context, fromUserID, toUserID string) (*models.FriendRequest, error) {
	if fromUserID == "" || toUserID == "" {
		return nil, errs.ErrMissingIdentifier
	}
	if fromUserID == toUserID {
		return nil, errs.ErrSelfRequest
	}
	if _, err := s.store.GetUserByID(ctx, toUserID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, errs.ErrUserNotFound
		}
		return nil, errs.Internal(fmt.Errorf("lookup recipient: %w", err))
	}

	req, err := withRetry(func() (*models.FriendRequest, error) {
		return s.store.UpdateFriendRequestByPair(ctx, fromUserID, toUserID, func(current *models.FriendRequest) (storage.RequestChange, error) {
			if current == nil {
				return storage.RequestChange{Save: &models.FriendRequest{
					FromUserID: fromUserID,
					ToUserID:   toUserID,
					Status:     models.StatusPending,
				}}, nil
			}
			switch current.Status {
			case models.StatusPending:
				return storage.RequestChange{}, errs.ErrDuplicateRequest
			case models.StatusAccepted:
				return storage.RequestChange{}, errs.ErrAlreadyFriends
			}
			revived := *current
			revived.FromUserID = fromUserID
			revived.ToUserID = toUserID
			revived.Status = models.StatusPending
			return storage.RequestChange{Save: &revived}, nil
		})
	})
	if err != nil {
		return nil, s.classify("send friend request", err)
	}

	s.log.Info("Friend request sent", "request_id", req.ID, "from", fromUserID, "to", toUserID)
	s.notify(models.EventNewFriendRequest, req)
	return req, nil
}

// Respond resolves a pending request addressed to responderID. Requests addressed to
// someone else are reported as not found.
func (s *Service) Respond(ctx context.Context, requestID, responderID string, decision models.RequestStatus) (*models.FriendRequest, error) {
	if requestID == "" || responderID == "" {
		return nil, errs.ErrMissingIdentifier
	}
	if decision != models.StatusAccepted && decision != models.StatusRejected {
		return nil, errs.ErrInvalidDecision
	}

	req, err := withRetry(func() (*models.FriendRequest, error) {
		return s.store.UpdateFriendRequestByID(ctx, requestID, func(current *models.FriendRequest) (storage.RequestChange, error) {
			if current == nil || current.ToUserID != responderID {
				return storage.RequestChange{}, errs.ErrRequestNotFound
			}
			if current.Status != models.StatusPending {
				return storage.RequestChange{}, errs.ErrAlreadyResolved
			}
			resolved := *current
			resolved.Status = decision
			change := storage.RequestChange{Save: &resolved}
			if decision == models.StatusAccepted {
				change.Friends = models.FriendshipRows(current.FromUserID, current.ToUserID)
			}
			return change, nil
		})
	})
	if err != nil {
		return nil, s.classify("respond to friend request", err)
	}

	s.log.Info("Friend request resolved", "request_id", req.ID, "status", req.Status)
	s.notify(models.EventRespondFriendReq, req)
	return req, nil
}

// Cancel deletes a pending request. Only its current sender may cancel it.
func (s *Service) Cancel(ctx context.Context, requestID, callerID string) (*models.FriendRequest, error) {
	if requestID == "" || callerID == "" {
		return nil, errs.ErrMissingIdentifier
	}

	req, err := withRetry(func() (*models.FriendRequest, error) {
		return s.store.UpdateFriendRequestByID(ctx, requestID, func(current *models.FriendRequest) (storage.RequestChange, error) {
			if current == nil {
				return storage.RequestChange{}, errs.ErrRequestNotFound
			}
			if current.FromUserID != callerID {
				return storage.RequestChange{}, errs.ErrNotRequestSender
			}
			if current.Status != models.StatusPending {
				return storage.RequestChange{}, errs.ErrAlreadyResolved
			}
			return storage.RequestChange{Delete: true}, nil
		})
	})
	if err != nil {
		return nil, s.classify("cancel friend request", err)
	}

	s.log.Info("Friend request cancelled", "request_id", req.ID, "from", req.FromUserID, "to", req.ToUserID)
	s.notify(models.EventRemoveFriendReq, req)
	return req, nil
}

func (s *Service) ListIncoming(ctx context.Context, userID string) ([]models.FriendRequest, error) {
	requests, err := s.store.ListIncomingRequests(ctx, userID)
	if err != nil {
		return nil, errs.Internal(fmt.Errorf("list incoming requests: %w", err))
	}
	return requests, nil
}

func (s *Service) ListOutgoing(ctx context.Context, userID string) ([]models.FriendRequest, error) {
	requests, err := s.store.ListOutgoingRequests(ctx, userID)
	if err != nil {
		return nil, errs.Internal(fmt.Errorf("list outgoing requests: %w", err))
	}
	return requests, nil
}

func (s *Service) ListFriends(ctx context.Context, userID string) ([]models.Friend, error) {
	friends, err := s.store.ListFriends(ctx, userID)
	if err != nil {
		return nil, errs.Internal(fmt.Errorf("list friends: %w", err))
	}
	return friends, nil
}

// AreFriends reports whether userID has friendID in its friend list.
func (s *Service) AreFriends(ctx context.Context, userID, friendID string) (bool, error) {
	if userID == "" || friendID == "" {
		return false, errs.ErrMissingIdentifier
	}
	ok, err := s.store.AreFriends(ctx, userID, friendID)
	if err != nil {
		return false, errs.Internal(fmt.Errorf("check friendship: %w", err))
	}
	return ok, nil
}

func (s *Service) notify(eventType string, req *models.FriendRequest) {
	if s.notifier == nil {
		return
	}
	s.notifier.NotifyUsers(models.Event{
		Type: eventType,
		Data: models.FriendRequestPayload{
			RequestID:  req.ID,
			FromUserID: req.FromUserID,
			ToUserID:   req.ToUserID,
			Status:     req.Status,
		},
	}, req.FromUserID, req.ToUserID)
}

// classify passes domain errors through and turns everything else into Transient
// (lost a unique-index race twice) or Internal.
func (s *Service) classify(op string, err error) error {
	var domain *errs.Error
	if errors.As(err, &domain) {
		return err
	}
	if errors.Is(err, storage.ErrDuplicate) {
		s.log.Warn("Friend request contention persisted after retry", "op", op, "error", err)
		return errs.Transient(fmt.Errorf("%s: %w", op, err))
	}
	return errs.Internal(fmt.Errorf("%s: %w", op, err))
}

// withRetry runs fn a second time when the first attempt lost a unique-index race.
func withRetry(fn func() (*models.FriendRequest, error)) (*models.FriendRequest, error) {
	req, err := fn()
	if errors.Is(err, storage.ErrDuplicate) {
		req, err = fn()
	}
	return req, err
}
