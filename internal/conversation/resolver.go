// Package conversation resolves the single direct conversation between two users.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"friendchat/backend/internal/errs"
	"friendchat/backend/internal/models"
	"friendchat/backend/internal/storage"

	"github.com/samber/lo"
)

// Store is the slice of storage the resolver needs.
type Store interface {
	FindOrCreateConversation(ctx context.Context, userA, userB string) (*models.Conversation, bool, error)
	GetConversationParticipants(ctx context.Context, conversationID string) ([]string, error)
}

type Resolver struct {
	store Store
	log   *slog.Logger
}

func NewResolver(store Store, log *slog.Logger) *Resolver {
	return &Resolver{store: store, log: log}
}

// Resolve returns the id of the conversation between userA and userB, creating it on
// first contact. Losing the creation race to a concurrent caller is absorbed by one
// retry of the lookup; a second loss surfaces as Transient.
func (r *Resolver) Resolve(ctx context.Context, userA, userB string) (string, error) {
	if userA == "" || userB == "" {
		return "", errs.ErrMissingIdentifier
	}
	if userA == userB {
		return "", errs.ErrSelfConversation
	}

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		conv, created, err := r.store.FindOrCreateConversation(ctx, userA, userB)
		if err == nil {
			if created {
				r.log.Info("Conversation created", "conversation_id", conv.ID, "user_a", userA, "user_b", userB)
			}
			return conv.ID, nil
		}
		if !errors.Is(err, storage.ErrDuplicate) {
			return "", errs.Internal(fmt.Errorf("resolve conversation: %w", err))
		}
		r.log.Debug("Conversation created concurrently, retrying lookup", "user_a", userA, "user_b", userB)
		lastErr = err
	}
	return "", errs.Transient(fmt.Errorf("resolve conversation: %w", lastErr))
}

// Participants returns both participant ids of a conversation.
func (r *Resolver) Participants(ctx context.Context, conversationID string) ([]string, error) {
	ids, err := r.store.GetConversationParticipants(ctx, conversationID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, errs.ErrConversationNotFound
	}
	if err != nil {
		return nil, errs.Internal(fmt.Errorf("conversation participants: %w", err))
	}
	return ids, nil
}

// IsParticipant reports whether userID belongs to the conversation. Unknown
// conversations yield ErrConversationNotFound.
func (r *Resolver) IsParticipant(ctx context.Context, conversationID, userID string) (bool, error) {
	ids, err := r.Participants(ctx, conversationID)
	if err != nil {
		return false, err
	}
	return lo.Contains(ids, userID), nil
}
