package chathub

import (
	"friendchat/backend/internal/models"

	"github.com/samber/lo"
)

// UserNotifier delivers events to every live session of a user through the user's
// personal room. Users without sessions simply have no room members.
type UserNotifier struct {
	rooms Broadcaster
}

func NewUserNotifier(rooms Broadcaster) *UserNotifier {
	return &UserNotifier{rooms: rooms}
}

func (n *UserNotifier) NotifyUsers(event models.Event, userIDs ...string) {
	for _, userID := range lo.Uniq(userIDs) {
		n.rooms.Publish(UserRoom(userID), event)
	}
}
