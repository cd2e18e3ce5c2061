package chathub

import "friendchat/backend/internal/models"

// Client is the interface for one live connection of a user.
// It abstracts the underlying communication mechanism, allowing the hub to manage
// different client types uniformly. A user may own several clients at once.
type Client interface {
	// GetSessionID returns the identifier of this connection.
	GetSessionID() string
	// GetUserID returns the authenticated user behind the connection.
	GetUserID() string
	// GetDisplayName is attached to outbound typing and message payloads.
	GetDisplayName() string

	// GetSendChannel returns the channel to which the hub sends events
	// intended for this specific client. It is a send-only channel.
	GetSendChannel() chan<- models.Event

	// Run starts the client's read and write pumps.
	Run()
	// Close gracefully shuts down the client's connection and associated channels.
	// It is safe to call more than once.
	Close()
}
