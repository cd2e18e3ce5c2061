package chathub_test

import (
	"sync"
	"testing"
	"time"

	"friendchat/backend/internal/models"

	"github.com/stretchr/testify/require"
)

type MockClient struct {
	sessionID   string
	userID      string
	displayName string
	RecvChannel chan models.Event

	closeOnce sync.Once
	closed    chan struct{}
}

func newMockClient(userID, sessionID string) *MockClient {
	return &MockClient{
		sessionID:   sessionID,
		userID:      userID,
		displayName: userID,
		RecvChannel: make(chan models.Event, 64),
		closed:      make(chan struct{}),
	}
}

func (c *MockClient) GetSessionID() string                { return c.sessionID }
func (c *MockClient) GetUserID() string                   { return c.userID }
func (c *MockClient) GetDisplayName() string              { return c.displayName }
func (c *MockClient) GetSendChannel() chan<- models.Event { return c.RecvChannel }

func (c *MockClient) Run() {
	// Not needed for testing
}

func (c *MockClient) Close() {
	c.closeOnce.Do(func() { close(c.closed) })
}

func (c *MockClient) IsClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// drain returns every event buffered so far.
func (c *MockClient) drain() []models.Event {
	var events []models.Event
	for {
		select {
		case e := <-c.RecvChannel:
			events = append(events, e)
		default:
			return events
		}
	}
}

// next waits for the next event of the given type, skipping others.
func (c *MockClient) next(t *testing.T, eventType string) models.Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case e := <-c.RecvChannel:
			if e.Type == eventType {
				return e
			}
		case <-deadline:
			require.FailNow(t, "timed out waiting for event", eventType)
		}
	}
}

func eventTypes(events []models.Event) []string {
	types := make([]string, 0, len(events))
	for _, e := range events {
		types = append(types, e.Type)
	}
	return types
}
