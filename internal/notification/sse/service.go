// Package sse fans request events out to connected users over Server-Sent Events.
package sse

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"servitec_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// EventType names the SSE event line.
type EventType string

const (
	EventRequestCreated   EventType = "request_created"
	EventRequestUpdated   EventType = "request_updated"
	EventMatchesGenerated EventType = "matches_generated"
	EventQuoteUpdated     EventType = "quote_updated"
	EventRequestSnapshot  EventType = "request"

	eventConnected EventType = "connected"
	eventHeartbeat EventType = "heartbeat"
)

const (
	defaultClientBuffer      = 32
	defaultHeartbeatInterval = 25 * time.Second
)

// Event is one message pushed to a user.
type Event struct {
	Type      EventType `json:"type"`
	RequestID uuid.UUID `json:"requestId,omitempty"`
	Message   string    `json:"message,omitempty"`
	Data      any       `json:"data,omitempty"`
}

type client struct {
	userID uuid.UUID
	events chan Event
}

// Service keeps the open streams per user.
type Service struct {
	mu        sync.RWMutex
	clients   map[uuid.UUID][]*client
	log       *logger.Logger
	heartbeat time.Duration
}

func New(log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewNop()
	}
	return &Service{
		clients:   make(map[uuid.UUID][]*client),
		log:       log,
		heartbeat: defaultHeartbeatInterval,
	}
}

// SetHeartbeat changes the keep-alive interval. Non-positive disables it.
func (s *Service) SetHeartbeat(d time.Duration) { s.heartbeat = d }

func (s *Service) addClient(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c.userID] = append(s.clients[c.userID], c)
}

func (s *Service) removeClient(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()

	clients := s.clients[c.userID]
	for i, cl := range clients {
		if cl == c {
			s.clients[c.userID] = append(clients[:i], clients[i+1:]...)
			break
		}
	}
	if len(s.clients[c.userID]) == 0 {
		delete(s.clients, c.userID)
	}
}

// Subscribe registers a stream for userID. The returned func removes it.
func (s *Service) Subscribe(userID uuid.UUID) (<-chan Event, func()) {
	cl := &client{userID: userID, events: make(chan Event, defaultClientBuffer)}
	s.addClient(cl)
	return cl.events, func() { s.removeClient(cl) }
}

// Connected reports how many streams a user has open.
func (s *Service) Connected(userID uuid.UUID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients[userID])
}

// Publish sends an event to every stream of one user. Slow streams drop the event.
func (s *Service) Publish(userID uuid.UUID, event Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.clients[userID] {
		select {
		case c.events <- event:
		default:
			s.log.Warn("sse buffer full", slog.String("userId", userID.String()), slog.String("event", string(event.Type)))
		}
	}
}

// PublishMany sends the same event once to each distinct user.
func (s *Service) PublishMany(userIDs []uuid.UUID, event Event) {
	seen := make(map[uuid.UUID]struct{}, len(userIDs))
	for _, id := range userIDs {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		s.Publish(id, event)
	}
}

// Handler streams the caller's events until the connection closes.
func (s *Service) Handler(getUserID func(*gin.Context) (uuid.UUID, bool)) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := getUserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "no autorizado"})
			return
		}

		PrepareStream(c)

		events, unsubscribe := s.Subscribe(userID)
		defer unsubscribe()

		c.SSEvent(string(eventConnected), gin.H{"userId": userID})
		c.Writer.Flush()

		var beat <-chan time.Time
		if s.heartbeat > 0 {
			ticker := time.NewTicker(s.heartbeat)
			defer ticker.Stop()
			beat = ticker.C
		}

		gone := c.Request.Context().Done()
		for {
			select {
			case <-gone:
				return
			case <-beat:
				c.SSEvent(string(eventHeartbeat), "")
				c.Writer.Flush()
			case event := <-events:
				if err := Write(c, event); err != nil {
					return
				}
			}
		}
	}
}

// PrepareStream sets the event-stream headers.
func PrepareStream(c *gin.Context) {
	h := c.Writer.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
}

// Write emits one event and flushes it.
func Write(c *gin.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	c.SSEvent(string(event.Type), string(data))
	c.Writer.Flush()
	return nil
}
