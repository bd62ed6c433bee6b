// Package realtime fans scraper progress events out to SSE subscribers.
// In a single-instance deployment the in-process channel is sufficient;
// when REDIS_EVENTS_ENABLED is set, events are also republished through
// Redis so a second API instance's subscribers see the same session
// (§9 "Multi-instance fan-out").
package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/silverfox/cao-engine/internal/domain"
	"github.com/silverfox/cao-engine/internal/metrics"
)

const redisChannel = "cao-engine:scraper-events"

// Broker manages SSE connections and broadcasts scraper events.
type Broker struct {
	logger *slog.Logger

	subscribers map[string]map[*Subscriber]struct{}
	mu          sync.RWMutex

	events chan domain.ScraperEvent
	done   chan struct{}

	redis *redis.Client
}

// Subscriber represents an SSE client connection to one scraper session.
type Subscriber struct {
	ID       string
	Messages chan []byte
	Done     chan struct{}
}

// NewBroker creates a broker. redisClient may be nil, in which case
// broadcast stays in-process only.
func NewBroker(logger *slog.Logger, redisClient *redis.Client) *Broker {
	return &Broker{
		logger:      logger,
		subscribers: make(map[string]map[*Subscriber]struct{}),
		events:      make(chan domain.ScraperEvent, 1000),
		done:        make(chan struct{}),
		redis:       redisClient,
	}
}

// Start begins the broadcast loop, plus a Redis subscription loop when a
// client was configured.
func (b *Broker) Start() {
	go b.broadcastLoop()
	if b.redis != nil {
		go b.redisSubscribeLoop()
	}
	b.logger.Info("sse_broker_started")
}

// Stop gracefully shuts down the broker.
func (b *Broker) Stop() {
	close(b.done)
	b.logger.Info("sse_broker_stopped")
}

// Subscribe adds a subscriber for a scraper session.
func (b *Broker) Subscribe(sessionID string, sub *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subscribers[sessionID] == nil {
		b.subscribers[sessionID] = make(map[*Subscriber]struct{})
	}
	b.subscribers[sessionID][sub] = struct{}{}

	metrics.SSEConnectionsActive.Inc()
	b.logger.Debug("sse_subscriber_added", slog.String("session_id", sessionID), slog.String("subscriber_id", sub.ID))
}

// Unsubscribe removes a subscriber.
func (b *Broker) Unsubscribe(sessionID string, sub *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if subs, ok := b.subscribers[sessionID]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(b.subscribers, sessionID)
		}
	}

	metrics.SSEConnectionsActive.Dec()
	b.logger.Debug("sse_subscriber_removed", slog.String("session_id", sessionID), slog.String("subscriber_id", sub.ID))
}

// Broadcast sends an event to all subscribers of a scraper session, and
// republishes it through Redis if configured, so instances other than
// the one running the orchestrator can still stream progress.
func (b *Broker) Broadcast(event domain.ScraperEvent) {
	select {
	case b.events <- event:
	default:
		b.logger.Warn("sse_event_dropped_queue_full", slog.String("session_id", event.SessionID))
	}

	if b.redis != nil {
		data, err := json.Marshal(event)
		if err != nil {
			b.logger.Error("sse_event_marshal_error", slog.String("error", err.Error()))
			return
		}
		if err := b.redis.Publish(context.Background(), redisChannel, data).Err(); err != nil {
			b.logger.Warn("redis_publish_failed", slog.String("error", err.Error()))
		}
	}
}

func (b *Broker) redisSubscribeLoop() {
	pubsub := b.redis.Subscribe(context.Background(), redisChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-b.done:
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var event domain.ScraperEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				b.logger.Error("redis_event_unmarshal_error", slog.String("error", err.Error()))
				continue
			}
			select {
			case b.events <- event:
			default:
			}
		}
	}
}

func (b *Broker) broadcastLoop() {
	for {
		select {
		case <-b.done:
			return
		case event := <-b.events:
			b.broadcastEvent(event)
		}
	}
}

func (b *Broker) broadcastEvent(event domain.ScraperEvent) {
	b.mu.RLock()
	subs := b.subscribers[event.SessionID]
	count := len(subs)
	b.mu.RUnlock()

	if count == 0 {
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("sse_event_marshal_error", slog.String("error", err.Error()))
		return
	}
	message := formatSSE(event.Type, data)

	b.mu.RLock()
	for sub := range b.subscribers[event.SessionID] {
		select {
		case sub.Messages <- message:
		default:
		}
	}
	b.mu.RUnlock()

	metrics.SSESubscribersPerSession.Observe(float64(count))
	b.logger.Debug("sse_event_broadcast",
		slog.String("session_id", event.SessionID),
		slog.String("event_type", event.Type),
		slog.Int("subscribers", count),
	)
}

func formatSSE(eventType string, data []byte) []byte {
	result := make([]byte, 0, len(eventType)+len(data)+20)
	result = append(result, "event: "...)
	result = append(result, eventType...)
	result = append(result, '\n')
	result = append(result, "data: "...)
	result = append(result, data...)
	result = append(result, '\n', '\n')
	return result
}

// Stats returns broker statistics for the debug endpoint.
func (b *Broker) Stats() BrokerStats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	total := 0
	sessionStats := make([]SessionSubscribers, 0, len(b.subscribers))
	for sessionID, subs := range b.subscribers {
		count := len(subs)
		total += count
		sessionStats = append(sessionStats, SessionSubscribers{SessionID: sessionID, Subscribers: count})
	}

	return BrokerStats{TotalConnections: total, Sessions: sessionStats}
}

// BrokerStats for debug endpoints.
type BrokerStats struct {
	TotalConnections int                  `json:"total_connections"`
	Sessions         []SessionSubscribers `json:"sessions"`
}

type SessionSubscribers struct {
	SessionID   string `json:"session_id"`
	Subscribers int    `json:"subscribers"`
}
