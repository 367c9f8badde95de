package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-risk-api/internal/dto"
	"github.com/noah-isme/gema-risk-api/internal/observability"
)

const alertStreamBufferSize = 16

// AlertBroadcaster pushes notification lifecycle events to alert stream
// subscribers, fanning out through redis and nats when configured.
type AlertBroadcaster interface {
	Publish(ctx context.Context, event dto.AlertStreamEvent)
	Subscribe(sessionID string) (<-chan dto.AlertStreamEvent, func())
	Start(ctx context.Context)
}

type alertBroadcaster struct {
	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
	logger       zerolog.Logger
	broker       *alertBroker
	nodeID       string
}

type alertEnvelope struct {
	Source string               `json:"source"`
	Event  dto.AlertStreamEvent `json:"event"`
	SentAt time.Time            `json:"sent_at"`
}

type alertBroker struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan dto.AlertStreamEvent]struct{}
}

// NewAlertBroadcaster constructs the broadcaster. Either transport may be nil.
func NewAlertBroadcaster(redisClient *redis.Client, channelBase string, natsConn *nats.Conn, logger zerolog.Logger) AlertBroadcaster {
	channel := ""
	subject := ""
	if channelBase != "" {
		channel = channelBase + ":alerts"
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".alerts"
	}

	return &alertBroadcaster{
		redis:        redisClient,
		redisChannel: channel,
		nats:         natsConn,
		natsSubject:  subject,
		logger:       logger.With().Str("component", "alert_broadcaster").Logger(),
		broker: &alertBroker{
			subscribers: make(map[string]map[chan dto.AlertStreamEvent]struct{}),
		},
		nodeID: uuid.NewString(),
	}
}

func (b *alertBroadcaster) Start(ctx context.Context) {
	if b.redis != nil && b.redisChannel != "" {
		go b.consumeRedis(ctx)
	}
	if b.nats != nil && b.natsSubject != "" {
		go b.consumeNATS(ctx)
	}
}

// Publish delivers the event to local subscribers, then to the other nodes.
// Transport failures are logged and never returned.
func (b *alertBroadcaster) Publish(ctx context.Context, event dto.AlertStreamEvent) {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	b.broker.broadcast(event.SessionID, event)

	if err := b.publish(ctx, event); err != nil {
		b.logger.Warn().Err(err).Str("session_id", event.SessionID).Msg("failed to fan out alert event")
	}
}

func (b *alertBroadcaster) Subscribe(sessionID string) (<-chan dto.AlertStreamEvent, func()) {
	channel := make(chan dto.AlertStreamEvent, alertStreamBufferSize)

	b.broker.subscribe(sessionID, channel)
	observability.AlertStreamClients().Inc()

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			b.broker.unsubscribe(sessionID, channel)
			observability.AlertStreamClients().Dec()
		})
	}

	return channel, cleanup
}

func (b *alertBroadcaster) publish(ctx context.Context, event dto.AlertStreamEvent) error {
	if (b.redis == nil || b.redisChannel == "") && (b.nats == nil || b.natsSubject == "") {
		return nil
	}

	payload, err := json.Marshal(alertEnvelope{
		Source: b.nodeID,
		Event:  event,
		SentAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	if b.redis != nil && b.redisChannel != "" {
		if err := b.redis.Publish(ctx, b.redisChannel, payload).Err(); err != nil {
			return err
		}
	}

	if b.nats != nil && b.natsSubject != "" {
		if err := b.nats.Publish(b.natsSubject, payload); err != nil {
			return err
		}
	}

	return nil
}

func (b *alertBroadcaster) consumeRedis(ctx context.Context) {
	pubsub := b.redis.Subscribe(ctx, b.redisChannel)
	defer func() { _ = pubsub.Close() }()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, redis.ErrClosed) {
				return
			}
			b.logger.Error().Err(err).Msg("alert redis subscription closed")
			return
		}
		b.handleEnvelope([]byte(msg.Payload))
	}
}

func (b *alertBroadcaster) consumeNATS(ctx context.Context) {
	sub, err := b.nats.Subscribe(b.natsSubject, func(msg *nats.Msg) {
		b.handleEnvelope(msg.Data)
	})
	if err != nil {
		b.logger.Error().Err(err).Msg("failed to subscribe to nats alert subject")
		return
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			b.logger.Warn().Err(err).Msg("failed to drain alert nats subscription")
		}
	}()
}

func (b *alertBroadcaster) handleEnvelope(payload []byte) {
	var envelope alertEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		b.logger.Warn().Err(err).Msg("invalid alert event payload")
		return
	}

	if envelope.Source == b.nodeID || envelope.Event.SessionID == "" {
		return
	}

	b.broker.broadcast(envelope.Event.SessionID, envelope.Event)
}

func (b *alertBroker) subscribe(sessionID string, ch chan dto.AlertStreamEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscribers[sessionID]; !exists {
		b.subscribers[sessionID] = make(map[chan dto.AlertStreamEvent]struct{})
	}
	b.subscribers[sessionID][ch] = struct{}{}
}

func (b *alertBroker) unsubscribe(sessionID string, ch chan dto.AlertStreamEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if subscribers, ok := b.subscribers[sessionID]; ok {
		if _, present := subscribers[ch]; !present {
			return
		}
		delete(subscribers, ch)
		close(ch)
		if len(subscribers) == 0 {
			delete(b.subscribers, sessionID)
		}
	}
}

// broadcast drops the event for subscribers whose buffer is full.
func (b *alertBroker) broadcast(sessionID string, event dto.AlertStreamEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers[sessionID] {
		select {
		case ch <- event:
		default:
		}
	}
}
