package service

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-risk-api/internal/dto"
)

func TestAlertBroadcasterLocalDelivery(t *testing.T) {
	broadcaster := NewAlertBroadcaster(nil, "", nil, zerolog.Nop())

	events, cleanup := broadcaster.Subscribe("session-a")
	other, cleanupOther := broadcaster.Subscribe("session-b")
	defer cleanupOther()

	broadcaster.Publish(context.Background(), dto.AlertStreamEvent{
		Kind:         dto.StreamNotificationCreated,
		SessionID:    "session-a",
		Notification: dto.NotificationResponse{StudentID: "S001", Subject: "Academic Probation - CRITICAL"},
	})

	select {
	case event := <-events:
		require.Equal(t, dto.StreamNotificationCreated, event.Kind)
		require.Equal(t, "S001", event.Notification.StudentID)
		require.False(t, event.At.IsZero())
	case <-time.After(time.Second):
		t.Fatal("expected event for subscribed session")
	}

	select {
	case <-other:
		t.Fatal("event leaked to another session")
	default:
	}

	cleanup()
	cleanup()
	_, open := <-events
	require.False(t, open)
}

func TestAlertBroadcasterFansOutThroughRedis(t *testing.T) {
	mini, err := miniredis.Run()
	require.NoError(t, err)
	defer mini.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	publisher := NewAlertBroadcaster(redis.NewClient(&redis.Options{Addr: mini.Addr()}), "gema:test", nil, zerolog.Nop())
	receiver := NewAlertBroadcaster(redis.NewClient(&redis.Options{Addr: mini.Addr()}), "gema:test", nil, zerolog.Nop())
	receiver.Start(ctx)

	events, cleanup := receiver.Subscribe("session-a")
	defer cleanup()

	event := dto.AlertStreamEvent{
		Kind:         dto.StreamNotificationAcknowledged,
		SessionID:    "session-a",
		Notification: dto.NotificationResponse{StudentID: "S002", Index: 1},
	}

	require.Eventually(t, func() bool {
		publisher.Publish(ctx, event)
		select {
		case received := <-events:
			return received.Kind == dto.StreamNotificationAcknowledged && received.Notification.StudentID == "S002"
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}
