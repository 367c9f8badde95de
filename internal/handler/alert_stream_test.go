package handler

import (
	"bufio"
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-risk-api/internal/dto"
)

func TestWriteAlertEventFraming(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)

	err := writeAlertEvent(w, dto.AlertStreamEvent{
		Kind:         dto.StreamNotificationCreated,
		SessionID:    "session-a",
		Notification: dto.NotificationResponse{StudentID: "S001", Subject: "Academic Probation - CRITICAL"},
	})
	require.NoError(t, err)

	out := buf.String()
	require.True(t, strings.HasPrefix(out, "event: notification.created\ndata: {"))
	require.True(t, strings.HasSuffix(out, "}\n\n"))
	require.Contains(t, out, `"subject":"Academic Probation - CRITICAL"`)
}

func TestWriteKeepAlive(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)

	require.NoError(t, writeKeepAlive(w))
	require.True(t, strings.HasPrefix(buf.String(), ": keep-alive "))
	require.True(t, strings.HasSuffix(buf.String(), "\n\n"))
}
