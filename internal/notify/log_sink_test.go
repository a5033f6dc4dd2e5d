package notify

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogSinkWritesPayload(t *testing.T) {
	var buf bytes.Buffer
	sink := LogSink{Logger: slog.New(slog.NewJSONHandler(&buf, nil))}

	err := sink.Send(context.Background(), WelcomePayload{
		Kind:        KindWelcome,
		UserID:      "user-1",
		Email:       "fern@example.com",
		DisplayName: "Fern",
		OccurredAt:  time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `"msg":"welcome notification"`)
	assert.Contains(t, out, `"user_id":"user-1"`)
	assert.Contains(t, out, `"display_name":"Fern"`)
}

func TestSinkFuncNilIsNoop(t *testing.T) {
	var f SinkFunc
	require.NoError(t, f.Send(context.Background(), WelcomePayload{}))

	called := false
	f = func(context.Context, WelcomePayload) error {
		called = true
		return nil
	}
	require.NoError(t, f.Send(context.Background(), WelcomePayload{}))
	assert.True(t, called)
}
