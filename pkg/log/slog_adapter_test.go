package log

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSlogAdapter(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	adapter := NewSlogAdapter(slog.New(handler))

	adapter.Log(Event{
		Timestamp:   time.Now(),
		SessionID:   "s1",
		Interface:   "wlan1",
		Category:    CategoryState,
		StateChange: &StateChangeEvent{OldState: "ENABLING", NewState: "ENABLED"},
	})

	out := buf.String()
	assert.Contains(t, out, "state change")
	assert.Contains(t, out, "old=ENABLING")
	assert.Contains(t, out, "new=ENABLED")
	assert.Contains(t, out, "iface=wlan1")

	buf.Reset()
	adapter.Log(Event{
		Timestamp: time.Now(),
		SessionID: "s1",
		Interface: "wlan1",
		Instance:  "wlan1_1",
		Category:  CategoryTimer,
		Timer: &TimerEvent{
			Name:           "softApShutdownTimeout:wlan1_1",
			Action:         "arm",
			DurationMillis: 300000,
		},
	})

	out = buf.String()
	assert.Contains(t, out, "timer event")
	assert.Contains(t, out, "action=arm")
	assert.Contains(t, out, "duration_ms=300000")
}

func TestSlogAdapterNilLogger(t *testing.T) {
	adapter := NewSlogAdapter(nil)
	assert.NotNil(t, adapter)
	// Must not panic.
	adapter.Log(Event{Timestamp: time.Now(), SessionID: "s1", Category: CategoryState})
}
