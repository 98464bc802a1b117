package log

import "log/slog"

// SlogAdapter bridges session events to a standard slog.Logger.
// Events are emitted at Debug level with structured attributes.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a SlogAdapter emitting to the given logger.
// Passing nil uses slog.Default().
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogAdapter{logger: logger}
}

// Log emits the event as a structured debug log line.
func (a *SlogAdapter) Log(event Event) {
	attrs := []any{
		slog.String("session", event.SessionID),
		slog.String("category", event.Category.String()),
	}
	if event.Interface != "" {
		attrs = append(attrs, slog.String("iface", event.Interface))
	}
	if event.Instance != "" {
		attrs = append(attrs, slog.String("instance", event.Instance))
	}

	switch {
	case event.StateChange != nil:
		attrs = append(attrs,
			slog.String("old", event.StateChange.OldState),
			slog.String("new", event.StateChange.NewState),
		)
		if event.StateChange.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.StateChange.Reason))
		}
		a.logger.Debug("state change", attrs...)

	case event.Client != nil:
		attrs = append(attrs,
			slog.String("mac", event.Client.Mac),
			slog.Bool("connected", event.Client.Connected),
		)
		if event.Client.Blocked {
			attrs = append(attrs,
				slog.Bool("blocked", true),
				slog.String("reason", event.Client.Reason),
			)
		}
		a.logger.Debug("client event", attrs...)

	case event.Driver != nil:
		attrs = append(attrs,
			slog.String("op", event.Driver.Op),
			slog.String("error", event.Driver.Message),
		)
		a.logger.Debug("driver error", attrs...)

	case event.Timer != nil:
		attrs = append(attrs,
			slog.String("timer", event.Timer.Name),
			slog.String("action", event.Timer.Action),
		)
		if event.Timer.DurationMillis > 0 {
			attrs = append(attrs, slog.Int64("duration_ms", event.Timer.DurationMillis))
		}
		a.logger.Debug("timer event", attrs...)

	default:
		a.logger.Debug("session event", attrs...)
	}
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
