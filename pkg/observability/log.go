package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/tale/pkg/domain"
	"github.com/aretw0/tale/pkg/ports"
)

// LogSink returns an EventSink that writes each event as a structured log line.
// Ticks are logged at debug level, failures at warn, everything else at info.
func LogSink(logger *slog.Logger) ports.EventSink {
	return ports.EventSinkFunc(func(ctx context.Context, ev domain.Event) {
		attrs := []any{
			"session_id", ev.SessionID,
			"node_id", ev.NodeID,
			"generation", ev.Generation,
		}
		if ev.Choice >= 0 {
			attrs = append(attrs, "choice", ev.Choice)
		}
		if ev.Target != "" {
			attrs = append(attrs, "target", ev.Target)
		}
		if ev.Timeout {
			attrs = append(attrs, "timeout", true)
		}

		switch ev.Type {
		case domain.EventTick:
			logger.DebugContext(ctx, string(ev.Type), append(attrs, "remaining", ev.Remaining)...)
		case domain.EventCommitFailed, domain.EventRejected:
			logger.WarnContext(ctx, string(ev.Type), append(attrs, "err", ev.Error)...)
		default:
			logger.InfoContext(ctx, string(ev.Type), attrs...)
		}
	})
}
