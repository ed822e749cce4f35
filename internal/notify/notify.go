package notify

import (
	"context"
	"log/slog"
	"time"

	id "zapgate/pkg/domain"
)

// Kind names a lifecycle notification emitted for logging and analytics.
type Kind string

const (
	KindEntryAdmitted    Kind = "entry_admitted"
	KindPaymentConfirmed Kind = "payment_confirmed"
	KindPaymentExpired   Kind = "payment_expired"
	KindTrustGranted     Kind = "trust_granted"
	KindTrustRevoked     Kind = "trust_revoked"
)

// Notification is emitted from the admission controller at each externally
// interesting transition. Keep it transport-agnostic so sinks can fan out.
type Notification struct {
	Kind          Kind             `json:"kind"`
	EntryKey      id.EntryKey      `json:"entry_key,omitempty"`
	Pubkey        id.Pubkey        `json:"pubkey,omitempty"`
	SettlementRef id.SettlementRef `json:"settlement_ref,omitempty"`
	AmountMsat    int64            `json:"amount_msat,omitempty"`
	Path          string           `json:"path,omitempty"`
	At            time.Time        `json:"at"`
}

// Sink receives notifications. Implementations must tolerate being called
// from the bus worker goroutine.
type Sink interface {
	Notify(ctx context.Context, n Notification) error
}

// Bus decouples emitters from sinks through a buffered channel and a single
// worker goroutine, so a slow sink never blocks an admission transition.
// Register sinks before Run.
type Bus struct {
	logger *slog.Logger
	inbox  chan Notification
	sinks  []Sink
}

// NewBus creates a bus with the given inbox capacity.
func NewBus(logger *slog.Logger, capacity int) *Bus {
	if capacity <= 0 {
		capacity = 256
	}
	return &Bus{
		logger: logger,
		inbox:  make(chan Notification, capacity),
	}
}

// Register adds a sink. Not safe to call concurrently with Run.
func (b *Bus) Register(sink Sink) {
	b.sinks = append(b.sinks, sink)
}

// Publish enqueues the notification without blocking. When the inbox is
// full the notification is dropped and counted in the log; notifications
// are observability, never correctness.
func (b *Bus) Publish(n Notification) {
	select {
	case b.inbox <- n:
	default:
		b.logger.Warn("notification inbox full, dropping",
			"kind", string(n.Kind),
			"entry_key", n.EntryKey.String(),
		)
	}
}

// Run fans notifications out to every registered sink until ctx is done.
func (b *Bus) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case n := <-b.inbox:
			for _, sink := range b.sinks {
				if err := sink.Notify(ctx, n); err != nil {
					b.logger.ErrorContext(ctx, "notification sink failed",
						"kind", string(n.Kind),
						"entry_key", n.EntryKey.String(),
						"error", err,
					)
				}
			}
		}
	}
}

// LogSink writes notifications to the structured log.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a slog-backed sink.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Notify logs the notification at info level.
func (s *LogSink) Notify(ctx context.Context, n Notification) error {
	s.logger.InfoContext(ctx, "directory notification",
		"kind", string(n.Kind),
		"entry_key", n.EntryKey.String(),
		"pubkey", n.Pubkey.String(),
		"settlement_ref", n.SettlementRef.String(),
		"amount_msat", n.AmountMsat,
		"path", n.Path,
	)
	return nil
}
