package admission

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"zapgate/internal/directory/metrics"
	"zapgate/internal/directory/models"
	"zapgate/internal/directory/service/receipt"
	"zapgate/internal/lightning"
	"zapgate/internal/notify"
	"zapgate/internal/trust"
	dErrors "zapgate/pkg/domain-errors"
	id "zapgate/pkg/domain"
	"zapgate/pkg/platform/sentinel"
)

// PendingStore is the authoritative table of entries awaiting payment. All
// state transitions go through it; Resolve is the compare-and-transition
// that decides races between confirmation paths and expiry.
type PendingStore interface {
	Put(ctx context.Context, entry *models.PendingEntry) error
	Get(ctx context.Context, key id.EntryKey) (models.PendingEntry, error)
	KeyBySettlement(ctx context.Context, ref id.SettlementRef) (id.EntryKey, error)
	AttachInvoice(ctx context.Context, key id.EntryKey, inv models.Invoice, intent models.PaymentIntent, now time.Time) error
	Resolve(ctx context.Context, key id.EntryKey, target models.EntryState, now time.Time) (models.PendingEntry, error)
	Sweep(ctx context.Context, now time.Time, timeout time.Duration) []models.PendingEntry
	Len(ctx context.Context) int
}

// SettledStore remembers entry keys that already paid, making resubmission
// after settlement idempotent.
type SettledStore interface {
	MarkSettled(ctx context.Context, key id.EntryKey, ttl time.Duration) error
	IsSettled(ctx context.Context, key id.EntryKey) (bool, error)
}

// Sink receives admitted listings. The direct-store and forward-to-relay
// deployment variants are both just Sink implementations picked at
// construction.
type Sink interface {
	Publish(ctx context.Context, listing models.AdmittedListing) error
}

// Notifier receives lifecycle notifications. Satisfied by notify.Bus.
type Notifier interface {
	Publish(n notify.Notification)
}

// PriceSchedule is the immutable payment policy for directory entries.
type PriceSchedule struct {
	// AmountMsat is the exact required payment in millisatoshis.
	AmountMsat int64
	// PaymentTimeout bounds how long a pending entry may sit unconfirmed
	// before the reaper reclaims it.
	PaymentTimeout time.Duration
	// InvoiceExpiry is handed to the payment backend at creation.
	InvoiceExpiry time.Duration
	// PollInterval is the settlement poll loop's sleep between lookups.
	PollInterval time.Duration
	// SettledTTL bounds how long a settled key admits free resubmission.
	SettledTTL time.Duration
}

// DefaultPriceSchedule: 1000 sats, five-minute windows, 5s polls.
func DefaultPriceSchedule() PriceSchedule {
	return PriceSchedule{
		AmountMsat:     1_000_000,
		PaymentTimeout: 5 * time.Minute,
		InvoiceExpiry:  5 * time.Minute,
		PollInterval:   5 * time.Second,
		SettledTTL:     24 * time.Hour,
	}
}

// Service is the payment-gated admission controller. It coordinates the
// trust oracle, the invoice gateway, both settlement confirmation paths and
// the expiry reaper against the pending store, admitting each entry key at
// most once.
//
// Concurrency contract: the pending store serializes per-entry transitions;
// no store lock is ever held across a call into the gateway or the sink.
// Each issued invoice gets its own settlement poll goroutine, cancelled by
// the entry leaving the store or by Close.
type Service struct {
	price     PriceSchedule
	collector id.Pubkey

	oracle    trust.Oracle
	gateway   lightning.Gateway
	pending   PendingStore
	settled   SettledStore
	sink      Sink
	validator *receipt.Validator

	logger   *slog.Logger
	notifier Notifier
	metrics  *metrics.Metrics
	now      func() time.Time

	pollCtx    context.Context
	pollCancel context.CancelFunc
	wg         sync.WaitGroup
}

// Option configures the service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithNotifier(notifier Notifier) Option {
	return func(s *Service) { s.notifier = notifier }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides the time source. Tests only.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New wires the admission controller. The sink selects the deployment
// variant (local store or relay forwarder).
func New(
	oracle trust.Oracle,
	gateway lightning.Gateway,
	pending PendingStore,
	settled SettledStore,
	sink Sink,
	collector id.Pubkey,
	price PriceSchedule,
	opts ...Option,
) (*Service, error) {
	if oracle == nil || gateway == nil || pending == nil || settled == nil || sink == nil {
		return nil, fmt.Errorf("oracle, gateway, pending store, settled store and sink are required")
	}
	if collector.IsNil() {
		return nil, fmt.Errorf("collector pubkey is required")
	}
	if price.AmountMsat <= 0 {
		return nil, fmt.Errorf("price amount must be positive")
	}

	pollCtx, pollCancel := context.WithCancel(context.Background())
	svc := &Service{
		price:      price,
		collector:  collector,
		oracle:     oracle,
		gateway:    gateway,
		pending:    pending,
		settled:    settled,
		sink:       sink,
		validator:  receipt.NewValidator(collector, price.AmountMsat),
		logger:     slog.Default(),
		now:        time.Now,
		pollCtx:    pollCtx,
		pollCancel: pollCancel,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Close cancels in-flight settlement polls and waits for them to stop.
func (s *Service) Close() {
	s.pollCancel()
	s.wg.Wait()
}

// SubmitResult is the caller-visible outcome of a submission.
type SubmitResult struct {
	Admitted           bool
	EntryKey           id.EntryKey
	RequiredAmountMsat int64
}

// Submit validates the listing and runs the trust check. Trusted submitters
// are admitted immediately without a pending entry; an untrusted submitter
// whose key already settled is re-admitted without re-charging; everyone
// else gets a pending entry and a payment-required result.
func (s *Service) Submit(ctx context.Context, listing models.Listing) (SubmitResult, error) {
	if err := listing.Validate(); err != nil {
		s.recordSubmission("rejected")
		return SubmitResult{}, err
	}
	if listing.Status == "" {
		listing.Status = models.StatusPending
	}
	listing.EntryKey = listing.Key()

	trusted, err := s.oracle.IsTrusted(ctx, listing.Pubkey)
	if err != nil {
		// Fail closed: an unreachable oracle routes through payment.
		s.logger.WarnContext(ctx, "trust oracle lookup failed, treating as untrusted",
			"pubkey", listing.Pubkey.String(),
			"error", err,
		)
		trusted = false
	}

	if trusted {
		if err := s.admit(ctx, listing, models.AdmittedTrusted, ""); err != nil {
			s.recordSubmission("error")
			return SubmitResult{}, err
		}
		s.recordSubmission("trusted")
		return SubmitResult{Admitted: true, EntryKey: listing.EntryKey}, nil
	}

	alreadySettled, err := s.settled.IsSettled(ctx, listing.EntryKey)
	if err != nil {
		s.logger.WarnContext(ctx, "settled-set lookup failed",
			"entry_key", listing.EntryKey.String(),
			"error", err,
		)
	}
	if alreadySettled {
		if err := s.admit(ctx, listing, models.AdmittedPaid, ""); err != nil {
			s.recordSubmission("error")
			return SubmitResult{}, err
		}
		s.recordSubmission("resubmitted")
		return SubmitResult{Admitted: true, EntryKey: listing.EntryKey}, nil
	}

	entry := models.NewPendingEntry(listing, s.now())
	if err := s.pending.Put(ctx, entry); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			s.recordSubmission("duplicate")
			return SubmitResult{}, dErrors.New(dErrors.CodeConflict, "a submission is already pending under this entry key")
		}
		s.recordSubmission("error")
		return SubmitResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record pending entry")
	}
	s.updatePendingGauge(ctx)
	s.recordSubmission("payment_required")

	return SubmitResult{
		EntryKey:           listing.EntryKey,
		RequiredAmountMsat: s.price.AmountMsat,
	}, nil
}

// RequestInvoice creates an invoice for a pending entry. The declared
// amount must equal the configured price exactly; any mismatch fails before
// the gateway is called. Gateway failure leaves the entry in submitted so
// the caller can retry.
func (s *Service) RequestInvoice(ctx context.Context, key id.EntryKey, amountMsat int64) (models.Invoice, error) {
	entry, err := s.pending.Get(ctx, key)
	if err != nil || entry.State != models.StateSubmitted {
		return models.Invoice{}, dErrors.New(dErrors.CodeNotFound, "no pending entry awaiting an invoice under this key")
	}

	if amountMsat != s.price.AmountMsat {
		return models.Invoice{}, dErrors.New(dErrors.CodeBadRequest,
			fmt.Sprintf("amount mismatch: require exactly %d msat", s.price.AmountMsat))
	}

	intent := models.PaymentIntent{
		Pubkey:     entry.Pubkey,
		EntryKey:   key,
		AmountMsat: amountMsat,
		CreatedAt:  s.now().Unix(),
		Content:    "Payment for directory entry: " + entry.Listing.Title,
	}
	encoded, err := intent.Encode()
	if err != nil {
		return models.Invoice{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode payment intent")
	}
	descriptionHash := sha256.Sum256(encoded)

	created, err := s.gateway.CreateInvoice(ctx, lightning.CreateRequest{
		AmountMsat:      amountMsat,
		DescriptionHash: descriptionHash[:],
		Memo:            fmt.Sprintf("Directory entry payment: %.8s...", key.String()),
		Expiry:          s.price.InvoiceExpiry,
	})
	if err != nil {
		return models.Invoice{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "invoice creation failed")
	}

	invoice := models.Invoice{
		SettlementRef:   created.SettlementRef,
		PaymentRequest:  created.PaymentRequest,
		AmountMsat:      amountMsat,
		DescriptionHash: fmt.Sprintf("%x", descriptionHash),
		ExpiresAt:       created.ExpiresAt,
	}
	if err := s.pending.AttachInvoice(ctx, key, invoice, intent, s.now()); err != nil {
		// The entry was reclaimed while the gateway call was in flight.
		// The orphaned invoice simply expires on the node.
		return models.Invoice{}, dErrors.New(dErrors.CodeNotFound, "entry no longer pending")
	}

	if s.metrics != nil {
		s.metrics.RecordInvoiceIssued()
	}
	s.watchSettlement(key, created.SettlementRef, created.ExpiresAt)

	return invoice, nil
}

// OnSettlementObserved handles a settlement seen by the poll loop. A no-op
// unless the entry is still awaiting confirmation: a late poll result
// racing a delivered receipt loses the Resolve and backs off silently.
func (s *Service) OnSettlementObserved(ctx context.Context, ref id.SettlementRef, preimage string) {
	key, err := s.pending.KeyBySettlement(ctx, ref)
	if err != nil {
		return // already resolved by another path
	}
	s.confirm(ctx, key, ref, "poll")
}

// DeliverReceipt handles an externally pushed payment receipt.
// Fire-and-forget: invalid, duplicate and late receipts are logged and
// dropped, never surfaced to the sender.
func (s *Service) DeliverReceipt(ctx context.Context, rcpt models.ZapReceipt) {
	key := rcpt.EntryKey()
	if key.IsNil() {
		s.recordReceiptRejected(string(receipt.ReasonMalformedProof))
		s.logger.WarnContext(ctx, "receipt dropped: no parseable entry binding")
		return
	}

	entry, err := s.pending.Get(ctx, key)
	if err != nil || entry.State != models.StateInvoiceIssued || entry.Intent == nil {
		return // absent or already resolved; duplicate receipts are harmless
	}

	if err := s.validator.Validate(rcpt, *entry.Intent, key); err != nil {
		var verr *receipt.ValidationError
		reason := string(receipt.ReasonMalformedProof)
		if errors.As(err, &verr) {
			reason = string(verr.Reason)
		}
		s.recordReceiptRejected(reason)
		s.logger.WarnContext(ctx, "receipt failed validation",
			"entry_key", key.String(),
			"reason", reason,
		)
		return
	}

	s.confirm(ctx, key, rcpt.SettlementRef, "receipt")
}

// ReclaimExpired removes every pending entry whose deadline passed at now,
// emitting a reclaim notification for each. Invoked by the reaper. Entries
// confirmed between the sweep and the resolve are skipped.
func (s *Service) ReclaimExpired(ctx context.Context, now time.Time) int {
	candidates := s.pending.Sweep(ctx, now, s.price.PaymentTimeout)
	reclaimed := 0
	for _, candidate := range candidates {
		resolved, err := s.pending.Resolve(ctx, candidate.Key, models.StateExpired, now)
		if err != nil {
			continue // confirmation won the race
		}
		reclaimed++
		if s.metrics != nil {
			s.metrics.RecordPaymentExpired()
		}
		s.logger.InfoContext(ctx, "pending entry expired",
			"entry_key", resolved.Key.String(),
			"pubkey", resolved.Pubkey.String(),
			"state_age", now.Sub(resolved.ArrivedAt).String(),
		)
		s.notify(notify.Notification{
			Kind:       notify.KindPaymentExpired,
			EntryKey:   resolved.Key,
			Pubkey:     resolved.Pubkey,
			AmountMsat: s.price.AmountMsat,
			At:         now,
		})
	}
	if reclaimed > 0 {
		s.updatePendingGauge(ctx)
	}
	return reclaimed
}

// confirm settles the race for one entry: the Resolve call decides a single
// winner among {receipt, poll, reaper}; losers return silently. The winner
// marks the key settled before publishing, so a failed publish can be
// healed by resubmission without re-charging.
func (s *Service) confirm(ctx context.Context, key id.EntryKey, ref id.SettlementRef, path string) {
	entry, err := s.pending.Resolve(ctx, key, models.StateConfirmed, s.now())
	if err != nil {
		return // already confirmed or expired
	}
	s.updatePendingGauge(ctx)

	if err := s.settled.MarkSettled(ctx, key, s.price.SettledTTL); err != nil {
		s.logger.ErrorContext(ctx, "failed to record settled key",
			"entry_key", key.String(),
			"error", err,
		)
	}

	s.notify(notify.Notification{
		Kind:          notify.KindPaymentConfirmed,
		EntryKey:      key,
		Pubkey:        entry.Pubkey,
		SettlementRef: ref,
		AmountMsat:    s.price.AmountMsat,
		Path:          path,
		At:            s.now(),
	})

	if err := s.admit(ctx, entry.Listing, models.AdmittedPaid, ref); err != nil {
		// Payment stands; the submitter resubmits and the settled set
		// admits them without charging again.
		s.logger.ErrorContext(ctx, "publish after payment failed, admission deferred to resubmission",
			"entry_key", key.String(),
			"error", err,
		)
	}
}

// admit builds the final record and hands it to the sink. Called with no
// store lock held.
func (s *Service) admit(ctx context.Context, listing models.Listing, via models.AdmissionPath, ref id.SettlementRef) error {
	record := models.NewAdmittedListing(listing, via, ref, s.now())
	if err := s.sink.Publish(ctx, record); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to publish admitted listing")
	}

	if s.metrics != nil {
		s.metrics.RecordAdmission(string(via))
	}
	s.notify(notify.Notification{
		Kind:          notify.KindEntryAdmitted,
		EntryKey:      listing.Key(),
		Pubkey:        listing.Pubkey,
		SettlementRef: ref,
		Path:          string(via),
		At:            s.now(),
	})
	return nil
}

func (s *Service) notify(n notify.Notification) {
	if s.notifier != nil {
		s.notifier.Publish(n)
	}
}

func (s *Service) recordSubmission(outcome string) {
	if s.metrics != nil {
		s.metrics.RecordSubmission(outcome)
	}
}

func (s *Service) recordReceiptRejected(reason string) {
	if s.metrics != nil {
		s.metrics.RecordReceiptRejected(reason)
	}
}

func (s *Service) updatePendingGauge(ctx context.Context) {
	if s.metrics != nil {
		s.metrics.SetPendingEntries(s.pending.Len(ctx))
	}
}
