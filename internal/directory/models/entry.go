package models

import (
	"time"

	dErrors "zapgate/pkg/domain-errors"
	id "zapgate/pkg/domain"
)

// EntryState is the lifecycle state of a pending submission.
type EntryState string

const (
	// StateSubmitted: accepted, payment required, no invoice yet.
	StateSubmitted EntryState = "submitted"
	// StateInvoiceIssued: an invoice is attached and settlement is being
	// watched by the poll loop and by receipt delivery.
	StateInvoiceIssued EntryState = "invoice_issued"
	// StateConfirmed: payment observed, admission performed. Terminal.
	StateConfirmed EntryState = "confirmed"
	// StateExpired: deadline passed without payment. Terminal.
	StateExpired EntryState = "expired"
)

// stateTransitions encodes the monotonic lifecycle graph. There are no
// backward edges; a Submitted entry may expire without ever holding an
// invoice.
var stateTransitions = map[EntryState][]EntryState{
	StateSubmitted:     {StateInvoiceIssued, StateExpired},
	StateInvoiceIssued: {StateConfirmed, StateExpired},
	StateConfirmed:     {},
	StateExpired:       {},
}

// CanTransitionTo reports whether the lifecycle graph permits moving from
// the current state to the target.
func (s EntryState) CanTransitionTo(target EntryState) bool {
	for _, allowed := range stateTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the state has no outgoing transitions.
func (s EntryState) IsTerminal() bool {
	return len(stateTransitions[s]) == 0
}

// Invoice is the opaque handle to one payment request. Owned by exactly one
// PendingEntry; its amount is immutable once attached.
type Invoice struct {
	SettlementRef   id.SettlementRef `json:"settlement_ref"`
	PaymentRequest  string           `json:"payment_request"`
	AmountMsat      int64            `json:"amount_msat"`
	DescriptionHash string           `json:"description_hash"`
	ExpiresAt       time.Time        `json:"expires_at"`
}

// PendingEntry tracks one submission through payment.
//
// Invariants:
//   - Key -> PendingEntry is a 1:1 partial mapping in the pending store;
//     absence means never submitted, already admitted, or reclaimed
//   - Listing is immutable after construction
//   - Invoice is nil until the entry reaches StateInvoiceIssued, and its
//     amount never changes afterwards
//   - State moves only along the lifecycle graph above
type PendingEntry struct {
	Key       id.EntryKey
	Pubkey    id.Pubkey
	Listing   Listing
	State     EntryState
	Invoice   *Invoice
	Intent    *PaymentIntent
	ArrivedAt time.Time
	UpdatedAt time.Time
}

// NewPendingEntry constructs a pending entry in StateSubmitted.
func NewPendingEntry(listing Listing, now time.Time) *PendingEntry {
	return &PendingEntry{
		Key:       listing.Key(),
		Pubkey:    listing.Pubkey,
		Listing:   listing,
		State:     StateSubmitted,
		ArrivedAt: now,
		UpdatedAt: now,
	}
}

// CanAttachInvoice checks the entry accepts an invoice right now.
func (e *PendingEntry) CanAttachInvoice() error {
	if e.State != StateSubmitted {
		return dErrors.New(dErrors.CodeInvariantViolation, "entry already holds an invoice")
	}
	return nil
}

// ApplyInvoice transitions the entry to StateInvoiceIssued and records the
// invoice plus the intent it was created for. Call CanAttachInvoice first.
func (e *PendingEntry) ApplyInvoice(inv Invoice, intent PaymentIntent, now time.Time) {
	e.Invoice = &inv
	e.Intent = &intent
	e.State = StateInvoiceIssued
	e.UpdatedAt = now
}

// ExpiredBy reports whether the entry's deadline has passed at now, given
// the configured payment timeout measured from the last transition.
func (e *PendingEntry) ExpiredBy(now time.Time, timeout time.Duration) bool {
	return now.Sub(e.UpdatedAt) > timeout
}

// AdmittedListing is the final artifact handed to the admission sink once a
// submission clears the gate. Produced exactly once per entry key.
type AdmittedListing struct {
	Listing       Listing          `json:"listing"`
	AdmittedVia   AdmissionPath    `json:"admitted_via"`
	SettlementRef id.SettlementRef `json:"settlement_ref,omitempty"`
	AdmittedAt    time.Time        `json:"admitted_at"`
}

// AdmissionPath records how a listing cleared the payment gate.
type AdmissionPath string

const (
	AdmittedTrusted AdmissionPath = "trusted"
	AdmittedPaid    AdmissionPath = "paid"
)

// NewAdmittedListing flips the listing status to active and stamps the
// admission metadata.
func NewAdmittedListing(listing Listing, via AdmissionPath, ref id.SettlementRef, now time.Time) AdmittedListing {
	listing.Status = StatusActive
	return AdmittedListing{
		Listing:       listing,
		AdmittedVia:   via,
		SettlementRef: ref,
		AdmittedAt:    now,
	}
}
