package receipt

import (
	"fmt"

	"zapgate/internal/directory/models"
	id "zapgate/pkg/domain"
)

// Reason classifies why a receipt failed validation.
type Reason string

const (
	ReasonWrongIssuer      Reason = "wrong_issuer"
	ReasonMalformedProof   Reason = "malformed_proof"
	ReasonIdentityMismatch Reason = "identity_mismatch"
	ReasonAmountMismatch   Reason = "amount_mismatch"
	ReasonEntryMismatch    Reason = "entry_mismatch"
)

// ValidationError reports the first check a receipt failed.
type ValidationError struct {
	Reason Reason
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("receipt invalid (%s): %s", e.Reason, e.Detail)
}

// Validator binds a received payment proof to the original payment intent
// and entry. Pure: no state beyond the configured collector identity and
// price.
type Validator struct {
	collector  id.Pubkey
	amountMsat int64
}

// NewValidator configures the validator with the payment-collecting pubkey
// and the exact required amount in millisatoshis.
func NewValidator(collector id.Pubkey, amountMsat int64) *Validator {
	return &Validator{collector: collector, amountMsat: amountMsat}
}

// Validate runs the five mandatory checks in order, short-circuiting on the
// first failure:
//
//  1. issuer equals the configured collector
//  2. the embedded original intent parses
//  3. embedded intent's submitter equals the original request's submitter
//  4. embedded intent's amount equals the configured price exactly
//  5. embedded intent references the expected entry key
func (v *Validator) Validate(rcpt models.ZapReceipt, original models.PaymentIntent, entryKey id.EntryKey) error {
	if rcpt.Issuer != v.collector {
		return &ValidationError{Reason: ReasonWrongIssuer, Detail: "receipt not issued by the payment collector"}
	}

	embedded, err := rcpt.EmbeddedIntent()
	if err != nil {
		return &ValidationError{Reason: ReasonMalformedProof, Detail: "embedded payment intent is unparseable"}
	}

	if embedded.Pubkey != original.Pubkey {
		return &ValidationError{Reason: ReasonIdentityMismatch, Detail: "embedded intent signed by a different submitter"}
	}

	// Exact match, not >=: overpayment would leave the amount binding
	// ambiguous on resubmission.
	if embedded.AmountMsat != v.amountMsat {
		return &ValidationError{
			Reason: ReasonAmountMismatch,
			Detail: fmt.Sprintf("embedded intent quotes %d msat, require %d", embedded.AmountMsat, v.amountMsat),
		}
	}

	if embedded.EntryKey != entryKey {
		return &ValidationError{Reason: ReasonEntryMismatch, Detail: "embedded intent references a different entry"}
	}

	return nil
}
