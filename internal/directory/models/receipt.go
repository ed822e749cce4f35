package models

import (
	"encoding/json"

	id "zapgate/pkg/domain"
)

// PaymentIntent is the submitter's declaration of what they are paying for:
// one entry, one amount. A serialized copy is embedded in the receipt's
// description field, which is what binds a payment to its submission.
type PaymentIntent struct {
	Pubkey     id.Pubkey   `json:"pubkey"`
	EntryKey   id.EntryKey `json:"entry_key"`
	AmountMsat int64       `json:"amount_msat"`
	CreatedAt  int64       `json:"created_at"`
	Content    string      `json:"content,omitempty"`
}

// Encode serializes the intent for invoice description binding.
func (p PaymentIntent) Encode() ([]byte, error) {
	return json.Marshal(p)
}

// ZapReceipt is the payment proof pushed back to the gateway after an
// invoice settles. Never mutated after construction.
type ZapReceipt struct {
	// Issuer must equal the configured payment-collecting pubkey.
	Issuer id.Pubkey `json:"issuer"`
	// SettlementRef identifies the settled invoice.
	SettlementRef id.SettlementRef `json:"settlement_ref"`
	// Bolt11 is the paid payment request.
	Bolt11 string `json:"bolt11"`
	// Description carries the serialized original PaymentIntent.
	Description string `json:"description"`
	// Preimage proves settlement when the backend exposes it.
	Preimage  string `json:"preimage,omitempty"`
	CreatedAt int64  `json:"created_at"`
}

// EmbeddedIntent parses the original payment intent out of the receipt
// description. Returns an error for receipts whose binding is unreadable.
func (r ZapReceipt) EmbeddedIntent() (PaymentIntent, error) {
	var intent PaymentIntent
	if err := json.Unmarshal([]byte(r.Description), &intent); err != nil {
		return PaymentIntent{}, err
	}
	return intent, nil
}

// EntryKey extracts the referenced entry key from the embedded intent.
// Empty when the binding is malformed.
func (r ZapReceipt) EntryKey() id.EntryKey {
	intent, err := r.EmbeddedIntent()
	if err != nil {
		return ""
	}
	return intent.EntryKey
}
