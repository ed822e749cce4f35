package lightning

import (
	"context"
	"time"

	id "zapgate/pkg/domain"
)

// Invoice is what the payment backend returns for a creation request.
type Invoice struct {
	// PaymentRequest is the human-payable bolt11 string.
	PaymentRequest string
	// SettlementRef is the payment hash identifying the invoice's
	// settlement lifecycle.
	SettlementRef id.SettlementRef
	ExpiresAt     time.Time
}

// Settlement is the on-demand settlement status of one invoice.
type Settlement struct {
	Settled  bool
	Expired  bool
	Preimage string
}

// CreateRequest describes the invoice to create. DescriptionHash binds the
// invoice to the serialized payment intent; Memo is free-form context for
// the payer's wallet.
type CreateRequest struct {
	AmountMsat      int64
	DescriptionHash []byte
	Memo            string
	Expiry          time.Duration
}

// Gateway is the payment backend boundary. Settlement itself happens out of
// process; the controller only creates invoices and asks about them.
type Gateway interface {
	CreateInvoice(ctx context.Context, req CreateRequest) (Invoice, error)
	LookupSettlement(ctx context.Context, ref id.SettlementRef) (Settlement, error)
}
