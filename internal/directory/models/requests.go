package models

import (
	dErrors "zapgate/pkg/domain-errors"
	id "zapgate/pkg/domain"
)

// SubmitListingRequest is the JSON body of a submission.
type SubmitListingRequest struct {
	Pubkey      string   `json:"pubkey"`
	EntryKey    string   `json:"entry_key,omitempty"`
	Title       string   `json:"title"`
	Summary     string   `json:"summary"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Location    string   `json:"location,omitempty"`
	Website     string   `json:"website,omitempty"`
	Contact     string   `json:"contact,omitempty"`
	Hashtags    []string `json:"hashtags,omitempty"`
	Images      []string `json:"images,omitempty"`
	CreatedAt   int64    `json:"created_at"`
}

// ToListing parses the request into a Listing. Field-level validation
// happens later in Listing.Validate; this only rejects an unparseable
// identity.
func (r SubmitListingRequest) ToListing() (Listing, error) {
	pubkey, err := id.ParsePubkey(r.Pubkey)
	if err != nil {
		return Listing{}, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid pubkey")
	}
	return Listing{
		Pubkey:      pubkey,
		EntryKey:    id.EntryKey(r.EntryKey),
		Title:       r.Title,
		Summary:     r.Summary,
		Description: r.Description,
		Category:    Category(r.Category),
		Location:    r.Location,
		Website:     r.Website,
		Contact:     r.Contact,
		Hashtags:    r.Hashtags,
		Images:      r.Images,
		CreatedAt:   r.CreatedAt,
		Status:      StatusPending,
	}, nil
}

// RequestInvoiceRequest is the JSON body of an invoice request.
type RequestInvoiceRequest struct {
	AmountMsat int64 `json:"amount_msat"`
}

// DeliverReceiptRequest is the JSON body of a pushed zap receipt.
type DeliverReceiptRequest struct {
	Issuer        string `json:"issuer"`
	SettlementRef string `json:"settlement_ref"`
	Bolt11        string `json:"bolt11"`
	Description   string `json:"description"`
	Preimage      string `json:"preimage,omitempty"`
	CreatedAt     int64  `json:"created_at"`
}

// ToReceipt converts the request to the domain receipt. No validation
// here: receipt delivery is fire-and-forget and the validator decides.
func (r DeliverReceiptRequest) ToReceipt() ZapReceipt {
	return ZapReceipt{
		Issuer:        id.Pubkey(r.Issuer),
		SettlementRef: id.SettlementRef(r.SettlementRef),
		Bolt11:        r.Bolt11,
		Description:   r.Description,
		Preimage:      r.Preimage,
		CreatedAt:     r.CreatedAt,
	}
}
