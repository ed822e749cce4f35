package lightning

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	id "zapgate/pkg/domain"
)

// FakeGateway is an in-memory invoice backend for tests and local
// development. Settlement is driven explicitly via Settle/Expire.
type FakeGateway struct {
	mu       sync.Mutex
	invoices map[id.SettlementRef]*fakeInvoice

	// CreateErr, when set, makes CreateInvoice fail (gateway outage).
	CreateErr error
	// LookupErr, when set, makes LookupSettlement fail.
	LookupErr error

	created int
}

type fakeInvoice struct {
	settled   bool
	expired   bool
	preimage  string
	expiresAt time.Time
}

// NewFakeGateway creates an empty fake backend.
func NewFakeGateway() *FakeGateway {
	return &FakeGateway{invoices: make(map[id.SettlementRef]*fakeInvoice)}
}

// CreateInvoice mints a synthetic invoice with a unique settlement ref.
func (g *FakeGateway) CreateInvoice(ctx context.Context, req CreateRequest) (Invoice, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.CreateErr != nil {
		return Invoice{}, g.CreateErr
	}

	ref := id.SettlementRef(uuid.NewString())
	expiresAt := time.Now().Add(req.Expiry)
	g.invoices[ref] = &fakeInvoice{expiresAt: expiresAt}
	g.created++

	return Invoice{
		PaymentRequest: "lnbc-fake-" + ref.String(),
		SettlementRef:  ref,
		ExpiresAt:      expiresAt,
	}, nil
}

// LookupSettlement reports the invoice state as driven by Settle/Expire.
func (g *FakeGateway) LookupSettlement(ctx context.Context, ref id.SettlementRef) (Settlement, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.LookupErr != nil {
		return Settlement{}, g.LookupErr
	}

	inv, ok := g.invoices[ref]
	if !ok {
		return Settlement{Expired: true}, nil
	}
	return Settlement{Settled: inv.settled, Expired: inv.expired, Preimage: inv.preimage}, nil
}

// Settle marks an invoice paid.
func (g *FakeGateway) Settle(ref id.SettlementRef, preimage string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if inv, ok := g.invoices[ref]; ok {
		inv.settled = true
		inv.preimage = preimage
	}
}

// Expire marks an invoice canceled without payment.
func (g *FakeGateway) Expire(ref id.SettlementRef) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if inv, ok := g.invoices[ref]; ok {
		inv.expired = true
	}
}

// Created reports how many invoices were created, for call-count asserts.
func (g *FakeGateway) Created() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.created
}
