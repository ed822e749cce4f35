package trust

import (
	"context"
	"sync"

	id "zapgate/pkg/domain"
)

// Oracle answers whether an identity is exempt from payment. Pure query; it
// has no side effects on admission state.
type Oracle interface {
	IsTrusted(ctx context.Context, pubkey id.Pubkey) (bool, error)
}

// StaticOracle is a mutable in-memory membership set, managed through the
// admin trust API. It backs standalone deployments with a hand-curated
// web of trust.
type StaticOracle struct {
	mu      sync.RWMutex
	members map[id.Pubkey]struct{}
}

// NewStaticOracle creates an oracle seeded with the given members.
func NewStaticOracle(members ...id.Pubkey) *StaticOracle {
	set := make(map[id.Pubkey]struct{}, len(members))
	for _, m := range members {
		set[m] = struct{}{}
	}
	return &StaticOracle{members: set}
}

// IsTrusted reports set membership.
func (o *StaticOracle) IsTrusted(ctx context.Context, pubkey id.Pubkey) (bool, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	_, ok := o.members[pubkey]
	return ok, nil
}

// Grant adds the pubkey to the set. Returns true if it was newly added.
func (o *StaticOracle) Grant(pubkey id.Pubkey) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.members[pubkey]; ok {
		return false
	}
	o.members[pubkey] = struct{}{}
	return true
}

// Revoke removes the pubkey from the set. Returns true if it was present.
func (o *StaticOracle) Revoke(pubkey id.Pubkey) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.members[pubkey]; !ok {
		return false
	}
	delete(o.members, pubkey)
	return true
}

// Len reports the membership count.
func (o *StaticOracle) Len() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.members)
}
