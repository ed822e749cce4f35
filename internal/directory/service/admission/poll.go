package admission

import (
	"time"

	"zapgate/internal/directory/models"
	id "zapgate/pkg/domain"
)

// watchSettlement starts the settlement poll loop for one issued invoice.
// The loop sleeps PollInterval between lookups and terminates on the first
// of: settlement observed, invoice expiry reached, the entry gone from the
// store, or service shutdown. Store presence is checked before every
// gateway call so a resolved entry costs at most one wasted tick, never a
// wasted lookup.
func (s *Service) watchSettlement(key id.EntryKey, ref id.SettlementRef, expiresAt time.Time) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.price.PollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-s.pollCtx.Done():
				return
			case <-ticker.C:
			}

			entry, err := s.pending.Get(s.pollCtx, key)
			if err != nil || entry.State != models.StateInvoiceIssued {
				return // resolved by receipt delivery or the reaper
			}

			settlement, err := s.gateway.LookupSettlement(s.pollCtx, ref)
			if err != nil {
				s.logger.WarnContext(s.pollCtx, "settlement lookup failed",
					"entry_key", key.String(),
					"settlement_ref", ref.String(),
					"error", err,
				)
				continue
			}

			switch {
			case settlement.Settled:
				s.OnSettlementObserved(s.pollCtx, ref, settlement.Preimage)
				return
			case settlement.Expired, s.now().After(expiresAt):
				// The reaper owns reclamation; the loop just stops
				// watching a dead invoice.
				return
			}
		}
	}()
}
