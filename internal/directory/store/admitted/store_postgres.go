package admitted

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"zapgate/internal/directory/models"
	id "zapgate/pkg/domain"
	"zapgate/pkg/platform/sentinel"
)

// PostgresStore persists admitted listings in PostgreSQL. This store is
// pure I/O. Admission decisions belong to the controller; by the time a
// listing reaches here the payment gate has already been cleared.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed admitted-listings store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Schema is the table this store expects. Kept here so deployments and
// integration tests create the same shape.
const Schema = `
CREATE TABLE IF NOT EXISTS admitted_listings (
	entry_key      TEXT PRIMARY KEY,
	pubkey         TEXT NOT NULL,
	category       TEXT NOT NULL,
	listing        JSONB NOT NULL,
	admitted_via   TEXT NOT NULL,
	settlement_ref TEXT NOT NULL DEFAULT '',
	admitted_at    TIMESTAMPTZ NOT NULL
)`

// Publish upserts the admitted listing. Republishing an addressable listing
// under the same entry key replaces the stored row.
func (s *PostgresStore) Publish(ctx context.Context, listing models.AdmittedListing) error {
	payload, err := json.Marshal(listing.Listing)
	if err != nil {
		return fmt.Errorf("marshal admitted listing: %w", err)
	}
	query := `
		INSERT INTO admitted_listings (entry_key, pubkey, category, listing, admitted_via, settlement_ref, admitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (entry_key) DO UPDATE SET
			listing = EXCLUDED.listing,
			admitted_via = EXCLUDED.admitted_via,
			settlement_ref = EXCLUDED.settlement_ref,
			admitted_at = EXCLUDED.admitted_at
	`
	_, err = s.db.ExecContext(ctx, query,
		listing.Listing.Key().String(),
		listing.Listing.Pubkey.String(),
		string(listing.Listing.Category),
		payload,
		string(listing.AdmittedVia),
		listing.SettlementRef.String(),
		listing.AdmittedAt,
	)
	if err != nil {
		return fmt.Errorf("publish admitted listing: %w", err)
	}
	return nil
}

// Get retrieves one admitted listing by entry key.
func (s *PostgresStore) Get(ctx context.Context, key id.EntryKey) (*models.AdmittedListing, error) {
	query := `
		SELECT listing, admitted_via, settlement_ref, admitted_at
		FROM admitted_listings
		WHERE entry_key = $1
	`
	var (
		payload []byte
		result  models.AdmittedListing
		via     string
		ref     string
	)
	row := s.db.QueryRowContext(ctx, query, key.String())
	if err := row.Scan(&payload, &via, &ref, &result.AdmittedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get admitted listing: %w", err)
	}
	if err := json.Unmarshal(payload, &result.Listing); err != nil {
		return nil, fmt.Errorf("unmarshal admitted listing: %w", err)
	}
	result.AdmittedVia = models.AdmissionPath(via)
	result.SettlementRef = id.SettlementRef(ref)
	return &result, nil
}

// ListByCategory returns admitted listings in a category, newest first.
func (s *PostgresStore) ListByCategory(ctx context.Context, category models.Category, limit int) ([]*models.AdmittedListing, error) {
	query := `
		SELECT listing, admitted_via, settlement_ref, admitted_at
		FROM admitted_listings
		WHERE category = $1
		ORDER BY admitted_at DESC
		LIMIT $2
	`
	rows, err := s.db.QueryContext(ctx, query, string(category), limit)
	if err != nil {
		return nil, fmt.Errorf("list admitted listings: %w", err)
	}
	defer rows.Close()

	var listings []*models.AdmittedListing
	for rows.Next() {
		var (
			payload []byte
			result  models.AdmittedListing
			via     string
			ref     string
		)
		if err := rows.Scan(&payload, &via, &ref, &result.AdmittedAt); err != nil {
			return nil, fmt.Errorf("scan admitted listing: %w", err)
		}
		if err := json.Unmarshal(payload, &result.Listing); err != nil {
			return nil, fmt.Errorf("unmarshal admitted listing: %w", err)
		}
		result.AdmittedVia = models.AdmissionPath(via)
		result.SettlementRef = id.SettlementRef(ref)
		listings = append(listings, &result)
	}
	return listings, rows.Err()
}
