//go:build integration

package admitted_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"zapgate/internal/directory/models"
	"zapgate/internal/directory/store/admitted"
	id "zapgate/pkg/domain"
	"zapgate/pkg/platform/sentinel"
	"zapgate/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *admitted.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	_, err := s.postgres.DB.Exec(admitted.Schema)
	s.Require().NoError(err)
	s.store = admitted.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "admitted_listings"))
}

func (s *PostgresStoreSuite) admittedListing(key string, category models.Category) models.AdmittedListing {
	listing := models.Listing{
		Pubkey:      id.Pubkey("3bf0c63fcb93463407af97a5e5ee64fa883d107ef9e558472c4eb9aaaefa459d"),
		EntryKey:    id.EntryKey(key),
		Title:       "Corner Cafe",
		Summary:     "Espresso and pastries downtown",
		Description: "A small specialty coffee shop with single-origin beans.",
		Category:    category,
		CreatedAt:   1700000000,
	}
	return models.NewAdmittedListing(listing, models.AdmittedPaid, id.SettlementRef("hash-1"), time.Now().UTC().Truncate(time.Millisecond))
}

func (s *PostgresStoreSuite) TestPublishAndGet() {
	ctx := context.Background()
	record := s.admittedListing("cafe", models.CategoryBusiness)

	s.Require().NoError(s.store.Publish(ctx, record))

	got, err := s.store.Get(ctx, "cafe")
	s.Require().NoError(err)
	s.Equal(record.Listing.Title, got.Listing.Title)
	s.Equal(models.StatusActive, got.Listing.Status)
	s.Equal(models.AdmittedPaid, got.AdmittedVia)
	s.Equal(id.SettlementRef("hash-1"), got.SettlementRef)
	s.WithinDuration(record.AdmittedAt, got.AdmittedAt, time.Second)
}

func (s *PostgresStoreSuite) TestGetMissing() {
	_, err := s.store.Get(context.Background(), "missing")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

// Republishing under the same entry key replaces the row rather than failing,
// matching addressable-record semantics.
func (s *PostgresStoreSuite) TestPublishReplaces() {
	ctx := context.Background()

	first := s.admittedListing("cafe", models.CategoryBusiness)
	s.Require().NoError(s.store.Publish(ctx, first))

	second := s.admittedListing("cafe", models.CategoryBusiness)
	second.Listing.Title = "Corner Cafe Reloaded"
	second.AdmittedVia = models.AdmittedTrusted
	s.Require().NoError(s.store.Publish(ctx, second))

	got, err := s.store.Get(ctx, "cafe")
	s.Require().NoError(err)
	s.Equal("Corner Cafe Reloaded", got.Listing.Title)
	s.Equal(models.AdmittedTrusted, got.AdmittedVia)
}

func (s *PostgresStoreSuite) TestListByCategory() {
	ctx := context.Background()

	older := s.admittedListing("cafe-1", models.CategoryBusiness)
	older.AdmittedAt = older.AdmittedAt.Add(-time.Hour)
	newer := s.admittedListing("cafe-2", models.CategoryBusiness)
	other := s.admittedListing("clinic", models.CategoryHealth)

	s.Require().NoError(s.store.Publish(ctx, older))
	s.Require().NoError(s.store.Publish(ctx, newer))
	s.Require().NoError(s.store.Publish(ctx, other))

	listings, err := s.store.ListByCategory(ctx, models.CategoryBusiness, 10)
	s.Require().NoError(err)
	s.Require().Len(listings, 2)
	s.Equal(id.EntryKey("cafe-2"), listings[0].Listing.Key(), "newest first")
	s.Equal(id.EntryKey("cafe-1"), listings[1].Listing.Key())

	s.Run("limit is honored", func() {
		listings, err := s.store.ListByCategory(ctx, models.CategoryBusiness, 1)
		s.Require().NoError(err)
		s.Len(listings, 1)
	})

	s.Run("empty category returns nothing", func() {
		listings, err := s.store.ListByCategory(ctx, models.CategoryEducation, 10)
		s.Require().NoError(err)
		s.Empty(listings)
	})
}
