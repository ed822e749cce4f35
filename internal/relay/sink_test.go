package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zapgate/internal/directory/models"
	dErrors "zapgate/pkg/domain-errors"
	id "zapgate/pkg/domain"
)

func admittedListing() models.AdmittedListing {
	listing := models.Listing{
		Pubkey:      id.Pubkey("3bf0c63fcb93463407af97a5e5ee64fa883d107ef9e558472c4eb9aaaefa459d"),
		EntryKey:    id.EntryKey("cafe"),
		Title:       "Corner Cafe",
		Summary:     "Espresso and pastries downtown",
		Description: "A small specialty coffee shop with single-origin beans.",
		Category:    models.CategoryBusiness,
		CreatedAt:   1700000000,
	}
	return models.NewAdmittedListing(listing, models.AdmittedPaid, "hash-1", time.Now())
}

func TestSinkPublish(t *testing.T) {
	var got models.AdmittedListing
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/listings/ingest", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	sink := NewSink(srv.URL)
	require.NoError(t, sink.Publish(context.Background(), admittedListing()))
	assert.Equal(t, "Corner Cafe", got.Listing.Title)
	assert.Equal(t, models.AdmittedPaid, got.AdmittedVia)
}

func TestSinkPublishRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	err := NewSink(srv.URL).Publish(context.Background(), admittedListing())
	require.Error(t, err)
	assert.Equal(t, dErrors.CodeUnavailable, dErrors.CodeOf(err))
}

func TestSinkPublishUnreachable(t *testing.T) {
	err := NewSink("http://127.0.0.1:1").Publish(context.Background(), admittedListing())
	require.Error(t, err)
	assert.Equal(t, dErrors.CodeUnavailable, dErrors.CodeOf(err), "unreachable relay must be retryable")
}
