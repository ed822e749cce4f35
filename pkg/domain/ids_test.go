package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testHexPubkey = "3bf0c63fcb93463407af97a5e5ee64fa883d107ef9e558472c4eb9aaaefa459d"

// TestParsePubkey_Invariants validates the parsing invariant:
// "Pubkeys must be exactly 64 lowercase hex characters".
func TestParsePubkey_Invariants(t *testing.T) {
	t.Run("accepts valid hex pubkey", func(t *testing.T) {
		pk, err := ParsePubkey(testHexPubkey)
		require.NoError(t, err)
		assert.Equal(t, testHexPubkey, pk.String())
	})

	t.Run("normalizes uppercase", func(t *testing.T) {
		pk, err := ParsePubkey(strings.ToUpper(testHexPubkey))
		require.NoError(t, err)
		assert.Equal(t, testHexPubkey, pk.String())
	})

	t.Run("trims surrounding whitespace", func(t *testing.T) {
		pk, err := ParsePubkey("  " + testHexPubkey + "\n")
		require.NoError(t, err)
		assert.Equal(t, testHexPubkey, pk.String())
	})

	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParsePubkey("")
		require.Error(t, err)
	})

	t.Run("rejects wrong length", func(t *testing.T) {
		_, err := ParsePubkey(testHexPubkey[:63])
		require.Error(t, err)
	})

	t.Run("rejects non-hex characters", func(t *testing.T) {
		_, err := ParsePubkey(strings.Replace(testHexPubkey, "3", "z", 1))
		require.Error(t, err)
	})

	t.Run("rejects npub encoding", func(t *testing.T) {
		_, err := ParsePubkey("npub180cvv07tjdrrgpa0j7j7tmnyl2yr6yr7l8j4s3evf6u64th6gkwsyjh6w6")
		require.Error(t, err)
	})
}

func TestPubkeyShort(t *testing.T) {
	assert.Equal(t, "3bf0c63f", Pubkey(testHexPubkey).Short())
	// Defensive for values constructed without parsing.
	assert.Equal(t, "abc", Pubkey("abc").Short())
}

func TestDeriveEntryKey(t *testing.T) {
	pk := Pubkey(testHexPubkey)

	key := DeriveEntryKey(pk, 1700000000)
	assert.Equal(t, "listing-3bf0c63f-1700000000", key.String())

	t.Run("deterministic", func(t *testing.T) {
		assert.Equal(t, key, DeriveEntryKey(pk, 1700000000))
	})

	t.Run("distinct timestamps yield distinct keys", func(t *testing.T) {
		assert.NotEqual(t, key, DeriveEntryKey(pk, 1700000001))
	})
}

func TestIsNil(t *testing.T) {
	assert.True(t, Pubkey("").IsNil())
	assert.False(t, Pubkey(testHexPubkey).IsNil())
	assert.True(t, EntryKey("").IsNil())
	assert.False(t, EntryKey("listing-x").IsNil())
	assert.True(t, SettlementRef("").IsNil())
	assert.False(t, SettlementRef("abc").IsNil())
}
