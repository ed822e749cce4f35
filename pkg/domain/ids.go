package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// Domain primitives for the listing directory. These are deliberately thin
// string types: parsing enforces validity once at the boundary, and the rest
// of the code passes them around without re-checking.

// Pubkey identifies a submitter (hex-encoded, 64 characters).
type Pubkey string

var pubkeyPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// ParsePubkey validates and returns a Pubkey.
func ParsePubkey(s string) (Pubkey, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if !pubkeyPattern.MatchString(s) {
		return "", fmt.Errorf("invalid pubkey: must be 64 hex characters")
	}
	return Pubkey(s), nil
}

func (p Pubkey) String() string {
	return string(p)
}

// IsNil returns true if the pubkey is empty.
func (p Pubkey) IsNil() bool {
	return p == ""
}

// Short returns the 8-character prefix used in memos and derived entry keys.
func (p Pubkey) Short() string {
	if len(p) < 8 {
		return string(p)
	}
	return string(p[:8])
}

// EntryKey is the stable, submitter-chosen identifier for a listing. It
// correlates the submission, its invoice, and the eventual receipt. One
// pending entry may exist per key at any time.
type EntryKey string

// DeriveEntryKey builds the canonical key for a submission that did not
// supply one: listing-<pubkey[:8]>-<createdAt>.
func DeriveEntryKey(pubkey Pubkey, createdAt int64) EntryKey {
	return EntryKey(fmt.Sprintf("listing-%s-%d", pubkey.Short(), createdAt))
}

func (k EntryKey) String() string {
	return string(k)
}

// IsNil returns true if the entry key is empty.
func (k EntryKey) IsNil() bool {
	return k == ""
}

// SettlementRef is the opaque id the payment backend assigns to one
// invoice's settlement lifecycle (the payment hash for Lightning).
type SettlementRef string

func (r SettlementRef) String() string {
	return string(r)
}

// IsNil returns true if the settlement reference is empty.
func (r SettlementRef) IsNil() bool {
	return r == ""
}
