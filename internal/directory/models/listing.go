package models

import (
	"strings"

	"github.com/asaskevich/govalidator"

	dErrors "zapgate/pkg/domain-errors"
	id "zapgate/pkg/domain"
)

// Category classifies a directory listing.
type Category string

const (
	CategoryBusiness      Category = "business"
	CategoryService       Category = "service"
	CategoryCommunity     Category = "community"
	CategoryEducation     Category = "education"
	CategoryTechnology    Category = "technology"
	CategoryHealth        Category = "health"
	CategoryEntertainment Category = "entertainment"
	CategoryOther         Category = "other"
)

var validCategories = map[Category]struct{}{
	CategoryBusiness:      {},
	CategoryService:       {},
	CategoryCommunity:     {},
	CategoryEducation:     {},
	CategoryTechnology:    {},
	CategoryHealth:        {},
	CategoryEntertainment: {},
	CategoryOther:         {},
}

// IsValid reports whether the category is in the allowed enumeration.
func (c Category) IsValid() bool {
	_, ok := validCategories[c]
	return ok
}

// Listing statuses. A listing arrives pending and flips to active exactly
// once, at admission.
const (
	StatusPending = "pending"
	StatusActive  = "active"
)

// Listing is the submission payload a user wants admitted to the directory.
//
// Invariants:
//   - Immutable once accepted into a PendingEntry
//   - EntryKey is the canonical correlation id; when the submitter supplies
//     none it is derived deterministically from pubkey + creation timestamp
//   - Status is pending until admission flips it to active
type Listing struct {
	Pubkey      id.Pubkey   `json:"pubkey"`
	EntryKey    id.EntryKey `json:"entry_key"`
	Title       string      `json:"title"`
	Summary     string      `json:"summary"`
	Description string      `json:"description"`
	Category    Category    `json:"category"`
	Location    string      `json:"location,omitempty"`
	Website     string      `json:"website,omitempty"`
	Contact     string      `json:"contact,omitempty"`
	Hashtags    []string    `json:"hashtags,omitempty"`
	Images      []string    `json:"images,omitempty"`
	CreatedAt   int64       `json:"created_at"`
	Status      string      `json:"status"`
}

// Key returns the canonical entry key, deriving one from the submitter and
// creation timestamp when the listing carries none.
func (l Listing) Key() id.EntryKey {
	if !l.EntryKey.IsNil() {
		return l.EntryKey
	}
	return id.DeriveEntryKey(l.Pubkey, l.CreatedAt)
}

// Validate checks structural well-formedness of the listing. Field length
// minimums follow the directory submission rules; website and contact are
// optional but must be plausible when present.
func (l Listing) Validate() error {
	if l.Pubkey.IsNil() {
		return dErrors.New(dErrors.CodeBadRequest, "pubkey is required")
	}
	if len(strings.TrimSpace(l.Title)) < 3 {
		return dErrors.New(dErrors.CodeBadRequest, "title must be at least 3 characters")
	}
	if len(strings.TrimSpace(l.Summary)) < 10 {
		return dErrors.New(dErrors.CodeBadRequest, "summary must be at least 10 characters")
	}
	if len(strings.TrimSpace(l.Description)) < 20 {
		return dErrors.New(dErrors.CodeBadRequest, "description must be at least 20 characters")
	}
	if !l.Category.IsValid() {
		return dErrors.New(dErrors.CodeBadRequest, "invalid category")
	}
	if l.Website != "" && !govalidator.IsURL(l.Website) {
		return dErrors.New(dErrors.CodeBadRequest, "invalid website URL")
	}
	if l.Contact != "" && !isValidContact(l.Contact) {
		return dErrors.New(dErrors.CodeBadRequest, "invalid contact")
	}
	if l.CreatedAt <= 0 {
		return dErrors.New(dErrors.CodeBadRequest, "created_at is required")
	}
	return nil
}

// isValidContact accepts an email, an npub, or any identifier of at least
// five characters (the schema is deliberately loose here).
func isValidContact(contact string) bool {
	if govalidator.IsEmail(contact) {
		return true
	}
	if strings.HasPrefix(contact, "npub1") && len(contact) == 63 {
		return true
	}
	return len(contact) >= 5
}
