package models

import (
	"testing"

	"github.com/stretchr/testify/suite"

	id "zapgate/pkg/domain"
)

type ListingSuite struct {
	suite.Suite
}

func TestListingSuite(t *testing.T) {
	suite.Run(t, new(ListingSuite))
}

func (s *ListingSuite) TestValidate() {
	s.Run("valid listing passes", func() {
		s.NoError(validListing().Validate())
	})

	s.Run("missing pubkey rejected", func() {
		l := validListing()
		l.Pubkey = ""
		s.Error(l.Validate())
	})

	s.Run("short title rejected", func() {
		l := validListing()
		l.Title = "ab"
		s.Error(l.Validate())
	})

	s.Run("whitespace-only title rejected", func() {
		l := validListing()
		l.Title = "    "
		s.Error(l.Validate())
	})

	s.Run("short summary rejected", func() {
		l := validListing()
		l.Summary = "too short"
		s.Error(l.Validate())
	})

	s.Run("short description rejected", func() {
		l := validListing()
		l.Description = "not long enough"
		s.Error(l.Validate())
	})

	s.Run("unknown category rejected", func() {
		l := validListing()
		l.Category = "blockchain"
		s.Error(l.Validate())
	})

	s.Run("every listed category accepted", func() {
		for category := range validCategories {
			l := validListing()
			l.Category = category
			s.NoError(l.Validate(), string(category))
		}
	})

	s.Run("malformed website rejected", func() {
		l := validListing()
		l.Website = "not a url"
		s.Error(l.Validate())
	})

	s.Run("valid website accepted", func() {
		l := validListing()
		l.Website = "https://cafe.example.com"
		s.NoError(l.Validate())
	})

	s.Run("email contact accepted", func() {
		l := validListing()
		l.Contact = "owner@example.com"
		s.NoError(l.Validate())
	})

	s.Run("npub contact accepted", func() {
		l := validListing()
		l.Contact = "npub180cvv07tjdrrgpa0j7j7tmnyl2yr6yr7l8j4s3evf6u64th6gkwsyjh6w6"
		s.NoError(l.Validate())
	})

	s.Run("too-short contact rejected", func() {
		l := validListing()
		l.Contact = "ab"
		s.Error(l.Validate())
	})

	s.Run("missing created_at rejected", func() {
		l := validListing()
		l.CreatedAt = 0
		s.Error(l.Validate())
	})
}

func (s *ListingSuite) TestKey() {
	s.Run("submitter-chosen key wins", func() {
		l := validListing()
		l.EntryKey = id.EntryKey("my-cafe")
		s.Equal(id.EntryKey("my-cafe"), l.Key())
	})

	s.Run("derived key when none supplied", func() {
		l := validListing()
		s.Equal(id.DeriveEntryKey(l.Pubkey, l.CreatedAt), l.Key())
	})
}
