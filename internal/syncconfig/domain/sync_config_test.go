package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/allisson/marketsync/internal/errors"
)

func listingMappings() []FieldMapping {
	return []FieldMapping{
		{SourceTable: "listings", DomainField: "title", RemoteField: "Title", Kind: KindScalar, RemoteType: "Listing"},
		{SourceTable: "listings", DomainField: "host_id", RemoteField: "Host", Kind: KindForeignKey, RemoteType: "Listing"},
		{SourceTable: "listings", DomainField: "amenities", RemoteField: "Amenities", Kind: KindList, RemoteType: "Listing"},
		{SourceTable: "listings", DomainField: "origin", RemoteField: LocalOnlyField, Kind: KindScalar, RemoteType: "Listing"},
		{SourceTable: "listings", DomainField: "status", RemoteField: LocalOnlyField, Kind: KindScalar, RemoteType: "Listing"},
	}
}

func TestNewMappingSet(t *testing.T) {
	set, err := NewMappingSet("listings", listingMappings())
	require.NoError(t, err)

	assert.Equal(t, "Listing", set.RemoteType)
	assert.False(t, set.IsLinkTable())
	assert.Len(t, set.Mappings(), 5)

	m, ok := set.Lookup("title")
	require.True(t, ok)
	assert.Equal(t, "Title", m.RemoteField)

	m, ok = set.Lookup("origin")
	require.True(t, ok)
	assert.True(t, m.IsLocalOnly())

	_, ok = set.Lookup("unknown")
	assert.False(t, ok)
}

func TestNewMappingSet_LinkTable(t *testing.T) {
	set, err := NewMappingSet("listing_favorites", []FieldMapping{
		{
			SourceTable: "listing_favorites",
			DomainField: "listing_id",
			RemoteField: "Favorites",
			Kind:        KindLink,
			RemoteType:  "User",
			OwnerField:  "user_id",
		},
	})
	require.NoError(t, err)

	assert.True(t, set.IsLinkTable())
	link, ok := set.Link()
	require.True(t, ok)
	assert.Equal(t, "user_id", link.OwnerField)
}

func TestMappingSet_Validate(t *testing.T) {
	tests := []struct {
		name     string
		mappings []FieldMapping
		contains string
	}{
		{
			name: "Failure_InverseListMirror",
			mappings: []FieldMapping{
				{SourceTable: "users", DomainField: "proposals", RemoteField: "Proposals", Kind: KindList,
					RemoteType: "User", InverseOf: "proposals.guest_id"},
			},
			contains: "inverse",
		},
		{
			name: "Failure_DuplicateRemoteField",
			mappings: []FieldMapping{
				{SourceTable: "users", DomainField: "name", RemoteField: "Name", Kind: KindScalar, RemoteType: "User"},
				{SourceTable: "users", DomainField: "display_name", RemoteField: "Name", Kind: KindScalar, RemoteType: "User"},
			},
			contains: "share remote field",
		},
		{
			name: "Failure_LinkWithoutOwner",
			mappings: []FieldMapping{
				{SourceTable: "users", DomainField: "listing_id", RemoteField: "Favorites", Kind: KindLink, RemoteType: "User"},
			},
			contains: "no owner field",
		},
		{
			name: "Failure_UnknownKind",
			mappings: []FieldMapping{
				{SourceTable: "users", DomainField: "name", RemoteField: "Name", Kind: "blob", RemoteType: "User"},
			},
			contains: "unknown kind",
		},
		{
			name: "Failure_MixedRemoteTypes",
			mappings: []FieldMapping{
				{SourceTable: "users", DomainField: "name", RemoteField: "Name", Kind: KindScalar, RemoteType: "User"},
				{SourceTable: "users", DomainField: "email", RemoteField: "Email", Kind: KindScalar, RemoteType: "Account"},
			},
			contains: "mixes remote types",
		},
		{
			name: "Failure_ForeignTable",
			mappings: []FieldMapping{
				{SourceTable: "listings", DomainField: "name", RemoteField: "Name", Kind: KindScalar, RemoteType: "User"},
			},
			contains: "does not belong",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewMappingSet("users", tt.mappings)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidMapping)
			assert.ErrorIs(t, err, apperrors.ErrMisconfigured)
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestMappingSet_ValidateEmpty(t *testing.T) {
	_, err := NewMappingSet("users", nil)
	assert.ErrorIs(t, err, ErrMappingSetNotFound)
}

func TestMappingKind_IsValid(t *testing.T) {
	assert.True(t, KindScalar.IsValid())
	assert.True(t, KindLink.IsValid())
	assert.False(t, MappingKind("").IsValid())
}
