// Package domain defines the sync policy and field mapping configuration that decides
// which local writes are mirrored and how they are shaped for the remote system.
package domain

import (
	"fmt"
	"time"

	"github.com/allisson/marketsync/internal/errors"
	outboxDomain "github.com/allisson/marketsync/internal/outbox/domain"
)

// LocalOnlyField marks a column that is intentionally never sent to the remote system.
const LocalOnlyField = "-"

// Sync configuration errors.
var (
	// ErrPolicyNotFound indicates no sync policy row exists for a table and operation.
	ErrPolicyNotFound = errors.Wrap(errors.ErrNotFound, "sync policy not found")

	// ErrMappingSetNotFound indicates a table has no remote field mappings.
	ErrMappingSetNotFound = errors.Wrap(errors.ErrMisconfigured, "no field mappings for source table")

	// ErrInvalidMapping indicates a mapping set that cannot be used to shape payloads.
	ErrInvalidMapping = errors.Wrap(errors.ErrMisconfigured, "invalid field mapping")
)

// SyncPolicy enables or disables capture for one source table and operation.
type SyncPolicy struct {
	SourceTable string
	Operation   outboxDomain.Operation
	Enabled     bool
	UpdatedAt   time.Time
}

// MappingKind describes how a local column is represented remotely.
type MappingKind string

const (
	KindScalar     MappingKind = "scalar"
	KindForeignKey MappingKind = "foreign_key"
	KindList       MappingKind = "list"
	KindLink       MappingKind = "link"
)

// IsValid reports whether the mapping kind is known.
func (k MappingKind) IsValid() bool {
	switch k {
	case KindScalar, KindForeignKey, KindList, KindLink:
		return true
	default:
		return false
	}
}

// FieldMapping maps one local column to its remote field.
//
// For link tables DomainField names the column holding the linked value, OwnerField names the
// column holding the owner record id, and RemoteField is the list field on the owner.
type FieldMapping struct {
	SourceTable string
	DomainField string
	RemoteField string
	Kind        MappingKind
	RemoteType  string
	OwnerField  string
	InverseOf   string
}

// IsLocalOnly reports whether the column is excluded from remote payloads.
func (m FieldMapping) IsLocalOnly() bool {
	return m.RemoteField == LocalOnlyField
}

// MappingSet is the validated mapping of one source table.
type MappingSet struct {
	SourceTable string
	RemoteType  string
	fields      map[string]FieldMapping
	link        *FieldMapping
}

// NewMappingSet builds and validates the mapping set of a source table.
func NewMappingSet(sourceTable string, mappings []FieldMapping) (*MappingSet, error) {
	set := &MappingSet{
		SourceTable: sourceTable,
		fields:      make(map[string]FieldMapping, len(mappings)),
	}

	for _, m := range mappings {
		if m.SourceTable != sourceTable {
			return nil, fmt.Errorf("%w: %s.%s does not belong to %s", ErrInvalidMapping, m.SourceTable, m.DomainField, sourceTable)
		}
		if _, dup := set.fields[m.DomainField]; dup {
			return nil, fmt.Errorf("%w: %s.%s is mapped twice", ErrInvalidMapping, sourceTable, m.DomainField)
		}
		set.fields[m.DomainField] = m
		if set.RemoteType == "" {
			set.RemoteType = m.RemoteType
		}
		if m.Kind == KindLink {
			link := m
			set.link = &link
		}
	}

	if err := set.Validate(); err != nil {
		return nil, err
	}
	return set, nil
}

// Validate rejects mapping sets that would produce ambiguous or unbounded remote payloads.
// Inverse relationships are never mirrored as lists; only the owning side carries the foreign key.
func (s *MappingSet) Validate() error {
	if len(s.fields) == 0 {
		return fmt.Errorf("%w: %s", ErrMappingSetNotFound, s.SourceTable)
	}
	if s.RemoteType == "" {
		return fmt.Errorf("%w: %s has no remote type", ErrInvalidMapping, s.SourceTable)
	}

	remoteFields := make(map[string]string, len(s.fields))
	links := 0
	for _, m := range s.fields {
		if !m.Kind.IsValid() {
			return fmt.Errorf("%w: %s.%s has unknown kind %q", ErrInvalidMapping, s.SourceTable, m.DomainField, m.Kind)
		}
		if m.RemoteType != s.RemoteType {
			return fmt.Errorf("%w: %s mixes remote types %s and %s", ErrInvalidMapping, s.SourceTable, s.RemoteType, m.RemoteType)
		}
		if m.RemoteField == "" {
			return fmt.Errorf("%w: %s.%s has no remote field", ErrInvalidMapping, s.SourceTable, m.DomainField)
		}
		if m.Kind == KindList && m.InverseOf != "" {
			return fmt.Errorf("%w: %s.%s mirrors the inverse of %s as a list",
				ErrInvalidMapping, s.SourceTable, m.DomainField, m.InverseOf)
		}
		if m.Kind == KindLink {
			links++
			if m.OwnerField == "" {
				return fmt.Errorf("%w: link %s.%s has no owner field", ErrInvalidMapping, s.SourceTable, m.DomainField)
			}
		}
		if m.IsLocalOnly() {
			continue
		}
		if other, dup := remoteFields[m.RemoteField]; dup {
			return fmt.Errorf("%w: %s.%s and %s.%s share remote field %s",
				ErrInvalidMapping, s.SourceTable, other, s.SourceTable, m.DomainField, m.RemoteField)
		}
		remoteFields[m.RemoteField] = m.DomainField
	}

	if links > 1 {
		return fmt.Errorf("%w: %s has more than one link mapping", ErrInvalidMapping, s.SourceTable)
	}
	return nil
}

// Lookup returns the mapping of a local column.
func (s *MappingSet) Lookup(domainField string) (FieldMapping, bool) {
	m, ok := s.fields[domainField]
	return m, ok
}

// Link returns the link mapping when the table is a link table.
func (s *MappingSet) Link() (FieldMapping, bool) {
	if s.link == nil {
		return FieldMapping{}, false
	}
	return *s.link, true
}

// IsLinkTable reports whether the table only records links between two records.
func (s *MappingSet) IsLinkTable() bool {
	return s.link != nil
}

// Mappings returns the field mappings in no particular order.
func (s *MappingSet) Mappings() []FieldMapping {
	mappings := make([]FieldMapping, 0, len(s.fields))
	for _, m := range s.fields {
		mappings = append(mappings, m)
	}
	return mappings
}
