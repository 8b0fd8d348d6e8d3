// Package service shapes captured changes into remote write requests and delivers them.
package service

import (
	"context"
	"fmt"
	"maps"
	"net/http"
	"reflect"

	apperrors "github.com/allisson/marketsync/internal/errors"
	"github.com/allisson/marketsync/internal/outbox/domain"
	syncDomain "github.com/allisson/marketsync/internal/syncconfig/domain"
)

// MappingProvider resolves the field mapping set of a source table.
type MappingProvider interface {
	MappingSet(ctx context.Context, sourceTable string) (*syncDomain.MappingSet, error)
}

// ListOp is an incremental list instruction sent to the remote system.
type ListOp struct {
	Field     string
	Operation domain.ListOperation
	Values    []string
}

// RemoteRequest is one write against the remote system.
type RemoteRequest struct {
	Method       string
	ResourceType string
	ResourceID   string
	Fields       map[string]any
	ListOps      []ListOp
}

// Body renders the request body using the remote incremental-list operators.
// A nil body means the request carries none.
func (r *RemoteRequest) Body() map[string]any {
	if r.Method == http.MethodDelete {
		return nil
	}

	body := make(map[string]any, len(r.Fields)+len(r.ListOps))
	maps.Copy(body, r.Fields)

	for _, op := range r.ListOps {
		instr, _ := body[op.Field].(map[string]any)
		if instr == nil {
			instr = make(map[string]any, 2)
			body[op.Field] = instr
		}
		instr["$"+string(op.Operation)] = op.Values
	}
	return body
}

// Snapshot builds the stored payload from a post-write row image and the list deltas of the write.
// Full list values are rejected: list-valued columns must be captured as deltas.
func Snapshot(row map[string]any, changes []domain.ListChange, origin string) (domain.Payload, error) {
	payload := domain.Payload{Origin: origin}

	if len(row) > 0 {
		payload.Fields = make(map[string]any, len(row))
		for field, value := range row {
			if isListValue(value) {
				return domain.Payload{}, fmt.Errorf(
					"%w: %s holds a full list value; capture a list delta instead", domain.ErrInvalidPayload, field,
				)
			}
			payload.Fields[field] = value
		}
	}

	for _, change := range changes {
		if !change.Operation.IsValid() {
			return domain.Payload{}, fmt.Errorf(
				"%w: list change on %s has operation %q", domain.ErrInvalidPayload, change.Field, change.Operation,
			)
		}
		if len(change.Values) == 0 {
			continue
		}
		payload.ListChanges = append(payload.ListChanges, change)
	}

	return payload, nil
}

func isListValue(value any) bool {
	if value == nil {
		return false
	}
	switch value.(type) {
	case []byte:
		return false
	}
	kind := reflect.TypeOf(value).Kind()
	return kind == reflect.Slice || kind == reflect.Array
}

// Transformer converts outbox entries into remote write requests.
type Transformer struct {
	mappings MappingProvider
}

// NewTransformer creates a Transformer.
func NewTransformer(mappings MappingProvider) *Transformer {
	return &Transformer{mappings: mappings}
}

// Transform maps an entry to its remote request. Missing or invalid mappings are configuration
// errors and never retried. Errors loading the mappings are returned unwrapped so the caller can
// retry them.
func (t *Transformer) Transform(ctx context.Context, entry *domain.OutboxEntry) (*RemoteRequest, error) {
	set, err := t.mappings.MappingSet(ctx, entry.SourceTable)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrMisconfigured) {
			return nil, fmt.Errorf("%w: %w", domain.ErrMappingNotFound, err)
		}
		return nil, fmt.Errorf("failed to load field mappings for %s: %w", entry.SourceTable, err)
	}

	if set.IsLinkTable() {
		return t.transformLink(entry, set)
	}

	req := &RemoteRequest{
		ResourceType: set.RemoteType,
		ResourceID:   entry.RecordID,
	}

	switch entry.Operation {
	case domain.OperationInsert:
		req.Method = http.MethodPut
	case domain.OperationUpdate:
		req.Method = http.MethodPatch
	case domain.OperationDelete:
		req.Method = http.MethodDelete
		return req, nil
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidOperation, entry.Operation)
	}

	req.Fields = make(map[string]any, len(entry.Payload.Fields))
	for field, value := range entry.Payload.Fields {
		m, ok := set.Lookup(field)
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s", domain.ErrMappingNotFound, entry.SourceTable, field)
		}
		if m.IsLocalOnly() {
			continue
		}
		if m.Kind != syncDomain.KindScalar && m.Kind != syncDomain.KindForeignKey {
			return nil, fmt.Errorf("%w: %s.%s is a %s field and cannot be sent as a value",
				domain.ErrInvalidPayload, entry.SourceTable, field, m.Kind)
		}
		req.Fields[m.RemoteField] = value
	}

	for _, change := range entry.Payload.ListChanges {
		m, ok := set.Lookup(change.Field)
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s", domain.ErrMappingNotFound, entry.SourceTable, change.Field)
		}
		if m.Kind != syncDomain.KindList {
			return nil, fmt.Errorf("%w: %s.%s is not a list field", domain.ErrInvalidPayload, entry.SourceTable, change.Field)
		}
	}
	req.ListOps = compactListChanges(entry.Payload.ListChanges, func(field string) string {
		m, _ := set.Lookup(field)
		return m.RemoteField
	})

	return req, nil
}

// transformLink turns a link-table row into an add or remove on the owner's list field.
func (t *Transformer) transformLink(entry *domain.OutboxEntry, set *syncDomain.MappingSet) (*RemoteRequest, error) {
	link, _ := set.Link()

	var op domain.ListOperation
	switch entry.Operation {
	case domain.OperationInsert:
		op = domain.ListAdd
	case domain.OperationDelete:
		op = domain.ListRemove
	default:
		return nil, fmt.Errorf("%w: link table %s only supports INSERT and DELETE",
			domain.ErrInvalidOperation, entry.SourceTable)
	}

	owner, ok := stringField(entry.Payload.Fields, link.OwnerField)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s is missing", domain.ErrInvalidPayload, entry.SourceTable, link.OwnerField)
	}
	value, ok := stringField(entry.Payload.Fields, link.DomainField)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s is missing", domain.ErrInvalidPayload, entry.SourceTable, link.DomainField)
	}

	return &RemoteRequest{
		Method:       http.MethodPatch,
		ResourceType: set.RemoteType,
		ResourceID:   owner,
		ListOps:      []ListOp{{Field: link.RemoteField, Operation: op, Values: []string{value}}},
	}, nil
}

func stringField(fields map[string]any, name string) (string, bool) {
	v, ok := fields[name]
	if !ok || v == nil {
		return "", false
	}
	s := fmt.Sprint(v)
	return s, s != ""
}

// compactListChanges folds a sequence of list changes into at most one add and one remove per field.
// The last operation on a value wins, which matches applying the changes in order.
func compactListChanges(changes []domain.ListChange, remoteField func(string) string) []ListOp {
	type fieldState struct {
		order []string
		last  map[string]domain.ListOperation
	}

	var fields []string
	states := make(map[string]*fieldState)

	for _, change := range changes {
		state, ok := states[change.Field]
		if !ok {
			state = &fieldState{last: make(map[string]domain.ListOperation)}
			states[change.Field] = state
			fields = append(fields, change.Field)
		}
		for _, v := range change.Values {
			if _, seen := state.last[v]; !seen {
				state.order = append(state.order, v)
			}
			state.last[v] = change.Operation
		}
	}

	var ops []ListOp
	for _, field := range fields {
		state := states[field]
		var added, removed []string
		for _, v := range state.order {
			if state.last[v] == domain.ListAdd {
				added = append(added, v)
			} else {
				removed = append(removed, v)
			}
		}
		if len(added) > 0 {
			ops = append(ops, ListOp{Field: remoteField(field), Operation: domain.ListAdd, Values: added})
		}
		if len(removed) > 0 {
			ops = append(ops, ListOp{Field: remoteField(field), Operation: domain.ListRemove, Values: removed})
		}
	}
	return ops
}

// IsConfigurationError reports whether a transform error is caused by the mappings or the stored
// payload rather than by a failure to read them. Such errors fail the same way on every attempt.
func IsConfigurationError(err error) bool {
	return apperrors.Is(err, apperrors.ErrMisconfigured) || apperrors.Is(err, apperrors.ErrInvalidInput)
}
