package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Origin values recorded on captured changes.
const (
	OriginLocal  = "local"
	OriginRemote = "remote"
)

// ListOperation is the direction of an incremental list change.
type ListOperation string

const (
	ListAdd    ListOperation = "add"
	ListRemove ListOperation = "remove"
)

// IsValid reports whether the list operation is known.
func (o ListOperation) IsValid() bool {
	return o == ListAdd || o == ListRemove
}

// ListChange is an incremental change to a list-valued field. Only the delta is ever stored.
type ListChange struct {
	Field       string        `json:"field"`
	Operation   ListOperation `json:"operation"`
	Values      []string      `json:"values"`
	TargetTable string        `json:"target_table,omitempty"`
	TargetID    string        `json:"target_id,omitempty"`
}

// Payload is the change snapshot taken at capture time and persisted with the entry.
type Payload struct {
	Fields      map[string]any `json:"fields,omitempty"`
	ListChanges []ListChange   `json:"list_changes,omitempty"`
	Origin      string         `json:"origin,omitempty"`
}

// Value implements driver.Valuer so a Payload is stored as a JSON document.
// The text form is returned because lib/pq encodes []byte as bytea.
func (p Payload) Value() (driver.Value, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return string(data), nil
}

// Scan implements sql.Scanner for JSON and JSONB columns.
func (p *Payload) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*p = Payload{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("%w: unsupported column type %T", ErrInvalidPayload, src)
	}

	var decoded Payload
	if err := json.Unmarshal(data, &decoded); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	*p = decoded
	return nil
}

// MergePayloads folds an older undelivered change into a newer one for the same record.
// Scalar fields follow the newer snapshot while list deltas are kept in capture order.
func MergePayloads(older, newer Payload) Payload {
	merged := Payload{
		Fields: newer.Fields,
		Origin: newer.Origin,
	}
	if len(merged.Fields) == 0 {
		merged.Fields = older.Fields
	}
	if merged.Origin == "" {
		merged.Origin = older.Origin
	}
	if n := len(older.ListChanges) + len(newer.ListChanges); n > 0 {
		merged.ListChanges = make([]ListChange, 0, n)
		merged.ListChanges = append(merged.ListChanges, older.ListChanges...)
		merged.ListChanges = append(merged.ListChanges, newer.ListChanges...)
	}
	return merged
}

// FromRemote reports whether the change was written by an inbound sync from the remote system.
func (p Payload) FromRemote() bool {
	return p.Origin == OriginRemote
}
