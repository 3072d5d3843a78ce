// Package convert maps snapshots to and from their persisted JSON document.
// Every backend stores the exact same bytes.
package convert

import (
	"encoding/json"
	"fmt"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/goph-vault/internal/errs"
	"github.com/and161185/goph-vault/internal/model"
)

// EncodeSnapshot renders s as indented JSON.
func EncodeSnapshot(s *model.Snapshot) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: nil snapshot", errs.ErrSerialization)
	}
	out, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrSerialization, err)
	}
	return out, nil
}

// DecodeSnapshot parses a document written by EncodeSnapshot.
// Missing records become an empty map and the record count is recomputed.
func DecodeSnapshot(data []byte) (*model.Snapshot, error) {
	var s model.Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrSerialization, err)
	}
	if s.Records == nil {
		s.Records = map[uuid.UUID]model.Record{}
	}
	for id, r := range s.Records {
		if r.ID != id {
			return nil, fmt.Errorf("%w: record %s stored under key %s", errs.ErrSerialization, r.ID, id)
		}
	}
	if s.Metadata.Version == "" {
		s.Metadata.Version = model.SchemaVersion
	}
	s.Metadata.RecordCount = len(s.Records)
	return &s, nil
}
