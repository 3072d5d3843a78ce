package model

import (
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
)

// NewSnapshot returns an empty snapshot stamped with now.
func NewSnapshot(now time.Time) *Snapshot {
	return &Snapshot{
		Metadata: Metadata{Version: SchemaVersion, LastSync: now},
		Records:  map[uuid.UUID]Record{},
	}
}

// Clone deep-copies s.
func (s *Snapshot) Clone() *Snapshot {
	out := &Snapshot{Metadata: s.Metadata, Records: make(map[uuid.UUID]Record, len(s.Records))}
	for id, r := range s.Records {
		out.Records[id] = r.Clone()
	}
	return out
}

// Put inserts or replaces rec and refreshes metadata.
func (s *Snapshot) Put(rec Record, now time.Time) {
	if s.Records == nil {
		s.Records = map[uuid.UUID]Record{}
	}
	s.Records[rec.ID] = rec.Clone()
	s.touch(now)
}

// Remove deletes id and reports whether it was present.
func (s *Snapshot) Remove(id uuid.UUID, now time.Time) bool {
	if _, ok := s.Records[id]; !ok {
		return false
	}
	delete(s.Records, id)
	s.touch(now)
	return true
}

// Has reports whether id is stored.
func (s *Snapshot) Has(id uuid.UUID) bool {
	_, ok := s.Records[id]
	return ok
}

func (s *Snapshot) touch(now time.Time) {
	s.Metadata.LastSync = now
	s.Metadata.RecordCount = len(s.Records)
}

// Validate checks internal consistency of a decoded snapshot.
func (s *Snapshot) Validate() error {
	if s.Metadata.RecordCount != len(s.Records) {
		return fmt.Errorf("record count %d != %d records", s.Metadata.RecordCount, len(s.Records))
	}
	for id, r := range s.Records {
		if r.ID != id {
			return fmt.Errorf("record %s stored under key %s", r.ID, id)
		}
	}
	return nil
}
