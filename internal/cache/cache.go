// Package cache mirrors each backend's snapshot in memory. All reads are
// served from here; the service layer persists entries after mutating them.
//
// Cache is not safe for concurrent use; the owner serialises access.
package cache

import (
	"sort"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/goph-vault/internal/model"
)

// Cache holds one snapshot per enabled backend target.
type Cache struct {
	entries map[model.BackendTarget]*model.Snapshot
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{entries: map[model.BackendTarget]*model.Snapshot{}}
}

// Install replaces the entry for target with s. The cache takes ownership of s.
func (c *Cache) Install(target model.BackendTarget, s *model.Snapshot) {
	c.entries[target] = s
}

// Snapshot returns a deep copy of the entry for target.
func (c *Cache) Snapshot(target model.BackendTarget) (*model.Snapshot, bool) {
	s, ok := c.entries[target]
	if !ok {
		return nil, false
	}
	return s.Clone(), true
}

// Has reports whether target has an entry.
func (c *Cache) Has(target model.BackendTarget) bool {
	_, ok := c.entries[target]
	return ok
}

// Targets lists installed targets in model.Targets order.
func (c *Cache) Targets() []model.BackendTarget {
	var out []model.BackendTarget
	for _, t := range model.Targets() {
		if _, ok := c.entries[t]; ok {
			out = append(out, t)
		}
	}
	return out
}

// Insert adds rec to every entry and returns the touched targets.
func (c *Cache) Insert(rec model.Record, now time.Time) []model.BackendTarget {
	targets := c.Targets()
	for _, t := range targets {
		c.entries[t].Put(rec, now)
	}
	return targets
}

// Replace overwrites rec in one entry.
func (c *Cache) Replace(target model.BackendTarget, rec model.Record, now time.Time) {
	if s, ok := c.entries[target]; ok {
		s.Put(rec, now)
	}
}

// Remove deletes id from every entry holding it and returns those targets.
func (c *Cache) Remove(id uuid.UUID, now time.Time) []model.BackendTarget {
	var touched []model.BackendTarget
	for _, t := range c.Targets() {
		if c.entries[t].Remove(id, now) {
			touched = append(touched, t)
		}
	}
	return touched
}

// Holding lists the targets whose entry contains id.
func (c *Cache) Holding(id uuid.UUID) []model.BackendTarget {
	var out []model.BackendTarget
	for _, t := range c.Targets() {
		if c.entries[t].Has(id) {
			out = append(out, t)
		}
	}
	return out
}

// Get returns a copy of the record from target, or from the last target
// holding it when target is model.TargetAll.
func (c *Cache) Get(id uuid.UUID, target model.BackendTarget) (model.Record, bool) {
	var (
		rec   model.Record
		found bool
	)
	for _, t := range c.scope(target) {
		if r, ok := c.entries[t].Records[id]; ok {
			rec, found = r.Clone(), true
		}
	}
	return rec, found
}

// List returns copies of all records in scope, unioned by id.
func (c *Cache) List(target model.BackendTarget) []model.Record {
	return c.collect(target, func(model.Record) bool { return true })
}

// Search matches query case-insensitively against title and description.
// For model.TargetAll results are unioned by id; a later target wins.
func (c *Cache) Search(query string, target model.BackendTarget) []model.Record {
	q := strings.ToLower(query)
	return c.collect(target, func(r model.Record) bool {
		return strings.Contains(strings.ToLower(r.Title), q) ||
			strings.Contains(strings.ToLower(r.Description), q)
	})
}

func (c *Cache) collect(target model.BackendTarget, match func(model.Record) bool) []model.Record {
	byID := map[uuid.UUID]model.Record{}
	for _, t := range c.scope(target) {
		for id, r := range c.entries[t].Records {
			if match(r) {
				byID[id] = r
			}
		}
	}
	out := make([]model.Record, 0, len(byID))
	for _, r := range byID {
		out = append(out, r.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Title != out[j].Title {
			return out[i].Title < out[j].Title
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

func (c *Cache) scope(target model.BackendTarget) []model.BackendTarget {
	if target == model.TargetAll {
		return c.Targets()
	}
	if _, ok := c.entries[target]; ok {
		return []model.BackendTarget{target}
	}
	return nil
}
