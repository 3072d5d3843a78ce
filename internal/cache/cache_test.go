package cache

import (
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"

	"github.com/and161185/goph-vault/internal/model"
)

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func rec(title, desc string) model.Record {
	return model.Record{ID: uuid.Must(uuid.NewV4()), Title: title, Description: desc, Tags: []string{"t"}}
}

func twoTargets() *Cache {
	c := New()
	c.Install(model.TargetRemote, model.NewSnapshot(now))
	c.Install(model.TargetLocal, model.NewSnapshot(now))
	return c
}

func TestTargets_FixedOrder(t *testing.T) {
	t.Parallel()
	c := twoTargets()
	require.Equal(t, []model.BackendTarget{model.TargetLocal, model.TargetRemote}, c.Targets())
	require.True(t, c.Has(model.TargetLocal))
	require.False(t, c.Has(model.TargetObject))
}

func TestInsertRemove_EveryEntry(t *testing.T) {
	t.Parallel()
	c := twoTargets()
	r := rec("email", "")
	touched := c.Insert(r, now)
	require.Len(t, touched, 2)
	require.ElementsMatch(t, touched, c.Holding(r.ID))

	for _, tg := range c.Targets() {
		s, _ := c.Snapshot(tg)
		require.Equal(t, 1, s.Metadata.RecordCount)
	}

	require.Len(t, c.Remove(r.ID, now), 2)
	require.Empty(t, c.Remove(r.ID, now))
	require.Empty(t, c.Holding(r.ID))
}

func TestInsert_EntriesDoNotShareMemory(t *testing.T) {
	t.Parallel()
	c := twoTargets()
	r := rec("email", "")
	c.Insert(r, now)

	local := c.entries[model.TargetLocal].Records[r.ID]
	local.Tags[0] = "mutated"
	remote := c.entries[model.TargetRemote].Records[r.ID]
	require.Equal(t, "t", remote.Tags[0])
}

func TestSnapshot_ReturnsCopy(t *testing.T) {
	t.Parallel()
	c := twoTargets()
	r := rec("a", "")
	c.Insert(r, now)
	s, ok := c.Snapshot(model.TargetLocal)
	require.True(t, ok)
	s.Remove(r.ID, now)
	require.True(t, c.entries[model.TargetLocal].Has(r.ID))

	_, ok = c.Snapshot(model.TargetObject)
	require.False(t, ok)
}

func TestSearch_CaseInsensitiveTitleAndDescription(t *testing.T) {
	t.Parallel()
	c := twoTargets()
	mail := rec("Email", "work inbox")
	bank := rec("bank", "Savings")
	c.Insert(mail, now)
	c.Insert(bank, now)

	got := c.Search("EMA", model.TargetAll)
	require.Len(t, got, 1)
	require.Equal(t, mail.ID, got[0].ID)

	got = c.Search("savings", model.TargetLocal)
	require.Len(t, got, 1)
	require.Equal(t, bank.ID, got[0].ID)

	require.Len(t, c.Search("", model.TargetAll), 2)
	require.Empty(t, c.Search("nothing", model.TargetAll))
	require.Empty(t, c.Search("", model.TargetObject), "unknown scope yields nothing")
}

func TestSearch_UnionLaterTargetWins(t *testing.T) {
	t.Parallel()
	c := twoTargets()
	r := rec("email", "old")
	c.Insert(r, now)

	updated := r.Clone()
	updated.Description = "new"
	c.Replace(model.TargetRemote, updated, now)

	got := c.Search("email", model.TargetAll)
	require.Len(t, got, 1)
	require.Equal(t, "new", got[0].Description)

	got = c.Search("email", model.TargetLocal)
	require.Equal(t, "old", got[0].Description)

	g, ok := c.Get(r.ID, model.TargetAll)
	require.True(t, ok)
	require.Equal(t, "new", g.Description)
}

func TestList_SortedByTitle(t *testing.T) {
	t.Parallel()
	c := twoTargets()
	c.Insert(rec("zeta", ""), now)
	c.Insert(rec("alpha", ""), now)
	local := rec("mid", "")
	c.Replace(model.TargetLocal, local, now)

	all := c.List(model.TargetAll)
	require.Len(t, all, 3)
	require.Equal(t, "alpha", all[0].Title)
	require.Equal(t, "mid", all[1].Title)
	require.Equal(t, "zeta", all[2].Title)

	require.Len(t, c.List(model.TargetRemote), 2)

	_, ok := c.Get(local.ID, model.TargetRemote)
	require.False(t, ok)
}
