package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"
)

func newRecord(t *testing.T, title string) Record {
	t.Helper()
	u := "https://example.org"
	return Record{
		ID:     uuid.Must(uuid.NewV4()),
		Title:  title,
		Tags:   []string{"a"},
		URL:    &u,
		Secret: EncryptedBlob{Ciphertext: Bytes{1, 2}, Nonce: Bytes{3}, Salt: Bytes{4}},
	}
}

func TestSnapshot_PutRemoveKeepsCount(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	s := NewSnapshot(now)
	require.Equal(t, SchemaVersion, s.Metadata.Version)
	require.NoError(t, s.Validate())

	a, b := newRecord(t, "a"), newRecord(t, "b")
	s.Put(a, now.Add(time.Second))
	s.Put(b, now.Add(2*time.Second))
	require.Equal(t, 2, s.Metadata.RecordCount)
	require.Equal(t, now.Add(2*time.Second), s.Metadata.LastSync)
	require.NoError(t, s.Validate())

	require.True(t, s.Remove(a.ID, now))
	require.False(t, s.Remove(a.ID, now))
	require.Equal(t, 1, s.Metadata.RecordCount)
	require.True(t, s.Has(b.ID))
	require.NoError(t, s.Validate())
}

func TestSnapshot_CloneIsDeep(t *testing.T) {
	t.Parallel()
	s := NewSnapshot(time.Now())
	r := newRecord(t, "x")
	s.Put(r, time.Now())

	c := s.Clone()
	got := c.Records[r.ID]
	got.Tags[0] = "changed"
	*got.URL = "changed"
	got.Secret.Ciphertext[0] = 99

	orig := s.Records[r.ID]
	require.Equal(t, "a", orig.Tags[0])
	require.Equal(t, "https://example.org", *orig.URL)
	require.Equal(t, byte(1), orig.Secret.Ciphertext[0])
}

func TestSnapshot_ValidateDetectsDrift(t *testing.T) {
	t.Parallel()
	s := NewSnapshot(time.Now())
	r := newRecord(t, "x")
	s.Records[r.ID] = r
	require.Error(t, s.Validate())

	s.Metadata.RecordCount = 1
	require.NoError(t, s.Validate())

	other := uuid.Must(uuid.NewV4())
	s.Records[other] = r
	s.Metadata.RecordCount = 2
	require.Error(t, s.Validate())
}

func TestBytes_JSONForms(t *testing.T) {
	t.Parallel()
	out, err := json.Marshal(Bytes{0, 127, 255})
	require.NoError(t, err)
	require.JSONEq(t, `[0,127,255]`, string(out))

	var b Bytes
	require.NoError(t, json.Unmarshal([]byte(`[9,8,7]`), &b))
	require.Equal(t, Bytes{9, 8, 7}, b)

	require.NoError(t, json.Unmarshal([]byte(`"AQID"`), &b))
	require.Equal(t, Bytes{1, 2, 3}, b)

	require.Error(t, json.Unmarshal([]byte(`[256]`), &b))
	require.Error(t, json.Unmarshal([]byte(`"***"`), &b))
}

func TestRecord_URLNullWhenAbsent(t *testing.T) {
	t.Parallel()
	r := newRecord(t, "x")
	r.URL = nil
	out, err := json.Marshal(r)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(out, &m))
	v, ok := m["url"]
	require.True(t, ok)
	require.Nil(t, v)
	require.Contains(t, m, "encrypted_password")
}

func TestParseTarget(t *testing.T) {
	t.Parallel()
	cases := map[string]BackendTarget{
		"":       TargetAll,
		"all":    TargetAll,
		"Local":  TargetLocal,
		"remote": TargetRemote,
		"github": TargetRemote,
		"s3":     TargetObject,
		"object": TargetObject,
	}
	for in, want := range cases {
		got, err := ParseTarget(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}
	_, err := ParseTarget("ftp")
	require.Error(t, err)

	txt, err := TargetRemote.MarshalText()
	require.NoError(t, err)
	require.Equal(t, "remote", string(txt))
	require.Equal(t, "Remote", TargetRemote.String())
}
