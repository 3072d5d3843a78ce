// Package model defines domain entities used by services and repositories.
package model

import (
	"encoding/json"
	"time"

	"github.com/gofrs/uuid/v5"
)

// SchemaVersion is written into every new snapshot.
const SchemaVersion = "1.0.0"

// EncryptedBlob is the output of one encryption. Nonce and salt are kept verbatim
// so the same passphrase can re-derive the key and open the ciphertext.
type EncryptedBlob struct {
	Ciphertext Bytes `json:"ciphertext"`
	Nonce      Bytes `json:"nonce"` // 12 bytes, AES-GCM
	Salt       Bytes `json:"salt"`  // 16 bytes, Argon2id
}

// Clone returns a blob that shares no memory with b.
func (b EncryptedBlob) Clone() EncryptedBlob {
	return EncryptedBlob{
		Ciphertext: b.Ciphertext.clone(),
		Nonce:      b.Nonce.clone(),
		Salt:       b.Salt.clone(),
	}
}

// Record is one stored credential. Only the password is encrypted.
type Record struct {
	ID          uuid.UUID     `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Tags        []string      `json:"tags"`
	Username    string        `json:"username"`
	Secret      EncryptedBlob `json:"encrypted_password"`
	URL         *string       `json:"url"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// Clone deep-copies r so that backends never share tags, url or blob bytes.
func (r Record) Clone() Record {
	out := r
	if r.Tags != nil {
		out.Tags = append([]string(nil), r.Tags...)
	}
	if r.URL != nil {
		u := *r.URL
		out.URL = &u
	}
	out.Secret = r.Secret.Clone()
	return out
}

// recordJSON has Record's fields without its methods.
type recordJSON Record

// MarshalJSON writes missing tags as an empty array, never null.
func (r Record) MarshalJSON() ([]byte, error) {
	v := recordJSON(r)
	if v.Tags == nil {
		v.Tags = []string{}
	}
	return json.Marshal(v)
}

// UnmarshalJSON reads an empty or null tag list back as nil.
func (r *Record) UnmarshalJSON(data []byte) error {
	var v recordJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if len(v.Tags) == 0 {
		v.Tags = nil
	}
	*r = Record(v)
	return nil
}

// Metadata describes a snapshot as a whole.
type Metadata struct {
	Version     string    `json:"version"`
	LastSync    time.Time `json:"last_sync"`
	RecordCount int       `json:"password_count"` // always len(Records)
}

// Snapshot is the full contents of one backend.
type Snapshot struct {
	Metadata Metadata             `json:"metadata"`
	Records  map[uuid.UUID]Record `json:"records"`
}

// AddRequest carries plaintext input for a new record. Key is the passphrase.
type AddRequest struct {
	Title       string
	Description string
	Tags        []string
	Username    string
	Password    string
	Key         string
	URL         *string
}

// UpdateRequest changes only the non-nil fields. A new Password needs Key.
type UpdateRequest struct {
	Title       *string
	Description *string
	Tags        *[]string
	Username    *string
	URL         *string // empty string clears the url
	Password    *string
	Key         string
}

// StorageStatus reports one backend's health and cached contents.
type StorageStatus struct {
	Target      BackendTarget `json:"target"`
	Connected   bool          `json:"connected"`
	RecordCount int           `json:"record_count"`
	LastSync    time.Time     `json:"last_sync"`
	Error       string        `json:"error,omitempty"`
}

// GenerateOptions configures the password generator. Zero value means
// default length with every character class.
type GenerateOptions struct {
	Length    int
	NoUpper   bool
	NoLower   bool
	NoDigits  bool
	NoSymbols bool
	Exclude   string
}
