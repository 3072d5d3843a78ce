package model

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Bytes is a byte slice persisted as a JSON array of numbers, the format
// existing vault files use. Base64 strings are accepted on read as well.
type Bytes []byte

func (b Bytes) clone() Bytes {
	if b == nil {
		return nil
	}
	return append(Bytes(nil), b...)
}

// MarshalJSON writes b as [n, n, ...].
func (b Bytes) MarshalJSON() ([]byte, error) {
	ints := make([]int, len(b))
	for i, v := range b {
		ints[i] = int(v)
	}
	return json.Marshal(ints)
}

// UnmarshalJSON reads either a number array or a base64 string.
func (b *Bytes) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		raw, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return fmt.Errorf("bytes: %w", err)
		}
		*b = nilIfEmpty(raw)
		return nil
	}
	var ints []int
	if err := json.Unmarshal(data, &ints); err != nil {
		return err
	}
	out := make(Bytes, len(ints))
	for i, v := range ints {
		if v < 0 || v > 255 {
			return fmt.Errorf("bytes: value %d at %d out of range", v, i)
		}
		out[i] = byte(v)
	}
	*b = nilIfEmpty(out)
	return nil
}

func nilIfEmpty(b []byte) Bytes {
	if len(b) == 0 {
		return nil
	}
	return b
}
