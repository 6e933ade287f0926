// Package meta provides a bounded string map carried by ledger entities.
// Keys and values are size-limited and encoding is deterministic so rows
// can be compared byte-for-byte across stores.
package meta

import (
	"bytes"
	"encoding/json"
	"errors"
	"sort"
)

// Metadata holds free-form key-value attributes on accounts, transactions
// and settlements.
type Metadata map[string]string

const (
	MaxPairs     = 20
	MaxKeyLen    = 64
	MaxValLen    = 256
	MaxTotalJSON = 4096
)

// New copies m into a Metadata value; nil maps become empty.
func New(m map[string]string) Metadata {
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Set stores or overwrites one pair.
func (m Metadata) Set(k, v string) { m[k] = v }

// Get looks up one key.
func (m Metadata) Get(k string) (string, bool) {
	v, ok := m[k]
	return v, ok
}

// Del removes one key if present.
func (m Metadata) Del(k string) { delete(m, k) }

// Clone returns an independent copy.
func (m Metadata) Clone() Metadata {
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Merge overlays other onto m, last writer wins, deterministic key order.
func (m Metadata) Merge(other Metadata) {
	for _, k := range other.sortedKeys() {
		m[k] = other[k]
	}
}

// sortedKeys returns the keys in ascending order; every deterministic
// traversal of the map goes through it.
func (m Metadata) sortedKeys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Validate enforces the pair/key/value/size limits.
func (m Metadata) Validate() error {
	if len(m) > MaxPairs {
		return errors.New("metadata: too many pairs")
	}
	for k, v := range m {
		if len(k) == 0 || len(k) > MaxKeyLen {
			return errors.New("metadata: key empty or too long")
		}
		if len(v) > MaxValLen {
			return errors.New("metadata: value too long")
		}
	}
	b, err := m.MarshalStableJSON()
	if err != nil {
		return err
	}
	if len(b) > MaxTotalJSON {
		return errors.New("metadata: exceeds max encoded size")
	}
	return nil
}

// MarshalStableJSON encodes with keys sorted so equal maps encode equally.
func (m Metadata) MarshalStableJSON() ([]byte, error) {
	if len(m) == 0 {
		return []byte("{}"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.sortedKeys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(m[k])
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON accepts a plain JSON object of strings.
func (m *Metadata) UnmarshalJSON(b []byte) error {
	var raw map[string]string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*m = New(raw)
	return nil
}

// MarshalJSON defers to the stable encoder.
func (m Metadata) MarshalJSON() ([]byte, error) { return m.MarshalStableJSON() }
