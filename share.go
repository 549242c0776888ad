package printkit

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// ShareParam is the query parameter that carries a shared document.
const ShareParam = "d"

// EncodeShare serializes the snapshot's fields as URL-safe base64 JSON.
func EncodeShare(snap Snapshot) (string, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("printkit: encoding share: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

// DecodeShare reverses [EncodeShare] and normalizes the fields through
// schema. Padded and standard-alphabet input is accepted too.
func DecodeShare(schema *Schema, s string) (Snapshot, error) {
	s = strings.TrimRight(strings.TrimSpace(s), "=")
	s = strings.NewReplacer("+", "-", "/", "_").Replace(s)
	data, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return Snapshot{}, fmt.Errorf("printkit: decoding share: %w", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return Snapshot{}, fmt.Errorf("printkit: decoding share: %w", err)
	}
	return NewSnapshot(schema, raw), nil
}

// ShareURL returns base with the encoded snapshot in the "d" parameter.
func ShareURL(base string, snap Snapshot) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("printkit: invalid share base %q: %w", base, err)
	}
	enc, err := EncodeShare(snap)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set(ShareParam, enc)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
