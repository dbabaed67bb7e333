// Package initdata validates the signed launch payload ("initData") that the
// Telegram client hands to a mini app.
//
// The payload is a query string of key=value fields plus a hex HMAC in the
// reserved "hash" field. The HMAC key is itself derived from the bot token:
//
//	secret := HMAC_SHA256(key="WebAppData", msg=botToken)
//	hash   := hex(HMAC_SHA256(key=secret, msg=checkString))
//
// where checkString is every other field, sorted by key, as "key=value" lines.
package initdata

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"net/url"
	"slices"
	"strings"
)

const (
	// HashField is the reserved field carrying the signature.
	HashField = "hash"

	secretKeyLabel = "WebAppData"
	fieldSeparator = "&"
	hashSeparator  = fieldSeparator + HashField + "="
)

var (
	// ErrMalformedPayload is returned when the payload cannot be parsed.
	ErrMalformedPayload = errors.New("malformed init data")
	// ErrSignatureMismatch is returned when the payload signature does not verify.
	// It deliberately carries no detail about which step failed.
	ErrSignatureMismatch = errors.New("invalid init data signature")
)

// Field is one decoded key/value pair.
type Field struct {
	Key   string
	Value string
}

// Payload is a verified launch payload.
type Payload struct {
	fields []Field
}

// Get returns the decoded value for key.
func (p Payload) Get(key string) (string, bool) {
	for _, f := range p.fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return "", false
}

// Fields returns the decoded fields in canonical order, signature excluded.
func (p Payload) Fields() []Field {
	return slices.Clone(p.fields)
}

// Verify checks raw against botToken and returns the decoded payload.
func Verify(raw, botToken string) (Payload, error) {
	fields, signature, err := split(raw)
	if err != nil {
		return Payload{}, err
	}

	expected := sign(CheckString(fields), botToken)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) != 1 {
		return Payload{}, ErrSignatureMismatch
	}
	return Payload{fields: fields}, nil
}

// Sign builds a signed payload for fields. Field order in the output follows
// the input; the signature does not depend on it.
func Sign(fields []Field, botToken string) string {
	parts := make([]string, 0, len(fields)+1)
	for _, f := range fields {
		parts = append(parts, escape(f.Key)+"="+escape(f.Value))
	}
	canonical := canonicalize(fields)
	parts = append(parts, HashField+"="+sign(CheckString(canonical), botToken))
	return strings.Join(parts, fieldSeparator)
}

// CheckString renders fields as the newline-joined "key=value" string that is
// signed. Fields must already be canonical (see Verify); the hash field is skipped.
func CheckString(fields []Field) string {
	var b strings.Builder
	first := true
	for _, f := range fields {
		if f.Key == HashField {
			continue
		}
		if !first {
			b.WriteByte('\n')
		}
		first = false
		b.WriteString(f.Key)
		b.WriteByte('=')
		b.WriteString(f.Value)
	}
	return b.String()
}

// split separates the data fields from the signature and returns the fields
// in canonical order.
func split(raw string) ([]Field, string, error) {
	parts := strings.Split(raw, hashSeparator)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, "", ErrMalformedPayload
	}
	data, signature := parts[0], parts[1]
	// Fields that follow the signature belong to the data part.
	if sig, rest, ok := strings.Cut(signature, fieldSeparator); ok {
		signature = sig
		data += fieldSeparator + rest
	}

	var fields []Field
	for _, entry := range strings.Split(data, fieldSeparator) {
		if entry == "" {
			continue
		}
		k, v, _ := strings.Cut(entry, "=")
		key, err := url.PathUnescape(k)
		if err != nil {
			return nil, "", ErrMalformedPayload
		}
		value, err := url.PathUnescape(v)
		if err != nil {
			return nil, "", ErrMalformedPayload
		}
		if key == HashField {
			continue
		}
		fields = append(fields, Field{Key: key, Value: value})
	}
	if len(fields) == 0 {
		return nil, "", ErrMalformedPayload
	}
	return canonicalize(fields), signature, nil
}

// canonicalize sorts by key using byte-wise comparison. The sort is stable so
// duplicate keys keep their input order.
func canonicalize(fields []Field) []Field {
	out := make([]Field, 0, len(fields))
	for _, f := range fields {
		if f.Key != HashField {
			out = append(out, f)
		}
	}
	slices.SortStableFunc(out, func(a, b Field) int {
		return strings.Compare(a.Key, b.Key)
	})
	return out
}

// escape percent-encodes s so that PathUnescape restores it; spaces become %20.
func escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

func sign(checkString, botToken string) string {
	secret := hmacSHA256([]byte(secretKeyLabel), []byte(botToken))
	return hex.EncodeToString(hmacSHA256(secret, []byte(checkString)))
}

func hmacSHA256(key, data []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return mac.Sum(nil)
}
