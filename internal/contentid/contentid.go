// Package contentid derives stable content identifiers for normalized posts.
//
// A ContentID is the SHA-256 of the post's canonical JSON form: object keys
// sorted, no insignificant whitespace, every non-ASCII character written as a
// lowercase \uXXXX escape (surrogate pairs above the BMP). That form is
// byte-identical to Python's json.dumps(sort_keys=True, separators=(',', ':')),
// which produced the identifiers of records already in the store.
package contentid

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"unicode/utf16"

	"github.com/tbourn/tweet-anchoring/internal/domain"
)

// Compute returns the ContentID of p. It is pure and deterministic. Fields
// must be valid UTF-8: invalid bytes are written as U+FFFD, so distinct
// invalid strings share an id. timeline.Normalize rejects such posts.
func Compute(p domain.NormalizedPost) domain.ContentID {
	sum := sha256.Sum256(Canonical(p))
	return domain.ContentID(hex.EncodeToString(sum[:]))
}

// Canonical returns the canonical byte serialization of p.
func Canonical(p domain.NormalizedPost) []byte {
	var b bytes.Buffer
	// Only strings: writeValue cannot fail here.
	_ = writeValue(&b, map[string]any{
		"user_id":    p.UserID,
		"text":       p.Text,
		"id":         p.ID,
		"created_at": p.CreatedAt,
	})
	return b.Bytes()
}

// Marshal returns the canonical serialization of any JSON-encodable value.
func Marshal(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, err
	}
	var b bytes.Buffer
	if err := writeValue(&b, generic); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

func writeValue(b *bytes.Buffer, v any) error {
	switch t := v.(type) {
	case nil:
		b.WriteString("null")
	case bool:
		if t {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	case json.Number:
		b.WriteString(t.String())
	case string:
		writeString(b, t)
	case []any:
		b.WriteByte('[')
		for i, e := range t {
			if i > 0 {
				b.WriteByte(',')
			}
			if err := writeValue(b, e); err != nil {
				return err
			}
		}
		b.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			writeString(b, k)
			b.WriteByte(':')
			if err := writeValue(b, t[k]); err != nil {
				return err
			}
		}
		b.WriteByte('}')
	default:
		return fmt.Errorf("contentid: unsupported value of type %T", v)
	}
	return nil
}

const hexDigits = "0123456789abcdef"

func writeString(b *bytes.Buffer, s string) {
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			switch {
			case r >= 0x20 && r <= 0x7e:
				b.WriteByte(byte(r))
			case r > 0xffff:
				hi, lo := utf16.EncodeRune(r)
				writeEscape(b, hi)
				writeEscape(b, lo)
			default:
				writeEscape(b, r)
			}
		}
	}
	b.WriteByte('"')
}

func writeEscape(b *bytes.Buffer, r rune) {
	b.WriteString(`\u`)
	b.WriteByte(hexDigits[(r>>12)&0xf])
	b.WriteByte(hexDigits[(r>>8)&0xf])
	b.WriteByte(hexDigits[(r>>4)&0xf])
	b.WriteByte(hexDigits[r&0xf])
}
