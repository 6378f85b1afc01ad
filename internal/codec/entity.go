package codec

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/tutaexport/tutaexport/internal/crypto"
)

// ErrMissingField is wrapped by a [FieldDecryptError] with Fatal set
// when a required, non-association field is absent from the wire
// payload entirely.
var ErrMissingField = errors.New("required field missing")

// Entity is a decoded entity: field name to typed Go value (string,
// time.Time, float64, []byte, or bool for scalar fields; Entity for an
// embedded association, or []Entity when it is Multi; string for a
// linked association's target ID, or []string when it is Multi).
type Entity map[string]any

// FieldDecryptError reports a single field's decode failure. Fatal
// distinguishes a missing required field (the caller must abort the
// whole entity) from a soft decode or decrypt failure on a field that
// is present, required or not (spec.md §4.4: degrade that field, keep
// the rest of the entity).
type FieldDecryptError struct {
	Name  string
	Err   error
	Fatal bool
}

func (e *FieldDecryptError) Error() string {
	return fmt.Sprintf("field %q: %v", e.Name, e.Err)
}

func (e *FieldDecryptError) Unwrap() error { return e.Err }

// Decode decrypts and types every field and embedded association in
// raw according to def, using sessionKey for any field marked
// Encrypted, and passing the same sessionKey down to every embedded
// association. A field decrypt failure does not stop the rest of
// the entity from decoding; it is appended to the returned error slice
// instead. Unknown top-level keys in raw are ignored.
func Decode(raw map[string]json.RawMessage, def EntityDef, sessionKey []byte) (Entity, []FieldDecryptError) {
	entity := make(Entity, len(def.Fields)+len(def.Associations))
	var fieldErrs []FieldDecryptError

	for _, f := range def.Fields {
		rawValue, present := raw[f.Name]
		if !present || len(rawValue) == 0 || string(rawValue) == "null" {
			if f.Required {
				fieldErrs = append(fieldErrs, FieldDecryptError{Name: f.Name, Err: ErrMissingField, Fatal: true})
			}
			continue
		}

		decoded, err := decodeField(f, rawValue, sessionKey)
		if err != nil {
			fieldErrs = append(fieldErrs, FieldDecryptError{Name: f.Name, Err: err})
			continue
		}
		entity[f.Name] = decoded
	}

	for _, a := range def.Associations {
		rawValue, present := raw[a.Name]
		if !present || len(rawValue) == 0 || string(rawValue) == "null" {
			continue
		}

		switch a.Kind {
		case AssocLinked:
			if a.Multi {
				var ids []string
				if err := json.Unmarshal(rawValue, &ids); err != nil {
					fieldErrs = append(fieldErrs, FieldDecryptError{Name: a.Name, Err: err})
					continue
				}
				entity[a.Name] = ids
				continue
			}
			var id string
			if err := json.Unmarshal(rawValue, &id); err != nil {
				fieldErrs = append(fieldErrs, FieldDecryptError{Name: a.Name, Err: err})
				continue
			}
			entity[a.Name] = id

		case AssocEmbedded:
			if a.Target == nil {
				fieldErrs = append(fieldErrs, FieldDecryptError{Name: a.Name, Err: fmt.Errorf("embedded association has no target definition")})
				continue
			}

			if a.Multi {
				var rawList []map[string]json.RawMessage
				if err := json.Unmarshal(rawValue, &rawList); err != nil {
					fieldErrs = append(fieldErrs, FieldDecryptError{Name: a.Name, Err: err})
					continue
				}
				children := make([]Entity, 0, len(rawList))
				for i, childRaw := range rawList {
					child, childErrs := Decode(childRaw, *a.Target, sessionKey)
					children = append(children, child)
					for _, ce := range childErrs {
						fieldErrs = append(fieldErrs, FieldDecryptError{
							Name:  fmt.Sprintf("%s[%d].%s", a.Name, i, ce.Name),
							Err:   ce.Err,
							Fatal: ce.Fatal,
						})
					}
				}
				entity[a.Name] = children
				continue
			}

			var childRaw map[string]json.RawMessage
			if err := json.Unmarshal(rawValue, &childRaw); err != nil {
				fieldErrs = append(fieldErrs, FieldDecryptError{Name: a.Name, Err: err})
				continue
			}
			child, childErrs := Decode(childRaw, *a.Target, sessionKey)
			entity[a.Name] = child
			for _, ce := range childErrs {
				fieldErrs = append(fieldErrs, FieldDecryptError{Name: a.Name + "." + ce.Name, Err: ce.Err, Fatal: ce.Fatal})
			}
		}
	}

	return entity, fieldErrs
}

func decodeField(f FieldDef, rawValue json.RawMessage, sessionKey []byte) (any, error) {
	if !f.Encrypted {
		return decodePlainField(f, rawValue)
	}

	var encoded string
	if err := json.Unmarshal(rawValue, &encoded); err != nil {
		return nil, fmt.Errorf("decode wire value: %w", err)
	}
	if encoded == "" {
		return zeroValueFor(f.Type), nil
	}

	blob, err := crypto.FromBase64(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}

	plaintext, err := crypto.Decrypt(sessionKey, blob)
	if err != nil {
		return nil, err
	}

	if f.Compressed {
		plaintext, err = crypto.DecodeLZ4(plaintext, 0)
		if err != nil {
			return nil, err
		}
	}

	return typePlaintext(f, plaintext)
}

func decodePlainField(f FieldDef, rawValue json.RawMessage) (any, error) {
	switch f.Type {
	case FieldBoolean:
		var b bool
		if err := json.Unmarshal(rawValue, &b); err != nil {
			return nil, err
		}
		return b, nil
	case FieldBytes:
		// An unencrypted Bytes field is wire-wrapped key material
		// (e.g. User.userGroupKeyEnc): base64 on the wire, unwrapped
		// with a key from outside the session-key hierarchy by
		// internal/crypto/keys.go, not by this generic decrypt path.
		var s string
		if err := json.Unmarshal(rawValue, &s); err != nil {
			return nil, err
		}
		if s == "" {
			return []byte(nil), nil
		}
		return crypto.FromBase64(s)
	case FieldNumber:
		var n string
		if err := json.Unmarshal(rawValue, &n); err == nil {
			return strconv.ParseFloat(n, 64)
		}
		var f64 float64
		if err := json.Unmarshal(rawValue, &f64); err != nil {
			return nil, err
		}
		return f64, nil
	case FieldDate:
		var ms string
		if err := json.Unmarshal(rawValue, &ms); err != nil {
			return nil, err
		}
		return parseEpochMillis(ms)
	default:
		var s string
		if err := json.Unmarshal(rawValue, &s); err != nil {
			return nil, err
		}
		return s, nil
	}
}

func typePlaintext(f FieldDef, plaintext []byte) (any, error) {
	switch f.Type {
	case FieldBytes:
		return plaintext, nil
	case FieldBoolean:
		return len(plaintext) > 0 && plaintext[0] != 0, nil
	case FieldNumber:
		n, err := strconv.ParseFloat(string(plaintext), 64)
		if err != nil {
			return nil, fmt.Errorf("parse number: %w", err)
		}
		return n, nil
	case FieldDate:
		return parseEpochMillisBytes(plaintext)
	default:
		if !utf8.Valid(plaintext) {
			return nil, crypto.ErrUTF8Invalid
		}
		return string(plaintext), nil
	}
}

func parseEpochMillis(s string) (time.Time, error) {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date: %w", err)
	}
	return time.UnixMilli(ms).UTC(), nil
}

// parseEpochMillisBytes decodes a decrypted Date field per spec.md
// §4.4's post-decrypt interpretation: "64-bit big-endian milliseconds
// since Unix epoch", distinct from an unencrypted Date field's plain
// ASCII-decimal JSON string ([parseEpochMillis]).
func parseEpochMillisBytes(b []byte) (time.Time, error) {
	if len(b) != 8 {
		return time.Time{}, fmt.Errorf("parse date: expected 8 bytes, got %d", len(b))
	}
	return time.UnixMilli(int64(binary.BigEndian.Uint64(b))).UTC(), nil
}

func zeroValueFor(t FieldType) any {
	switch t {
	case FieldBytes:
		return []byte(nil)
	case FieldBoolean:
		return false
	case FieldNumber:
		return float64(0)
	case FieldDate:
		return time.Time{}
	default:
		return ""
	}
}
