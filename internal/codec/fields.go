// Package codec decodes the service's wire entities (User, Mailbox,
// Folder, Mail, MailDetails, File) from their raw JSON field maps,
// decrypting and typing each field according to a data-driven table
// instead of per-entity generated code.
package codec

// FieldType identifies how a field's decrypted bytes should be typed.
type FieldType int

const (
	FieldString FieldType = iota
	FieldDate
	FieldNumber
	FieldBytes
	FieldBoolean
)

func (t FieldType) String() string {
	switch t {
	case FieldString:
		return "string"
	case FieldDate:
		return "date"
	case FieldNumber:
		return "number"
	case FieldBytes:
		return "bytes"
	case FieldBoolean:
		return "boolean"
	default:
		return "unknown"
	}
}

// FieldDef describes one entity field: its wire name, its decoded
// type, and whether it is encrypted, LZ4-compressed, or required.
// Compressed fields are always also Encrypted (compression happens
// before encryption on the wire), per spec.md §4.1.
type FieldDef struct {
	Name       string
	Type       FieldType
	Encrypted  bool
	Compressed bool
	Required   bool
}

// AssocKind distinguishes an association whose target is nested inline
// in the parent's JSON from one that is only referenced by ID and must
// be fetched separately.
type AssocKind int

const (
	AssocEmbedded AssocKind = iota
	AssocLinked
)

// AssociationDef describes one entity association. Embedded
// associations are decoded recursively using Target. OwnKey marks an
// embedded association whose child entity carries its own
// key-hierarchy fields; [Decode] does not act on it: every embedded
// association, OwnKey or not, is decoded with the parent's session key.
// Multi marks an association that holds a list rather than a single
// value: a list of IDs for a linked association (e.g. a mail's
// attachments), a list of entities for an embedded one (e.g. a user's
// memberships).
type AssociationDef struct {
	Name   string
	Kind   AssocKind
	OwnKey bool
	Multi  bool
	Target *EntityDef
}

// EntityDef is the full wire shape of one entity type: its fields plus
// its associations.
type EntityDef struct {
	Fields       []FieldDef
	Associations []AssociationDef
}
