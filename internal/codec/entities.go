package codec

// MailGroupTypeCode identifies a "Mail" group membership in the
// server's groupType enumeration (spec.md §9 Open Questions: recovered
// by observation, like the bcrypt truncation in internal/crypto/kdf.go).
const MailGroupTypeCode = 5

// GroupMembershipDef describes one entry of User.memberships: which
// group (by type and ID) the user belongs to, and that group's key
// wrapped under the user's own group key (spec.md §3 "Group keys").
// The mail-group key the key hierarchy needs is the membership whose
// GroupType equals [MailGroupTypeCode].
var GroupMembershipDef = EntityDef{
	Fields: []FieldDef{
		{Name: "group", Type: FieldString, Required: true},
		{Name: "groupType", Type: FieldNumber, Required: true},
		{Name: "symEncGKey", Type: FieldBytes, Required: true},
	},
}

// UserDef describes the account entity: identity, the wrapped
// user-group key, a reference to the mailbox, and the group
// memberships the key hierarchy walks to reach the mail-group key
// (spec.md §3, §4.2). Group key material is carried as opaque wrapped
// bytes; internal/crypto/keys.go unwraps it, codec only surfaces it.
var UserDef = EntityDef{
	Fields: []FieldDef{
		{Name: "_id", Type: FieldString, Required: true},
		{Name: "mailAddress", Type: FieldString, Required: true},
		{Name: "userGroupKeyEnc", Type: FieldBytes, Required: true},
	},
	Associations: []AssociationDef{
		{Name: "mailbox", Kind: AssocLinked},
		{Name: "memberships", Kind: AssocEmbedded, Multi: true, Target: &GroupMembershipDef},
	},
}

// MailboxDef describes a user's mailbox, whose only role in this
// exporter is to anchor the folder list.
var MailboxDef = EntityDef{
	Fields: []FieldDef{
		{Name: "_id", Type: FieldString, Required: true},
		{Name: "folders", Type: FieldString, Required: true},
	},
}

// FolderDef describes one mail folder: its display name (encrypted
// under the mail-group key) and the LIST id holding its mails.
var FolderDef = EntityDef{
	Fields: []FieldDef{
		{Name: "_id", Type: FieldString, Required: true},
		{Name: "name", Type: FieldString, Encrypted: true, Required: true},
		{Name: "mails", Type: FieldString, Required: true},
		{Name: "folderType", Type: FieldNumber, Required: false},
	},
}

// MailDef describes a mail's envelope: list-view metadata plus the key
// material [crypto.SessionKeyResolver] needs to recover the mail's
// session key. Callers decode a mail twice (spec.md §4.2/§4.4): once
// with a nil session key to read the unencrypted key-material fields,
// then again with the resolved session key to decrypt Subject.
var MailDef = EntityDef{
	Fields: []FieldDef{
		{Name: "_id", Type: FieldString, Required: true},
		{Name: "subject", Type: FieldString, Encrypted: true, Required: false},
		{Name: "sentDate", Type: FieldDate, Required: true},
		{Name: "unread", Type: FieldBoolean, Required: false},
		{Name: "ownerEncSessionKey", Type: FieldBytes, Required: false},
		{Name: "bucketKey", Type: FieldBytes, Required: false},
		{Name: "ownerEncBucketKey", Type: FieldBytes, Required: false},
		{Name: "senderAddress", Type: FieldString, Required: true},
		{Name: "senderName", Type: FieldString, Encrypted: true, Required: false},
	},
	Associations: []AssociationDef{
		{Name: "mailDetails", Kind: AssocLinked},
		{Name: "attachments", Kind: AssocLinked, Multi: true},
	},
}

// bodyFormat values distinguish MailDetails.body's content.
const (
	BodyFormatPlaintext = 0
	BodyFormatHTML      = 1
)

// MailDetailsDef describes a mail's full body and header data, fetched
// only for mails the export pipeline actually writes out. All
// encrypted fields are decrypted under the owning mail's session key
// (spec.md §3 invariant: "a mail's session key decrypts both the mail
// envelope and its MailDetails").
var MailDetailsDef = EntityDef{
	Fields: []FieldDef{
		{Name: "_id", Type: FieldString, Required: true},
		{Name: "body", Type: FieldString, Encrypted: true, Compressed: true, Required: false},
		{Name: "bodyFormat", Type: FieldNumber, Required: false},
		{Name: "replyTo", Type: FieldString, Encrypted: true, Required: false},
		{Name: "extendedHeaders", Type: FieldString, Encrypted: true, Compressed: true, Required: false},
		{Name: "toRecipients", Type: FieldString, Encrypted: true, Compressed: true, Required: false},
		{Name: "ccRecipients", Type: FieldString, Encrypted: true, Compressed: true, Required: false},
		{Name: "bccRecipients", Type: FieldString, Encrypted: true, Compressed: true, Required: false},
	},
}

// FileDef describes one attachment's metadata and its own session-key
// envelope (spec.md §3: "File: ... plus a reference to the encrypted
// blob"). A file's session key is resolved the same three-path cascade
// as a mail's, since shared/externally-delivered attachments can carry
// their own bucket key independent of the owning mail.
var FileDef = EntityDef{
	Fields: []FieldDef{
		{Name: "_id", Type: FieldString, Required: true},
		{Name: "name", Type: FieldString, Encrypted: true, Required: true},
		{Name: "mimeType", Type: FieldString, Encrypted: true, Required: false},
		{Name: "size", Type: FieldNumber, Required: true},
		{Name: "blobId", Type: FieldString, Required: true},
		{Name: "ownerEncSessionKey", Type: FieldBytes, Required: false},
		{Name: "bucketKey", Type: FieldBytes, Required: false},
		{Name: "ownerEncBucketKey", Type: FieldBytes, Required: false},
	},
}
