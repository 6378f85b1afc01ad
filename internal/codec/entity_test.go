package codec

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/tutaexport/tutaexport/internal/crypto"
)

func rawMap(t *testing.T, kv map[string]any) map[string]json.RawMessage {
	t.Helper()
	out := make(map[string]json.RawMessage, len(kv))
	for k, v := range kv {
		b, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal %q: %v", k, err)
		}
		out[k] = b
	}
	return out
}

func encryptString(t *testing.T, key []byte, plaintext string) string {
	t.Helper()
	blob, err := crypto.EncryptAuthenticated(key, []byte(plaintext))
	if err != nil {
		t.Fatalf("encrypt fixture: %v", err)
	}
	return crypto.ToBase64(blob)
}

func TestDecode_PlainAndEncryptedFields(t *testing.T) {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}

	def := EntityDef{Fields: []FieldDef{
		{Name: "_id", Type: FieldString, Required: true},
		{Name: "subject", Type: FieldString, Encrypted: true},
		{Name: "unread", Type: FieldBoolean},
	}}

	raw := rawMap(t, map[string]any{
		"_id":     "mail-1",
		"subject": encryptString(t, key, "hello world"),
		"unread":  true,
	})

	entity, errs := Decode(raw, def, key)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if entity["_id"] != "mail-1" {
		t.Errorf("_id = %v", entity["_id"])
	}
	if entity["subject"] != "hello world" {
		t.Errorf("subject = %v", entity["subject"])
	}
	if entity["unread"] != true {
		t.Errorf("unread = %v", entity["unread"])
	}
}

func TestDecode_MissingRequiredFieldIsFatal(t *testing.T) {
	def := EntityDef{Fields: []FieldDef{
		{Name: "_id", Type: FieldString, Required: true},
	}}

	raw := rawMap(t, map[string]any{})
	_, errs := Decode(raw, def, nil)
	if len(errs) != 1 || !errs[0].Fatal {
		t.Fatalf("expected one fatal error, got %+v", errs)
	}
	if !errors.Is(errs[0].Err, ErrMissingField) {
		t.Errorf("err = %v, want ErrMissingField", errs[0].Err)
	}
}

func TestDecode_MissingOptionalFieldIsSkippedSilently(t *testing.T) {
	def := EntityDef{Fields: []FieldDef{
		{Name: "subject", Type: FieldString, Encrypted: true, Required: false},
	}}
	entity, errs := Decode(rawMap(t, map[string]any{}), def, nil)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if _, ok := entity["subject"]; ok {
		t.Error("expected no subject key in entity")
	}
}

func TestDecode_BadMACDoesNotAbortOtherFields(t *testing.T) {
	key := make([]byte, 32)
	other := make([]byte, 32)
	other[0] = 0xFF

	def := EntityDef{Fields: []FieldDef{
		{Name: "_id", Type: FieldString, Required: true},
		{Name: "subject", Type: FieldString, Encrypted: true},
	}}

	raw := rawMap(t, map[string]any{
		"_id":     "mail-1",
		"subject": encryptString(t, other, "wrong key"),
	})

	entity, errs := Decode(raw, def, key)
	if entity["_id"] != "mail-1" {
		t.Errorf("_id should still decode: %v", entity["_id"])
	}
	if len(errs) != 1 {
		t.Fatalf("expected exactly one field error, got %+v", errs)
	}
	if errs[0].Fatal {
		t.Error("a bad MAC on an optional field should not be fatal")
	}
	if errs[0].Name != "subject" {
		t.Errorf("Name = %q", errs[0].Name)
	}
}

func TestDecode_EmbeddedAssociationRecurses(t *testing.T) {
	childDef := &EntityDef{Fields: []FieldDef{
		{Name: "_id", Type: FieldString, Required: true},
	}}
	def := EntityDef{
		Fields: []FieldDef{{Name: "_id", Type: FieldString, Required: true}},
		Associations: []AssociationDef{
			{Name: "mailbox", Kind: AssocEmbedded, Target: childDef},
		},
	}

	raw := rawMap(t, map[string]any{
		"_id":     "user-1",
		"mailbox": map[string]any{"_id": "mbox-1"},
	})

	entity, errs := Decode(raw, def, nil)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	child, ok := entity["mailbox"].(Entity)
	if !ok {
		t.Fatalf("mailbox is not an Entity: %T", entity["mailbox"])
	}
	if child["_id"] != "mbox-1" {
		t.Errorf("child _id = %v", child["_id"])
	}
}

func TestDecode_MultiEmbeddedAssociationRecursesOverEachElement(t *testing.T) {
	childDef := &EntityDef{Fields: []FieldDef{
		{Name: "group", Type: FieldString, Required: true},
	}}
	def := EntityDef{
		Fields: []FieldDef{{Name: "_id", Type: FieldString, Required: true}},
		Associations: []AssociationDef{
			{Name: "memberships", Kind: AssocEmbedded, Multi: true, Target: childDef},
		},
	}

	raw := rawMap(t, map[string]any{
		"_id": "user-1",
		"memberships": []map[string]any{
			{"group": "group-a"},
			{"group": "group-b"},
		},
	})

	entity, errs := Decode(raw, def, nil)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	children, ok := entity["memberships"].([]Entity)
	if !ok {
		t.Fatalf("memberships is not []Entity: %T", entity["memberships"])
	}
	if len(children) != 2 || children[0]["group"] != "group-a" || children[1]["group"] != "group-b" {
		t.Errorf("memberships = %+v", children)
	}
}

func TestDecode_LinkedAssociationIsJustTheID(t *testing.T) {
	def := EntityDef{
		Fields:       []FieldDef{{Name: "_id", Type: FieldString, Required: true}},
		Associations: []AssociationDef{{Name: "mailDetails", Kind: AssocLinked}},
	}
	raw := rawMap(t, map[string]any{"_id": "mail-1", "mailDetails": "details-1"})

	entity, errs := Decode(raw, def, nil)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if entity["mailDetails"] != "details-1" {
		t.Errorf("mailDetails = %v", entity["mailDetails"])
	}
}

func TestDecode_IgnoresUnknownTopLevelKeys(t *testing.T) {
	def := EntityDef{Fields: []FieldDef{{Name: "_id", Type: FieldString, Required: true}}}
	raw := rawMap(t, map[string]any{"_id": "x", "somethingNew": "value"})

	entity, errs := Decode(raw, def, nil)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if _, ok := entity["somethingNew"]; ok {
		t.Error("unknown key should not appear in decoded entity")
	}
}

func TestDecode_UnencryptedBytesFieldIsBase64Decoded(t *testing.T) {
	def := EntityDef{Fields: []FieldDef{
		{Name: "userGroupKeyEnc", Type: FieldBytes, Required: true},
	}}
	raw := rawMap(t, map[string]any{"userGroupKeyEnc": crypto.ToBase64([]byte("wrapped-key"))})

	entity, errs := Decode(raw, def, nil)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	got, ok := entity["userGroupKeyEnc"].([]byte)
	if !ok {
		t.Fatalf("userGroupKeyEnc is not []byte: %T", entity["userGroupKeyEnc"])
	}
	if string(got) != "wrapped-key" {
		t.Errorf("userGroupKeyEnc = %q", got)
	}
}

func TestDecode_MultiLinkedAssociationIsIDSlice(t *testing.T) {
	def := EntityDef{
		Fields:       []FieldDef{{Name: "_id", Type: FieldString, Required: true}},
		Associations: []AssociationDef{{Name: "attachments", Kind: AssocLinked, Multi: true}},
	}
	raw := rawMap(t, map[string]any{"_id": "mail-1", "attachments": []string{"file-1", "file-2"}})

	entity, errs := Decode(raw, def, nil)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	ids, ok := entity["attachments"].([]string)
	if !ok {
		t.Fatalf("attachments is not []string: %T", entity["attachments"])
	}
	if len(ids) != 2 || ids[0] != "file-1" || ids[1] != "file-2" {
		t.Errorf("attachments = %v", ids)
	}
}

func TestDecode_EncryptedDateFieldIsBigEndianMillis(t *testing.T) {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}

	const wantMillis = int64(1700000000000)
	plaintext := make([]byte, 8)
	binary.BigEndian.PutUint64(plaintext, uint64(wantMillis))
	blob, err := crypto.EncryptAuthenticated(key, plaintext)
	if err != nil {
		t.Fatalf("encrypt fixture: %v", err)
	}

	def := EntityDef{Fields: []FieldDef{
		{Name: "editedAt", Type: FieldDate, Encrypted: true},
	}}
	raw := rawMap(t, map[string]any{"editedAt": crypto.ToBase64(blob)})

	entity, errs := Decode(raw, def, key)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	got, ok := entity["editedAt"].(time.Time)
	if !ok {
		t.Fatalf("editedAt is not time.Time: %T", entity["editedAt"])
	}
	if want := time.UnixMilli(wantMillis).UTC(); !got.Equal(want) {
		t.Errorf("editedAt = %v, want %v", got, want)
	}
}

func TestDecode_DateField(t *testing.T) {
	def := EntityDef{Fields: []FieldDef{{Name: "sentDate", Type: FieldDate, Required: true}}}
	raw := rawMap(t, map[string]any{"sentDate": "1700000000000"})

	entity, errs := Decode(raw, def, nil)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if _, ok := entity["sentDate"]; !ok {
		t.Fatal("sentDate missing")
	}
}
