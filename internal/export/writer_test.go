package export

import (
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestWriter_WriteMail_SimpleTextBody(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter()

	m := &Mail{
		ID:          "mail-1",
		Subject:     "Hello there",
		FromName:    "Alice",
		FromAddress: "alice@example.com",
		To:          []string{"bob@example.com"},
		SentAt:      time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		BodyText:    "plain body text",
	}

	path, err := w.WriteMail(m, dir)
	if err != nil {
		t.Fatalf("WriteMail: %v", err)
	}
	if filepath.Dir(path) != dir {
		t.Errorf("path %q not under %q", path, dir)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open written file: %v", err)
	}
	defer f.Close()

	msg, err := mail.ReadMessage(f)
	if err != nil {
		t.Fatalf("parse written message: %v", err)
	}
	if got := msg.Header.Get("From"); got == "" {
		t.Error("From header missing")
	}
	if got := msg.Header.Get("To"); got != "bob@example.com" {
		t.Errorf("To = %q", got)
	}
}

func TestWriter_WriteMail_HTMLBodyProducesAlternative(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter()

	m := &Mail{
		ID:          "mail-html",
		Subject:     "HTML mail",
		FromAddress: "a@x.test",
		SentAt:      time.Now(),
		BodyText:    "hi",
		BodyHTML:    "<p>hi</p>",
	}

	path, err := w.WriteMail(m, dir)
	if err != nil {
		t.Fatalf("WriteMail: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !containsAll(string(data), "multipart/alternative", "text/plain", "text/html") {
		t.Errorf("expected multipart/alternative body, got:\n%s", data)
	}
}

func TestWriter_WriteMail_HTMLBodyWithAttachmentNestsAlternativeInMixed(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter()

	m := &Mail{
		ID:          "mail-html-att",
		Subject:     "HTML with attachment",
		FromAddress: "a@x.test",
		SentAt:      time.Now(),
		BodyText:    "hi",
		BodyHTML:    "<p>hi</p>",
		Attachments: []Attachment{{Filename: "doc.pdf", MIMEType: "application/pdf", Content: []byte("pdf bytes")}},
	}

	path, err := w.WriteMail(m, dir)
	if err != nil {
		t.Fatalf("WriteMail: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !containsAll(string(data), "multipart/mixed", "multipart/alternative", "text/html", "doc.pdf") {
		t.Errorf("expected nested alternative-in-mixed body, got:\n%s", data)
	}
}

func TestWriter_WriteMail_WithAttachment(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter()

	m := &Mail{
		ID:          "mail-2",
		Subject:     "with attachment",
		FromAddress: "sender@example.com",
		SentAt:      time.Now(),
		BodyText:    "see attached",
		Attachments: []Attachment{
			{Filename: "notes.txt", MIMEType: "text/plain", Content: []byte("attachment bytes")},
		},
	}

	path, err := w.WriteMail(m, dir)
	if err != nil {
		t.Fatalf("WriteMail: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !containsAll(string(data), "multipart/mixed", "notes.txt", "YXR0YWNobWVudCBieXRlcw==") {
		t.Errorf("expected multipart body with attachment, got:\n%s", data)
	}
}

func TestWriter_WriteMail_NoTmpFileLeftBehind(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter()
	m := &Mail{ID: "mail-3", FromAddress: "a@example.com", SentAt: time.Now(), BodyText: "x"}

	if _, err := w.WriteMail(m, dir); err != nil {
		t.Fatalf("WriteMail: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".tmp" {
			t.Errorf("leftover tmp file: %s", e.Name())
		}
	}
}

func TestWriter_WriteMail_CollidingSubjectsGetSuffixed(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter()
	when := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	m1 := &Mail{ID: "a", Subject: "Same subject", FromAddress: "a@example.com", SentAt: when, BodyText: "one"}
	m2 := &Mail{ID: "b", Subject: "Same subject", FromAddress: "a@example.com", SentAt: when, BodyText: "two"}

	p1, err := w.WriteMail(m1, dir)
	if err != nil {
		t.Fatalf("WriteMail 1: %v", err)
	}
	p2, err := w.WriteMail(m2, dir)
	if err != nil {
		t.Fatalf("WriteMail 2: %v", err)
	}
	if p1 == p2 {
		t.Errorf("expected distinct filenames, got %q twice", p1)
	}
}

func TestWriter_WriteMail_FilenameMatchesSpecScenario(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter()

	m := &Mail{
		ID:          "mail-scenario-2",
		Subject:     "Hello world",
		FromAddress: "a@x.test",
		To:          []string{"b@y.test"},
		SentAt:      time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		BodyText:    "hi\n",
	}

	path, err := w.WriteMail(m, dir)
	if err != nil {
		t.Fatalf("WriteMail: %v", err)
	}
	want := filepath.Join(dir, "2024-01-02T03-04-05Z hello-world.eml")
	if path != want {
		t.Errorf("path = %q, want %q", path, want)
	}
}

func TestSafeSubject_StripsUnsafeCharacters(t *testing.T) {
	got := safeSubject(`a/b\c:d*e?f"g<h>i|j`)
	for _, bad := range []string{"/", "\\", ":", "*", "?", "\"", "<", ">", "|"} {
		if strings.Contains(got, bad) {
			t.Errorf("safeSubject result %q still contains %q", got, bad)
		}
	}
}

func TestSafeSubject_EmptyBecomesPlaceholder(t *testing.T) {
	if got := safeSubject("   "); got != "no-subject" {
		t.Errorf("safeSubject(blank) = %q, want no-subject", got)
	}
}

func containsAll(s string, subs ...string) bool {
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			return false
		}
	}
	return true
}
