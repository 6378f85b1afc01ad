// Package export renders a decoded mail as an RFC 2822 + MIME message
// and writes it atomically to an output directory, one file per mail
// (spec.md §4.7).
package export

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Attachment is one file attached to a mail, already decrypted and
// fetched from blob storage.
type Attachment struct {
	Filename string
	MIMEType string
	Content  []byte
}

// Mail is the fully decoded, ready-to-render view of a mail. It is
// deliberately independent of internal/codec's Entity shape so this
// package has no dependency on the key hierarchy or wire format.
type Mail struct {
	ID          string
	Subject     string
	FromName    string
	FromAddress string
	To          []string
	Cc          []string
	Bcc         []string
	SentAt      time.Time
	BodyText    string
	// BodyHTML, when non-empty, produces a multipart/alternative body
	// alongside BodyText (spec.md §4.7). Leave empty for a plaintext-only
	// mail.
	BodyHTML    string
	Attachments []Attachment
}

// Writer renders and atomically writes mails into a single output
// directory, handing out collision-free filenames across the run.
type Writer struct {
	names *nameSequencer
}

// NewWriter creates a Writer. A Writer is bound to one export run and
// one output directory.
func NewWriter() *Writer {
	return &Writer{names: newNameSequencer()}
}

// WriteMail renders m as an RFC 2822 + MIME message and writes it to
// outDir, returning the path written. The write is atomic: content
// lands in a ".tmp" sibling file first, then os.Rename swaps it into
// place, so a crash mid-write never leaves a truncated .eml behind.
func (w *Writer) WriteMail(m *Mail, outDir string) (string, error) {
	body, err := assembleMessage(m)
	if err != nil {
		return "", fmt.Errorf("assemble message %s: %w", m.ID, err)
	}

	name := w.names.next(m.SentAt, m.Subject, outDir) + ".eml"
	finalPath := filepath.Join(outDir, name)
	tmpPath := finalPath + ".tmp"

	if err := os.WriteFile(tmpPath, body, 0o644); err != nil {
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("rename into place: %w", err)
	}

	return finalPath, nil
}

// assembleMessage builds the raw RFC 2822 message: headers, then a
// single quoted-printable text part for a plain-text mail without
// attachments, a multipart/alternative body for an HTML mail without
// attachments, or a multipart/mixed body when there are attachments.
func assembleMessage(m *Mail) ([]byte, error) {
	var buf bytes.Buffer

	writeHeader(&buf, "Message-ID", fmt.Sprintf("<%s@tutaexport.invalid>", m.ID))
	writeHeader(&buf, "Date", m.SentAt.UTC().Format(time.RFC1123Z))
	writeHeader(&buf, "From", formatAddress(m.FromName, m.FromAddress))
	if len(m.To) > 0 {
		writeHeader(&buf, "To", strings.Join(m.To, ", "))
	}
	if len(m.Cc) > 0 {
		writeHeader(&buf, "Cc", strings.Join(m.Cc, ", "))
	}
	if len(m.Bcc) > 0 {
		writeHeader(&buf, "Bcc", strings.Join(m.Bcc, ", "))
	}
	writeHeader(&buf, "Subject", mime.QEncoding.Encode("utf-8", m.Subject))
	writeHeader(&buf, "MIME-Version", "1.0")

	hasHTML := m.BodyHTML != ""
	hasAttachments := len(m.Attachments) > 0

	switch {
	case !hasAttachments && !hasHTML:
		writeHeader(&buf, "Content-Type", `text/plain; charset="utf-8"`)
		writeHeader(&buf, "Content-Transfer-Encoding", "quoted-printable")
		buf.WriteString("\r\n")
		if err := writeQuotedPrintablePart(&buf, m.BodyText); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil

	case !hasAttachments && hasHTML:
		contentType, body, err := assembleAlternativeBody(m)
		if err != nil {
			return nil, err
		}
		writeHeader(&buf, "Content-Type", contentType)
		buf.WriteString("\r\n")
		buf.Write(body)
		return buf.Bytes(), nil
	}

	mw := multipart.NewWriter(&buf)
	writeHeader(&buf, "Content-Type", fmt.Sprintf(`multipart/mixed; boundary="%s"`, mw.Boundary()))
	buf.WriteString("\r\n")

	if hasHTML {
		altType, altBody, err := assembleAlternativeBody(m)
		if err != nil {
			return nil, err
		}
		altHeader := textproto.MIMEHeader{}
		altHeader.Set("Content-Type", altType)
		altPart, err := mw.CreatePart(altHeader)
		if err != nil {
			return nil, err
		}
		if _, err := altPart.Write(altBody); err != nil {
			return nil, err
		}
	} else {
		textHeader := textproto.MIMEHeader{}
		textHeader.Set("Content-Type", `text/plain; charset="utf-8"`)
		textHeader.Set("Content-Transfer-Encoding", "quoted-printable")
		textPart, err := mw.CreatePart(textHeader)
		if err != nil {
			return nil, err
		}
		if err := writeQuotedPrintablePart(textPart, m.BodyText); err != nil {
			return nil, err
		}
	}

	for _, att := range m.Attachments {
		attHeader := textproto.MIMEHeader{}
		contentType := att.MIMEType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		attHeader.Set("Content-Type", contentType)
		attHeader.Set("Content-Transfer-Encoding", "base64")
		attHeader.Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, mime.BEncoding.Encode("utf-8", att.Filename)))

		part, err := mw.CreatePart(attHeader)
		if err != nil {
			return nil, err
		}
		encoded := base64.StdEncoding.EncodeToString(att.Content)
		if _, err := writeWrapped(part, encoded, 76); err != nil {
			return nil, err
		}
	}

	if err := mw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeQuotedPrintablePart writes s quoted-printable encoded to w,
// the line discipline every plain-text body part in this package uses.
func writeQuotedPrintablePart(w interface{ Write([]byte) (int, error) }, s string) error {
	qp := quotedprintable.NewWriter(w)
	if _, err := qp.Write([]byte(s)); err != nil {
		return err
	}
	return qp.Close()
}

// assembleAlternativeBody renders m's plaintext and HTML variants as a
// nested multipart/alternative, for embedding either as the whole
// message body or as the first part of an outer multipart/mixed when
// the mail also has attachments.
func assembleAlternativeBody(m *Mail) (contentType string, body []byte, err error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	textHeader := textproto.MIMEHeader{}
	textHeader.Set("Content-Type", `text/plain; charset="utf-8"`)
	textHeader.Set("Content-Transfer-Encoding", "quoted-printable")
	textPart, err := mw.CreatePart(textHeader)
	if err != nil {
		return "", nil, err
	}
	if err := writeQuotedPrintablePart(textPart, m.BodyText); err != nil {
		return "", nil, err
	}

	htmlHeader := textproto.MIMEHeader{}
	htmlHeader.Set("Content-Type", `text/html; charset="utf-8"`)
	htmlHeader.Set("Content-Transfer-Encoding", "quoted-printable")
	htmlPart, err := mw.CreatePart(htmlHeader)
	if err != nil {
		return "", nil, err
	}
	if err := writeQuotedPrintablePart(htmlPart, m.BodyHTML); err != nil {
		return "", nil, err
	}

	boundary := mw.Boundary()
	if err := mw.Close(); err != nil {
		return "", nil, err
	}
	return fmt.Sprintf(`multipart/alternative; boundary="%s"`, boundary), buf.Bytes(), nil
}

func writeHeader(buf *bytes.Buffer, name, value string) {
	fmt.Fprintf(buf, "%s: %s\r\n", name, value)
}

func formatAddress(name, address string) string {
	if name == "" {
		return address
	}
	return fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", name), address)
}

// writeWrapped writes s to w in fixed-width lines separated by CRLF,
// the line discipline base64 body content needs in a MIME part.
func writeWrapped(w interface{ Write([]byte) (int, error) }, s string, width int) (int, error) {
	total := 0
	for len(s) > 0 {
		n := width
		if n > len(s) {
			n = len(s)
		}
		written, err := w.Write([]byte(s[:n] + "\r\n"))
		total += written
		if err != nil {
			return total, err
		}
		s = s[n:]
	}
	return total, nil
}
