package tutaexport

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/tutaexport/tutaexport/internal/api"
	"github.com/tutaexport/tutaexport/internal/codec"
	"github.com/tutaexport/tutaexport/internal/crypto"
	"github.com/tutaexport/tutaexport/internal/export"
)

// mailFetch is one raw mail pulled off the paginator, carried through
// the fetch and decrypt stages alongside its resolved session key.
type mailFetch struct {
	rawMail    api.RawEntity
	mailID     string
	sessionKey []byte
}

// runPipeline implements spec.md §5's fan-out pipeline: a paginator
// stage feeds a bounded channel of raw mails, a pool of fetch workers
// resolves each mail's session key, a second pool of decrypt workers
// pulls its MailDetails and attachments, and a single writer goroutine
// serializes the
// decoded mails to disk. Every stage observes ctx at each suspension
// point; a single cancellation (caller cancel or fatal error) drains
// the pipeline without a partial write left in place (internal/export
// writes atomically via a .tmp file + rename).
func runPipeline(ctx context.Context, c *Client, mailsListID, outDir string, cfg *exportConfig) (ExportSummary, error) {
	if !cfg.dryRun {
		if err := ensureOutDir(outDir); err != nil {
			return ExportSummary{}, fmt.Errorf("prepare output directory: %w", err)
		}
	}

	queueCap := 2 * cfg.concurrency
	rawCh := make(chan api.RawEntity, queueCap)
	decodedCh := make(chan *mailFetch, queueCap)
	writeCh := make(chan *export.Mail, queueCap)

	var summary pipelineSummary
	resolver := crypto.SessionKeyResolver{
		MailGroupKey: c.session.mailGroupKey,
		UserGroupKey: c.session.userGroupKey,
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var paginateErr error
	paginateDone := make(chan struct{})
	go func() {
		defer close(paginateDone)
		defer close(rawCh)
		for raw, err := range c.api.ListAll(ctx, mailsListID, cfg.pageLimit) {
			if err != nil {
				paginateErr = err
				cancel()
				return
			}
			select {
			case rawCh <- raw:
			case <-ctx.Done():
				return
			}
		}
	}()

	var fetchWG sync.WaitGroup
	fetchWG.Add(cfg.concurrency)
	for i := 0; i < cfg.concurrency; i++ {
		go func() {
			defer fetchWG.Done()
			for raw := range rawCh {
				resolveMailSessionKey(ctx, c, raw, resolver, decodedCh, &summary)
			}
		}()
	}
	go func() {
		fetchWG.Wait()
		close(decodedCh)
	}()

	var decryptWG sync.WaitGroup
	decryptWG.Add(cfg.concurrency)
	for i := 0; i < cfg.concurrency; i++ {
		go func() {
			defer decryptWG.Done()
			for item := range decodedCh {
				decryptMail(ctx, c, item, cfg, writeCh, &summary)
			}
		}()
	}
	go func() {
		decryptWG.Wait()
		close(writeCh)
	}()

	writer := export.NewWriter()
	for mail := range writeCh {
		if cfg.dryRun {
			summary.recordSkipped()
			continue
		}
		if _, err := writer.WriteMail(mail, outDir); err != nil {
			summary.recordFailure(mail.ID, fmt.Sprintf("write: %v", err))
			continue
		}
		summary.recordExported()
	}

	<-paginateDone
	if paginateErr != nil {
		return summary.snapshot(), fmt.Errorf("list mails: %w", paginateErr)
	}
	if ctx.Err() != nil && paginateErr == nil {
		return summary.snapshot(), ErrCancelled
	}
	return summary.snapshot(), nil
}

// resolveMailSessionKey is the pipeline's fetch stage for one mail: it
// decodes the unencrypted key-material fields (pass 1, spec.md §4.2),
// resolves the session key via the three-path cascade, and hands the
// mail on to the decrypt stage. A resolve failure is a per-mail skip,
// never fatal to the run (spec.md §7 Crypto policy).
func resolveMailSessionKey(ctx context.Context, c *Client, raw api.RawEntity, resolver crypto.SessionKeyResolver, out chan<- *mailFetch, summary *pipelineSummary) {
	keyView, fieldErrs := codec.Decode(raw, codec.MailDef, nil)
	mailID, _ := keyView["_id"].(string)
	if err := firstFatal(fieldErrs); err != nil {
		summary.recordFailure(mailID, fmt.Sprintf("decode mail envelope: %v", err))
		c.logger.Warn().Str("mail_id", mailID).Err(err).Msg("skipping mail: envelope decode failed")
		return
	}

	ownerEncSessionKey, _ := keyView["ownerEncSessionKey"].([]byte)
	bucketKey, _ := keyView["bucketKey"].([]byte)
	ownerEncBucketKey, _ := keyView["ownerEncBucketKey"].([]byte)

	sessionKey, err := resolver.Resolve(crypto.MailKeyMaterial{
		OwnerEncSessionKey: ownerEncSessionKey,
		BucketKey:          bucketKey,
		OwnerEncBucketKey:  ownerEncBucketKey,
	})
	if err != nil {
		summary.recordFailure(mailID, fmt.Sprintf("resolve session key: %v", err))
		c.logger.Warn().Str("mail_id", mailID).Err(err).Msg("skipping mail: session key unavailable")
		return
	}

	select {
	case out <- &mailFetch{rawMail: raw, mailID: mailID, sessionKey: sessionKey}:
	case <-ctx.Done():
	}
}

// decryptMail is the pipeline's decrypt stage: with the mail's session
// key resolved, it re-decodes the mail envelope (pass 2, now able to
// read Subject), fetches and decrypts MailDetails, fetches and
// decrypts every attachment, and hands a ready-to-render
// [export.Mail] to the writer stage.
func decryptMail(ctx context.Context, c *Client, item *mailFetch, cfg *exportConfig, out chan<- *export.Mail, summary *pipelineSummary) {
	mail, fieldErrs := codec.Decode(item.rawMail, codec.MailDef, item.sessionKey)
	for _, fe := range fieldErrs {
		c.logger.Warn().Str("mail_id", item.mailID).Str("field", fe.Name).Err(fe.Err).Msg("mail field degraded")
	}

	sentAt, _ := mail["sentDate"].(time.Time)
	subject, _ := mail["subject"].(string)
	fromAddress, _ := mail["senderAddress"].(string)
	fromName, _ := mail["senderName"].(string)

	mailDetailsID, _ := mail["mailDetails"].(string)
	rawDetails, err := c.api.GetMailDetails(ctx, mailDetailsID)
	if err != nil {
		summary.recordFailure(item.mailID, fmt.Sprintf("fetch mail details: %v", err))
		c.logger.Warn().Str("mail_id", item.mailID).Err(err).Msg("skipping mail: fetch details failed")
		return
	}
	details, detailErrs := codec.Decode(rawDetails, codec.MailDetailsDef, item.sessionKey)
	for _, fe := range detailErrs {
		c.logger.Warn().Str("mail_id", item.mailID).Str("field", fe.Name).Err(fe.Err).Msg("mail details field degraded")
	}

	body, _ := details["body"].(string)
	bodyFormat, _ := details["bodyFormat"].(float64)
	to := splitAddressList(details["toRecipients"])
	cc := splitAddressList(details["ccRecipients"])
	bcc := splitAddressList(details["bccRecipients"])

	out1 := &export.Mail{
		ID:          item.mailID,
		Subject:     subject,
		FromName:    fromName,
		FromAddress: fromAddress,
		To:          to,
		Cc:          cc,
		Bcc:         bcc,
		SentAt:      sentAt,
	}
	if int(bodyFormat) == codec.BodyFormatHTML {
		out1.BodyHTML = body
	} else {
		out1.BodyText = body
	}

	fileIDs, _ := mail["attachments"].([]string)
	for _, fileID := range fileIDs {
		att, err := fetchAttachment(ctx, c, fileID, cfg, summary, item.mailID)
		if err != nil {
			summary.recordFailure(item.mailID, fmt.Sprintf("attachment %s: %v", fileID, err))
			c.logger.Warn().Str("mail_id", item.mailID).Str("file_id", fileID).Err(err).Msg("attachment skipped")
			continue
		}
		out1.Attachments = append(out1.Attachments, *att)
	}

	select {
	case out <- out1:
	case <-ctx.Done():
	}
}

// fetchAttachment resolves one attachment's own session key (the
// three-path cascade applies per-file too, since shared attachments
// can carry an independent bucket key), fetches its blob, and decrypts
// it. A declared-size mismatch degrades to a zero-length placeholder
// with a WARN instead of failing the whole mail (spec.md §4.4 policy,
// extended to attachments per the size-verification supplement).
func fetchAttachment(ctx context.Context, c *Client, fileID string, cfg *exportConfig, summary *pipelineSummary, mailID string) (*export.Attachment, error) {
	rawFile, err := c.api.GetFile(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("fetch file entity: %w", err)
	}

	keyView, fieldErrs := codec.Decode(rawFile, codec.FileDef, nil)
	if err := firstFatal(fieldErrs); err != nil {
		return nil, fmt.Errorf("decode file envelope: %w", err)
	}

	resolver := crypto.SessionKeyResolver{
		MailGroupKey: c.session.mailGroupKey,
		UserGroupKey: c.session.userGroupKey,
	}
	ownerEncSessionKey, _ := keyView["ownerEncSessionKey"].([]byte)
	bucketKey, _ := keyView["bucketKey"].([]byte)
	ownerEncBucketKey, _ := keyView["ownerEncBucketKey"].([]byte)
	fileKey, err := resolver.Resolve(crypto.MailKeyMaterial{
		OwnerEncSessionKey: ownerEncSessionKey,
		BucketKey:          bucketKey,
		OwnerEncBucketKey:  ownerEncBucketKey,
	})
	if err != nil {
		return nil, fmt.Errorf("resolve file session key: %w", err)
	}

	file, fieldErrs := codec.Decode(rawFile, codec.FileDef, fileKey)
	if err := firstFatal(fieldErrs); err != nil {
		return nil, fmt.Errorf("decode file: %w", err)
	}
	name, _ := file["name"].(string)
	mimeType, _ := file["mimeType"].(string)
	declaredSize, _ := file["size"].(float64)
	blobID, _ := file["blobId"].(string)

	blob, err := c.api.FetchBlob(ctx, blobID)
	if err != nil {
		return nil, fmt.Errorf("fetch blob: %w", err)
	}
	content, err := crypto.Decrypt(fileKey, blob)
	if err != nil {
		return nil, fmt.Errorf("decrypt blob: %w", err)
	}

	if cfg.verifyChecksums && int(declaredSize) != len(content) {
		c.logger.Warn().Str("mail_id", mailID).Str("file_id", fileID).
			Int("declared_size", int(declaredSize)).Int("actual_size", len(content)).
			Msg(ErrAttachmentSizeMismatch.Error())
		content = nil
	}

	return &export.Attachment{Filename: name, MIMEType: mimeType, Content: content}, nil
}

// pipelineSummary accumulates [ExportSummary] counters across
// concurrent pipeline stages behind a single mutex; it is the only
// mutable state shared between stages besides the bounded channels
// (spec.md §5 "Shared state").
type pipelineSummary struct {
	mu      sync.Mutex
	summary ExportSummary
}

func (s *pipelineSummary) recordExported() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summary.Exported++
}

// recordSkipped counts a mail that was fully fetched and decrypted but
// intentionally not written to disk (spec.md §6 --dry-run).
func (s *pipelineSummary) recordSkipped() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summary.Skipped++
}

func (s *pipelineSummary) recordFailure(mailID, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summary.Failed++
	s.summary.FailedReasons = append(s.summary.FailedReasons, fmt.Sprintf("%s: %s", mailID, reason))
}

func (s *pipelineSummary) snapshot() ExportSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summary
}

// ensureOutDir creates outDir (and any missing parents) if it does not
// already exist.
func ensureOutDir(outDir string) error {
	return os.MkdirAll(outDir, 0o755)
}

// splitAddressList splits a decoded recipient-list field into its
// addresses. MailDetails carries To/Cc/Bcc as a single newline-joined
// string per address (spec.md §9 Open Questions: wire shape recovered
// by observation, same as [codec.MailGroupTypeCode]); a missing or
// empty field decodes to no addresses.
func splitAddressList(v any) []string {
	s, _ := v.(string)
	if s == "" {
		return nil
	}
	lines := strings.Split(s, "\n")
	addresses := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			addresses = append(addresses, line)
		}
	}
	return addresses
}
