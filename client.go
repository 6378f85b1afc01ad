package tutaexport

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tutaexport/tutaexport/internal/api"
	"github.com/tutaexport/tutaexport/internal/apierrors"
	"github.com/tutaexport/tutaexport/internal/codec"
	"github.com/tutaexport/tutaexport/internal/crypto"
)

// session holds the unwrapped, read-only key material a signed-in
// client needs for the rest of its lifetime (spec.md §9 "Global
// session state": threaded explicitly rather than kept ambient).
type session struct {
	userID       string
	mailboxID    string
	userGroupKey []byte
	mailGroupKey []byte
}

// Client is a signed-in handle to one user's mailbox on the mail
// service. It is safe for concurrent use: the key set is read-only
// after [New] returns, the access token is replaced only under
// [api.Client]'s own lock on reauthentication, and [Client.Export]'s
// pipeline stages share only their bounded channels and a
// mutex-guarded summary.
type Client struct {
	api       *api.Client
	session   session
	pageLimit int
	logger    zerolog.Logger

	username string
	password string

	mu     sync.Mutex
	closed bool
}

// New signs in as username/password and runs the full login state
// machine from spec.md §4.6 (Unauthenticated → Ready) in one call:
// fetch the account's KDF salt, derive the passphrase key, exchange an
// auth verifier for an access token, then unwrap the user-group and
// mail-group keys. The returned [Client] is ready for
// [Client.ListFolders] and [Client.Export].
func New(ctx context.Context, username, password string, opts ...Option) (*Client, error) {
	if username == "" || password == "" {
		return nil, ErrMissingCredentials
	}

	cfg := &clientConfig{
		baseURL:     defaultBaseURL,
		pageLimit:   defaultPageLimit,
		blobCeiling: defaultBlobSizeCeiling,
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	c := &Client{
		username:  username,
		password:  password,
		pageLimit: cfg.pageLimit,
		logger:    cfg.logger,
	}

	apiOpts := []api.Option{
		api.WithBlobCeiling(cfg.blobCeiling),
		api.WithReauthenticator(c.reauthenticate),
	}
	if cfg.blobBaseURL != "" {
		apiOpts = append(apiOpts, api.WithBlobBaseURL(cfg.blobBaseURL))
	}
	if cfg.httpClient != nil {
		apiOpts = append(apiOpts, api.WithHTTPClient(cfg.httpClient))
	}
	if cfg.retry != nil {
		apiOpts = append(apiOpts, api.WithRetryConfig(cfg.retry))
	}

	apiClient, err := api.New(cfg.baseURL, apiOpts...)
	if err != nil {
		return nil, fmt.Errorf("build API client: %w", err)
	}
	c.api = apiClient

	sess, _, err := c.login(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAuthFailed, err)
	}
	c.session = sess

	c.logger.Info().Str("user", username).Msg("signed in")
	return c, nil
}

// login runs steps 1-6 of spec.md §4.6 and returns the resolved
// session plus the fresh access token, without mutating c — so it can
// double as [api.Client]'s reauthenticate callback on a 401 without
// racing a concurrent export.
func (c *Client) login(ctx context.Context) (session, string, error) {
	passphraseKey, err := crypto.DerivePassphraseKey(ctx, c.api, c.username, c.password)
	if err != nil {
		return session{}, "", fmt.Errorf("derive passphrase key: %w", err)
	}

	verifier := sha256.Sum256(passphraseKey)
	accessToken, userID, err := c.api.Login(ctx, c.username, verifier[:])
	if err != nil {
		return session{}, "", fmt.Errorf("login: %w", err)
	}

	// GetUser needs the access token that was just issued; [Client.Do]'s
	// own reauthenticate path sets it again afterwards, which is a
	// harmless no-op.
	c.api.SetAccessToken(accessToken)

	rawUser, err := c.api.GetUser(ctx, userID)
	if err != nil {
		return session{}, "", fmt.Errorf("fetch user: %w", err)
	}
	user, fieldErrs := codec.Decode(rawUser, codec.UserDef, nil)
	if err := firstFatal(fieldErrs); err != nil {
		return session{}, "", fmt.Errorf("decode user: %w", err)
	}

	userGroupKeyEnc, _ := user["userGroupKeyEnc"].([]byte)
	userGroupKey, err := crypto.UnwrapGroupKey(passphraseKey, userGroupKeyEnc)
	if err != nil {
		return session{}, "", fmt.Errorf("unwrap user-group key: %w", err)
	}

	memberships, _ := user["memberships"].([]codec.Entity)
	mailGroupKey, err := resolveMailGroupKey(userGroupKey, memberships)
	if err != nil {
		return session{}, "", err
	}

	mailboxID, _ := user["mailbox"].(string)

	return session{
		userID:       userID,
		mailboxID:    mailboxID,
		userGroupKey: userGroupKey,
		mailGroupKey: mailGroupKey,
	}, accessToken, nil
}

// resolveMailGroupKey finds the membership record for the mail group
// among a user's group memberships and unwraps its key with the
// user-group key (spec.md §4.2 step 6).
func resolveMailGroupKey(userGroupKey []byte, memberships []codec.Entity) ([]byte, error) {
	for _, m := range memberships {
		groupType, _ := m["groupType"].(float64)
		if int(groupType) != codec.MailGroupTypeCode {
			continue
		}
		wrapped, _ := m["symEncGKey"].([]byte)
		key, err := crypto.UnwrapGroupKey(userGroupKey, wrapped)
		if err != nil {
			return nil, fmt.Errorf("unwrap mail-group key: %w", err)
		}
		return key, nil
	}
	return nil, fmt.Errorf("no mail-group membership found")
}

// reauthenticate re-runs the login state machine and returns the fresh
// access token, satisfying [api.Client]'s one-shot-401-retry hook. The
// key set resolved by [New] is kept as it is, so pipeline stages
// reading it never race a reauthentication.
// A failure here is terminal: spec.md §7 treats a second consecutive
// 401 as a fatal Auth error.
func (c *Client) reauthenticate(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, accessToken, err := c.login(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrAuthFailed, err)
	}
	return accessToken, nil
}

// firstFatal returns the first fatal field error, or nil if every
// error in errs is a soft per-field decrypt failure.
func firstFatal(errs []codec.FieldDecryptError) error {
	for _, e := range errs {
		if e.Fatal {
			return &e
		}
	}
	return nil
}

// ListFolders fetches the mailbox entity, then its folder list, and
// decrypts every folder's name with the mail-group key (spec.md
// §4.6 list-folders). Folders are returned in server order.
func (c *Client) ListFolders(ctx context.Context) ([]Folder, error) {
	if err := c.checkClosed(); err != nil {
		return nil, err
	}

	rawMailbox, err := c.api.GetMailbox(ctx, c.session.mailboxID)
	if err != nil {
		return nil, fmt.Errorf("fetch mailbox: %w", err)
	}
	mailbox, fieldErrs := codec.Decode(rawMailbox, codec.MailboxDef, nil)
	if err := firstFatal(fieldErrs); err != nil {
		return nil, fmt.Errorf("decode mailbox: %w", err)
	}
	foldersListID, _ := mailbox["folders"].(string)

	var folders []Folder
	for rawFolder, err := range c.api.ListAll(ctx, foldersListID, c.pageLimit) {
		if err != nil {
			return nil, fmt.Errorf("list folders: %w", err)
		}
		folder, fieldErrs := codec.Decode(rawFolder, codec.FolderDef, c.session.mailGroupKey)
		if err := firstFatal(fieldErrs); err != nil {
			c.logger.Warn().Err(err).Msg("skipping unreadable folder")
			continue
		}
		for _, fe := range fieldErrs {
			c.logger.Warn().Str("field", fe.Name).Err(fe.Err).Msg("folder field degraded")
		}

		id, _ := folder["_id"].(string)
		name, _ := folder["name"].(string)
		typeCode, _ := folder["folderType"].(float64)
		folders = append(folders, Folder{Name: name, ID: id, Type: folderTypeFromCode(typeCode)})
	}
	return folders, nil
}

// findFolder resolves folderName to its decoded folder entity by
// scanning the mailbox's folder list; spec.md has no by-name index
// endpoint, so this mirrors the linear scan [Client.ListFolders] does.
func (c *Client) findFolder(ctx context.Context, folderName string) (codec.Entity, error) {
	rawMailbox, err := c.api.GetMailbox(ctx, c.session.mailboxID)
	if err != nil {
		return nil, fmt.Errorf("fetch mailbox: %w", err)
	}
	mailbox, fieldErrs := codec.Decode(rawMailbox, codec.MailboxDef, nil)
	if err := firstFatal(fieldErrs); err != nil {
		return nil, fmt.Errorf("decode mailbox: %w", err)
	}
	foldersListID, _ := mailbox["folders"].(string)

	for rawFolder, err := range c.api.ListAll(ctx, foldersListID, c.pageLimit) {
		if err != nil {
			return nil, fmt.Errorf("list folders: %w", err)
		}
		folder, fieldErrs := codec.Decode(rawFolder, codec.FolderDef, c.session.mailGroupKey)
		if firstFatal(fieldErrs) != nil {
			continue
		}
		if name, _ := folder["name"].(string); name == folderName {
			return folder, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrFolderNotFound, folderName)
}

// Export streams every mail in folderName, decrypts it and its
// attachments, and writes one RFC 2822 + MIME message file per mail
// into outDir (spec.md §4.6 export, §5 concurrency). Per-mail failures
// are logged and skipped rather than aborting the run; the returned
// [ExportSummary] reports final counts.
func (c *Client) Export(ctx context.Context, folderName, outDir string, opts ...ExportOption) (ExportSummary, error) {
	if err := c.checkClosed(); err != nil {
		return ExportSummary{}, err
	}

	cfg := &exportConfig{
		concurrency:     defaultConcurrency,
		pageLimit:       c.pageLimit,
		verifyChecksums: true,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.concurrency <= 0 {
		cfg.concurrency = defaultConcurrency
	}
	if cfg.pageLimit <= 0 {
		cfg.pageLimit = defaultPageLimit
	}

	folder, err := c.findFolder(ctx, folderName)
	if err != nil {
		return ExportSummary{}, err
	}
	mailsListID, _ := folder["mails"].(string)

	return runPipeline(ctx, c, mailsListID, outDir, cfg)
}

// checkClosed returns [apierrors.ErrClientClosed] if [Client.Close] has
// already run.
func (c *Client) checkClosed() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return apierrors.ErrClientClosed
	}
	return nil
}

// Close releases the client's resources. A closed client rejects
// further [Client.ListFolders]/[Client.Export] calls.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}
