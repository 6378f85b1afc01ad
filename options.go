package tutaexport

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/tutaexport/tutaexport/internal/api"
)

const (
	defaultBaseURL         = "https://mail.tutanota.com"
	defaultLoginTimeout    = 30 * time.Second
	defaultPageLimit       = 1000
	defaultConcurrency     = 8
	defaultBlobSizeCeiling = api.DefaultBlobCeiling
)

// clientConfig holds configuration resolved by [Option]s passed to [New].
type clientConfig struct {
	baseURL     string
	blobBaseURL string
	httpClient  *http.Client
	retry       *api.RetryConfig
	blobCeiling int
	pageLimit   int
	logger      zerolog.Logger
}

// Option configures a [Client] constructed by [New].
type Option func(*clientConfig)

// WithBaseURL overrides the main API host. Defaults to the production
// service's host; request paths add the /rest/... prefix themselves.
func WithBaseURL(url string) Option {
	return func(c *clientConfig) { c.baseURL = url }
}

// WithBlobBaseURL overrides the storage host attachment blobs are
// fetched from, when it differs from the main API host.
func WithBlobBaseURL(url string) Option {
	return func(c *clientConfig) { c.blobBaseURL = url }
}

// WithHTTPClient sets a custom HTTP client for all API and blob
// requests.
func WithHTTPClient(client *http.Client) Option {
	return func(c *clientConfig) { c.httpClient = client }
}

// WithRetryConfig overrides the default retry/backoff policy.
func WithRetryConfig(cfg *api.RetryConfig) Option {
	return func(c *clientConfig) { c.retry = cfg }
}

// WithBlobCeiling caps how many bytes a single attachment download may
// buffer in memory.
func WithBlobCeiling(n int) Option {
	return func(c *clientConfig) { c.blobCeiling = n }
}

// WithPageLimit overrides the paginator's default page size (spec.md
// §4.5's tuning knob, default 1000).
func WithPageLimit(n int) Option {
	return func(c *clientConfig) { c.pageLimit = n }
}

// WithLogger installs a structured logger the session controller and
// export pipeline write progress, warning, and error events to.
// Defaults to a disabled logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *clientConfig) { c.logger = logger }
}

// exportConfig holds configuration resolved by [ExportOption]s passed
// to [Client.Export].
type exportConfig struct {
	concurrency     int
	pageLimit       int
	dryRun          bool
	verifyChecksums bool
}

// ExportOption configures a single [Client.Export] call.
type ExportOption func(*exportConfig)

// WithConcurrency overrides the pipeline's fan-out (spec.md §5,
// default 8): the number of mails fetched and decrypted concurrently.
// Writing stays on a single writer goroutine.
func WithConcurrency(n int) ExportOption {
	return func(c *exportConfig) { c.concurrency = n }
}

// WithExportPageLimit overrides the paginator page size for this
// export call only, taking precedence over [WithPageLimit].
func WithExportPageLimit(n int) ExportOption {
	return func(c *exportConfig) { c.pageLimit = n }
}

// WithDryRun runs the full fetch-and-decrypt pipeline but skips writing
// any file to outDir and does not create it. Each mail a real run
// would write is counted in [ExportSummary].Skipped instead of
// Exported.
func WithDryRun(dryRun bool) ExportOption {
	return func(c *exportConfig) { c.dryRun = dryRun }
}

// WithVerifyAttachments enables (the default) or disables comparing a
// fetched attachment blob's length against its File entity's declared
// size; a mismatch degrades that attachment to a placeholder with a
// WARN rather than failing the whole mail.
func WithVerifyAttachments(verify bool) ExportOption {
	return func(c *exportConfig) { c.verifyChecksums = verify }
}
