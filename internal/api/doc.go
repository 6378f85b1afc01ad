// Package api provides HTTP client functionality for communicating with
// the mail service's REST API. It handles bearer-token authentication,
// request/response serialization, and automatic retry logic with
// exponential backoff for transient failures.
//
// # Client Creation
//
// [New] builds a [Client] from a base URL and a set of functional
// [Option]s. The base URL is the only required argument; everything
// else — HTTP client, retry policy, blob host, blob size ceiling,
// reauthentication callback — has a default matching the service's
// observed behavior.
//
// # Authentication
//
// The client carries a bearer access token set by [Client.SetAccessToken]
// after login, sent as "Authorization: Bearer <token>" on every request.
// When a request gets a single 401, [Client.Do] calls the callback
// installed by [WithReauthenticator] to obtain a fresh token and retries
// once; a second consecutive 401 is terminal and surfaces
// [apierrors.ErrAuthFailed].
//
// # Retry Behavior
//
// Requests are retried with exponential backoff on network errors and on
// these HTTP status codes by default:
//
//   - 429 Too Many Requests
//   - 500 Internal Server Error
//   - 502 Bad Gateway
//   - 503 Service Unavailable
//   - 504 Gateway Timeout
//
// A server-supplied Retry-After header (seconds or HTTP-date) overrides
// the computed backoff delay when it is larger. Configure retry behavior
// with [WithRetryConfig]; see [RetryConfig] and [DefaultRetryConfig].
//
// # Error Handling
//
// Errors from the API are returned as [apierrors.APIError], which
// implements errors.Is for shared sentinels:
//
//   - apierrors.ErrAuthFailed: invalid or expired session (401).
//   - apierrors.ErrFolderNotFound: folder does not exist (404).
//   - apierrors.ErrMailNotFound: mail does not exist (404).
//   - apierrors.ErrRateLimited: rate limit exceeded after retries (429).
//
// Connection-level failures (DNS, TCP, TLS) are wrapped in
// [apierrors.NetworkError] instead, since no HTTP status is available to
// classify them.
//
// # Blobs
//
// Attachment blobs are fetched separately from ordinary JSON calls via
// [Client.FetchBlob], against a possibly distinct storage host
// ([WithBlobBaseURL]), with the response bounded to [WithBlobCeiling]
// bytes regardless of what Content-Length claims. FetchBlob makes a
// single attempt; it does not apply the retry policy above.
//
// # Thread Safety
//
// [Client] is safe for concurrent use; the access token is guarded by an
// internal mutex so one goroutine's reauthentication is visible to
// others.
package api
