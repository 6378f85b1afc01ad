package tutaexport

import (
	"errors"

	"github.com/tutaexport/tutaexport/internal/apierrors"
	"github.com/tutaexport/tutaexport/internal/crypto"
)

// ErrMissingCredentials is returned by [New] when username or password
// is empty.
var ErrMissingCredentials = apierrors.ErrMissingCredentials

// ErrAuthFailed is returned when login fails: a bad password-derived
// auth verifier, or a second consecutive 401 after the one silent
// re-login attempt (spec.md §7 Auth).
var ErrAuthFailed = apierrors.ErrAuthFailed

// ErrFolderNotFound is returned by [Client.Export] when the named
// folder does not exist in the mailbox.
var ErrFolderNotFound = apierrors.ErrFolderNotFound

// ErrUnsupportedKeyPath is returned for a mail whose session key is
// only reachable via the external/password-protected permission path,
// which has no fixture yet (spec.md §9 Open Questions).
var ErrUnsupportedKeyPath = crypto.ErrUnsupportedKeyPath

// ErrCancelled is returned by [Client.Export] when ctx is cancelled
// before the export completes (spec.md §7 Cancelled, exit code 3).
var ErrCancelled = errors.New("export cancelled")

// ErrAttachmentSizeMismatch degrades an attachment to a placeholder
// (and logs a WARN) when a fetched blob's length does not match the
// size declared on its File entity.
var ErrAttachmentSizeMismatch = errors.New("attachment size mismatch")
