package api

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"

	"github.com/tutaexport/tutaexport/internal/apierrors"
	"github.com/tutaexport/tutaexport/internal/crypto"
)

// GetSalt fetches the account's passphrase KDF generation and
// parameters, implementing [crypto.SaltProvider]. Legacy accounts
// report [crypto.KDFBcryptKind] with an empty salt; the caller derives
// its own fixed salt from the username in that case.
func (c *Client) GetSalt(ctx context.Context, username string) (crypto.KDFKind, []byte, crypto.Argon2Params, error) {
	path := "/rest/sys/saltservice?mailAddress=" + url.QueryEscape(username)

	var resp saltResponse
	if err := c.Do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return 0, nil, crypto.Argon2Params{}, apierrors.WithResourceType(err, apierrors.ResourceUnknown)
	}

	switch resp.KdfVersion {
	case "0":
		return crypto.KDFBcryptKind, nil, crypto.Argon2Params{}, nil
	case "1":
		salt, err := base64.StdEncoding.DecodeString(resp.Salt)
		if err != nil {
			return 0, nil, crypto.Argon2Params{}, fmt.Errorf("decode salt: %w", err)
		}
		params := crypto.Argon2Params{
			Time:        resp.TimeCost,
			MemoryKiB:   resp.MemoryKiB,
			Parallelism: resp.Parallelism,
			KeyLen:      resp.KeyLength,
		}
		return crypto.KDFArgon2idKind, salt, params, nil
	default:
		return 0, nil, crypto.Argon2Params{}, fmt.Errorf("unknown KDF version %q", resp.KdfVersion)
	}
}

// Login exchanges an auth verifier derived from the passphrase key for
// an access token and the signed-in user's ID. It never sends the
// passphrase or the passphrase key itself.
func (c *Client) Login(ctx context.Context, mailAddress string, authVerifier []byte) (accessToken, userID string, err error) {
	req := loginRequest{
		MailAddress:  mailAddress,
		AuthVerifier: base64.StdEncoding.EncodeToString(authVerifier),
	}
	var resp loginResponse
	if err := c.Do(ctx, http.MethodPost, "/rest/sys/sessionservice", req, &resp); err != nil {
		return "", "", apierrors.WithResourceType(err, apierrors.ResourceUnknown)
	}
	return resp.AccessToken, resp.UserID, nil
}

// GetEntity fetches a single non-list entity (User, Mailbox, Folder,
// MailDetails) by its REST path, returning the raw field map for
// internal/codec to decrypt and type.
func (c *Client) GetEntity(ctx context.Context, path string) (RawEntity, error) {
	var resp RawEntity
	if err := c.Do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// GetUser fetches a user entity by ID.
func (c *Client) GetUser(ctx context.Context, userID string) (RawEntity, error) {
	entity, err := c.GetEntity(ctx, "/rest/sys/user/"+url.PathEscape(userID))
	if err != nil {
		return nil, apierrors.WithResourceType(err, apierrors.ResourceUnknown)
	}
	return entity, nil
}

// GetMailbox fetches a mailbox entity by ID.
func (c *Client) GetMailbox(ctx context.Context, mailboxID string) (RawEntity, error) {
	entity, err := c.GetEntity(ctx, "/rest/tutanota/mailbox/"+url.PathEscape(mailboxID))
	if err != nil {
		return nil, apierrors.WithResourceType(err, apierrors.ResourceUnknown)
	}
	return entity, nil
}

// GetFolder fetches a single folder entity by ID.
func (c *Client) GetFolder(ctx context.Context, folderID string) (RawEntity, error) {
	entity, err := c.GetEntity(ctx, "/rest/tutanota/mailfolder/"+url.PathEscape(folderID))
	if err != nil {
		return nil, apierrors.WithResourceType(err, apierrors.ResourceFolder)
	}
	return entity, nil
}

// GetMailDetails fetches the body/headers entity for a single mail.
func (c *Client) GetMailDetails(ctx context.Context, mailDetailsID string) (RawEntity, error) {
	entity, err := c.GetEntity(ctx, "/rest/tutanota/maildetails/"+url.PathEscape(mailDetailsID))
	if err != nil {
		return nil, apierrors.WithResourceType(err, apierrors.ResourceMail)
	}
	return entity, nil
}

// GetFile fetches a file entity's metadata. The attachment's bytes are
// fetched separately via [Client.FetchBlob] once the blob ID is known.
func (c *Client) GetFile(ctx context.Context, fileID string) (RawEntity, error) {
	entity, err := c.GetEntity(ctx, "/rest/tutanota/file/"+url.PathEscape(fileID))
	if err != nil {
		return nil, apierrors.WithResourceType(err, apierrors.ResourceBlob)
	}
	return entity, nil
}
