// Package crypto implements the symmetric primitives and key hierarchy
// used to decrypt entities fetched from the mail service's API. It
// never encrypts anything the server will read back; every function
// here exists to undo something the server already did.
//
// # Algorithm Suite
//
//   - AES-CBC (128 or 256-bit key, inferred from key length), in two
//     wire shapes: legacy (IV‖ciphertext‖PKCS7) and authenticated
//     (0x01‖IV‖ciphertext‖PKCS7‖HMAC-SHA256 tag). [Decrypt] picks the
//     shape from the blob's leading byte.
//   - HMAC-SHA256 authenticates the authenticated shape; its subkeys
//     are derived from the AES key via SHA-256, not HKDF.
//   - Argon2id is the current passphrase KDF; bcrypt (cost 8, fixed
//     username-derived salt, 23-byte output truncated to 16) is the
//     legacy one accounts created before Argon2id still use.
//   - LZ4 block decoding recovers compressed String fields after AES
//     decryption.
//
// # Key Hierarchy
//
// [DerivePassphraseKey] turns a username/password pair into the
// passphrase key. From there, [UnwrapGroupKey] and
// [SessionKeyResolver] walk the group → session key chain documented
// in keys.go; every entity field that is declared encrypted on the
// wire is decryptable by exactly one key reachable from that chain, or
// decoding fails hard rather than silently skipping the field.
//
// # Error Handling
//
// The AES and LZ4 primitives return a *[Error] that matches one of the
// package's sentinel errors (ErrInvalidKeyLength, ErrMACMismatch,
// ErrPaddingInvalid, ErrLZ4Malformed) under errors.Is.
// [SessionKeyResolver.Resolve] returns ErrUnsupportedKeyPath itself,
// unwrapped, and ErrUTF8Invalid is returned as a bare sentinel by the
// entity codec. Either way callers can use errors.Is without depending
// on message text.
package crypto
