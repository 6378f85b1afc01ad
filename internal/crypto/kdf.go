package crypto

import (
	"crypto/sha256"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/blowfish"
)

// Argon2Params carries the server-provided tuning for the current
// passphrase KDF (spec.md §4.2). The server sends time/memory/
// parallelism and the output key length alongside the salt.
type Argon2Params struct {
	Time        uint32
	MemoryKiB   uint32
	Parallelism uint8
	KeyLen      uint32
}

// KDFArgon2id derives the passphrase key from password and salt using
// Argon2id with server-supplied parameters. This is the current KDF;
// accounts created before it was introduced instead use
// [KDFBcryptLegacy].
func KDFArgon2id(password string, salt []byte, params Argon2Params) []byte {
	return argon2.IDKey([]byte(password), salt, params.Time, params.MemoryKiB, params.Parallelism, params.KeyLen)
}

// KDFBcryptLegacy derives the passphrase key the way accounts created
// before Argon2id was adopted still do (spec.md §4.2):
//
//   - salt is the first 16 bytes of SHA-256(lowercase(username))
//   - bcrypt cost is fixed at 8
//   - bcrypt's 23-byte output is truncated to the first 16 bytes
//
// username is lowercased internally; callers do not need to normalize
// it first.
func KDFBcryptLegacy(password, username string) ([]byte, error) {
	saltSrc := sha256.Sum256([]byte(strings.ToLower(username)))
	salt := saltSrc[:16]

	hash, err := bcryptRaw([]byte(password), BcryptCost, salt)
	if err != nil {
		return nil, err
	}
	return hash[:BcryptDerivedKeySize], nil
}

// magicCipherData is the fixed 24-byte plaintext ("OrpheanBeholderScryDoubt")
// every bcrypt derivation encrypts 64 times per 8-byte block.
var magicCipherData = []byte{
	0x4f, 0x72, 0x70, 0x68,
	0x65, 0x61, 0x6e, 0x42,
	0x65, 0x68, 0x6f, 0x6c,
	0x64, 0x65, 0x72, 0x53,
	0x63, 0x72, 0x79, 0x44,
	0x6f, 0x75, 0x62, 0x74,
}

// bcryptRaw reproduces the core of the bcrypt algorithm directly against
// an arbitrary 16-byte salt, bypassing the $2a$ text encoding that
// golang.org/x/crypto/bcrypt's public API assumes (it always generates
// its own random salt, and this KDF's salt is derived from the
// username, not random). The key-schedule setup below is the same
// "expensive blowfish setup" that package performs internally, built
// from blowfish's exported ExpandKey/NewSaltedCipher.
func bcryptRaw(password []byte, cost int, salt []byte) ([]byte, error) {
	ckey := append(append([]byte{}, password...), 0)

	c, err := blowfish.NewSaltedCipher(ckey, salt)
	if err != nil {
		return nil, err
	}

	rounds := uint64(1) << uint(cost)
	for i := uint64(0); i < rounds; i++ {
		blowfish.ExpandKey(ckey, c)
		blowfish.ExpandKey(salt, c)
	}

	cipherData := make([]byte, len(magicCipherData))
	copy(cipherData, magicCipherData)
	for i := 0; i < 24; i += 8 {
		for j := 0; j < 64; j++ {
			c.Encrypt(cipherData[i:i+8], cipherData[i:i+8])
		}
	}

	return cipherData[:23], nil
}
