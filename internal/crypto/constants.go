package crypto

const (
	// IVSize is the AES-CBC initialization vector size in bytes.
	IVSize = 16

	// MACSize is the truncated HMAC-SHA256 tag size appended to
	// authenticated ciphertexts.
	MACSize = 32

	// AuthenticatedMarker is the leading byte that identifies an
	// authenticated (IV‖ciphertext‖PKCS7‖MAC) blob. Any other leading
	// byte means the legacy (IV‖ciphertext‖PKCS7) shape.
	AuthenticatedMarker = 0x01

	// Key128 and Key256 are the two symmetric key sizes the protocol
	// uses. Key length is always inferred from the wrapping key, never
	// carried on the wire.
	Key128 = 16
	Key256 = 32

	// BcryptCost is the fixed cost factor of the legacy passphrase KDF.
	BcryptCost = 8

	// BcryptDerivedKeySize is the number of leading bytes kept from the
	// 23-byte bcrypt output.
	BcryptDerivedKeySize = 16

	// lz4SizeCeiling bounds the buffer the LZ4 decoder will grow to,
	// since the wire format carries no declared output length. Mail
	// bodies run to tens of MB; 64 MiB leaves headroom without letting
	// a malformed block exhaust memory.
	lz4SizeCeiling = 64 << 20
)

// AlgsCiphersuite is the canonical string representation of the
// symmetric algorithm suite this client speaks.
var AlgsCiphersuite = "AES-CBC-128/256:HMAC-SHA256:Argon2id:bcrypt:LZ4"
