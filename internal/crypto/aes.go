package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"io"
)

// Decrypt decrypts a blob produced by either AES shape the service uses,
// dispatching on the leading byte (spec.md §4.1): 0x01 marks the
// authenticated (IV‖ciphertext‖PKCS7‖MAC) shape, any other leading byte
// means the legacy (IV‖ciphertext‖PKCS7) shape. The key's length (16 or
// 32 bytes) is never carried on the wire and is inferred from key
// itself.
//
// This client only ever decrypts; it never chooses which mode to
// encrypt under (spec.md §9).
func Decrypt(key, blob []byte) ([]byte, error) {
	if len(key) != Key128 && len(key) != Key256 {
		return nil, newErr(KindKeyLength, fmt.Errorf("%w: got %d bytes", ErrInvalidKeyLength, len(key)))
	}
	if len(blob) == 0 {
		return nil, nil
	}
	if blob[0] == AuthenticatedMarker {
		return decryptAuthenticated(key, blob)
	}
	return decryptLegacy(key, blob)
}

// DecryptKey decrypts a wrapped key blob and validates the plaintext is
// a legal key length (spec.md §4.1 aes_decrypt_key).
func DecryptKey(wrappingKey, wrapped []byte) ([]byte, error) {
	plain, err := Decrypt(wrappingKey, wrapped)
	if err != nil {
		return nil, err
	}
	if len(plain) != Key128 && len(plain) != Key256 {
		return nil, newErr(KindKeyLength, fmt.Errorf("%w: unwrapped key is %d bytes", ErrInvalidKeyLength, len(plain)))
	}
	return plain, nil
}

// decryptLegacy decrypts the IV(16)‖ciphertext‖PKCS7 shape used by mails
// stored before the authenticated scheme was introduced.
func decryptLegacy(key, blob []byte) ([]byte, error) {
	if len(blob) < IVSize {
		return nil, newErr(KindPadding, fmt.Errorf("%w: blob shorter than IV", ErrPaddingInvalid))
	}
	iv := blob[:IVSize]
	ciphertext := blob[IVSize:]
	return cbcDecryptPadded(key, iv, ciphertext)
}

// decryptAuthenticated decrypts the 0x01‖IV(16)‖ciphertext‖PKCS7‖MAC(32)
// shape. Subkeys are derived as subkey_enc = SHA256(key‖0x01)[..keylen]
// and subkey_mac = SHA256(key‖0x02); the MAC covers IV‖ciphertext and is
// verified before any plaintext is released.
func decryptAuthenticated(key, blob []byte) ([]byte, error) {
	if len(blob) < 1+IVSize+MACSize {
		return nil, newErr(KindMAC, fmt.Errorf("%w: blob too short for authenticated shape", ErrMACMismatch))
	}

	body := blob[1:]
	macStart := len(body) - MACSize
	ivAndCiphertext := body[:macStart]
	gotMAC := body[macStart:]

	if len(ivAndCiphertext) < IVSize {
		return nil, newErr(KindMAC, fmt.Errorf("%w: blob too short for IV", ErrMACMismatch))
	}

	subkeyEnc, subkeyMAC := deriveSubkeys(key)

	h := hmac.New(sha256.New, subkeyMAC)
	h.Write(ivAndCiphertext)
	wantMAC := h.Sum(nil)

	if subtle.ConstantTimeCompare(wantMAC, gotMAC) != 1 {
		return nil, newErr(KindMAC, ErrMACMismatch)
	}

	iv := ivAndCiphertext[:IVSize]
	ciphertext := ivAndCiphertext[IVSize:]
	return cbcDecryptPadded(subkeyEnc, iv, ciphertext)
}

// deriveSubkeys derives the encryption and MAC subkeys for authenticated
// mode: subkey_enc = SHA256(key‖0x01)[..len(key)], subkey_mac = SHA256(key‖0x02).
func deriveSubkeys(key []byte) (encKey, macKey []byte) {
	encHash := sha256.Sum256(append(append([]byte{}, key...), 0x01))
	macHash := sha256.Sum256(append(append([]byte{}, key...), 0x02))
	return encHash[:len(key)], macHash[:]
}

func cbcDecryptPadded(key, iv, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) == 0 {
		return []byte{}, nil
	}
	if len(ciphertext)%aes.BlockSize != 0 {
		return nil, newErr(KindPadding, fmt.Errorf("%w: ciphertext not a multiple of the block size", ErrPaddingInvalid))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, newErr(KindKeyLength, err)
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	return pkcs7Unpad(plaintext)
}

func pkcs7Unpad(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return data, nil
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > aes.BlockSize || padLen > len(data) {
		return nil, newErr(KindPadding, ErrPaddingInvalid)
	}
	if !bytes.Equal(data[len(data)-padLen:], bytes.Repeat([]byte{byte(padLen)}, padLen)) {
		return nil, newErr(KindPadding, ErrPaddingInvalid)
	}
	return data[:len(data)-padLen], nil
}

// EncryptLegacy and EncryptAuthenticated exist only to produce the test
// fixtures aes_test.go round-trips through; the client itself never
// encrypts (spec.md §9).

// EncryptLegacy encrypts plaintext into the legacy IV‖ciphertext‖PKCS7 shape.
func EncryptLegacy(key, plaintext []byte) ([]byte, error) {
	if len(key) != Key128 && len(key) != Key256 {
		return nil, newErr(KindKeyLength, ErrInvalidKeyLength)
	}
	iv := make([]byte, IVSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, err
	}
	padded := pkcs7Pad(plaintext)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	return append(append([]byte{}, iv...), ciphertext...), nil
}

// EncryptAuthenticated encrypts plaintext into the
// 0x01‖IV‖ciphertext‖PKCS7‖MAC shape.
func EncryptAuthenticated(key, plaintext []byte) ([]byte, error) {
	if len(key) != Key128 && len(key) != Key256 {
		return nil, newErr(KindKeyLength, ErrInvalidKeyLength)
	}
	iv := make([]byte, IVSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, err
	}
	padded := pkcs7Pad(plaintext)

	encKey, macKey := deriveSubkeys(key)
	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, err
	}
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	ivAndCiphertext := append(append([]byte{}, iv...), ciphertext...)
	h := hmac.New(sha256.New, macKey)
	h.Write(ivAndCiphertext)
	mac := h.Sum(nil)

	out := make([]byte, 0, 1+len(ivAndCiphertext)+len(mac))
	out = append(out, AuthenticatedMarker)
	out = append(out, ivAndCiphertext...)
	out = append(out, mac...)
	return out, nil
}

func pkcs7Pad(data []byte) []byte {
	padLen := aes.BlockSize - len(data)%aes.BlockSize
	return append(append([]byte{}, data...), bytes.Repeat([]byte{byte(padLen)}, padLen)...)
}
