package crypto

import (
	"bytes"
	"fmt"
	"io"

	"github.com/pierrec/lz4/v4"
)

// DecodeLZ4 decompresses an LZ4 block-framed payload (spec.md §4.3).
// String-typed entity fields are LZ4-compressed after AES decryption;
// the compressed form carries no declared output length, so the
// decoder grows its output buffer until the stream is exhausted or it
// would exceed sizeCeiling bytes, at which point it reports
// [ErrLZ4Malformed] rather than continuing to allocate.
func DecodeLZ4(compressed []byte, sizeCeiling int) ([]byte, error) {
	if sizeCeiling <= 0 {
		sizeCeiling = lz4SizeCeiling
	}

	r := lz4.NewReader(bytes.NewReader(compressed))
	out := make([]byte, 0, min(len(compressed)*4, sizeCeiling))
	buf := make([]byte, 32*1024)

	for {
		n, err := r.Read(buf)
		if n > 0 {
			if len(out)+n > sizeCeiling {
				return nil, newErr(KindLZ4, fmt.Errorf("%w: exceeds %d byte ceiling", ErrLZ4Malformed, sizeCeiling))
			}
			out = append(out, buf[:n]...)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, newErr(KindLZ4, fmt.Errorf("%w: %v", ErrLZ4Malformed, err))
		}
	}

	return out, nil
}
