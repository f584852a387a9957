package imghash

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/bits"
	"strings"
)

// ErrIncomparable is returned by Distance when the two values cannot be
// decoded into bit strings of the same length. Callers fall back to exact
// string comparison in that case, mirroring the permissive handling of
// manually entered hashes.
var ErrIncomparable = errors.New("hashes are not comparable bit strings")

// DecodeError indicates that candidate bytes could not be decoded as an
// image. Candidates that fail to decode are skipped, never fatal.
type DecodeError struct {
	Err error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("cannot decode image: %v", e.Err)
}

// Unwrap returns the underlying decode failure.
func (e *DecodeError) Unwrap() error { return e.Err }

// Distance returns the Hamming distance between two hex-encoded hashes.
//
// Manual target entries are stored without syntax validation, so either
// input may be arbitrary text. If one side does not decode as hex, or the
// decoded lengths differ, ErrIncomparable is returned and the caller
// decides how to compare (the match engine falls back to string equality).
func Distance(a, b string) (int, error) {
	ba, err := hex.DecodeString(strings.ToLower(strings.TrimSpace(a)))
	if err != nil {
		return 0, ErrIncomparable
	}
	bb, err := hex.DecodeString(strings.ToLower(strings.TrimSpace(b)))
	if err != nil {
		return 0, ErrIncomparable
	}
	if len(ba) != len(bb) || len(ba) == 0 {
		return 0, ErrIncomparable
	}

	d := 0
	for i := range ba {
		d += bits.OnesCount8(ba[i] ^ bb[i])
	}
	return d, nil
}
