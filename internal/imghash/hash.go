package imghash

import (
	"bytes"
	"crypto/md5" //nolint:gosec // Exact-match file digest, not used for security
	"encoding/hex"
	"fmt"
	"image"

	// Register decoders for the formats encountered in the wild.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/corona10/goimagehash"
)

// Hash family names. These are also the keys of a Fingerprint and the
// names stored in the target database, so they must stay stable.
const (
	FamilyMD5   = "md5"
	FamilyAHash = "ahash"
	FamilyPHash = "phash"
	FamilyDHash = "dhash"
	FamilyWHash = "whash"
)

// Families lists every hash family a full fingerprint contains.
var Families = []string{FamilyMD5, FamilyAHash, FamilyPHash, FamilyDHash, FamilyWHash}

// CompareOrder is the fixed order in which families are compared during
// matching. It determines the ordering of match reasons, nothing else.
var CompareOrder = []string{FamilyMD5, FamilyPHash, FamilyAHash, FamilyDHash, FamilyWHash}

// Fingerprint maps a hash family name to its hex-encoded value.
// Image-derived fingerprints contain all five families; manual target
// entries contain a single one.
type Fingerprint map[string]string

// Compute decodes the given encoded image bytes and returns the full
// five-family fingerprint. The md5 digest covers the original encoded
// bytes, not re-encoded pixels, so it only matches byte-identical files.
//
// Compute is deterministic for identical input and touches no shared
// state, so it is safe to call concurrently.
func Compute(data []byte) (Fingerprint, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{Err: err}
	}

	ahash, err := goimagehash.AverageHash(img)
	if err != nil {
		return nil, &DecodeError{Err: fmt.Errorf("average hash: %w", err)}
	}
	phash, err := goimagehash.PerceptionHash(img)
	if err != nil {
		return nil, &DecodeError{Err: fmt.Errorf("perception hash: %w", err)}
	}
	dhash, err := goimagehash.DifferenceHash(img)
	if err != nil {
		return nil, &DecodeError{Err: fmt.Errorf("difference hash: %w", err)}
	}

	sum := md5.Sum(data) //nolint:gosec // See import comment

	return Fingerprint{
		FamilyMD5:   hex.EncodeToString(sum[:]),
		FamilyAHash: fmt.Sprintf("%016x", ahash.GetHash()),
		FamilyPHash: fmt.Sprintf("%016x", phash.GetHash()),
		FamilyDHash: fmt.Sprintf("%016x", dhash.GetHash()),
		FamilyWHash: fmt.Sprintf("%016x", waveletHash(img)),
	}, nil
}

// IsPerceptual reports whether the family is compared by Hamming distance
// rather than byte equality.
func IsPerceptual(family string) bool {
	return family != FamilyMD5
}

// ValidFamily reports whether name is a known hash family.
func ValidFamily(name string) bool {
	for _, f := range Families {
		if f == name {
			return true
		}
	}
	return false
}
