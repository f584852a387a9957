// Package imghash computes the fingerprint of an image: one cryptographic
// digest over the encoded byte stream and four perceptual hashes over the
// decoded pixels. It also provides Hamming-distance comparison between
// hex-encoded hash strings.
package imghash
