// Package phash computes fixed-width perceptual fingerprints of images and
// compares them by Hamming distance. Fingerprints are robust to recompression,
// resizing and minor edits, which makes them suitable for duplicate screening.
package phash

import (
	"encoding/hex"
	"fmt"
	"image"
	"math/bits"

	"github.com/corona10/goimagehash"
)

const (
	// hashSize is the pHash grid dimension. A 16x16 hash yields 256 bits.
	hashSize = 16

	// MaxDistance is the maximum possible Hamming distance between two
	// fingerprints, fixed by the fingerprint width.
	MaxDistance = hashSize * hashSize

	words = MaxDistance / 64
)

// Fingerprint is a 256-bit perceptual hash of an image.
type Fingerprint [words]uint64

// Compute calculates the perceptual fingerprint of an image.
func Compute(img image.Image) (Fingerprint, error) {
	var fp Fingerprint

	h, err := goimagehash.ExtPerceptionHash(img, hashSize, hashSize)
	if err != nil {
		return fp, fmt.Errorf("perceptual hash failed: %w", err)
	}

	raw := h.GetHash()
	if len(raw) != words {
		return fp, fmt.Errorf("unexpected hash width: %d words", len(raw))
	}
	copy(fp[:], raw)

	return fp, nil
}

// HammingDistance counts the differing bits between two fingerprints.
func HammingDistance(a, b Fingerprint) int {
	d := 0
	for i := range a {
		d += bits.OnesCount64(a[i] ^ b[i])
	}
	return d
}

// Similarity maps the Hamming distance between two fingerprints onto [0,1],
// where 1 means identical.
func Similarity(a, b Fingerprint) float64 {
	return 1 - float64(HammingDistance(a, b))/float64(MaxDistance)
}

// String encodes the fingerprint as lowercase hex.
func (f Fingerprint) String() string {
	buf := make([]byte, 0, words*8)
	for _, w := range f {
		for shift := 56; shift >= 0; shift -= 8 {
			buf = append(buf, byte(w>>uint(shift)))
		}
	}
	return hex.EncodeToString(buf)
}

// Parse decodes a fingerprint from its hex form.
func Parse(s string) (Fingerprint, error) {
	var fp Fingerprint

	raw, err := hex.DecodeString(s)
	if err != nil {
		return fp, fmt.Errorf("invalid fingerprint encoding: %w", err)
	}
	if len(raw) != words*8 {
		return fp, fmt.Errorf("invalid fingerprint length: %d bytes", len(raw))
	}

	for i := 0; i < words; i++ {
		var w uint64
		for j := 0; j < 8; j++ {
			w = w<<8 | uint64(raw[i*8+j])
		}
		fp[i] = w
	}

	return fp, nil
}
