package engine

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"

	"github.com/zeebo/blake3"
)

// ChecksumAlgorithm names a digest used to fingerprint finished media.
type ChecksumAlgorithm string

const (
	AlgorithmMD5    ChecksumAlgorithm = "md5"
	AlgorithmSHA1   ChecksumAlgorithm = "sha1"
	AlgorithmSHA256 ChecksumAlgorithm = "sha256"
	AlgorithmSHA512 ChecksumAlgorithm = "sha512"
	AlgorithmBLAKE3 ChecksumAlgorithm = "blake3"
)

// Checksum is a digest value tagged with its algorithm
type Checksum struct {
	Algorithm ChecksumAlgorithm
	Value     string
}

// String returns "algorithm:hex"
func (c *Checksum) String() string {
	return fmt.Sprintf("%s:%s", c.Algorithm, c.Value)
}

// ParseAlgorithm validates an algorithm name. An empty name is allowed and
// means no digest.
func ParseAlgorithm(s string) (ChecksumAlgorithm, error) {
	alg := ChecksumAlgorithm(strings.ToLower(strings.TrimSpace(s)))
	switch alg {
	case "", AlgorithmMD5, AlgorithmSHA1, AlgorithmSHA256, AlgorithmSHA512, AlgorithmBLAKE3:
		return alg, nil
	}
	return "", fmt.Errorf("unsupported checksum algorithm: %s", s)
}

// ParseChecksum parses "algorithm:hex" or a bare hex digest whose algorithm
// is guessed from its length. An empty string yields nil.
func ParseChecksum(s string) (*Checksum, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return nil, nil
	}

	var alg ChecksumAlgorithm
	value := s
	if name, rest, ok := strings.Cut(s, ":"); ok {
		parsed, err := ParseAlgorithm(name)
		if err != nil {
			return nil, err
		}
		if parsed == "" {
			return nil, fmt.Errorf("invalid checksum format, expected 'algorithm:value'")
		}
		alg, value = parsed, rest
	} else {
		alg = algorithmForLength(len(value))
	}

	if _, err := hex.DecodeString(value); err != nil {
		return nil, fmt.Errorf("invalid checksum hex value: %w", err)
	}
	return &Checksum{Algorithm: alg, Value: value}, nil
}

// 64 hex characters could be sha256 or blake3; sha256 is assumed.
func algorithmForLength(n int) ChecksumAlgorithm {
	switch n {
	case 32:
		return AlgorithmMD5
	case 40:
		return AlgorithmSHA1
	case 128:
		return AlgorithmSHA512
	default:
		return AlgorithmSHA256
	}
}

func newHasher(alg ChecksumAlgorithm) (hash.Hash, error) {
	switch alg {
	case AlgorithmMD5:
		return md5.New(), nil
	case AlgorithmSHA1:
		return sha1.New(), nil
	case AlgorithmSHA256:
		return sha256.New(), nil
	case AlgorithmSHA512:
		return sha512.New(), nil
	case AlgorithmBLAKE3:
		return blake3.New(), nil
	default:
		return nil, fmt.Errorf("unsupported algorithm: %s", alg)
	}
}

// HashReader digests everything read from r.
func HashReader(r io.Reader, alg ChecksumAlgorithm) (*Checksum, error) {
	h, err := newHasher(alg)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(h, r); err != nil {
		return nil, fmt.Errorf("reading data: %w", err)
	}
	return &Checksum{Algorithm: alg, Value: hex.EncodeToString(h.Sum(nil))}, nil
}

// HashFile digests the file at path.
func HashFile(path string, alg ChecksumAlgorithm) (*Checksum, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	return HashReader(f, alg)
}

// VerifyFile compares the file at path against expected and wraps
// ErrChecksumMismatch when they differ. A nil expected always passes.
func VerifyFile(path string, expected *Checksum) (*Checksum, error) {
	if expected == nil {
		return nil, nil
	}
	actual, err := HashFile(path, expected.Algorithm)
	if err != nil {
		return nil, err
	}
	if actual.Value != expected.Value {
		return actual, fmt.Errorf("%w: expected %s, got %s", ErrChecksumMismatch, expected.Value, actual.Value)
	}
	return actual, nil
}
