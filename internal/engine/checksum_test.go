package engine

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const (
	emptySHA256 = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	emptyMD5    = "d41d8cd98f00b204e9800998ecf8427e"
	emptyBLAKE3 = "af1349b9f5f9a1a6a0404dea36dcc9499bcb25c9adc112b7cc9a93cae41f3262"
	helloSHA256 = "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"
)

func TestParseChecksum(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantAlgo ChecksumAlgorithm
		wantNil  bool
		wantErr  bool
	}{
		{name: "sha256", input: "sha256:" + emptySHA256, wantAlgo: AlgorithmSHA256},
		{name: "blake3", input: "BLAKE3:" + emptyBLAKE3, wantAlgo: AlgorithmBLAKE3},
		{name: "bare md5", input: emptyMD5, wantAlgo: AlgorithmMD5},
		{name: "bare 64 chars", input: emptySHA256, wantAlgo: AlgorithmSHA256},
		{name: "empty", input: "", wantNil: true},
		{name: "unknown algorithm", input: "crc32:abcd", wantErr: true},
		{name: "bad hex", input: "sha256:xyz", wantErr: true},
		{name: "missing algorithm", input: ":abcd", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseChecksum(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseChecksum() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if tt.wantNil {
				if got != nil {
					t.Errorf("ParseChecksum() = %v, want nil", got)
				}
				return
			}
			if got.Algorithm != tt.wantAlgo {
				t.Errorf("Algorithm = %v, want %v", got.Algorithm, tt.wantAlgo)
			}
		})
	}
}

func TestParseAlgorithm(t *testing.T) {
	for _, name := range []string{"", "md5", "SHA1", "sha256", "sha512", "blake3"} {
		if _, err := ParseAlgorithm(name); err != nil {
			t.Errorf("ParseAlgorithm(%q) error = %v", name, err)
		}
	}
	if _, err := ParseAlgorithm("whirlpool"); err == nil {
		t.Error("ParseAlgorithm(whirlpool) should fail")
	}
}

func TestHashFile(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.bin")
	hello := filepath.Join(dir, "hello.txt")
	os.WriteFile(empty, nil, 0644)
	os.WriteFile(hello, []byte("hello world"), 0644)

	tests := []struct {
		path string
		alg  ChecksumAlgorithm
		want string
	}{
		{empty, AlgorithmSHA256, emptySHA256},
		{empty, AlgorithmMD5, emptyMD5},
		{empty, AlgorithmBLAKE3, emptyBLAKE3},
		{hello, AlgorithmSHA256, helloSHA256},
	}

	for _, tt := range tests {
		t.Run(string(tt.alg)+"/"+filepath.Base(tt.path), func(t *testing.T) {
			got, err := HashFile(tt.path, tt.alg)
			if err != nil {
				t.Fatalf("HashFile() error = %v", err)
			}
			if got.Value != tt.want {
				t.Errorf("HashFile() = %s, want %s", got.Value, tt.want)
			}
		})
	}

	if _, err := HashFile(filepath.Join(dir, "missing"), AlgorithmSHA256); err == nil {
		t.Error("HashFile() on a missing file should fail")
	}
}

func TestVerifyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hello.txt")
	os.WriteFile(path, []byte("hello world"), 0644)

	if _, err := VerifyFile(path, nil); err != nil {
		t.Errorf("VerifyFile(nil) error = %v", err)
	}

	if _, err := VerifyFile(path, &Checksum{Algorithm: AlgorithmSHA256, Value: helloSHA256}); err != nil {
		t.Errorf("VerifyFile(match) error = %v", err)
	}

	actual, err := VerifyFile(path, &Checksum{Algorithm: AlgorithmSHA256, Value: emptySHA256})
	if !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("VerifyFile(mismatch) error = %v, want ErrChecksumMismatch", err)
	}
	if actual == nil || actual.Value != helloSHA256 {
		t.Errorf("VerifyFile(mismatch) actual = %v", actual)
	}
}

func TestChecksum_String(t *testing.T) {
	c := &Checksum{Algorithm: AlgorithmBLAKE3, Value: "abcd"}
	if got := c.String(); !strings.HasPrefix(got, "blake3:") {
		t.Errorf("String() = %q", got)
	}
}
