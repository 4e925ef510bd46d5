package storage

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
)

// Compress serializes v to JSON, gzips it and returns a base64 text form
// suitable for a string column. Decompress inverts it exactly:
// Decompress(Compress(x)) deep-equals x for any JSON-serializable x.
func Compress(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to serialize payload: %w", err)
	}

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return "", fmt.Errorf("failed to compress payload: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize compressed payload: %w", err)
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Decompress reverses Compress, parsing the payload into out.
func Decompress(compressed string, out interface{}) error {
	raw, err := base64.StdEncoding.DecodeString(compressed)
	if err != nil {
		return fmt.Errorf("failed to decode compressed payload: %w", err)
	}

	zr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("failed to open compressed payload: %w", err)
	}
	defer zr.Close()

	data, err := io.ReadAll(zr)
	if err != nil {
		return fmt.Errorf("failed to decompress payload: %w", err)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse decompressed payload: %w", err)
	}
	return nil
}

// compressionRatio reports the fraction of space saved when compressing v,
// in the 0..1 range. It is a UI-facing estimate only: the base64 text form
// is measured because that is what actually lands in Tier B.
func compressionRatio(v interface{}) float64 {
	data, err := json.Marshal(v)
	if err != nil || len(data) == 0 {
		return 0
	}
	compressed, err := Compress(v)
	if err != nil {
		return 0
	}
	saved := 1 - float64(len(compressed))/float64(len(data))
	if saved < 0 {
		return 0
	}
	return saved
}
