package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressRoundTrip(t *testing.T) {
	original := map[string]interface{}{
		"name":    "ميناء الإسكندرية", // unicode survives the round trip
		"depth_m": 14.5,
		"berths":  []interface{}{"B1", "B2", "B3"},
		"nested": map[string]interface{}{
			"coordinates": []interface{}{31.2001, 29.9187},
			"active":      true,
			"empty":       map[string]interface{}{},
		},
	}

	compressed, err := Compress(original)
	require.NoError(t, err)
	assert.NotEmpty(t, compressed)

	var restored map[string]interface{}
	require.NoError(t, Decompress(compressed, &restored))
	assert.Equal(t, original, restored)
}

func TestCompressRoundTripSlice(t *testing.T) {
	original := []string{"alpha", "beta", "", "δέλτα"}

	compressed, err := Compress(original)
	require.NoError(t, err)

	var restored []string
	require.NoError(t, Decompress(compressed, &restored))
	assert.Equal(t, original, restored)
}

func TestDecompressRejectsGarbage(t *testing.T) {
	var out map[string]interface{}
	assert.Error(t, Decompress("not base64 at all !!!", &out))
	// Valid base64 but not gzip.
	assert.Error(t, Decompress("aGVsbG8gd29ybGQ=", &out))
}

func TestCompressionRatio(t *testing.T) {
	// Highly repetitive payloads compress well.
	big := make([]string, 500)
	for i := range big {
		big[i] = "warehouse rental request pending review"
	}
	assert.Greater(t, compressionRatio(big), 0.5)

	// Tiny payloads may grow; the ratio is clamped at zero.
	assert.GreaterOrEqual(t, compressionRatio("x"), 0.0)
}
