package segmenter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCount(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    int
	}{
		{"empty", "", 1},
		{"single char", "a", 1},
		{"exactly one part", strings.Repeat("a", 160), 1},
		{"one over", strings.Repeat("a", 161), 2},
		{"exactly two parts", strings.Repeat("a", 320), 2},
		{"three parts", strings.Repeat("a", 321), 3},
		{"multibyte counted as characters", strings.Repeat("é", 160), 1},
		{"emoji counted as characters", strings.Repeat("😀", 161), 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Count(tt.message))
		})
	}
}

func TestAnalyze_Encoding(t *testing.T) {
	assert.Equal(t, EncodingGSM7, Analyze("Bonjour Awa, -10% chez nous").Encoding)
	assert.Equal(t, EncodingGSM7, Analyze("Prix: 5€ à payer").Encoding)
	assert.Equal(t, EncodingUCS2, Analyze("مرحبا").Encoding)

	info := Analyze(strings.Repeat("x", 200))
	assert.Equal(t, 200, info.Length)
	assert.Equal(t, 2, info.Segments)
}

func TestSplit(t *testing.T) {
	parts := Split(strings.Repeat("b", 321))
	assert.Len(t, parts, 3)
	assert.Len(t, parts[0], 160)
	assert.Equal(t, "b", parts[2])

	assert.Equal(t, []string{""}, Split(""))
}
