package segmenter

import (
	"unicode/utf8"
)

// SingleLimit is the billable length of one SMS part, in characters.
const SingleLimit = 160

const (
	EncodingGSM7 = "gsm7"
	EncodingUCS2 = "ucs2"
)

// Info describes how a rendered message will be billed.
type Info struct {
	Length   int    // characters (runes)
	Segments int    // billable parts
	Encoding string // gsm7 or ucs2, informational only
}

// Count returns ceil(length/160) with a minimum of one part, so an empty
// message still bills as a single segment.
func Count(message string) int {
	n := utf8.RuneCountInString(message)
	if n <= SingleLimit {
		return 1
	}
	return (n + SingleLimit - 1) / SingleLimit
}

// Analyze returns the length, segment count and encoding of message.
func Analyze(message string) Info {
	enc := EncodingGSM7
	if !isGSM7(message) {
		enc = EncodingUCS2
	}
	return Info{
		Length:   utf8.RuneCountInString(message),
		Segments: Count(message),
		Encoding: enc,
	}
}

// Split cuts message into SingleLimit-sized parts on rune boundaries.
func Split(message string) []string {
	runes := []rune(message)
	if len(runes) == 0 {
		return []string{""}
	}
	parts := make([]string, 0, Count(message))
	for start := 0; start < len(runes); start += SingleLimit {
		end := start + SingleLimit
		if end > len(runes) {
			end = len(runes)
		}
		parts = append(parts, string(runes[start:end]))
	}
	return parts
}

// isGSM7 checks if a string contains only GSM-7 characters (simplified check).
// See https://en.wikipedia.org/wiki/GSM_03.38#GSM_7-bit_default_alphabet_and_extension_table_of_characters
func isGSM7(s string) bool {
	for _, r := range s {
		if r > 0x7F {
			if _, ok := gsm7Latin1[r]; !ok {
				return false
			}
		}
	}
	return true
}

// Non-ASCII characters present in the GSM 03.38 default alphabet.
var gsm7Latin1 = map[rune]struct{}{
	'£': {}, '¥': {}, 'è': {}, 'é': {}, 'ù': {}, 'ì': {}, 'ò': {}, 'Ç': {},
	'Ø': {}, 'ø': {}, 'Å': {}, 'å': {}, 'Δ': {}, 'Φ': {}, 'Γ': {}, 'Λ': {},
	'Ω': {}, 'Π': {}, 'Ψ': {}, 'Σ': {}, 'Θ': {}, 'Ξ': {}, 'Æ': {}, 'æ': {},
	'ß': {}, 'É': {}, '¤': {}, '¡': {}, 'Ä': {}, 'Ö': {}, 'Ñ': {}, 'Ü': {},
	'§': {}, '¿': {}, 'ä': {}, 'ö': {}, 'ñ': {}, 'ü': {}, 'à': {}, '€': {},
}
