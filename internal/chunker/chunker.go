package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"regexp"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// Normalize collapses all whitespace runs to single spaces and trims the ends.
// Fingerprinting and chunking both operate on normalized text, so chunk
// boundaries never depend on the original whitespace layout.
func Normalize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// Fingerprint returns the sha256 hex digest of the normalized text. It is the
// dedup key: a pure function of content, independent of guild, author or time.
func Fingerprint(text string) string {
	sum := sha256.Sum256([]byte(Normalize(text)))
	return hex.EncodeToString(sum[:])
}

// pointIDSpace namespaces the UUIDs derived from content fingerprints.
var pointIDSpace = uuid.MustParse("9c2f6a54-8c16-4e2a-b45e-2f0b6f9d1c70")

// PointID derives the vector-store point ID from a content fingerprint.
// Stores commonly restrict point IDs to UUIDs or integers, so the fingerprint
// is folded into a deterministic UUIDv5; identical content always maps to the
// same point and re-ingestion overwrites in place.
func PointID(fingerprint string) string {
	return uuid.NewSHA1(pointIDSpace, []byte(fingerprint)).String()
}

var (
	customEmoji = regexp.MustCompile(`<a?:[A-Za-z0-9_~]+:[0-9]+>`)
)

// IsTrivial reports whether text carries no ingestible content: after custom
// emoji tags, punctuation, symbols and whitespace are stripped, nothing is
// left. Emoji-only and empty messages are skipped by ingestion.
func IsTrivial(text string) bool {
	t := customEmoji.ReplaceAllString(text, "")
	for _, r := range t {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// Chunker splits normalized text into overlapping fixed-size windows.
type Chunker struct {
	maxChars int
	overlap  int
}

// New validates the window parameters once. An overlap at or above maxChars
// would stop the window from advancing, so it is rejected here rather than
// guarded per call.
func New(maxChars, overlap int) (*Chunker, error) {
	if maxChars <= 0 {
		return nil, errors.New("chunker: max chars must be positive")
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= maxChars {
		return nil, errors.New("chunker: overlap must be smaller than max chars")
	}
	return &Chunker{maxChars: maxChars, overlap: overlap}, nil
}

// Split normalizes text and slides a window of maxChars forward by
// maxChars-overlap per step. The window counts runes, not bytes, so
// multi-byte content never splits mid-rune. The final window is truncated to
// the end of the text. Text at or under maxChars comes back as a single
// chunk; empty normalized text yields nil.
func (c *Chunker) Split(text string) []string {
	text = Normalize(text)
	if text == "" {
		return nil
	}
	runes := []rune(text)
	if len(runes) <= c.maxChars {
		return []string{text}
	}
	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + c.maxChars
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
		start = end - c.overlap
	}
	return chunks
}

// MaxChars reports the configured window size.
func (c *Chunker) MaxChars() int { return c.maxChars }

// Overlap reports the configured window overlap.
func (c *Chunker) Overlap() int { return c.overlap }
