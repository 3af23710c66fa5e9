// Package cardhash derives the content identity of a card. Two cards that
// differ only in case, surrounding whitespace, line endings or Unicode
// composition hash the same.
package cardhash

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/conorfennell/repaso/internal/domain"
)

func normalizeField(s string) string {
	s = norm.NFC.String(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ToLower(strings.TrimSpace(s))
}

// Normalize cleans each field and joins them with a newline so that adjacent
// fields can never run together.
func Normalize(question, answer, context string) string {
	return strings.Join([]string{
		normalizeField(question),
		normalizeField(answer),
		normalizeField(context),
	}, "\n")
}

// Sum returns the hex SHA-256 of the normalized fields.
func Sum(question, answer, context string) string {
	sum := sha256.Sum256([]byte(Normalize(question, answer, context)))
	return hex.EncodeToString(sum[:])
}

// Of hashes a card's content.
func Of(c domain.Card) string {
	return Sum(c.Question, c.Answer, c.Context)
}
