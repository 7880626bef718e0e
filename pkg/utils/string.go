package utils

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// GenerateID generates a random ID with prefix
func GenerateID(prefix string) string {
	id := uuid.New()
	return fmt.Sprintf("%s_%s", prefix, strings.ReplaceAll(id.String(), "-", "")[:16])
}

// SanitizeFileName makes s usable as a single path element
func SanitizeFileName(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\':
			return '_'
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, s)
	s = strings.TrimSpace(s)
	if s == "" || s == "." || s == ".." {
		return "_"
	}
	return s
}

