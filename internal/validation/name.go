package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

const (
	MaxNameLength        = 100
	MaxDescriptionLength = 150
)

// NormalizeName trims surrounding space and composes the text to NFC so
// visually equal names compare equal.
func NormalizeName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

// ValidateName checks an already normalized album or circle name.
// label names the field in the error message.
func ValidateName(label, name string) error {
	if name == "" {
		return fmt.Errorf("%s name is required", label)
	}

	if utf8.RuneCountInString(name) > MaxNameLength {
		return fmt.Errorf("%s name is too long (max %d characters)", label, MaxNameLength)
	}

	return nil
}

func ValidateDescription(description string) error {
	if utf8.RuneCountInString(description) > MaxDescriptionLength {
		return fmt.Errorf("description is too long (max %d characters)", MaxDescriptionLength)
	}
	return nil
}
