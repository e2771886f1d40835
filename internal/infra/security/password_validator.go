package security

import (
	"fmt"
	"strings"
	"unicode/utf8"

	zxcvbn "github.com/nbutton23/zxcvbn-go"
)

const (
	minPasswordLength = 8
	maxPasswordLength = 128
	minPasswordScore  = 2
)

// PasswordValidator enforces signup password requirements: length bounds plus
// a zxcvbn strength score so trivially guessable passwords are refused.
type PasswordValidator struct {
	minLength int
	maxLength int
	minScore  int
}

// DefaultPasswordValidator returns a validator with the standard policy.
func DefaultPasswordValidator() *PasswordValidator {
	return &PasswordValidator{
		minLength: minPasswordLength,
		maxLength: maxPasswordLength,
		minScore:  minPasswordScore,
	}
}

// Validate returns an error describing the first violated requirement.
func (v *PasswordValidator) Validate(password string, userInputs ...string) error {
	if strings.TrimSpace(password) == "" {
		return fmt.Errorf("password is required")
	}

	length := utf8.RuneCountInString(password)
	if length < v.minLength {
		return fmt.Errorf("password must be at least %d characters", v.minLength)
	}
	if length > v.maxLength {
		return fmt.Errorf("password must be at most %d characters", v.maxLength)
	}

	inputs := make([]string, 0, len(userInputs))
	for _, input := range userInputs {
		if trimmed := strings.TrimSpace(input); trimmed != "" {
			inputs = append(inputs, trimmed)
		}
	}

	result := zxcvbn.PasswordStrength(password, inputs)
	if result.Score < v.minScore {
		return fmt.Errorf("password is too weak; choose a less predictable one")
	}

	return nil
}
