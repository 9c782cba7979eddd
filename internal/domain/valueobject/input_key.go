package valueobject

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingInputValue is returned when a key=value assignment has no '='.
var ErrMissingInputValue = errors.New("failed to get the value from input, expected key=value")

// InputKey is the key of a workflow input variable.
type InputKey string

// NewInputKey validates s as a workflow variable key: non-empty ASCII
// alphanumerics, '_' and '-'.
func NewInputKey(s string) (InputKey, error) {
	if !isValidName(s, true) {
		return "", fmt.Errorf("key '%s' is in invalid format", s)
	}
	return InputKey(s), nil
}

// String returns the string representation of the key
func (k InputKey) String() string {
	return string(k)
}

// ParseInputAssignment splits s on the first '='. "k=v=a" yields ("k", "v=a").
// The key is not validated.
func ParseInputAssignment(s string) (string, string, error) {
	key, value, ok := strings.Cut(s, "=")
	if !ok {
		return "", "", ErrMissingInputValue
	}
	return key, value, nil
}
