package valueobject

import "errors"

// ErrInvalidScanName is returned for scan names outside [A-Za-z0-9_]+.
var ErrInvalidScanName = errors.New("scan name must be non-empty and contain only ASCII letters, digits and '_'")

// ScanName is the name of a scan defined in a workflow.
type ScanName string

// NewScanName validates s and returns it as a ScanName.
func NewScanName(s string) (ScanName, error) {
	if !isValidName(s, false) {
		return "", ErrInvalidScanName
	}
	return ScanName(s), nil
}

// String returns the string representation of the scan name
func (n ScanName) String() string {
	return string(n)
}

// isValidName reports whether s is non-empty and consists of ASCII
// alphanumerics and '_' (plus '-' when allowDash is set).
func isValidName(s string, allowDash bool) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_':
		case c == '-' && allowDash:
		default:
			return false
		}
	}
	return true
}
