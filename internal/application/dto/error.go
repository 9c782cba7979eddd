package dto

// ErrorResponse is the error body the API may return with a non-2xx status.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Text returns the most descriptive non-empty field.
func (e ErrorResponse) Text() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Error
}
