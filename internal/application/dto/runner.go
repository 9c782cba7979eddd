package dto

// RunnerRegistrationResponse is returned by POST /api/v0/runner-registrations.
type RunnerRegistrationResponse struct {
	URL   string `json:"url"`
	Token string `json:"token"`
}

// CreatedResponse is returned by endpoints that create a resource.
type CreatedResponse struct {
	ID string `json:"id"`
}
