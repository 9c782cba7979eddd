package dto

// DispatchScanRequest is the body of POST /api/v0/workflows/{workflowID}/scans/dispatch.
// Inputs is serialized as null when no inputs were given.
type DispatchScanRequest struct {
	ScanName string         `json:"scanName"`
	Inputs   map[string]any `json:"inputs"`
}

// DispatchScanResult is the --json output of a scan dispatch.
type DispatchScanResult struct {
	WorkflowID string         `json:"workflowId"`
	ScanName   string         `json:"scanName"`
	Inputs     map[string]any `json:"inputs,omitempty"`
}

// DeletedResult is the --json output of delete commands.
type DeletedResult struct {
	JobID        string `json:"jobId"`
	ArtifactName string `json:"artifactName,omitempty"`
	Deleted      bool   `json:"deleted"`
}
