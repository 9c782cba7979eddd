package dto

// URLResponse carries a presigned storage URL returned by the API.
type URLResponse struct {
	URL string `json:"url"`
}

// UploadBlobFileRequest is the body of POST /api/v0/blobs/files.
type UploadBlobFileRequest struct {
	Path string `json:"path"`
}

// FileTransferResult is the --json output of upload and download commands.
type FileTransferResult struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Bytes       int64  `json:"bytes"`
	Size        string `json:"size"`
}
