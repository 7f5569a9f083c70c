package models

// QuestionRequest is the body of POST /api/v1/questions.
type QuestionRequest struct {
	Input string `json:"input"`
	ID    string `json:"id,omitempty"`
}

// IngestResponse is returned after a successful document upload.
type IngestResponse struct {
	DocumentID string `json:"document_id"`
	FileName   string `json:"file_name"`
	Pages      int    `json:"pages"`
	Chunks     int    `json:"chunks"`
}

// ErrorResponse is the stable error payload shape for all failures.
type ErrorResponse struct {
	Category string `json:"category"`
	Message  string `json:"message"`
	Detail   string `json:"detail,omitempty"`
}
