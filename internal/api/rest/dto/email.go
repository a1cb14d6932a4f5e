package dto

// SendEmailRequest is the body accepted by POST /api/send-email
type SendEmailRequest struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Complete reports whether every field is present
func (r SendEmailRequest) Complete() bool {
	return r.To != "" && r.Subject != "" && r.Body != ""
}

// MessageResponse is the success body
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse is the failure body
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is returned by GET /health
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}
