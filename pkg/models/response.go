package models

// AskRequest is the body of POST /v1/{route}. Either field may carry the
// question; Input wins when both are set.
type AskRequest struct {
	Input any `json:"input,omitempty"`
	Query any `json:"query,omitempty"`
}

// Raw returns the question as decoded, before validation.
func (r AskRequest) Raw() any {
	if r.Input != nil {
		return r.Input
	}
	return r.Query
}

// AskResponse is a successful gateway reply.
type AskResponse struct {
	Success    bool    `json:"success"`
	Output     string  `json:"output"`
	Cached     bool    `json:"cached"`
	Warning    string  `json:"warning,omitempty"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"`
	RequestID  string  `json:"request_id,omitempty"`
}

// ErrorResponse is a failed gateway reply.
type ErrorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	Kind      string `json:"kind"`
	RequestID string `json:"request_id,omitempty"`
}
