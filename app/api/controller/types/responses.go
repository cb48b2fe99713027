package types

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

type HasVotedResponse struct {
	HasVoted bool `json:"hasVoted"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type ReapResponse struct {
	Deleted int `json:"deleted"`
}

// HealthResponse reports dependency status. Redis is omitted when disabled.
type HealthResponse struct {
	Status     string  `json:"status"`
	Store      string  `json:"store"`
	LedgerMode string  `json:"ledgerMode"`
	Redis      *string `json:"redis,omitempty"`
	// Subscribers counts live websocket connections on this instance.
	Subscribers int `json:"subscribers"`
}
