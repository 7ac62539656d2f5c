package messagequeue

// AgentExecutedPayload is the schema for agents.executed messages.
type AgentExecutedPayload struct {
	AgentKind    string  `json:"agent_kind"`
	Confidence   float64 `json:"confidence"`
	HITLRequired bool    `json:"hitl_required"`
	LatencyMs    float64 `json:"latency_ms"`
	ProjectID    string  `json:"project_id,omitempty"`
}

// HITLEventPayload is the schema for hitl.created and hitl.resolved messages.
type HITLEventPayload struct {
	RequestID  string  `json:"request_id"`
	ProjectID  string  `json:"project_id"`
	AgentKind  string  `json:"agent_kind"`
	Status     string  `json:"status"`
	Confidence float64 `json:"confidence"`
	ReviewerID string  `json:"reviewer_id,omitempty"`
}

// PaymentUpdatedPayload is the schema for payments.updated messages.
type PaymentUpdatedPayload struct {
	PaymentID string  `json:"payment_id"`
	InvoiceID string  `json:"invoice_id,omitempty"`
	Status    string  `json:"status"`
	Amount    float64 `json:"amount"`
}
