package dto

// HealthResponse reports the dependencies the webhook path needs
type HealthResponse struct {
	Status             string `json:"status"`
	SecretConfigured   bool   `json:"secret_configured"`
	ProcessorReachable bool   `json:"processor_reachable"`
	DatabaseReachable  bool   `json:"database_reachable"`
}

// Healthy reports whether every check passed
func (r *HealthResponse) Healthy() bool {
	return r.SecretConfigured && r.ProcessorReachable && r.DatabaseReachable
}

// WebhookResponse acknowledges a processor delivery
type WebhookResponse struct {
	Received  bool `json:"received"`
	Duplicate bool `json:"duplicate,omitempty"`
}
