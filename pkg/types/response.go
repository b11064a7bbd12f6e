// Package types holds the JSON shapes served by the diagnostics API.
package types

type SuccessEnvelope struct {
	Data any `json:"data"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorEnvelope carries the request id so a failed probe can be matched to
// its "request.error" log line.
type ErrorEnvelope struct {
	Error     APIError `json:"error"`
	RequestID string   `json:"request_id,omitempty"`
}

// Health states.
const (
	HealthLive  = "live"
	HealthReady = "ready"
	DepUp       = "up"
)

// HealthReport is the body of /health/live and /health/ready. Dependencies
// lists each probed dependency by name; it is empty for liveness.
type HealthReport struct {
	Status       string            `json:"status"`
	Env          string            `json:"env"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
}
