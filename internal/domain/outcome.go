package domain

// FailureKind classifies why an attempt failed. The scheduler's retry
// policy keys off it.
type FailureKind string

const (
	FailureNone       FailureKind = ""
	FailureAutomation FailureKind = "automation"
	FailureDiscovery  FailureKind = "discovery"
	FailureDriver     FailureKind = "driver"
	FailureConfig     FailureKind = "config"
)

// Retryable reports whether the automatic retry policy applies.
func (k FailureKind) Retryable() bool { return k == FailureAutomation }

// Outcome is the structured result of one Posting Executor run.
type Outcome struct {
	Success      bool        `json:"success"`
	ExternalURL  string      `json:"externalUrl,omitempty"`
	ErrorMessage string      `json:"errorMessage,omitempty"`
	Kind         FailureKind `json:"kind,omitempty"`
	Screenshot   []byte      `json:"-"`
	Cost         float64     `json:"cost"`
	Discovered   bool        `json:"discovered"`
}

// Failed builds a failed outcome.
func Failed(kind FailureKind, msg string) Outcome {
	return Outcome{Kind: kind, ErrorMessage: msg}
}
