package promptlog

import "time"

// Entry is one LLM call recorded to the side-channel log.
type Entry struct {
	Timestamp  time.Time `json:"ts"`
	RunID      int64     `json:"run_id"`
	Persona    string    `json:"persona"`
	Case       string    `json:"case"`
	Scale      string    `json:"scale"`
	Attempt    int       `json:"attempt"`
	Model      string    `json:"model"`
	Prompt     string    `json:"prompt"`
	Response   string    `json:"response"`
	Rating     *int      `json:"rating,omitempty"`
	GenTimeMs  int       `json:"gen_ms"`
	OK         bool      `json:"ok"`
	Error      string    `json:"error,omitempty"`
}
