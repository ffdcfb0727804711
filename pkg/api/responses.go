package api

import "github.com/codeready-toolchain/deepresearch/pkg/checkpoint"

// CancelResponse is the POST /cancel/:sessionID body.
type CancelResponse struct {
	Success bool `json:"success"`
}

// CheckpointResponse wraps a single checkpoint lookup, matching the
// spec's "metadata or {success:false}" contract for a missing session.
type CheckpointResponse struct {
	Success bool             `json:"success"`
	Info    *checkpoint.Info `json:"info,omitempty"`
}

// CheckpointListResponse is the GET /checkpoints body.
type CheckpointListResponse struct {
	Success     bool               `json:"success"`
	Checkpoints []checkpoint.Info  `json:"checkpoints"`
}

// DeleteResponse is the DELETE /checkpoint/:sessionID body.
type DeleteResponse struct {
	Success bool `json:"success"`
}

// HealthResponse is the GET /healthz body.
type HealthResponse struct {
	Status        string        `json:"status"`
	Version       string        `json:"version"`
	Configuration ConfigStats   `json:"configuration"`
}

// ConfigStats summarizes the resolved configuration for the health check.
type ConfigStats struct {
	MaxIterations  int    `json:"max_iterations"`
	LLMModel       string `json:"llm_model"`
	SandboxRetries int    `json:"sandbox_max_retries"`
}
