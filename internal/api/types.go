package api

import (
	"bytes"
	"encoding/json"

	"github.com/wgomg/affinity/internal/processor"
)

const (
	MessageMissingFields  = "Missing user_id or users_data"
	MessageInvalidUserID  = "Invalid user_id"
	MessageInvalidTopK    = "Invalid top_k"
	MessageInvalidUsers   = "Invalid users_data"
	MessageInternalServer = "Internal server error"
)

// RecommendationRequest keeps every field raw so that absent, null and
// malformed values can be told apart.
type RecommendationRequest struct {
	UserID    json.RawMessage `json:"user_id"`
	UsersData json.RawMessage `json:"users_data"`
	TopK      json.RawMessage `json:"top_k"`
}

type RecommendationResponse struct {
	Recommendations []processor.Score `json:"recommendations"`
}

type HealthResponse struct {
	Status string `json:"status"`
	Model  string `json:"model"`
	Error  string `json:"error,omitempty"`
}

func isAbsent(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}
