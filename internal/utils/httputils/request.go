package httputils

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/wgomg/affinity/internal/utils"
)

const MessageInvalidJSON = "Invalid JSON"

// ReadBody reads at most limit bytes of the request body.
func ReadBody(w http.ResponseWriter, r *http.Request, limit int64, logger *utils.Logger, reqID string) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}

	bodyBytes, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, &HTTPError{
				Code:    http.StatusRequestEntityTooLarge,
				Message: "Request body too large",
			}
		}
		return nil, err
	}

	if logger.RawBodyLog {
		logger.Debug(&reqID, "Raw request body: %s", string(bodyBytes))
	}

	return bodyBytes, nil
}

// DecodeJSONObject decodes body into v and rejects anything that is not a JSON object.
func DecodeJSONObject(body []byte, v any) error {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return BadRequest(MessageInvalidJSON)
	}

	if err := json.Unmarshal(trimmed, v); err != nil {
		return BadRequest(MessageInvalidJSON)
	}
	return nil
}
