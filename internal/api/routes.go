package api

import (
	"net/http"

	"github.com/wgomg/affinity/internal/utils"
	"github.com/wgomg/affinity/internal/utils/httputils"
)

func RegisterRoutes(mux *http.ServeMux, handler *Handler) {
	mux.HandleFunc("POST /recommendations_with_scores/", handler.HandleRecommendations)
	mux.HandleFunc("GET /health", handler.HandleHealth)
}

// NewRouter returns the service's routes wrapped in the request id and
// panic recovery middleware.
func NewRouter(handler *Handler, logger *utils.Logger) http.Handler {
	mux := http.NewServeMux()
	RegisterRoutes(mux, handler)
	return httputils.WithRequestID(httputils.Recover(logger)(mux))
}
