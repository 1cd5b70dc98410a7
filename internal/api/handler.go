package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/wgomg/affinity/internal/config"
	"github.com/wgomg/affinity/internal/processor"
	"github.com/wgomg/affinity/internal/profile"
	"github.com/wgomg/affinity/internal/semantic"
	"github.com/wgomg/affinity/internal/utils"
	"github.com/wgomg/affinity/internal/utils/httputils"
)

const healthCheckTimeout = 10 * time.Second

type Handler struct {
	logger   *utils.Logger
	ranker   *processor.Ranker
	embedder semantic.Embedder
	cfg      *config.Config
}

func NewHandler(
	logger *utils.Logger,
	ranker *processor.Ranker,
	embedder semantic.Embedder,
	cfg *config.Config,
) *Handler {
	return &Handler{
		logger:   logger,
		ranker:   ranker,
		embedder: embedder,
		cfg:      cfg,
	}
}

func (h *Handler) HandleRecommendations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := httputils.RequestIDFromContext(ctx)

	body, err := httputils.ReadBody(w, r, h.cfg.App.MaxBodyBytes, h.logger, reqID)
	if err != nil {
		h.logger.Error(&reqID, "Failed to read request body: %v", err)
		httputils.HandleError(w, err)
		return
	}

	var req RecommendationRequest
	if err := httputils.DecodeJSONObject(body, &req); err != nil {
		h.logger.Warn(&reqID, "JSON decode error: %v", err)
		httputils.HandleError(w, err)
		return
	}

	targetID, users, topK, err := h.parseRequest(&req)
	if err != nil {
		h.logger.Warn(&reqID, "Rejected request: %v", err)
		httputils.HandleError(w, err)
		return
	}

	h.logger.Info(&reqID, "Ranking request: user_id=%s, users=%d, top_k=%d", targetID, len(users), topK)

	scores, err := h.ranker.Rank(ctx, reqID, targetID, users, topK)
	if err != nil {
		h.logger.Error(&reqID, "Ranking failed: %v", err)
		httputils.HandleError(w, err)
		return
	}

	h.logger.Info(&reqID, "Returning %d recommendations", len(scores))

	if err := httputils.JSONResponse(w, http.StatusOK, RecommendationResponse{Recommendations: scores}); err != nil {
		h.logger.Error(&reqID, "Error sending response: %v", err)
	}
}

func (h *Handler) parseRequest(req *RecommendationRequest) (profile.ID, []profile.User, int, error) {
	if isAbsent(req.UserID) || isAbsent(req.UsersData) {
		return profile.ID{}, nil, 0, httputils.BadRequest(MessageMissingFields)
	}

	var targetID profile.ID
	if err := json.Unmarshal(req.UserID, &targetID); err != nil {
		return profile.ID{}, nil, 0, httputils.BadRequest(MessageInvalidUserID)
	}

	users, err := profile.DecodeUsers(req.UsersData)
	if err != nil {
		return profile.ID{}, nil, 0, httputils.BadRequest(MessageInvalidUsers + ": " + err.Error())
	}

	topK := h.cfg.Ranking.DefaultTopK
	if !isAbsent(req.TopK) {
		if err := json.Unmarshal(req.TopK, &topK); err != nil || topK < 0 {
			return profile.ID{}, nil, 0, httputils.BadRequest(MessageInvalidTopK)
		}
	}

	return targetID, users, topK, nil
}

func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	reqID := httputils.RequestIDFromContext(r.Context())
	resp := HealthResponse{Status: "ok", Model: h.embedder.ModelName()}

	checker, ok := h.embedder.(semantic.HealthChecker)
	if ok {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		if err := checker.HealthCheck(ctx); err != nil {
			h.logger.Error(&reqID, "Health check failed: %v", err)
			resp.Status = "unavailable"
			if errors.Is(err, semantic.ErrClosed) {
				resp.Error = err.Error()
			} else {
				resp.Error = "embedding model unavailable"
			}
			httputils.JSONResponse(w, http.StatusServiceUnavailable, resp)
			return
		}
	}

	if err := httputils.JSONResponse(w, http.StatusOK, resp); err != nil {
		h.logger.Error(&reqID, "Error sending response: %v", err)
	}
}
