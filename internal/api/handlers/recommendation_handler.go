package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/shopstream/recommendation-service/internal/application/services"
	apperrors "github.com/shopstream/recommendation-service/pkg/errors"
)

// RecommendationHandler handles recommendation-related HTTP requests
type RecommendationHandler struct {
	recommender *services.RecommendationService
	batch       *services.BatchService
}

// NewRecommendationHandler creates a new recommendation handler
func NewRecommendationHandler(recommender *services.RecommendationService, batch *services.BatchService) *RecommendationHandler {
	return &RecommendationHandler{
		recommender: recommender,
		batch:       batch,
	}
}

// GetRecommendation handles GET /recommend/{userID}
func (h *RecommendationHandler) GetRecommendation(w http.ResponseWriter, r *http.Request) {
	userID, err := parseUserID(r.PathValue("userID"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid user ID")
		return
	}

	result, cacheHit, err := h.recommender.Recommend(r.Context(), userID)
	if err != nil {
		if appErr, ok := err.(*apperrors.AppError); ok {
			switch appErr.Type {
			case apperrors.ErrorTypeUnavailable:
				respondWithError(w, http.StatusServiceUnavailable, "feed store unavailable")
			case apperrors.ErrorTypeTimeout:
				// The degraded result carries the {user_id, error} shape.
				respondWithJSON(w, http.StatusGatewayTimeout, result)
			default:
				respondWithError(w, http.StatusInternalServerError, "internal server error")
			}
			return
		}
		respondWithError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if cacheHit {
		w.Header().Set("X-Cache", "HIT")
	} else {
		w.Header().Set("X-Cache", "MISS")
	}
	respondWithJSON(w, http.StatusOK, result)
}

// InvalidateCache handles POST /invalidate-cache/{userID}
func (h *RecommendationHandler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	userID, err := parseUserID(r.PathValue("userID"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid user ID")
		return
	}

	h.recommender.InvalidateUser(r.Context(), userID)

	respondWithJSON(w, http.StatusOK, map[string]string{
		"message": "cache invalidated for user " + strconv.FormatInt(userID, 10),
	})
}

// BatchRecommend handles GET /batch-recommend?user_ids=1,2,3
func (h *RecommendationHandler) BatchRecommend(w http.ResponseWriter, r *http.Request) {
	userIDs, err := parseUserIDList(r.URL.Query().Get("user_ids"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid user_ids format")
		return
	}

	result, err := h.batch.RecommendBatch(r.Context(), userIDs)
	if err != nil {
		if appErr, ok := err.(*apperrors.AppError); ok && appErr.Type == apperrors.ErrorTypeValidation {
			respondWithError(w, http.StatusBadRequest, appErr.Message)
			return
		}
		respondWithError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

// WarmCache handles POST /warm-cache?user_ids=1,2,3
func (h *RecommendationHandler) WarmCache(w http.ResponseWriter, r *http.Request) {
	userIDs, err := parseUserIDList(r.URL.Query().Get("user_ids"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid user_ids format")
		return
	}

	ack, err := h.batch.WarmBatch(userIDs)
	if err != nil {
		if appErr, ok := err.(*apperrors.AppError); ok && appErr.Type == apperrors.ErrorTypeValidation {
			respondWithError(w, http.StatusBadRequest, appErr.Message)
			return
		}
		respondWithError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	respondWithJSON(w, http.StatusAccepted, ack)
}

func parseUserID(raw string) (int64, error) {
	return strconv.ParseInt(raw, 10, 64)
}

func parseUserIDList(raw string) ([]int64, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, strconv.ErrSyntax
	}
	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))
	for _, part := range parts {
		id, err := parseUserID(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func respondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}

func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondWithJSON(w, statusCode, map[string]string{
		"error": message,
	})
}
