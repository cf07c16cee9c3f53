package controllers

import (
	"net/http"
	"strings"

	"github.com/Siddharth-AI/Intrest-Miner-sub001/api/middleware"
	"github.com/Siddharth-AI/Intrest-Miner-sub001/api/responses"
	"github.com/Siddharth-AI/Intrest-Miner-sub001/api/validators"
	interestsvc "github.com/Siddharth-AI/Intrest-Miner-sub001/internal/interests"
	pkgerrors "github.com/Siddharth-AI/Intrest-Miner-sub001/pkg/errors"
	"github.com/Siddharth-AI/Intrest-Miner-sub001/pkg/logger"
)

const maxInterestResults = 100

// InterestSearch runs an ad-interest lookup. The surrounding quota middleware
// owns admission and unit accounting; this handler only shapes the response.
func InterestSearch(svc interestsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "interest service unavailable"))
			return
		}

		query := strings.TrimSpace(r.URL.Query().Get("q"))
		if query == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "query is required"))
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", 25, 1, maxInterestResults)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		interests, err := svc.Search(r.Context(), query, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payload := map[string]any{
			"query":     query,
			"interests": interests,
		}
		if sub := middleware.SubscriptionFromContext(r.Context()); sub != nil {
			remaining := sub.SearchesRemaining - 1
			if remaining < 0 {
				remaining = 0
			}
			payload["searches_remaining"] = remaining
		}
		responses.WriteSuccess(w, payload)
	}
}
