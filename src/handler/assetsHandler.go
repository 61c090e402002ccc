package handler

import (
	"context"
	"net/http"
	"strconv"

	"tradingcore/src/model"
	"tradingcore/src/repository"
)

type assetSearcher interface {
	Search(ctx context.Context, assetType, term string, limit int) ([]model.Asset, error)
}

// SearchAssetsHandler lists tradable assets, filtered by ?type= and ?q=.
func SearchAssetsHandler(repo assetSearcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := userFromRequest(w, r); !ok {
			return
		}

		limit := 50
		if limitParam := r.URL.Query().Get("limit"); limitParam != "" {
			parsed, err := strconv.Atoi(limitParam)
			if err != nil || parsed <= 0 {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
			limit = parsed
		}

		assets, err := repo.Search(r.Context(), r.URL.Query().Get("type"), r.URL.Query().Get("q"), limit)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, assets)
	}
}

// DefaultSearchAssetsHandler wires the handler to the production repository implementation.
func DefaultSearchAssetsHandler() http.HandlerFunc {
	return SearchAssetsHandler(repository.NewAssetRepository())
}
