package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/nua/internal/catalog"
	"github.com/hitoshi/nua/internal/enrich"
	"github.com/hitoshi/nua/internal/middleware"
	"github.com/hitoshi/nua/internal/model"
)

// SearchServiceInterface は検索ハンドラーが必要とするカタログ検索インターフェース。
type SearchServiceInterface interface {
	// Search は外部カタログを横断検索する。プロバイダー障害時は空の結果を返す。
	Search(ctx context.Context, query string, mediaType model.MediaType) []catalog.ExternalItem
}

// EnrichServiceInterface はエンリッチハンドラーが必要とするインターフェース。
type EnrichServiceInterface interface {
	// Enrich は詳細取得とAIタグ生成を並行実行する。
	Enrich(ctx context.Context, item catalog.ExternalItem) enrich.Enrichment
}

// SearchHandler は作品検索とエンリッチのHTTPハンドラー。
type SearchHandler struct {
	search   SearchServiceInterface
	enricher EnrichServiceInterface
}

// NewSearchHandler はSearchHandlerを生成する。
func NewSearchHandler(search SearchServiceInterface, enricher EnrichServiceInterface) *SearchHandler {
	return &SearchHandler{
		search:   search,
		enricher: enricher,
	}
}

// searchResponse は検索結果のAPIレスポンス。
type searchResponse struct {
	Results []catalog.ExternalItem `json:"results"`
}

// Search は外部カタログを検索する。
// GET /api/search?q=xxx&type=movie
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	if _, err := middleware.UserIDFromContext(r.Context()); err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	q := r.URL.Query()
	mediaType := model.MediaType(q.Get("type"))
	if !mediaType.IsValid() {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidMediaTypeError(q.Get("type")))
		return
	}

	results := h.search.Search(r.Context(), q.Get("q"), mediaType)
	if results == nil {
		results = []catalog.ExternalItem{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(searchResponse{Results: results})
}

// Enrich は選択された作品の詳細とAIムードタグを取得する。
// POST /api/search/enrich
//
// 詳細取得とタグ生成はそれぞれ独立にフォールバックするため、
// レスポンスは常に200で構造的に妥当な形になる。
func (h *SearchHandler) Enrich(w http.ResponseWriter, r *http.Request) {
	if _, err := middleware.UserIDFromContext(r.Context()); err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var item catalog.ExternalItem
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	if !item.Type.IsValid() {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidMediaTypeError(string(item.Type)))
		return
	}

	result := h.enricher.Enrich(r.Context(), item)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}
