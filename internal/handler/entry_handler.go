package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/nua/internal/entry"
	"github.com/hitoshi/nua/internal/middleware"
	"github.com/hitoshi/nua/internal/model"
	"github.com/hitoshi/nua/internal/repository"
)

// 日付フィールドのワイヤフォーマット。
const dateLayout = "2006-01-02"

// EntryServiceInterface は記録ハンドラーが必要とするサービスインターフェース。
type EntryServiceInterface interface {
	List(ctx context.Context, userID string, params entry.ListParams) (*entry.ListResult, error)
	Create(ctx context.Context, userID string, input entry.CreateInput) (*model.EntryWithMedia, error)
	Update(ctx context.Context, userID, entryID string, input entry.UpdateInput) (*model.EntryWithMedia, error)
	Delete(ctx context.Context, userID, entryID string) error
	Stats(ctx context.Context, userID, typeFilter string) (*repository.EntryStats, error)
}

// EntryHandler は記録管理のHTTPハンドラー。
type EntryHandler struct {
	service EntryServiceInterface
}

// NewEntryHandler はEntryHandlerを生成する。
func NewEntryHandler(service EntryServiceInterface) *EntryHandler {
	return &EntryHandler{service: service}
}

// createEntryRequest は記録作成リクエストのボディ。
type createEntryRequest struct {
	Title          string         `json:"title"`
	Type           string         `json:"type"`
	Status         string         `json:"status"`
	Rating         float64        `json:"rating"`
	Moods          []string       `json:"moods"`
	StartDate      *string        `json:"startDate"`
	EndDate        *string        `json:"endDate"`
	OneLineReview  string         `json:"oneLineReview"`
	DetailedReview string         `json:"detailedReview"`
	PosterURL      string         `json:"posterUrl"`
	Overview       string         `json:"overview"`
	Metadata       map[string]any `json:"metadata"`
}

// updateEntryRequest は記録更新リクエストのボディ。nilのフィールドは変更しない。
type updateEntryRequest struct {
	Status         *string  `json:"status"`
	Rating         *float64 `json:"rating"`
	Moods          []string `json:"moods"`
	StartDate      *string  `json:"startDate"`
	EndDate        *string  `json:"endDate"`
	OneLineReview  *string  `json:"oneLineReview"`
	DetailedReview *string  `json:"detailedReview"`
}

// entryResponse は記録のAPIレスポンス。作品情報を埋め込んで返す。
type entryResponse struct {
	ID             string         `json:"id"`
	Title          string         `json:"title"`
	Type           string         `json:"type"`
	Status         string         `json:"status"`
	Rating         float64        `json:"rating"`
	Moods          []string       `json:"moods"`
	StartDate      *string        `json:"startDate"`
	EndDate        *string        `json:"endDate"`
	OneLineReview  string         `json:"oneLineReview"`
	DetailedReview string         `json:"detailedReview"`
	PosterURL      string         `json:"posterUrl,omitempty"`
	Overview       string         `json:"overview,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// entryListResponse は記録一覧のAPIレスポンス。
type entryListResponse struct {
	Items    []entryResponse `json:"items"`
	Total    int             `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"pageSize"`
}

// statsResponse は集計値のAPIレスポンス。
type statsResponse struct {
	Total      int     `json:"total"`
	ThisMonth  int     `json:"thisMonth"`
	InProgress int     `json:"inProgress"`
	AvgRating  float64 `json:"avgRating"`
}

// ListEntries は記録一覧を取得する。
// GET /api/entries?search=&type=&status=&sort=&page=&pageSize=
func (h *EntryHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	q := r.URL.Query()
	params := entry.ListParams{
		Search:   q.Get("search"),
		Type:     q.Get("type"),
		Status:   q.Get("status"),
		Sort:     q.Get("sort"),
		Page:     parseIntParam(q.Get("page")),
		PageSize: parseIntParam(q.Get("pageSize")),
	}

	result, err := h.service.List(r.Context(), userID, params)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	items := make([]entryResponse, len(result.Items))
	for i := range result.Items {
		items[i] = toEntryResponse(&result.Items[i])
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entryListResponse{
		Items:    items,
		Total:    result.Total,
		Page:     result.Page,
		PageSize: result.PageSize,
	})
}

// CreateEntry は記録を作成する。
// POST /api/entries
func (h *EntryHandler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req createEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	startDate, err := parseDateParam(req.StartDate)
	if err != nil {
		writeInvalidDate(w, "startDate")
		return
	}
	endDate, err := parseDateParam(req.EndDate)
	if err != nil {
		writeInvalidDate(w, "endDate")
		return
	}

	input := entry.CreateInput{
		Title:          req.Title,
		Type:           model.MediaType(req.Type),
		Status:         model.EntryStatus(req.Status),
		Rating:         req.Rating,
		Moods:          req.Moods,
		StartDate:      startDate,
		EndDate:        endDate,
		OneLineReview:  req.OneLineReview,
		DetailedReview: req.DetailedReview,
		PosterURL:      req.PosterURL,
		Overview:       req.Overview,
		Metadata:       req.Metadata,
	}

	created, err := h.service.Create(r.Context(), userID, input)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toEntryResponse(created))
}

// UpdateEntry は記録を部分更新する。
// PATCH /api/entries/:id
func (h *EntryHandler) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	entryID := chi.URLParam(r, "id")

	var req updateEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	startDate, err := parseDateParam(req.StartDate)
	if err != nil {
		writeInvalidDate(w, "startDate")
		return
	}
	endDate, err := parseDateParam(req.EndDate)
	if err != nil {
		writeInvalidDate(w, "endDate")
		return
	}

	input := entry.UpdateInput{
		Rating:         req.Rating,
		Moods:          req.Moods,
		StartDate:      startDate,
		EndDate:        endDate,
		OneLineReview:  req.OneLineReview,
		DetailedReview: req.DetailedReview,
	}
	if req.Status != nil {
		status := model.EntryStatus(*req.Status)
		input.Status = &status
	}

	updated, err := h.service.Update(r.Context(), userID, entryID, input)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toEntryResponse(updated))
}

// DeleteEntry は記録を削除する。
// DELETE /api/entries/:id
func (h *EntryHandler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	entryID := chi.URLParam(r, "id")

	if err := h.service.Delete(r.Context(), userID, entryID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetStats は記録の集計値を取得する。
// GET /api/stats?type=
func (h *EntryHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	stats, err := h.service.Stats(r.Context(), userID, r.URL.Query().Get("type"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(statsResponse{
		Total:      stats.Total,
		ThisMonth:  stats.ThisMonth,
		InProgress: stats.InProgress,
		AvgRating:  stats.AvgRating,
	})
}

// --- ヘルパー関数 ---

// toEntryResponse はEntryWithMediaからAPIレスポンスに変換する。
func toEntryResponse(e *model.EntryWithMedia) entryResponse {
	moods := e.Moods
	if moods == nil {
		moods = []string{}
	}
	return entryResponse{
		ID:             e.ID,
		Title:          e.Media.Title,
		Type:           string(e.Media.Type),
		Status:         string(e.Status),
		Rating:         e.Rating,
		Moods:          moods,
		StartDate:      formatDate(e.StartDate),
		EndDate:        formatDate(e.EndDate),
		OneLineReview:  e.OneLineReview,
		DetailedReview: e.DetailedReview,
		PosterURL:      e.Media.PosterURL,
		Overview:       e.Media.Overview,
		Metadata:       e.Media.Metadata,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	}
}

// parseDateParam はYYYY-MM-DD形式の日付文字列をパースする。nilはnilのまま返す。
func parseDateParam(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, *s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// formatDate は日付をYYYY-MM-DD形式の文字列に変換する。nilはnilのまま返す。
func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(dateLayout)
	return &s
}

// parseIntParam は数値クエリパラメータをパースする。不正な値は0を返し、
// サービス層のデフォルトに委ねる。
func parseIntParam(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

// apiErrorResponse は統一エラーフォーマットのレスポンス。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// writeInvalidRequestBody はJSONボディの解析失敗エラーを書き込む。
func writeInvalidRequestBody(w http.ResponseWriter) {
	writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
		Code:     "INVALID_REQUEST",
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	})
}

// writeInvalidDate は日付フィールドの形式エラーを書き込む。
func writeInvalidDate(w http.ResponseWriter, field string) {
	writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
		Code:     "INVALID_REQUEST",
		Message:  field + "はYYYY-MM-DD形式で指定してください。",
		Category: "validation",
		Action:   "日付の形式を確認してください。",
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case model.ErrCodeEntryNotFound, model.ErrCodeUserNotFound:
		return http.StatusNotFound
	case model.ErrCodeInvalidMediaType,
		model.ErrCodeInvalidStatus,
		model.ErrCodeInvalidRating,
		model.ErrCodeInvalidSortKey,
		model.ErrCodeInvalidQuery,
		model.ErrCodeTitleRequired:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
