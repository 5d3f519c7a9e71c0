package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/nua/internal/entry"
	"github.com/hitoshi/nua/internal/middleware"
	"github.com/hitoshi/nua/internal/model"
	"github.com/hitoshi/nua/internal/repository"
)

// mockEntryService はEntryServiceInterfaceのモック。
type mockEntryService struct {
	listFn   func(ctx context.Context, userID string, params entry.ListParams) (*entry.ListResult, error)
	createFn func(ctx context.Context, userID string, input entry.CreateInput) (*model.EntryWithMedia, error)
	updateFn func(ctx context.Context, userID, entryID string, input entry.UpdateInput) (*model.EntryWithMedia, error)
	deleteFn func(ctx context.Context, userID, entryID string) error
	statsFn  func(ctx context.Context, userID, typeFilter string) (*repository.EntryStats, error)
}

func (m *mockEntryService) List(ctx context.Context, userID string, params entry.ListParams) (*entry.ListResult, error) {
	return m.listFn(ctx, userID, params)
}
func (m *mockEntryService) Create(ctx context.Context, userID string, input entry.CreateInput) (*model.EntryWithMedia, error) {
	return m.createFn(ctx, userID, input)
}
func (m *mockEntryService) Update(ctx context.Context, userID, entryID string, input entry.UpdateInput) (*model.EntryWithMedia, error) {
	return m.updateFn(ctx, userID, entryID, input)
}
func (m *mockEntryService) Delete(ctx context.Context, userID, entryID string) error {
	return m.deleteFn(ctx, userID, entryID)
}
func (m *mockEntryService) Stats(ctx context.Context, userID, typeFilter string) (*repository.EntryStats, error) {
	return m.statsFn(ctx, userID, typeFilter)
}

// newEntryTestRouter は認証済みコンテキストを注入したテスト用ルーターを返す。
func newEntryTestRouter(svc EntryServiceInterface, userID string) http.Handler {
	h := NewEntryHandler(svc)
	r := chi.NewRouter()
	if userID != "" {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				next.ServeHTTP(w, req.WithContext(middleware.ContextWithUserID(req.Context(), userID)))
			})
		})
	}
	r.Get("/api/entries", h.ListEntries)
	r.Post("/api/entries", h.CreateEntry)
	r.Patch("/api/entries/{id}", h.UpdateEntry)
	r.Delete("/api/entries/{id}", h.DeleteEntry)
	r.Get("/api/stats", h.GetStats)
	return r
}

// testEntryWithMedia はテスト用のEntryWithMediaを生成する。
func testEntryWithMedia(entryID, userID string) *model.EntryWithMedia {
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	return &model.EntryWithMedia{
		Entry: model.Entry{
			ID:            entryID,
			UserID:        userID,
			MediaID:       "media-1",
			Status:        model.EntryStatusInProgress,
			Rating:        4.5,
			Moods:         []string{"긴장감", "몰입"},
			StartDate:     &start,
			OneLineReview: "面白い",
			CreatedAt:     time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
			UpdatedAt:     time.Date(2025, 3, 2, 10, 0, 0, 0, time.UTC),
		},
		Media: model.MediaMetadata{
			ID:        "media-1",
			Title:     "듄: 파트 2",
			Type:      model.MediaTypeMovie,
			PosterURL: "https://image.tmdb.org/t/p/w500/dune2.jpg",
			Overview:  "사막 행성의 서사",
			Metadata:  map[string]any{"director": "드니 빌뇌브"},
		},
	}
}

// TestEntryHandler_ListEntries_Success は一覧取得が正しいJSONを返すことを検証する。
func TestEntryHandler_ListEntries_Success(t *testing.T) {
	var gotParams entry.ListParams
	svc := &mockEntryService{
		listFn: func(ctx context.Context, userID string, params entry.ListParams) (*entry.ListResult, error) {
			gotParams = params
			return &entry.ListResult{
				Items:    []model.EntryWithMedia{*testEntryWithMedia("entry-1", userID)},
				Total:    1,
				Page:     2,
				PageSize: 10,
			}, nil
		},
	}
	router := newEntryTestRouter(svc, "user-1")

	req := httptest.NewRequest(http.MethodGet, "/api/entries?search=듄&type=movie&status=in-progress&sort=rating&page=2&pageSize=10", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}

	if gotParams.Search != "듄" || gotParams.Type != "movie" || gotParams.Status != "in-progress" ||
		gotParams.Sort != "rating" || gotParams.Page != 2 || gotParams.PageSize != 10 {
		t.Errorf("クエリパラメータが正しく渡されていない: %+v", gotParams)
	}

	var body entryListResponse
	if err := json.NewDecoder(w.Result().Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if body.Total != 1 || body.Page != 2 || body.PageSize != 10 {
		t.Errorf("total/page/pageSize = %d/%d/%d, want 1/2/10", body.Total, body.Page, body.PageSize)
	}
	if len(body.Items) != 1 {
		t.Fatalf("items = %d, want 1", len(body.Items))
	}
	item := body.Items[0]
	if item.Title != "듄: 파트 2" {
		t.Errorf("title = %q, want %q", item.Title, "듄: 파트 2")
	}
	if item.StartDate == nil || *item.StartDate != "2025-03-01" {
		t.Errorf("startDate = %v, want 2025-03-01", item.StartDate)
	}
	if item.EndDate != nil {
		t.Errorf("endDate should be null, got %v", *item.EndDate)
	}
}

// TestEntryHandler_ListEntries_Unauthenticated は未認証アクセスが401になることを検証する。
func TestEntryHandler_ListEntries_Unauthenticated(t *testing.T) {
	router := newEntryTestRouter(&mockEntryService{}, "")

	req := httptest.NewRequest(http.MethodGet, "/api/entries", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}

	var body apiErrorResponse
	json.NewDecoder(w.Result().Body).Decode(&body)
	if body.Code != model.ErrCodeUnauthorized {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeUnauthorized)
	}
}

// TestEntryHandler_CreateEntry_Success は記録作成が201と作成結果を返すことを検証する。
func TestEntryHandler_CreateEntry_Success(t *testing.T) {
	var gotInput entry.CreateInput
	svc := &mockEntryService{
		createFn: func(ctx context.Context, userID string, input entry.CreateInput) (*model.EntryWithMedia, error) {
			gotInput = input
			return testEntryWithMedia("entry-new", userID), nil
		},
	}
	router := newEntryTestRouter(svc, "user-1")

	body := `{
		"title": "듄: 파트 2",
		"type": "movie",
		"status": "in-progress",
		"rating": 4.5,
		"moods": ["긴장감"],
		"startDate": "2025-03-01",
		"oneLineReview": "面白い",
		"detailedReview": "<p>すごい</p>",
		"posterUrl": "https://image.tmdb.org/t/p/w500/dune2.jpg",
		"metadata": {"director": "드니 빌뇌브"}
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/entries", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusCreated)
	}

	if gotInput.Title != "듄: 파트 2" || gotInput.Type != model.MediaTypeMovie {
		t.Errorf("title/type = %q/%q", gotInput.Title, gotInput.Type)
	}
	if gotInput.StartDate == nil || !gotInput.StartDate.Equal(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("startDate = %v, want 2025-03-01", gotInput.StartDate)
	}
	if gotInput.Metadata["director"] != "드니 빌뇌브" {
		t.Errorf("metadata director = %v", gotInput.Metadata["director"])
	}

	var resp entryResponse
	if err := json.NewDecoder(w.Result().Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if resp.ID != "entry-new" {
		t.Errorf("id = %q, want %q", resp.ID, "entry-new")
	}
}

// TestEntryHandler_CreateEntry_InvalidJSON は不正なボディが400になることを検証する。
func TestEntryHandler_CreateEntry_InvalidJSON(t *testing.T) {
	router := newEntryTestRouter(&mockEntryService{}, "user-1")

	req := httptest.NewRequest(http.MethodPost, "/api/entries", strings.NewReader("{invalid"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
	}
}

// TestEntryHandler_CreateEntry_InvalidDate は不正な日付形式が400になることを検証する。
func TestEntryHandler_CreateEntry_InvalidDate(t *testing.T) {
	router := newEntryTestRouter(&mockEntryService{}, "user-1")

	body := `{"title": "t", "type": "movie", "startDate": "03/01/2025"}`
	req := httptest.NewRequest(http.MethodPost, "/api/entries", strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
	}
}

// TestEntryHandler_CreateEntry_ServiceValidationError はサービス層の検証エラーが
// 400にマッピングされることを検証する。
func TestEntryHandler_CreateEntry_ServiceValidationError(t *testing.T) {
	svc := &mockEntryService{
		createFn: func(ctx context.Context, userID string, input entry.CreateInput) (*model.EntryWithMedia, error) {
			return nil, model.NewInvalidRatingError(4.3)
		},
	}
	router := newEntryTestRouter(svc, "user-1")

	req := httptest.NewRequest(http.MethodPost, "/api/entries", strings.NewReader(`{"title":"t","type":"movie","rating":4.3}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
	}

	var body apiErrorResponse
	json.NewDecoder(w.Result().Body).Decode(&body)
	if body.Code != model.ErrCodeInvalidRating {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeInvalidRating)
	}
}

// TestEntryHandler_UpdateEntry_Success は部分更新が更新後の記録を返すことを検証する。
func TestEntryHandler_UpdateEntry_Success(t *testing.T) {
	var gotEntryID string
	var gotInput entry.UpdateInput
	svc := &mockEntryService{
		updateFn: func(ctx context.Context, userID, entryID string, input entry.UpdateInput) (*model.EntryWithMedia, error) {
			gotEntryID = entryID
			gotInput = input
			return testEntryWithMedia(entryID, userID), nil
		},
	}
	router := newEntryTestRouter(svc, "user-1")

	body := `{"status": "completed", "rating": 5}`
	req := httptest.NewRequest(http.MethodPatch, "/api/entries/entry-42", strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
	if gotEntryID != "entry-42" {
		t.Errorf("entryID = %q, want %q", gotEntryID, "entry-42")
	}
	if gotInput.Status == nil || *gotInput.Status != model.EntryStatusCompleted {
		t.Errorf("status = %v, want completed", gotInput.Status)
	}
	if gotInput.Rating == nil || *gotInput.Rating != 5 {
		t.Errorf("rating = %v, want 5", gotInput.Rating)
	}
	if gotInput.OneLineReview != nil {
		t.Error("未指定のoneLineReviewはnilであるべき")
	}
}

// TestEntryHandler_UpdateEntry_NotFound は存在しない記録の更新が404になることを検証する。
func TestEntryHandler_UpdateEntry_NotFound(t *testing.T) {
	svc := &mockEntryService{
		updateFn: func(ctx context.Context, userID, entryID string, input entry.UpdateInput) (*model.EntryWithMedia, error) {
			return nil, model.NewEntryNotFoundError(entryID)
		},
	}
	router := newEntryTestRouter(svc, "user-1")

	req := httptest.NewRequest(http.MethodPatch, "/api/entries/nope", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusNotFound)
	}
}

// TestEntryHandler_DeleteEntry_Success は削除が204を返すことを検証する。
func TestEntryHandler_DeleteEntry_Success(t *testing.T) {
	var gotEntryID string
	svc := &mockEntryService{
		deleteFn: func(ctx context.Context, userID, entryID string) error {
			gotEntryID = entryID
			return nil
		},
	}
	router := newEntryTestRouter(svc, "user-1")

	req := httptest.NewRequest(http.MethodDelete, "/api/entries/entry-9", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusNoContent)
	}
	if gotEntryID != "entry-9" {
		t.Errorf("entryID = %q, want %q", gotEntryID, "entry-9")
	}
}

// TestEntryHandler_DeleteEntry_NotFound は存在しない記録の削除が404になることを検証する。
func TestEntryHandler_DeleteEntry_NotFound(t *testing.T) {
	svc := &mockEntryService{
		deleteFn: func(ctx context.Context, userID, entryID string) error {
			return model.NewEntryNotFoundError(entryID)
		},
	}
	router := newEntryTestRouter(svc, "user-1")

	req := httptest.NewRequest(http.MethodDelete, "/api/entries/nope", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusNotFound)
	}
}

// TestEntryHandler_GetStats_Success は集計値が正しいJSONで返ることを検証する。
func TestEntryHandler_GetStats_Success(t *testing.T) {
	var gotFilter string
	svc := &mockEntryService{
		statsFn: func(ctx context.Context, userID, typeFilter string) (*repository.EntryStats, error) {
			gotFilter = typeFilter
			return &repository.EntryStats{
				Total:      12,
				ThisMonth:  3,
				InProgress: 2,
				AvgRating:  4.2,
			}, nil
		},
	}
	router := newEntryTestRouter(svc, "user-1")

	req := httptest.NewRequest(http.MethodGet, "/api/stats?type=game", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
	if gotFilter != "game" {
		t.Errorf("typeFilter = %q, want %q", gotFilter, "game")
	}

	var body statsResponse
	if err := json.NewDecoder(w.Result().Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if body.Total != 12 || body.ThisMonth != 3 || body.InProgress != 2 || body.AvgRating != 4.2 {
		t.Errorf("unexpected stats: %+v", body)
	}
}

// TestEntryHandler_GetStats_InvalidType は不正な種別フィルタが400になることを検証する。
func TestEntryHandler_GetStats_InvalidType(t *testing.T) {
	svc := &mockEntryService{
		statsFn: func(ctx context.Context, userID, typeFilter string) (*repository.EntryStats, error) {
			return nil, model.NewInvalidMediaTypeError(typeFilter)
		},
	}
	router := newEntryTestRouter(svc, "user-1")

	req := httptest.NewRequest(http.MethodGet, "/api/stats?type=podcast", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
	}
}
