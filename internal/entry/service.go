// Package entry は視聴・プレイ・読書記録のドメインロジックを提供する。
package entry

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/nua/internal/metrics"
	"github.com/hitoshi/nua/internal/model"
	"github.com/hitoshi/nua/internal/repository"
	"github.com/hitoshi/nua/internal/security"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// 変更イベントの種別。所有者のリアルタイム接続に配信される。
const (
	EventEntryCreated = "entry_created"
	EventEntryUpdated = "entry_updated"
	EventEntryDeleted = "entry_deleted"
)

// EventPublisher は記録の変更をリアルタイム配信する側のインターフェース。
// 配信はfire-and-forgetで、失敗しても記録操作には影響しない。
type EventPublisher interface {
	PublishEntryEvent(userID, eventType, entryID string)
}

// ListParams は記録一覧のクエリ条件。ハンドラーがクエリ文字列から組み立てる。
type ListParams struct {
	Search   string
	Type     string // 空または"all"で全種別
	Status   string // 空または"all"で全ステータス
	Sort     string // 空でupdated
	Page     int
	PageSize int
}

// ListResult は記録一覧と総件数をまとめた結果。
type ListResult struct {
	Items    []model.EntryWithMedia
	Total    int
	Page     int
	PageSize int
}

// CreateInput は記録作成の入力。
type CreateInput struct {
	Title          string
	Type           model.MediaType
	Status         model.EntryStatus
	Rating         float64
	Moods          []string
	StartDate      *time.Time
	EndDate        *time.Time
	OneLineReview  string
	DetailedReview string

	// 作品情報。同一(title, type)の既存作品がない場合に使用される。
	PosterURL string
	Overview  string
	Metadata  map[string]any
}

// UpdateInput は記録更新の入力。nilのフィールドは変更しない。
type UpdateInput struct {
	Status         *model.EntryStatus
	Rating         *float64
	Moods          []string
	StartDate      *time.Time
	EndDate        *time.Time
	OneLineReview  *string
	DetailedReview *string
}

// Service は記録管理のサービス層。
// 全操作が認証済みユーザーIDを必須とし、他ユーザーの記録には到達できない。
type Service struct {
	entryRepo repository.EntryRepository
	sanitizer security.ReviewSanitizerService
	publisher EventPublisher
	metrics   metrics.MetricsCollector
}

// NewService はServiceの新しいインスタンスを生成する。
// publisherはnilでもよく、その場合リアルタイム配信は行われない。
func NewService(
	entryRepo repository.EntryRepository,
	sanitizer security.ReviewSanitizerService,
	publisher EventPublisher,
	collector metrics.MetricsCollector,
) *Service {
	return &Service{
		entryRepo: entryRepo,
		sanitizer: sanitizer,
		publisher: publisher,
		metrics:   collector,
	}
}

// List はユーザーの記録一覧を作品情報付きで返す。
// 範囲外のページは空の結果を返し、エラーにはしない。
func (s *Service) List(ctx context.Context, userID string, params ListParams) (*ListResult, error) {
	if userID == "" {
		return nil, model.NewUnauthorizedError()
	}

	repoParams, err := normalizeListParams(params)
	if err != nil {
		return nil, err
	}

	items, total, err := s.entryRepo.List(ctx, userID, repoParams)
	if err != nil {
		return nil, fmt.Errorf("記録一覧の取得に失敗しました: %w", err)
	}

	return &ListResult{
		Items:    items,
		Total:    total,
		Page:     repoParams.Page,
		PageSize: repoParams.PageSize,
	}, nil
}

// Create は記録を作成する。作品は(title, type)の完全一致で既存を再利用し、
// なければ新規作成する。
func (s *Service) Create(ctx context.Context, userID string, input CreateInput) (*model.EntryWithMedia, error) {
	if userID == "" {
		return nil, model.NewUnauthorizedError()
	}
	if input.Title == "" {
		return nil, model.NewTitleRequiredError()
	}
	if !input.Type.IsValid() {
		return nil, model.NewInvalidMediaTypeError(string(input.Type))
	}

	status := input.Status
	if status == "" {
		status = model.EntryStatusWishlist
	}
	if !status.IsValid() {
		return nil, model.NewInvalidStatusError(string(input.Status))
	}
	if err := validateRating(input.Rating); err != nil {
		return nil, err
	}

	moods := input.Moods
	if moods == nil {
		moods = []string{}
	}

	now := time.Now()
	entry := &model.Entry{
		ID:             uuid.NewString(),
		UserID:         userID,
		Status:         status,
		Rating:         input.Rating,
		Moods:          moods,
		StartDate:      input.StartDate,
		EndDate:        input.EndDate,
		OneLineReview:  input.OneLineReview,
		DetailedReview: s.sanitizer.Sanitize(input.DetailedReview),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	media := &model.MediaMetadata{
		ID:        uuid.NewString(),
		Title:     input.Title,
		Type:      input.Type,
		PosterURL: input.PosterURL,
		Overview:  input.Overview,
		Metadata:  input.Metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.entryRepo.CreateWithMedia(ctx, entry, media); err != nil {
		return nil, fmt.Errorf("記録の作成に失敗しました: %w", err)
	}

	created, err := s.entryRepo.FindByIDForUser(ctx, userID, entry.ID)
	if err != nil {
		return nil, fmt.Errorf("作成した記録の取得に失敗しました: %w", err)
	}
	if created == nil {
		return nil, model.NewEntryNotFoundError(entry.ID)
	}

	s.metrics.RecordEntryCreated(string(input.Type))
	s.publish(userID, EventEntryCreated, entry.ID)
	return created, nil
}

// Update はユーザー所有の記録を更新する。
// ステータスがcompletedに変わる場合、クライアント指定に関わらず
// 終了日をサーバー側の当日に設定する。
func (s *Service) Update(ctx context.Context, userID, entryID string, input UpdateInput) (*model.EntryWithMedia, error) {
	if userID == "" {
		return nil, model.NewUnauthorizedError()
	}

	existing, err := s.entryRepo.FindByIDForUser(ctx, userID, entryID)
	if err != nil {
		return nil, fmt.Errorf("記録の取得に失敗しました: %w", err)
	}
	if existing == nil {
		return nil, model.NewEntryNotFoundError(entryID)
	}

	entry := existing.Entry

	if input.Status != nil {
		if !input.Status.IsValid() {
			return nil, model.NewInvalidStatusError(string(*input.Status))
		}
		entry.Status = *input.Status
	}
	if input.Rating != nil {
		if err := validateRating(*input.Rating); err != nil {
			return nil, err
		}
		entry.Rating = *input.Rating
	}
	if input.Moods != nil {
		entry.Moods = input.Moods
	}
	if input.StartDate != nil {
		entry.StartDate = input.StartDate
	}
	if input.EndDate != nil {
		entry.EndDate = input.EndDate
	}
	if input.OneLineReview != nil {
		entry.OneLineReview = *input.OneLineReview
	}
	if input.DetailedReview != nil {
		entry.DetailedReview = s.sanitizer.Sanitize(*input.DetailedReview)
	}

	// completedへの遷移は終了日を当日で上書きする。クライアント指定より優先。
	if input.Status != nil && *input.Status == model.EntryStatusCompleted {
		today := time.Now()
		entry.EndDate = &today
	}

	entry.UpdatedAt = time.Now()

	rows, err := s.entryRepo.Update(ctx, &entry)
	if err != nil {
		return nil, fmt.Errorf("記録の更新に失敗しました: %w", err)
	}
	if rows == 0 {
		return nil, model.NewEntryNotFoundError(entryID)
	}

	updated, err := s.entryRepo.FindByIDForUser(ctx, userID, entryID)
	if err != nil {
		return nil, fmt.Errorf("更新した記録の取得に失敗しました: %w", err)
	}
	if updated == nil {
		return nil, model.NewEntryNotFoundError(entryID)
	}

	s.publish(userID, EventEntryUpdated, entryID)
	return updated, nil
}

// Delete はユーザー所有の記録を削除する。共有の作品情報は残る。
// 他ユーザー所有の記録への削除は「見つからない」として扱われる。
func (s *Service) Delete(ctx context.Context, userID, entryID string) error {
	if userID == "" {
		return model.NewUnauthorizedError()
	}

	rows, err := s.entryRepo.Delete(ctx, userID, entryID)
	if err != nil {
		return fmt.Errorf("記録の削除に失敗しました: %w", err)
	}
	if rows == 0 {
		return model.NewEntryNotFoundError(entryID)
	}

	s.publish(userID, EventEntryDeleted, entryID)
	return nil
}

// Stats はユーザーの記録の集計値を返す。
func (s *Service) Stats(ctx context.Context, userID, typeFilter string) (*repository.EntryStats, error) {
	if userID == "" {
		return nil, model.NewUnauthorizedError()
	}

	var mediaType model.MediaType
	if typeFilter != "" && typeFilter != "all" {
		mediaType = model.MediaType(typeFilter)
		if !mediaType.IsValid() {
			return nil, model.NewInvalidMediaTypeError(typeFilter)
		}
	}

	stats, err := s.entryRepo.Stats(ctx, userID, mediaType)
	if err != nil {
		return nil, fmt.Errorf("集計値の取得に失敗しました: %w", err)
	}
	return stats, nil
}

func (s *Service) publish(userID, eventType, entryID string) {
	if s.publisher != nil {
		s.publisher.PublishEntryEvent(userID, eventType, entryID)
	}
}

// normalizeListParams はクエリ条件を検証し、リポジトリ用の形式に変換する。
func normalizeListParams(params ListParams) (repository.EntryListParams, error) {
	result := repository.EntryListParams{
		Search:   params.Search,
		Sort:     model.EntrySortUpdated,
		Page:     params.Page,
		PageSize: params.PageSize,
	}

	if params.Type != "" && params.Type != "all" {
		mediaType := model.MediaType(params.Type)
		if !mediaType.IsValid() {
			return result, model.NewInvalidMediaTypeError(params.Type)
		}
		result.Type = mediaType
	}

	if params.Status != "" && params.Status != "all" {
		status := model.EntryStatus(params.Status)
		if !status.IsValid() {
			return result, model.NewInvalidStatusError(params.Status)
		}
		result.Status = status
	}

	if params.Sort != "" {
		sort := model.EntrySortKey(params.Sort)
		if !sort.IsValid() {
			return result, model.NewInvalidSortKeyError(params.Sort)
		}
		result.Sort = sort
	}

	if result.Page < 1 {
		result.Page = 1
	}
	if result.PageSize < 1 {
		result.PageSize = defaultPageSize
	}
	if result.PageSize > maxPageSize {
		result.PageSize = maxPageSize
	}

	return result, nil
}

// validateRating は評価が0から5の範囲で0.5刻みであることを検証する。
func validateRating(rating float64) error {
	if rating < 0 || rating > 5 {
		return model.NewInvalidRatingError(rating)
	}
	doubled := rating * 2
	if doubled != math.Trunc(doubled) {
		return model.NewInvalidRatingError(rating)
	}
	return nil
}
