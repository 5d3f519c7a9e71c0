// Package catalog は外部カタログプロバイダーを横断する検索と詳細取得を提供する。
// 映画、ゲーム、書籍の3プロバイダーを種別ごとに1つだけ呼び分け、
// 結果を正規化した共通形式に変換する。
package catalog

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/nua/internal/metrics"
	"github.com/hitoshi/nua/internal/model"
)

// maxSearchResults は1回の検索で返す正規化アイテムの最大数。
const maxSearchResults = 5

// minQueryLength は検索クエリの最小文字数。
// 入力途中のキーストロークによる無駄なAPI呼び出しを避ける。
const minQueryLength = 2

// プロバイダー名。メトリクスのラベルとログに使用する。
const (
	providerTMDB        = "tmdb"
	providerRAWG        = "rawg"
	providerGoogleBooks = "googlebooks"
)

// ExternalItem は外部カタログの検索結果を正規化した形式。
// 永続化はされず、検索から選択までの間だけ存在する。
type ExternalItem struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	Type      model.MediaType `json:"type"`
	Year      string          `json:"year,omitempty"`
	PosterURL string          `json:"posterUrl,omitempty"`
	Overview  string          `json:"overview,omitempty"`

	// 書籍のみ。検索時点で取得済みのフィールドを詳細取得に引き継ぐ。
	Authors    []string `json:"authors,omitempty"`
	Publisher  string   `json:"publisher,omitempty"`
	Categories []string `json:"categories,omitempty"`
}

// CatalogService はカタログ検索と詳細取得のインターフェース。
type CatalogService interface {
	// Search は種別に応じたプロバイダーで作品を検索し、正規化した結果を返す（最大5件）。
	// 2文字未満のクエリはプロバイダーを呼ばずに空スライスを返す。
	// APIキー未設定、ネットワークエラー、パースエラーはすべて空スライスになり、
	// エラーは呼び出し元に伝播しない（ログとメトリクスにのみ記録する）。
	Search(ctx context.Context, query string, mediaType model.MediaType) []ExternalItem

	// FetchDetails は選択されたアイテムのプロバイダー固有の詳細フィールドを返す。
	// 映画はクレジット、ゲームは詳細エンドポイントを呼ぶ。書籍はネットワークを
	// 呼ばず検索時のフィールドをそのまま返す。失敗時は空マップを返す。
	FetchDetails(ctx context.Context, item ExternalItem) map[string]any
}

// Adapter はCatalogServiceの実装。種別ごとに1つのプロバイダークライアントへ委譲する。
type Adapter struct {
	tmdb    *TMDBClient
	rawg    *RAWGClient
	books   *GoogleBooksClient
	logger  *slog.Logger
	metrics metrics.MetricsCollector
}

// NewAdapter はAdapterの新しいインスタンスを生成する。
func NewAdapter(tmdb *TMDBClient, rawg *RAWGClient, books *GoogleBooksClient, logger *slog.Logger, collector metrics.MetricsCollector) *Adapter {
	return &Adapter{
		tmdb:    tmdb,
		rawg:    rawg,
		books:   books,
		logger:  logger,
		metrics: collector,
	}
}

// Search は種別に応じたプロバイダーで作品を検索する。
func (a *Adapter) Search(ctx context.Context, query string, mediaType model.MediaType) []ExternalItem {
	if len([]rune(query)) < minQueryLength {
		return []ExternalItem{}
	}

	var (
		provider string
		items    []ExternalItem
		err      error
	)

	start := time.Now()
	switch mediaType {
	case model.MediaTypeMovie:
		provider = providerTMDB
		if !a.tmdb.HasKey() {
			a.recordMissingKey(provider)
			return []ExternalItem{}
		}
		items, err = a.tmdb.SearchMovies(ctx, query)
	case model.MediaTypeGame:
		provider = providerRAWG
		if !a.rawg.HasKey() {
			a.recordMissingKey(provider)
			return []ExternalItem{}
		}
		items, err = a.rawg.SearchGames(ctx, query)
	case model.MediaTypeBook:
		// 書籍プロバイダーはAPIキーなしでも検索可能
		provider = providerGoogleBooks
		items, err = a.books.SearchVolumes(ctx, query)
	default:
		return []ExternalItem{}
	}
	a.metrics.RecordProviderLatency(provider, time.Since(start))

	if err != nil {
		a.logger.Error("カタログ検索に失敗しました",
			slog.String("provider", provider),
			slog.String("query", query),
			slog.String("error", err.Error()),
		)
		a.metrics.RecordSearchFailure(provider, "request_error")
		return []ExternalItem{}
	}

	a.metrics.RecordSearchSuccess(provider)
	if len(items) > maxSearchResults {
		items = items[:maxSearchResults]
	}
	return items
}

// FetchDetails は選択されたアイテムのプロバイダー固有の詳細を取得する。
func (a *Adapter) FetchDetails(ctx context.Context, item ExternalItem) map[string]any {
	switch item.Type {
	case model.MediaTypeMovie:
		if !a.tmdb.HasKey() {
			return map[string]any{}
		}
		start := time.Now()
		details, err := a.tmdb.FetchCredits(ctx, item.ID)
		a.metrics.RecordProviderLatency(providerTMDB, time.Since(start))
		if err != nil {
			a.logger.Error("映画詳細の取得に失敗しました",
				slog.String("id", item.ID),
				slog.String("error", err.Error()),
			)
			a.metrics.RecordSearchFailure(providerTMDB, "detail_error")
			return map[string]any{}
		}
		return details
	case model.MediaTypeGame:
		if !a.rawg.HasKey() {
			return map[string]any{}
		}
		start := time.Now()
		details, err := a.rawg.FetchGameDetails(ctx, item.ID)
		a.metrics.RecordProviderLatency(providerRAWG, time.Since(start))
		if err != nil {
			a.logger.Error("ゲーム詳細の取得に失敗しました",
				slog.String("id", item.ID),
				slog.String("error", err.Error()),
			)
			a.metrics.RecordSearchFailure(providerRAWG, "detail_error")
			return map[string]any{}
		}
		return details
	case model.MediaTypeBook:
		// 検索時点で全フィールドが取得済みのためネットワークは呼ばない
		details := map[string]any{}
		if len(item.Authors) > 0 {
			details["author"] = item.Authors
		}
		if item.Publisher != "" {
			details["publisher"] = item.Publisher
		}
		if len(item.Categories) > 0 {
			details["categories"] = item.Categories
		}
		return details
	default:
		return map[string]any{}
	}
}

func (a *Adapter) recordMissingKey(provider string) {
	a.logger.Warn("プロバイダーのAPIキーが未設定のため検索をスキップします",
		slog.String("provider", provider),
	)
	a.metrics.RecordSearchFailure(provider, "missing_key")
}

// yearFromDate は日付文字列の先頭4文字を年として切り出す。
// 4文字未満の場合は空文字列を返す。
func yearFromDate(date string) string {
	if len(date) < 4 {
		return ""
	}
	return date[:4]
}

// compile-time interface check
var _ CatalogService = (*Adapter)(nil)
