// Package enrich は選択された作品の詳細取得とムードタグ生成を束ねる。
package enrich

import (
	"context"
	"sync"

	"github.com/hitoshi/nua/internal/catalog"
	"github.com/hitoshi/nua/internal/tagging"
)

// Enrichment は詳細フィールドとAIタグをまとめた結果。
// あくまで提案であり、ユーザーは保存前に自由に編集・削除できる。
type Enrichment struct {
	Details map[string]any    `json:"details"`
	Tags    tagging.TagResult `json:"tags"`
}

// OrchestratorService は作品エンリッチのインターフェース。
type OrchestratorService interface {
	// Enrich は詳細取得とタグ生成を並行して実行し、結果をまとめて返す。
	// 2つの呼び出しに依存関係はなく、片方の失敗はもう片方を妨げない。
	// それぞれが独自の空・デフォルト形にフォールバックするため、常に
	// 構造的に妥当な結果が返る。
	Enrich(ctx context.Context, item catalog.ExternalItem) Enrichment
}

// Orchestrator はOrchestratorServiceの実装。
type Orchestrator struct {
	catalog catalog.CatalogService
	tags    tagging.TagGeneratorService
}

// NewOrchestrator はOrchestratorの新しいインスタンスを生成する。
func NewOrchestrator(catalogService catalog.CatalogService, tagService tagging.TagGeneratorService) *Orchestrator {
	return &Orchestrator{
		catalog: catalogService,
		tags:    tagService,
	}
}

// Enrich は詳細取得とタグ生成を並行して実行する。
func (o *Orchestrator) Enrich(ctx context.Context, item catalog.ExternalItem) Enrichment {
	var (
		wg      sync.WaitGroup
		details map[string]any
		tags    tagging.TagResult
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		details = o.catalog.FetchDetails(ctx, item)
	}()
	go func() {
		defer wg.Done()
		tags = o.tags.GenerateTags(ctx, item.Title, item.Overview)
	}()
	wg.Wait()

	if details == nil {
		details = map[string]any{}
	}
	return Enrichment{
		Details: details,
		Tags:    tags,
	}
}

// compile-time interface check
var _ OrchestratorService = (*Orchestrator)(nil)
