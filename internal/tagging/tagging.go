// Package tagging はAIモデルによるムードタグとテーマカラーの生成を提供する。
// 生成は常に構造的に妥当な結果を返し、いかなる失敗でもデフォルト値に
// フォールバックする。呼び出し元がエラーを観測することはない。
package tagging

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/nua/internal/metrics"
)

// DefaultThemeColor はタグ生成失敗時に使用する固定のアクセントカラー。
const DefaultThemeColor = "#a855f7"

// overviewMaxChars はプロンプトに含めるあらすじの最大文字数。
// プロンプトサイズの抑制と過剰な内容の混入防止のため切り詰める。
const overviewMaxChars = 300

// TagResult はムードタグ生成の結果を表す。
type TagResult struct {
	Moods      []string `json:"moods"`
	ThemeColor string   `json:"themeColor"`
}

// DefaultTagResult はフォールバック用のデフォルト結果を返す。
func DefaultTagResult() TagResult {
	return TagResult{Moods: []string{}, ThemeColor: DefaultThemeColor}
}

// TagGeneratorService はムードタグ生成のインターフェース。
type TagGeneratorService interface {
	// GenerateTags は作品のタイトルとあらすじからムードタグとテーマカラーを生成する。
	// APIキー未設定、ネットワークエラー、不正なモデル出力のいずれでも
	// デフォルト結果を返し、エラーは返さない。キャッシュもリトライもしない。
	GenerateTags(ctx context.Context, title, overview string) TagResult
}

// Generator はTagGeneratorServiceの実装。
type Generator struct {
	client  *GeminiClient
	logger  *slog.Logger
	metrics metrics.MetricsCollector
}

// NewGenerator はGeneratorの新しいインスタンスを生成する。
func NewGenerator(client *GeminiClient, logger *slog.Logger, collector metrics.MetricsCollector) *Generator {
	return &Generator{
		client:  client,
		logger:  logger,
		metrics: collector,
	}
}

// GenerateTags は作品のタイトルとあらすじからムードタグとテーマカラーを生成する。
func (g *Generator) GenerateTags(ctx context.Context, title, overview string) TagResult {
	if !g.client.HasKey() {
		g.logger.Warn("AIモデルのAPIキーが未設定のためタグ生成をスキップします")
		g.metrics.RecordTagFallback("missing_key")
		return DefaultTagResult()
	}

	prompt := buildPrompt(title, overview)

	text, err := g.client.GenerateContent(ctx, prompt)
	if err != nil {
		g.logger.Error("AIモデルの呼び出しに失敗しました",
			slog.String("title", title),
			slog.String("error", err.Error()),
		)
		g.metrics.RecordTagFallback("request_error")
		return DefaultTagResult()
	}

	result, err := ParseTagResponse(text)
	if err != nil {
		g.logger.Error("AIモデルの応答のパースに失敗しました",
			slog.String("title", title),
			slog.String("error", err.Error()),
		)
		g.metrics.RecordTagFallback("parse_error")
		return DefaultTagResult()
	}

	g.metrics.RecordTagSuccess()
	return result
}

// buildPrompt はタグ生成用の固定プロンプトを組み立てる。
// タイトルとあらすじが矛盾する場合はあらすじを優先してタグを導出するよう指示する。
func buildPrompt(title, overview string) string {
	truncated := truncateRunes(overview, overviewMaxChars)
	if truncated == "" {
		return fmt.Sprintf(`Analyze the title %q.

Generate 5 mood tags in Korean noun form (e.g., "어두움", "몽환", "빠른 전개") and a hex theme color code that fits the vibe.

Return ONLY a JSON object with this format:
{
  "moods": ["tag1", "tag2", "tag3", "tag4", "tag5"],
  "themeColor": "#hexcode"
}
Do not include markdown formatting or explanations.`, title)
	}
	return fmt.Sprintf(`Analyze the media item %q with description: %q.
Derive the tags from the description rather than the literal title when they conflict.

Generate 5 mood tags in Korean noun form (e.g., "어두움", "몽환", "빠른 전개") and a hex theme color code that fits the vibe.

Return ONLY a JSON object with this format:
{
  "moods": ["tag1", "tag2", "tag3", "tag4", "tag5"],
  "themeColor": "#hexcode"
}
Do not include markdown formatting or explanations.`, title, truncated)
}

// truncateRunes は文字列を先頭からn文字（rune単位）に切り詰める。
func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// compile-time interface check
var _ TagGeneratorService = (*Generator)(nil)
