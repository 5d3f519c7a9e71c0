package tagging

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseTagResponse はモデルの生テキスト応答をTagResultにパースする。
// コードフェンス（言語ヒント付き三連バッククォート）を除去してから
// JSONとしてデコードする。純粋関数であり、失敗時のフォールバック判断は
// 呼び出し元が行う。
func ParseTagResponse(text string) (TagResult, error) {
	cleaned := stripCodeFences(text)

	var raw struct {
		Moods      []string `json:"moods"`
		ThemeColor string   `json:"themeColor"`
	}
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return TagResult{}, fmt.Errorf("応答JSONのパースに失敗しました: %w", err)
	}

	result := TagResult{
		Moods:      raw.Moods,
		ThemeColor: raw.ThemeColor,
	}
	// 欠落フィールドは構造的に妥当な値で補完する
	if result.Moods == nil {
		result.Moods = []string{}
	}
	if result.ThemeColor == "" {
		result.ThemeColor = DefaultThemeColor
	}
	return result, nil
}

// stripCodeFences はモデルが付与しがちなマークダウンのコードフェンスを除去する。
func stripCodeFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}
