package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/hitoshi/nua/internal/model"
)

// rawgDefaultEndpoint はゲームカタログAPIのベースURL。
const rawgDefaultEndpoint = "https://api.rawg.io/api"

// RAWGClient はゲームカタログAPIのクライアント。
// 検索エンドポイントは開発元・販売元を含まないため、それらが必要な場合は
// 詳細エンドポイントを別途呼ぶ。2つのエンドポイントは独立した失敗ドメイン。
type RAWGClient struct {
	httpClient *http.Client
	logger     *slog.Logger
	apiKey     string
	endpoint   string // テスト用にエンドポイントを差し替え可能
}

// NewRAWGClient はRAWGClientの新しいインスタンスを生成する。
func NewRAWGClient(httpClient *http.Client, logger *slog.Logger, apiKey string) *RAWGClient {
	return &RAWGClient{
		httpClient: httpClient,
		logger:     logger,
		apiKey:     apiKey,
		endpoint:   rawgDefaultEndpoint,
	}
}

// HasKey はAPIキーが設定されているかを返す。
func (c *RAWGClient) HasKey() bool {
	return c.apiKey != ""
}

// SearchGames はゲームをタイトルで検索し、正規化した結果を返す。
func (c *RAWGClient) SearchGames(ctx context.Context, query string) ([]ExternalItem, error) {
	reqURL, err := url.Parse(c.endpoint + "/games")
	if err != nil {
		return nil, fmt.Errorf("エンドポイントURLのパースに失敗しました: %w", err)
	}
	q := reqURL.Query()
	q.Set("key", c.apiKey)
	q.Set("search", query)
	q.Set("page_size", strconv.Itoa(maxSearchResults))
	reqURL.RawQuery = q.Encode()

	body, err := c.get(ctx, reqURL.String())
	if err != nil {
		return nil, err
	}

	var result struct {
		Results []struct {
			ID              int    `json:"id"`
			Name            string `json:"name"`
			Released        string `json:"released"`
			BackgroundImage string `json:"background_image"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}

	items := make([]ExternalItem, 0, len(result.Results))
	for _, r := range result.Results {
		items = append(items, ExternalItem{
			ID:        strconv.Itoa(r.ID),
			Title:     r.Name,
			Type:      model.MediaTypeGame,
			Year:      yearFromDate(r.Released),
			PosterURL: r.BackgroundImage,
		})
	}
	return items, nil
}

// FetchGameDetails はゲームの詳細エンドポイントから開発元・販売元・ジャンル・
// プラットフォームを取得する。
func (c *RAWGClient) FetchGameDetails(ctx context.Context, id string) (map[string]any, error) {
	reqURL, err := url.Parse(c.endpoint + "/games/" + url.PathEscape(id))
	if err != nil {
		return nil, fmt.Errorf("エンドポイントURLのパースに失敗しました: %w", err)
	}
	q := reqURL.Query()
	q.Set("key", c.apiKey)
	reqURL.RawQuery = q.Encode()

	body, err := c.get(ctx, reqURL.String())
	if err != nil {
		return nil, err
	}

	var result struct {
		Released   string `json:"released"`
		Developers []struct {
			Name string `json:"name"`
		} `json:"developers"`
		Publishers []struct {
			Name string `json:"name"`
		} `json:"publishers"`
		Genres []struct {
			Name string `json:"name"`
		} `json:"genres"`
		Platforms []struct {
			Platform struct {
				Name string `json:"name"`
			} `json:"platform"`
		} `json:"platforms"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}

	details := map[string]any{}
	if len(result.Developers) > 0 {
		details["developer"] = result.Developers[0].Name
	}
	if len(result.Publishers) > 0 {
		details["publisher"] = result.Publishers[0].Name
	}
	if len(result.Genres) > 0 {
		genres := make([]string, 0, len(result.Genres))
		for _, g := range result.Genres {
			genres = append(genres, g.Name)
		}
		details["genres"] = genres
	}
	if len(result.Platforms) > 0 {
		platforms := make([]string, 0, len(result.Platforms))
		for _, p := range result.Platforms {
			platforms = append(platforms, p.Platform.Name)
		}
		details["platforms"] = platforms
	}
	if result.Released != "" {
		details["released"] = result.Released
	}
	return details, nil
}

func (c *RAWGClient) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ゲームカタログAPIがステータス %d を返しました", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}
	return body, nil
}
