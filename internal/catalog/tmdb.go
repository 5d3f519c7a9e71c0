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

const (
	// tmdbDefaultEndpoint は映画カタログAPIのベースURL。
	tmdbDefaultEndpoint = "https://api.themoviedb.org/3"
	// tmdbPosterBaseURL はポスター画像URLのプレフィックス（幅500px）。
	tmdbPosterBaseURL = "https://image.tmdb.org/t/p/w500"
	// tmdbLanguage はレスポンスの言語指定。
	tmdbLanguage = "ko-KR"
	// tmdbMaxCast は詳細取得で返すキャストの最大人数。
	tmdbMaxCast = 5
)

// TMDBClient は映画カタログAPIのクライアント。
type TMDBClient struct {
	httpClient *http.Client
	logger     *slog.Logger
	apiKey     string
	endpoint   string // テスト用にエンドポイントを差し替え可能
}

// NewTMDBClient はTMDBClientの新しいインスタンスを生成する。
func NewTMDBClient(httpClient *http.Client, logger *slog.Logger, apiKey string) *TMDBClient {
	return &TMDBClient{
		httpClient: httpClient,
		logger:     logger,
		apiKey:     apiKey,
		endpoint:   tmdbDefaultEndpoint,
	}
}

// HasKey はAPIキーが設定されているかを返す。
func (c *TMDBClient) HasKey() bool {
	return c.apiKey != ""
}

// SearchMovies は映画をタイトルで検索し、正規化した結果を返す。
func (c *TMDBClient) SearchMovies(ctx context.Context, query string) ([]ExternalItem, error) {
	reqURL, err := url.Parse(c.endpoint + "/search/movie")
	if err != nil {
		return nil, fmt.Errorf("エンドポイントURLのパースに失敗しました: %w", err)
	}
	q := reqURL.Query()
	q.Set("api_key", c.apiKey)
	q.Set("query", query)
	q.Set("language", tmdbLanguage)
	q.Set("page", "1")
	reqURL.RawQuery = q.Encode()

	body, err := c.get(ctx, reqURL.String())
	if err != nil {
		return nil, err
	}

	var result struct {
		Results []struct {
			ID          int    `json:"id"`
			Title       string `json:"title"`
			ReleaseDate string `json:"release_date"`
			PosterPath  string `json:"poster_path"`
			Overview    string `json:"overview"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}

	items := make([]ExternalItem, 0, len(result.Results))
	for _, r := range result.Results {
		item := ExternalItem{
			ID:       strconv.Itoa(r.ID),
			Title:    r.Title,
			Type:     model.MediaTypeMovie,
			Year:     yearFromDate(r.ReleaseDate),
			Overview: r.Overview,
		}
		// ポスターパスがある場合のみフルURLを構築する
		if r.PosterPath != "" {
			item.PosterURL = tmdbPosterBaseURL + r.PosterPath
		}
		items = append(items, item)
	}
	return items, nil
}

// FetchCredits は映画のクレジット情報から監督と主要キャストを取得する。
// 監督はcrewのjob=="Director"の人物、キャストは先頭5名まで。
func (c *TMDBClient) FetchCredits(ctx context.Context, id string) (map[string]any, error) {
	reqURL, err := url.Parse(c.endpoint + "/movie/" + url.PathEscape(id) + "/credits")
	if err != nil {
		return nil, fmt.Errorf("エンドポイントURLのパースに失敗しました: %w", err)
	}
	q := reqURL.Query()
	q.Set("api_key", c.apiKey)
	q.Set("language", tmdbLanguage)
	reqURL.RawQuery = q.Encode()

	body, err := c.get(ctx, reqURL.String())
	if err != nil {
		return nil, err
	}

	var result struct {
		Crew []struct {
			Job  string `json:"job"`
			Name string `json:"name"`
		} `json:"crew"`
		Cast []struct {
			Name string `json:"name"`
		} `json:"cast"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}

	details := map[string]any{}
	for _, member := range result.Crew {
		if member.Job == "Director" {
			details["director"] = member.Name
			break
		}
	}
	if len(result.Cast) > 0 {
		limit := len(result.Cast)
		if limit > tmdbMaxCast {
			limit = tmdbMaxCast
		}
		cast := make([]string, 0, limit)
		for _, member := range result.Cast[:limit] {
			cast = append(cast, member.Name)
		}
		details["cast"] = cast
	}
	return details, nil
}

func (c *TMDBClient) get(ctx context.Context, rawURL string) ([]byte, error) {
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
		return nil, fmt.Errorf("映画カタログAPIがステータス %d を返しました", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}
	return body, nil
}
