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
	"strings"

	"github.com/hitoshi/nua/internal/model"
)

// googleBooksDefaultEndpoint は書籍カタログAPIのベースURL。
const googleBooksDefaultEndpoint = "https://www.googleapis.com/books/v1"

// GoogleBooksClient は書籍カタログAPIのクライアント。
// APIキーは任意で、未設定でも検索できる。
type GoogleBooksClient struct {
	httpClient *http.Client
	logger     *slog.Logger
	apiKey     string
	endpoint   string // テスト用にエンドポイントを差し替え可能
}

// NewGoogleBooksClient はGoogleBooksClientの新しいインスタンスを生成する。
func NewGoogleBooksClient(httpClient *http.Client, logger *slog.Logger, apiKey string) *GoogleBooksClient {
	return &GoogleBooksClient{
		httpClient: httpClient,
		logger:     logger,
		apiKey:     apiKey,
		endpoint:   googleBooksDefaultEndpoint,
	}
}

// SearchVolumes は書籍をタイトルで検索し、正規化した結果を返す。
// 著者・出版社・カテゴリも検索時点で取得し、詳細取得に引き継ぐ。
func (c *GoogleBooksClient) SearchVolumes(ctx context.Context, query string) ([]ExternalItem, error) {
	reqURL, err := url.Parse(c.endpoint + "/volumes")
	if err != nil {
		return nil, fmt.Errorf("エンドポイントURLのパースに失敗しました: %w", err)
	}
	q := reqURL.Query()
	q.Set("q", query)
	q.Set("maxResults", strconv.Itoa(maxSearchResults))
	if c.apiKey != "" {
		q.Set("key", c.apiKey)
	}
	reqURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("書籍カタログAPIがステータス %d を返しました", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	var result struct {
		Items []struct {
			ID         string `json:"id"`
			VolumeInfo struct {
				Title         string   `json:"title"`
				PublishedDate string   `json:"publishedDate"`
				Description   string   `json:"description"`
				Authors       []string `json:"authors"`
				Publisher     string   `json:"publisher"`
				Categories    []string `json:"categories"`
				ImageLinks    struct {
					Thumbnail string `json:"thumbnail"`
				} `json:"imageLinks"`
			} `json:"volumeInfo"`
		} `json:"items"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}

	items := make([]ExternalItem, 0, len(result.Items))
	for _, r := range result.Items {
		items = append(items, ExternalItem{
			ID:         r.ID,
			Title:      r.VolumeInfo.Title,
			Type:       model.MediaTypeBook,
			Year:       yearFromDate(r.VolumeInfo.PublishedDate),
			PosterURL:  upgradeThumbnailScheme(r.VolumeInfo.ImageLinks.Thumbnail),
			Overview:   r.VolumeInfo.Description,
			Authors:    r.VolumeInfo.Authors,
			Publisher:  r.VolumeInfo.Publisher,
			Categories: r.VolumeInfo.Categories,
		})
	}
	return items, nil
}

// upgradeThumbnailScheme はhttp:スキームのサムネイルURLをhttps:に昇格する。
// 書籍カタログAPIはhttp:のURLを返すことがある。
func upgradeThumbnailScheme(thumbnail string) string {
	if strings.HasPrefix(thumbnail, "http:") {
		return "https:" + strings.TrimPrefix(thumbnail, "http:")
	}
	return thumbnail
}
