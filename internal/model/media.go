// Package model はドメインモデルを定義する。
package model

import "time"

// MediaType はメディアの種別を表す。
type MediaType string

const (
	// MediaTypeMovie は映画。
	MediaTypeMovie MediaType = "movie"
	// MediaTypeGame はゲーム。
	MediaTypeGame MediaType = "game"
	// MediaTypeBook は書籍。
	MediaTypeBook MediaType = "book"
)

// IsValid はメディア種別が定義済みの値かを返す。
func (t MediaType) IsValid() bool {
	switch t {
	case MediaTypeMovie, MediaTypeGame, MediaTypeBook:
		return true
	}
	return false
}

// MediaMetadata はユーザー間で共有される作品情報を表す。
// (title, type) の組で同一性を判定し、通常のユーザー操作では削除されない。
type MediaMetadata struct {
	ID        string
	Title     string
	Type      MediaType
	PosterURL string
	Overview  string
	// Metadata は種別ごとの付加情報を保持する。
	// 映画: director/cast、ゲーム: developer/publisher、書籍: author/categories 等。
	Metadata  map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
}
