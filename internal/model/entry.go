// Package model はドメインモデルを定義する。
package model

import "time"

// Entry はユーザーと作品の関係（視聴・プレイ・読書の記録）を表す。
// 1ユーザー×1作品につき1件が想定された利用パターンだが、
// 一意性はルックアップ後INSERTの経路以外では強制されない。
type Entry struct {
	ID             string
	UserID         string
	MediaID        string
	Status         EntryStatus
	Rating         float64 // 0〜5の0.5刻み。0は未評価を表す。
	Moods          []string
	StartDate      *time.Time
	EndDate        *time.Time
	OneLineReview  string
	DetailedReview string // サニタイズ済みHTML
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// EntryWithMedia はエントリーと共有作品情報を結合したモデル。
// user_logsとmedia_itemsをJOINして取得される。
type EntryWithMedia struct {
	Entry
	Media MediaMetadata
}

// EntryStatus はエントリーの状態を表す。
type EntryStatus string

const (
	// EntryStatusWishlist は「積み」状態。
	EntryStatusWishlist EntryStatus = "wishlist"
	// EntryStatusInProgress は進行中の状態。
	EntryStatusInProgress EntryStatus = "in-progress"
	// EntryStatusCompleted は完了した状態。
	EntryStatusCompleted EntryStatus = "completed"
)

// IsValid はエントリー状態が定義済みの値かを返す。
func (s EntryStatus) IsValid() bool {
	switch s {
	case EntryStatusWishlist, EntryStatusInProgress, EntryStatusCompleted:
		return true
	}
	return false
}

// EntrySortKey は一覧のソート順を表す。
type EntrySortKey string

const (
	// EntrySortUpdated は更新日時の降順（デフォルト）。
	EntrySortUpdated EntrySortKey = "updated"
	// EntrySortRating は評価の降順。
	EntrySortRating EntrySortKey = "rating"
	// EntrySortTitle は作品タイトルの昇順。
	EntrySortTitle EntrySortKey = "title"
)

// IsValid はソートキーが定義済みの値かを返す。
func (k EntrySortKey) IsValid() bool {
	switch k {
	case EntrySortUpdated, EntrySortRating, EntrySortTitle:
		return true
	}
	return false
}
