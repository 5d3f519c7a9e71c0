// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/nua/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// CreateWithIdentity はユーザーとidentityを同一トランザクションで作成する。
	CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error

	// DeleteByID は指定IDのユーザーを削除する。
	// 関連するidentities、sessions、user_logsはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// IdentityRepository は外部IdP紐付け情報の永続化インターフェース。
type IdentityRepository interface {
	// FindByProviderAndProviderUserID はproviderとprovider_user_idでidentityを検索する。
	// 見つからない場合はnilを返す。
	FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// EntryListParams は記録一覧のクエリ条件を表す。
type EntryListParams struct {
	Search   string             // 作品タイトルの部分一致（大文字小文字無視）。空なら条件なし。
	Type     model.MediaType    // 空なら全種別。
	Status   model.EntryStatus  // 空なら全ステータス。
	Sort     model.EntrySortKey // ソート順。
	Page     int                // 1始まりのページ番号。
	PageSize int                // 1ページあたりの件数。
}

// EntryStats は記録の集計値を表す。
type EntryStats struct {
	Total      int     // 全記録数
	ThisMonth  int     // 今月作成された記録数
	InProgress int     // 進行中の記録数
	AvgRating  float64 // rating > 0 の記録の平均評価（小数第1位で丸め）
}

// EntryRepository はユーザーごとの記録の永続化インターフェース。
// 全操作がuser_idで絞り込まれ、他ユーザーの行には到達できない。
type EntryRepository interface {
	// CreateWithMedia は作品の解決（(title, type)一致 or 新規作成）と
	// 記録の作成を同一トランザクションで行う。
	// entry.MediaIDが空の場合はタイトル一致で既存作品を探し、なければ
	// media.IDのIDで新規作成する。呼び出し後、media.IDとentry.MediaIDには
	// 解決済みのIDが入る。
	CreateWithMedia(ctx context.Context, entry *model.Entry, media *model.MediaMetadata) error

	// FindByIDForUser はユーザー所有の記録を作品情報付きで取得する。
	// 見つからない場合（他ユーザー所有を含む）はnilを返す。
	FindByIDForUser(ctx context.Context, userID, entryID string) (*model.EntryWithMedia, error)

	// List はユーザーの記録一覧を作品情報付きで返す。
	// 第2戻り値はページに依存しない総件数。範囲外ページは空スライスを返す。
	List(ctx context.Context, userID string, params EntryListParams) ([]model.EntryWithMedia, int, error)

	// Update はユーザー所有の記録を更新する。
	// 更新行数を返す。0行は「見つからない」を意味する（所有権違反と区別しない）。
	Update(ctx context.Context, entry *model.Entry) (int64, error)

	// Delete はユーザー所有の記録を物理削除する。共有作品情報は削除しない。
	// 削除行数を返す。
	Delete(ctx context.Context, userID, entryID string) (int64, error)

	// Stats はユーザーの記録の集計値を返す。typeFilterが空の場合は全種別。
	Stats(ctx context.Context, userID string, typeFilter model.MediaType) (*EntryStats, error)

	// DeleteByUserID はユーザーの全記録を削除する。退会処理用。
	DeleteByUserID(ctx context.Context, userID string) error
}

// SessionCleanupRepository は期限切れセッションの掃除用インターフェース。
type SessionCleanupRepository interface {
	// DeleteExpired は期限切れセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}
