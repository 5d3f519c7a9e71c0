// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, media, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeEntryNotFound    = "ENTRY_NOT_FOUND"
	ErrCodeInvalidMediaType = "INVALID_MEDIA_TYPE"
	ErrCodeInvalidStatus    = "INVALID_STATUS"
	ErrCodeInvalidRating    = "INVALID_RATING"
	ErrCodeInvalidSortKey   = "INVALID_SORT_KEY"
	ErrCodeInvalidQuery     = "INVALID_QUERY"
	ErrCodeTitleRequired    = "TITLE_REQUIRED"
	ErrCodeUserNotFound     = "USER_NOT_FOUND"
)

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewEntryNotFoundError はエントリー未検出エラーを生成する。
// 他ユーザーのエントリーを指定した場合も同じエラーになる（所有権の秘匿）。
func NewEntryNotFoundError(entryID string) *APIError {
	return &APIError{
		Code:     ErrCodeEntryNotFound,
		Message:  fmt.Sprintf("指定された記録が見つかりません: %s", entryID),
		Category: "media",
		Action:   "記録IDを確認してください。",
	}
}

// NewInvalidMediaTypeError は無効なメディア種別エラーを生成する。
func NewInvalidMediaTypeError(mediaType string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidMediaType,
		Message:  fmt.Sprintf("無効なメディア種別です: %s", mediaType),
		Category: "validation",
		Action:   "種別には movie、game、book のいずれかを指定してください。",
	}
}

// NewInvalidStatusError は無効なステータスエラーを生成する。
func NewInvalidStatusError(status string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidStatus,
		Message:  fmt.Sprintf("無効なステータスです: %s", status),
		Category: "validation",
		Action:   "ステータスには wishlist、in-progress、completed のいずれかを指定してください。",
	}
}

// NewInvalidRatingError は無効な評価値エラーを生成する。
func NewInvalidRatingError(rating float64) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRating,
		Message:  fmt.Sprintf("無効な評価値です: %g", rating),
		Category: "validation",
		Action:   "評価は0から5の範囲で0.5刻みで指定してください。",
	}
}

// NewInvalidSortKeyError は無効なソートキーエラーを生成する。
func NewInvalidSortKeyError(sortKey string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidSortKey,
		Message:  fmt.Sprintf("無効なソートキーです: %s", sortKey),
		Category: "validation",
		Action:   "ソートキーには updated、rating、title のいずれかを指定してください。",
	}
}

// NewTitleRequiredError はタイトル未指定エラーを生成する。
func NewTitleRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeTitleRequired,
		Message:  "作品タイトルが指定されていません。",
		Category: "validation",
		Action:   "タイトルを入力してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}
