package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/nua/internal/model"
)

// PostgresEntryRepo はPostgreSQLを使用した記録リポジトリ。
// 全クエリがuser_idで絞り込まれる。
type PostgresEntryRepo struct {
	db *sql.DB
}

// NewPostgresEntryRepo はPostgresEntryRepoを生成する。
func NewPostgresEntryRepo(db *sql.DB) *PostgresEntryRepo {
	return &PostgresEntryRepo{db: db}
}

// entrySelectColumns は記録と作品情報のJOIN取得で使用するカラムリスト。
const entrySelectColumns = `
	l.id, l.user_id, l.media_id, l.status, l.rating, l.moods,
	l.start_date, l.end_date, l.one_line_review, l.detailed_review,
	l.created_at, l.updated_at,
	m.id, m.title, m.type, m.poster_url, m.overview, m.metadata,
	m.created_at, m.updated_at`

// CreateWithMedia は作品の解決と記録の作成を同一トランザクションで行う。
// media.IDが空の場合は(title, type)一致で既存作品を探し、なければ作成する。
func (r *PostgresEntryRepo) CreateWithMedia(ctx context.Context, entry *model.Entry, media *model.MediaMetadata) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	if entry.MediaID == "" {
		// 既存作品を(title, type)一致で探す。見つかればそれに紐付ける。
		var existingID string
		err = tx.QueryRowContext(ctx,
			`SELECT id FROM media_items WHERE title = $1 AND type = $2
			 ORDER BY created_at ASC LIMIT 1`,
			media.Title, string(media.Type),
		).Scan(&existingID)

		switch {
		case err == sql.ErrNoRows:
			// 新規作品を作成する。media.IDには呼び出し側が採番したIDが入っている。
			metadataJSON, merr := marshalMetadata(media.Metadata)
			if merr != nil {
				return merr
			}
			_, err = tx.ExecContext(ctx,
				`INSERT INTO media_items (id, title, type, poster_url, overview, metadata, created_at, updated_at)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
				media.ID, media.Title, string(media.Type),
				nullString(media.PosterURL), nullString(media.Overview),
				metadataJSON, media.CreatedAt, media.UpdatedAt,
			)
			if err != nil {
				return fmt.Errorf("作品の作成に失敗しました: %w", err)
			}
		case err != nil:
			return fmt.Errorf("作品の検索に失敗しました: %w", err)
		default:
			media.ID = existingID
		}

		entry.MediaID = media.ID
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO user_logs (id, user_id, media_id, status, rating, moods,
		                        start_date, end_date, one_line_review, detailed_review,
		                        created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		entry.ID, entry.UserID, entry.MediaID, string(entry.Status), entry.Rating,
		pq.Array(entry.Moods), entry.StartDate, entry.EndDate,
		entry.OneLineReview, entry.DetailedReview,
		entry.CreatedAt, entry.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("記録の作成に失敗しました: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}

	return nil
}

// FindByIDForUser はユーザー所有の記録を作品情報付きで取得する。
// 見つからない場合（他ユーザー所有を含む）はnilを返す。
func (r *PostgresEntryRepo) FindByIDForUser(ctx context.Context, userID, entryID string) (*model.EntryWithMedia, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+entrySelectColumns+`
		 FROM user_logs l
		 JOIN media_items m ON l.media_id = m.id
		 WHERE l.id = $1 AND l.user_id = $2`,
		entryID, userID,
	)

	ewm, err := scanEntryWithMedia(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("記録の取得に失敗しました: %w", err)
	}
	return ewm, nil
}

// List はユーザーの記録一覧を作品情報付きで返す。
// 検索・種別・ステータスのフィルタとソート、LIMIT/OFFSETページネーションを適用し、
// ページに依存しない総件数も返す。
func (r *PostgresEntryRepo) List(ctx context.Context, userID string, params EntryListParams) ([]model.EntryWithMedia, int, error) {
	where := ` WHERE l.user_id = $1`
	args := []interface{}{userID}
	argIndex := 2

	if params.Search != "" {
		where += fmt.Sprintf(" AND m.title ILIKE $%d", argIndex)
		args = append(args, "%"+params.Search+"%")
		argIndex++
	}
	if params.Type != "" {
		where += fmt.Sprintf(" AND m.type = $%d", argIndex)
		args = append(args, string(params.Type))
		argIndex++
	}
	if params.Status != "" {
		where += fmt.Sprintf(" AND l.status = $%d", argIndex)
		args = append(args, string(params.Status))
		argIndex++
	}

	fromClause := ` FROM user_logs l JOIN media_items m ON l.media_id = m.id`

	// 総件数はページに依存しない
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*)`+fromClause+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("記録件数の取得に失敗しました: %w", err)
	}

	// ソート順。評価降順は同点を更新日時降順で安定させる。
	var orderBy string
	switch params.Sort {
	case model.EntrySortRating:
		orderBy = " ORDER BY l.rating DESC, l.updated_at DESC"
	case model.EntrySortTitle:
		orderBy = " ORDER BY m.title ASC"
	default:
		orderBy = " ORDER BY l.updated_at DESC"
	}

	offset := (params.Page - 1) * params.PageSize
	query := `SELECT ` + entrySelectColumns + fromClause + where + orderBy +
		fmt.Sprintf(" LIMIT $%d OFFSET $%d", argIndex, argIndex+1)
	args = append(args, params.PageSize, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("記録一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var entries []model.EntryWithMedia
	for rows.Next() {
		ewm, err := scanEntryWithMedia(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("記録行の読み取りに失敗しました: %w", err)
		}
		entries = append(entries, *ewm)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("記録一覧の走査に失敗しました: %w", err)
	}

	return entries, total, nil
}

// Update はユーザー所有の記録を更新する。更新行数を返す。
// WHEREにuser_idを含めるため、他ユーザーの記録は0行更新になる。
func (r *PostgresEntryRepo) Update(ctx context.Context, entry *model.Entry) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE user_logs SET
		    status = $3, rating = $4, moods = $5,
		    start_date = $6, end_date = $7,
		    one_line_review = $8, detailed_review = $9,
		    updated_at = $10
		 WHERE id = $1 AND user_id = $2`,
		entry.ID, entry.UserID,
		string(entry.Status), entry.Rating, pq.Array(entry.Moods),
		entry.StartDate, entry.EndDate,
		entry.OneLineReview, entry.DetailedReview,
		entry.UpdatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("記録の更新に失敗しました: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("更新行数の取得に失敗しました: %w", err)
	}
	return n, nil
}

// Delete はユーザー所有の記録を物理削除する。削除行数を返す。
// 共有作品情報（media_items）は削除しない。
func (r *PostgresEntryRepo) Delete(ctx context.Context, userID, entryID string) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM user_logs WHERE id = $1 AND user_id = $2`,
		entryID, userID,
	)
	if err != nil {
		return 0, fmt.Errorf("記録の削除に失敗しました: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除行数の取得に失敗しました: %w", err)
	}
	return n, nil
}

// Stats はユーザーの記録の集計値を1クエリで返す。
// 平均評価はrating > 0の記録のみを対象とし、小数第1位に丸める。
// 評価済み記録が0件の場合は0になる。
func (r *PostgresEntryRepo) Stats(ctx context.Context, userID string, typeFilter model.MediaType) (*EntryStats, error) {
	query := `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE l.created_at >= date_trunc('month', now())),
		       COUNT(*) FILTER (WHERE l.status = 'in-progress'),
		       COALESCE(ROUND(AVG(l.rating) FILTER (WHERE l.rating > 0), 1), 0)
		FROM user_logs l
		JOIN media_items m ON l.media_id = m.id
		WHERE l.user_id = $1`
	args := []interface{}{userID}

	if typeFilter != "" {
		query += " AND m.type = $2"
		args = append(args, string(typeFilter))
	}

	stats := &EntryStats{}
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&stats.Total, &stats.ThisMonth, &stats.InProgress, &stats.AvgRating,
	)
	if err != nil {
		return nil, fmt.Errorf("記録の集計に失敗しました: %w", err)
	}

	return stats, nil
}

// DeleteByUserID はユーザーの全記録を削除する。退会処理用。
func (r *PostgresEntryRepo) DeleteByUserID(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM user_logs WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("ユーザー記録の一括削除に失敗しました: %w", err)
	}
	return nil
}

// scanEntryWithMedia は1行をEntryWithMediaに読み取る。
func scanEntryWithMedia(row rowScanner) (*model.EntryWithMedia, error) {
	ewm := &model.EntryWithMedia{}
	var status, mediaType string
	var moods pq.StringArray
	var startDate, endDate sql.NullTime
	var posterURL, overview sql.NullString
	var metadataJSON []byte

	if err := row.Scan(
		&ewm.ID, &ewm.UserID, &ewm.MediaID, &status, &ewm.Rating, &moods,
		&startDate, &endDate, &ewm.OneLineReview, &ewm.DetailedReview,
		&ewm.CreatedAt, &ewm.UpdatedAt,
		&ewm.Media.ID, &ewm.Media.Title, &mediaType, &posterURL, &overview,
		&metadataJSON, &ewm.Media.CreatedAt, &ewm.Media.UpdatedAt,
	); err != nil {
		return nil, err
	}

	ewm.Status = model.EntryStatus(status)
	ewm.Moods = []string(moods)
	if startDate.Valid {
		ewm.StartDate = &startDate.Time
	}
	if endDate.Valid {
		ewm.EndDate = &endDate.Time
	}
	ewm.Media.Type = model.MediaType(mediaType)
	ewm.Media.PosterURL = nullStringValue(posterURL)
	ewm.Media.Overview = nullStringValue(overview)

	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &ewm.Media.Metadata); err != nil {
			return nil, fmt.Errorf("作品メタデータのパースに失敗しました: %w", err)
		}
	}

	return ewm, nil
}

// compile-time interface check
var _ EntryRepository = (*PostgresEntryRepo)(nil)
