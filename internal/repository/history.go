package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/playhouse/internal/model"
)

const historyColumns = `id, session_id, token_code, jeton_name, tariff, entry_time, exit_time, paid_until, base_amount, paid_amount, created_at`

func scanHistory(row rowScanner) (*model.HistoryEntry, error) {
	var (
		h      model.HistoryEntry
		tariff string
	)

	err := row.Scan(
		&h.ID, &h.SessionID, &h.TokenCode, &h.JetonName, &tariff,
		&h.EntryTime, &h.ExitTime, &h.PaidUntil, &h.BaseAmount, &h.PaidAmount, &h.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	h.Tariff = model.TariffClass(tariff)
	return &h, nil
}

func (r *PostgresRepository) listHistory(ctx context.Context, query string, args ...any) ([]model.HistoryEntry, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select history: %w", err)
	}
	defer rows.Close()

	var res []model.HistoryEntry
	for rows.Next() {
		h, err := scanHistory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		res = append(res, *h)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// GetHistoryBySession возвращает запись журнала закрытой сессии.
func (r *PostgresRepository) GetHistoryBySession(ctx context.Context, sessionID string) (*model.HistoryEntry, error) {
	h, err := scanHistory(r.db.QueryRow(ctx,
		`SELECT `+historyColumns+` FROM history WHERE session_id = $1`,
		sessionID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrHistoryNotFound
		}
		return nil, fmt.Errorf("get history: %w", err)
	}
	return h, nil
}

// ListHistoryByToken возвращает последние посещения по жетону.
func (r *PostgresRepository) ListHistoryByToken(ctx context.Context, token string, limit int) ([]model.HistoryEntry, error) {
	return r.listHistory(ctx,
		`SELECT `+historyColumns+` FROM history WHERE token_code = $1 ORDER BY exit_time DESC LIMIT $2`,
		token, limit,
	)
}

// ListHistoryBetween возвращает посещения, завершённые в полуинтервале [from, to).
func (r *PostgresRepository) ListHistoryBetween(ctx context.Context, from, to time.Time) ([]model.HistoryEntry, error) {
	return r.listHistory(ctx,
		`SELECT `+historyColumns+` FROM history WHERE exit_time >= $1 AND exit_time < $2 ORDER BY exit_time`,
		from, to,
	)
}

// CountHistory возвращает число записей журнала.
func (r *PostgresRepository) CountHistory(ctx context.Context) (int64, error) {
	n, err := r.count(ctx, `SELECT COUNT(*) FROM history`)
	if err != nil {
		return 0, fmt.Errorf("count history: %w", err)
	}
	return n, nil
}
