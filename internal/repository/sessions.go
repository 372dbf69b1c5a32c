package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/playhouse/internal/model"
)

const sessionColumns = `id, token_code, qr_code, jeton_name, tariff, entry_time, paid_until, base_amount, exit_time, paid_amount, created_at`

func scanSession(row rowScanner) (*model.Session, error) {
	var (
		s          model.Session
		tariff     string
		exitTime   *time.Time
		paidAmount *int64
	)

	err := row.Scan(
		&s.ID, &s.TokenCode, &s.QRCode, &s.JetonName, &tariff,
		&s.EntryTime, &s.PaidUntil, &s.BaseAmount,
		&exitTime, &paidAmount, &s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	s.Tariff = model.TariffClass(tariff)
	s.State = model.Open{}
	if exitTime != nil {
		closed := model.Closed{ExitTime: *exitTime, PaidUntil: s.PaidUntil}
		if paidAmount != nil {
			closed.PaidAmount = *paidAmount
		}
		s.State = closed
	}

	return &s, nil
}

func (r *PostgresRepository) getSession(ctx context.Context, query string, args ...any) (*model.Session, error) {
	s, err := scanSession(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return s, nil
}

func (r *PostgresRepository) listSessions(ctx context.Context, query string, args ...any) ([]model.Session, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select sessions: %w", err)
	}
	defer rows.Close()

	var res []model.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		res = append(res, *s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// CreateSession сохраняет новую открытую сессию.
// Если для жетона уже есть открытая сессия, возвращает ErrSessionAlreadyOpen.
func (r *PostgresRepository) CreateSession(ctx context.Context, s model.Session) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO sessions (id, token_code, qr_code, jeton_name, tariff, entry_time, paid_until, base_amount)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		s.ID, s.TokenCode, s.QRCode, s.JetonName, string(s.Tariff), s.EntryTime, s.PaidUntil, s.BaseAmount,
	)
	if err != nil {
		if pgErr, ok := isUniqueViolation(err); ok && pgErr.ConstraintName == openSessionIndex {
			return fmt.Errorf("%w: %s", ErrSessionAlreadyOpen, s.TokenCode)
		}
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// GetSession возвращает сессию по идентификатору.
func (r *PostgresRepository) GetSession(ctx context.Context, id string) (*model.Session, error) {
	return r.getSession(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id)
}

// FindOpenSessionByToken возвращает открытую сессию жетона.
func (r *PostgresRepository) FindOpenSessionByToken(ctx context.Context, token string) (*model.Session, error) {
	return r.getSession(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE token_code = $1 AND exit_time IS NULL`,
		token,
	)
}

// FindLatestSessionByToken возвращает последнюю по времени входа сессию жетона, открытую или закрытую.
func (r *PostgresRepository) FindLatestSessionByToken(ctx context.Context, token string) (*model.Session, error) {
	return r.getSession(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE token_code = $1 ORDER BY entry_time DESC LIMIT 1`,
		token,
	)
}

// FindSessionByQR возвращает сессию по коду, напечатанному на чеке.
func (r *PostgresRepository) FindSessionByQR(ctx context.Context, qr string) (*model.Session, error) {
	return r.getSession(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE qr_code = $1`, qr)
}

// ListSessions возвращает последние сессии, новые первыми.
func (r *PostgresRepository) ListSessions(ctx context.Context, limit int) ([]model.Session, error) {
	return r.listSessions(ctx,
		`SELECT `+sessionColumns+` FROM sessions ORDER BY entry_time DESC LIMIT $1`,
		limit,
	)
}

// ExtendSession продлевает оплаченное время открытой сессии и добавляет стоимость продления к базовой сумме.
func (r *PostgresRepository) ExtendSession(ctx context.Context, id string, minutes int, cost int64) (*model.Session, error) {
	s, err := scanSession(r.db.QueryRow(ctx,
		`UPDATE sessions
		 SET paid_until = paid_until + make_interval(mins => $2), base_amount = base_amount + $3, updated_at = now()
		 WHERE id = $1 AND exit_time IS NULL
		 RETURNING `+sessionColumns,
		id, minutes, cost,
	))
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("extend session: %w", err)
	}

	if _, err := r.GetSession(ctx, id); err != nil {
		return nil, err
	}
	return nil, ErrSessionAlreadyClosed
}

// CloseSession закрывает сессию и добавляет запись в журнал в одной транзакции.
//
// Обновление выполняется только если сессия ещё открыта, поэтому из нескольких
// одновременных попыток закрытия успешной будет ровно одна. Остальные получат
// ErrSessionAlreadyClosed.
func (r *PostgresRepository) CloseSession(ctx context.Context, id string, closed model.Closed, h model.HistoryEntry) error {
	return r.withRetry(ctx, func() error {
		return r.closeSession(ctx, id, closed, h)
	})
}

func (r *PostgresRepository) closeSession(ctx context.Context, id string, closed model.Closed, h model.HistoryEntry) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	cmdTag, err := tx.Exec(ctx,
		`UPDATE sessions
		 SET exit_time = $2, paid_until = $3, paid_amount = $4, updated_at = now()
		 WHERE id = $1 AND exit_time IS NULL`,
		id, closed.ExitTime, closed.PaidUntil, closed.PaidAmount,
	)
	if err != nil {
		return fmt.Errorf("close session: %w", err)
	}

	if cmdTag.RowsAffected() == 0 {
		var exitTime *time.Time
		err := tx.QueryRow(ctx, `SELECT exit_time FROM sessions WHERE id = $1`, id).Scan(&exitTime)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrSessionNotFound
			}
			return fmt.Errorf("select session state: %w", err)
		}
		return ErrSessionAlreadyClosed
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO history (id, session_id, token_code, jeton_name, tariff, entry_time, exit_time, paid_until, base_amount, paid_amount)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		h.ID, h.SessionID, h.TokenCode, h.JetonName, string(h.Tariff),
		h.EntryTime, h.ExitTime, h.PaidUntil, h.BaseAmount, h.PaidAmount,
	)
	if err != nil {
		return fmt.Errorf("insert history: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// DeleteSession удаляет сессию. Запись журнала сохраняется.
func (r *PostgresRepository) DeleteSession(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// DeleteAllSessions удаляет все сессии и возвращает их количество.
func (r *PostgresRepository) DeleteAllSessions(ctx context.Context) (int64, error) {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM sessions`)
	if err != nil {
		return 0, fmt.Errorf("delete sessions: %w", err)
	}
	return cmdTag.RowsAffected(), nil
}

// CountSessions возвращает общее число сессий.
func (r *PostgresRepository) CountSessions(ctx context.Context) (int64, error) {
	n, err := r.count(ctx, `SELECT COUNT(*) FROM sessions`)
	if err != nil {
		return 0, fmt.Errorf("count sessions: %w", err)
	}
	return n, nil
}

// CountOpenSessions возвращает число открытых сессий.
func (r *PostgresRepository) CountOpenSessions(ctx context.Context) (int64, error) {
	n, err := r.count(ctx, `SELECT COUNT(*) FROM sessions WHERE exit_time IS NULL`)
	if err != nil {
		return 0, fmt.Errorf("count open sessions: %w", err)
	}
	return n, nil
}

// CountOpenSessionsBetween возвращает число открытых сессий с временем входа в полуинтервале [from, to).
func (r *PostgresRepository) CountOpenSessionsBetween(ctx context.Context, from, to time.Time) (int64, error) {
	n, err := r.count(ctx,
		`SELECT COUNT(*) FROM sessions WHERE exit_time IS NULL AND entry_time >= $1 AND entry_time < $2`,
		from, to,
	)
	if err != nil {
		return 0, fmt.Errorf("count open sessions: %w", err)
	}
	return n, nil
}
