package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/playhouse/internal/model"
)

const jetonColumns = `id, code, name, child_name, parent_phone, tariff, price, duration_minutes, is_active, usage_count, last_used_at, created_at, updated_at`

func scanJeton(row rowScanner) (*model.Jeton, error) {
	var (
		j      model.Jeton
		tariff string
	)

	err := row.Scan(
		&j.ID, &j.Code, &j.Name, &j.ChildName, &j.ParentPhone, &tariff,
		&j.Price, &j.DurationMinutes, &j.IsActive, &j.UsageCount, &j.LastUsedAt,
		&j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	j.Tariff = model.TariffClass(tariff)
	return &j, nil
}

func (r *PostgresRepository) getJeton(ctx context.Context, query string, args ...any) (*model.Jeton, error) {
	j, err := scanJeton(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrJetonNotFound
		}
		return nil, fmt.Errorf("get jeton: %w", err)
	}
	return j, nil
}

// CreateJeton сохраняет новый жетон.
func (r *PostgresRepository) CreateJeton(ctx context.Context, j model.Jeton) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO jetons (id, code, name, child_name, parent_phone, tariff, price, duration_minutes, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		j.ID, j.Code, j.Name, j.ChildName, j.ParentPhone, string(j.Tariff), j.Price, j.DurationMinutes, j.IsActive,
	)
	if err != nil {
		if _, ok := isUniqueViolation(err); ok {
			return fmt.Errorf("%w: %s", ErrJetonExists, j.Code)
		}
		return fmt.Errorf("insert jeton: %w", err)
	}
	return nil
}

// GetJeton возвращает жетон по идентификатору.
func (r *PostgresRepository) GetJeton(ctx context.Context, id string) (*model.Jeton, error) {
	return r.getJeton(ctx, `SELECT `+jetonColumns+` FROM jetons WHERE id = $1`, id)
}

// GetJetonByCode возвращает жетон по коду, считанному сканером.
func (r *PostgresRepository) GetJetonByCode(ctx context.Context, code string) (*model.Jeton, error) {
	return r.getJeton(ctx, `SELECT `+jetonColumns+` FROM jetons WHERE code = $1`, code)
}

// ListJetons возвращает все жетоны, новые первыми.
func (r *PostgresRepository) ListJetons(ctx context.Context) ([]model.Jeton, error) {
	rows, err := r.db.Query(ctx, `SELECT `+jetonColumns+` FROM jetons ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("select jetons: %w", err)
	}
	defer rows.Close()

	var res []model.Jeton
	for rows.Next() {
		j, err := scanJeton(rows)
		if err != nil {
			return nil, fmt.Errorf("scan jeton: %w", err)
		}
		res = append(res, *j)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// UpdateJeton обновляет изменяемые поля жетона и возвращает его новое состояние.
func (r *PostgresRepository) UpdateJeton(ctx context.Context, j model.Jeton) (*model.Jeton, error) {
	updated, err := scanJeton(r.db.QueryRow(ctx,
		`UPDATE jetons
		 SET code = $2, name = $3, child_name = $4, parent_phone = $5, tariff = $6,
		     price = $7, duration_minutes = $8, is_active = $9, updated_at = now()
		 WHERE id = $1
		 RETURNING `+jetonColumns,
		j.ID, j.Code, j.Name, j.ChildName, j.ParentPhone, string(j.Tariff), j.Price, j.DurationMinutes, j.IsActive,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrJetonNotFound
		}
		if _, ok := isUniqueViolation(err); ok {
			return nil, fmt.Errorf("%w: %s", ErrJetonExists, j.Code)
		}
		return nil, fmt.Errorf("update jeton: %w", err)
	}
	return updated, nil
}

// DeleteJeton удаляет жетон.
func (r *PostgresRepository) DeleteJeton(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM jetons WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete jeton: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrJetonNotFound
	}
	return nil
}

// DeleteAllJetons удаляет все жетоны и возвращает их количество.
func (r *PostgresRepository) DeleteAllJetons(ctx context.Context) (int64, error) {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM jetons`)
	if err != nil {
		return 0, fmt.Errorf("delete jetons: %w", err)
	}
	return cmdTag.RowsAffected(), nil
}

// TouchJeton увеличивает счётчик использований жетона и запоминает время последнего использования.
func (r *PostgresRepository) TouchJeton(ctx context.Context, code string, at time.Time) (*model.Jeton, error) {
	j, err := scanJeton(r.db.QueryRow(ctx,
		`UPDATE jetons
		 SET usage_count = usage_count + 1, last_used_at = $2, updated_at = now()
		 WHERE code = $1
		 RETURNING `+jetonColumns,
		code, at,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrJetonNotFound
		}
		return nil, fmt.Errorf("touch jeton: %w", err)
	}
	return j, nil
}

// CountJetons возвращает число жетонов.
func (r *PostgresRepository) CountJetons(ctx context.Context) (int64, error) {
	n, err := r.count(ctx, `SELECT COUNT(*) FROM jetons`)
	if err != nil {
		return 0, fmt.Errorf("count jetons: %w", err)
	}
	return n, nil
}
