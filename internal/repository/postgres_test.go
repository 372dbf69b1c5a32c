package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/playhouse/internal/model"
)

var (
	entryTime = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	paidUntil = entryTime.Add(time.Hour)
)

func newTestRepo(t *testing.T) (*PostgresRepository, pgxmock.PgxPoolIface) {
	t.Helper()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	r := New(mock)
	r.retryDelays = []time.Duration{time.Millisecond, time.Millisecond}
	return r, mock
}

func sessionRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "token_code", "qr_code", "jeton_name", "tariff", "entry_time", "paid_until",
		"base_amount", "exit_time", "paid_amount", "created_at",
	})
}

func jetonRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "code", "name", "child_name", "parent_phone", "tariff", "price", "duration_minutes",
		"is_active", "usage_count", "last_used_at", "created_at", "updated_at",
	})
}

func historyRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "session_id", "token_code", "jeton_name", "tariff", "entry_time", "exit_time",
		"paid_until", "base_amount", "paid_amount", "created_at",
	})
}

func sampleHistory() model.HistoryEntry {
	return model.HistoryEntry{
		ID:         "h-1",
		SessionID:  "s-1",
		TokenCode:  "JET-ABC-001",
		JetonName:  "Red",
		Tariff:     model.TariffStandard,
		EntryTime:  entryTime,
		ExitTime:   paidUntil.Add(15 * time.Minute),
		PaidUntil:  paidUntil,
		BaseAmount: 50000,
		PaidAmount: 54167,
	}
}

func TestCreateSession(t *testing.T) {
	repo, mock := newTestRepo(t)

	s := model.Session{
		ID:         "s-1",
		TokenCode:  "JET-ABC-001",
		QRCode:     "qr-1",
		JetonName:  "Red",
		Tariff:     model.TariffVIP,
		EntryTime:  entryTime,
		PaidUntil:  paidUntil,
		BaseAmount: 50000,
	}

	mock.ExpectExec("INSERT INTO sessions").
		WithArgs("s-1", "JET-ABC-001", "qr-1", "Red", "vip", entryTime, paidUntil, int64(50000)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.CreateSession(context.Background(), s))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateSession_AlreadyOpen(t *testing.T) {
	repo, mock := newTestRepo(t)

	mock.ExpectExec("INSERT INTO sessions").
		WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: openSessionIndex})

	err := repo.CreateSession(context.Background(), model.Session{ID: "s-2", TokenCode: "JET-ABC-001"})
	assert.ErrorIs(t, err, ErrSessionAlreadyOpen)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSession_Closed(t *testing.T) {
	repo, mock := newTestRepo(t)

	exit := paidUntil.Add(5 * time.Minute)
	paid := int64(50000)

	mock.ExpectQuery("FROM sessions WHERE id").
		WithArgs("s-1").
		WillReturnRows(sessionRows().AddRow(
			"s-1", "JET-ABC-001", "qr-1", "Red", "standard", entryTime, paidUntil,
			int64(50000), &exit, &paid, entryTime,
		))

	s, err := repo.GetSession(context.Background(), "s-1")
	require.NoError(t, err)
	assert.Equal(t, model.TariffStandard, s.Tariff)
	assert.False(t, s.IsOpen())

	closed, ok := s.Closed()
	require.True(t, ok)
	assert.Equal(t, exit, closed.ExitTime)
	assert.Equal(t, paidUntil, closed.PaidUntil)
	assert.Equal(t, int64(50000), closed.PaidAmount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindOpenSessionByToken(t *testing.T) {
	repo, mock := newTestRepo(t)

	mock.ExpectQuery("FROM sessions WHERE token_code").
		WithArgs("JET-ABC-001").
		WillReturnRows(sessionRows().AddRow(
			"s-1", "JET-ABC-001", "qr-1", "Red", "standard", entryTime, paidUntil,
			int64(50000), nil, nil, entryTime,
		))

	s, err := repo.FindOpenSessionByToken(context.Background(), "JET-ABC-001")
	require.NoError(t, err)
	assert.True(t, s.IsOpen())
	assert.Equal(t, model.Open{}, s.State)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindOpenSessionByToken_NotFound(t *testing.T) {
	repo, mock := newTestRepo(t)

	mock.ExpectQuery("FROM sessions WHERE token_code").
		WithArgs("JET-ABC-404").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.FindOpenSessionByToken(context.Background(), "JET-ABC-404")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCloseSession_Success(t *testing.T) {
	repo, mock := newTestRepo(t)
	h := sampleHistory()

	mock.ExpectBegin()
	mock.ExpectExec("SET exit_time").
		WithArgs("s-1", h.ExitTime, h.PaidUntil, h.PaidAmount).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("INSERT INTO history").
		WithArgs("h-1", "s-1", "JET-ABC-001", "Red", "standard",
			h.EntryTime, h.ExitTime, h.PaidUntil, h.BaseAmount, h.PaidAmount).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	closed := model.Closed{ExitTime: h.ExitTime, PaidUntil: h.PaidUntil, PaidAmount: h.PaidAmount}
	require.NoError(t, repo.CloseSession(context.Background(), "s-1", closed, h))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCloseSession_AlreadyClosed(t *testing.T) {
	repo, mock := newTestRepo(t)
	h := sampleHistory()
	exit := h.ExitTime

	mock.ExpectBegin()
	mock.ExpectExec("SET exit_time").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery("SELECT exit_time FROM sessions").
		WithArgs("s-1").
		WillReturnRows(pgxmock.NewRows([]string{"exit_time"}).AddRow(&exit))
	mock.ExpectRollback()

	closed := model.Closed{ExitTime: h.ExitTime, PaidUntil: h.PaidUntil, PaidAmount: h.PaidAmount}
	err := repo.CloseSession(context.Background(), "s-1", closed, h)
	assert.ErrorIs(t, err, ErrSessionAlreadyClosed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCloseSession_NotFound(t *testing.T) {
	repo, mock := newTestRepo(t)
	h := sampleHistory()

	mock.ExpectBegin()
	mock.ExpectExec("SET exit_time").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery("SELECT exit_time FROM sessions").
		WithArgs("s-404").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	err := repo.CloseSession(context.Background(), "s-404", model.Closed{}, h)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCloseSession_RetriesSerializationFailure(t *testing.T) {
	repo, mock := newTestRepo(t)
	h := sampleHistory()

	mock.ExpectBegin()
	mock.ExpectExec("SET exit_time").
		WillReturnError(&pgconn.PgError{Code: pgerrcode.SerializationFailure})
	mock.ExpectRollback()

	mock.ExpectBegin()
	mock.ExpectExec("SET exit_time").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("INSERT INTO history").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	closed := model.Closed{ExitTime: h.ExitTime, PaidUntil: h.PaidUntil, PaidAmount: h.PaidAmount}
	require.NoError(t, repo.CloseSession(context.Background(), "s-1", closed, h))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCloseSession_HistoryInsertFails(t *testing.T) {
	repo, mock := newTestRepo(t)
	h := sampleHistory()

	mock.ExpectBegin()
	mock.ExpectExec("SET exit_time").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("INSERT INTO history").
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := repo.CloseSession(context.Background(), "s-1", model.Closed{}, h)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert history")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExtendSession_Closed(t *testing.T) {
	repo, mock := newTestRepo(t)

	exit := paidUntil
	paid := int64(50000)

	mock.ExpectQuery("UPDATE sessions").
		WithArgs("s-1", 30, int64(25000)).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("FROM sessions WHERE id").
		WithArgs("s-1").
		WillReturnRows(sessionRows().AddRow(
			"s-1", "JET-ABC-001", "qr-1", "Red", "standard", entryTime, paidUntil,
			int64(50000), &exit, &paid, entryTime,
		))

	_, err := repo.ExtendSession(context.Background(), "s-1", 30, 25000)
	assert.ErrorIs(t, err, ErrSessionAlreadyClosed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExtendSession_Success(t *testing.T) {
	repo, mock := newTestRepo(t)

	mock.ExpectQuery("UPDATE sessions").
		WithArgs("s-1", 30, int64(25000)).
		WillReturnRows(sessionRows().AddRow(
			"s-1", "JET-ABC-001", "qr-1", "Red", "standard", entryTime, paidUntil.Add(30*time.Minute),
			int64(75000), nil, nil, entryTime,
		))

	s, err := repo.ExtendSession(context.Background(), "s-1", 30, 25000)
	require.NoError(t, err)
	assert.Equal(t, paidUntil.Add(30*time.Minute), s.PaidUntil)
	assert.Equal(t, int64(75000), s.BaseAmount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteSession_NotFound(t *testing.T) {
	repo, mock := newTestRepo(t)

	mock.ExpectExec("DELETE FROM sessions").
		WithArgs("s-404").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	assert.ErrorIs(t, repo.DeleteSession(context.Background(), "s-404"), ErrSessionNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateJeton_Exists(t *testing.T) {
	repo, mock := newTestRepo(t)

	mock.ExpectExec("INSERT INTO jetons").
		WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})

	err := repo.CreateJeton(context.Background(), model.Jeton{ID: "j-1", Code: "JET-ABC-001"})
	assert.ErrorIs(t, err, ErrJetonExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetJetonByCode(t *testing.T) {
	repo, mock := newTestRepo(t)

	mock.ExpectQuery("FROM jetons WHERE code").
		WithArgs("JET-ABC-001").
		WillReturnRows(jetonRows().AddRow(
			"j-1", "JET-ABC-001", "Red", "Ali", "+998901234567", "vip", int64(80000), 90,
			true, 3, nil, entryTime, entryTime,
		))

	j, err := repo.GetJetonByCode(context.Background(), "JET-ABC-001")
	require.NoError(t, err)
	assert.Equal(t, model.TariffVIP, j.Tariff)
	assert.Equal(t, int64(80000), j.Price)
	assert.Equal(t, 90, j.DurationMinutes)
	assert.Equal(t, 3, j.UsageCount)
	assert.Nil(t, j.LastUsedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetJetonByCode_NotFound(t *testing.T) {
	repo, mock := newTestRepo(t)

	mock.ExpectQuery("FROM jetons WHERE code").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetJetonByCode(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJetonNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTouchJeton(t *testing.T) {
	repo, mock := newTestRepo(t)
	used := entryTime

	mock.ExpectQuery("SET usage_count").
		WithArgs("JET-ABC-001", used).
		WillReturnRows(jetonRows().AddRow(
			"j-1", "JET-ABC-001", "Red", "", "", "standard", int64(0), 0,
			true, 4, &used, entryTime, entryTime,
		))

	j, err := repo.TouchJeton(context.Background(), "JET-ABC-001", used)
	require.NoError(t, err)
	assert.Equal(t, 4, j.UsageCount)
	require.NotNil(t, j.LastUsedAt)
	assert.Equal(t, used, *j.LastUsedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListHistoryBetween(t *testing.T) {
	repo, mock := newTestRepo(t)
	h := sampleHistory()
	from := entryTime.Truncate(24 * time.Hour)
	to := from.Add(24 * time.Hour)

	mock.ExpectQuery("FROM history WHERE exit_time").
		WithArgs(from, to).
		WillReturnRows(historyRows().
			AddRow("h-1", "s-1", "JET-ABC-001", "Red", "standard", h.EntryTime, h.ExitTime, h.PaidUntil, int64(50000), int64(54167), h.ExitTime).
			AddRow("h-2", "s-2", "JET-ABC-002", "Blue", "vip", h.EntryTime, h.ExitTime, h.EntryTime, int64(80000), int64(80000), h.ExitTime))

	entries, err := repo.ListHistoryBetween(context.Background(), from, to)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(54167), entries[0].PaidAmount)
	assert.Equal(t, model.TariffVIP, entries[1].Tariff)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetHistoryBySession_NotFound(t *testing.T) {
	repo, mock := newTestRepo(t)

	mock.ExpectQuery("FROM history WHERE session_id").
		WithArgs("s-404").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetHistoryBySession(context.Background(), "s-404")
	assert.ErrorIs(t, err, ErrHistoryNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountOpenSessions(t *testing.T) {
	repo, mock := newTestRepo(t)

	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(7)))

	n, err := repo.CountOpenSessions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
