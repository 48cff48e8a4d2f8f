package ticket

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"prepa/internal/ledger"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func setupTicketMock(t *testing.T) (Repository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	sqlxDB := sqlx.NewDb(db, "sqlmock")
	repo := NewRepository(sqlxDB, ledger.NewRepository(sqlxDB))

	closer := func() { sqlxDB.Close() }
	return repo, mock, closer
}

func ticketRowColumns() []string {
	return []string{"id", "user_id", "matiere", "year", "serie", "status", "hold_amount", "fulfilled_paper_id", "admin_comment", "created_at", "updated_at"}
}

func pendingTicketRow(id, userID int, hold int64) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(ticketRowColumns()).
		AddRow(id, userID, "maths", 2022, nil, "pending", hold, nil, nil, now, now)
}

func accountRow(id, userID int, balance int64) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{"id", "user_id", "balance", "created_at", "updated_at"}).
		AddRow(id, userID, balance, now, now)
}

func TestCreateWithHold_Success(t *testing.T) {
	repo, mock, close := setupTicketMock(t)
	defer close()

	mock.ExpectBegin()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO tickets (user_id, matiere, year, serie, hold_amount) VALUES ($1, $2, $3, $4, $5) RETURNING id, user_id, matiere, year, serie, status, hold_amount, fulfilled_paper_id, admin_comment, created_at, updated_at")).
		WithArgs(10, "maths", 2022, nil, int64(2)).
		WillReturnRows(pendingTicketRow(1, 10, 2))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, user_id, balance, created_at, updated_at FROM accounts WHERE user_id = $1 FOR UPDATE")).
		WithArgs(10).
		WillReturnRows(accountRow(7, 10, 5))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE accounts SET balance = $1, updated_at = NOW() WHERE id = $2")).
		WithArgs(int64(3), 7).
		WillReturnResult(sqlmock.NewResult(0, 1))

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO credit_transactions (account_id, amount, kind, description, reference, balance_after) VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, account_id, amount, kind, description, reference, balance_after, created_at")).
		WithArgs(7, int64(-2), ledger.KindTicketHold, "subject request hold", "ticket:1", int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "account_id", "amount", "kind", "description", "reference", "balance_after", "created_at"}).
			AddRow(31, 7, -2, "ticket_hold", "subject request hold", "ticket:1", 3, time.Now()))

	mock.ExpectCommit()

	ticket, err := repo.CreateWithHold(context.Background(), 10, "maths", 2022, nil, 2)
	require.NoError(t, err)
	require.Equal(t, 1, ticket.ID)
	require.Equal(t, StatusPending, ticket.Status)
	require.Equal(t, int64(2), ticket.HoldAmount)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateWithHold_InsufficientCreditsRollsBack(t *testing.T) {
	repo, mock, close := setupTicketMock(t)
	defer close()

	mock.ExpectBegin()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO tickets (user_id, matiere, year, serie, hold_amount) VALUES ($1, $2, $3, $4, $5) RETURNING id, user_id, matiere, year, serie, status, hold_amount, fulfilled_paper_id, admin_comment, created_at, updated_at")).
		WithArgs(10, "maths", 2022, nil, int64(2)).
		WillReturnRows(pendingTicketRow(1, 10, 2))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, user_id, balance, created_at, updated_at FROM accounts WHERE user_id = $1 FOR UPDATE")).
		WithArgs(10).
		WillReturnRows(accountRow(7, 10, 1))

	mock.ExpectRollback()

	ticket, err := repo.CreateWithHold(context.Background(), 10, "maths", 2022, nil, 2)
	require.ErrorIs(t, err, ledger.ErrInsufficientCredits)
	require.Nil(t, ticket)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFulfill_GuardedTransition(t *testing.T) {
	repo, mock, close := setupTicketMock(t)
	defer close()

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE tickets SET status = $2, fulfilled_paper_id = $3, updated_at = NOW() WHERE id = $1 AND status = $4 RETURNING id, user_id, matiere, year, serie, status, hold_amount, fulfilled_paper_id, admin_comment, created_at, updated_at")).
		WithArgs(1, StatusFulfilled, 5, StatusPending).
		WillReturnRows(sqlmock.NewRows(ticketRowColumns()).
			AddRow(1, 10, "maths", 2022, nil, "fulfilled", 2, 5, nil, now, now))

	ticket, err := repo.Fulfill(context.Background(), 1, 5)
	require.NoError(t, err)
	require.Equal(t, StatusFulfilled, ticket.Status)
	require.NotNil(t, ticket.FulfilledPaperID)
	require.Equal(t, 5, *ticket.FulfilledPaperID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFulfill_AlreadyClosed(t *testing.T) {
	repo, mock, close := setupTicketMock(t)
	defer close()

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE tickets SET status = $2, fulfilled_paper_id = $3, updated_at = NOW() WHERE id = $1 AND status = $4 RETURNING id, user_id, matiere, year, serie, status, hold_amount, fulfilled_paper_id, admin_comment, created_at, updated_at")).
		WithArgs(1, StatusFulfilled, 5, StatusPending).
		WillReturnError(sql.ErrNoRows)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT status FROM tickets WHERE id = $1")).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("refunded"))

	ticket, err := repo.Fulfill(context.Background(), 1, 5)
	require.ErrorIs(t, err, ErrTicketTerminal)
	require.Nil(t, ticket)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFulfill_NotFound(t *testing.T) {
	repo, mock, close := setupTicketMock(t)
	defer close()

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE tickets SET status = $2, fulfilled_paper_id = $3, updated_at = NOW() WHERE id = $1 AND status = $4 RETURNING id, user_id, matiere, year, serie, status, hold_amount, fulfilled_paper_id, admin_comment, created_at, updated_at")).
		WithArgs(99, StatusFulfilled, 5, StatusPending).
		WillReturnError(sql.ErrNoRows)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT status FROM tickets WHERE id = $1")).
		WithArgs(99).
		WillReturnError(sql.ErrNoRows)

	ticket, err := repo.Fulfill(context.Background(), 99, 5)
	require.ErrorIs(t, err, ErrTicketNotFound)
	require.Nil(t, ticket)
}

func TestClose_ExpiredReleasesHold(t *testing.T) {
	repo, mock, close := setupTicketMock(t)
	defer close()

	now := time.Now()
	mock.ExpectBegin()

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE tickets SET status = $2, admin_comment = $3, updated_at = NOW() WHERE id = $1 AND status = $4 RETURNING id, user_id, matiere, year, serie, status, hold_amount, fulfilled_paper_id, admin_comment, created_at, updated_at")).
		WithArgs(1, StatusExpired, nil, StatusPending).
		WillReturnRows(sqlmock.NewRows(ticketRowColumns()).
			AddRow(1, 10, "maths", 2022, nil, "expired", 2, nil, nil, now, now))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, user_id, balance, created_at, updated_at FROM accounts WHERE user_id = $1 FOR UPDATE")).
		WithArgs(10).
		WillReturnRows(accountRow(7, 10, 3))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE accounts SET balance = $1, updated_at = NOW() WHERE id = $2")).
		WithArgs(int64(5), 7).
		WillReturnResult(sqlmock.NewResult(0, 1))

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO credit_transactions (account_id, amount, kind, description, reference, balance_after) VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, account_id, amount, kind, description, reference, balance_after, created_at")).
		WithArgs(7, int64(2), ledger.KindTicketRelease, "ticket hold released", "ticket:1", int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "account_id", "amount", "kind", "description", "reference", "balance_after", "created_at"}).
			AddRow(41, 7, 2, "ticket_release", "ticket hold released", "ticket:1", 5, now))

	mock.ExpectCommit()

	ticket, err := repo.Close(context.Background(), 1, StatusExpired, nil)
	require.NoError(t, err)
	require.Equal(t, StatusExpired, ticket.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClose_RefundedCreditsHoldWithComment(t *testing.T) {
	repo, mock, close := setupTicketMock(t)
	defer close()

	now := time.Now()
	comment := "paper unavailable"
	mock.ExpectBegin()

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE tickets SET status = $2, admin_comment = $3, updated_at = NOW() WHERE id = $1 AND status = $4 RETURNING id, user_id, matiere, year, serie, status, hold_amount, fulfilled_paper_id, admin_comment, created_at, updated_at")).
		WithArgs(1, StatusRefunded, comment, StatusPending).
		WillReturnRows(sqlmock.NewRows(ticketRowColumns()).
			AddRow(1, 10, "maths", 2022, nil, "refunded", 2, nil, comment, now, now))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, user_id, balance, created_at, updated_at FROM accounts WHERE user_id = $1 FOR UPDATE")).
		WithArgs(10).
		WillReturnRows(accountRow(7, 10, 3))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE accounts SET balance = $1, updated_at = NOW() WHERE id = $2")).
		WithArgs(int64(5), 7).
		WillReturnResult(sqlmock.NewResult(0, 1))

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO credit_transactions (account_id, amount, kind, description, reference, balance_after) VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, account_id, amount, kind, description, reference, balance_after, created_at")).
		WithArgs(7, int64(2), ledger.KindRefund, "ticket refunded", "ticket:1", int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "account_id", "amount", "kind", "description", "reference", "balance_after", "created_at"}).
			AddRow(42, 7, 2, "refund", "ticket refunded", "ticket:1", 5, now))

	mock.ExpectCommit()

	ticket, err := repo.Close(context.Background(), 1, StatusRefunded, &comment)
	require.NoError(t, err)
	require.Equal(t, StatusRefunded, ticket.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClose_RejectsNonTerminalTarget(t *testing.T) {
	repo, mock, close := setupTicketMock(t)
	defer close()

	ticket, err := repo.Close(context.Background(), 1, StatusPending, nil)
	require.Error(t, err)
	require.Nil(t, ticket)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListPendingBefore(t *testing.T) {
	repo, mock, close := setupTicketMock(t)
	defer close()

	cutoff := time.Now().Add(-72 * time.Hour)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, user_id, matiere, year, serie, status, hold_amount, fulfilled_paper_id, admin_comment, created_at, updated_at FROM tickets WHERE status = $1 AND created_at <= $2 ORDER BY created_at ASC")).
		WithArgs(StatusPending, cutoff).
		WillReturnRows(pendingTicketRow(1, 10, 2))

	tickets, err := repo.ListPendingBefore(context.Background(), cutoff)
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	require.Equal(t, 1, tickets[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}
