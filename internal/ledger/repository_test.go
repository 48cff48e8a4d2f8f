package ledger

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"
)

func setupLedgerMock(t *testing.T) (Repository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	sqlxDB := sqlx.NewDb(db, "sqlmock")
	repo := NewRepository(sqlxDB)

	closer := func() { sqlxDB.Close() }
	return repo, mock, closer
}

func accountRows(id, userID int, balance int64) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "user_id", "balance", "created_at", "updated_at"}).
		AddRow(id, userID, balance, time.Now(), time.Now())
}

func transactionRows(id, accountID int, amount int64, kind Kind, balanceAfter int64) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "account_id", "amount", "kind", "description", "reference", "balance_after", "created_at"}).
		AddRow(id, accountID, amount, string(kind), "test", nil, balanceAfter, time.Now())
}

func TestGetOrCreateAccount_WhenNotExists(t *testing.T) {
	repo, mock, close := setupLedgerMock(t)
	defer close()

	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM accounts WHERE user_id = $1")).
		WithArgs(10).
		WillReturnError(sql.ErrNoRows)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO accounts (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING RETURNING id, user_id, balance, created_at, updated_at")).
		WithArgs(10).
		WillReturnRows(accountRows(5, 10, 0))

	acc, err := repo.GetOrCreateAccount(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 5, acc.ID)
	require.Equal(t, int64(0), acc.Balance)
}

func TestGetOrCreateAccount_LosesInsertRace(t *testing.T) {
	repo, mock, close := setupLedgerMock(t)
	defer close()

	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM accounts WHERE user_id = $1")).
		WithArgs(10).
		WillReturnError(sql.ErrNoRows)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO accounts (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING RETURNING id, user_id, balance, created_at, updated_at")).
		WithArgs(10).
		WillReturnError(sql.ErrNoRows)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM accounts WHERE user_id = $1")).
		WithArgs(10).
		WillReturnRows(accountRows(5, 10, 0))

	acc, err := repo.GetOrCreateAccount(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 5, acc.ID)
}

func TestDebitTx_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "sqlmock")
	defer sqlxDB.Close()

	repo := NewRepository(sqlxDB)
	ctx := context.Background()

	mock.ExpectBegin()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, user_id, balance, created_at, updated_at FROM accounts WHERE user_id = $1 FOR UPDATE")).
		WithArgs(20).
		WillReturnRows(accountRows(7, 20, 10))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE accounts SET balance = $1, updated_at = NOW() WHERE id = $2")).
		WithArgs(int64(8), 7).
		WillReturnResult(sqlmock.NewResult(0, 1))

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO credit_transactions (account_id, amount, kind, description, reference, balance_after) VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, account_id, amount, kind, description, reference, balance_after, created_at")).
		WithArgs(7, int64(-2), KindTicketHold, "hold for subject request", sqlmock.AnyArg(), int64(8)).
		WillReturnRows(transactionRows(1, 7, -2, KindTicketHold, 8))

	mock.ExpectCommit()

	ref := TicketReference(3)
	var txn *Transaction
	err = RunInTx(ctx, sqlxDB, func(tx *sqlx.Tx) error {
		applied, err := repo.DebitTx(ctx, tx, 20, 2, KindTicketHold, "hold for subject request", &ref)
		if err != nil {
			return err
		}
		txn = applied
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, int64(-2), txn.Amount)
	require.Equal(t, int64(8), txn.BalanceAfter)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDebitTx_InsufficientCredits(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "sqlmock")
	defer sqlxDB.Close()

	repo := NewRepository(sqlxDB)
	ctx := context.Background()

	mock.ExpectBegin()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, user_id, balance, created_at, updated_at FROM accounts WHERE user_id = $1 FOR UPDATE")).
		WithArgs(20).
		WillReturnRows(accountRows(7, 20, 1))

	mock.ExpectRollback()

	err = RunInTx(ctx, sqlxDB, func(tx *sqlx.Tx) error {
		_, err := repo.DebitTx(ctx, tx, 20, 5, KindUnlock, "unlock paper", nil)
		return err
	})
	require.ErrorIs(t, err, ErrInsufficientCredits)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCredit_RejectsNonPositiveAmount(t *testing.T) {
	repo, _, close := setupLedgerMock(t)
	defer close()

	_, err := repo.Credit(context.Background(), 1, 0, KindBonus, "bonus", nil)
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = repo.Credit(context.Background(), 1, -3, KindBonus, "bonus", nil)
	require.ErrorIs(t, err, ErrInvalidAmount)

	// Amount validation runs before the transaction is touched.
	_, err = repo.DebitTx(context.Background(), nil, 1, 0, KindUnlock, "unlock paper", nil)
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestCredit_CreatesAccountWhenMissing(t *testing.T) {
	repo, mock, close := setupLedgerMock(t)
	defer close()

	ctx := context.Background()

	mock.ExpectBegin()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, user_id, balance, created_at, updated_at FROM accounts WHERE user_id = $1 FOR UPDATE")).
		WithArgs(30).
		WillReturnError(sql.ErrNoRows)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO accounts (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING RETURNING id, user_id, balance, created_at, updated_at")).
		WithArgs(30).
		WillReturnRows(accountRows(9, 30, 0))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE accounts SET balance = $1, updated_at = NOW() WHERE id = $2")).
		WithArgs(int64(5), 9).
		WillReturnResult(sqlmock.NewResult(0, 1))

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO credit_transactions (account_id, amount, kind, description, reference, balance_after) VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, account_id, amount, kind, description, reference, balance_after, created_at")).
		WithArgs(9, int64(5), KindBonus, "signup bonus", nil, int64(5)).
		WillReturnRows(transactionRows(1, 9, 5, KindBonus, 5))

	mock.ExpectCommit()

	txn, err := repo.Credit(ctx, 30, 5, KindBonus, "signup bonus", nil)
	require.NoError(t, err)
	require.Equal(t, int64(5), txn.BalanceAfter)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCredit_LosesAccountInsertRace(t *testing.T) {
	repo, mock, close := setupLedgerMock(t)
	defer close()

	ctx := context.Background()

	mock.ExpectBegin()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, user_id, balance, created_at, updated_at FROM accounts WHERE user_id = $1 FOR UPDATE")).
		WithArgs(30).
		WillReturnError(sql.ErrNoRows)

	// A concurrent first movement inserted the account between the
	// select and the insert; the conflict clause returns no row.
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO accounts (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING RETURNING id, user_id, balance, created_at, updated_at")).
		WithArgs(30).
		WillReturnError(sql.ErrNoRows)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, user_id, balance, created_at, updated_at FROM accounts WHERE user_id = $1 FOR UPDATE")).
		WithArgs(30).
		WillReturnRows(accountRows(9, 30, 3))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE accounts SET balance = $1, updated_at = NOW() WHERE id = $2")).
		WithArgs(int64(8), 9).
		WillReturnResult(sqlmock.NewResult(0, 1))

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO credit_transactions (account_id, amount, kind, description, reference, balance_after) VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, account_id, amount, kind, description, reference, balance_after, created_at")).
		WithArgs(9, int64(5), KindPurchase, "credit pack purchase", nil, int64(8)).
		WillReturnRows(transactionRows(1, 9, 5, KindPurchase, 8))

	mock.ExpectCommit()

	txn, err := repo.Credit(ctx, 30, 5, KindPurchase, "credit pack purchase", nil)
	require.NoError(t, err)
	require.Equal(t, int64(8), txn.BalanceAfter)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApply_RetriesOnSerializationFailure(t *testing.T) {
	repo, mock, close := setupLedgerMock(t)
	defer close()

	ctx := context.Background()

	// First attempt loses a serialization race.
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, user_id, balance, created_at, updated_at FROM accounts WHERE user_id = $1 FOR UPDATE")).
		WithArgs(20).
		WillReturnError(&pq.Error{Code: "40001"})
	mock.ExpectRollback()

	// Second attempt succeeds.
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, user_id, balance, created_at, updated_at FROM accounts WHERE user_id = $1 FOR UPDATE")).
		WithArgs(20).
		WillReturnRows(accountRows(7, 20, 10))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE accounts SET balance = $1, updated_at = NOW() WHERE id = $2")).
		WithArgs(int64(12), 7).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO credit_transactions (account_id, amount, kind, description, reference, balance_after) VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, account_id, amount, kind, description, reference, balance_after, created_at")).
		WithArgs(7, int64(2), KindRefund, "credit hold refunded", sqlmock.AnyArg(), int64(12)).
		WillReturnRows(transactionRows(2, 7, 2, KindRefund, 12))
	mock.ExpectCommit()

	ref := TicketReference(3)
	txn, err := repo.Credit(ctx, 20, 2, KindRefund, "credit hold refunded", &ref)
	require.NoError(t, err)
	require.Equal(t, int64(2), txn.Amount)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApply_SurfacesPersistenceErrorAfterRetries(t *testing.T) {
	repo, mock, close := setupLedgerMock(t)
	defer close()

	ctx := context.Background()

	for i := 0; i < maxRetries; i++ {
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta("SELECT id, user_id, balance, created_at, updated_at FROM accounts WHERE user_id = $1 FOR UPDATE")).
			WithArgs(20).
			WillReturnError(&pq.Error{Code: "40001"})
		mock.ExpectRollback()
	}

	_, err := repo.Credit(ctx, 20, 2, KindPurchase, "credit pack purchase", nil)
	require.ErrorIs(t, err, ErrPersistence)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactions_EmptyWhenNoAccount(t *testing.T) {
	repo, mock, close := setupLedgerMock(t)
	defer close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM accounts WHERE user_id = $1")).
		WithArgs(99).
		WillReturnError(sql.ErrNoRows)

	txs, err := repo.Transactions(context.Background(), 99, 10, 0)
	require.NoError(t, err)
	require.Empty(t, txs)
}

func TestSumTransactions(t *testing.T) {
	repo, mock, close := setupLedgerMock(t)
	defer close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(SUM(t.amount), 0) FROM credit_transactions t JOIN accounts a ON t.account_id = a.id WHERE a.user_id = $1")).
		WithArgs(20).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(8))

	sum, err := repo.SumTransactions(context.Background(), 20)
	require.NoError(t, err)
	require.Equal(t, int64(8), sum)
}
