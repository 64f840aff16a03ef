package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jobmatch/credits/internal/models"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

const transactionColumns = `transaction_id, account_id, kind, delta, balance_after, description, external_payment_id, intent_id, created_at`

var errVersionConflict = errors.New("balance version changed during update")

// PostgresStore keeps the ledger in Postgres. The balance row of an account
// is locked with SELECT ... FOR UPDATE for the duration of an append, so
// appends on one account serialize while other accounts proceed.
type PostgresStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{
		db:  db,
		now: time.Now,
	}
}

var _ LedgerStore = (*PostgresStore)(nil)

func (s *PostgresStore) GetBalance(ctx context.Context, accountID string) (*models.Balance, error) {
	balance := models.Balance{AccountID: accountID}
	err := s.db.QueryRowContext(ctx, `
		SELECT amount, version, updated_at
		FROM credit_balances
		WHERE account_id = $1`, accountID).Scan(&balance.Amount, &balance.Version, &balance.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return &balance, nil
	}
	if err != nil {
		return nil, unavailable("get balance", err)
	}
	return &balance, nil
}

func (s *PostgresStore) AppendTransaction(ctx context.Context, params AppendParams) (*models.Transaction, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, unavailable("begin", err)
	}
	defer tx.Rollback()

	entry, err := s.appendTx(ctx, tx, params)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, unavailable("commit", err)
	}
	return entry, nil
}

func (s *PostgresStore) appendTx(ctx context.Context, tx *sql.Tx, params AppendParams) (*models.Transaction, error) {
	if err := s.ensureBalance(ctx, tx, params.AccountID); err != nil {
		return nil, err
	}

	balance, err := s.lockBalance(ctx, tx, params.AccountID)
	if err != nil {
		return nil, err
	}

	newAmount := balance.Amount + params.Delta
	if params.Kind == models.KindDeduct && newAmount < 0 {
		return nil, &InsufficientCreditError{
			AccountID: params.AccountID,
			Balance:   balance.Amount,
			Requested: -params.Delta,
		}
	}
	if params.Delta > 0 && newAmount < balance.Amount {
		return nil, fmt.Errorf("%w: balance overflow", ErrInvalidEntry)
	}

	now := s.now()
	entry := &models.Transaction{
		TransactionID:     uuid.NewString(),
		AccountID:         params.AccountID,
		Kind:              params.Kind,
		Delta:             params.Delta,
		BalanceAfter:      newAmount,
		Description:       params.Description,
		ExternalPaymentID: params.ExternalPaymentID,
		IntentID:          params.IntentID,
		CreatedAt:         now,
	}

	if err := s.insertTransaction(ctx, tx, entry); err != nil {
		return nil, err
	}

	if err := s.updateBalance(ctx, tx, params.AccountID, newAmount, balance.Version, now); err != nil {
		return nil, err
	}

	return entry, nil
}

func (s *PostgresStore) ensureBalance(ctx context.Context, tx *sql.Tx, accountID string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO credit_balances (account_id, amount, version, updated_at)
		VALUES ($1, 0, 0, $2)
		ON CONFLICT (account_id) DO NOTHING`, accountID, s.now())
	if err != nil {
		return unavailable("create balance", err)
	}
	return nil
}

func (s *PostgresStore) lockBalance(ctx context.Context, tx *sql.Tx, accountID string) (*models.Balance, error) {
	balance := models.Balance{AccountID: accountID}
	err := tx.QueryRowContext(ctx, `
		SELECT amount, version, updated_at
		FROM credit_balances
		WHERE account_id = $1
		FOR UPDATE`, accountID).Scan(&balance.Amount, &balance.Version, &balance.UpdatedAt)
	if err != nil {
		return nil, unavailable("lock balance", err)
	}
	return &balance, nil
}

func (s *PostgresStore) insertTransaction(ctx context.Context, tx *sql.Tx, entry *models.Transaction) error {
	externalID := sql.NullString{String: entry.ExternalPaymentID, Valid: entry.ExternalPaymentID != ""}
	intentID := sql.NullString{String: entry.IntentID, Valid: entry.IntentID != ""}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO credit_transactions (`+transactionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		entry.TransactionID, entry.AccountID, string(entry.Kind), entry.Delta, entry.BalanceAfter,
		entry.Description, externalID, intentID, entry.CreatedAt)
	if err == nil {
		return nil
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation && externalID.Valid {
		return fmt.Errorf("%w: %s", ErrDuplicateExternalPayment, entry.ExternalPaymentID)
	}
	return unavailable("insert transaction", err)
}

func (s *PostgresStore) updateBalance(ctx context.Context, tx *sql.Tx, accountID string, newAmount int64, version int, now time.Time) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE credit_balances
		SET amount = $1, version = version + 1, updated_at = $2
		WHERE account_id = $3 AND version = $4`,
		newAmount, now, accountID, version)
	if err != nil {
		return unavailable("update balance", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return unavailable("update balance", err)
	}

	if rowsAffected == 0 {
		return unavailable("update balance", fmt.Errorf("%w for account %s", errVersionConflict, accountID))
	}

	return nil
}

func (s *PostgresStore) FindTransactionByExternalID(ctx context.Context, externalPaymentID string) (*models.Transaction, error) {
	if externalPaymentID == "" {
		return nil, ErrTransactionNotFound
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT `+transactionColumns+`
		FROM credit_transactions
		WHERE external_payment_id = $1`, externalPaymentID)

	entry, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, unavailable("find transaction", err)
	}
	return entry, nil
}

func (s *PostgresStore) ListTransactions(ctx context.Context, accountID string, query models.HistoryQuery) (*models.TransactionPage, error) {
	query = query.Normalize()

	where := []string{"account_id = $1"}
	args := []any{accountID}
	if query.Kind != "" {
		args = append(args, string(query.Kind))
		where = append(where, fmt.Sprintf("kind = $%d", len(args)))
	}
	filter := strings.Join(where, " AND ")

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM credit_transactions WHERE `+filter, args...).Scan(&total); err != nil {
		return nil, unavailable("count transactions", err)
	}

	page := &models.TransactionPage{
		Items:    []models.Transaction{},
		Page:     query.Page,
		PageSize: query.PageSize,
		Total:    total,
	}
	if total == 0 || query.Offset() >= total {
		return page, nil
	}

	args = append(args, query.PageSize, query.Offset())
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s
		FROM credit_transactions
		WHERE %s
		ORDER BY id DESC
		LIMIT $%d OFFSET $%d`, transactionColumns, filter, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, unavailable("list transactions", err)
	}
	defer rows.Close()

	for rows.Next() {
		entry, err := scanTransaction(rows)
		if err != nil {
			return nil, unavailable("scan transaction", err)
		}
		page.Items = append(page.Items, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list transactions", err)
	}

	return page, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var (
		entry      models.Transaction
		kind       string
		externalID sql.NullString
		intentID   sql.NullString
	)
	if err := row.Scan(&entry.TransactionID, &entry.AccountID, &kind, &entry.Delta, &entry.BalanceAfter,
		&entry.Description, &externalID, &intentID, &entry.CreatedAt); err != nil {
		return nil, err
	}
	entry.Kind = models.TransactionKind(kind)
	entry.ExternalPaymentID = externalID.String
	entry.IntentID = intentID.String
	return &entry, nil
}
