package auth

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"
)

const pgUniqueViolation = "23505"

// AccountsRepository is the bun backed AccountStore
type AccountsRepository struct {
	db    *bun.DB
	clock Clock
}

var _ AccountStore = (*AccountsRepository)(nil)

func NewAccountsRepository(db *bun.DB) *AccountsRepository {
	return &AccountsRepository{
		db:    db,
		clock: systemClock{},
	}
}

func (r *AccountsRepository) WithClock(clock Clock) *AccountsRepository {
	r.clock = normalizeClock(clock)
	return r
}

func (r *AccountsRepository) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return r.db.RunInTx(ctx, opts, f)
	}
}

func (r *AccountsRepository) FindAccountByID(ctx context.Context, id int64) (*Account, error) {
	return r.FindAccountByIDTx(ctx, r.db, id)
}

func (r *AccountsRepository) FindAccountByIDTx(ctx context.Context, tx bun.IDB, id int64) (*Account, error) {
	record := &Account{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFoundOr(err)
	}
	return record, nil
}

func (r *AccountsRepository) FindAccountByEmail(ctx context.Context, email string) (*Account, error) {
	return r.FindAccountByEmailTx(ctx, r.db, email)
}

func (r *AccountsRepository) FindAccountByEmailTx(ctx context.Context, tx bun.IDB, email string) (*Account, error) {
	record := &Account{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.email = ?", email).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFoundOr(err)
	}
	return record, nil
}

// CreateAccount inserts account and returns it with its generated id.
// ErrAccountExists is returned when the email is already taken.
func (r *AccountsRepository) CreateAccount(ctx context.Context, account *Account) (*Account, error) {
	err := r.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := r.CreateAccountTx(ctx, tx, account)
		return err
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

func (r *AccountsRepository) CreateAccountTx(ctx context.Context, tx bun.IDB, account *Account) (*Account, error) {
	if account == nil {
		return nil, goerrors.New("account must not be nil", goerrors.CategoryBadInput)
	}

	exists, err := tx.NewSelect().
		Model((*Account)(nil)).
		Where("?TableAlias.email = ?", account.Email).
		Exists(ctx)
	if err != nil {
		return nil, err
	}

	if exists {
		return nil, ErrAccountExists
	}

	prepareAccountDefaults(account, r.clock.Now())

	if _, err := tx.NewInsert().Model(account).Returning("*").Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrAccountExists
		}
		return nil, err
	}

	return account, nil
}

// TrackSuccessfulLogin sets last_login on the account
func (r *AccountsRepository) TrackSuccessfulLogin(ctx context.Context, account *Account) error {
	return r.TrackSuccessfulLoginTx(ctx, r.db, account)
}

func (r *AccountsRepository) TrackSuccessfulLoginTx(ctx context.Context, tx bun.IDB, account *Account) error {
	if account == nil {
		return goerrors.New("account must not be nil", goerrors.CategoryBadInput)
	}

	now := r.clock.Now()
	res, err := tx.NewUpdate().
		Model((*Account)(nil)).
		Set("last_login = ?", now).
		Set("updated_at = ?", now).
		Where("id = ?", account.ID).
		Exec(ctx)
	if err != nil {
		return err
	}

	if err := ensureAffected(res); err != nil {
		return err
	}

	account.LastLogin = &now
	account.UpdatedAt = now
	return nil
}

// UpdatePasswordHash replaces the stored credential hash
func (r *AccountsRepository) UpdatePasswordHash(ctx context.Context, id int64, passwordHash string) error {
	return r.UpdatePasswordHashTx(ctx, r.db, id, passwordHash)
}

func (r *AccountsRepository) UpdatePasswordHashTx(ctx context.Context, tx bun.IDB, id int64, passwordHash string) error {
	res, err := tx.NewUpdate().
		Model((*Account)(nil)).
		Set("password_hash = ?", passwordHash).
		Set("updated_at = ?", r.clock.Now()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	return ensureAffected(res)
}

func ensureAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func notFoundOr(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrAccountNotFound
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
