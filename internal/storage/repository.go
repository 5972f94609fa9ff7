package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"expenses/internal/core"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when no expense has the requested id.
var ErrNotFound = errors.New("expense not found")

const expenseColumns = "id, date, category, amount, comment"

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks that the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Create inserts e and stores the assigned id back into it.
func (r *SQLiteRepository) Create(ctx context.Context, e *core.Expense) error {
	id, err := insertExpense(ctx, r.db, *e)
	if err != nil {
		return err
	}
	e.ID = id
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id int64) (core.Expense, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+expenseColumns+" FROM expenses WHERE id = ?", id)
	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, ErrNotFound
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense %d: %w", id, err)
	}
	return e, nil
}

func (r *SQLiteRepository) Update(ctx context.Context, e core.Expense) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE expenses SET date = ?, category = ?, amount = ?, comment = ? WHERE id = ?",
		e.Date, e.Category, e.Amount, nullString(e.Comment), e.ID)
	if err != nil {
		return fmt.Errorf("update expense %d: %w", e.ID, err)
	}
	return expectAffected(res, e.ID)
}

func (r *SQLiteRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM expenses WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete expense %d: %w", id, err)
	}
	return expectAffected(res, id)
}

// List returns every expense in insertion order.
func (r *SQLiteRepository) List(ctx context.Context) ([]core.Expense, error) {
	return r.query(ctx, "SELECT "+expenseColumns+" FROM expenses ORDER BY id")
}

// ListByMonthPrefix returns the expenses whose raw date string starts with
// prefix, ordered by date. LIKE wildcards in prefix match literally.
func (r *SQLiteRepository) ListByMonthPrefix(ctx context.Context, prefix string) ([]core.Expense, error) {
	return r.query(ctx,
		"SELECT "+expenseColumns+` FROM expenses WHERE date LIKE ? ESCAPE '\' ORDER BY date, id`,
		escapeLike(prefix)+"%")
}

// ListByIDs returns the expenses with the given ids, ordered by id.
func (r *SQLiteRepository) ListByIDs(ctx context.Context, ids []int64) ([]core.Expense, error) {
	if len(ids) == 0 {
		return []core.Expense{}, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	return r.query(ctx,
		"SELECT "+expenseColumns+" FROM expenses WHERE id IN ("+placeholders+") ORDER BY id", args...)
}

func (r *SQLiteRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM expenses").Scan(&n); err != nil {
		return 0, fmt.Errorf("count expenses: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) query(ctx context.Context, q string, args ...any) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}
	defer rows.Close()

	out := []core.Expense{}
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}
	return out, nil
}

// BeginBatch opens a transaction for a multi-row insert. Callers defer
// Rollback right away; it is a no-op once Commit has succeeded.
func (r *SQLiteRepository) BeginBatch(ctx context.Context) (Batch, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin batch: %w", err)
	}
	return &sqliteBatch{tx: tx}, nil
}

// Batch is a scoped insert transaction.
type Batch interface {
	Add(ctx context.Context, e core.Expense) (int64, error)
	Commit() error
	Rollback() error
}

type sqliteBatch struct {
	tx    *sql.Tx
	stmt  *sql.Stmt
	count int
}

func (b *sqliteBatch) Add(ctx context.Context, e core.Expense) (int64, error) {
	if b.stmt == nil {
		stmt, err := b.tx.PrepareContext(ctx, insertSQL)
		if err != nil {
			return 0, fmt.Errorf("prepare insert: %w", err)
		}
		b.stmt = stmt
	}
	res, err := b.stmt.ExecContext(ctx, e.Date, e.Category, e.Amount, nullString(e.Comment))
	if err != nil {
		return 0, fmt.Errorf("insert expense: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read inserted id: %w", err)
	}
	b.count++
	return id, nil
}

func (b *sqliteBatch) Commit() error {
	b.closeStmt()
	if err := b.tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	slog.Debug("Expense batch committed", "rows", b.count)
	return nil
}

func (b *sqliteBatch) Rollback() error {
	b.closeStmt()
	err := b.tx.Rollback()
	if err == nil || errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return fmt.Errorf("rollback batch: %w", err)
}

func (b *sqliteBatch) closeStmt() {
	if b.stmt != nil {
		b.stmt.Close()
		b.stmt = nil
	}
}

const insertSQL = "INSERT INTO expenses (date, category, amount, comment) VALUES (?, ?, ?, ?)"

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertExpense(ctx context.Context, db execer, e core.Expense) (int64, error) {
	res, err := db.ExecContext(ctx, insertSQL, e.Date, e.Category, e.Amount, nullString(e.Comment))
	if err != nil {
		return 0, fmt.Errorf("insert expense: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read inserted id: %w", err)
	}
	return id, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExpense(s rowScanner) (core.Expense, error) {
	var (
		e       core.Expense
		comment sql.NullString
	)
	if err := s.Scan(&e.ID, &e.Date, &e.Category, &e.Amount, &comment); err != nil {
		return core.Expense{}, err
	}
	if comment.Valid {
		e.Comment = core.StringPtr(comment.String)
	}
	return e, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func expectAffected(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("expense %d: %w", id, ErrNotFound)
	}
	return nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
