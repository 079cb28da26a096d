// Package runner executes learner SQL against a throwaway in-memory dataset.
package runner

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/verte-zerg/sqlquest/internal/logx"
	"github.com/verte-zerg/sqlquest/internal/model"
	_ "modernc.org/sqlite"
)

// DefaultDriver is the pure Go SQLite driver.
const DefaultDriver = "sqlite"

var drivers = map[string]bool{DefaultDriver: true}

// Drivers lists the database/sql driver names the runner can use.
func Drivers() []string {
	out := make([]string, 0, len(drivers))
	for name := range drivers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ValidateDriver reports whether name is a usable driver.
func ValidateDriver(name string) error {
	if drivers[name] {
		return nil
	}
	return fmt.Errorf("unsupported driver %q (available: %s)", name, strings.Join(Drivers(), ", "))
}

// Runner owns at most one in-memory session. It is not safe for concurrent use.
type Runner struct {
	driver string
	db     *sql.DB
}

// New creates a runner for the named driver. An empty name selects DefaultDriver.
func New(driver string) (*Runner, error) {
	if driver == "" {
		driver = DefaultDriver
	}
	if err := ValidateDriver(driver); err != nil {
		return nil, err
	}
	return &Runner{driver: driver}, nil
}

// Driver returns the driver name in use.
func (r *Runner) Driver() string {
	return r.driver
}

// HasSession reports whether a dataset is loaded.
func (r *Runner) HasSession() bool {
	return r.db != nil
}

// Reset discards the current session and loads setup into a fresh dataset.
// The whole script runs in one transaction.
func (r *Runner) Reset(ctx context.Context, setup string) model.ExecutionResult {
	if err := r.Close(); err != nil {
		logx.Errf("failed to close previous session: %v\n", err)
	}

	db, err := sql.Open(r.driver, ":memory:")
	if err != nil {
		return errorResult(fmt.Sprintf("failed to open dataset: %v", err), model.ErrorOther, "")
	}
	// Every pooled connection would get its own empty :memory: database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	statements := SplitStatements(setup)
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		closeQuietly(db)
		return errorResult(fmt.Sprintf("failed to begin setup: %v", err), model.ErrorOther, "")
	}
	for i, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				logx.Errf("failed to rollback setup: %v\n", rbErr)
			}
			closeQuietly(db)
			msg, class, _ := normalizeError(err)
			return errorResult(fmt.Sprintf("setup statement %d failed: %s", i+1, msg), class, "")
		}
	}
	if err := tx.Commit(); err != nil {
		closeQuietly(db)
		return errorResult(fmt.Sprintf("failed to commit setup: %v", err), model.ErrorOther, "")
	}

	r.db = db
	return model.ExecutionResult{
		Success: true,
		Kind:    model.ResultStatus,
		Message: fmt.Sprintf("Dataset ready (%d statements)", len(statements)),
	}
}

// Run executes input against the current dataset. Statements before the last
// one are executed for their side effects; the result describes the last one.
// Everything runs in one transaction that is rolled back on failure.
func (r *Runner) Run(ctx context.Context, input string) model.ExecutionResult {
	if r.db == nil {
		return errorResult("no dataset is loaded", model.ErrorNoSession,
			"Select an exercise first so its dataset can be prepared.")
	}
	statements := SplitStatements(input)
	if len(statements) == 0 {
		return errorResult("nothing to run", model.ErrorSyntax, "Type a SQL statement first.")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errorResult(fmt.Sprintf("failed to begin transaction: %v", err), model.ErrorOther, "")
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			logx.Errf("failed to rollback statement: %v\n", rbErr)
		}
	}()

	last := statements[len(statements)-1]
	for _, stmt := range statements[:len(statements)-1] {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return r.failure(ctx, tx, err)
		}
	}

	var result model.ExecutionResult
	if ReturnsRows(last) {
		result, err = query(ctx, tx, last)
	} else {
		result, err = exec(ctx, tx, last)
	}
	if err != nil {
		return r.failure(ctx, tx, err)
	}
	if err := tx.Commit(); err != nil {
		return errorResult(fmt.Sprintf("failed to commit: %v", err), model.ErrorOther, "")
	}
	committed = true
	return result
}

// Close tears down the session. It is safe to call repeatedly.
func (r *Runner) Close() error {
	if r.db == nil {
		return nil
	}
	db := r.db
	r.db = nil
	if err := db.Close(); err != nil {
		return fmt.Errorf("failed to close dataset: %w", err)
	}
	return nil
}

// Tables lists the user tables of the current dataset.
func (r *Runner) Tables(ctx context.Context) ([]string, error) {
	if r.db == nil {
		return nil, fmt.Errorf("no dataset is loaded")
	}
	return listTables(ctx, r.db)
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func listTables(ctx context.Context, q queryer) ([]string, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logx.Errf("failed to close rows: %v\n", err)
		}
	}()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	return names, nil
}

func (r *Runner) failure(ctx context.Context, tx *sql.Tx, err error) model.ExecutionResult {
	msg, class, hint := normalizeError(err)
	if class == model.ErrorUnknownTable {
		// The transaction is still usable after a statement error.
		if names, listErr := listTables(ctx, tx); listErr == nil && len(names) > 0 {
			hint = fmt.Sprintf("%s Available tables: %s.", hint, strings.Join(names, ", "))
		}
	}
	return errorResult(msg, class, hint)
}

func query(ctx context.Context, tx *sql.Tx, stmt string) (model.ExecutionResult, error) {
	rows, err := tx.QueryContext(ctx, stmt)
	if err != nil {
		return model.ExecutionResult{}, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logx.Errf("failed to close rows: %v\n", err)
		}
	}()

	columns, err := rows.Columns()
	if err != nil {
		return model.ExecutionResult{}, err
	}
	data := make([][]string, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return model.ExecutionResult{}, err
		}
		row := make([]string, len(columns))
		for i, v := range values {
			row[i] = FormatValue(v)
		}
		data = append(data, row)
	}
	if err := rows.Err(); err != nil {
		return model.ExecutionResult{}, err
	}
	return model.ExecutionResult{
		Success: true,
		Kind:    model.ResultRows,
		Columns: columns,
		Rows:    data,
		Message: fmt.Sprintf("%d %s", len(data), plural(len(data), "row", "rows")),
	}, nil
}

func exec(ctx context.Context, tx *sql.Tx, stmt string) (model.ExecutionResult, error) {
	res, err := tx.ExecContext(ctx, stmt)
	if err != nil {
		return model.ExecutionResult{}, err
	}
	keyword := LeadingKeyword(stmt)
	if keyword == "" {
		keyword = "Statement"
	}
	msg := keyword + " completed"
	switch keyword {
	case "INSERT", "UPDATE", "DELETE", "REPLACE":
		if n, err := res.RowsAffected(); err == nil {
			msg = fmt.Sprintf("%s (%d %s affected)", msg, n, plural(int(n), "row", "rows"))
		}
	}
	return model.ExecutionResult{Success: true, Kind: model.ResultStatus, Message: msg}, nil
}

// FormatValue renders a scanned value as text. NULL becomes model.NullSentinel.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return model.NullSentinel
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case []byte:
		return string(val)
	case string:
		return val
	case bool:
		if val {
			return "1"
		}
		return "0"
	case time.Time:
		return formatTime(val)
	default:
		return fmt.Sprint(val)
	}
}

// formatTime undoes the driver's parsing of DATE and DATETIME columns so the
// stored text shows as written.
func formatTime(t time.Time) string {
	h, m, sec := t.Clock()
	if h == 0 && m == 0 && sec == 0 && t.Nanosecond() == 0 {
		return t.Format(time.DateOnly)
	}
	return t.Format("2006-01-02 15:04:05.999999999")
}

var (
	nearPattern    = regexp.MustCompile(`near "((?:[^"]|"")*)": syntax error`)
	tablePattern   = regexp.MustCompile(`no such table: ([^\s()]+)`)
	columnPattern  = regexp.MustCompile(`no such column: ([^\s()]+)`)
	prefixPattern  = regexp.MustCompile(`^SQL logic error: `)
	codeSuffixExpr = regexp.MustCompile(`\s*\(\d+\)$`)
)

// normalizeError strips driver noise from an engine error and classifies it.
func normalizeError(err error) (string, model.ErrorClass, string) {
	raw := err.Error()
	clean := codeSuffixExpr.ReplaceAllString(prefixPattern.ReplaceAllString(raw, ""), "")

	if m := tablePattern.FindStringSubmatch(raw); m != nil {
		return fmt.Sprintf("Unknown table %q", m[1]), model.ErrorUnknownTable,
			"Check the table names in your query."
	}
	if m := columnPattern.FindStringSubmatch(raw); m != nil {
		return fmt.Sprintf("Unknown column %q", m[1]), model.ErrorUnknownColumn,
			"Check the column names and the table they belong to."
	}
	if m := nearPattern.FindStringSubmatch(raw); m != nil {
		return fmt.Sprintf("Syntax error near %q", m[1]), model.ErrorSyntax,
			fmt.Sprintf("Look at the SQL around %q: a keyword may be misspelled or missing.", m[1])
	}
	if strings.Contains(raw, "incomplete input") {
		return "Syntax error: the statement is incomplete", model.ErrorSyntax,
			"The statement ends too early. Check for a missing clause or closing parenthesis."
	}
	return clean, model.ErrorOther, ""
}

func errorResult(msg string, class model.ErrorClass, hint string) model.ExecutionResult {
	return model.ExecutionResult{
		Success:    false,
		Kind:       model.ResultError,
		Message:    msg,
		ErrorClass: class,
		Hint:       hint,
	}
}

func closeQuietly(db *sql.DB) {
	if err := db.Close(); err != nil {
		logx.Errf("failed to close dataset: %v\n", err)
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
