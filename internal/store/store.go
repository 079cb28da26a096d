// Package store handles SQLite persistence.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/verte-zerg/sqlquest/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

var (
	// ErrNotFound is returned when a requested account does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when an account with the same email exists.
	ErrConflict = errors.New("already exists")
)

// Store wraps SQLite access for accounts, progress and attempts.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}
	// Serialize writers; SQLite allows one at a time anyway.
	db.SetMaxOpenConns(1)
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			username TEXT NOT NULL,
			password_hash TEXT NOT NULL,
			avatar_id TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS progress (
			account_id TEXT PRIMARY KEY,
			crystals INTEGER NOT NULL DEFAULT 0,
			experience INTEGER NOT NULL DEFAULT 0,
			streak INTEGER NOT NULL DEFAULT 0,
			last_login TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS completed_exercises (
			account_id TEXT NOT NULL,
			exercise_id INTEGER NOT NULL,
			completed_at TEXT NOT NULL,
			PRIMARY KEY (account_id, exercise_id)
		);`,
		`CREATE TABLE IF NOT EXISTS completed_lessons (
			account_id TEXT NOT NULL,
			lesson_id TEXT NOT NULL,
			completed_at TEXT NOT NULL,
			PRIMARY KEY (account_id, lesson_id)
		);`,
		`CREATE TABLE IF NOT EXISTS attempts (
			id INTEGER PRIMARY KEY,
			account_id TEXT NOT NULL,
			exercise_id INTEGER NOT NULL,
			passed INTEGER NOT NULL,
			at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_attempts_account_at ON attempts(account_id, at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func ensureProgress(ctx context.Context, ex execer, accountID string) error {
	_, err := ex.ExecContext(ctx, `INSERT OR IGNORE INTO progress (account_id) VALUES (?)`, accountID)
	return err
}

func rollback(tx *sql.Tx) {
	if rerr := tx.Rollback(); rerr != nil && !errors.Is(rerr, sql.ErrTxDone) {
		// Best-effort rollback.
		_ = rerr
	}
}

// LoadProgress reads balances and completion flags of an account. Unknown
// accounts get an empty state.
func (s *Store) LoadProgress(ctx context.Context, accountID string) (model.ProgressState, error) {
	state := model.ProgressState{
		AccountID:          accountID,
		CompletedLessons:   map[string]bool{},
		CompletedExercises: map[int]bool{},
	}

	var lastLogin sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT crystals, experience, streak, last_login FROM progress WHERE account_id = ?`, accountID,
	).Scan(&state.Crystals, &state.Experience, &state.Streak, &lastLogin)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return model.ProgressState{}, err
	}
	if lastLogin.Valid && lastLogin.String != "" {
		parsed, err := time.Parse(time.RFC3339Nano, lastLogin.String)
		if err != nil {
			return model.ProgressState{}, err
		}
		state.LastLogin = parsed
	}

	exerciseIDs, err := s.completedExercises(ctx, accountID)
	if err != nil {
		return model.ProgressState{}, err
	}
	for _, id := range exerciseIDs {
		state.CompletedExercises[id] = true
	}

	lessonIDs, err := s.completedLessons(ctx, accountID)
	if err != nil {
		return model.ProgressState{}, err
	}
	for _, id := range lessonIDs {
		state.CompletedLessons[id] = true
	}
	return state, nil
}

func (s *Store) completedExercises(ctx context.Context, accountID string) ([]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT exercise_id FROM completed_exercises WHERE account_id = ? ORDER BY exercise_id`, accountID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()
	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *Store) completedLessons(ctx context.Context, accountID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT lesson_id FROM completed_lessons WHERE account_id = ? ORDER BY lesson_id`, accountID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

// SaveRewards adds both deltas in one transaction and returns the new balances.
func (s *Store) SaveRewards(ctx context.Context, accountID string, crystals, experience int) (int, int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, err
	}
	defer rollback(tx)

	if err := ensureProgress(ctx, tx, accountID); err != nil {
		return 0, 0, err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE progress SET crystals = crystals + ?, experience = experience + ? WHERE account_id = ?`,
		crystals, experience, accountID); err != nil {
		return 0, 0, err
	}
	var total, xp int
	if err := tx.QueryRowContext(ctx,
		`SELECT crystals, experience FROM progress WHERE account_id = ?`, accountID,
	).Scan(&total, &xp); err != nil {
		return 0, 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, 0, err
	}
	return total, xp, nil
}

// SaveLessonComplete records a lesson override. Repeated calls are no-ops.
func (s *Store) SaveLessonComplete(ctx context.Context, accountID, lessonID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO completed_lessons (account_id, lesson_id, completed_at) VALUES (?, ?, ?)`,
		accountID, lessonID, time.Now().UTC().Format(time.RFC3339Nano))
	return err
}

// SaveExerciseComplete records an exercise completion. Repeated calls are no-ops.
func (s *Store) SaveExerciseComplete(ctx context.Context, accountID string, exerciseID int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO completed_exercises (account_id, exercise_id, completed_at) VALUES (?, ?, ?)`,
		accountID, exerciseID, time.Now().UTC().Format(time.RFC3339Nano))
	return err
}

// DailyReward describes the result of ClaimDailyReward.
type DailyReward struct {
	Granted  bool
	First    bool
	Crystals int
	Streak   int
}

// ClaimDailyReward grants amount crystals when the last login is older than
// interval (or missing). The streak continues when the previous claim is less
// than two intervals old and restarts otherwise.
func (s *Store) ClaimDailyReward(ctx context.Context, accountID string, now time.Time, interval time.Duration, amount int) (DailyReward, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return DailyReward{}, err
	}
	defer rollback(tx)

	if err := ensureProgress(ctx, tx, accountID); err != nil {
		return DailyReward{}, err
	}
	var (
		crystals  int
		streak    int
		lastLogin sql.NullString
	)
	if err := tx.QueryRowContext(ctx,
		`SELECT crystals, streak, last_login FROM progress WHERE account_id = ?`, accountID,
	).Scan(&crystals, &streak, &lastLogin); err != nil {
		return DailyReward{}, err
	}

	result := DailyReward{Crystals: crystals, Streak: streak}
	var last time.Time
	if lastLogin.Valid && lastLogin.String != "" {
		last, err = time.Parse(time.RFC3339Nano, lastLogin.String)
		if err != nil {
			return DailyReward{}, err
		}
	}
	if !last.IsZero() && now.Sub(last) < interval {
		return result, nil
	}

	result.Granted = true
	result.First = last.IsZero()
	result.Crystals = crystals + amount
	if last.IsZero() || now.Sub(last) > 2*interval {
		result.Streak = 1
	} else {
		result.Streak = streak + 1
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE progress SET crystals = crystals + ?, streak = ?, last_login = ? WHERE account_id = ?`,
		amount, result.Streak, now.UTC().Format(time.RFC3339Nano), accountID); err != nil {
		return DailyReward{}, err
	}
	if err := tx.Commit(); err != nil {
		return DailyReward{}, err
	}
	return result, nil
}

// CreateAccount inserts a new account. ErrConflict is returned for a taken email.
func (s *Store) CreateAccount(ctx context.Context, acc model.Account) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer rollback(tx)

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM accounts WHERE email = ?`, normalizeEmail(acc.Email)).Scan(&exists)
	switch {
	case err == nil:
		return fmt.Errorf("account %s: %w", acc.Email, ErrConflict)
	case !errors.Is(err, sql.ErrNoRows):
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO accounts (id, email, username, password_hash, avatar_id, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		acc.ID, normalizeEmail(acc.Email), acc.Username, acc.PasswordHash, acc.AvatarID,
		acc.CreatedAt.UTC().Format(time.RFC3339Nano)); err != nil {
		return err
	}
	if err := ensureProgress(ctx, tx, acc.ID); err != nil {
		return err
	}
	return tx.Commit()
}

// AccountByEmail looks an account up by email.
func (s *Store) AccountByEmail(ctx context.Context, email string) (model.Account, error) {
	return s.account(ctx, `email = ?`, normalizeEmail(email))
}

// AccountByID looks an account up by id.
func (s *Store) AccountByID(ctx context.Context, id string) (model.Account, error) {
	return s.account(ctx, `id = ?`, id)
}

func (s *Store) account(ctx context.Context, where string, arg any) (model.Account, error) {
	var (
		acc       model.Account
		createdAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, username, password_hash, avatar_id, created_at FROM accounts WHERE `+where, arg,
	).Scan(&acc.ID, &acc.Email, &acc.Username, &acc.PasswordHash, &acc.AvatarID, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Account{}, ErrNotFound
	}
	if err != nil {
		return model.Account{}, err
	}
	parsed, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return model.Account{}, err
	}
	acc.CreatedAt = parsed
	return acc, nil
}

// UpdateProfile changes the display fields of an account.
func (s *Store) UpdateProfile(ctx context.Context, accountID, username, avatarID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE accounts SET username = ?, avatar_id = ? WHERE id = ?`, username, avatarID, accountID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CompletedLessons lists the lessons with the completion override set.
func (s *Store) CompletedLessons(ctx context.Context, accountID string) ([]string, error) {
	return s.completedLessons(ctx, accountID)
}

// RecordAttempt stores one graded submission.
func (s *Store) RecordAttempt(ctx context.Context, a model.Attempt) error {
	passed := 0
	if a.Passed {
		passed = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO attempts (account_id, exercise_id, passed, at) VALUES (?, ?, ?, ?)`,
		a.AccountID, a.ExerciseID, passed, a.At.UTC().Format(time.RFC3339Nano))
	return err
}

// ListAttempts returns attempts filtered by stats config, oldest first.
func (s *Store) ListAttempts(ctx context.Context, cfg model.StatsConfig) ([]model.Attempt, error) {
	clauses := []string{"1=1"}
	args := []any{}
	if cfg.AccountID != "" {
		clauses = append(clauses, "account_id = ?")
		args = append(args, cfg.AccountID)
	}
	if cfg.Since != nil {
		clauses = append(clauses, "at >= ?")
		args = append(args, cfg.Since.UTC().Format(time.RFC3339Nano))
	}
	query := fmt.Sprintf(`SELECT account_id, exercise_id, passed, at
		FROM attempts
		WHERE %s
		ORDER BY at ASC, id ASC`, strings.Join(clauses, " AND "))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var attempts []model.Attempt
	for rows.Next() {
		var (
			a      model.Attempt
			passed int
			at     string
		)
		if err := rows.Scan(&a.AccountID, &a.ExerciseID, &passed, &at); err != nil {
			return nil, err
		}
		parsed, err := time.Parse(time.RFC3339Nano, at)
		if err != nil {
			return nil, err
		}
		a.Passed = passed != 0
		a.At = parsed
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return attempts, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
