package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/verte-zerg/sqlquest/internal/model"
	"github.com/verte-zerg/sqlquest/internal/progress"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "sqlquest.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st
}

// Store must satisfy the tracker's persistence contract.
var _ progress.Persister = (*Store)(nil)

func TestProgressRoundTrip(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()

	state, err := st.LoadProgress(ctx, "acc")
	if err != nil {
		t.Fatalf("load empty: %v", err)
	}
	if state.Crystals != 0 || len(state.CompletedExercises) != 0 {
		t.Fatalf("expected empty state, got %+v", state)
	}

	total, xp, err := st.SaveRewards(ctx, "acc", 10, 4)
	if err != nil {
		t.Fatalf("save rewards: %v", err)
	}
	if total != 10 || xp != 4 {
		t.Fatalf("unexpected balances %d/%d", total, xp)
	}
	if err := st.SaveExerciseComplete(ctx, "acc", 3); err != nil {
		t.Fatalf("save exercise: %v", err)
	}
	if err := st.SaveExerciseComplete(ctx, "acc", 3); err != nil {
		t.Fatalf("save exercise twice: %v", err)
	}
	if err := st.SaveLessonComplete(ctx, "acc", "1"); err != nil {
		t.Fatalf("save lesson: %v", err)
	}

	state, err = st.LoadProgress(ctx, "acc")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if state.Crystals != 10 || state.Experience != 4 {
		t.Fatalf("unexpected balances %+v", state)
	}
	if !state.CompletedExercises[3] || !state.CompletedLessons["1"] {
		t.Fatalf("missing completion flags: %+v", state)
	}

	other, err := st.LoadProgress(ctx, "other")
	if err != nil {
		t.Fatalf("load other: %v", err)
	}
	if other.Crystals != 0 || other.CompletedLessons["1"] {
		t.Fatalf("progress leaked across accounts: %+v", other)
	}
}

func TestSaveRewardsConcurrent(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := st.SaveRewards(ctx, "acc", 5, 1); err != nil {
				t.Errorf("save rewards: %v", err)
			}
		}()
	}
	wg.Wait()
	state, err := st.LoadProgress(ctx, "acc")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if state.Crystals != 100 || state.Experience != 20 {
		t.Fatalf("lost updates: %d/%d", state.Crystals, state.Experience)
	}
}

func TestClaimDailyReward(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()
	day := 24 * time.Hour
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	first, err := st.ClaimDailyReward(ctx, "acc", start, day, 20)
	if err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if !first.Granted || !first.First || first.Crystals != 20 || first.Streak != 1 {
		t.Fatalf("unexpected first claim %+v", first)
	}

	same, err := st.ClaimDailyReward(ctx, "acc", start.Add(3*time.Hour), day, 20)
	if err != nil {
		t.Fatalf("same day claim: %v", err)
	}
	if same.Granted || same.Crystals != 20 {
		t.Fatalf("expected no reward within the interval, got %+v", same)
	}

	next, err := st.ClaimDailyReward(ctx, "acc", start.Add(25*time.Hour), day, 20)
	if err != nil {
		t.Fatalf("next day claim: %v", err)
	}
	if !next.Granted || next.First || next.Crystals != 40 || next.Streak != 2 {
		t.Fatalf("unexpected next day claim %+v", next)
	}

	late, err := st.ClaimDailyReward(ctx, "acc", start.Add(25*time.Hour+3*day), day, 20)
	if err != nil {
		t.Fatalf("late claim: %v", err)
	}
	if !late.Granted || late.Streak != 1 || late.Crystals != 60 {
		t.Fatalf("expected streak restart, got %+v", late)
	}

	state, _ := st.LoadProgress(ctx, "acc")
	if state.Streak != 1 || !state.LastLogin.Equal(start.Add(25*time.Hour+3*day)) {
		t.Fatalf("unexpected stored state %+v", state)
	}
}

func TestAccounts(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()
	acc := model.Account{
		ID:           "id-1",
		Email:        "Ada@Example.com ",
		Username:     "ada",
		PasswordHash: "hash",
		CreatedAt:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := st.CreateAccount(ctx, acc); err != nil {
		t.Fatalf("create: %v", err)
	}
	dup := acc
	dup.ID = "id-2"
	dup.Email = "ada@example.com"
	if err := st.CreateAccount(ctx, dup); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	got, err := st.AccountByEmail(ctx, "ADA@example.com")
	if err != nil {
		t.Fatalf("by email: %v", err)
	}
	if got.ID != "id-1" || got.Email != "ada@example.com" || !got.CreatedAt.Equal(acc.CreatedAt) {
		t.Fatalf("unexpected account %+v", got)
	}
	if _, err := st.AccountByID(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := st.UpdateProfile(ctx, "id-1", "ada2", "owl"); err != nil {
		t.Fatalf("update profile: %v", err)
	}
	got, _ = st.AccountByID(ctx, "id-1")
	if got.Username != "ada2" || got.AvatarID != "owl" {
		t.Fatalf("profile not updated: %+v", got)
	}
	if err := st.UpdateProfile(ctx, "missing", "x", ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAttempts(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		a := model.Attempt{AccountID: "acc", ExerciseID: i + 1, Passed: i%2 == 0, At: base.Add(time.Duration(i) * time.Hour)}
		if err := st.RecordAttempt(ctx, a); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	if err := st.RecordAttempt(ctx, model.Attempt{AccountID: "other", ExerciseID: 1, At: base}); err != nil {
		t.Fatalf("record other: %v", err)
	}

	all, err := st.ListAttempts(ctx, model.StatsConfig{AccountID: "acc"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 4 || all[0].ExerciseID != 1 || !all[0].Passed || all[1].Passed {
		t.Fatalf("unexpected attempts %+v", all)
	}

	since := base.Add(2 * time.Hour)
	recent, err := st.ListAttempts(ctx, model.StatsConfig{AccountID: "acc", Since: &since})
	if err != nil {
		t.Fatalf("list since: %v", err)
	}
	if len(recent) != 2 || recent[0].ExerciseID != 3 {
		t.Fatalf("unexpected recent attempts %+v", recent)
	}
}

func TestTrackerPersistsThroughStore(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()
	tr, err := progress.Load(ctx, st, "acc")
	if err != nil {
		t.Fatalf("load tracker: %v", err)
	}
	if err := tr.AddRewards(ctx, 15, 15); err != nil {
		t.Fatalf("add rewards: %v", err)
	}
	tr.MarkExerciseComplete(ctx, 5)
	tr.MarkLessonComplete(ctx, "2")

	reloaded, err := progress.Load(ctx, st, "acc")
	if err != nil {
		t.Fatalf("reload tracker: %v", err)
	}
	if reloaded.RewardBalance() != 15 || !reloaded.IsExerciseComplete(5) {
		t.Fatalf("unexpected reloaded state %+v", reloaded.Snapshot())
	}
	if ids := reloaded.CompletedLessonIDs(); len(ids) != 1 || ids[0] != "2" {
		t.Fatalf("unexpected lessons %v", ids)
	}
}
