package db

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"gorm.io/gorm"

	"quiz-live/internal/game"
)

// openTestDB connects to TEST_DATABASE_URL and migrates it.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("skipping test; TEST_DATABASE_URL is not set")
	}
	conn, err := Open(dsn, PoolConfig{MaxOpenConns: 4})
	if err != nil {
		t.Skipf("skipping test; database unavailable: %v", err)
	}
	if err := Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

func TestRoomStoreOptimisticWrites(t *testing.T) {
	conn := openTestDB(t)
	ctx := context.Background()
	store := NewRoomStore(conn)
	code := game.NewCode()
	t.Cleanup(func() { _ = store.Delete(ctx, code) })

	room := &game.Room{Code: code, State: game.StateLobby, Players: map[string]*game.Player{}, Viewers: map[string]struct{}{}}
	if err := store.Save(ctx, room); err != nil {
		t.Fatalf("create: %v", err)
	}
	duplicate := &game.Room{Code: code, State: game.StateLobby}
	if err := store.Save(ctx, duplicate); !errors.Is(err, game.ErrVersionConflict) {
		t.Fatalf("expected create race to conflict, got %v", err)
	}

	a, _, err := store.Get(ctx, code)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	b, _, _ := store.Get(ctx, code)
	a.State = game.StatePreparing
	if err := store.Save(ctx, a); err != nil {
		t.Fatalf("save a: %v", err)
	}
	if err := store.Save(ctx, b); !errors.Is(err, game.ErrVersionConflict) {
		t.Fatalf("expected stale save to conflict, got %v", err)
	}
	current, ok, _ := store.Get(ctx, code)
	if !ok || current.State != game.StatePreparing || current.Version != 2 {
		t.Fatalf("unexpected stored room: %#v", current)
	}
}

func TestResultRepoUpsertAndStats(t *testing.T) {
	conn := openTestDB(t)
	ctx := context.Background()
	repo := NewResultRepo(conn)
	code := game.NewCode()
	account := "acct-" + code
	t.Cleanup(func() {
		conn.Where("game_code = ?", code).Delete(&Result{})
		conn.Where("account_id = ?", account).Delete(&UserStat{})
	})

	first := game.Result{GameCode: code, HostAccountID: "host-1", CreatedAt: time.Now().UTC()}
	if err := repo.SaveResult(ctx, first); err != nil {
		t.Fatalf("save: %v", err)
	}
	second := game.Result{GameCode: code, HostAccountID: "host-2", CreatedAt: time.Now().UTC()}
	if err := repo.SaveResult(ctx, second); err != nil {
		t.Fatalf("resave: %v", err)
	}
	loaded, ok, err := repo.LoadResult(ctx, code)
	if err != nil || !ok || loaded.HostAccountID != "host-2" {
		t.Fatalf("expected replaced result, got %#v ok=%v err=%v", loaded, ok, err)
	}

	for i := 0; i < 2; i++ {
		if err := repo.RecordGame(ctx, account, game.GameStat{GameCode: code, Score: 500, Correct: 1, Wrong: 2}); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	stat, ok, err := repo.Stats(ctx, account)
	if err != nil || !ok {
		t.Fatalf("stats: ok=%v err=%v", ok, err)
	}
	if stat.GamesPlayed != 2 || stat.TotalScore != 1000 || stat.Correct != 2 || stat.Wrong != 4 {
		t.Fatalf("unexpected stats: %#v", stat)
	}
}

func TestQuestionRepoOrdering(t *testing.T) {
	conn := openTestDB(t)
	ctx := context.Background()
	code := game.NewCode()
	t.Cleanup(func() {
		var quiz Quiz
		if conn.Where("game_code = ?", code).First(&quiz).Error == nil {
			conn.Exec("DELETE FROM answers WHERE question_id IN (SELECT id FROM questions WHERE quiz_id = ?)", quiz.ID)
			conn.Where("quiz_id = ?", quiz.ID).Delete(&Question{})
			conn.Delete(&quiz)
		}
	})

	records := []QuestionRecord{
		{Code: code, Text: "first", Duration: 10, Answers: []AnswerRecord{{Text: "x", Correct: true}, {Text: "y"}}},
		{Code: code, Text: "second", Duration: 15, Answers: []AnswerRecord{{Text: "z"}, {Text: "w", Correct: true}}},
	}
	if err := SaveQuiz(ctx, conn, code, "Sample", records); err != nil {
		t.Fatalf("save quiz: %v", err)
	}
	questions, err := NewQuestionRepo(conn).Questions(ctx, code)
	if err != nil {
		t.Fatalf("questions: %v", err)
	}
	if len(questions) != 2 || questions[0].Text != "first" || questions[1].Duration != 15 {
		t.Fatalf("unexpected questions: %#v", questions)
	}
	if !questions[1].Answers[1].Correct || questions[1].Answers[1].Text != "w" {
		t.Fatalf("unexpected answers: %#v", questions[1].Answers)
	}

	missing, err := NewQuestionRepo(conn).Questions(ctx, "ZZZZZZ")
	if err != nil || missing != nil {
		t.Fatalf("expected no questions for unknown code, got %#v %v", missing, err)
	}
}
