package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"quiz-live/internal/game"
)

// ResultRepo stores finalized results and per-account stats.
type ResultRepo struct {
	db *gorm.DB
}

func NewResultRepo(conn *gorm.DB) *ResultRepo {
	return &ResultRepo{db: conn}
}

// SaveResult upserts by game code; a re-hosted code replaces its earlier
// result.
func (r *ResultRepo) SaveResult(ctx context.Context, result game.Result) error {
	record, err := resultRecord(result)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "game_code"}},
			DoUpdates: clause.AssignmentColumns([]string{"host_account_id", "players", "created_at", "updated_at"}),
		}).
		Create(&record).Error
}

func (r *ResultRepo) LoadResult(ctx context.Context, code string) (*game.Result, bool, error) {
	var record Result
	err := r.db.WithContext(ctx).Where("game_code = ?", code).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	result, err := fromResultRecord(record)
	if err != nil {
		return nil, false, err
	}
	return result, true, nil
}

// RecordGame adds one session to an account's running totals.
func (r *ResultRepo) RecordGame(ctx context.Context, accountID string, stat game.GameStat) error {
	now := time.Now().UTC()
	row := UserStat{
		AccountID:   accountID,
		GamesPlayed: 1,
		TotalScore:  int64(stat.Score),
		Correct:     stat.Correct,
		Wrong:       stat.Wrong,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "account_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"games_played": gorm.Expr("user_stats.games_played + 1"),
				"total_score":  gorm.Expr("user_stats.total_score + ?", stat.Score),
				"correct":      gorm.Expr("user_stats.correct + ?", stat.Correct),
				"wrong":        gorm.Expr("user_stats.wrong + ?", stat.Wrong),
				"updated_at":   now,
			}),
		}).
		Create(&row).Error
}

func (r *ResultRepo) Stats(ctx context.Context, accountID string) (UserStat, bool, error) {
	var row UserStat
	err := r.db.WithContext(ctx).Where("account_id = ?", accountID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return UserStat{}, false, nil
	}
	if err != nil {
		return UserStat{}, false, err
	}
	return row, true, nil
}

func resultRecord(result game.Result) (Result, error) {
	data, err := json.Marshal(result.Players)
	if err != nil {
		return Result{}, fmt.Errorf("encode result %s: %w", result.GameCode, err)
	}
	return Result{
		GameCode:      result.GameCode,
		HostAccountID: result.HostAccountID,
		Players:       datatypes.JSON(data),
		CreatedAt:     result.CreatedAt,
		UpdatedAt:     result.CreatedAt,
	}, nil
}

func fromResultRecord(record Result) (*game.Result, error) {
	var players []game.PlayerSummary
	if len(record.Players) > 0 {
		if err := json.Unmarshal(record.Players, &players); err != nil {
			return nil, fmt.Errorf("decode result %s: %w", record.GameCode, err)
		}
	}
	return &game.Result{
		GameCode:      record.GameCode,
		HostAccountID: record.HostAccountID,
		Players:       players,
		CreatedAt:     record.CreatedAt,
	}, nil
}
