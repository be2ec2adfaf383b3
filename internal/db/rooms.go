package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgconn"
	pgxconn "github.com/jackc/pgx/v5/pgconn"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"quiz-live/internal/game"
)

// RoomStore keeps room state in Postgres so several server processes can
// share a game code.
type RoomStore struct {
	db *gorm.DB
}

func NewRoomStore(conn *gorm.DB) *RoomStore {
	return &RoomStore{db: conn}
}

func (s *RoomStore) Get(ctx context.Context, code string) (*game.Room, bool, error) {
	var row RoomState
	err := s.db.WithContext(ctx).Where("code = ?", code).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	room, err := game.DecodeRoom(row.State)
	if err != nil {
		return nil, false, fmt.Errorf("decode room %s: %w", code, err)
	}
	room.Version = row.Version
	return room, true, nil
}

func (s *RoomStore) Save(ctx context.Context, room *game.Room) error {
	current := room.Version
	room.Version = current + 1
	data, err := json.Marshal(room)
	if err != nil {
		room.Version = current
		return fmt.Errorf("encode room %s: %w", room.Code, err)
	}
	now := time.Now().UTC()
	if current == 0 {
		row := RoomState{Code: room.Code, Version: room.Version, State: datatypes.JSON(data), UpdatedAt: now}
		if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
			room.Version = current
			if isUniqueViolation(err) {
				return game.ErrVersionConflict
			}
			return err
		}
		return nil
	}
	res := s.db.WithContext(ctx).
		Model(&RoomState{}).
		Where("code = ? AND version = ?", room.Code, current).
		Updates(map[string]any{
			"version":    room.Version,
			"state":      datatypes.JSON(data),
			"updated_at": now,
		})
	if res.Error != nil {
		room.Version = current
		return res.Error
	}
	if res.RowsAffected == 0 {
		room.Version = current
		return game.ErrVersionConflict
	}
	return nil
}

func (s *RoomStore) Delete(ctx context.Context, code string) error {
	return s.db.WithContext(ctx).Where("code = ?", code).Delete(&RoomState{}).Error
}

func (s *RoomStore) List(ctx context.Context) ([]string, error) {
	var codes []string
	err := s.db.WithContext(ctx).Model(&RoomState{}).Order("code").Pluck("code", &codes).Error
	return codes, err
}

// isUniqueViolation recognizes errors from both pgconn generations; the
// gorm driver reports through pgx v5.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var pgxErr *pgxconn.PgError
	if errors.As(err, &pgxErr) {
		return pgxErr.Code == "23505"
	}
	return false
}
