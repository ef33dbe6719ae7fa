// Package store persists prediction records in SQLite through gorm. The table is append-only.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	DefaultLimit = 50
	MaxLimit     = 500
)

var ErrNotFound = errors.New("prediction not found")

// Filter 查询条件，零值字段不参与过滤。
type Filter struct {
	Symbol    string
	Direction string
	Since     time.Time
	Limit     int
}

type Store struct {
	db *gorm.DB
}

func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("store: path is empty")
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&PredictionRecord{}); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// WAL 下允许少量并发读，写入仍串行
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Create inserts rec, assigning an id and timestamps when missing.
func (s *Store) Create(ctx context.Context, rec *PredictionRecord) error {
	if rec == nil {
		return fmt.Errorf("store: nil record")
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if rec.Timestamp.IsZero() {
		rec.Timestamp = now
	}
	rec.CreatedAt = now
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("create prediction %s: %w", rec.ID, err)
	}
	return nil
}

// FindMany returns matching records newest first.
func (s *Store) FindMany(ctx context.Context, f Filter) ([]PredictionRecord, error) {
	q := s.db.WithContext(ctx).Model(&PredictionRecord{})
	if sym := strings.ToUpper(strings.TrimSpace(f.Symbol)); sym != "" {
		q = q.Where("symbol = ?", sym)
	}
	if dir := strings.ToUpper(strings.TrimSpace(f.Direction)); dir != "" {
		q = q.Where("direction = ?", dir)
	}
	if !f.Since.IsZero() {
		q = q.Where("timestamp >= ?", f.Since.UTC())
	}
	var out []PredictionRecord
	if err := q.Order("timestamp desc").Limit(clampLimit(f.Limit)).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) FindByID(ctx context.Context, id string) (*PredictionRecord, error) {
	var rec PredictionRecord
	err := s.db.WithContext(ctx).Where("id = ?", strings.TrimSpace(id)).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func clampLimit(n int) int {
	switch {
	case n <= 0:
		return DefaultLimit
	case n > MaxLimit:
		return MaxLimit
	}
	return n
}
