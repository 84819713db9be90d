package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/inquiry/pkg/domain"
	"github.com/aretw0/inquiry/pkg/ports"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Checkpoint is one persisted session. The resume point is kept in its own column so
// NextStep does not decode the record.
type Checkpoint struct {
	SessionID string    `gorm:"primaryKey;size:128"`
	NextStep  string    `gorm:"size:32;index"`
	Status    string    `gorm:"size:16;index"`
	StepCount int       `gorm:"not null"`
	Data      string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"`
}

// Config controls how the database is opened.
type Config struct {
	Path        string        `mapstructure:"path"`
	InMemory    bool          `mapstructure:"in_memory"`
	EnableWAL   bool          `mapstructure:"enable_wal"`
	BusyTimeout time.Duration `mapstructure:"busy_timeout"`
	// Logger overrides gorm's default logger; nil silences it.
	Logger logger.Interface `mapstructure:"-"`
}

// Store implements ports.CheckpointStore on SQLite through gorm.
type Store struct {
	db    *gorm.DB
	sqlDB *sql.DB
}

// Open creates the database (if needed), migrates the schema and verifies the connection.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	dsn, err := dsnFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	gormCfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}
	if cfg.Logger != nil {
		gormCfg.Logger = cfg.Logger
	}

	db, err := gorm.Open(sqlite.Open(dsn), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql db: %w", err)
	}
	// SQLite serializes writers anyway.
	sqlDB.SetMaxOpenConns(1)

	s := &Store{db: db, sqlDB: sqlDB}

	if cfg.EnableWAL {
		if err := s.db.WithContext(ctx).Exec("PRAGMA journal_mode=WAL;").Error; err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("failed to enable wal: %w", err)
		}
	}

	if err := s.db.WithContext(ctx).AutoMigrate(&Checkpoint{}); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to migrate checkpoints: %w", err)
	}

	if err := s.sqlDB.PingContext(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to ping sqlite: %w", err)
	}
	return s, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Put upserts the session row.
func (s *Store) Put(ctx context.Context, sessionID string, state *domain.State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	row := Checkpoint{
		SessionID: sessionID,
		NextStep:  string(ports.NextStepOf(state)),
		Status:    string(state.Status),
		StepCount: state.StepCount,
		Data:      string(data),
	}
	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"next_step", "status", "step_count", "data", "updated_at"}),
		}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

// Get loads and decodes the session row.
func (s *Store) Get(ctx context.Context, sessionID string) (*domain.State, error) {
	var row Checkpoint
	err := s.db.WithContext(ctx).Where("session_id = ?", sessionID).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}

	var state domain.State
	if err := json.Unmarshal([]byte(row.Data), &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return state.Normalize(), nil
}

// NextStep reads only the resume column.
func (s *Store) NextStep(ctx context.Context, sessionID string) (domain.StepID, error) {
	var row Checkpoint
	err := s.db.WithContext(ctx).Select("next_step").Where("session_id = ?", sessionID).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", domain.ErrSessionNotFound
		}
		return "", fmt.Errorf("failed to load next step: %w", err)
	}
	return domain.StepID(row.NextStep), nil
}

// Delete removes the session row.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	err := s.db.WithContext(ctx).Where("session_id = ?", sessionID).Delete(&Checkpoint{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	return nil
}

// List returns session IDs, most recently updated first.
func (s *Store) List(ctx context.Context) ([]string, error) {
	ids := []string{}
	err := s.db.WithContext(ctx).Model(&Checkpoint{}).Order("updated_at DESC").Pluck("session_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	return ids, nil
}

func dsnFromConfig(cfg Config) (string, error) {
	timeoutMS := int(cfg.BusyTimeout / time.Millisecond)
	if timeoutMS <= 0 {
		timeoutMS = 5000
	}

	if cfg.InMemory {
		return fmt.Sprintf("file:inquiry?mode=memory&cache=shared&_pragma=busy_timeout(%d)", timeoutMS), nil
	}
	if cfg.Path == "" {
		return "", errors.New("sqlite path is required when InMemory=false")
	}
	return fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)", cfg.Path, timeoutMS), nil
}
