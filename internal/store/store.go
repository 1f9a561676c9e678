package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/byuccl/coast/internal/model"
)

// Store is the campaign-summary index backed by an embedded SQLite
// database.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

// Open creates or reopens the index at path, migrating the schema and
// applying the same WAL/busy-timeout pragmas the teacher's storage
// adapter uses for a single-writer, many-reader workload.
func Open(path string, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	if err := db.AutoMigrate(&RunModel{}, &InjectionModel{}); err != nil {
		return nil, fmt.Errorf("store: migrate: %w", err)
	}

	db.Exec("PRAGMA journal_mode=WAL;")
	db.Exec("PRAGMA busy_timeout=5000;")
	db.Exec("PRAGMA synchronous=NORMAL;")

	return &Store{db: db, logger: log}, nil
}

// RunParams describes a campaign run at the moment it starts.
type RunParams struct {
	Board         string
	Binary        string
	Section       string
	Seed          int64
	MaxInjections int
	ErrorTarget   int
}

// StartRun inserts a new run row and returns its generated ID, used to
// tag every InjectionLog recorded for the run and the row updated when
// the run finishes.
func (s *Store) StartRun(p RunParams) (string, error) {
	run := RunModel{
		ID:            uuid.NewString(),
		Board:         p.Board,
		Binary:        p.Binary,
		Section:       p.Section,
		Seed:          p.Seed,
		MaxInjections: p.MaxInjections,
		ErrorTarget:   p.ErrorTarget,
		StartedAt:     time.Now().UTC(),
	}
	if err := s.db.Create(&run).Error; err != nil {
		return "", fmt.Errorf("store: start run: %w", err)
	}
	return run.ID, nil
}

// FinishRun stamps the run's completion time, final state, and closing
// counters.
func (s *Store) FinishRun(runID, finalState string, counters model.CampaignCounters) error {
	now := time.Now().UTC()
	updates := map[string]any{
		"finished_at":     &now,
		"final_state":     finalState,
		"injections_done": counters.InjectionsDone,
		"errors_seen":     counters.ErrorsSeen,
	}
	err := s.db.Model(&RunModel{}).Where("id = ?", runID).Updates(updates).Error
	if err != nil {
		return fmt.Errorf("store: finish run %s: %w", runID, err)
	}
	return nil
}

// RecordInjection appends one InjectionLog row to the index, tagged to
// its parent run.
func (s *Store) RecordInjection(runID string, l model.InjectionLog) error {
	outcomeJSON, err := json.Marshal(l.Result)
	if err != nil {
		return fmt.Errorf("store: marshal outcome: %w", err)
	}
	row := InjectionModel{
		RunID:       runID,
		Number:      l.Number,
		Timestamp:   l.InjectionTime,
		Section:     l.Section,
		Address:     l.Address,
		OldValue:    l.OldValue,
		NewValue:    l.NewValue,
		SleepTime:   l.SleepTime,
		Cycles:      l.Cycles,
		PC:          l.PC,
		Name:        l.Name,
		OutcomeKind: outcomeKind(l.Result),
		OutcomeJSON: string(outcomeJSON),
	}
	if err := s.db.Create(&row).Error; err != nil {
		return fmt.Errorf("store: record injection %d for run %s: %w", l.Number, runID, err)
	}
	return nil
}

// ListRuns returns every recorded run, most recent first.
func (s *Store) ListRuns() ([]RunModel, error) {
	var runs []RunModel
	if err := s.db.Order("started_at DESC").Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("store: list runs: %w", err)
	}
	return runs, nil
}

// GetRun fetches a single run by ID.
func (s *Store) GetRun(runID string) (*RunModel, error) {
	var run RunModel
	if err := s.db.Where("id = ?", runID).First(&run).Error; err != nil {
		return nil, fmt.Errorf("store: get run %s: %w", runID, err)
	}
	return &run, nil
}

// ListInjections returns every injection recorded for a run, in the
// order they were injected.
func (s *Store) ListInjections(runID string) ([]InjectionModel, error) {
	var rows []InjectionModel
	if err := s.db.Where("run_id = ?", runID).Order("number ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("store: list injections for run %s: %w", runID, err)
	}
	return rows, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return sqlDB.Close()
}

func outcomeKind(o model.Outcome) string {
	switch o.(type) {
	case model.RunOutcome:
		return "run"
	case model.AssertionFailOutcome:
		return "assertion_fail"
	case model.AbortOutcome:
		return "abort"
	case model.StackOverflowOutcome:
		return "stack_overflow"
	case model.TimeoutOutcome:
		return "timeout"
	case model.InvalidOutcome:
		return "invalid"
	default:
		return "unknown"
	}
}
