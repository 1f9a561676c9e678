// Package store implements the supplemented campaign-summary index: an
// embedded SQLite database (via GORM) recording one row per campaign
// run and one row per published InjectionLog, so multiple runs can be
// queried without re-parsing JSON log files. Grounded on
// lcalzada-xor-wmap's internal/adapters/storage/sqlite.go for the
// GORM+SQLite wiring pattern (AutoMigrate, WAL pragmas, upsert-style
// writes), adapted from a device inventory to a campaign run index.
package store

import "time"

// RunModel is the GORM table for one campaign run.
type RunModel struct {
	ID             string `gorm:"primaryKey"`
	Board          string `gorm:"index"`
	Binary         string
	Section        string `gorm:"index"`
	Seed           int64
	MaxInjections  int
	ErrorTarget    int
	StartedAt      time.Time `gorm:"index"`
	FinishedAt     *time.Time
	FinalState     string
	InjectionsDone int
	ErrorsSeen     int
}

// InjectionModel is the GORM table for one published InjectionLog,
// keyed to its parent run.
type InjectionModel struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	RunID       string `gorm:"index"`
	Number      int
	Timestamp   string
	Section     string `gorm:"index"`
	Address     string
	OldValue    string
	NewValue    string
	SleepTime   float64
	Cycles      uint64
	PC          uint32
	Name        string
	OutcomeKind string `gorm:"index"`
	OutcomeJSON string
}
