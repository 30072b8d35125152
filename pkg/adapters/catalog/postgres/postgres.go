package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/aescanero/reelgen/internal/domain"
	"github.com/aescanero/reelgen/internal/ports"
)

// runRecord is one row of the run_records table
type runRecord struct {
	RunID     string         `gorm:"primaryKey;column:run_id;type:varchar(64)"`
	Owner     string         `gorm:"index"`
	Mode      string
	State     string
	Progress  float64
	Title     string
	VideoURL  string         `gorm:"column:video_url"`
	Spec      datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (runRecord) TableName() string { return "run_records" }

// runEvent is one row of the append-only run_events ledger
type runEvent struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`
	RunID     string `gorm:"index;column:run_id;type:varchar(64)"`
	Seq       uint64
	Type      string
	State     string
	Progress  *float64
	Message   string
	Payload   datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt time.Time
}

func (runEvent) TableName() string { return "run_events" }

// Catalog implements ports.RunCatalog on Postgres via gorm
type Catalog struct {
	db     *gorm.DB
	logger *zap.Logger
}

// Open connects to Postgres, migrates the catalog tables, and returns the
// catalog adapter
func Open(dsn string, logger *zap.Logger) (*Catalog, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}

	if err := db.AutoMigrate(&runRecord{}, &runEvent{}); err != nil {
		return nil, fmt.Errorf("failed to migrate catalog tables: %w", err)
	}

	return New(db, logger), nil
}

// New creates a catalog adapter on an already-open gorm handle
func New(db *gorm.DB, logger *zap.Logger) *Catalog {
	return &Catalog{
		db:     db,
		logger: logger,
	}
}

// SaveSummary upserts the catalog row for a run (ports.RunCatalog interface)
func (c *Catalog) SaveSummary(ctx context.Context, run *domain.Run) error {
	if run == nil || run.ID == "" {
		return fmt.Errorf("run ID is required")
	}

	specJSON, err := json.Marshal(run.Spec)
	if err != nil {
		return fmt.Errorf("failed to marshal run spec: %w", err)
	}

	record := runRecord{
		RunID:     run.ID,
		Owner:     run.Owner,
		Mode:      string(run.Spec.Mode),
		State:     string(run.State),
		Progress:  run.Progress,
		VideoURL:  run.Artifacts.VideoURL,
		Spec:      datatypes.JSON(specJSON),
		CreatedAt: run.CreatedAt,
		UpdatedAt: run.UpdatedAt,
	}
	if run.Artifacts.Plot != nil {
		record.Title = run.Artifacts.Plot.Title
	}

	err = c.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "run_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"state",
			"progress",
			"title",
			"video_url",
			"updated_at",
		}),
	}).Create(&record).Error
	if err != nil {
		return fmt.Errorf("failed to save run summary: %w", err)
	}

	return nil
}

// Summary retrieves the catalog row for a run (ports.RunCatalog interface)
func (c *Catalog) Summary(ctx context.Context, runID string) (ports.RunSummary, error) {
	var record runRecord
	err := c.db.WithContext(ctx).First(&record, "run_id = ?", runID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.RunSummary{}, fmt.Errorf("%w: run %s", domain.ErrNotFound, runID)
		}
		return ports.RunSummary{}, fmt.Errorf("failed to get run summary: %w", err)
	}

	return toSummary(record), nil
}

// ListByOwner returns the owner's run summaries, newest first (ports.RunCatalog interface)
func (c *Catalog) ListByOwner(ctx context.Context, owner string) ([]ports.RunSummary, error) {
	var records []runRecord
	err := c.db.WithContext(ctx).
		Where("owner = ?", owner).
		Order("created_at DESC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	summaries := make([]ports.RunSummary, 0, len(records))
	for _, record := range records {
		summaries = append(summaries, toSummary(record))
	}

	return summaries, nil
}

// Delete removes the catalog row and the run's event ledger (ports.RunCatalog interface)
func (c *Catalog) Delete(ctx context.Context, runID string) error {
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&runRecord{}, "run_id = ?", runID).Error; err != nil {
			return err
		}
		return tx.Delete(&runEvent{}, "run_id = ?", runID).Error
	})
	if err != nil {
		return fmt.Errorf("failed to delete run from catalog: %w", err)
	}

	return nil
}

// AppendEvent appends one event to the run's ledger (ports.RunCatalog interface)
func (c *Catalog) AppendEvent(ctx context.Context, event domain.Event) error {
	if event.RunID == "" {
		return fmt.Errorf("event run ID is required")
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	row := runEvent{
		RunID:    event.RunID,
		Seq:      event.Seq,
		Type:     string(event.Type),
		State:    string(event.State),
		Progress: event.Progress,
		Message:  event.Message,
		Payload:  datatypes.JSON(payload),
	}
	if !event.Timestamp.IsZero() {
		row.CreatedAt = event.Timestamp
	}

	if err := c.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to append run event: %w", err)
	}

	return nil
}

// Events returns the most recent ledger entries in emission order (ports.RunCatalog interface)
func (c *Catalog) Events(ctx context.Context, runID string, limit int) ([]domain.Event, error) {
	query := c.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("seq DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []runEvent
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list run events: %w", err)
	}

	// Rows were fetched newest first; return them in emission order
	events := make([]domain.Event, len(rows))
	for i, row := range rows {
		events[len(rows)-1-i] = toEvent(row)
	}

	return events, nil
}

func toSummary(record runRecord) ports.RunSummary {
	return ports.RunSummary{
		RunID:     record.RunID,
		Owner:     record.Owner,
		Mode:      record.Mode,
		State:     record.State,
		Progress:  record.Progress,
		Title:     record.Title,
		VideoURL:  record.VideoURL,
		CreatedAt: record.CreatedAt,
		UpdatedAt: record.UpdatedAt,
	}
}

func toEvent(row runEvent) domain.Event {
	var event domain.Event
	if len(row.Payload) > 0 {
		if err := json.Unmarshal(row.Payload, &event); err == nil {
			return event
		}
	}

	// Fall back to the typed columns for rows with unreadable payloads
	return domain.Event{
		Type:      domain.EventType(row.Type),
		RunID:     row.RunID,
		State:     domain.State(row.State),
		Progress:  row.Progress,
		Message:   row.Message,
		Seq:       row.Seq,
		Timestamp: row.CreatedAt,
	}
}
