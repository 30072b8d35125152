package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aescanero/reelgen/internal/domain"
	"github.com/aescanero/reelgen/internal/ports"
)

// Catalog implements ports.RunCatalog using in-memory maps.
// Used when no DATABASE_URL is configured, and in tests.
type Catalog struct {
	summaries map[string]ports.RunSummary
	events    map[string][]domain.Event
	mu        sync.RWMutex
}

// NewCatalog creates a new in-memory run catalog
func NewCatalog() *Catalog {
	return &Catalog{
		summaries: make(map[string]ports.RunSummary),
		events:    make(map[string][]domain.Event),
	}
}

// SaveSummary upserts the catalog row for a run (ports.RunCatalog interface)
func (c *Catalog) SaveSummary(ctx context.Context, run *domain.Run) error {
	if run == nil || run.ID == "" {
		return fmt.Errorf("run ID is required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.summaries[run.ID] = SummaryFromRun(run)
	return nil
}

// Summary retrieves the catalog row for a run (ports.RunCatalog interface)
func (c *Catalog) Summary(ctx context.Context, runID string) (ports.RunSummary, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	summary, ok := c.summaries[runID]
	if !ok {
		return ports.RunSummary{}, fmt.Errorf("%w: run %s", domain.ErrNotFound, runID)
	}

	return summary, nil
}

// ListByOwner returns the owner's run summaries, newest first (ports.RunCatalog interface)
func (c *Catalog) ListByOwner(ctx context.Context, owner string) ([]ports.RunSummary, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	summaries := make([]ports.RunSummary, 0)
	for _, summary := range c.summaries {
		if summary.Owner == owner {
			summaries = append(summaries, summary)
		}
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
	})

	return summaries, nil
}

// Delete removes the catalog row and the run's event ledger (ports.RunCatalog interface)
func (c *Catalog) Delete(ctx context.Context, runID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.summaries, runID)
	delete(c.events, runID)
	return nil
}

// AppendEvent appends one event to the run's ledger (ports.RunCatalog interface)
func (c *Catalog) AppendEvent(ctx context.Context, event domain.Event) error {
	if event.RunID == "" {
		return fmt.Errorf("event run ID is required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.events[event.RunID] = append(c.events[event.RunID], event)
	return nil
}

// Events returns the most recent ledger entries in emission order (ports.RunCatalog interface)
func (c *Catalog) Events(ctx context.Context, runID string, limit int) ([]domain.Event, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	events := c.events[runID]
	if limit > 0 && len(events) > limit {
		events = events[len(events)-limit:]
	}

	out := make([]domain.Event, len(events))
	copy(out, events)
	return out, nil
}

// SummaryFromRun projects a run into its catalog row
func SummaryFromRun(run *domain.Run) ports.RunSummary {
	summary := ports.RunSummary{
		RunID:     run.ID,
		Owner:     run.Owner,
		Mode:      string(run.Spec.Mode),
		State:     string(run.State),
		Progress:  run.Progress,
		VideoURL:  run.Artifacts.VideoURL,
		CreatedAt: run.CreatedAt,
		UpdatedAt: run.UpdatedAt,
	}
	if run.Artifacts.Plot != nil {
		summary.Title = run.Artifacts.Plot.Title
	}
	return summary
}
