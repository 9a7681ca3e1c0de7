package rest

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/felixgeelhaar/schooldesk/internal/api"
	"github.com/felixgeelhaar/schooldesk/internal/timetable/domain"
)

const (
	slotsPath     = "/academics/slots/"
	entriesPath   = "/academics/timetable/"
	classesPath   = "/academics/classes/"
	validatePath  = "/academics/timetable-batch-validate/"
	applyPath     = "/academics/timetable-batch-apply/"
	conflictsPath = "/academics/timetable-conflicts/"
)

// Gateway talks to the timetable endpoints of the backend.
type Gateway struct {
	client *api.Client
	logger *slog.Logger
}

// NewGateway creates a timetable gateway.
func NewGateway(client *api.Client, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{client: client, logger: logger}
}

// ListSlots returns the slot enumeration.
func (g *Gateway) ListSlots(ctx context.Context) ([]domain.Slot, error) {
	raw, err := g.client.Get(ctx, slotsPath)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	slots, err := api.DecodeList[domain.Slot](raw)
	if err != nil {
		return nil, fmt.Errorf("decode slots: %w", err)
	}
	return slots, nil
}

// ListEntries returns the schedule entries, optionally filtered by class.
func (g *Gateway) ListEntries(ctx context.Context, classID string) ([]domain.ScheduleEntry, error) {
	path := entriesPath
	if classID != "" {
		path += "?" + url.Values{"school_class": {classID}}.Encode()
	}
	raw, err := g.client.Get(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("list schedule entries: %w", err)
	}
	entries, err := api.DecodeList[domain.ScheduleEntry](raw)
	if err != nil {
		return nil, fmt.Errorf("decode schedule entries: %w", err)
	}
	return entries, nil
}

// ListClasses returns the class groups usable as a filter.
func (g *Gateway) ListClasses(ctx context.Context) ([]domain.SchoolClass, error) {
	raw, err := g.client.Get(ctx, classesPath)
	if err != nil {
		return nil, fmt.Errorf("list classes: %w", err)
	}
	classes, err := api.DecodeList[domain.SchoolClass](raw)
	if err != nil {
		return nil, fmt.Errorf("decode classes: %w", err)
	}
	return classes, nil
}

// CreateEntry creates a schedule entry directly, bypassing the batch flow.
func (g *Gateway) CreateEntry(ctx context.Context, in domain.EntryInput) (domain.ScheduleEntry, error) {
	if err := in.Validate(); err != nil {
		return domain.ScheduleEntry{}, err
	}
	raw, err := g.client.Post(ctx, entriesPath, in)
	if err != nil {
		return domain.ScheduleEntry{}, fmt.Errorf("create schedule entry: %w", err)
	}
	return api.Decode[domain.ScheduleEntry](raw)
}

// UpdateEntry patches the given fields of a schedule entry.
func (g *Gateway) UpdateEntry(ctx context.Context, id int64, fields map[string]any) (domain.ScheduleEntry, error) {
	raw, err := g.client.Patch(ctx, entryPath(id), fields)
	if err != nil {
		return domain.ScheduleEntry{}, fmt.Errorf("update schedule entry %d: %w", id, err)
	}
	return api.Decode[domain.ScheduleEntry](raw)
}

// DeleteEntry removes a schedule entry.
func (g *Gateway) DeleteEntry(ctx context.Context, id int64) error {
	if _, err := g.client.Delete(ctx, entryPath(id)); err != nil {
		return fmt.Errorf("delete schedule entry %d: %w", id, err)
	}
	return nil
}

type batchRequest struct {
	Operations []domain.StagedOperation `json:"operations"`
	Persist    *bool                    `json:"persist,omitempty"`
}

// ValidateBatch asks the server to check ops without changing anything.
func (g *Gateway) ValidateBatch(ctx context.Context, ops []domain.StagedOperation) (domain.Report, error) {
	return g.postReport(ctx, validatePath, batchRequest{Operations: nonNil(ops)})
}

// ApplyBatch submits ops in order. With persist=false the server only
// simulates the outcome.
func (g *Gateway) ApplyBatch(ctx context.Context, ops []domain.StagedOperation, persist bool) (domain.Report, error) {
	g.logger.Debug("applying timetable batch", "operations", len(ops), "persist", persist)
	return g.postReport(ctx, applyPath, batchRequest{Operations: nonNil(ops), Persist: &persist})
}

// GetConflicts returns the current conflict report.
func (g *Gateway) GetConflicts(ctx context.Context) (domain.Report, error) {
	raw, err := g.client.Get(ctx, conflictsPath)
	if err != nil {
		return domain.Report{}, fmt.Errorf("get conflicts: %w", err)
	}
	return domain.ParseReport(raw), nil
}

// ResolveConflicts proposes (dryRun) or applies automatic resolutions.
func (g *Gateway) ResolveConflicts(ctx context.Context, dryRun, persist bool) (domain.Report, error) {
	payload := map[string]bool{"dry_run": dryRun, "persist": persist}
	return g.postReport(ctx, conflictsPath, payload)
}

func (g *Gateway) postReport(ctx context.Context, path string, payload any) (domain.Report, error) {
	raw, err := g.client.Post(ctx, path, payload)
	if err != nil {
		return domain.Report{}, fmt.Errorf("post %s: %w", path, err)
	}
	return domain.ParseReport(raw), nil
}

func entryPath(id int64) string {
	return fmt.Sprintf("%s%d/", entriesPath, id)
}

func nonNil(ops []domain.StagedOperation) []domain.StagedOperation {
	if ops == nil {
		return []domain.StagedOperation{}
	}
	return ops
}
