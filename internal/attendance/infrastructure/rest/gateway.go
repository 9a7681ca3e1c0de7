package rest

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/felixgeelhaar/schooldesk/internal/api"
	"github.com/felixgeelhaar/schooldesk/internal/attendance/domain"
)

const (
	recordsPath = "/academics/attendances/"
	sheetPath   = "/academics/attendance/sheet/"
)

// Gateway talks to the attendance endpoints.
type Gateway struct {
	client *api.Client
	logger *slog.Logger
}

// NewGateway creates an attendance gateway.
func NewGateway(client *api.Client, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{client: client, logger: logger}
}

// LoadSheet fetches the composed sheet of a class on a date.
func (g *Gateway) LoadSheet(ctx context.Context, classID, date string) (domain.Sheet, error) {
	query := url.Values{"class_id": {classID}, "date": {date}}
	raw, err := g.client.Get(ctx, sheetPath+"?"+query.Encode())
	if err != nil {
		return domain.Sheet{}, fmt.Errorf("load attendance sheet: %w", err)
	}
	sheet, err := api.Decode[domain.Sheet](raw)
	if err != nil {
		return domain.Sheet{}, fmt.Errorf("decode attendance sheet: %w", err)
	}
	sheet.ClassID = classID
	if sheet.Date == "" {
		sheet.Date = date
	}
	return sheet, nil
}

// ListRecords returns the records of a date, optionally for one session.
func (g *Gateway) ListRecords(ctx context.Context, date string, entryID int64) ([]domain.Record, error) {
	query := url.Values{"date": {date}}
	if entryID > 0 {
		query.Set("schedule_entry", fmt.Sprint(entryID))
	}
	raw, err := g.client.Get(ctx, recordsPath+"?"+query.Encode())
	if err != nil {
		return nil, fmt.Errorf("list attendance records: %w", err)
	}
	return api.DecodeList[domain.Record](raw)
}

// Create records an attendance entry and returns the server copy.
func (g *Gateway) Create(ctx context.Context, in domain.RecordInput) (domain.Record, error) {
	raw, err := g.client.Post(ctx, recordsPath, in)
	if err != nil {
		return domain.Record{}, fmt.Errorf("create attendance: %w", err)
	}
	return decodeRecord(raw, in)
}

// Update replaces a record.
func (g *Gateway) Update(ctx context.Context, id domain.RecordID, in domain.RecordInput) (domain.Record, error) {
	raw, err := g.client.Put(ctx, recordPath(id), in)
	if err != nil {
		return domain.Record{}, fmt.Errorf("update attendance %s: %w", id, err)
	}
	rec, err := decodeRecord(raw, in)
	if err != nil {
		return domain.Record{}, err
	}
	if rec.ID == "" {
		rec.ID = id
	}
	return rec, nil
}

// Delete removes a record.
func (g *Gateway) Delete(ctx context.Context, id domain.RecordID) error {
	if _, err := g.client.Delete(ctx, recordPath(id)); err != nil {
		return fmt.Errorf("delete attendance %s: %w", id, err)
	}
	return nil
}

// decodeRecord fills the fields a terse response leaves out from the
// request.
func decodeRecord(raw []byte, in domain.RecordInput) (domain.Record, error) {
	rec, err := api.Decode[domain.Record](raw)
	if err != nil {
		return domain.Record{}, fmt.Errorf("decode attendance: %w", err)
	}
	if rec.Student == 0 {
		rec.Student = in.Student
	}
	if rec.ScheduleEntry == 0 {
		rec.ScheduleEntry = in.ScheduleEntry
	}
	if rec.Date == "" {
		rec.Date = in.Date
	}
	if rec.Status == "" {
		rec.Status = in.Status
	}
	return rec, nil
}

func recordPath(id domain.RecordID) string {
	return recordsPath + url.PathEscape(string(id)) + "/"
}
