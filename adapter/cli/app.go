package cli

import (
	"context"
	"errors"

	attendanceApp "github.com/felixgeelhaar/schooldesk/internal/attendance/application"
	attendanceDomain "github.com/felixgeelhaar/schooldesk/internal/attendance/domain"
	gradesApp "github.com/felixgeelhaar/schooldesk/internal/grades/application"
	timetableApp "github.com/felixgeelhaar/schooldesk/internal/timetable/application"
	timetableDomain "github.com/felixgeelhaar/schooldesk/internal/timetable/domain"
	"github.com/felixgeelhaar/schooldesk/pkg/observability"
)

// ErrNotInitialized is returned by commands run without a wired App.
var ErrNotInitialized = errors.New("application not initialized - check SCHOOLDESK_API_URL")

// TimetableEntries is direct schedule-entry maintenance, outside the
// staged batch flow.
type TimetableEntries interface {
	ListClasses(ctx context.Context) ([]timetableDomain.SchoolClass, error)
	CreateEntry(ctx context.Context, in timetableDomain.EntryInput) (timetableDomain.ScheduleEntry, error)
	UpdateEntry(ctx context.Context, id int64, fields map[string]any) (timetableDomain.ScheduleEntry, error)
	DeleteEntry(ctx context.Context, id int64) error
}

// AttendanceRecords lists saved attendance records.
type AttendanceRecords interface {
	ListRecords(ctx context.Context, date string, entryID int64) ([]attendanceDomain.Record, error)
}

// AttendanceFactory builds an attendance engine reporting to notifier.
type AttendanceFactory func(notifier attendanceApp.Notifier) *attendanceApp.Engine

// App holds the CLI application dependencies.
type App struct {
	Timetable         *timetableApp.Editor
	TimetableEntries  TimetableEntries
	Attendance        AttendanceFactory
	AttendanceRecords AttendanceRecords
	Grades            *gradesApp.Sheet
	Health            *observability.HealthRegistry
	Metrics           *observability.InMemoryMetrics
}

// NewApp creates a new CLI application.
func NewApp(
	timetable *timetableApp.Editor,
	entries TimetableEntries,
	attendance AttendanceFactory,
	records AttendanceRecords,
	grades *gradesApp.Sheet,
) *App {
	return &App{
		Timetable:         timetable,
		TimetableEntries:  entries,
		Attendance:        attendance,
		AttendanceRecords: records,
		Grades:            grades,
	}
}

// SetHealth updates the health registry.
func (a *App) SetHealth(registry *observability.HealthRegistry) {
	a.Health = registry
}

// SetMetrics sets the collector whose snapshot health --json reports.
func (a *App) SetMetrics(metrics *observability.InMemoryMetrics) {
	a.Metrics = metrics
}

// app is the global CLI application instance
var app *App

// SetApp sets the global CLI application instance.
func SetApp(a *App) {
	app = a
}

// GetApp returns the global CLI application instance.
func GetApp() *App {
	return app
}
