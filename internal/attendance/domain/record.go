package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

const tempPrefix = "temp-"

var ErrInvalidStatus = errors.New("invalid attendance status")

// Status is the kind of an attendance record.
type Status string

const (
	StatusAbsent  Status = "ABSENT"
	StatusLate    Status = "LATE"
	StatusExcused Status = "EXCUSED"
	StatusPresent Status = "PRESENT"
)

// ParseStatus accepts a status in any case.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	return st, nil
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusAbsent, StatusLate, StatusExcused, StatusPresent:
		return true
	}
	return false
}

// RecordID identifies an attendance record. Records not yet confirmed by
// the server carry a temporary id.
type RecordID string

// NewTempID returns a fresh temporary id.
func NewTempID() RecordID {
	return RecordID(tempPrefix + uuid.NewString())
}

// IsTemp reports whether id was generated locally.
func (id RecordID) IsTemp() bool {
	return strings.HasPrefix(string(id), tempPrefix)
}

// UnmarshalJSON accepts numeric and string ids.
func (id *RecordID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = RecordID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("attendance id: %w", err)
	}
	*id = RecordID(n.String())
	return nil
}

// MarshalJSON writes server ids as numbers.
func (id RecordID) MarshalJSON() ([]byte, error) {
	if n, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(strconv.FormatInt(n, 10)), nil
	}
	return json.Marshal(string(id))
}

// Record is an attendance record for one student and one scheduled session.
type Record struct {
	ID            RecordID `json:"id"`
	Student       int64    `json:"student"`
	ScheduleEntry int64    `json:"schedule_entry"`
	Date          string   `json:"date"`
	Status        Status   `json:"status"`
}

// Key returns the cell the record belongs to.
func (r Record) Key() CellKey {
	return CellKey{StudentID: r.Student, EntryID: r.ScheduleEntry}
}

// Pending reports whether the server has not confirmed the record yet.
func (r Record) Pending() bool {
	return r.ID.IsTemp()
}

// CellKey addresses one cell of the sheet: a student in a scheduled session.
type CellKey struct {
	StudentID int64
	EntryID   int64
}

func (k CellKey) String() string {
	return fmt.Sprintf("student %d / entry %d", k.StudentID, k.EntryID)
}

// RecordInput is the body sent to create or replace a record.
type RecordInput struct {
	Student       int64  `json:"student"`
	ScheduleEntry int64  `json:"schedule_entry"`
	Date          string `json:"date"`
	Status        Status `json:"status"`
}

// Input returns the payload describing r.
func (r Record) Input() RecordInput {
	return RecordInput{
		Student:       r.Student,
		ScheduleEntry: r.ScheduleEntry,
		Date:          r.Date,
		Status:        r.Status,
	}
}
