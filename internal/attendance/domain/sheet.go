package domain

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Student is a row of the sheet.
type Student struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	FullName  string `json:"full_name,omitempty"`
}

// Name returns the display name.
func (s Student) Name() string {
	if s.FullName != "" {
		return s.FullName
	}
	if s.FirstName == "" && s.LastName == "" {
		return fmt.Sprintf("élève %d", s.ID)
	}
	return s.LastName + " " + s.FirstName
}

// Session is a column of the sheet: one scheduled entry on that day.
type Session struct {
	ID          int64  `json:"id"`
	SubjectName string `json:"subject_name"`
	TeacherName string `json:"teacher_name,omitempty"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
}

// Sheet is the composed attendance view of a class on a date.
type Sheet struct {
	ClassID  string
	Date     string
	Students []Student
	Sessions []Session
	Records  []Record
}

// UnmarshalJSON reads the sheet leniently: sessions may come as
// "sessions", "schedule" or "entries" and records as "records",
// "attendances" or "absences".
func (s *Sheet) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("attendance sheet: %w", err)
	}
	if err := decodeFirst(raw, &s.Students, "students"); err != nil {
		return err
	}
	if err := decodeFirst(raw, &s.Sessions, "sessions", "schedule", "entries"); err != nil {
		return err
	}
	if err := decodeFirst(raw, &s.Records, "records", "attendances", "absences"); err != nil {
		return err
	}
	_ = decodeFirst(raw, &s.Date, "date")
	sort.Slice(s.Sessions, func(i, j int) bool { return s.Sessions[i].StartTime < s.Sessions[j].StartTime })
	return nil
}

func decodeFirst(raw map[string]json.RawMessage, target any, keys ...string) error {
	for _, key := range keys {
		msg, ok := raw[key]
		if !ok || string(msg) == "null" {
			continue
		}
		if err := json.Unmarshal(msg, target); err != nil {
			return fmt.Errorf("attendance sheet %s: %w", key, err)
		}
		return nil
	}
	return nil
}
