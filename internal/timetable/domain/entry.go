package domain

import "fmt"

// Weekday is the school day of a session, 1 (Monday) to 6 (Saturday).
type Weekday int

const (
	Monday Weekday = iota + 1
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
)

var weekdayNames = map[Weekday]string{
	Monday:    "Lundi",
	Tuesday:   "Mardi",
	Wednesday: "Mercredi",
	Thursday:  "Jeudi",
	Friday:    "Vendredi",
	Saturday:  "Samedi",
}

// Valid reports whether d is a school day.
func (d Weekday) Valid() bool {
	return d >= Monday && d <= Saturday
}

func (d Weekday) String() string {
	if name, ok := weekdayNames[d]; ok {
		return name
	}
	return fmt.Sprintf("Jour %d", int(d))
}

// ScheduleEntry is one scheduled class session. Inside the editor only its
// position (SlotIdx) ever changes, and only locally.
type ScheduleEntry struct {
	ID              int64   `json:"id"`
	SchoolClass     int64   `json:"school_class"`
	SchoolClassName string  `json:"school_class_name,omitempty"`
	Subject         int64   `json:"subject"`
	SubjectName     string  `json:"subject_name,omitempty"`
	Teacher         *int64  `json:"teacher"`
	TeacherName     string  `json:"teacher_name,omitempty"`
	Weekday         Weekday `json:"weekday"`
	StartTime       string  `json:"start_time"`
	EndTime         string  `json:"end_time"`
	Room            *string `json:"room"`
	Notes           string  `json:"notes"`
	SlotIdx         *int    `json:"slot_idx"`
}

// Title is the short label used when listing an entry.
func (e ScheduleEntry) Title() string {
	subject := e.SubjectName
	if subject == "" {
		subject = fmt.Sprintf("matière %d", e.Subject)
	}
	if e.TeacherName != "" {
		return fmt.Sprintf("#%d %s (%s)", e.ID, subject, e.TeacherName)
	}
	return fmt.Sprintf("#%d %s", e.ID, subject)
}

// WithSlot returns a copy of e positioned at idx (nil detaches it).
func (e ScheduleEntry) WithSlot(idx *int) ScheduleEntry {
	e.SlotIdx = cloneIdx(idx)
	return e
}

// Slot is a point of the discrete schedule grid. Slots come from the
// backend and are immutable on the client.
type Slot struct {
	Idx       int     `json:"idx"`
	Day       Weekday `json:"day"`
	StartTime string  `json:"start_time"`
	EndTime   string  `json:"end_time"`
	Label     string  `json:"label,omitempty"`
}

// DisplayLabel returns the backend label, or "<day> <start>-<end>".
func (s Slot) DisplayLabel() string {
	if s.Label != "" {
		return s.Label
	}
	return fmt.Sprintf("%s %s-%s", s.Day, shortTime(s.StartTime), shortTime(s.EndTime))
}

// SchoolClass is a class group used to filter the timetable.
type SchoolClass struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Level string `json:"level,omitempty"`
}

func shortTime(t string) string {
	// "08:00:00" -> "08:00"
	if len(t) == len("15:04:05") && t[5] == ':' {
		return t[:5]
	}
	return t
}

func cloneIdx(idx *int) *int {
	if idx == nil {
		return nil
	}
	v := *idx
	return &v
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int {
	return &v
}
