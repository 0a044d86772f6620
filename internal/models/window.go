package models

import "time"

// Process identifies an enrollment procedure (trámite).
type Process string

const (
	ProcessProject Process = "Proyecto"
	ProcessThesis  Process = "TEG"
)

// Processes lists every procedure in the order windows are persisted and
// offered to students.
var Processes = []Process{ProcessProject, ProcessThesis}

// DateLayout is the wire and storage format of window dates.
const DateLayout = "2006-01-02"

// ParseProcess validates a procedure name.
func ParseProcess(raw string) (Process, bool) {
	for _, p := range Processes {
		if string(p) == raw {
			return p, true
		}
	}
	return "", false
}

// EnrollmentWindow is the admission period of one procedure. Start after End
// is accepted and simply never open.
type EnrollmentWindow struct {
	Process   Process   `db:"process" json:"process"`
	Active    bool      `db:"active" json:"active"`
	Start     time.Time `db:"start_date" json:"start"`
	End       time.Time `db:"end_date" json:"end"`
	UpdatedAt time.Time `db:"updated_at" json:"-"`
}

// IsOpen reports whether the window admits submissions on today's date.
// Both ends are inclusive.
func (w EnrollmentWindow) IsOpen(today time.Time) bool {
	if !w.Active {
		return false
	}
	d := DateOf(today)
	return !d.Before(DateOf(w.Start)) && !d.After(DateOf(w.End))
}

// Inverted reports a window whose start falls after its end.
func (w EnrollmentWindow) Inverted() bool {
	return DateOf(w.Start).After(DateOf(w.End))
}

// WindowSet holds exactly one window per procedure.
type WindowSet struct {
	Project EnrollmentWindow
	Thesis  EnrollmentWindow
}

// DefaultWindows is used when nothing has been persisted yet: both inactive,
// both ranges collapsed to today.
func DefaultWindows(today time.Time) WindowSet {
	d := DateOf(today)
	return WindowSet{
		Project: EnrollmentWindow{Process: ProcessProject, Start: d, End: d},
		Thesis:  EnrollmentWindow{Process: ProcessThesis, Start: d, End: d},
	}
}

// Get returns the window of a procedure.
func (s WindowSet) Get(p Process) EnrollmentWindow {
	if p == ProcessThesis {
		return s.Thesis
	}
	return s.Project
}

// Set replaces the window of its procedure.
func (s *WindowSet) Set(w EnrollmentWindow) {
	switch w.Process {
	case ProcessProject:
		s.Project = w
	case ProcessThesis:
		s.Thesis = w
	}
}

// List returns the windows in persisted order.
func (s WindowSet) List() []EnrollmentWindow {
	return []EnrollmentWindow{s.Project, s.Thesis}
}

// Normalized strips time-of-day from every date and fixes the process labels.
func (s WindowSet) Normalized() WindowSet {
	s.Project.Process, s.Thesis.Process = ProcessProject, ProcessThesis
	s.Project.Start, s.Project.End = DateOf(s.Project.Start), DateOf(s.Project.End)
	s.Thesis.Start, s.Thesis.End = DateOf(s.Thesis.Start), DateOf(s.Thesis.End)
	return s
}

// AvailableProcedures returns the procedures open on today, in fixed order.
func AvailableProcedures(s WindowSet, today time.Time) []Process {
	open := make([]Process, 0, len(Processes))
	for _, p := range Processes {
		if s.Get(p).IsOpen(today) {
			open = append(open, p)
		}
	}
	return open
}

// DateOf truncates t to its calendar date as seen in t's own location and
// returns it as midnight UTC, so dates from any zone compare by day.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(raw string) (time.Time, error) {
	return time.Parse(DateLayout, raw)
}
