package rider

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Weekdays in schedule order
var Weekdays = []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

const (
	defaultShiftStart = "09:00"
	defaultShiftEnd   = "21:00"
)

// ShiftKind tags the variant held by a Shift
type ShiftKind int

const (
	ShiftNamedLabel ShiftKind = iota + 1
	ShiftDayWindow
)

// DayWindow is a working window on a given weekday
type DayWindow struct {
	Day       string `json:"day" validate:"required,oneof=monday tuesday wednesday thursday friday saturday sunday"`
	IsWorking bool   `json:"isWorking"`
	StartTime string `json:"startTime,omitempty" validate:"omitempty,datetime=15:04"`
	EndTime   string `json:"endTime,omitempty" validate:"omitempty,datetime=15:04"`
}

// Shift is either a free-form shift label ("morning", "weekend lunch") or a DayWindow
type Shift struct {
	kind   ShiftKind
	label  string
	window DayWindow
}

// NamedLabel builds a label shift
func NamedLabel(label string) Shift {
	return Shift{kind: ShiftNamedLabel, label: strings.TrimSpace(label)}
}

// Window builds a day window shift
func Window(w DayWindow) Shift {
	w.Day = strings.ToLower(strings.TrimSpace(w.Day))
	return Shift{kind: ShiftDayWindow, window: w}
}

// Kind returns the variant tag
func (s Shift) Kind() ShiftKind { return s.kind }

// Label returns the label when the shift is a NamedLabel
func (s Shift) Label() (string, bool) {
	return s.label, s.kind == ShiftNamedLabel
}

// DayWindow returns the window when the shift is a DayWindow
func (s Shift) DayWindow() (DayWindow, bool) {
	return s.window, s.kind == ShiftDayWindow
}

// MarshalJSON writes labels as strings and windows as objects
func (s Shift) MarshalJSON() ([]byte, error) {
	switch s.kind {
	case ShiftNamedLabel:
		return json.Marshal(s.label)
	case ShiftDayWindow:
		return json.Marshal(s.window)
	}
	return nil, fmt.Errorf("shift has no variant")
}

// UnmarshalJSON accepts either a JSON string or a day window object
func (s *Shift) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var label string
		if err := json.Unmarshal(data, &label); err != nil {
			return err
		}
		*s = NamedLabel(label)
		return nil
	}

	var w DayWindow
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("shift must be a label or a day window: %w", err)
	}
	*s = Window(w)
	return nil
}

// Schedule is a rider's declared working pattern
type Schedule []Shift

// DefaultSchedule is every day, 09:00 to 21:00
func DefaultSchedule() Schedule {
	s := make(Schedule, 0, len(Weekdays))
	for _, day := range Weekdays {
		s = append(s, Window(DayWindow{Day: day, IsWorking: true, StartTime: defaultShiftStart, EndTime: defaultShiftEnd}))
	}
	return s
}

// UnmarshalJSON accepts the current array form (of labels and/or windows) and the
// legacy day-keyed object form {"monday": {"isWorking": true, "startTime": ...}}.
func (s *Schedule) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = nil
		return nil
	}

	if len(data) > 0 && data[0] == '{' {
		var byDay map[string]DayWindow
		if err := json.Unmarshal(data, &byDay); err != nil {
			return fmt.Errorf("day-keyed schedule: %w", err)
		}
		out := make(Schedule, 0, len(byDay))
		for day, w := range byDay {
			w.Day = day
			out = append(out, Window(w))
		}
		sort.SliceStable(out, func(i, j int) bool {
			return weekdayIndex(out[i].window.Day) < weekdayIndex(out[j].window.Day)
		})
		*s = out
		return nil
	}

	var shifts []Shift
	if err := json.Unmarshal(data, &shifts); err != nil {
		return err
	}
	*s = shifts
	return nil
}

// Validate checks labels are non-empty and windows are well formed. A window
// whose end is not after its start runs past midnight and is kept as given.
func (s Schedule) Validate() error {
	for i, shift := range s {
		switch shift.kind {
		case ShiftNamedLabel:
			if shift.label == "" || len(shift.label) > 64 {
				return fmt.Errorf("%w: shift %d label must be 1-64 characters", ErrInvalidSchedule, i)
			}
		case ShiftDayWindow:
			if err := validate.Struct(shift.window); err != nil {
				return fmt.Errorf("%w: shift %d: %v", ErrInvalidSchedule, i, err)
			}
			w := shift.window
			if w.IsWorking && (w.StartTime == "" || w.EndTime == "") {
				return fmt.Errorf("%w: shift %d needs start and end times", ErrInvalidSchedule, i)
			}
		default:
			return fmt.Errorf("%w: shift %d is empty", ErrInvalidSchedule, i)
		}
	}
	return nil
}

func weekdayIndex(day string) int {
	for i, d := range Weekdays {
		if d == day {
			return i
		}
	}
	return len(Weekdays)
}
