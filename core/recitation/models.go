package recitation

import (
	"encoding/json"
	"errors"
	"sort"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/cetrack/core"
	"github.com/trezcool/cetrack/core/student"
)

const (
	MinDays     = 28
	MaxDays     = 365
	DefaultDays = 365

	MaxWords   = 20000
	MaxMinutes = 2000
	MaxNoteLen = 200
)

var errNoImportData = errors.New("body must contain either records or students")

// Entry is the word count a student recited on a given day.
type Entry struct {
	ID        string      `json:"id"`
	StudentID string      `json:"studentId"`
	Date      time.Time   `json:"date"`
	Words     int         `json:"words"`
	Minutes   null.Int    `json:"minutes"`
	Note      null.String `json:"note"`
	CreatedAt time.Time   `json:"-"`
	UpdatedAt time.Time   `json:"-"`
}

// MarshalJSON renders Date as YYYY-MM-DD.
func (e Entry) MarshalJSON() ([]byte, error) {
	type entry Entry
	return json.Marshal(struct {
		entry
		Date string `json:"date"`
	}{entry(e), e.Date.Format(core.DateLayout)})
}

// DayItem is a row of a recitation history.
type DayItem struct {
	Date    string      `json:"date"`
	Words   int         `json:"words"`
	Minutes null.Int    `json:"minutes"`
	Note    null.String `json:"note"`
}

type (
	Range struct {
		Start string `json:"start"`
		End   string `json:"end"`
	}

	History struct {
		Student student.Brief `json:"student"`
		Range   Range         `json:"range"`
		Items   []DayItem     `json:"items"`
	}
)

// UpsertEntry is the body of a daily upsert.
type UpsertEntry struct {
	Date    string  `json:"date" validate:"required,isodate"`
	Words   *int    `json:"words" validate:"required,min=0,max=20000"`
	Minutes *int    `json:"minutes" validate:"omitempty,min=0,max=2000"`
	Note    *string `json:"note"`
}

func (ue *UpsertEntry) Validate(validate *validator.Validate) error {
	ue.Date = core.CleanString(ue.Date)
	return validate.Struct(ue)
}

func (ue UpsertEntry) entry(studentID string) Entry {
	date, _ := core.ParseDate(ue.Date) // validated
	return Entry{
		StudentID: studentID,
		Date:      date,
		Words:     *ue.Words,
		Minutes:   core.NullIntPtr(ue.Minutes),
		Note:      cleanNote(ue.Note),
	}
}

func cleanNote(note *string) null.String {
	if note == nil {
		return null.String{}
	}
	return core.NullString(core.Truncate(core.CleanString(*note), MaxNoteLen))
}

type (
	// ImportRequest carries either per-day records or per-student daily maps.
	ImportRequest struct {
		Records  []RecordItem  `json:"records" validate:"omitempty,dive"`
		Students []StudentItem `json:"students" validate:"omitempty,dive"`
	}

	RecordItem struct {
		StudentNo   string  `json:"studentNo" validate:"required,notblank,max=64"`
		StudentName string  `json:"studentName" validate:"max=128"`
		Name        string  `json:"name" validate:"max=128"`
		ClassName   string  `json:"className" validate:"max=128"`
		Date        string  `json:"date" validate:"required,isodate"`
		Words       *int    `json:"words" validate:"required,min=0,max=20000"`
		Minutes     *int    `json:"minutes" validate:"omitempty,min=0,max=2000"`
		Note        *string `json:"note"`
	}

	StudentItem struct {
		StudentNo string         `json:"studentNo" validate:"required,notblank,max=64"`
		Name      string         `json:"name" validate:"max=128"`
		ClassName string         `json:"className" validate:"max=128"`
		Daily     map[string]int `json:"daily" validate:"required,dive,keys,isodate,endkeys,min=0,max=20000"`
	}

	// ImportStudent is the student side of an import record.
	ImportStudent struct {
		StudentNo string
		Name      string
		ClassName null.String
	}

	// ImportRecord is a validated import row.
	ImportRecord struct {
		Student ImportStudent
		Date    time.Time
		Words   int
		Minutes null.Int
		Note    null.String
	}

	ImportResult struct {
		TotalRecords        int `json:"totalRecords"`
		StudentsUpserted    int `json:"studentsUpserted"`
		RecitationsUpserted int `json:"recitationsUpserted"`
	}
)

func (req *ImportRequest) Validate(validate *validator.Validate) error {
	if req.Records == nil && req.Students == nil {
		return core.NewValidationError(errNoImportData)
	}
	if req.Records != nil {
		req.Students = nil
		if len(req.Records) == 0 {
			return core.NewFieldError("records", "records must be a non-empty array")
		}
	} else if len(req.Students) == 0 {
		return core.NewFieldError("students", "students must be a non-empty array")
	}
	return validate.Struct(req)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = core.CleanString(v); v != "" {
			return v
		}
	}
	return ""
}

// records flattens the request; daily maps are emitted in date order.
func (req ImportRequest) records() []ImportRecord {
	var out []ImportRecord
	for _, r := range req.Records {
		no := core.CleanString(r.StudentNo)
		date, _ := core.ParseDate(r.Date) // validated
		out = append(out, ImportRecord{
			Student: ImportStudent{
				StudentNo: no,
				Name:      firstNonEmpty(r.StudentName, r.Name, no),
				ClassName: core.NullString(r.ClassName),
			},
			Date:    date,
			Words:   *r.Words,
			Minutes: core.NullIntPtr(r.Minutes),
			Note:    cleanNote(r.Note),
		})
	}
	for _, s := range req.Students {
		no := core.CleanString(s.StudentNo)
		stu := ImportStudent{StudentNo: no, Name: firstNonEmpty(s.Name, no), ClassName: core.NullString(s.ClassName)}
		days := make([]string, 0, len(s.Daily))
		for day := range s.Daily {
			days = append(days, day)
		}
		sort.Strings(days)
		for _, day := range days {
			date, _ := core.ParseDate(day) // validated
			out = append(out, ImportRecord{Student: stu, Date: date, Words: s.Daily[day]})
		}
	}
	return out
}

// ClampDays parses the `days` query parameter.
func ClampDays(raw string) int {
	days, err := strconv.Atoi(core.CleanString(raw))
	if err != nil {
		return DefaultDays
	}
	return core.Clamp(days, MinDays, MaxDays)
}

// DayRange returns the UTC calendar days [today-(days-1), today].
func DayRange(now time.Time, days int) (time.Time, time.Time) {
	now = now.UTC()
	end := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return end.AddDate(0, 0, -(days - 1)), end
}
