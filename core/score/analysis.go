package score

import (
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/cetrack/core"
)

type (
	// Filter selects the scores taken into an aggregation.
	Filter struct {
		ExamBatchID null.String `json:"examBatchId"`
		ExamType    null.String `json:"examType"`
		Year        null.Int    `json:"year"`
		Month       null.Int    `json:"month"`
		PassLine    int         `json:"passLine"`
	}

	// FilterQuery is the query string form of a Filter.
	FilterQuery struct {
		ExamBatchID string `query:"examBatchId" json:"examBatchId"`
		ExamType    string `query:"examType" json:"examType" validate:"omitempty,oneof=CET4 CET6"`
		Year        string `query:"year" json:"year" validate:"omitempty,number"`
		Month       string `query:"month" json:"month" validate:"omitempty,number"`
		PassLine    string `query:"passLine" json:"passLine" validate:"omitempty,number"`
	}

	Totals struct {
		TotalCount    int          `json:"totalCount"`
		PassCount     int          `json:"passCount"`
		PassRate      float64      `json:"passRate"`
		AvgTotalScore null.Float64 `json:"avgTotalScore"`
		MinTotalScore null.Int     `json:"minTotalScore"`
		MaxTotalScore null.Int     `json:"maxTotalScore"`
	}

	// BatchTotals is the raw per-batch aggregate returned by an Analyzer.
	BatchTotals struct {
		ExamBatchID   string
		Total         int
		Pass          int
		AvgTotalScore null.Float64
	}

	BatchStats struct {
		ExamBatch     ExamBatch    `json:"examBatch"`
		Total         int          `json:"total"`
		Pass          int          `json:"pass"`
		PassRate      float64      `json:"passRate"`
		AvgTotalScore null.Float64 `json:"avgTotalScore"`
	}

	Analysis struct {
		Filters Filter       `json:"filters"`
		Totals  Totals       `json:"totals"`
		ByBatch []BatchStats `json:"byBatch"`
	}
)

func (q *FilterQuery) Validate(validate *validator.Validate) error {
	q.ExamBatchID = core.CleanString(q.ExamBatchID)
	q.ExamType = strings.ToUpper(core.CleanString(q.ExamType))
	q.Year = core.CleanString(q.Year)
	q.Month = core.CleanString(q.Month)
	q.PassLine = core.CleanString(q.PassLine)
	return validate.Struct(q)
}

// Filter converts a validated query; `passLine` is used when none is given.
func (q FilterQuery) Filter(passLine int) Filter {
	f := Filter{
		ExamBatchID: core.NullString(q.ExamBatchID),
		ExamType:    core.NullString(q.ExamType),
		Year:        atoiNull(q.Year),
		Month:       atoiNull(q.Month),
		PassLine:    passLine,
	}
	if pl := atoiNull(q.PassLine); pl.Valid {
		f.PassLine = pl.Int
	}
	return f
}

func atoiNull(s string) null.Int {
	i, err := strconv.Atoi(s)
	return null.NewInt(i, err == nil)
}

// PassRate is pass/total, 0 when there is nothing to count.
func PassRate(pass, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(pass) / float64(total)
}
