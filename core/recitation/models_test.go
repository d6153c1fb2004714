package recitation

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClampDays(t *testing.T) {
	tests := map[string]int{
		"":     DefaultDays,
		"lol":  DefaultDays,
		"1":    MinDays,
		"28":   28,
		" 90 ": 90,
		"365":  365,
		"9999": MaxDays,
		"-5":   MinDays,
	}
	for raw, want := range tests {
		assert.Equal(t, want, ClampDays(raw), "ClampDays(%q)", raw)
	}
}

func TestDayRange(t *testing.T) {
	now := time.Date(2025, 3, 1, 23, 59, 0, 0, time.FixedZone("CST", 8*3600)) // 15:59 UTC
	start, end := DayRange(now, 28)
	assert.Equal(t, "2025-03-01", end.Format("2006-01-02"))
	assert.Equal(t, "2025-02-02", start.Format("2006-01-02"))
	assert.Equal(t, 27*24*time.Hour, end.Sub(start))
}

func TestEntry_MarshalJSON(t *testing.T) {
	e := Entry{ID: "e1", StudentID: "s1", Date: time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC), Words: 30}
	data, err := json.Marshal(e)
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "2025-01-02", got["date"])
	assert.Equal(t, float64(30), got["words"])
	assert.Nil(t, got["minutes"])
	assert.Nil(t, got["note"])
}

func TestImportRequest_records(t *testing.T) {
	words := 12
	long := strings.Repeat("好", 250)
	req := ImportRequest{
		Records: []RecordItem{
			{StudentNo: " 2023001 ", Name: "Han Meimei", Date: "2025-01-02", Words: &words, Note: &long},
			{StudentNo: "2023002", Date: "2025-01-03", Words: &words},
		},
	}
	recs := req.records()
	require.Len(t, recs, 2)
	assert.Equal(t, "2023001", recs[0].Student.StudentNo)
	assert.Equal(t, "Han Meimei", recs[0].Student.Name)
	assert.Equal(t, MaxNoteLen, len([]rune(recs[0].Note.String)))
	assert.Equal(t, "2023002", recs[1].Student.Name, "name falls back to studentNo")

	req = ImportRequest{Students: []StudentItem{{
		StudentNo: "2023003", Name: "Li Lei", ClassName: "CS-1",
		Daily: map[string]int{"2025-01-05": 5, "2025-01-01": 1, "2025-01-03": 3},
	}}}
	recs = req.records()
	require.Len(t, recs, 3)
	for i, want := range []string{"2025-01-01", "2025-01-03", "2025-01-05"} {
		assert.Equal(t, want, recs[i].Date.Format("2006-01-02"))
	}
	assert.Equal(t, "CS-1", recs[0].Student.ClassName.String)
}
