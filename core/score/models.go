package score

import (
	"fmt"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/cetrack/core/student"
)

// Exam types
const (
	ExamCET4 = "CET4"
	ExamCET6 = "CET6"
)

// Entry sources
const (
	SourceManual = "MANUAL"
	SourceImport = "IMPORT"
	SourceOCR    = "OCR"
)

const DefaultPassLine = 425

// ExamBatch is one administration of an exam, unique on (ExamType, Year, Month).
type ExamBatch struct {
	ID        string    `json:"id"`
	ExamType  string    `json:"examType"`
	Year      int       `json:"year"`
	Month     int       `json:"month"`
	Name      string    `json:"name"`
	ExamDate  time.Time `json:"examDate"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// DefaultBatchName names a batch like `CET4-2025-06`.
func DefaultBatchName(examType string, year, month int) string {
	return fmt.Sprintf("%s-%04d-%02d", examType, year, month)
}

// StudentScore is a score of the "my scores" listing.
type StudentScore struct {
	ID             string    `json:"id"`
	TotalScore     int       `json:"totalScore"`
	ListeningScore null.Int  `json:"listeningScore"`
	ReadingScore   null.Int  `json:"readingScore"`
	WritingScore   null.Int  `json:"writingScore"`
	OralScore      null.Int  `json:"oralScore"`
	EntrySource    string    `json:"entrySource"`
	CreatedAt      time.Time `json:"createdAt"`
	ExamBatch      ExamBatch `json:"examBatch"`
}

type StudentScores struct {
	Student student.Brief  `json:"student"`
	Items   []StudentScore `json:"items"`
}
