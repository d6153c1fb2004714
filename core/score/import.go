package score

import (
	"encoding/json"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/cetrack/core"
)

var (
	errEmptyItems        = "items must be a non-empty array"
	errExamBatchNotFound = "examBatch.id not found"
)

type (
	// ImportRequest is the body of a score import.
	ImportRequest struct {
		ExamBatch          ExamBatchRef `json:"examBatch"`
		DefaultEntrySource string       `json:"defaultEntrySource" validate:"omitempty,oneof=MANUAL IMPORT OCR"`
		Items              []ImportItem `json:"items" validate:"dive"`
	}

	// ExamBatchRef points to an existing batch by id, or describes the batch to upsert.
	ExamBatchRef struct {
		ID       string `json:"id"`
		ExamType string `json:"examType" validate:"required_without=ID,omitempty,oneof=CET4 CET6"`
		Year     int    `json:"year" validate:"required_without=ID,omitempty,min=1987,max=2100"`
		Month    int    `json:"month" validate:"required_without=ID,omitempty,min=1,max=12"`
		Name     string `json:"name" validate:"max=128"`
		ExamDate string `json:"examDate" validate:"required_without=ID,omitempty,isodatetime"`
	}

	ImportItem struct {
		StudentNo      string          `json:"studentNo" validate:"required,notblank,max=64"`
		StudentName    string          `json:"studentName" validate:"required,notblank,max=128"`
		ClassName      string          `json:"className" validate:"max=128"`
		School         string          `json:"school" validate:"max=128"`
		Major          string          `json:"major" validate:"max=128"`
		IDCard         string          `json:"idCard" validate:"max=64"`
		TotalScore     *int            `json:"totalScore" validate:"required,min=0,max=710"`
		ListeningScore *int            `json:"listeningScore" validate:"omitempty,min=0,max=710"`
		ReadingScore   *int            `json:"readingScore" validate:"omitempty,min=0,max=710"`
		WritingScore   *int            `json:"writingScore" validate:"omitempty,min=0,max=710"`
		OralScore      *int            `json:"oralScore" validate:"omitempty,min=0,max=710"`
		EntrySource    string          `json:"entrySource" validate:"omitempty,oneof=MANUAL IMPORT OCR"`
		OCRImageURL    string          `json:"ocrImageUrl" validate:"max=1024"`
		OCRRawJSON     json.RawMessage `json:"ocrRawJson"`
	}

	// ImportRow is a validated import item, ready to be stored.
	ImportRow struct {
		StudentNo   string
		StudentName string
		ClassName   null.String
		School      null.String
		Major       null.String
		IDCard      null.String

		TotalScore     int
		ListeningScore null.Int
		ReadingScore   null.Int
		WritingScore   null.Int
		OralScore      null.Int
		EntrySource    string
		OCRImageURL    null.String
		OCRRawJSON     json.RawMessage
	}

	// ImportBatch is what the repository imports in a single transaction.
	ImportBatch struct {
		ExamBatchID string
		CreatedByID null.String
		ChunkSize   int
		Rows        []ImportRow
	}

	ImportResult struct {
		ExamBatchID string `json:"examBatchId"`
		Total       int    `json:"total"`
		Created     int    `json:"created"`
		Updated     int    `json:"updated"`
	}
)

func (req *ImportRequest) Validate(validate *validator.Validate) error {
	req.ExamBatch.ID = core.CleanString(req.ExamBatch.ID)
	req.ExamBatch.ExamType = core.CleanString(req.ExamBatch.ExamType)
	req.ExamBatch.Name = core.CleanString(req.ExamBatch.Name)
	if len(req.Items) == 0 {
		return core.NewFieldError("items", errEmptyItems)
	}
	for i := range req.Items {
		req.Items[i].StudentNo = core.CleanString(req.Items[i].StudentNo)
		req.Items[i].StudentName = core.CleanString(req.Items[i].StudentName)
	}
	return validate.Struct(req)
}

// rows resolves the entry source of every item.
func (req ImportRequest) rows() []ImportRow {
	defaultSource := req.DefaultEntrySource
	if defaultSource == "" {
		defaultSource = SourceManual
	}
	rows := make([]ImportRow, 0, len(req.Items))
	for _, it := range req.Items {
		source := it.EntrySource
		if source == "" {
			source = defaultSource
		}
		var raw json.RawMessage
		if len(it.OCRRawJSON) > 0 && string(it.OCRRawJSON) != "null" {
			raw = it.OCRRawJSON
		}
		rows = append(rows, ImportRow{
			StudentNo:      it.StudentNo,
			StudentName:    it.StudentName,
			ClassName:      core.NullString(it.ClassName),
			School:         core.NullString(it.School),
			Major:          core.NullString(it.Major),
			IDCard:         core.NullString(it.IDCard),
			TotalScore:     *it.TotalScore,
			ListeningScore: core.NullIntPtr(it.ListeningScore),
			ReadingScore:   core.NullIntPtr(it.ReadingScore),
			WritingScore:   core.NullIntPtr(it.WritingScore),
			OralScore:      core.NullIntPtr(it.OralScore),
			EntrySource:    source,
			OCRImageURL:    core.NullString(it.OCRImageURL),
			OCRRawJSON:     raw,
		})
	}
	return rows
}
