package score

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/cetrack/core"
	"github.com/trezcool/cetrack/core/student"
)

var (
	// errors
	ErrExamBatchNotFound = errors.New("exam batch not found")
)

type (
	Repository interface {
		GetExamBatch(ctx context.Context, id string) (ExamBatch, error)
		// UpsertExamBatch upserts on (ExamType, Year, Month).
		UpsertExamBatch(ctx context.Context, batch ExamBatch) (ExamBatch, error)
		QueryExamBatches(ctx context.Context, ids ...string) ([]ExamBatch, error)
		// ImportScores upserts the students then their scores in one transaction.
		ImportScores(ctx context.Context, batch ImportBatch) (ImportResult, error)
		// QueryStudentScores returns the scores of a student, latest exam first.
		QueryStudentScores(ctx context.Context, studentID string) ([]StudentScore, error)
	}

	// Analyzer runs the aggregate queries.
	Analyzer interface {
		Totals(ctx context.Context, filter Filter) (Totals, error)
		ByBatch(ctx context.Context, filter Filter) ([]BatchTotals, error)
	}

	Service struct {
		repo       Repository
		analyzer   Analyzer
		studentSvc *student.Service
		conf       *core.Config
	}
)

func NewService(repo Repository, analyzer Analyzer, studentSvc *student.Service, conf *core.Config) *Service {
	return &Service{repo: repo, analyzer: analyzer, studentSvc: studentSvc, conf: conf}
}

func (svc *Service) PassLine() int {
	if svc.conf.Score.PassLine > 0 {
		return svc.conf.Score.PassLine
	}
	return DefaultPassLine
}

func (svc *Service) resolveBatch(ctx context.Context, ref ExamBatchRef) (ExamBatch, error) {
	if ref.ID != "" {
		batch, err := svc.repo.GetExamBatch(ctx, ref.ID)
		if err == ErrExamBatchNotFound {
			return ExamBatch{}, core.NewFieldError("examBatch.id", errExamBatchNotFound)
		}
		return batch, err
	}

	examDate, err := core.ParseDateTime(ref.ExamDate)
	if err != nil {
		return ExamBatch{}, core.NewFieldError("examBatch.examDate", "examDate must be an ISO 8601 date")
	}
	name := ref.Name
	if name == "" {
		name = DefaultBatchName(ref.ExamType, ref.Year, ref.Month)
	}
	now := time.Now().UTC()
	return svc.repo.UpsertExamBatch(ctx, ExamBatch{
		ExamType:  ref.ExamType,
		Year:      ref.Year,
		Month:     ref.Month,
		Name:      name,
		ExamDate:  examDate,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

// Import upserts the batch, its students and their scores. `createdByID` is the importing teacher.
func (svc *Service) Import(ctx context.Context, req ImportRequest, createdByID string) (ImportResult, error) {
	batch, err := svc.resolveBatch(ctx, req.ExamBatch)
	if err != nil {
		return ImportResult{}, err
	}
	return svc.repo.ImportScores(ctx, ImportBatch{
		ExamBatchID: batch.ID,
		CreatedByID: null.NewString(createdByID, createdByID != ""),
		ChunkSize:   svc.conf.Score.ImportChunkSize,
		Rows:        req.rows(),
	})
}

func (svc *Service) Analyze(ctx context.Context, filter Filter) (Analysis, error) {
	totals, err := svc.analyzer.Totals(ctx, filter)
	if err != nil {
		return Analysis{}, err
	}
	totals.PassRate = PassRate(totals.PassCount, totals.TotalCount)

	perBatch, err := svc.analyzer.ByBatch(ctx, filter)
	if err != nil {
		return Analysis{}, err
	}
	ids := make([]string, 0, len(perBatch))
	for _, bt := range perBatch {
		ids = append(ids, bt.ExamBatchID)
	}
	batches, err := svc.repo.QueryExamBatches(ctx, ids...)
	if err != nil {
		return Analysis{}, err
	}
	byID := make(map[string]ExamBatch, len(batches))
	for _, b := range batches {
		byID[b.ID] = b
	}

	byBatch := make([]BatchStats, 0, len(perBatch))
	for _, bt := range perBatch {
		batch, ok := byID[bt.ExamBatchID]
		if !ok {
			continue
		}
		byBatch = append(byBatch, BatchStats{
			ExamBatch:     batch,
			Total:         bt.Total,
			Pass:          bt.Pass,
			PassRate:      PassRate(bt.Pass, bt.Total),
			AvgTotalScore: bt.AvgTotalScore,
		})
	}
	sort.SliceStable(byBatch, func(i, j int) bool {
		return byBatch[i].ExamBatch.ExamDate.Before(byBatch[j].ExamBatch.ExamDate)
	})

	return Analysis{Filters: filter, Totals: totals, ByBatch: byBatch}, nil
}

func (svc *Service) StudentScores(ctx context.Context, studentID string) (StudentScores, error) {
	s, err := svc.studentSvc.GetByID(ctx, studentID)
	if err != nil {
		return StudentScores{}, err
	}
	items, err := svc.repo.QueryStudentScores(ctx, s.ID)
	if err != nil {
		return StudentScores{}, err
	}
	if items == nil {
		items = []StudentScore{}
	}
	return StudentScores{Student: s.Brief(), Items: items}, nil
}

func (svc *Service) Eligibility(ctx context.Context, studentID string) (Eligibility, error) {
	scores, err := svc.StudentScores(ctx, studentID)
	if err != nil {
		return Eligibility{}, err
	}
	passLine := svc.PassLine()
	cet4, cet6 := EvaluateEligibility(scores.Items, passLine)
	return Eligibility{Student: scores.Student, PassLine: passLine, CET4: cet4, CET6: cet6}, nil
}
