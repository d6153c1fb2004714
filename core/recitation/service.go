package recitation

import (
	"context"
	"time"

	"github.com/trezcool/cetrack/core"
	"github.com/trezcool/cetrack/core/student"
)

var NowFunc = time.Now // mockable

type (
	Repository interface {
		// UpsertEntry upserts on (StudentID, Date).
		UpsertEntry(ctx context.Context, e Entry) (Entry, error)
		QueryEntries(ctx context.Context, studentID string, from, to time.Time) ([]Entry, error)
		// ImportEntries upserts the students then their entries in one transaction.
		ImportEntries(ctx context.Context, chunkSize int, records []ImportRecord) (ImportResult, error)
	}

	Service struct {
		repo       Repository
		studentSvc *student.Service
		conf       *core.Config
	}
)

func NewService(repo Repository, studentSvc *student.Service, conf *core.Config) *Service {
	return &Service{repo: repo, studentSvc: studentSvc, conf: conf}
}

func (svc *Service) Upsert(ctx context.Context, studentID string, ue UpsertEntry) (Entry, error) {
	s, err := svc.studentSvc.GetByID(ctx, studentID)
	if err != nil {
		return Entry{}, err
	}
	e := ue.entry(s.ID)
	now := time.Now().UTC()
	e.CreatedAt, e.UpdatedAt = now, now
	return svc.repo.UpsertEntry(ctx, e)
}

// History returns the last `days` days of entries of a student, oldest first.
func (svc *Service) History(ctx context.Context, studentID string, days int) (History, error) {
	s, err := svc.studentSvc.GetByID(ctx, studentID)
	if err != nil {
		return History{}, err
	}
	start, end := DayRange(NowFunc(), days)
	entries, err := svc.repo.QueryEntries(ctx, s.ID, start, end)
	if err != nil {
		return History{}, err
	}

	items := make([]DayItem, 0, len(entries))
	for _, e := range entries {
		items = append(items, DayItem{
			Date:    e.Date.UTC().Format(core.DateLayout),
			Words:   e.Words,
			Minutes: e.Minutes,
			Note:    e.Note,
		})
	}
	return History{
		Student: s.Brief(),
		Range:   Range{Start: start.Format(core.DateLayout), End: end.Format(core.DateLayout)},
		Items:   items,
	}, nil
}

func (svc *Service) Import(ctx context.Context, req ImportRequest) (ImportResult, error) {
	records := req.records()
	if len(records) == 0 {
		return ImportResult{}, nil
	}
	return svc.repo.ImportEntries(ctx, svc.conf.Score.ImportChunkSize, records)
}
