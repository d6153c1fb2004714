package report

import (
	"context"
	"sort"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/cetrack/core/score"
)

// UnassignedClass groups students without a class.
const UnassignedClass = "未分班"

type (
	ClassStat struct {
		ClassName     string       `json:"className"`
		Total         int          `json:"total"`
		Pass          int          `json:"pass"`
		PassRate      float64      `json:"passRate"`
		AvgTotalScore null.Float64 `json:"avgTotalScore"`
		MinTotalScore null.Int     `json:"minTotalScore"`
		MaxTotalScore null.Int     `json:"maxTotalScore"`
	}

	Totals struct {
		ClassCount int `json:"classCount"`
		TotalCount int `json:"totalCount"`
	}

	ClassStats struct {
		Filters score.Filter `json:"filters"`
		Totals  Totals       `json:"totals"`
		Classes []ClassStat  `json:"classes"`
	}

	Repository interface {
		// ClassStats aggregates the scores matching `filter` per roster class.
		// Classes without matching scores are returned with a zero total.
		ClassStats(ctx context.Context, filter score.Filter) ([]ClassStat, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) ClassStats(ctx context.Context, filter score.Filter) (ClassStats, error) {
	classes, err := svc.repo.ClassStats(ctx, filter)
	if err != nil {
		return ClassStats{}, err
	}
	return summarize(filter, classes), nil
}

func summarize(filter score.Filter, classes []ClassStat) ClassStats {
	if classes == nil {
		classes = []ClassStat{}
	}
	var total int
	for i := range classes {
		classes[i].PassRate = score.PassRate(classes[i].Pass, classes[i].Total)
		total += classes[i].Total
	}
	sort.SliceStable(classes, func(i, j int) bool {
		if classes[i].Total != classes[j].Total {
			return classes[i].Total > classes[j].Total
		}
		return classes[i].ClassName < classes[j].ClassName
	})
	return ClassStats{
		Filters: filter,
		Totals:  Totals{ClassCount: len(classes), TotalCount: total},
		Classes: classes,
	}
}
