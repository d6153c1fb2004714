package sqlxrepos_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/cetrack/core/report"
	"github.com/trezcool/cetrack/core/score"
	"github.com/trezcool/cetrack/core/student"
	sqlxrepos "github.com/trezcool/cetrack/storage/database/sqlxdb"
	"github.com/trezcool/cetrack/tests"
)

type fixture struct {
	env      *testutil.Env
	dec, jun score.ExamBatch
}

// students: 2 in CS-1, 1 in CS-2, 1 without class, 1 with a blank class.
func newFixture(t *testing.T) fixture {
	env := testutil.NewEnv(t)
	s1 := env.CreateStudent(t, "2023001", "Li Lei", "CS-1")
	s2 := env.CreateStudent(t, "2023002", "Han Meimei", "CS-1")
	s3 := env.CreateStudent(t, "2023003", "Zhang Wei", "CS-2")
	s4 := env.CreateStudent(t, "2023004", "Wang Fang", "")
	env.CreateStudent(t, "2023005", "Liu Yang", "   ")

	jun := env.CreateExamBatch(t, score.ExamCET4, 2024, 6)
	dec := env.CreateExamBatch(t, score.ExamCET4, 2024, 12)
	env.ImportScores(t, jun, []student.Student{s1, s2}, 400, 425)
	env.ImportScores(t, dec, []student.Student{s1, s4}, 500, 300)
	_ = s3
	return fixture{env: env, dec: dec, jun: jun}
}

func TestAnalyticsRepository_Totals(t *testing.T) {
	fx := newFixture(t)
	repo := sqlxrepos.NewAnalyticsRepository(fx.env.Sqlx)
	ctx := context.Background()

	tests := []struct {
		name   string
		filter score.Filter
		want   score.Totals
	}{
		{
			name:   "all",
			filter: score.Filter{PassLine: 425},
			want: score.Totals{
				TotalCount: 4, PassCount: 2,
				AvgTotalScore: null.Float64From(406.25), MinTotalScore: null.IntFrom(300), MaxTotalScore: null.IntFrom(500),
			},
		},
		{
			name:   "by batch",
			filter: score.Filter{ExamBatchID: null.StringFrom(fx.jun.ID), PassLine: 425},
			want: score.Totals{
				TotalCount: 2, PassCount: 1,
				AvgTotalScore: null.Float64From(412.5), MinTotalScore: null.IntFrom(400), MaxTotalScore: null.IntFrom(425),
			},
		},
		{
			name:   "custom pass line",
			filter: score.Filter{Year: null.IntFrom(2024), Month: null.IntFrom(12), PassLine: 250},
			want: score.Totals{
				TotalCount: 2, PassCount: 2,
				AvgTotalScore: null.Float64From(400), MinTotalScore: null.IntFrom(300), MaxTotalScore: null.IntFrom(500),
			},
		},
		{
			name:   "no rows",
			filter: score.Filter{ExamType: null.StringFrom(score.ExamCET6), PassLine: 425},
			want:   score.Totals{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.Totals(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAnalyticsRepository_ByBatch(t *testing.T) {
	fx := newFixture(t)
	repo := sqlxrepos.NewAnalyticsRepository(fx.env.Sqlx)

	got, err := repo.ByBatch(context.Background(), score.Filter{PassLine: 425})
	require.NoError(t, err)
	assert.ElementsMatch(t, []score.BatchTotals{
		{ExamBatchID: fx.jun.ID, Total: 2, Pass: 1, AvgTotalScore: null.Float64From(412.5)},
		{ExamBatchID: fx.dec.ID, Total: 2, Pass: 1, AvgTotalScore: null.Float64From(400)},
	}, got)
}

func TestAnalyticsRepository_ClassStats(t *testing.T) {
	fx := newFixture(t)
	repo := sqlxrepos.NewAnalyticsRepository(fx.env.Sqlx)

	got, err := repo.ClassStats(context.Background(), score.Filter{ExamBatchID: null.StringFrom(fx.dec.ID), PassLine: 425})
	require.NoError(t, err)
	assert.ElementsMatch(t, []report.ClassStat{
		{ClassName: "CS-1", Total: 1, Pass: 1, AvgTotalScore: null.Float64From(500), MinTotalScore: null.IntFrom(500), MaxTotalScore: null.IntFrom(500)},
		{ClassName: "CS-2"},
		{ClassName: report.UnassignedClass, Total: 1, AvgTotalScore: null.Float64From(300), MinTotalScore: null.IntFrom(300), MaxTotalScore: null.IntFrom(300)},
	}, got)
}
