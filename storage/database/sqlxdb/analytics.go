package sqlxrepos

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/cetrack/core/report"
	"github.com/trezcool/cetrack/core/score"
)

type analyticsRepository struct {
	db      *sqlx.DB
	builder sq.StatementBuilderType
}

var (
	_ score.Analyzer    = (*analyticsRepository)(nil) // interface compliance check
	_ report.Repository = (*analyticsRepository)(nil)
)

func NewAnalyticsRepository(db *sqlx.DB) *analyticsRepository {
	format := sq.PlaceholderFormat(sq.Question)
	if sqlx.BindType(db.DriverName()) == sqlx.DOLLAR {
		format = sq.Dollar
	}
	return &analyticsRepository{db: db, builder: sq.StatementBuilder.PlaceholderFormat(format)}
}

type totalsRow struct {
	ExamBatchID string       `db:"exam_batch_id"`
	Total       int          `db:"total"`
	Pass        int          `db:"pass"`
	Avg         null.Float64 `db:"avg_total"`
	Min         null.Int     `db:"min_total"`
	Max         null.Int     `db:"max_total"`
}

// scoreFilter restricts the `s` scores joined to their `eb` exam batch.
func scoreFilter(q sq.SelectBuilder, filter score.Filter) sq.SelectBuilder {
	if filter.ExamBatchID.Valid {
		q = q.Where(sq.Eq{"eb.id": filter.ExamBatchID.String})
	}
	if filter.ExamType.Valid {
		q = q.Where(sq.Eq{"eb.exam_type": filter.ExamType.String})
	}
	if filter.Year.Valid {
		q = q.Where(sq.Eq{"eb.year": filter.Year.Int})
	}
	if filter.Month.Valid {
		q = q.Where(sq.Eq{"eb.month": filter.Month.Int})
	}
	return q
}

func passColumn(expr string, passLine int) sq.Sqlizer {
	return sq.Expr("COALESCE(SUM(CASE WHEN "+expr+" >= ? THEN 1 ELSE 0 END), 0) AS pass", passLine)
}

func (repo analyticsRepository) totals(filter score.Filter) sq.SelectBuilder {
	q := repo.builder.
		Select("COUNT(s.id) AS total").
		Column(passColumn("s.total_score", filter.PassLine)).
		Columns(
			"CAST(AVG(s.total_score) AS DOUBLE PRECISION) AS avg_total",
			"MIN(s.total_score) AS min_total",
			"MAX(s.total_score) AS max_total",
		).
		From("scores s").
		Join("exam_batches eb ON eb.id = s.exam_batch_id")
	return scoreFilter(q, filter)
}

func (repo analyticsRepository) Totals(ctx context.Context, filter score.Filter) (score.Totals, error) {
	query, args, err := repo.totals(filter).ToSql()
	if err != nil {
		return score.Totals{}, errors.Wrap(err, "building totals query")
	}

	var row totalsRow
	if err = repo.db.GetContext(ctx, &row, query, args...); err != nil {
		return score.Totals{}, errors.Wrap(err, "querying totals")
	}
	return score.Totals{
		TotalCount:    row.Total,
		PassCount:     row.Pass,
		AvgTotalScore: row.Avg,
		MinTotalScore: row.Min,
		MaxTotalScore: row.Max,
	}, nil
}

func (repo analyticsRepository) ByBatch(ctx context.Context, filter score.Filter) ([]score.BatchTotals, error) {
	query, args, err := repo.totals(filter).Column("eb.id AS exam_batch_id").GroupBy("eb.id").ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building per batch query")
	}

	var rows []totalsRow
	if err = repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying per batch totals")
	}
	res := make([]score.BatchTotals, 0, len(rows))
	for _, row := range rows {
		res = append(res, score.BatchTotals{
			ExamBatchID:   row.ExamBatchID,
			Total:         row.Total,
			Pass:          row.Pass,
			AvgTotalScore: row.Avg,
		})
	}
	return res, nil
}

type classRow struct {
	totalsRow
	ClassName string `db:"class_name"`
}

const classExpr = "COALESCE(NULLIF(TRIM(st.class_name), ''), '" + report.UnassignedClass + "')"

// ClassStats groups the whole roster by class and left joins the filtered scores,
// so classes without scores are still listed.
func (repo analyticsRepository) ClassStats(ctx context.Context, filter score.Filter) ([]report.ClassStat, error) {
	sub := scoreFilter(
		repo.builder.
			Select("s.student_id", "s.total_score").
			From("scores s").
			Join("exam_batches eb ON eb.id = s.exam_batch_id"),
		filter,
	)

	query, args, err := repo.builder.
		Select(classExpr+" AS class_name", "COUNT(sc.student_id) AS total").
		Column(passColumn("sc.total_score", filter.PassLine)).
		Columns(
			"CAST(AVG(sc.total_score) AS DOUBLE PRECISION) AS avg_total",
			"MIN(sc.total_score) AS min_total",
			"MAX(sc.total_score) AS max_total",
		).
		From("students st").
		JoinClause(sub.Prefix("LEFT JOIN (").Suffix(") sc ON sc.student_id = st.id")).
		GroupBy(classExpr).
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building class stats query")
	}

	var rows []classRow
	if err = repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying class stats")
	}
	stats := make([]report.ClassStat, 0, len(rows))
	for _, row := range rows {
		stats = append(stats, report.ClassStat{
			ClassName:     row.ClassName,
			Total:         row.Total,
			Pass:          row.Pass,
			AvgTotalScore: row.Avg,
			MinTotalScore: row.Min,
			MaxTotalScore: row.Max,
		})
	}
	return stats, nil
}
