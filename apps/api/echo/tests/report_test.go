package tests

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/cetrack/core/report"
	"github.com/trezcool/cetrack/core/score"
	"github.com/trezcool/cetrack/core/student"
	"github.com/trezcool/cetrack/core/user"
)

func Test_reportApi_classStats(t *testing.T) {
	app, env := setup(t)
	token := env.TeacherToken(t, env.CreateUser(t, "wang@school.cn", "Ms Wang", "s3cret!", user.RoleTeacher))

	liLei := env.CreateStudent(t, "20230001", "Li Lei", "CS-1")
	hanMeimei := env.CreateStudent(t, "20230002", "Han Meimei", "CS-1")
	jim := env.CreateStudent(t, "20230003", "Jim Green", "EE-2")
	lucy := env.CreateStudent(t, "20230004", "Lucy King", "")

	dec := env.CreateExamBatch(t, score.ExamCET4, 2024, 12)
	cet6 := env.CreateExamBatch(t, score.ExamCET6, 2024, 12)
	env.ImportScores(t, dec, []student.Student{liLei, hanMeimei, lucy}, 500, 300, 430)
	env.ImportScores(t, cet6, []student.Student{jim}, 450)

	stats := func(t *testing.T, query string) report.ClassStats {
		req, rec := newAuthRequest(http.MethodGet, "/reports/class-stats"+query, token)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var res report.ClassStats
		unmarshal(t, rec, &res)
		return res
	}

	t.Run("cet4", func(t *testing.T) {
		res := stats(t, "?examType=CET4")
		assert.Equal(t, report.Totals{ClassCount: 3, TotalCount: 3}, res.Totals)
		require.Len(t, res.Classes, 3)

		cs1 := res.Classes[0]
		assert.Equal(t, "CS-1", cs1.ClassName)
		assert.Equal(t, 2, cs1.Total)
		assert.Equal(t, 1, cs1.Pass)
		assert.InDelta(t, 0.5, cs1.PassRate, 1e-9)
		assert.InDelta(t, 400, cs1.AvgTotalScore.Float64, 1e-9)
		assert.Equal(t, 300, cs1.MinTotalScore.Int)
		assert.Equal(t, 500, cs1.MaxTotalScore.Int)

		unassigned := res.Classes[1]
		assert.Equal(t, report.UnassignedClass, unassigned.ClassName)
		assert.Equal(t, 1, unassigned.Total)
		assert.Equal(t, 1, unassigned.Pass)

		ee2 := res.Classes[2]
		assert.Equal(t, "EE-2", ee2.ClassName)
		assert.Zero(t, ee2.Total)
		assert.Zero(t, ee2.PassRate)
		assert.False(t, ee2.AvgTotalScore.Valid)
	})

	t.Run("pass line", func(t *testing.T) {
		res := stats(t, "?examBatchId="+dec.ID+"&passLine=250")
		assert.Equal(t, 250, res.Filters.PassLine)
		require.Len(t, res.Classes, 3)
		assert.Equal(t, 2, res.Classes[0].Pass)
		assert.InDelta(t, 1, res.Classes[0].PassRate, 1e-9)
	})

	t.Run("every class", func(t *testing.T) {
		res := stats(t, "")
		assert.Equal(t, 4, res.Totals.TotalCount)
		require.Len(t, res.Classes, 3)
		assert.Equal(t, "CS-1", res.Classes[0].ClassName)
		// EE-2 and the unassigned class tie on one score each
		assert.Equal(t, "EE-2", res.Classes[1].ClassName)
		assert.Equal(t, report.UnassignedClass, res.Classes[2].ClassName)
	})

	runHTTPTests(t, app, []httpTest{
		{name: "student token", path: "/reports/class-stats", token: env.StudentToken(t, liLei), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbiddenRole)},
		{name: "bad month", path: "/reports/class-stats?month=june", token: token, wantCode: http.StatusBadRequest},
	})
}
