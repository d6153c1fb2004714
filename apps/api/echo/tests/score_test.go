package tests

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/cetrack/core/score"
	"github.com/trezcool/cetrack/core/student"
	"github.com/trezcool/cetrack/core/user"
)

const scoresImportBody = `{
	"examBatch": {"examType": "CET4", "year": 2024, "month": 6, "examDate": "2024-06-15"},
	"items": [
		{"studentNo": "20230001", "studentName": "Li Lei", "className": "CS-1", "totalScore": 480, "listeningScore": 160},
		{"studentNo": "20230002", "studentName": "Han Meimei", "className": "CS-1", "totalScore": 410, "entrySource": "OCR", "ocrRawJson": {"conf": 0.9}},
		{"studentNo": "20230003", "studentName": "Jim Green", "totalScore": 425}
	]
}`

func Test_scoreApi_importScores(t *testing.T) {
	app, env := setup(t)
	teacher := env.CreateUser(t, "wang@school.cn", "Ms Wang", "s3cret!", user.RoleTeacher)
	token := env.TeacherToken(t, teacher)
	s := env.CreateStudent(t, "20230001", "Li Lei", "CS-1")

	item := `{"studentNo": "20230001", "studentName": "Li Lei", "totalScore": 480}`
	tests := []httpTest{
		{
			name: "student token", token: env.StudentToken(t, s), body: []byte(scoresImportBody),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbiddenRole),
		},
		{
			name: "no items", body: []byte(`{"examBatch": {"id": "x"}, "items": []}`),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"items": "items must be a non-empty array"}),
		},
		{
			name: "unknown batch", body: []byte(`{"examBatch": {"id": "nope"}, "items": [` + item + `]}`),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"examBatch.id": "examBatch.id not found"}),
		},
		{
			name: "batch fields required", body: []byte(`{"examBatch": {}, "items": [` + item + `]}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"examBatch.examType": "examType is required",
				"examBatch.year":     "year is required",
				"examBatch.month":    "month is required",
				"examBatch.examDate": "examDate is required",
			}),
		},
		{
			name: "item fields required", body: []byte(`{"examBatch": {"examType": "CET4", "year": 2024, "month": 6, "examDate": "2024-06-15"}, "items": [{"studentNo": " "}]}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"items[0].studentNo":   "studentNo is required",
				"items[0].studentName": "studentName is required",
				"items[0].totalScore":  "totalScore is required",
			}),
		},
		{
			name: "score out of range", body: []byte(`{"examBatch": {"examType": "CET4", "year": 2024, "month": 6, "examDate": "2024-06-15"}, "items": [{"studentNo": "1", "studentName": "A", "totalScore": 711}]}`),
			wantCode: http.StatusBadRequest,
		},
		{
			name: "bad exam type", body: []byte(`{"examBatch": {"examType": "TOEFL", "year": 2024, "month": 6, "examDate": "2024-06-15"}, "items": [` + item + `]}`),
			wantCode: http.StatusBadRequest,
		},
	}
	for i := range tests {
		tests[i].method = http.MethodPost
		tests[i].path = "/scores/import"
		if tests[i].token == "" {
			tests[i].token = token
		}
	}
	runHTTPTests(t, app, tests)

	var first score.ImportResult
	t.Run("import", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/scores/import", token, []byte(scoresImportBody))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		unmarshal(t, rec, &first)

		assert.NotEmpty(t, first.ExamBatchID)
		assert.Equal(t, 3, first.Total)
		assert.Equal(t, 3, first.Created)
		assert.Equal(t, 0, first.Updated)

		batch, err := env.ScoreRepo.GetExamBatch(context.Background(), first.ExamBatchID)
		require.NoError(t, err)
		assert.Equal(t, "CET4-2024-06", batch.Name)

		// existing students are kept, new ones are created
		students, err := env.StudentSvc.Query(context.Background(), student.QueryFilter{})
		require.NoError(t, err)
		require.Len(t, students, 3)
		var ids []string
		for _, st := range students {
			ids = append(ids, st.ID)
		}
		assert.Contains(t, ids, s.ID)

		scores, err := env.ScoreRepo.QueryStudentScores(context.Background(), s.ID)
		require.NoError(t, err)
		require.Len(t, scores, 1)
		assert.Equal(t, 480, scores[0].TotalScore)
		assert.Equal(t, 160, scores[0].ListeningScore.Int)
		assert.Equal(t, score.SourceManual, scores[0].EntrySource)
	})

	t.Run("import again", func(t *testing.T) {
		body := []byte(`{"examBatch": {"id": "` + first.ExamBatchID + `"}, "defaultEntrySource": "IMPORT", "items": [` + item + `]}`)
		req, rec := newAuthRequest(http.MethodPost, "/scores/import", token, body)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var res score.ImportResult
		unmarshal(t, rec, &res)
		assert.Equal(t, score.ImportResult{ExamBatchID: first.ExamBatchID, Total: 1, Created: 0, Updated: 1}, res)

		scores, err := env.ScoreRepo.QueryStudentScores(context.Background(), s.ID)
		require.NoError(t, err)
		require.Len(t, scores, 1)
		assert.Equal(t, score.SourceImport, scores[0].EntrySource)
		// omitted sub-scores survive a re-import
		assert.Equal(t, 160, scores[0].ListeningScore.Int)
	})
}

func Test_scoreApi_analysis(t *testing.T) {
	app, env := setup(t)
	token := env.TeacherToken(t, env.CreateUser(t, "wang@school.cn", "Ms Wang", "s3cret!", user.RoleTeacher))

	students := []student.Student{
		env.CreateStudent(t, "20230001", "Li Lei", "CS-1"),
		env.CreateStudent(t, "20230002", "Han Meimei", "CS-1"),
	}
	jun := env.CreateExamBatch(t, score.ExamCET4, 2024, 6)
	dec := env.CreateExamBatch(t, score.ExamCET4, 2024, 12)
	cet6 := env.CreateExamBatch(t, score.ExamCET6, 2024, 12)
	env.ImportScores(t, jun, students, 400, 450)
	env.ImportScores(t, dec, students, 500, 300)
	env.ImportScores(t, cet6, students[:1], 430)

	analyze := func(t *testing.T, query string) score.Analysis {
		req, rec := newAuthRequest(http.MethodGet, "/scores/analysis"+query, token)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var res score.Analysis
		unmarshal(t, rec, &res)
		return res
	}

	t.Run("all", func(t *testing.T) {
		res := analyze(t, "")
		assert.Equal(t, score.DefaultPassLine, res.Filters.PassLine)
		assert.Equal(t, 5, res.Totals.TotalCount)
		assert.Equal(t, 3, res.Totals.PassCount)
		assert.InDelta(t, 0.6, res.Totals.PassRate, 1e-9)
		assert.Equal(t, 300, res.Totals.MinTotalScore.Int)
		assert.Equal(t, 500, res.Totals.MaxTotalScore.Int)
		require.Len(t, res.ByBatch, 3)
		assert.Equal(t, jun.ID, res.ByBatch[0].ExamBatch.ID)
	})

	t.Run("cet4 with pass line", func(t *testing.T) {
		res := analyze(t, "?examType=cet4&passLine=450")
		assert.Equal(t, "CET4", res.Filters.ExamType.String)
		assert.Equal(t, 4, res.Totals.TotalCount)
		assert.Equal(t, 2, res.Totals.PassCount)
		assert.InDelta(t, 412.5, res.Totals.AvgTotalScore.Float64, 1e-9)
		require.Len(t, res.ByBatch, 2)
		assert.Equal(t, jun.ID, res.ByBatch[0].ExamBatch.ID)
		assert.Equal(t, 1, res.ByBatch[0].Pass)
		assert.InDelta(t, 0.5, res.ByBatch[0].PassRate, 1e-9)
		assert.Equal(t, dec.ID, res.ByBatch[1].ExamBatch.ID)
	})

	t.Run("one batch", func(t *testing.T) {
		res := analyze(t, "?examBatchId="+cet6.ID)
		assert.Equal(t, 1, res.Totals.TotalCount)
		require.Len(t, res.ByBatch, 1)
		assert.Equal(t, score.ExamCET6, res.ByBatch[0].ExamBatch.ExamType)
	})

	t.Run("nothing", func(t *testing.T) {
		res := analyze(t, "?year=1999")
		assert.Equal(t, 0, res.Totals.TotalCount)
		assert.Zero(t, res.Totals.PassRate)
		assert.False(t, res.Totals.AvgTotalScore.Valid)
		assert.Empty(t, res.ByBatch)
	})

	runHTTPTests(t, app, []httpTest{
		{name: "bad year", path: "/scores/analysis?year=soon", token: token, wantCode: http.StatusBadRequest},
		{name: "bad exam type", path: "/scores/analysis?examType=ielts", token: token, wantCode: http.StatusBadRequest},
	})
}

func Test_scoreApi_me(t *testing.T) {
	app, env := setup(t)
	liLei := env.CreateStudent(t, "20230001", "Li Lei", "CS-1")
	hanMeimei := env.CreateStudent(t, "20230002", "Han Meimei", "CS-1")
	jim := env.CreateStudent(t, "20230003", "Jim Green", "EE-2")
	gone := env.CreateStudent(t, "20230004", "Lucy King", "EE-2")
	goneToken := env.StudentToken(t, gone)
	require.NoError(t, env.StudentSvc.Delete(context.Background(), gone.ID))

	jun := env.CreateExamBatch(t, score.ExamCET4, 2024, 6)
	dec := env.CreateExamBatch(t, score.ExamCET4, 2024, 12)
	cet6 := env.CreateExamBatch(t, score.ExamCET6, 2024, 12)
	env.ImportScores(t, jun, []student.Student{liLei, hanMeimei}, 400, 380)
	env.ImportScores(t, dec, []student.Student{liLei, hanMeimei}, 470, 420)
	env.ImportScores(t, cet6, []student.Student{liLei}, 430)

	t.Run("scores", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/scores/me", env.StudentToken(t, liLei))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var res score.StudentScores
		unmarshal(t, rec, &res)
		assert.Equal(t, liLei.Brief(), res.Student)
		require.Len(t, res.Items, 3)
		assert.Equal(t, jun.ID, res.Items[2].ExamBatch.ID)
		assert.Equal(t, 400, res.Items[2].TotalScore)
	})

	t.Run("no scores", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/scores/me", env.StudentToken(t, jim))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var res map[string]json.RawMessage
		unmarshal(t, rec, &res)
		assert.JSONEq(t, `[]`, string(res["items"]))
	})

	tests := []struct {
		name  string
		s     student.Student
		want  score.Eligibility
		token string
	}{
		{
			name: "passed",
			s:    liLei,
			want: score.Eligibility{
				Student:  liLei.Brief(),
				PassLine: score.DefaultPassLine,
				CET4:     score.CET4Status{Passed: true},
				CET6:     score.CET6Status{CanApply: true, Reason: "CET4 passed with 470 (>= 425), CET6 registration is open"},
			},
		},
		{
			name: "below pass line",
			s:    hanMeimei,
			want: score.Eligibility{
				Student:  hanMeimei.Brief(),
				PassLine: score.DefaultPassLine,
				CET6:     score.CET6Status{Reason: "best CET4 score 420 is below the pass line 425"},
			},
		},
		{
			name: "no cet4",
			s:    jim,
			want: score.Eligibility{
				Student:  jim.Brief(),
				PassLine: score.DefaultPassLine,
				CET6:     score.CET6Status{Reason: "no CET4 score on record"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, "/scores/me/eligibility", env.StudentToken(t, tt.s))
			app.ServeHTTP(rec, req)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var res score.Eligibility
			unmarshal(t, rec, &res)
			assert.Equal(t, tt.want.Student, res.Student)
			assert.Equal(t, tt.want.PassLine, res.PassLine)
			assert.Equal(t, tt.want.CET4.Passed, res.CET4.Passed)
			assert.Equal(t, tt.want.CET6, res.CET6)
		})
	}

	runHTTPTests(t, app, []httpTest{
		{name: "deleted student", path: "/scores/me", token: goneToken, wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: student.ErrNotFound.Error()})},
		{name: "deleted student eligibility", path: "/scores/me/eligibility", token: goneToken, wantCode: http.StatusNotFound},
		{name: "anonymous", path: "/scores/me", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
	})
}
