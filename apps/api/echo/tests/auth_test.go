package tests

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/cetrack/core/auth"
	"github.com/trezcool/cetrack/core/password"
	"github.com/trezcool/cetrack/core/user"
)

func Test_health(t *testing.T) {
	app, _ := setup(t)

	for _, path := range []string{"/", "/health", "/health/"} {
		req, rec := newRequest(http.MethodGet, path)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var body map[string]string
		unmarshal(t, rec, &body)
		assert.Equal(t, "ok", body["status"])
		assert.Equal(t, "cet-nextgen-api", body["service"])
		_, err := time.Parse(time.RFC3339Nano, body["ts"])
		assert.NoError(t, err)
	}
}

func Test_authApi_loginTeacher(t *testing.T) {
	app, env := setup(t)
	usr := env.CreateUser(t, "wang@school.cn", "Ms Wang", "s3cret!", user.RoleTeacher)

	errInvalidLogin := httpErr{Error: "invalid email or password"}
	body := func(email, pwd, sha string) []byte {
		return marchallObj(t, map[string]string{"email": email, "password": pwd, "passwordSha256": sha})
	}

	tests := []httpTest{
		{name: "email required", body: body("", "s3cret!", ""), wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"email": "email is required"})},
		{
			name: "malformed sha", body: body("wang@school.cn", "", "abc"), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"passwordSha256": password.ErrInvalidShaHex.Error()}),
		},
		{name: "unknown email", body: body("li@school.cn", "s3cret!", ""), wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errInvalidLogin)},
		{name: "wrong password", body: body("wang@school.cn", "nope", ""), wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errInvalidLogin)},
		{name: "plain password", body: body(" WANG@school.cn ", "s3cret!", "")},
		{name: "sha password", body: body("wang@school.cn", "", strings.ToUpper(password.SHA256Hex("s3cret!")))},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/auth/teacher/login"
		if tt.wantCode == 0 {
			tt.wantCode = http.StatusOK
		}

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(tt.method, tt.path, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)

			if rec.Code == http.StatusOK {
				var session struct {
					Token string    `json:"token"`
					User  user.User `json:"user"`
				}
				unmarshal(t, rec, &session)
				assert.Equal(t, usr.ID, session.User.ID)
				assert.Equal(t, "Ms Wang", session.User.DisplayName)

				claims, err := env.Tokens.Verify(session.Token)
				require.NoError(t, err)
				assert.Equal(t, auth.RoleTeacher, claims.Role)
				assert.Equal(t, usr.ID, claims.Subject)
				assert.Equal(t, "Ms Wang", claims.Name)
			}
		})
	}
}

func Test_authApi_loginStudent(t *testing.T) {
	app, env := setup(t)
	s := env.CreateStudent(t, "20230001", "Li Lei", "CS-1")
	other := env.CreateStudent(t, "20230002", "Han Meimei", "CS-1")

	teacher := env.CreateUser(t, "wang@school.cn", "Ms Wang", "s3cret!", user.RoleTeacher)
	req, rec := newAuthRequest(http.MethodPost, "/students/"+other.ID+"/login-code", env.TeacherToken(t, teacher), []byte(`{"code":"opensesame"}`))
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	errInvalidLogin := httpErr{Error: "invalid studentNo or code"}
	body := func(no, code, sha string) []byte {
		return marchallObj(t, map[string]string{"studentNo": no, "code": code, "codeSha256": sha})
	}

	tests := []struct {
		httpTest
		wantID string
	}{
		{httpTest: httpTest{name: "studentNo required", body: body("", "230001", ""), wantCode: http.StatusBadRequest}},
		{httpTest: httpTest{name: "unknown student", body: body("999", "230001", ""), wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errInvalidLogin)}},
		{httpTest: httpTest{name: "wrong default code", body: body("20230001", "000000", ""), wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errInvalidLogin)}},
		{httpTest: httpTest{name: "code required", body: body("20230001", " ", ""), wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"code": "code is required"})}},
		{httpTest: httpTest{name: "custom code missing", body: body("20230002", "", ""), wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errInvalidLogin)}},
		{httpTest: httpTest{name: "default code", body: body("20230001", "230001", "")}, wantID: s.ID},
		{httpTest: httpTest{name: "default code sha", body: body("20230001", "", strings.ToUpper(password.SHA256Hex("230001")))}, wantID: s.ID},
		{httpTest: httpTest{name: "custom code replaces default", body: body("20230002", "230002", ""), wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errInvalidLogin)}},
		{httpTest: httpTest{name: "custom code", body: body("20230002", "opensesame", "")}, wantID: other.ID},
		{httpTest: httpTest{name: "custom code sha", body: body("20230002", "", password.SHA256Hex("opensesame"))}, wantID: other.ID},
	}
	for _, tt := range tests {
		if tt.wantCode == 0 {
			tt.wantCode = http.StatusOK
		}

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/auth/student/login", tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt.httpTest, rec)

			if tt.wantID != "" {
				var session struct {
					Token   string `json:"token"`
					Student struct {
						ID        string `json:"id"`
						StudentNo string `json:"studentNo"`
					} `json:"student"`
				}
				unmarshal(t, rec, &session)
				assert.Equal(t, tt.wantID, session.Student.ID)

				claims, err := env.Tokens.Verify(session.Token)
				require.NoError(t, err)
				assert.Equal(t, auth.RoleStudent, claims.Role)
				assert.Equal(t, session.Student.StudentNo, claims.StudentNo)
			}
		})
	}
}

func Test_authMiddleware(t *testing.T) {
	app, env := setup(t)
	teacher := env.CreateUser(t, "wang@school.cn", "Ms Wang", "s3cret!", user.RoleTeacher)
	s := env.CreateStudent(t, "20230001", "Li Lei", "CS-1")
	teacherToken := env.TeacherToken(t, teacher)

	expired := func() string {
		defer func(now func() time.Time) { auth.NowFunc = now }(auth.NowFunc)
		auth.NowFunc = func() time.Time { return time.Now().Add(-2 * env.Conf.Auth.TokenTTL) }
		return env.TeacherToken(t, teacher)
	}()
	otherSecret, err := auth.NewTokenManager("other", time.Hour).Sign(auth.Claims{RegisteredClaims: auth.Subject(teacher.ID), Role: auth.RoleTeacher})
	require.NoError(t, err)

	tests := []httpTest{
		{name: "no token", path: "/students", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "garbage", path: "/students", token: "lol", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errInvalidToken)},
		{name: "expired", path: "/students", token: expired, wantCode: http.StatusUnauthorized, wantData: marchallObj(t, httpErr{Error: "token expired"})},
		{name: "bad signature", path: "/students", token: otherSecret, wantCode: http.StatusUnauthorized, wantData: marchallObj(t, httpErr{Error: "invalid token signature"})},
		{name: "wrong role", path: "/students", token: env.StudentToken(t, s), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbiddenRole)},
		{name: "teacher only endpoint", path: "/students", token: teacherToken, wantData: marchallList(t, s.Summary())},
		{name: "student only endpoint", path: "/scores/me", token: teacherToken, wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbiddenRole)},
	}
	runHTTPTests(t, app, tests)

	t.Run("lowercase scheme", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/auth/me")
		req.Header.Set("Authorization", "bearer   "+teacherToken)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var body struct {
			Role string    `json:"role"`
			User user.User `json:"user"`
		}
		unmarshal(t, rec, &body)
		assert.Equal(t, auth.RoleTeacher, body.Role)
		assert.Equal(t, teacher.ID, body.User.ID)
	})
}
