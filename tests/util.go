package testutil

import (
	"context"
	"database/sql"
	"io"
	"log"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"gorm.io/gorm"

	"github.com/trezcool/cetrack/core"
	"github.com/trezcool/cetrack/core/auth"
	"github.com/trezcool/cetrack/core/password"
	"github.com/trezcool/cetrack/core/recitation"
	"github.com/trezcool/cetrack/core/report"
	"github.com/trezcool/cetrack/core/score"
	"github.com/trezcool/cetrack/core/student"
	"github.com/trezcool/cetrack/core/user"
	logsvc "github.com/trezcool/cetrack/services/logger"
	"github.com/trezcool/cetrack/storage/database"
	gormrepos "github.com/trezcool/cetrack/storage/database/gormdb"
	sqlxrepos "github.com/trezcool/cetrack/storage/database/sqlxdb"
)

// NewConfig returns the configuration used by tests; it never reads the environment.
func NewConfig() *core.Config {
	conf := &core.Config{
		Env:       "TEST",
		Build:     "test",
		TestMode:  true,
		AppName:   "cet-nextgen-api",
		SecretKey: "test_secret",
	}
	conf.Auth.TokenTTL = time.Hour
	conf.Auth.PasswordIterations = 1000
	conf.Score.PassLine = score.DefaultPassLine
	conf.Score.ImportChunkSize = 2 // exercise chunking
	conf.Server.ShutdownTimeout = time.Second
	conf.Server.DisableReqLogs = true
	conf.Database.Engine = database.EngineSqlite
	conf.Database.Name = "file::memory:"
	return conf
}

// NewLogger returns a logger that reports nothing.
func NewLogger() *logsvc.RollbarLogger {
	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), NewConfig())
	logger.Enable(false)
	return logger
}

// PrepareDB opens a fresh in-memory database with the schema applied.
func PrepareDB(t *testing.T) (*gorm.DB, *sqlx.DB) {
	t.Helper()
	conf := NewConfig()

	db, err := sql.Open(database.EngineSqlite, conf.Database.Name)
	if err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	db.SetMaxOpenConns(1) // every connection would get its own memory database
	t.Cleanup(func() { _ = db.Close() })

	gdb, err := database.NewGorm(db, database.EngineSqlite, nil)
	if err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	if err = gormrepos.AutoMigrate(gdb); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	return gdb, database.NewSqlx(db, database.EngineSqlite)
}

// Env bundles the services wired on a fresh database.
type Env struct {
	Conf   *core.Config
	Gorm   *gorm.DB
	Sqlx   *sqlx.DB
	Hasher *password.Hasher
	Tokens *auth.TokenManager

	UserRepo       user.Repository
	StudentRepo    student.Repository
	ScoreRepo      score.Repository
	RecitationRepo recitation.Repository

	UserSvc       *user.Service
	StudentSvc    *student.Service
	ScoreSvc      *score.Service
	RecitationSvc *recitation.Service
	ReportSvc     *report.Service
	AuthSvc       *auth.Service
}

func NewEnv(t *testing.T) *Env {
	t.Helper()
	gdb, sdb := PrepareDB(t)
	conf := NewConfig()
	env := &Env{
		Conf:           conf,
		Gorm:           gdb,
		Sqlx:           sdb,
		Hasher:         password.NewHasher(conf.SecretKey, conf.Auth.PasswordIterations),
		Tokens:         auth.NewTokenManager(conf.SecretKey, conf.Auth.TokenTTL),
		UserRepo:       gormrepos.NewUserRepository(gdb),
		StudentRepo:    gormrepos.NewStudentRepository(gdb),
		ScoreRepo:      gormrepos.NewScoreRepository(gdb),
		RecitationRepo: gormrepos.NewRecitationRepository(gdb),
	}
	analytics := sqlxrepos.NewAnalyticsRepository(sdb)

	env.UserSvc = user.NewService(env.UserRepo, env.Hasher)
	env.StudentSvc = student.NewService(env.StudentRepo, env.Hasher)
	env.ScoreSvc = score.NewService(env.ScoreRepo, analytics, env.StudentSvc, conf)
	env.RecitationSvc = recitation.NewService(env.RecitationRepo, env.StudentSvc, conf)
	env.ReportSvc = report.NewService(analytics)
	env.AuthSvc = auth.NewService(env.UserSvc, env.StudentSvc, env.Tokens)
	return env
}

func (env *Env) CreateUser(t *testing.T, email, name, pwd, role string) user.User {
	t.Helper()
	usr, err := env.UserSvc.AddOrUpdate(context.Background(), user.NewUser{
		Email:       email,
		DisplayName: name,
		Password:    pwd,
		Role:        role,
	})
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func (env *Env) CreateStudent(t *testing.T, studentNo, name, className string) student.Student {
	t.Helper()
	s, err := env.StudentSvc.Create(context.Background(), student.NewStudent{
		StudentNo: studentNo,
		Name:      name,
		ClassName: className,
	})
	if err != nil {
		t.Fatalf("CreateStudent() failed: %v", err)
	}
	return s
}

func (env *Env) CreateExamBatch(t *testing.T, examType string, year, month int) score.ExamBatch {
	t.Helper()
	now := time.Now().UTC()
	batch, err := env.ScoreRepo.UpsertExamBatch(context.Background(), score.ExamBatch{
		ExamType:  examType,
		Year:      year,
		Month:     month,
		Name:      score.DefaultBatchName(examType, year, month),
		ExamDate:  time.Date(year, time.Month(month), 14, 0, 0, 0, 0, time.UTC),
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateExamBatch() failed: %v", err)
	}
	return batch
}

// ImportScores stores `totals` (studentNo -> total score) for `batch`.
func (env *Env) ImportScores(t *testing.T, batch score.ExamBatch, students []student.Student, totals ...int) {
	t.Helper()
	rows := make([]score.ImportRow, 0, len(students))
	for i, s := range students {
		rows = append(rows, score.ImportRow{
			StudentNo:   s.StudentNo,
			StudentName: s.Name,
			ClassName:   s.ClassName,
			TotalScore:  totals[i],
			EntrySource: score.SourceManual,
		})
	}
	_, err := env.ScoreRepo.ImportScores(context.Background(), score.ImportBatch{
		ExamBatchID: batch.ID,
		ChunkSize:   env.Conf.Score.ImportChunkSize,
		Rows:        rows,
	})
	if err != nil {
		t.Fatalf("ImportScores() failed: %v", err)
	}
}

// TeacherToken signs a TEACHER token for `usr`.
func (env *Env) TeacherToken(t *testing.T, usr user.User) string {
	t.Helper()
	return env.sign(t, auth.Claims{RegisteredClaims: auth.Subject(usr.ID), Role: auth.RoleTeacher, Name: usr.DisplayName})
}

// StudentToken signs a STUDENT token for `s`.
func (env *Env) StudentToken(t *testing.T, s student.Student) string {
	t.Helper()
	return env.sign(t, auth.Claims{RegisteredClaims: auth.Subject(s.ID), Role: auth.RoleStudent, Name: s.Name, StudentNo: s.StudentNo})
}

func (env *Env) sign(t *testing.T, claims auth.Claims) string {
	token, err := env.Tokens.Sign(claims)
	if err != nil {
		t.Fatalf("sign() failed: %v", err)
	}
	return token
}
