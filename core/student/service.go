package student

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/trezcool/cetrack/core"
	"github.com/trezcool/cetrack/core/password"
)

var (
	// errors
	ErrNotFound        = errors.New("student not found")
	ErrAuthNotFound    = errors.New("student auth not found")
	ErrStudentNoExists = errors.New("a student with this studentNo already exists")

	errCodeRequired = "code is required"
)

type (
	Repository interface {
		CreateStudent(ctx context.Context, s Student) (Student, error)
		// GetStudent returns the student matching the first non-empty GetFilter field.
		GetStudent(ctx context.Context, filter GetFilter) (Student, error)
		QueryStudents(ctx context.Context, filter QueryFilter) ([]Student, error)
		UpdateStudent(ctx context.Context, s Student) (Student, error)
		// DeleteStudent removes the student with its auth, scores and recitations.
		DeleteStudent(ctx context.Context, id string) error

		GetAuth(ctx context.Context, studentID string) (Auth, error)
		UpsertAuth(ctx context.Context, a Auth) error
	}

	Service struct {
		repo   Repository
		hasher *password.Hasher
	}
)

func NewService(repo Repository, hasher *password.Hasher) *Service {
	return &Service{repo: repo, hasher: hasher}
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter) ([]Summary, error) {
	filter.Clean()
	students, err := svc.repo.QueryStudents(ctx, filter)
	if err != nil {
		return nil, err
	}
	res := make([]Summary, 0, len(students))
	for _, s := range students {
		res = append(res, s.Summary())
	}
	return res, nil
}

func (svc *Service) Create(ctx context.Context, ns NewStudent) (Student, error) {
	if _, err := svc.repo.GetStudent(ctx, GetFilter{StudentNo: ns.StudentNo}); err == nil {
		return Student{}, core.NewFieldError("studentNo", ErrStudentNoExists.Error())
	} else if err != ErrNotFound {
		return Student{}, err
	}

	now := time.Now().UTC()
	return svc.repo.CreateStudent(ctx, Student{
		StudentNo: ns.StudentNo,
		Name:      ns.Name,
		ClassName: core.NullString(ns.ClassName),
		School:    core.NullString(ns.School),
		Major:     core.NullString(ns.Major),
		IDCard:    core.NullString(ns.IDCard),
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func (svc *Service) GetByID(ctx context.Context, id string) (Student, error) {
	return svc.repo.GetStudent(ctx, GetFilter{ID: id})
}

func (svc *Service) GetByStudentNo(ctx context.Context, studentNo string) (Student, error) {
	return svc.repo.GetStudent(ctx, GetFilter{StudentNo: core.CleanString(studentNo)})
}

func (svc *Service) Update(ctx context.Context, id string, us UpdateStudent) (Student, error) {
	s, err := svc.GetByID(ctx, id)
	if err != nil {
		return Student{}, err
	}
	s = us.apply(s)
	s.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateStudent(ctx, s)
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteStudent(ctx, id)
}

// SetLoginCode replaces the default login code of a student.
func (svc *Service) SetLoginCode(ctx context.Context, id, code string) error {
	s, err := svc.GetByID(ctx, id)
	if err != nil {
		return err
	}
	hash, err := svc.hasher.Hash(code)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	return svc.repo.UpsertAuth(ctx, Auth{StudentID: s.ID, PasswordHash: hash, CreatedAt: now, UpdatedAt: now})
}

// CheckLoginCode verifies a student's login code against the custom credential if one is set,
// falling back to the default code otherwise.
func (svc *Service) CheckLoginCode(ctx context.Context, s Student, cred password.Credential) (bool, error) {
	a, err := svc.repo.GetAuth(ctx, s.ID)
	switch {
	case err == nil:
		return svc.hasher.Verify(cred, a.PasswordHash), nil
	case err != ErrAuthNotFound:
		return false, err
	}

	expected := DefaultLoginCode(s.StudentNo)
	sha, plain := core.CleanString(cred.ShaHex, true /* lower */), core.CleanString(cred.Plain)
	switch {
	case sha != "":
		return constantTimeEqual(sha, password.SHA256Hex(expected)), nil
	case plain == "":
		return false, core.NewFieldError("code", errCodeRequired)
	}
	return constantTimeEqual(plain, expected), nil
}

func constantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
