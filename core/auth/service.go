package auth

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/cetrack/core"
	"github.com/trezcool/cetrack/core/password"
	"github.com/trezcool/cetrack/core/student"
	"github.com/trezcool/cetrack/core/user"
)

var (
	// errors
	ErrInvalidTeacherLogin = errors.New("invalid email or password")
	ErrInvalidStudentLogin = errors.New("invalid studentNo or code")
)

type (
	TeacherLogin struct {
		Email          string `json:"email" validate:"required"`
		Password       string `json:"password"`
		PasswordSha256 string `json:"passwordSha256"`
	}

	StudentLogin struct {
		StudentNo  string `json:"studentNo" validate:"required"`
		Code       string `json:"code"`
		CodeSha256 string `json:"codeSha256"`
	}

	TeacherSession struct {
		Token string    `json:"token"`
		User  user.User `json:"user"`
	}

	StudentSession struct {
		Token   string        `json:"token"`
		Student student.Brief `json:"student"`
	}
)

func (tl *TeacherLogin) Validate(validate *validator.Validate) error {
	tl.Email = core.CleanString(tl.Email, true /* lower */)
	if err := validate.Struct(tl); err != nil {
		return err
	}
	if tl.PasswordSha256 != "" && !password.IsShaHex(core.CleanString(tl.PasswordSha256, true)) {
		return core.NewFieldError("passwordSha256", password.ErrInvalidShaHex.Error())
	}
	return nil
}

func (sl *StudentLogin) Validate(validate *validator.Validate) error {
	sl.StudentNo = core.CleanString(sl.StudentNo)
	return validate.Struct(sl)
}

type Service struct {
	usrSvc     *user.Service
	studentSvc *student.Service
	tokens     *TokenManager
}

func NewService(usrSvc *user.Service, studentSvc *student.Service, tokens *TokenManager) *Service {
	return &Service{usrSvc: usrSvc, studentSvc: studentSvc, tokens: tokens}
}

func (svc *Service) LoginTeacher(ctx context.Context, data TeacherLogin) (TeacherSession, error) {
	usr, err := svc.usrSvc.GetByEmail(ctx, data.Email)
	if err != nil {
		if err == user.ErrNotFound {
			return TeacherSession{}, ErrInvalidTeacherLogin
		}
		return TeacherSession{}, errors.Wrap(err, "finding user by email")
	}
	if !svc.usrSvc.CheckPassword(usr, password.Credential{Plain: data.Password, ShaHex: data.PasswordSha256}) {
		return TeacherSession{}, ErrInvalidTeacherLogin
	}

	token, err := svc.tokens.Sign(Claims{
		RegisteredClaims: Subject(usr.ID),
		Role:             RoleTeacher,
		Name:             usr.DisplayName,
	})
	if err != nil {
		return TeacherSession{}, err
	}
	return TeacherSession{Token: token, User: usr}, nil
}

func (svc *Service) LoginStudent(ctx context.Context, data StudentLogin) (StudentSession, error) {
	s, err := svc.studentSvc.GetByStudentNo(ctx, data.StudentNo)
	if err != nil {
		if err == student.ErrNotFound {
			return StudentSession{}, ErrInvalidStudentLogin
		}
		return StudentSession{}, errors.Wrap(err, "finding student by studentNo")
	}
	ok, err := svc.studentSvc.CheckLoginCode(ctx, s, password.Credential{Plain: data.Code, ShaHex: data.CodeSha256})
	if err != nil {
		return StudentSession{}, errors.Wrap(err, "checking login code")
	}
	if !ok {
		return StudentSession{}, ErrInvalidStudentLogin
	}

	token, err := svc.tokens.Sign(Claims{
		RegisteredClaims: Subject(s.ID),
		Role:             RoleStudent,
		Name:             s.Name,
		StudentNo:        s.StudentNo,
	})
	if err != nil {
		return StudentSession{}, err
	}
	return StudentSession{Token: token, Student: s.Brief()}, nil
}
