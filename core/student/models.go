package student

import (
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/cetrack/core"
)

const (
	defaultTake = 50
	maxTake     = 200

	defaultCodeLen = 6
)

// Student is a student record. IDCard is only exposed on the detail endpoints.
type Student struct {
	ID        string      `json:"id"`
	StudentNo string      `json:"studentNo"`
	Name      string      `json:"name"`
	ClassName null.String `json:"className"`
	School    null.String `json:"school"`
	Major     null.String `json:"major"`
	IDCard    null.String `json:"idCard"`
	CreatedAt time.Time   `json:"-"`
	UpdatedAt time.Time   `json:"-"`
}

// Brief is the student header embedded in score and recitation responses.
type Brief struct {
	ID        string      `json:"id"`
	StudentNo string      `json:"studentNo"`
	Name      string      `json:"name"`
	ClassName null.String `json:"className"`
}

// Summary is a row of the student list.
type Summary struct {
	ID        string      `json:"id"`
	StudentNo string      `json:"studentNo"`
	Name      string      `json:"name"`
	ClassName null.String `json:"className"`
	School    null.String `json:"school"`
	Major     null.String `json:"major"`
}

func (s Student) Brief() Brief {
	return Brief{ID: s.ID, StudentNo: s.StudentNo, Name: s.Name, ClassName: s.ClassName}
}

func (s Student) Summary() Summary {
	return Summary{ID: s.ID, StudentNo: s.StudentNo, Name: s.Name, ClassName: s.ClassName, School: s.School, Major: s.Major}
}

// Auth is the optional login credential of a student.
type Auth struct {
	StudentID    string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// DefaultLoginCode is the code a student logs in with until a custom one is set:
// the last six characters of the student number.
func DefaultLoginCode(studentNo string) string {
	if utf8.RuneCountInString(studentNo) <= defaultCodeLen {
		return studentNo
	}
	runes := []rune(studentNo)
	return string(runes[len(runes)-defaultCodeLen:])
}

// NewStudent contains information needed to create a new Student.
type NewStudent struct {
	StudentNo string `json:"studentNo" validate:"required,notblank,max=64"`
	Name      string `json:"name" validate:"required,notblank,max=128"`
	ClassName string `json:"className" validate:"max=128"`
	School    string `json:"school" validate:"max=128"`
	Major     string `json:"major" validate:"max=128"`
	IDCard    string `json:"idCard" validate:"max=64"`
}

func (ns *NewStudent) Validate(validate *validator.Validate) error {
	ns.StudentNo = core.CleanString(ns.StudentNo)
	ns.Name = core.CleanString(ns.Name)
	return validate.Struct(ns)
}

// UpdateStudent defines what information may be provided to modify an existing Student.
// Nil fields are left untouched; empty optional fields are cleared.
type UpdateStudent struct {
	Name      *string `json:"name" validate:"omitempty,notblank,max=128"`
	ClassName *string `json:"className" validate:"omitempty,max=128"`
	School    *string `json:"school" validate:"omitempty,max=128"`
	Major     *string `json:"major" validate:"omitempty,max=128"`
	IDCard    *string `json:"idCard" validate:"omitempty,max=64"`
}

func (us *UpdateStudent) Validate(validate *validator.Validate) error {
	if us.Name != nil {
		name := core.CleanString(*us.Name)
		if name == "" {
			return core.NewFieldError("name", "name must not be blank")
		}
		us.Name = &name
	}
	return validate.Struct(us)
}

func (us UpdateStudent) apply(s Student) Student {
	if us.Name != nil {
		s.Name = *us.Name
	}
	if us.ClassName != nil {
		s.ClassName = core.NullStringPtr(us.ClassName)
	}
	if us.School != nil {
		s.School = core.NullStringPtr(us.School)
	}
	if us.Major != nil {
		s.Major = core.NullStringPtr(us.Major)
	}
	if us.IDCard != nil {
		s.IDCard = core.NullStringPtr(us.IDCard)
	}
	return s
}

// SetLoginCode is the body of the login-code endpoint.
type SetLoginCode struct {
	Code string `json:"code"`
}

func (sc *SetLoginCode) Validate() error {
	sc.Code = core.CleanString(sc.Code)
	if n := utf8.RuneCountInString(sc.Code); n < 4 || n > 32 {
		return core.NewFieldError("code", "code length must be 4~32")
	}
	return nil
}

type QueryFilter struct {
	Q         string `query:"q"`
	ClassName string `query:"className"`
	Take      string `query:"take"`
	Ordering  string `query:"ordering"`

	Limit     int               `query:"-"`
	Orderings []core.DBOrdering `query:"-"`
}

// OrderingColumns maps the API field names accepted by `ordering` to columns.
var OrderingColumns = map[string]string{
	"studentNo": "student_no",
	"name":      "name",
	"className": "class_name",
	"createdAt": "created_at",
}

func (f *QueryFilter) Clean() {
	f.Q = core.CleanString(f.Q)
	f.ClassName = core.CleanString(f.ClassName)
	f.Limit = ClampTake(f.Take)
	f.Orderings = core.ParseOrdering(f.Ordering, OrderingColumns)
	if len(f.Orderings) == 0 {
		f.Orderings = []core.DBOrdering{
			{Field: "class_name", Ascending: true},
			{Field: "student_no", Ascending: true},
		}
	}
}

// ClampTake parses the `take` query parameter; garbage falls back to the default page size.
func ClampTake(raw string) int {
	take, err := strconv.Atoi(core.CleanString(raw))
	if err != nil {
		return defaultTake
	}
	return core.Clamp(take, 1, maxTake)
}

type GetFilter struct {
	ID        string
	StudentNo string
}
