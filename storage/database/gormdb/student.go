package gormrepos

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/trezcool/cetrack/core/student"
)

type studentRepository struct {
	db *gorm.DB
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *gorm.DB) *studentRepository {
	return &studentRepository{db: db}
}

func boilStudent(s student.Student) studentRow {
	return studentRow{
		ID:        s.ID,
		StudentNo: s.StudentNo,
		Name:      s.Name,
		ClassName: s.ClassName,
		School:    s.School,
		Major:     s.Major,
		IDCard:    s.IDCard,
		CreatedAt: s.CreatedAt.UTC(),
		UpdatedAt: s.UpdatedAt.UTC(),
	}
}

func unboilStudent(s studentRow) student.Student {
	return student.Student{
		ID:        s.ID,
		StudentNo: s.StudentNo,
		Name:      s.Name,
		ClassName: s.ClassName,
		School:    s.School,
		Major:     s.Major,
		IDCard:    s.IDCard,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

// trapNotFound maps gorm's "record not found" err to `notFound`
func trapNotFound(err, notFound error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound
	}
	return errors.Wrap(err, msg)
}

func (repo studentRepository) CreateStudent(ctx context.Context, s student.Student) (student.Student, error) {
	row := boilStudent(s)
	row.ID = uuid.New().String()
	if err := repo.db.WithContext(ctx).Create(&row).Error; err != nil {
		return student.Student{}, errors.Wrap(err, "inserting student")
	}
	return unboilStudent(row), nil
}

func (repo studentRepository) GetStudent(ctx context.Context, filter student.GetFilter) (student.Student, error) {
	q := repo.db.WithContext(ctx)
	switch {
	case filter.ID != "":
		q = q.Where("id = ?", filter.ID)
	case filter.StudentNo != "":
		q = q.Where("student_no = ?", filter.StudentNo)
	default:
		return student.Student{}, student.ErrNotFound
	}

	var row studentRow
	if err := q.Take(&row).Error; err != nil {
		return student.Student{}, trapNotFound(err, student.ErrNotFound, "getting student")
	}
	return unboilStudent(row), nil
}

func (repo studentRepository) QueryStudents(ctx context.Context, filter student.QueryFilter) ([]student.Student, error) {
	q := repo.db.WithContext(ctx).Model(&studentRow{})

	// students with StudentNo, Name or ClassName matching the search keyword
	if filter.Q != "" {
		val := "%" + filter.Q + "%"
		q = q.Where("student_no LIKE ? OR name LIKE ? OR class_name LIKE ?", val, val, val)
	}
	if filter.ClassName != "" {
		q = q.Where("class_name LIKE ?", "%"+filter.ClassName+"%")
	}
	for _, ord := range filter.Orderings {
		q = q.Order(ord.String())
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var rows []studentRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "filtering students")
	}
	students := make([]student.Student, 0, len(rows))
	for _, row := range rows {
		students = append(students, unboilStudent(row))
	}
	return students, nil
}

func (repo studentRepository) UpdateStudent(ctx context.Context, s student.Student) (student.Student, error) {
	row := boilStudent(s)
	res := repo.db.WithContext(ctx).
		Model(&studentRow{ID: row.ID}).
		Select("name", "class_name", "school", "major", "id_card", "updated_at").
		Updates(&row)
	if res.Error != nil {
		return student.Student{}, errors.Wrap(res.Error, "updating student")
	}
	if res.RowsAffected == 0 {
		return student.Student{}, student.ErrNotFound
	}
	return repo.GetStudent(ctx, student.GetFilter{ID: row.ID})
}

func (repo studentRepository) DeleteStudent(ctx context.Context, id string) error {
	return repo.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range []interface{}{&studentAuthRow{}, &scoreRow{}, &recitationRow{}} {
			if err := tx.Where("student_id = ?", id).Delete(model).Error; err != nil {
				return errors.Wrap(err, "deleting student data")
			}
		}
		res := tx.Where("id = ?", id).Delete(&studentRow{})
		if res.Error != nil {
			return errors.Wrap(res.Error, "deleting student")
		}
		if res.RowsAffected == 0 {
			return student.ErrNotFound
		}
		return nil
	})
}

func (repo studentRepository) GetAuth(ctx context.Context, studentID string) (student.Auth, error) {
	var row studentAuthRow
	if err := repo.db.WithContext(ctx).Where("student_id = ?", studentID).Take(&row).Error; err != nil {
		return student.Auth{}, trapNotFound(err, student.ErrAuthNotFound, "getting student auth")
	}
	return student.Auth{
		StudentID:    row.StudentID,
		PasswordHash: row.PasswordHash,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}, nil
}

func (repo studentRepository) UpsertAuth(ctx context.Context, a student.Auth) error {
	row := studentAuthRow{
		StudentID:    a.StudentID,
		PasswordHash: a.PasswordHash,
		CreatedAt:    a.CreatedAt.UTC(),
		UpdatedAt:    a.UpdatedAt.UTC(),
	}
	err := repo.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "student_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"password_hash", "updated_at"}),
		}).
		Create(&row).Error
	return errors.Wrap(err, "upserting student auth")
}

// keepWhenNull builds upsert assignments that leave `table` columns untouched when the new value is NULL.
func keepWhenNull(table string, columns ...string) clause.Set {
	set := make(clause.Set, 0, len(columns))
	for _, col := range columns {
		set = append(set, clause.Assignment{
			Column: clause.Column{Name: col},
			Value:  gorm.Expr("COALESCE(excluded." + col + ", " + table + "." + col + ")"),
		})
	}
	return set
}

// studentUpsert refreshes the profile of an existing student; absent optional fields are kept.
var studentUpsert = clause.OnConflict{
	Columns: []clause.Column{{Name: "student_no"}},
	DoUpdates: append(
		clause.AssignmentColumns([]string{"name", "updated_at"}),
		keepWhenNull("students", "class_name", "school", "major", "id_card")...,
	),
}

// upsertStudents upserts `rows` by StudentNo in chunks and returns their ids keyed by StudentNo.
// The last row wins when a StudentNo repeats.
func upsertStudents(tx *gorm.DB, rows []studentRow, chunkSize int) (map[string]string, error) {
	if chunkSize <= 0 {
		chunkSize = 200
	}

	index := make(map[string]int, len(rows))
	uniq := make([]studentRow, 0, len(rows))
	for _, row := range rows {
		row.ID = uuid.New().String()
		if i, ok := index[row.StudentNo]; ok {
			uniq[i] = row
			continue
		}
		index[row.StudentNo] = len(uniq)
		uniq = append(uniq, row)
	}
	if len(uniq) == 0 {
		return map[string]string{}, nil
	}

	if err := tx.Clauses(studentUpsert).Omit(clause.Associations).CreateInBatches(&uniq, chunkSize).Error; err != nil {
		return nil, errors.Wrap(err, "upserting students")
	}

	// the generated ids are discarded on conflict
	ids := make(map[string]string, len(uniq))
	for start := 0; start < len(uniq); start += chunkSize {
		end := start + chunkSize
		if end > len(uniq) {
			end = len(uniq)
		}
		nos := make([]string, 0, end-start)
		for _, row := range uniq[start:end] {
			nos = append(nos, row.StudentNo)
		}

		var found []studentRow
		if err := tx.Select("id", "student_no").Where("student_no IN ?", nos).Find(&found).Error; err != nil {
			return nil, errors.Wrap(err, "selecting upserted students")
		}
		for _, row := range found {
			ids[row.StudentNo] = row.ID
		}
	}
	return ids, nil
}
