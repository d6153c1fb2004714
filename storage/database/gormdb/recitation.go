package gormrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/trezcool/cetrack/core/recitation"
)

type recitationRepository struct {
	db *gorm.DB
}

var _ recitation.Repository = (*recitationRepository)(nil) // interface compliance check

func NewRecitationRepository(db *gorm.DB) *recitationRepository {
	return &recitationRepository{db: db}
}

func unboilEntry(r recitationRow) recitation.Entry {
	return recitation.Entry{
		ID:        r.ID,
		StudentID: r.StudentID,
		Date:      r.Date.UTC(),
		Words:     r.Words,
		Minutes:   r.Minutes,
		Note:      r.Note,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

// recitationUpsert overwrites the words of a day; minutes and note are kept when absent.
var recitationUpsert = clause.OnConflict{
	Columns: []clause.Column{{Name: "student_id"}, {Name: "date"}},
	DoUpdates: append(
		clause.AssignmentColumns([]string{"words", "updated_at"}),
		keepWhenNull("recitation_entries", "minutes", "note")...,
	),
}

func upsertEntry(tx *gorm.DB, row recitationRow) error {
	row.ID = uuid.New().String()
	return tx.Clauses(recitationUpsert).Create(&row).Error
}

func (repo recitationRepository) UpsertEntry(ctx context.Context, e recitation.Entry) (recitation.Entry, error) {
	db := repo.db.WithContext(ctx)
	row := recitationRow{
		StudentID: e.StudentID,
		Date:      e.Date.UTC(),
		Words:     e.Words,
		Minutes:   e.Minutes,
		Note:      e.Note,
		CreatedAt: e.CreatedAt.UTC(),
		UpdatedAt: e.UpdatedAt.UTC(),
	}
	if err := upsertEntry(db, row); err != nil {
		return recitation.Entry{}, errors.Wrap(err, "upserting recitation entry")
	}

	var found recitationRow
	if err := db.Where("student_id = ? AND date = ?", row.StudentID, row.Date).Take(&found).Error; err != nil {
		return recitation.Entry{}, errors.Wrap(err, "selecting upserted recitation entry")
	}
	return unboilEntry(found), nil
}

func (repo recitationRepository) QueryEntries(ctx context.Context, studentID string, from, to time.Time) ([]recitation.Entry, error) {
	var rows []recitationRow
	err := repo.db.WithContext(ctx).
		Where("student_id = ? AND date >= ? AND date <= ?", studentID, from.UTC(), to.UTC()).
		Order("date").
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "querying recitation entries")
	}
	entries := make([]recitation.Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, unboilEntry(row))
	}
	return entries, nil
}

func (repo recitationRepository) ImportEntries(ctx context.Context, chunkSize int, records []recitation.ImportRecord) (recitation.ImportResult, error) {
	res := recitation.ImportResult{TotalRecords: len(records)}
	now := time.Now().UTC()

	err := repo.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// a student's profile comes from its first record
		seen := make(map[string]bool)
		var students []studentRow
		for _, r := range records {
			if seen[r.Student.StudentNo] {
				continue
			}
			seen[r.Student.StudentNo] = true
			students = append(students, studentRow{
				StudentNo: r.Student.StudentNo,
				Name:      r.Student.Name,
				ClassName: r.Student.ClassName,
				CreatedAt: now,
				UpdatedAt: now,
			})
		}
		studentIDs, err := upsertStudents(tx, students, chunkSize)
		if err != nil {
			return err
		}
		res.StudentsUpserted = len(students)

		for _, r := range records {
			row := recitationRow{
				StudentID: studentIDs[r.Student.StudentNo],
				Date:      r.Date.UTC(),
				Words:     r.Words,
				Minutes:   r.Minutes,
				Note:      r.Note,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err = upsertEntry(tx, row); err != nil {
				return errors.Wrapf(err, "upserting recitation of %s", r.Student.StudentNo)
			}
			res.RecitationsUpserted++
		}
		return nil
	})
	if err != nil {
		return recitation.ImportResult{}, err
	}
	return res, nil
}
