package gormrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/trezcool/cetrack/core/score"
)

type scoreRepository struct {
	db *gorm.DB
}

var _ score.Repository = (*scoreRepository)(nil) // interface compliance check

func NewScoreRepository(db *gorm.DB) *scoreRepository {
	return &scoreRepository{db: db}
}

func boilExamBatch(b score.ExamBatch) examBatchRow {
	return examBatchRow{
		ID:        b.ID,
		ExamType:  b.ExamType,
		Year:      b.Year,
		Month:     b.Month,
		Name:      b.Name,
		ExamDate:  b.ExamDate.UTC(),
		CreatedAt: b.CreatedAt.UTC(),
		UpdatedAt: b.UpdatedAt.UTC(),
	}
}

func unboilExamBatch(b examBatchRow) score.ExamBatch {
	return score.ExamBatch{
		ID:        b.ID,
		ExamType:  b.ExamType,
		Year:      b.Year,
		Month:     b.Month,
		Name:      b.Name,
		ExamDate:  b.ExamDate.UTC(),
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
	}
}

func unboilStudentScore(s scoreRow) score.StudentScore {
	return score.StudentScore{
		ID:             s.ID,
		TotalScore:     s.TotalScore,
		ListeningScore: s.ListeningScore,
		ReadingScore:   s.ReadingScore,
		WritingScore:   s.WritingScore,
		OralScore:      s.OralScore,
		EntrySource:    s.EntrySource,
		CreatedAt:      s.CreatedAt,
		ExamBatch:      unboilExamBatch(s.ExamBatch),
	}
}

func (repo scoreRepository) GetExamBatch(ctx context.Context, id string) (score.ExamBatch, error) {
	var row examBatchRow
	if err := repo.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error; err != nil {
		return score.ExamBatch{}, trapNotFound(err, score.ErrExamBatchNotFound, "getting exam batch")
	}
	return unboilExamBatch(row), nil
}

func (repo scoreRepository) UpsertExamBatch(ctx context.Context, batch score.ExamBatch) (score.ExamBatch, error) {
	row := boilExamBatch(batch)
	row.ID = uuid.New().String()
	db := repo.db.WithContext(ctx)
	err := db.
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "exam_type"}, {Name: "year"}, {Name: "month"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "exam_date", "updated_at"}),
		}).
		Create(&row).Error
	if err != nil {
		return score.ExamBatch{}, errors.Wrap(err, "upserting exam batch")
	}

	var found examBatchRow
	err = db.Where("exam_type = ? AND year = ? AND month = ?", row.ExamType, row.Year, row.Month).Take(&found).Error
	if err != nil {
		return score.ExamBatch{}, errors.Wrap(err, "selecting upserted exam batch")
	}
	return unboilExamBatch(found), nil
}

func (repo scoreRepository) QueryExamBatches(ctx context.Context, ids ...string) ([]score.ExamBatch, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []examBatchRow
	if err := repo.db.WithContext(ctx).Where("id IN ?", ids).Order("exam_date").Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "querying exam batches")
	}
	batches := make([]score.ExamBatch, 0, len(rows))
	for _, row := range rows {
		batches = append(batches, unboilExamBatch(row))
	}
	return batches, nil
}

// scoreUpsert refreshes a re-imported score; absent optional fields and the creator are kept.
var scoreUpsert = clause.OnConflict{
	Columns: []clause.Column{{Name: "student_id"}, {Name: "exam_batch_id"}},
	DoUpdates: append(
		clause.AssignmentColumns([]string{"total_score", "entry_source", "updated_at"}),
		keepWhenNull("scores", "listening_score", "reading_score", "writing_score", "oral_score", "ocr_image_url", "ocr_raw_json")...,
	),
}

func (repo scoreRepository) ImportScores(ctx context.Context, batch score.ImportBatch) (score.ImportResult, error) {
	res := score.ImportResult{ExamBatchID: batch.ExamBatchID, Total: len(batch.Rows)}
	now := time.Now().UTC()

	err := repo.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		students := make([]studentRow, 0, len(batch.Rows))
		for _, r := range batch.Rows {
			students = append(students, studentRow{
				StudentNo: r.StudentNo,
				Name:      r.StudentName,
				ClassName: r.ClassName,
				School:    r.School,
				Major:     r.Major,
				IDCard:    r.IDCard,
				CreatedAt: now,
				UpdatedAt: now,
			})
		}
		studentIDs, err := upsertStudents(tx, students, batch.ChunkSize)
		if err != nil {
			return err
		}

		var existingIDs []string
		if err = tx.Model(&scoreRow{}).Where("exam_batch_id = ?", batch.ExamBatchID).Pluck("student_id", &existingIDs).Error; err != nil {
			return errors.Wrap(err, "querying existing scores")
		}
		existing := make(map[string]bool, len(existingIDs))
		for _, id := range existingIDs {
			existing[id] = true
		}

		for _, r := range batch.Rows {
			studentID := studentIDs[r.StudentNo]
			row := scoreRow{
				ID:             uuid.New().String(),
				StudentID:      studentID,
				ExamBatchID:    batch.ExamBatchID,
				TotalScore:     r.TotalScore,
				ListeningScore: r.ListeningScore,
				ReadingScore:   r.ReadingScore,
				WritingScore:   r.WritingScore,
				OralScore:      r.OralScore,
				EntrySource:    r.EntrySource,
				OCRImageURL:    r.OCRImageURL,
				OCRRawJSON:     datatypes.JSON(r.OCRRawJSON),
				CreatedByID:    batch.CreatedByID,
				CreatedAt:      now,
				UpdatedAt:      now,
			}
			if err = tx.Clauses(scoreUpsert).Omit(clause.Associations).Create(&row).Error; err != nil {
				return errors.Wrapf(err, "upserting score of %s", r.StudentNo)
			}

			if existing[studentID] {
				res.Updated++
			} else {
				res.Created++
				existing[studentID] = true
			}
		}
		return nil
	})
	if err != nil {
		return score.ImportResult{}, err
	}
	return res, nil
}

func (repo scoreRepository) QueryStudentScores(ctx context.Context, studentID string) ([]score.StudentScore, error) {
	var rows []scoreRow
	err := repo.db.WithContext(ctx).
		Joins("JOIN exam_batches ON exam_batches.id = scores.exam_batch_id").
		Preload("ExamBatch").
		Where("scores.student_id = ?", studentID).
		Order("exam_batches.exam_date DESC").
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "querying student scores")
	}
	scores := make([]score.StudentScore, 0, len(rows))
	for _, row := range rows {
		scores = append(scores, unboilStudentScore(row))
	}
	return scores, nil
}
