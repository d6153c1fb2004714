package gormrepos

import (
	"time"

	"github.com/volatiletech/null/v8"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type userRow struct {
	ID           string `gorm:"primaryKey;size:36"`
	Email        string `gorm:"size:255;not null;uniqueIndex"`
	DisplayName  string `gorm:"size:128;not null"`
	Role         string `gorm:"size:16;not null"`
	PasswordHash string `gorm:"size:255;not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (userRow) TableName() string { return "users" }

type studentRow struct {
	ID        string      `gorm:"primaryKey;size:36"`
	StudentNo string      `gorm:"size:64;not null;uniqueIndex"`
	Name      string      `gorm:"size:128;not null"`
	ClassName null.String `gorm:"size:128;index"`
	School    null.String `gorm:"size:128"`
	Major     null.String `gorm:"size:128"`
	IDCard    null.String `gorm:"column:id_card;size:64"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (studentRow) TableName() string { return "students" }

type studentAuthRow struct {
	StudentID    string `gorm:"primaryKey;size:36"`
	PasswordHash string `gorm:"size:255;not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (studentAuthRow) TableName() string { return "student_auths" }

type examBatchRow struct {
	ID        string    `gorm:"primaryKey;size:36"`
	ExamType  string    `gorm:"size:8;not null;uniqueIndex:uq_exam_batches_type_year_month"`
	Year      int       `gorm:"not null;uniqueIndex:uq_exam_batches_type_year_month"`
	Month     int       `gorm:"not null;uniqueIndex:uq_exam_batches_type_year_month"`
	Name      string    `gorm:"size:128;not null"`
	ExamDate  time.Time `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (examBatchRow) TableName() string { return "exam_batches" }

type scoreRow struct {
	ID             string         `gorm:"primaryKey;size:36"`
	StudentID      string         `gorm:"size:36;not null;uniqueIndex:uq_scores_student_batch"`
	ExamBatchID    string         `gorm:"column:exam_batch_id;size:36;not null;uniqueIndex:uq_scores_student_batch;index"`
	TotalScore     int            `gorm:"not null"`
	ListeningScore null.Int
	ReadingScore   null.Int
	WritingScore   null.Int
	OralScore      null.Int
	EntrySource    string         `gorm:"size:16;not null"`
	OCRImageURL    null.String    `gorm:"column:ocr_image_url;size:1024"`
	OCRRawJSON     datatypes.JSON `gorm:"column:ocr_raw_json"`
	CreatedByID    null.String    `gorm:"column:created_by_id;size:36"`
	CreatedAt      time.Time
	UpdatedAt      time.Time

	ExamBatch examBatchRow `gorm:"foreignKey:ExamBatchID"`
}

func (scoreRow) TableName() string { return "scores" }

type recitationRow struct {
	ID        string      `gorm:"primaryKey;size:36"`
	StudentID string      `gorm:"size:36;not null;uniqueIndex:uq_recitation_entries_student_date"`
	Date      time.Time   `gorm:"type:date;not null;uniqueIndex:uq_recitation_entries_student_date"`
	Words     int         `gorm:"not null"`
	Minutes   null.Int
	Note      null.String `gorm:"size:200"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (recitationRow) TableName() string { return "recitation_entries" }

// Models lists the tables owned by the repositories, parents first.
func Models() []interface{} {
	return []interface{}{
		&userRow{},
		&studentRow{},
		&studentAuthRow{},
		&examBatchRow{},
		&scoreRow{},
		&recitationRow{},
	}
}

// AutoMigrate creates the schema on engines the goose migrations do not target (sqlite3).
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}
