package models

import (
	"time"

	"github.com/mattn/go-nulltype"
	"gorm.io/gorm"
)

type UploadStatus string

const (
	UploadStatusSucceeded UploadStatus = "succeeded"
	UploadStatusFailed    UploadStatus = "failed"
)

// UploadRecord is one symbol batch sent to the reporting service.
type UploadRecord struct {
	ID          uint                `json:"id" gorm:"primaryKey"`
	Database    string              `json:"database" gorm:"column:crash_database;index"`
	Application string              `json:"application"`
	Version     string              `json:"version"`
	Target      string              `json:"target"`
	Status      UploadStatus        `json:"status"`
	Error       nulltype.NullString `json:"error,omitempty"`
	ArchiveKey  nulltype.NullString `json:"archive_key,omitempty"`
	Duration    time.Duration       `json:"duration"`
	Artifacts   []UploadedArtifact  `json:"artifacts" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`

	CreatedAt time.Time      `json:"created_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

func (u UploadRecord) TableName() string {
	return "upload_records"
}

type UploadedArtifact struct {
	ID             uint                `json:"-" gorm:"primaryKey"`
	UploadRecordID uint                `json:"-" gorm:"index"`
	Name           string              `json:"name"`
	Size           int64               `json:"size"`
	BLAKE3         nulltype.NullString `json:"blake3,omitempty"`
	StatusCode     int                 `json:"status_code"`
}

func (u UploadedArtifact) TableName() string {
	return "uploaded_artifacts"
}

func CreateUploadRecord(db *gorm.DB, record *UploadRecord) error {
	return db.Create(record).Error
}

func FindUploadRecordByID(db *gorm.DB, id uint) (UploadRecord, error) {
	var record UploadRecord
	err := db.Preload("Artifacts").First(&record, id).Error
	return record, err
}

// ListUploadRecords returns the newest records first. An empty database matches
// every database.
func ListUploadRecords(db *gorm.DB, database string, limit, offset int) ([]UploadRecord, error) {
	var records []UploadRecord
	query := db.Preload("Artifacts").Order("created_at desc, id desc")
	if database != "" {
		query = query.Where(&UploadRecord{Database: database})
	}
	err := query.Limit(limit).Offset(offset).Find(&records).Error
	return records, err
}

func CountUploadRecords(db *gorm.DB, database string) (int, error) {
	var count int64
	query := db.Model(&UploadRecord{})
	if database != "" {
		query = query.Where(&UploadRecord{Database: database})
	}
	err := query.Count(&count).Error
	return int(count), err
}
