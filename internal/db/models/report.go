package models

import (
	"time"

	"gorm.io/gorm"
)

// Report is a crash event the submission gate ruled on.
type Report struct {
	ID        uint   `json:"-" gorm:"primaryKey"`
	ReportID  string `json:"report_id" gorm:"uniqueIndex"`
	Database  string `json:"database" gorm:"column:crash_database;index"`
	Kind      string `json:"kind"`
	Severity  string `json:"severity"`
	Type      string `json:"type"`
	Message   string `json:"message"`
	Editor    bool   `json:"editor"`
	Submitted bool   `json:"submitted"`
	Reason    string `json:"reason"`

	CreatedAt time.Time      `json:"created_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

func (r Report) TableName() string {
	return "reports"
}

func CreateReport(db *gorm.DB, report *Report) error {
	return db.Create(report).Error
}

func FindReportByReportID(db *gorm.DB, reportID string) (Report, error) {
	var report Report
	err := db.Where(&Report{ReportID: reportID}).First(&report).Error
	return report, err
}

func ListReports(db *gorm.DB, submittedOnly bool, limit, offset int) ([]Report, error) {
	var reports []Report
	query := db.Order("created_at desc, id desc")
	if submittedOnly {
		query = query.Where(&Report{Submitted: true})
	}
	err := query.Limit(limit).Offset(offset).Find(&reports).Error
	return reports, err
}
