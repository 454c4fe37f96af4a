package repository

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/andymarrow/stark-api/internal/model"
)

// ReportRepository handles database operations for moderation reports
type ReportRepository struct {
	db *gorm.DB
}

func NewReportRepository(db *gorm.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// Create inserts a new report
func (r *ReportRepository) Create(report *model.Report) error {
	return r.db.Create(report).Error
}

// FindByID finds a report by ID
func (r *ReportRepository) FindByID(id uuid.UUID) (*model.Report, error) {
	var report model.Report
	err := r.db.Preload("Reporter").Where("id = ?", id).First(&report).Error
	if err != nil {
		return nil, err
	}
	return &report, nil
}

// List returns reports filtered by status, newest first
func (r *ReportRepository) List(status model.ReportStatus, limit int) ([]model.Report, error) {
	var reports []model.Report
	query := r.db.Preload("Reporter").Order("created_at DESC").Limit(limit)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	err := query.Find(&reports).Error
	return reports, err
}

// SetStatus transitions a report's status. Reports are never hard-deleted.
func (r *ReportRepository) SetStatus(id uuid.UUID, status model.ReportStatus) (int64, error) {
	res := r.db.Model(&model.Report{}).
		Where("id = ?", id).
		Update("status", status)
	return res.RowsAffected, res.Error
}
