package repository

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/andymarrow/stark-api/internal/model"
)

// StrikeRepository handles strike records and block relations
type StrikeRepository struct {
	db *gorm.DB
}

func NewStrikeRepository(db *gorm.DB) *StrikeRepository {
	return &StrikeRepository{db: db}
}

// Increment adds one strike for the (sender, receiver) pair and returns
// the new count. The row is created on the first rejection.
func (r *StrikeRepository) Increment(senderID, receiverID uuid.UUID) (int, error) {
	record := model.StrikeRecord{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Count:      1,
	}
	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "sender_id"}, {Name: "receiver_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"count": gorm.Expr("strike_records.count + 1")}),
	}).Create(&record).Error
	if err != nil {
		return 0, err
	}

	var out model.StrikeRecord
	if err := r.db.Where("sender_id = ? AND receiver_id = ?", senderID, receiverID).First(&out).Error; err != nil {
		return 0, err
	}
	return out.Count, nil
}

// GetCount returns the current strike count for a pair (0 when none)
func (r *StrikeRepository) GetCount(senderID, receiverID uuid.UUID) (int, error) {
	var record model.StrikeRecord
	err := r.db.Where("sender_id = ? AND receiver_id = ?", senderID, receiverID).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return record.Count, nil
}

// CreateBlock records a directional block, idempotently
func (r *StrikeRepository) CreateBlock(blockerID, blockedID uuid.UUID) error {
	block := model.Block{BlockerID: blockerID, BlockedID: blockedID}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "blocker_id"}, {Name: "blocked_id"}},
		DoNothing: true,
	}).Create(&block).Error
}

// RemoveBlock lifts a directional block
func (r *StrikeRepository) RemoveBlock(blockerID, blockedID uuid.UUID) error {
	return r.db.
		Where("blocker_id = ? AND blocked_id = ?", blockerID, blockedID).
		Delete(&model.Block{}).Error
}

// IsBlocked reports whether either user blocks the other
func (r *StrikeRepository) IsBlocked(userID1, userID2 uuid.UUID) (bool, error) {
	var count int64
	err := r.db.Model(&model.Block{}).
		Where("(blocker_id = ? AND blocked_id = ?) OR (blocker_id = ? AND blocked_id = ?)",
			userID1, userID2, userID2, userID1).
		Count(&count).Error
	return count > 0, err
}

// GetBlocks returns everyone the user has blocked
func (r *StrikeRepository) GetBlocks(blockerID uuid.UUID) ([]model.Block, error) {
	var blocks []model.Block
	err := r.db.Where("blocker_id = ?", blockerID).Find(&blocks).Error
	return blocks, err
}
