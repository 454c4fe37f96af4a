package repository

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/andymarrow/stark-api/internal/model"
)

// UserRepository handles database operations for User
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user
func (r *UserRepository) Create(user *model.User) error {
	return r.db.Create(user).Error
}

// FindByID finds a user by UUID
func (r *UserRepository) FindByID(id uuid.UUID) (*model.User, error) {
	var user model.User
	err := r.db.Where("id = ?", id).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByEmail finds a user by email
func (r *UserRepository) FindByEmail(email string) (*model.User, error) {
	var user model.User
	err := r.db.Where("email = ?", email).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByUsername finds a user by username
func (r *UserRepository) FindByUsername(username string) (*model.User, error) {
	var user model.User
	err := r.db.Where("username = ?", username).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Search finds users by username or name (partial match), excluding the
// caller and anyone in a block relation with the caller in either direction.
func (r *UserRepository) Search(query string, callerID uuid.UUID, limit int) ([]model.User, error) {
	var users []model.User
	blockedByMe := r.db.Model(&model.Block{}).Select("blocked_id").Where("blocker_id = ?", callerID)
	blockingMe := r.db.Model(&model.Block{}).Select("blocker_id").Where("blocked_id = ?", callerID)

	err := r.db.
		Where("(username ILIKE ? OR name ILIKE ?) AND id != ?", "%"+query+"%", "%"+query+"%", callerID).
		Where("id NOT IN (?)", blockedByMe).
		Where("id NOT IN (?)", blockingMe).
		Limit(limit).
		Find(&users).Error
	return users, err
}

// UpdateOnlineStatus sets a user's online status and last seen time
func (r *UserRepository) UpdateOnlineStatus(id uuid.UUID, isOnline bool) error {
	updates := map[string]interface{}{
		"is_online": isOnline,
	}
	if !isOnline {
		updates["last_seen"] = gorm.Expr("NOW()")
	}
	return r.db.Model(&model.User{}).Where("id = ?", id).Updates(updates).Error
}

// UpdateProfile updates the user's name, avatar and/or bio
func (r *UserRepository) UpdateProfile(userID uuid.UUID, name, avatar, bio string) error {
	updates := map[string]interface{}{}
	if name != "" {
		updates["name"] = name
	}
	if avatar != "" {
		updates["avatar"] = avatar
	}
	if bio != "" {
		updates["bio"] = bio
	}
	if len(updates) == 0 {
		return nil
	}
	return r.db.Model(&model.User{}).Where("id = ?", userID).Updates(updates).Error
}

// AddDevice adds or updates a device token
func (r *UserRepository) AddDevice(userID uuid.UUID, token string, deviceType string) error {
	device := model.UserDevice{
		UserID:       userID,
		FCMToken:     token,
		DeviceType:   deviceType,
		LastActiveAt: time.Now(),
	}
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "fcm_token"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"last_active_at": time.Now(),
			"device_type":    deviceType,
		}),
	}).Create(&device).Error
}

// GetUserDevices gets all devices for a user
func (r *UserRepository) GetUserDevices(userID uuid.UUID) ([]model.UserDevice, error) {
	var devices []model.UserDevice
	err := r.db.Where("user_id = ?", userID).Find(&devices).Error
	return devices, err
}

// DeleteWithDependents removes a user and everything hanging off them:
// devices, participant rows, messages, strikes, blocks and reports.
// Runs in a single transaction.
func (r *UserRepository) DeleteWithDependents(userID uuid.UUID) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&model.UserDevice{}).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Where("user_id = ?", userID).Delete(&model.Participant{}).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Where("sender_id = ?", userID).Delete(&model.Message{}).Error; err != nil {
			return err
		}
		if err := tx.Where("sender_id = ? OR receiver_id = ?", userID, userID).Delete(&model.StrikeRecord{}).Error; err != nil {
			return err
		}
		if err := tx.Where("blocker_id = ? OR blocked_id = ?", userID, userID).Delete(&model.Block{}).Error; err != nil {
			return err
		}
		if err := tx.Where("reporter_id = ? OR target_user_id = ?", userID, userID).Delete(&model.Report{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Where("id = ?", userID).Delete(&model.User{}).Error
	})
}
