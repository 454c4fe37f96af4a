package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// StrikeThreshold is the number of rejections that triggers an automatic block.
const StrikeThreshold = 3

// StrikeRecord accumulates rejected connection attempts from a sender
// toward a receiver. The count is never decremented.
type StrikeRecord struct {
	ID         uuid.UUID `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SenderID   uuid.UUID `json:"sender_id" gorm:"type:uuid;uniqueIndex:idx_strike_pair;not null"`
	ReceiverID uuid.UUID `json:"receiver_id" gorm:"type:uuid;uniqueIndex:idx_strike_pair;not null"`
	Count      int       `json:"count" gorm:"default:0"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Block is a directional block relation. Blocked users are hidden from
// search and cannot initiate a handshake toward the blocker.
type Block struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	BlockerID uuid.UUID `json:"blocker_id" gorm:"type:uuid;uniqueIndex:idx_block_pair;not null"`
	BlockedID uuid.UUID `json:"blocked_id" gorm:"type:uuid;uniqueIndex:idx_block_pair;not null"`
	CreatedAt time.Time `json:"created_at"`
}

// ReportReason enumerates why something was reported
type ReportReason string

const (
	ReportReasonSpam       ReportReason = "spam"
	ReportReasonHarassment ReportReason = "harassment"
	ReportReasonNSFW       ReportReason = "nsfw"
	ReportReasonOther      ReportReason = "other"
)

// ReportStatus tracks the moderation lifecycle of a report
type ReportStatus string

const (
	ReportStatusPending  ReportStatus = "pending"
	ReportStatusResolved ReportStatus = "resolved"
)

// Report is a moderation report. Exactly one target field is set;
// project targets live outside this service so only the id is kept.
type Report struct {
	ID         uuid.UUID `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ReporterID uuid.UUID `json:"reporter_id" gorm:"type:uuid;not null;index"`

	TargetUserID    *uuid.UUID `json:"target_user_id,omitempty" gorm:"type:uuid"`
	TargetMessageID *uuid.UUID `json:"target_message_id,omitempty" gorm:"type:uuid"`
	TargetProjectID *uuid.UUID `json:"target_project_id,omitempty" gorm:"type:uuid"`

	Reason  ReportReason `json:"reason" gorm:"type:varchar(20);not null"`
	Details string       `json:"details" gorm:"size:1000"`
	// Evidence is reporter-supplied context (screenshot URLs, message
	// excerpts); shape is up to the client.
	Evidence  datatypes.JSON `json:"evidence,omitempty" gorm:"type:jsonb"`
	Status    ReportStatus   `json:"status" gorm:"type:varchar(20);default:'pending';index"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`

	// Relations
	Reporter User `json:"reporter" gorm:"foreignKey:ReporterID"`
}

// HasSingleTarget reports whether exactly one target field is set.
func (r *Report) HasSingleTarget() bool {
	n := 0
	if r.TargetUserID != nil {
		n++
	}
	if r.TargetMessageID != nil {
		n++
	}
	if r.TargetProjectID != nil {
		n++
	}
	return n == 1
}
