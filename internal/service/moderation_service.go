package service

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/andymarrow/stark-api/internal/model"
)

// ModerationService handles reports and moderator actions: resolving
// reports, purging messages, deleting conversations and users.
type ModerationService struct {
	reports ReportStore
	users   UserStore
	msgs    MessageStore
	convs   ConversationStore
	chat    *ChatService
}

func NewModerationService(
	reports ReportStore,
	users UserStore,
	msgs MessageStore,
	convs ConversationStore,
	chat *ChatService,
) *ModerationService {
	return &ModerationService{
		reports: reports,
		users:   users,
		msgs:    msgs,
		convs:   convs,
		chat:    chat,
	}
}

// requireAdmin verifies the caller holds the admin flag. The report
// queue exposes reporter identities, so plain users never see it.
func (s *ModerationService) requireAdmin(callerID uuid.UUID) error {
	caller, err := s.users.FindByID(callerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPermissionDenied
		}
		return err
	}
	if !caller.IsAdmin {
		return ErrPermissionDenied
	}
	return nil
}

// CreateReport files a report against exactly one target.
func (s *ModerationService) CreateReport(reporterID uuid.UUID, req model.CreateReportRequest) (*model.Report, error) {
	report := &model.Report{
		ReporterID:      reporterID,
		TargetUserID:    req.TargetUserID,
		TargetMessageID: req.TargetMessageID,
		TargetProjectID: req.TargetProjectID,
		Reason:          req.Reason,
		Details:         req.Details,
		Evidence:        req.Evidence,
		Status:          model.ReportStatusPending,
	}
	if !report.HasSingleTarget() {
		return nil, ErrInvalidTarget
	}

	if req.TargetUserID != nil {
		if _, err := s.users.FindByID(*req.TargetUserID); err != nil {
			return nil, ErrNotFound
		}
	}
	if req.TargetMessageID != nil {
		if _, err := s.msgs.FindByID(*req.TargetMessageID); err != nil {
			return nil, ErrNotFound
		}
	}

	if err := s.reports.Create(report); err != nil {
		return nil, err
	}
	return s.reports.FindByID(report.ID)
}

// ListReports returns reports for an admin caller, optionally filtered
// by status.
func (s *ModerationService) ListReports(callerID uuid.UUID, status model.ReportStatus, limit int) ([]model.Report, error) {
	if err := s.requireAdmin(callerID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.reports.List(status, limit)
}

// ResolveReport marks a report resolved; admin only. Zero affected
// rows means the report does not exist.
func (s *ModerationService) ResolveReport(callerID, reportID uuid.UUID) error {
	if err := s.requireAdmin(callerID); err != nil {
		return err
	}
	affected, err := s.reports.SetStatus(reportID, model.ReportStatusResolved)
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// PurgeUserMessages removes every message a user sent in a conversation.
// Conversation owners/admins and the user themselves may purge.
func (s *ModerationService) PurgeUserMessages(convID, targetUserID, callerID uuid.UUID) (int64, error) {
	if callerID != targetUserID {
		p, err := s.convs.GetParticipant(convID, callerID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return 0, ErrNotParticipant
			}
			return 0, err
		}
		if p.Role != model.ParticipantRoleOwner && p.Role != model.ParticipantRoleAdmin {
			return 0, ErrPermissionDenied
		}
	}

	affected, err := s.msgs.PurgeUserMessages(convID, targetUserID)
	if err != nil {
		return 0, err
	}
	s.chat.DropCache(convID)
	return affected, nil
}

// DeleteConversation removes a conversation entirely; only the owner may.
func (s *ModerationService) DeleteConversation(convID, callerID uuid.UUID) error {
	conv, err := s.convs.FindByID(convID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	if conv.OwnerID == nil || *conv.OwnerID != callerID {
		return ErrPermissionDenied
	}
	if err := s.convs.Delete(convID); err != nil {
		return err
	}
	s.chat.DropCache(convID)
	return nil
}

// DeleteUser removes a user and all dependent data. Self-service or
// moderation; the handler decides who may call it.
func (s *ModerationService) DeleteUser(userID uuid.UUID) error {
	if _, err := s.users.FindByID(userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	return s.users.DeleteWithDependents(userID)
}
