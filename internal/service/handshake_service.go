package service

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/andymarrow/stark-api/internal/model"
)

// HandshakeService gates direct conversations: accept, reject with the
// three-strikes auto-block, and explicit blocking.
type HandshakeService struct {
	convs  ConversationStore
	blocks BlockStore
}

func NewHandshakeService(convs ConversationStore, blocks BlockStore) *HandshakeService {
	return &HandshakeService{convs: convs, blocks: blocks}
}

// Accept marks the caller's participant row active, opening two-way send.
func (s *HandshakeService) Accept(convID, userID uuid.UUID) error {
	p, err := s.convs.GetParticipant(convID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	if p.Status != model.ParticipantStatusPending {
		return ErrPermissionDenied
	}
	return s.convs.SetParticipantStatus(convID, userID, model.ParticipantStatusActive)
}

// Reject declines an incoming handshake: one strike is recorded against
// the sender, the third strike auto-blocks them (no further strike
// bookkeeping after that), and the conversation row is deleted either
// way. Returns whether the auto-block fired.
func (s *HandshakeService) Reject(convID, userID, senderID uuid.UUID) (bool, error) {
	p, err := s.convs.GetParticipant(convID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, ErrNotFound
		}
		return false, err
	}
	if p.Status != model.ParticipantStatusPending {
		return false, ErrPermissionDenied
	}

	count, err := s.blocks.Increment(senderID, userID)
	if err != nil {
		return false, err
	}

	autoBlocked := false
	if count >= model.StrikeThreshold {
		if err := s.blocks.CreateBlock(userID, senderID); err != nil {
			return false, err
		}
		autoBlocked = true
	}

	// The conversation is gone regardless of the strike outcome.
	if err := s.convs.Delete(convID); err != nil {
		return autoBlocked, err
	}
	return autoBlocked, nil
}

// Block records a directional block immediately, bypassing the strike
// counter. Any existing direct conversation with the target is removed.
func (s *HandshakeService) Block(userID, targetID uuid.UUID) error {
	if err := s.blocks.CreateBlock(userID, targetID); err != nil {
		return err
	}
	conv, err := s.convs.FindDirectBetween(userID, targetID)
	if err == nil {
		return s.convs.Delete(conv.ID)
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	return err
}

// Unblock lifts a directional block.
func (s *HandshakeService) Unblock(userID, targetID uuid.UUID) error {
	return s.blocks.RemoveBlock(userID, targetID)
}

// Blocked lists everyone the caller has blocked.
func (s *HandshakeService) Blocked(userID uuid.UUID) ([]model.Block, error) {
	return s.blocks.GetBlocks(userID)
}
