// Package compose holds per-user message drafts: text, staged image
// attachments, reply context and edit mode, with the business rules
// (attachment cap, edit cap, snippet truncation) enforced before any
// write leaves the server.
package compose

import (
	"errors"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/andymarrow/stark-api/internal/model"
)

const (
	// MaxStagedImages caps how many images one message can carry.
	MaxStagedImages = 3

	// replyExcerptLen is how much of the quoted message survives in
	// the reply snippet.
	replyExcerptLen = 100
)

var (
	ErrTooManyImages = errors.New("compose: at most 3 images per message")
	ErrEditLimit     = errors.New("compose: message already edited twice")
	ErrEmptyDraft    = errors.New("compose: nothing to send")
	ErrNotOwnMessage = errors.New("compose: can only edit own messages")
)

// Draft is one user's in-progress message for one conversation.
type Draft struct {
	Text   string
	Images []string
	Reply  *model.ReplySnippet

	// Edit mode: when set, sending updates this message instead of
	// creating a new one.
	EditingID *uuid.UUID
}

// StageImage adds an uploaded image URL to the draft. The fourth image
// is rejected and the staged state stays untouched.
func (d *Draft) StageImage(url string) error {
	if len(d.Images) >= MaxStagedImages {
		return ErrTooManyImages
	}
	d.Images = append(d.Images, url)
	return nil
}

// UnstageImage removes a staged image by index.
func (d *Draft) UnstageImage(i int) {
	if i < 0 || i >= len(d.Images) {
		return
	}
	d.Images = append(d.Images[:i], d.Images[i+1:]...)
}

// SetReply attaches a truncated snippet of the target message.
func (d *Draft) SetReply(target *model.Message) {
	d.Reply = &model.ReplySnippet{
		MessageID:  target.ID,
		SenderID:   target.SenderID,
		SenderName: target.Sender.Name,
		Excerpt:    truncate(target.Content, replyExcerptLen),
	}
}

// BeginEdit switches the draft into edit mode for the given message.
// Rejected when the caller does not own the message or the edit budget
// is spent; no state changes on rejection.
func (d *Draft) BeginEdit(msg *model.Message, userID uuid.UUID) error {
	if msg.SenderID != userID {
		return ErrNotOwnMessage
	}
	if !msg.CanEdit() {
		return ErrEditLimit
	}
	id := msg.ID
	d.EditingID = &id
	d.Text = msg.Content
	d.Images = nil
	d.Reply = nil
	return nil
}

// Build assembles the draft into a send request. One or more staged
// images make the message an image_group; the reply snippet rides along
// in the metadata.
func (d *Draft) Build() (model.SendMessageRequest, model.MessageMeta, error) {
	if d.Text == "" && len(d.Images) == 0 {
		return model.SendMessageRequest{}, model.MessageMeta{}, ErrEmptyDraft
	}

	req := model.SendMessageRequest{
		Content: d.Text,
		Type:    model.MessageTypeText,
	}
	meta := model.MessageMeta{Reply: d.Reply}

	if len(d.Images) > 0 {
		req.Type = model.MessageTypeImageGroup
		meta.Images = append([]string(nil), d.Images...)
	}
	return req, meta, nil
}

// Clear resets the draft.
func (d *Draft) Clear() {
	*d = Draft{}
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "…"
}

// Store keeps drafts keyed by user and conversation.
type Store struct {
	mu     sync.Mutex
	drafts map[draftKey]*Draft
}

type draftKey struct {
	userID         uuid.UUID
	conversationID uuid.UUID
}

// NewStore creates an empty draft store.
func NewStore() *Store {
	return &Store{drafts: make(map[draftKey]*Draft)}
}

// Get returns the draft for a user and conversation, creating it if absent.
func (s *Store) Get(userID, conversationID uuid.UUID) *Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := draftKey{userID, conversationID}
	d, ok := s.drafts[key]
	if !ok {
		d = &Draft{}
		s.drafts[key] = d
	}
	return d
}

// Clear discards the draft for a user and conversation.
func (s *Store) Clear(userID, conversationID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.drafts, draftKey{userID, conversationID})
}
