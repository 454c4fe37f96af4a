package service

import (
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/andymarrow/stark-api/internal/model"
	"github.com/andymarrow/stark-api/internal/stream"
)

// ChatService owns conversations, the directory, and the message flow,
// including the lazy direct-conversation creation that feeds the
// handshake gate.
type ChatService struct {
	convs    ConversationStore
	msgs     MessageStore
	users    UserStore
	blocks   BlockStore
	messages *stream.Cache
}

func NewChatService(convs ConversationStore, msgs MessageStore, users UserStore, blocks BlockStore) *ChatService {
	s := &ChatService{
		convs:  convs,
		msgs:   msgs,
		users:  users,
		blocks: blocks,
	}
	s.messages = stream.NewCache(stream.DefaultWindow, func(conversationID uuid.UUID) *model.Message {
		pinned, err := msgs.GetLatestPinned(conversationID)
		if err != nil {
			return nil
		}
		return pinned
	})
	return s
}

// ========== Directory ==========

// Directory lists the caller's conversations, newest activity first,
// with the display identity resolved per kind and the caller's unread
// count attached.
func (s *ChatService) Directory(userID uuid.UUID) ([]model.ConversationSummary, error) {
	conversations, err := s.convs.GetUserConversations(userID)
	if err != nil {
		return nil, err
	}

	result := []model.ConversationSummary{}
	for i := range conversations {
		result = append(result, s.summarize(&conversations[i], userID))
	}
	return result, nil
}

// summarize builds the directory entry for one conversation as seen by
// one user. Direct conversations borrow the counterpart's name/avatar;
// groups and channels show their own.
func (s *ChatService) summarize(conv *model.Conversation, userID uuid.UUID) model.ConversationSummary {
	summary := model.ConversationSummary{
		Conversation:  *conv,
		DisplayName:   conv.Title,
		DisplayAvatar: conv.Avatar,
	}
	for i := range conv.Participants {
		p := &conv.Participants[i]
		if p.UserID == userID {
			summary.MyStatus = p.Status
			summary.UnreadCount = p.UnreadCount
		} else if conv.Kind == model.ConversationKindDirect {
			id := p.UserID
			summary.CounterpartID = &id
			summary.DisplayName = p.User.Name
			summary.DisplayAvatar = p.User.Avatar
		}
	}
	return summary
}

// Summary re-derives a single directory entry; used to push keyed
// conversation_updated events instead of asking clients to refetch.
func (s *ChatService) Summary(conversationID, userID uuid.UUID) (*model.ConversationSummary, error) {
	conv, err := s.convs.FindByID(conversationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	summary := s.summarize(conv, userID)
	return &summary, nil
}

// Profile returns a user's public profile.
func (s *ChatService) Profile(userID uuid.UUID) (*model.UserResponse, error) {
	user, err := s.users.FindByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	resp := user.ToResponse()
	return &resp, nil
}

// ========== Conversations ==========

// CreateConversation creates a group or channel with the creator as owner.
func (s *ChatService) CreateConversation(creatorID uuid.UUID, req model.CreateConversationRequest) (*model.Conversation, error) {
	conv := &model.Conversation{
		Kind:          req.Kind,
		Title:         req.Title,
		Description:   req.Description,
		IsPublic:      req.IsPublic,
		OwnerID:       &creatorID,
		LinkedGroupID: req.LinkedGroupID,
	}

	participants := []model.Participant{
		{
			UserID: creatorID,
			Role:   model.ParticipantRoleOwner,
			Status: model.ParticipantStatusActive,
		},
	}
	for _, memberID := range req.MemberIDs {
		if memberID == creatorID {
			continue
		}
		participants = append(participants, model.Participant{
			UserID: memberID,
			Role:   model.ParticipantRoleMember,
			Status: model.ParticipantStatusActive,
		})
	}
	conv.Participants = participants

	if err := s.convs.Create(conv); err != nil {
		return nil, errors.New("failed to create conversation")
	}
	return s.convs.FindByID(conv.ID)
}

// GetConversation returns a conversation the caller may see: any
// participant, or anyone for a public channel.
func (s *ChatService) GetConversation(convID, userID uuid.UUID) (*model.Conversation, error) {
	conv, err := s.convs.FindByID(convID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if conv.IsPublic {
		return conv, nil
	}
	isMember, err := s.convs.IsParticipant(convID, userID)
	if err != nil {
		return nil, err
	}
	if !isMember {
		return nil, ErrNotParticipant
	}
	return conv, nil
}

// JoinConversation adds the caller to a public group or channel.
func (s *ChatService) JoinConversation(convID, userID uuid.UUID) error {
	conv, err := s.convs.FindByID(convID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	if conv.Kind == model.ConversationKindDirect || !conv.IsPublic {
		return ErrPermissionDenied
	}
	already, err := s.convs.IsParticipant(convID, userID)
	if err != nil {
		return err
	}
	if already {
		return nil
	}
	return s.convs.AddParticipant(&model.Participant{
		ConversationID: convID,
		UserID:         userID,
		Role:           model.ParticipantRoleMember,
		Status:         model.ParticipantStatusActive,
	})
}

// LeaveConversation removes the caller from a group or channel.
func (s *ChatService) LeaveConversation(convID, userID uuid.UUID) error {
	return s.convs.RemoveParticipant(convID, userID)
}

// UpdateConversationMeta edits title/description/avatar/visibility;
// owner only.
func (s *ChatService) UpdateConversationMeta(convID, userID uuid.UUID, updates map[string]interface{}) error {
	conv, err := s.convs.FindByID(convID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	if conv.OwnerID == nil || *conv.OwnerID != userID {
		return ErrPermissionDenied
	}
	return s.convs.UpdateMeta(convID, updates)
}

// ========== Direct conversations & the virtual state ==========

// ResolveDirect finds the direct conversation with a partner. When no
// row exists the response is virtual: nothing is persisted until the
// first message is actually sent.
func (s *ChatService) ResolveDirect(myID, partnerID uuid.UUID) (*model.DirectConversationResponse, error) {
	partner, err := s.users.FindByID(partnerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	blocked, err := s.blocks.IsBlocked(myID, partnerID)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, ErrBlocked
	}

	conv, err := s.convs.FindDirectBetween(myID, partnerID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &model.DirectConversationResponse{
			Messages:    []model.Message{},
			IsVirtual:   true,
			Counterpart: partner.ToResponse(),
		}, nil
	}
	if err != nil {
		return nil, err
	}

	msgs, err := s.GetMessages(conv.ID, myID, nil, stream.DefaultWindow)
	if err != nil && !errors.Is(err, ErrHandshakePending) {
		return nil, err
	}
	_ = s.convs.ResetUnread(conv.ID, myID)

	summary := s.summarize(conv, myID)
	summary.UnreadCount = 0
	return &model.DirectConversationResponse{
		Conversation: &summary,
		Messages:     msgs,
		IsVirtual:    false,
		Counterpart:  partner.ToResponse(),
	}, nil
}

// ResolvePairID returns the direct conversation id for a pair of users.
func (s *ChatService) ResolvePairID(userID1, userID2 uuid.UUID) (uuid.UUID, error) {
	conv, err := s.convs.FindDirectBetween(userID1, userID2)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return uuid.Nil, ErrNotFound
		}
		return uuid.Nil, err
	}
	return conv.ID, nil
}

// SendDirectMessage sends to a partner, materializing the conversation
// on first send: the conversation row plus two participant rows, the
// initiator active and the target pending until the handshake resolves.
// Returns the message, the conversation, and whether it was just created.
func (s *ChatService) SendDirectMessage(senderID, receiverID uuid.UUID, req model.SendMessageRequest, meta model.MessageMeta) (*model.Message, *model.Conversation, bool, error) {
	blocked, err := s.blocks.IsBlocked(senderID, receiverID)
	if err != nil {
		return nil, nil, false, err
	}
	if blocked {
		return nil, nil, false, ErrBlocked
	}

	conv, err := s.convs.FindDirectBetween(senderID, receiverID)
	created := false
	if errors.Is(err, gorm.ErrRecordNotFound) {
		conv = &model.Conversation{
			Kind: model.ConversationKindDirect,
			Participants: []model.Participant{
				{UserID: senderID, Role: model.ParticipantRoleMember, Status: model.ParticipantStatusActive},
				{UserID: receiverID, Role: model.ParticipantRoleMember, Status: model.ParticipantStatusPending},
			},
		}
		if err := s.convs.Create(conv); err != nil {
			return nil, nil, false, errors.New("failed to create conversation")
		}
		created = true
	} else if err != nil {
		return nil, nil, false, err
	}

	msg, err := s.SendMessage(senderID, conv.ID, req, meta)
	if err != nil {
		return nil, nil, false, err
	}
	return msg, conv, created, nil
}

// ========== Messages ==========

// SendMessage validates and persists a message, updates the
// denormalized conversation fields and unread counters, and applies
// the insert to the in-memory stream.
//
// The sender's own participant row must be active: a pending target
// has no compose box until the handshake resolves, while a pending
// conversation's initiator (who is active) may keep sending.
func (s *ChatService) SendMessage(senderID, convID uuid.UUID, req model.SendMessageRequest, meta model.MessageMeta) (*model.Message, error) {
	p, err := s.convs.GetParticipant(convID, senderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotParticipant
		}
		return nil, err
	}
	if p.Status != model.ParticipantStatusActive {
		return nil, ErrHandshakePending
	}

	msgType := req.Type
	if msgType == "" {
		msgType = model.MessageTypeText
		if len(req.Images) > 0 || len(meta.Images) > 0 {
			msgType = model.MessageTypeImageGroup
		} else if req.GifURL != "" {
			msgType = model.MessageTypeGIF
		}
	}
	if len(req.Images) > 0 && len(meta.Images) == 0 {
		meta.Images = req.Images
	}
	if req.GifURL != "" {
		meta.GifURL = req.GifURL
	}

	if req.Content == "" && len(meta.Images) == 0 && meta.GifURL == "" && meta.Call == nil {
		return nil, ErrEmptyMessage
	}
	if err := meta.Validate(msgType); err != nil {
		return nil, err
	}

	if req.ReplyToID != nil && meta.Reply == nil {
		if target, err := s.msgs.FindByID(*req.ReplyToID); err == nil {
			meta.Reply = &model.ReplySnippet{
				MessageID:  target.ID,
				SenderID:   target.SenderID,
				SenderName: target.Sender.Name,
				Excerpt:    truncateContent(target.Content, 100),
			}
		}
	}

	msg := &model.Message{
		ConversationID: convID,
		SenderID:       senderID,
		Content:        req.Content,
		Type:           msgType,
		Meta:           meta,
		Reactions:      model.Reactions{},
	}
	if err := s.msgs.Create(msg); err != nil {
		return nil, errors.New("failed to send message")
	}

	_ = s.convs.SetLastMessage(convID, previewText(msg))
	_ = s.convs.IncrementUnread(convID, senderID)

	full, err := s.msgs.FindByID(msg.ID)
	if err != nil {
		return msg, nil
	}
	if list := s.messages.Get(convID); list != nil {
		list.ApplyInsert(*full)
	}
	return full, nil
}

// GetMessages returns the most recent window of a conversation in
// ascending order, serving from the stream cache when warm.
func (s *ChatService) GetMessages(convID, userID uuid.UUID, before *uuid.UUID, limit int) ([]model.Message, error) {
	isMember, err := s.convs.IsParticipant(convID, userID)
	if err != nil {
		return nil, err
	}
	if !isMember {
		conv, err := s.convs.FindByID(convID)
		if err != nil || !conv.IsPublic {
			return nil, ErrNotParticipant
		}
	}

	if limit <= 0 || limit > stream.DefaultWindow {
		limit = stream.DefaultWindow
	}

	// Cursor reads and short windows bypass the cache
	if before != nil || limit != stream.DefaultWindow {
		return s.msgs.GetRecent(convID, before, limit)
	}

	list, warm := s.messages.GetOrCreate(convID)
	if warm && list.Len() > 0 {
		return list.Messages(), nil
	}
	msgs, err := s.msgs.GetRecent(convID, nil, limit)
	if err != nil {
		return nil, err
	}
	list.Load(msgs)
	return msgs, nil
}

// EditMessage replaces a message's text. The third edit is rejected
// before any write happens.
func (s *ChatService) EditMessage(userID, msgID uuid.UUID, content string) (*model.Message, error) {
	if content == "" {
		return nil, ErrEmptyMessage
	}
	msg, err := s.msgs.FindByID(msgID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if msg.SenderID != userID {
		return nil, ErrPermissionDenied
	}
	if !msg.CanEdit() {
		return nil, ErrEditLimit
	}

	if err := s.msgs.UpdateContent(msgID, content); err != nil {
		return nil, err
	}
	full, err := s.msgs.FindByID(msgID)
	if err != nil {
		return nil, err
	}
	if list := s.messages.Get(msg.ConversationID); list != nil {
		list.ApplyUpdate(*full)
	}
	return full, nil
}

// DeleteMessage removes the caller's own message. Zero affected rows
// with no error means the access policy refused the delete.
func (s *ChatService) DeleteMessage(userID, msgID uuid.UUID) (*model.Message, error) {
	msg, err := s.msgs.FindByID(msgID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	affected, err := s.msgs.Delete(msgID, userID)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, ErrPermissionDenied
	}
	if list := s.messages.Get(msg.ConversationID); list != nil {
		list.ApplyDelete(msgID)
	}
	return msg, nil
}

// TogglePin flips the pinned flag of a message; any active participant
// may pin. Returns the updated message and the new banner.
func (s *ChatService) TogglePin(userID, msgID uuid.UUID) (*model.Message, *model.Message, error) {
	msg, err := s.msgs.FindByID(msgID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}
	active, err := s.convs.IsActiveParticipant(msg.ConversationID, userID)
	if err != nil {
		return nil, nil, err
	}
	if !active {
		return nil, nil, ErrNotParticipant
	}

	if err := s.msgs.SetPinned(msgID, !msg.Pinned); err != nil {
		return nil, nil, err
	}
	full, err := s.msgs.FindByID(msgID)
	if err != nil {
		return nil, nil, err
	}
	if list := s.messages.Get(msg.ConversationID); list != nil {
		list.ApplyUpdate(*full)
	}

	banner, err := s.msgs.GetLatestPinned(msg.ConversationID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return full, nil, err
	}
	return full, banner, nil
}

// PinnedBanner returns the most recent pinned message of a
// conversation, or nil when nothing is pinned.
func (s *ChatService) PinnedBanner(convID uuid.UUID) (*model.Message, error) {
	if list := s.messages.Get(convID); list != nil {
		return list.Pinned(), nil
	}
	banner, err := s.msgs.GetLatestPinned(convID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return banner, nil
}

// ToggleReaction adds or removes the caller's reaction on a message.
func (s *ChatService) ToggleReaction(userID, msgID uuid.UUID, emoji string) (*model.Message, error) {
	msg, err := s.msgs.FindByID(msgID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	active, err := s.convs.IsActiveParticipant(msg.ConversationID, userID)
	if err != nil {
		return nil, err
	}
	if !active {
		return nil, ErrNotParticipant
	}

	if msg.Reactions == nil {
		msg.Reactions = model.Reactions{}
	}
	msg.Reactions.Toggle(emoji, userID)
	if err := s.msgs.SetReactions(msgID, msg.Reactions); err != nil {
		return nil, err
	}

	full, err := s.msgs.FindByID(msgID)
	if err != nil {
		return nil, err
	}
	if list := s.messages.Get(msg.ConversationID); list != nil {
		list.ApplyUpdate(*full)
	}
	return full, nil
}

// MarkRead zeroes the caller's unread counter for a conversation.
func (s *ChatService) MarkRead(convID, userID uuid.UUID) error {
	return s.convs.ResetUnread(convID, userID)
}

// ParticipantIDs returns all participant user IDs for a conversation.
func (s *ChatService) ParticipantIDs(convID uuid.UUID) ([]uuid.UUID, error) {
	return s.convs.GetParticipantIDs(convID)
}

// DropCache evicts a conversation's stream cache (deletion, purge).
func (s *ChatService) DropCache(convID uuid.UUID) {
	s.messages.Drop(convID)
}

// ReconcileEvent applies a fan-out event to the local stream cache, so
// a warm window stays coherent with writes handled on other instances.
// Payloads come off the Redis channel as decoded JSON maps, so they are
// re-marshaled into their concrete types here. Every operation is
// idempotent: events originated locally, or delivered once per target
// user, apply cleanly more than once. Conversations without a warm
// cache have nothing to reconcile.
func (s *ChatService) ReconcileEvent(eventType string, payload interface{}) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return
	}

	switch eventType {
	case model.WSEventNewMessage, model.WSEventMessageUpdated:
		var msg model.Message
		if err := json.Unmarshal(raw, &msg); err != nil || msg.ID == uuid.Nil {
			return
		}
		list := s.messages.Get(msg.ConversationID)
		if list == nil {
			return
		}
		if eventType == model.WSEventNewMessage {
			list.ApplyInsert(msg)
		} else {
			list.ApplyUpdate(msg)
		}

	case model.WSEventMessageDeleted:
		var ev model.MessageDeletedEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			return
		}
		if list := s.messages.Get(ev.ConversationID); list != nil {
			list.ApplyDelete(ev.MessageID)
		}

	case model.WSEventConvDeleted:
		var ev struct {
			ConversationID uuid.UUID `json:"conversation_id"`
		}
		if err := json.Unmarshal(raw, &ev); err == nil && ev.ConversationID != uuid.Nil {
			s.messages.Drop(ev.ConversationID)
		}

	case model.WSEventConvUpdated:
		// Summary pushes don't touch the message window, with one
		// exception: a purge announces itself here and invalidates
		// the whole window.
		var ev struct {
			ConversationID uuid.UUID  `json:"conversation_id"`
			PurgedUserID   *uuid.UUID `json:"purged_user_id"`
		}
		if err := json.Unmarshal(raw, &ev); err == nil && ev.PurgedUserID != nil && ev.ConversationID != uuid.Nil {
			s.messages.Drop(ev.ConversationID)
		}
	}
}

// previewText is the denormalized last-message text for the directory.
func previewText(msg *model.Message) string {
	switch msg.Type {
	case model.MessageTypeImage, model.MessageTypeImageGroup:
		return "📷 Photo"
	case model.MessageTypeGIF:
		return "GIF"
	case model.MessageTypeCall:
		return "📞 Call"
	default:
		return truncateContent(msg.Content, 500)
	}
}

func truncateContent(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "…"
}
