package service

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/andymarrow/stark-api/internal/model"
)

// In-memory fakes for the store interfaces. Behavior mirrors the GORM
// repositories closely enough for the service-level rules under test.

type fakeConvStore struct {
	mu    sync.Mutex
	convs map[uuid.UUID]*model.Conversation
}

func newFakeConvStore() *fakeConvStore {
	return &fakeConvStore{convs: make(map[uuid.UUID]*model.Conversation)}
}

func (f *fakeConvStore) Create(conv *model.Conversation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if conv.ID == uuid.Nil {
		conv.ID = uuid.New()
	}
	for i := range conv.Participants {
		if conv.Participants[i].ID == uuid.Nil {
			conv.Participants[i].ID = uuid.New()
		}
		conv.Participants[i].ConversationID = conv.ID
	}
	cp := *conv
	f.convs[conv.ID] = &cp
	return nil
}

func (f *fakeConvStore) FindByID(id uuid.UUID) (*model.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	conv, ok := f.convs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *conv
	return &cp, nil
}

func (f *fakeConvStore) FindDirectBetween(userID1, userID2 uuid.UUID) (*model.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, conv := range f.convs {
		if conv.Kind != model.ConversationKindDirect {
			continue
		}
		has1, has2 := false, false
		for _, p := range conv.Participants {
			if p.UserID == userID1 {
				has1 = true
			}
			if p.UserID == userID2 {
				has2 = true
			}
		}
		if has1 && has2 {
			cp := *conv
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeConvStore) GetUserConversations(userID uuid.UUID) ([]model.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Conversation
	for _, conv := range f.convs {
		for _, p := range conv.Participants {
			if p.UserID == userID && p.Status != model.ParticipantStatusRejected {
				out = append(out, *conv)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ti, tj := time.Time{}, time.Time{}
		if out[i].LastMessageAt != nil {
			ti = *out[i].LastMessageAt
		}
		if out[j].LastMessageAt != nil {
			tj = *out[j].LastMessageAt
		}
		return ti.After(tj)
	})
	return out, nil
}

func (f *fakeConvStore) AddParticipant(p *model.Participant) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	conv, ok := f.convs[p.ConversationID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	conv.Participants = append(conv.Participants, *p)
	return nil
}

func (f *fakeConvStore) RemoveParticipant(conversationID, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	conv, ok := f.convs[conversationID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for i, p := range conv.Participants {
		if p.UserID == userID {
			conv.Participants = append(conv.Participants[:i], conv.Participants[i+1:]...)
			return nil
		}
	}
	return nil
}

func (f *fakeConvStore) GetParticipant(conversationID, userID uuid.UUID) (*model.Participant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	conv, ok := f.convs[conversationID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	for i := range conv.Participants {
		if conv.Participants[i].UserID == userID {
			cp := conv.Participants[i]
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeConvStore) SetParticipantStatus(conversationID, userID uuid.UUID, status model.ParticipantStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	conv, ok := f.convs[conversationID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for i := range conv.Participants {
		if conv.Participants[i].UserID == userID {
			conv.Participants[i].Status = status
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (f *fakeConvStore) IsActiveParticipant(conversationID, userID uuid.UUID) (bool, error) {
	p, err := f.GetParticipant(conversationID, userID)
	if err != nil {
		return false, nil
	}
	return p.Status == model.ParticipantStatusActive, nil
}

func (f *fakeConvStore) IsParticipant(conversationID, userID uuid.UUID) (bool, error) {
	_, err := f.GetParticipant(conversationID, userID)
	return err == nil, nil
}

func (f *fakeConvStore) GetParticipantIDs(conversationID uuid.UUID) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	conv, ok := f.convs[conversationID]
	if !ok {
		return nil, nil
	}
	ids := make([]uuid.UUID, 0, len(conv.Participants))
	for _, p := range conv.Participants {
		ids = append(ids, p.UserID)
	}
	return ids, nil
}

func (f *fakeConvStore) SetLastMessage(conversationID uuid.UUID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if conv, ok := f.convs[conversationID]; ok {
		now := time.Now()
		conv.LastMessageText = text
		conv.LastMessageAt = &now
	}
	return nil
}

func (f *fakeConvStore) IncrementUnread(conversationID, senderID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if conv, ok := f.convs[conversationID]; ok {
		for i := range conv.Participants {
			if conv.Participants[i].UserID != senderID {
				conv.Participants[i].UnreadCount++
			}
		}
	}
	return nil
}

func (f *fakeConvStore) ResetUnread(conversationID, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if conv, ok := f.convs[conversationID]; ok {
		for i := range conv.Participants {
			if conv.Participants[i].UserID == userID {
				conv.Participants[i].UnreadCount = 0
			}
		}
	}
	return nil
}

func (f *fakeConvStore) UpdateMeta(conversationID uuid.UUID, updates map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	conv, ok := f.convs[conversationID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if v, ok := updates["title"].(string); ok {
		conv.Title = v
	}
	if v, ok := updates["description"].(string); ok {
		conv.Description = v
	}
	if v, ok := updates["avatar"].(string); ok {
		conv.Avatar = v
	}
	if v, ok := updates["is_public"].(bool); ok {
		conv.IsPublic = v
	}
	return nil
}

func (f *fakeConvStore) Delete(conversationID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.convs, conversationID)
	return nil
}

type fakeMsgStore struct {
	mu     sync.Mutex
	order  []uuid.UUID
	msgs   map[uuid.UUID]*model.Message
	writes int // counts mutating calls, for no-write assertions
}

func newFakeMsgStore() *fakeMsgStore {
	return &fakeMsgStore{msgs: make(map[uuid.UUID]*model.Message)}
}

func (f *fakeMsgStore) Create(msg *model.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes++
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	msg.CreatedAt = time.Now()
	cp := *msg
	f.msgs[msg.ID] = &cp
	f.order = append(f.order, msg.ID)
	return nil
}

func (f *fakeMsgStore) FindByID(id uuid.UUID) (*model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg, ok := f.msgs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *msg
	return &cp, nil
}

func (f *fakeMsgStore) GetRecent(conversationID uuid.UUID, before *uuid.UUID, limit int) ([]model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Message
	for _, id := range f.order {
		msg, ok := f.msgs[id]
		if !ok || msg.ConversationID != conversationID {
			continue
		}
		if before != nil && id == *before {
			break
		}
		out = append(out, *msg)
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (f *fakeMsgStore) UpdateContent(id uuid.UUID, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes++
	msg, ok := f.msgs[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	msg.Content = content
	msg.EditCount++
	return nil
}

func (f *fakeMsgStore) SetPinned(id uuid.UUID, pinned bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes++
	msg, ok := f.msgs[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	msg.Pinned = pinned
	return nil
}

func (f *fakeMsgStore) GetLatestPinned(conversationID uuid.UUID) (*model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.order) - 1; i >= 0; i-- {
		msg, ok := f.msgs[f.order[i]]
		if ok && msg.ConversationID == conversationID && msg.Pinned {
			cp := *msg
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeMsgStore) SetReactions(id uuid.UUID, reactions model.Reactions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes++
	msg, ok := f.msgs[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	msg.Reactions = reactions
	return nil
}

func (f *fakeMsgStore) Delete(id uuid.UUID, senderID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes++
	msg, ok := f.msgs[id]
	if !ok || msg.SenderID != senderID {
		return 0, nil
	}
	delete(f.msgs, id)
	return 1, nil
}

func (f *fakeMsgStore) DeleteAny(id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes++
	delete(f.msgs, id)
	return nil
}

func (f *fakeMsgStore) PurgeUserMessages(conversationID, userID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes++
	var n int64
	for id, msg := range f.msgs {
		if msg.ConversationID == conversationID && msg.SenderID == userID {
			delete(f.msgs, id)
			n++
		}
	}
	return n, nil
}

type fakeUserStore struct {
	mu    sync.Mutex
	users map[uuid.UUID]*model.User
}

func newFakeUserStore(users ...*model.User) *fakeUserStore {
	f := &fakeUserStore{users: make(map[uuid.UUID]*model.User)}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeUserStore) FindByID(id uuid.UUID) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUserStore) Search(query string, callerID uuid.UUID, limit int) ([]model.User, error) {
	return nil, nil
}

func (f *fakeUserStore) DeleteWithDependents(userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[userID]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(f.users, userID)
	return nil
}

type fakeReportStore struct {
	mu      sync.Mutex
	reports map[uuid.UUID]*model.Report
}

func newFakeReportStore() *fakeReportStore {
	return &fakeReportStore{reports: make(map[uuid.UUID]*model.Report)}
}

func (f *fakeReportStore) Create(report *model.Report) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if report.ID == uuid.Nil {
		report.ID = uuid.New()
	}
	cp := *report
	f.reports[report.ID] = &cp
	return nil
}

func (f *fakeReportStore) FindByID(id uuid.UUID) (*model.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reports[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeReportStore) List(status model.ReportStatus, limit int) ([]model.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Report
	for _, r := range f.reports {
		if status != "" && r.Status != status {
			continue
		}
		out = append(out, *r)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeReportStore) SetStatus(id uuid.UUID, status model.ReportStatus) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reports[id]
	if !ok {
		return 0, nil
	}
	r.Status = status
	return 1, nil
}

type pair struct{ a, b uuid.UUID }

type fakeBlockStore struct {
	mu      sync.Mutex
	strikes map[pair]int
	blocks  map[pair]bool
}

func newFakeBlockStore() *fakeBlockStore {
	return &fakeBlockStore{
		strikes: make(map[pair]int),
		blocks:  make(map[pair]bool),
	}
}

func (f *fakeBlockStore) Increment(senderID, receiverID uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := pair{senderID, receiverID}
	f.strikes[key]++
	return f.strikes[key], nil
}

func (f *fakeBlockStore) GetCount(senderID, receiverID uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.strikes[pair{senderID, receiverID}], nil
}

func (f *fakeBlockStore) CreateBlock(blockerID, blockedID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blocks[pair{blockerID, blockedID}] = true
	return nil
}

func (f *fakeBlockStore) RemoveBlock(blockerID, blockedID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.blocks, pair{blockerID, blockedID})
	return nil
}

func (f *fakeBlockStore) IsBlocked(userID1, userID2 uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.blocks[pair{userID1, userID2}] || f.blocks[pair{userID2, userID1}], nil
}

func (f *fakeBlockStore) GetBlocks(blockerID uuid.UUID) ([]model.Block, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Block
	for key := range f.blocks {
		if key.a == blockerID {
			out = append(out, model.Block{BlockerID: key.a, BlockedID: key.b})
		}
	}
	return out, nil
}

func (f *fakeBlockStore) blockCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.blocks)
}
