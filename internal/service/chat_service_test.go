package service

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andymarrow/stark-api/internal/model"
)

type chatFixture struct {
	convs  *fakeConvStore
	msgs   *fakeMsgStore
	users  *fakeUserStore
	blocks *fakeBlockStore
	svc    *ChatService
}

func newChatFixture(users ...*model.User) *chatFixture {
	f := &chatFixture{
		convs:  newFakeConvStore(),
		msgs:   newFakeMsgStore(),
		users:  newFakeUserStore(users...),
		blocks: newFakeBlockStore(),
	}
	f.svc = NewChatService(f.convs, f.msgs, f.users, f.blocks)
	return f
}

func TestSendDirectMessage(t *testing.T) {
	sender, receiver := uuid.New(), uuid.New()

	t.Run("first message materializes a pending conversation", func(t *testing.T) {
		f := newChatFixture()

		msg, conv, created, err := f.svc.SendDirectMessage(sender, receiver, model.SendMessageRequest{Content: "hey"}, model.MessageMeta{})
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, "hey", msg.Content)

		senderP, err := f.convs.GetParticipant(conv.ID, sender)
		require.NoError(t, err)
		assert.Equal(t, model.ParticipantStatusActive, senderP.Status)

		receiverP, err := f.convs.GetParticipant(conv.ID, receiver)
		require.NoError(t, err)
		assert.Equal(t, model.ParticipantStatusPending, receiverP.Status)

		stored, err := f.convs.FindByID(conv.ID)
		require.NoError(t, err)
		assert.Equal(t, "hey", stored.LastMessageText)
	})

	t.Run("existing conversation is reused", func(t *testing.T) {
		f := newChatFixture()

		_, first, created, err := f.svc.SendDirectMessage(sender, receiver, model.SendMessageRequest{Content: "one"}, model.MessageMeta{})
		require.NoError(t, err)
		require.True(t, created)

		_, second, created, err := f.svc.SendDirectMessage(sender, receiver, model.SendMessageRequest{Content: "two"}, model.MessageMeta{})
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, first.ID, second.ID)
	})

	t.Run("blocked pair cannot start a conversation", func(t *testing.T) {
		f := newChatFixture()
		require.NoError(t, f.blocks.CreateBlock(receiver, sender))

		_, _, _, err := f.svc.SendDirectMessage(sender, receiver, model.SendMessageRequest{Content: "hi"}, model.MessageMeta{})
		assert.ErrorIs(t, err, ErrBlocked)
	})

	t.Run("pending receiver has no compose box", func(t *testing.T) {
		f := newChatFixture()

		_, conv, _, err := f.svc.SendDirectMessage(sender, receiver, model.SendMessageRequest{Content: "hello"}, model.MessageMeta{})
		require.NoError(t, err)

		_, err = f.svc.SendMessage(receiver, conv.ID, model.SendMessageRequest{Content: "reply"}, model.MessageMeta{})
		assert.ErrorIs(t, err, ErrHandshakePending)

		// The initiator may keep sending while the handshake is open.
		_, err = f.svc.SendMessage(sender, conv.ID, model.SendMessageRequest{Content: "still me"}, model.MessageMeta{})
		assert.NoError(t, err)
	})

	t.Run("receiver can reply after accepting", func(t *testing.T) {
		f := newChatFixture()

		_, conv, _, err := f.svc.SendDirectMessage(sender, receiver, model.SendMessageRequest{Content: "hello"}, model.MessageMeta{})
		require.NoError(t, err)
		require.NoError(t, f.convs.SetParticipantStatus(conv.ID, receiver, model.ParticipantStatusActive))

		msg, err := f.svc.SendMessage(receiver, conv.ID, model.SendMessageRequest{Content: "hi back"}, model.MessageMeta{})
		require.NoError(t, err)
		assert.Equal(t, receiver, msg.SenderID)
	})
}

func TestSendMessage(t *testing.T) {
	sender, receiver := uuid.New(), uuid.New()

	setup := func(t *testing.T) (*chatFixture, *model.Conversation) {
		f := newChatFixture()
		conv := directConv(t, f.convs, sender, receiver)
		return f, conv
	}

	t.Run("empty message is rejected", func(t *testing.T) {
		f, conv := setup(t)
		_, err := f.svc.SendMessage(sender, conv.ID, model.SendMessageRequest{}, model.MessageMeta{})
		assert.ErrorIs(t, err, ErrEmptyMessage)
	})

	t.Run("non participant is rejected", func(t *testing.T) {
		f, conv := setup(t)
		_, err := f.svc.SendMessage(uuid.New(), conv.ID, model.SendMessageRequest{Content: "hi"}, model.MessageMeta{})
		assert.ErrorIs(t, err, ErrNotParticipant)
	})

	t.Run("type is inferred from attachments", func(t *testing.T) {
		f, conv := setup(t)

		msg, err := f.svc.SendMessage(sender, conv.ID, model.SendMessageRequest{
			Images: []string{"https://cdn.example/a.png", "https://cdn.example/b.png"},
		}, model.MessageMeta{})
		require.NoError(t, err)
		assert.Equal(t, model.MessageTypeImageGroup, msg.Type)
		assert.Len(t, msg.Meta.Images, 2)

		gif, err := f.svc.SendMessage(sender, conv.ID, model.SendMessageRequest{GifURL: "https://giphy.example/x.gif"}, model.MessageMeta{})
		require.NoError(t, err)
		assert.Equal(t, model.MessageTypeGIF, gif.Type)
	})

	t.Run("unread counter increments for everyone but the sender", func(t *testing.T) {
		f, conv := setup(t)

		_, err := f.svc.SendMessage(sender, conv.ID, model.SendMessageRequest{Content: "ping"}, model.MessageMeta{})
		require.NoError(t, err)

		receiverP, _ := f.convs.GetParticipant(conv.ID, receiver)
		senderP, _ := f.convs.GetParticipant(conv.ID, sender)
		assert.Equal(t, 1, receiverP.UnreadCount)
		assert.Equal(t, 0, senderP.UnreadCount)

		require.NoError(t, f.svc.MarkRead(conv.ID, receiver))
		receiverP, _ = f.convs.GetParticipant(conv.ID, receiver)
		assert.Equal(t, 0, receiverP.UnreadCount)
	})

	t.Run("reply carries a snippet of the target", func(t *testing.T) {
		f, conv := setup(t)

		target, err := f.svc.SendMessage(sender, conv.ID, model.SendMessageRequest{Content: "the original"}, model.MessageMeta{})
		require.NoError(t, err)

		reply, err := f.svc.SendMessage(sender, conv.ID, model.SendMessageRequest{Content: "answering", ReplyToID: &target.ID}, model.MessageMeta{})
		require.NoError(t, err)
		require.NotNil(t, reply.Meta.Reply)
		assert.Equal(t, target.ID, reply.Meta.Reply.MessageID)
		assert.Equal(t, "the original", reply.Meta.Reply.Excerpt)
	})
}

func TestEditMessage(t *testing.T) {
	sender, receiver := uuid.New(), uuid.New()

	setup := func(t *testing.T) (*chatFixture, *model.Message) {
		f := newChatFixture()
		conv := directConv(t, f.convs, sender, receiver)
		msg, err := f.svc.SendMessage(sender, conv.ID, model.SendMessageRequest{Content: "v1"}, model.MessageMeta{})
		require.NoError(t, err)
		return f, msg
	}

	t.Run("owner can edit twice", func(t *testing.T) {
		f, msg := setup(t)

		edited, err := f.svc.EditMessage(sender, msg.ID, "v2")
		require.NoError(t, err)
		assert.Equal(t, "v2", edited.Content)
		assert.Equal(t, 1, edited.EditCount)

		edited, err = f.svc.EditMessage(sender, msg.ID, "v3")
		require.NoError(t, err)
		assert.Equal(t, 2, edited.EditCount)
	})

	t.Run("third edit is rejected before any write", func(t *testing.T) {
		f, msg := setup(t)
		_, err := f.svc.EditMessage(sender, msg.ID, "v2")
		require.NoError(t, err)
		_, err = f.svc.EditMessage(sender, msg.ID, "v3")
		require.NoError(t, err)

		writesBefore := f.msgs.writes
		_, err = f.svc.EditMessage(sender, msg.ID, "v4")
		assert.ErrorIs(t, err, ErrEditLimit)
		assert.Equal(t, writesBefore, f.msgs.writes)

		current, err := f.msgs.FindByID(msg.ID)
		require.NoError(t, err)
		assert.Equal(t, "v3", current.Content)
	})

	t.Run("only the author may edit", func(t *testing.T) {
		f, msg := setup(t)
		writesBefore := f.msgs.writes

		_, err := f.svc.EditMessage(receiver, msg.ID, "hijacked")
		assert.ErrorIs(t, err, ErrPermissionDenied)
		assert.Equal(t, writesBefore, f.msgs.writes)
	})

	t.Run("empty replacement is rejected", func(t *testing.T) {
		f, msg := setup(t)
		_, err := f.svc.EditMessage(sender, msg.ID, "")
		assert.ErrorIs(t, err, ErrEmptyMessage)
	})

	t.Run("unknown message", func(t *testing.T) {
		f, _ := setup(t)
		_, err := f.svc.EditMessage(sender, uuid.New(), "x")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestDeleteMessage(t *testing.T) {
	sender, receiver := uuid.New(), uuid.New()
	f := newChatFixture()
	conv := directConv(t, f.convs, sender, receiver)
	msg, err := f.svc.SendMessage(sender, conv.ID, model.SendMessageRequest{Content: "oops"}, model.MessageMeta{})
	require.NoError(t, err)

	t.Run("someone else's message is refused", func(t *testing.T) {
		_, err := f.svc.DeleteMessage(receiver, msg.ID)
		assert.ErrorIs(t, err, ErrPermissionDenied)
	})

	t.Run("own message is removed", func(t *testing.T) {
		deleted, err := f.svc.DeleteMessage(sender, msg.ID)
		require.NoError(t, err)
		assert.Equal(t, msg.ID, deleted.ID)

		_, err = f.msgs.FindByID(msg.ID)
		assert.Error(t, err)
	})
}

func TestResolveDirect(t *testing.T) {
	me := uuid.New()
	partner := &model.User{ID: uuid.New(), Name: "Dana", Username: "dana"}

	t.Run("virtual response when no conversation exists", func(t *testing.T) {
		f := newChatFixture(partner)

		resp, err := f.svc.ResolveDirect(me, partner.ID)
		require.NoError(t, err)
		assert.True(t, resp.IsVirtual)
		assert.Nil(t, resp.Conversation)
		assert.Empty(t, resp.Messages)
		assert.Equal(t, "dana", resp.Counterpart.Username)
	})

	t.Run("unknown partner", func(t *testing.T) {
		f := newChatFixture(partner)
		_, err := f.svc.ResolveDirect(me, uuid.New())
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("blocked partner", func(t *testing.T) {
		f := newChatFixture(partner)
		require.NoError(t, f.blocks.CreateBlock(partner.ID, me))

		_, err := f.svc.ResolveDirect(me, partner.ID)
		assert.ErrorIs(t, err, ErrBlocked)
	})

	t.Run("existing conversation comes back read", func(t *testing.T) {
		f := newChatFixture(partner)
		conv := directConv(t, f.convs, partner.ID, me)
		require.NoError(t, f.convs.SetParticipantStatus(conv.ID, me, model.ParticipantStatusActive))
		_, err := f.svc.SendMessage(partner.ID, conv.ID, model.SendMessageRequest{Content: "yo"}, model.MessageMeta{})
		require.NoError(t, err)

		resp, err := f.svc.ResolveDirect(me, partner.ID)
		require.NoError(t, err)
		assert.False(t, resp.IsVirtual)
		require.NotNil(t, resp.Conversation)
		assert.Equal(t, 0, resp.Conversation.UnreadCount)
		require.Len(t, resp.Messages, 1)
		assert.Equal(t, "yo", resp.Messages[0].Content)

		p, _ := f.convs.GetParticipant(conv.ID, me)
		assert.Equal(t, 0, p.UnreadCount)
	})
}

func TestGetMessagesWarmCache(t *testing.T) {
	sender, receiver := uuid.New(), uuid.New()
	f := newChatFixture()
	conv := directConv(t, f.convs, sender, receiver)

	_, err := f.svc.SendMessage(sender, conv.ID, model.SendMessageRequest{Content: "first"}, model.MessageMeta{})
	require.NoError(t, err)

	// First read loads the window into the stream cache.
	msgs, err := f.svc.GetMessages(conv.ID, sender, nil, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	// A write that bypasses the service is invisible while the cache is
	// warm; sends through the service land in both places.
	require.NoError(t, f.msgs.Create(&model.Message{ConversationID: conv.ID, SenderID: sender, Content: "sneaky", Type: model.MessageTypeText}))
	msgs, err = f.svc.GetMessages(conv.ID, sender, nil, 0)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)

	_, err = f.svc.SendMessage(sender, conv.ID, model.SendMessageRequest{Content: "second"}, model.MessageMeta{})
	require.NoError(t, err)
	msgs, err = f.svc.GetMessages(conv.ID, sender, nil, 0)
	require.NoError(t, err)
	assert.Len(t, msgs, 2)

	// Dropping the cache forces a reload straight from the store.
	f.svc.DropCache(conv.ID)
	msgs, err = f.svc.GetMessages(conv.ID, sender, nil, 0)
	require.NoError(t, err)
	assert.Len(t, msgs, 3)
}

// wirePayload round-trips a value through JSON the way events arrive
// off the pub/sub channel: as a decoded map, not the concrete type.
func wirePayload(t *testing.T, v interface{}) interface{} {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	var out interface{}
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestReconcileEvent(t *testing.T) {
	sender, receiver := uuid.New(), uuid.New()

	warm := func(t *testing.T, f *chatFixture, convID uuid.UUID) {
		t.Helper()
		_, err := f.svc.GetMessages(convID, sender, nil, 0)
		require.NoError(t, err)
	}

	t.Run("remote send lands in the warm cache", func(t *testing.T) {
		f := newChatFixture()
		conv := directConv(t, f.convs, sender, receiver)
		warm(t, f, conv.ID)

		// Another instance wrote the row and published the event.
		remote := &model.Message{ID: uuid.New(), ConversationID: conv.ID, SenderID: receiver, Content: "from elsewhere", Type: model.MessageTypeText}
		require.NoError(t, f.msgs.Create(remote))
		f.svc.ReconcileEvent(model.WSEventNewMessage, wirePayload(t, remote))

		msgs, err := f.svc.GetMessages(conv.ID, sender, nil, 0)
		require.NoError(t, err)
		require.Len(t, msgs, 1)
		assert.Equal(t, remote.ID, msgs[0].ID)
	})

	t.Run("remote edit replaces the cached row", func(t *testing.T) {
		f := newChatFixture()
		conv := directConv(t, f.convs, sender, receiver)

		msg, err := f.svc.SendMessage(sender, conv.ID, model.SendMessageRequest{Content: "before"}, model.MessageMeta{})
		require.NoError(t, err)
		warm(t, f, conv.ID)

		edited := *msg
		edited.Content = "after"
		f.svc.ReconcileEvent(model.WSEventMessageUpdated, wirePayload(t, &edited))

		msgs, err := f.svc.GetMessages(conv.ID, sender, nil, 0)
		require.NoError(t, err)
		require.Len(t, msgs, 1)
		assert.Equal(t, "after", msgs[0].Content)
	})

	t.Run("remote delete evicts the cached row", func(t *testing.T) {
		f := newChatFixture()
		conv := directConv(t, f.convs, sender, receiver)

		msg, err := f.svc.SendMessage(sender, conv.ID, model.SendMessageRequest{Content: "going"}, model.MessageMeta{})
		require.NoError(t, err)
		warm(t, f, conv.ID)

		// The deleting instance removed the row before publishing.
		require.NoError(t, f.msgs.DeleteAny(msg.ID))
		f.svc.ReconcileEvent(model.WSEventMessageDeleted, wirePayload(t, model.MessageDeletedEvent{
			ConversationID: conv.ID,
			MessageID:      msg.ID,
		}))

		msgs, err := f.svc.GetMessages(conv.ID, sender, nil, 0)
		require.NoError(t, err)
		assert.Empty(t, msgs)
	})

	t.Run("conversation delete drops the window", func(t *testing.T) {
		f := newChatFixture()
		conv := directConv(t, f.convs, sender, receiver)

		_, err := f.svc.SendMessage(sender, conv.ID, model.SendMessageRequest{Content: "one"}, model.MessageMeta{})
		require.NoError(t, err)
		warm(t, f, conv.ID)

		f.svc.ReconcileEvent(model.WSEventConvDeleted, wirePayload(t, map[string]interface{}{
			"conversation_id": conv.ID,
		}))

		// Cache is cold again; a store write is visible on the next read.
		require.NoError(t, f.msgs.Create(&model.Message{ConversationID: conv.ID, SenderID: sender, Content: "two", Type: model.MessageTypeText}))
		msgs, err := f.svc.GetMessages(conv.ID, sender, nil, 0)
		require.NoError(t, err)
		assert.Len(t, msgs, 2)
	})

	t.Run("remote purge drops the window", func(t *testing.T) {
		f := newChatFixture()
		conv := directConv(t, f.convs, sender, receiver)

		_, err := f.svc.SendMessage(receiver, conv.ID, model.SendMessageRequest{Content: "spam"}, model.MessageMeta{})
		require.NoError(t, err)
		warm(t, f, conv.ID)

		// Another instance purged the rows before publishing.
		_, err = f.msgs.PurgeUserMessages(conv.ID, receiver)
		require.NoError(t, err)
		f.svc.ReconcileEvent(model.WSEventConvUpdated, wirePayload(t, map[string]interface{}{
			"conversation_id": conv.ID,
			"purged_user_id":  receiver,
		}))

		msgs, err := f.svc.GetMessages(conv.ID, sender, nil, 0)
		require.NoError(t, err)
		assert.Empty(t, msgs)
	})

	t.Run("garbage payload is ignored", func(t *testing.T) {
		f := newChatFixture()
		conv := directConv(t, f.convs, sender, receiver)

		_, err := f.svc.SendMessage(sender, conv.ID, model.SendMessageRequest{Content: "keep"}, model.MessageMeta{})
		require.NoError(t, err)
		warm(t, f, conv.ID)

		f.svc.ReconcileEvent(model.WSEventNewMessage, "not a message")
		f.svc.ReconcileEvent(model.WSEventMessageDeleted, wirePayload(t, map[string]interface{}{"message_id": "nope"}))

		msgs, err := f.svc.GetMessages(conv.ID, sender, nil, 0)
		require.NoError(t, err)
		assert.Len(t, msgs, 1)
	})
}
