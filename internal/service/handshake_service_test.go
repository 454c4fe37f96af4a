package service

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andymarrow/stark-api/internal/model"
)

func directConv(t *testing.T, convs *fakeConvStore, sender, receiver uuid.UUID) *model.Conversation {
	t.Helper()
	conv := &model.Conversation{
		Kind: model.ConversationKindDirect,
		Participants: []model.Participant{
			{UserID: sender, Role: model.ParticipantRoleMember, Status: model.ParticipantStatusActive},
			{UserID: receiver, Role: model.ParticipantRoleMember, Status: model.ParticipantStatusPending},
		},
	}
	require.NoError(t, convs.Create(conv))
	return conv
}

func TestHandshakeAccept(t *testing.T) {
	sender, receiver := uuid.New(), uuid.New()

	t.Run("pending participant becomes active", func(t *testing.T) {
		convs := newFakeConvStore()
		svc := NewHandshakeService(convs, newFakeBlockStore())
		conv := directConv(t, convs, sender, receiver)

		require.NoError(t, svc.Accept(conv.ID, receiver))

		p, err := convs.GetParticipant(conv.ID, receiver)
		require.NoError(t, err)
		assert.Equal(t, model.ParticipantStatusActive, p.Status)
	})

	t.Run("already active participant cannot accept", func(t *testing.T) {
		convs := newFakeConvStore()
		svc := NewHandshakeService(convs, newFakeBlockStore())
		conv := directConv(t, convs, sender, receiver)

		err := svc.Accept(conv.ID, sender)
		assert.ErrorIs(t, err, ErrPermissionDenied)
	})

	t.Run("non participant gets not found", func(t *testing.T) {
		convs := newFakeConvStore()
		svc := NewHandshakeService(convs, newFakeBlockStore())
		conv := directConv(t, convs, sender, receiver)

		err := svc.Accept(conv.ID, uuid.New())
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestHandshakeReject(t *testing.T) {
	t.Run("records a strike and deletes the conversation", func(t *testing.T) {
		convs := newFakeConvStore()
		blocks := newFakeBlockStore()
		svc := NewHandshakeService(convs, blocks)
		sender, receiver := uuid.New(), uuid.New()
		conv := directConv(t, convs, sender, receiver)

		autoBlocked, err := svc.Reject(conv.ID, receiver, sender)
		require.NoError(t, err)
		assert.False(t, autoBlocked)

		count, err := blocks.GetCount(sender, receiver)
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		_, err = convs.FindByID(conv.ID)
		assert.Error(t, err, "conversation should be gone")
	})

	t.Run("only the pending side may reject", func(t *testing.T) {
		convs := newFakeConvStore()
		svc := NewHandshakeService(convs, newFakeBlockStore())
		sender, receiver := uuid.New(), uuid.New()
		conv := directConv(t, convs, sender, receiver)

		_, err := svc.Reject(conv.ID, sender, receiver)
		assert.ErrorIs(t, err, ErrPermissionDenied)
	})

	t.Run("third rejection auto-blocks the sender", func(t *testing.T) {
		convs := newFakeConvStore()
		blocks := newFakeBlockStore()
		svc := NewHandshakeService(convs, blocks)
		sender, receiver := uuid.New(), uuid.New()

		for i := 1; i <= model.StrikeThreshold; i++ {
			conv := directConv(t, convs, sender, receiver)
			autoBlocked, err := svc.Reject(conv.ID, receiver, sender)
			require.NoError(t, err)
			if i < model.StrikeThreshold {
				assert.False(t, autoBlocked, "strike %d should not block", i)
			} else {
				assert.True(t, autoBlocked, "strike %d should block", i)
			}
		}

		blocked, err := blocks.IsBlocked(sender, receiver)
		require.NoError(t, err)
		assert.True(t, blocked)
		assert.Equal(t, 1, blocks.blockCount())

		// Once blocked, a new send attempt never reaches the gate:
		// the direction of the block covers both users.
		blocked, err = blocks.IsBlocked(receiver, sender)
		require.NoError(t, err)
		assert.True(t, blocked)
	})

	t.Run("strikes are per pair", func(t *testing.T) {
		convs := newFakeConvStore()
		blocks := newFakeBlockStore()
		svc := NewHandshakeService(convs, blocks)
		sender, receiverA, receiverB := uuid.New(), uuid.New(), uuid.New()

		convA := directConv(t, convs, sender, receiverA)
		_, err := svc.Reject(convA.ID, receiverA, sender)
		require.NoError(t, err)
		convB := directConv(t, convs, sender, receiverB)
		_, err = svc.Reject(convB.ID, receiverB, sender)
		require.NoError(t, err)

		countA, _ := blocks.GetCount(sender, receiverA)
		countB, _ := blocks.GetCount(sender, receiverB)
		assert.Equal(t, 1, countA)
		assert.Equal(t, 1, countB)
	})
}

func TestHandshakeBlock(t *testing.T) {
	t.Run("blocks immediately and removes the direct conversation", func(t *testing.T) {
		convs := newFakeConvStore()
		blocks := newFakeBlockStore()
		svc := NewHandshakeService(convs, blocks)
		userA, userB := uuid.New(), uuid.New()
		conv := directConv(t, convs, userB, userA)

		require.NoError(t, svc.Block(userA, userB))

		blocked, err := blocks.IsBlocked(userA, userB)
		require.NoError(t, err)
		assert.True(t, blocked)
		_, err = convs.FindByID(conv.ID)
		assert.Error(t, err)
	})

	t.Run("block without an existing conversation succeeds", func(t *testing.T) {
		svc := NewHandshakeService(newFakeConvStore(), newFakeBlockStore())
		require.NoError(t, svc.Block(uuid.New(), uuid.New()))
	})

	t.Run("unblock lifts the block", func(t *testing.T) {
		blocks := newFakeBlockStore()
		svc := NewHandshakeService(newFakeConvStore(), blocks)
		userA, userB := uuid.New(), uuid.New()

		require.NoError(t, svc.Block(userA, userB))
		require.NoError(t, svc.Unblock(userA, userB))

		blocked, err := blocks.IsBlocked(userA, userB)
		require.NoError(t, err)
		assert.False(t, blocked)
	})
}
