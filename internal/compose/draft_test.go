package compose

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andymarrow/stark-api/internal/model"
)

func TestDraft_StageImage(t *testing.T) {
	d := &Draft{}

	require.NoError(t, d.StageImage("a.jpg"))
	require.NoError(t, d.StageImage("b.jpg"))
	require.NoError(t, d.StageImage("c.jpg"))

	// The fourth image is rejected and nothing changes
	err := d.StageImage("d.jpg")
	assert.ErrorIs(t, err, ErrTooManyImages)
	assert.Equal(t, []string{"a.jpg", "b.jpg", "c.jpg"}, d.Images)
}

func TestDraft_UnstageImage(t *testing.T) {
	d := &Draft{Images: []string{"a.jpg", "b.jpg", "c.jpg"}}

	d.UnstageImage(1)
	assert.Equal(t, []string{"a.jpg", "c.jpg"}, d.Images)

	// Out-of-range indices are ignored
	d.UnstageImage(5)
	d.UnstageImage(-1)
	assert.Equal(t, []string{"a.jpg", "c.jpg"}, d.Images)

	// Removing frees a slot for another upload
	require.NoError(t, d.StageImage("d.jpg"))
	require.NoError(t, d.StageImage("e.jpg"))
	assert.ErrorIs(t, d.StageImage("f.jpg"), ErrTooManyImages)
}

func TestDraft_SetReply(t *testing.T) {
	target := &model.Message{
		ID:       uuid.New(),
		SenderID: uuid.New(),
		Content:  strings.Repeat("x", 150),
		Sender:   model.User{Name: "Ada"},
	}

	d := &Draft{}
	d.SetReply(target)

	require.NotNil(t, d.Reply)
	assert.Equal(t, target.ID, d.Reply.MessageID)
	assert.Equal(t, "Ada", d.Reply.SenderName)
	assert.Equal(t, strings.Repeat("x", 100)+"…", d.Reply.Excerpt)
}

func TestDraft_BeginEdit(t *testing.T) {
	owner := uuid.New()
	msg := &model.Message{ID: uuid.New(), SenderID: owner, Content: "original"}

	t.Run("not the owner", func(t *testing.T) {
		d := &Draft{}
		err := d.BeginEdit(msg, uuid.New())
		assert.ErrorIs(t, err, ErrNotOwnMessage)
		assert.Nil(t, d.EditingID)
	})

	t.Run("edit budget spent", func(t *testing.T) {
		spent := *msg
		spent.EditCount = model.MaxEditsPerMessage
		d := &Draft{Text: "untouched"}
		err := d.BeginEdit(&spent, owner)
		assert.ErrorIs(t, err, ErrEditLimit)
		assert.Equal(t, "untouched", d.Text)
	})

	t.Run("enters edit mode", func(t *testing.T) {
		d := &Draft{Images: []string{"a.jpg"}}
		require.NoError(t, d.BeginEdit(msg, owner))
		require.NotNil(t, d.EditingID)
		assert.Equal(t, msg.ID, *d.EditingID)
		assert.Equal(t, "original", d.Text)
		assert.Empty(t, d.Images)
	})
}

func TestDraft_Build(t *testing.T) {
	t.Run("empty draft", func(t *testing.T) {
		d := &Draft{}
		_, _, err := d.Build()
		assert.ErrorIs(t, err, ErrEmptyDraft)
	})

	t.Run("text only", func(t *testing.T) {
		d := &Draft{Text: "hello"}
		req, meta, err := d.Build()
		require.NoError(t, err)
		assert.Equal(t, model.MessageTypeText, req.Type)
		assert.Equal(t, "hello", req.Content)
		assert.Empty(t, meta.Images)
	})

	t.Run("a single image makes an image group", func(t *testing.T) {
		d := &Draft{Images: []string{"a.jpg"}}
		req, meta, err := d.Build()
		require.NoError(t, err)
		assert.Equal(t, model.MessageTypeImageGroup, req.Type)
		assert.Equal(t, []string{"a.jpg"}, meta.Images)
	})
}

func TestStore(t *testing.T) {
	s := NewStore()
	userID := uuid.New()
	convID := uuid.New()

	d := s.Get(userID, convID)
	require.NoError(t, d.StageImage("a.jpg"))

	// Same key returns the same draft
	assert.Same(t, d, s.Get(userID, convID))

	// A different conversation gets an independent draft
	other := s.Get(userID, uuid.New())
	assert.Empty(t, other.Images)

	s.Clear(userID, convID)
	assert.Empty(t, s.Get(userID, convID).Images)
}
