package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"csbridge/internal/attachments"
	"csbridge/internal/database"
	"csbridge/internal/exclusions"
	"csbridge/internal/gate"
	"csbridge/internal/models"
	"csbridge/internal/timestamps"
	"csbridge/pkg/circuitbreaker"
	"csbridge/pkg/whatsapp/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// pipeline wires the real stores and gate around a fake transport and generator.
type pipeline struct {
	db         *database.Database
	store      *attachments.Store
	exclusions *exclusions.FileStore
	transport  *mockTransport
	generator  *mockGenerator
	intake     *Intake
	support    *SupportService
}

func newPipeline(t *testing.T) *pipeline {
	t.Helper()
	dir := t.TempDir()
	logger := quietLogger()

	db, err := database.New(filepath.Join(dir, "csbridge.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := attachments.NewStore(filepath.Join(dir, "uploads"), db, logger)
	require.NoError(t, err)
	excl, err := exclusions.NewFileStore(filepath.Join(dir, "excluded.json"))
	require.NoError(t, err)

	p := &pipeline{db: db, store: store, exclusions: excl, transport: &mockTransport{}, generator: &mockGenerator{}}
	g := gate.New(gate.Config{Keywords: []string{"cek", "tolong"}}, excl, logger)
	dispatcher := NewDispatcher(p.transport, db, store, nil, logger)
	replier := NewAutoReplier(p.generator, dispatcher, circuitbreaker.NewWithLogger("generation", 5, time.Minute, logger),
		timestamps.DefaultZone(), timestamps.SystemClock(), AutoReplyConfig{Timeout: time.Second}, logger)
	p.intake = NewIntake(g, db, store, replier, nil, logger)
	p.support = NewSupportService(db, store, dispatcher, excl, nil, nil, logger)
	return p
}

func (p *pipeline) messages(t *testing.T) []models.Message {
	t.Helper()
	thread, err := p.db.GetThread(context.Background(), chat)
	require.NoError(t, err)
	return thread
}

func textEvent(id, body string) models.InboundEvent {
	return models.InboundEvent{ConversationID: chat, MessageID: id, Content: models.TextMessage{Body: body}}
}

func TestPipeline_ExcludedConversationLeavesNoTrace(t *testing.T) {
	p := newPipeline(t)
	_, err := p.exclusions.Add(context.Background(), chat)
	require.NoError(t, err)

	res, err := p.intake.Handle(context.Background(), textEvent("w1", "tolong cek kode"))

	require.NoError(t, err)
	assert.Equal(t, gate.ReasonExcluded, res.Verdict.Reason)
	assert.Empty(t, p.messages(t))
	p.transport.AssertNotCalled(t, "SendText", mock.Anything, mock.Anything, mock.Anything)
}

func TestPipeline_AutoReplyLeavesConversationPending(t *testing.T) {
	p := newPipeline(t)
	p.generator.On("Generate", mock.Anything, mock.Anything).Return("Baik, mohon ditunggu.", nil)
	p.transport.On("SendText", mock.Anything, chat, "Baik, mohon ditunggu.").Return(&types.SendMessageResponse{MessageID: "out1"}, nil)

	res, err := p.intake.Handle(context.Background(), textEvent("w1", "tolong cek"))
	require.NoError(t, err)

	msgs := p.messages(t)
	require.Len(t, msgs, 2)
	assert.Equal(t, res.InboundID, msgs[0].ID)
	assert.Equal(t, models.DirectionInbound, msgs[0].Direction)
	assert.Equal(t, models.StatusPending, msgs[0].Status)
	assert.False(t, msgs[0].AutoReplied)

	assert.Equal(t, models.DirectionOutbound, msgs[1].Direction)
	assert.Equal(t, models.StatusPending, msgs[1].Status)
	assert.True(t, msgs[1].AutoReplied)
	assert.Equal(t, "Baik, mohon ditunggu.", *msgs[1].Text)
}

func TestPipeline_FallbackWhenGenerationFails(t *testing.T) {
	p := newPipeline(t)
	p.generator.On("Generate", mock.Anything, mock.Anything).Return("", errors.New("quota exceeded"))
	p.transport.On("SendText", mock.Anything, chat, "Terima kasih, kami akan segera merespons.").Return(&types.SendMessageResponse{}, nil)

	_, err := p.intake.Handle(context.Background(), textEvent("w1", "cek"))
	require.NoError(t, err)

	msgs := p.messages(t)
	require.Len(t, msgs, 2)
	assert.True(t, msgs[1].AutoReplied)
	p.transport.AssertExpectations(t)
}

func TestPipeline_HumanReplyClosesConversation(t *testing.T) {
	p := newPipeline(t)
	p.generator.On("Generate", mock.Anything, mock.Anything).Return("auto", nil)
	p.transport.On("SendText", mock.Anything, chat, "auto").Return(&types.SendMessageResponse{}, nil)
	p.transport.On("SendText", mock.Anything, chat, "sudah selesai").Return(&types.SendMessageResponse{}, nil)

	res, err := p.intake.Handle(context.Background(), textEvent("w1", "cek"))
	require.NoError(t, err)

	_, err = p.support.Reply(context.Background(), res.InboundID, ReplyRequest{Text: "sudah selesai"})
	require.NoError(t, err)

	msgs := p.messages(t)
	require.Len(t, msgs, 3)
	assert.Equal(t, models.StatusDone, msgs[0].Status)
	assert.Equal(t, models.DirectionOutbound, msgs[2].Direction)
	assert.Equal(t, models.StatusDone, msgs[2].Status)
	assert.False(t, msgs[2].AutoReplied)
}

func TestPipeline_FailedHumanReplyChangesNothing(t *testing.T) {
	p := newPipeline(t)
	p.generator.On("Generate", mock.Anything, mock.Anything).Return("auto", nil)
	p.transport.On("SendText", mock.Anything, chat, "auto").Return(&types.SendMessageResponse{}, nil)
	p.transport.On("SendText", mock.Anything, chat, "balasan").Return(nil, errors.New("session stopped"))

	res, err := p.intake.Handle(context.Background(), textEvent("w1", "cek"))
	require.NoError(t, err)

	_, err = p.support.Reply(context.Background(), res.InboundID, ReplyRequest{Text: "balasan"})
	require.Error(t, err)

	msgs := p.messages(t)
	require.Len(t, msgs, 2)
	assert.Equal(t, models.StatusPending, msgs[0].Status)
}

func TestPipeline_MediaStoredAndDeleted(t *testing.T) {
	p := newPipeline(t)
	p.generator.On("Generate", mock.Anything, mock.Anything).Return("diterima", nil)
	p.transport.On("SendText", mock.Anything, chat, "diterima").Return(&types.SendMessageResponse{}, nil)

	res, err := p.intake.Handle(context.Background(), models.InboundEvent{
		ConversationID: chat,
		MessageID:      "wamid7",
		Content: models.TextWithMediaMessage{
			Body:  "cek bukti",
			Media: staticMedia{payload: &models.MediaPayload{Data: []byte("jpeg"), MimeType: "image/jpeg"}},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, res.Attachment)
	assert.Regexp(t, regexp.MustCompile(`^\d+_wamid7\.jpg$`), filepath.Base(res.Attachment.StoragePath))
	assert.Equal(t, models.AttachmentImage, res.Attachment.Kind)
	_, err = os.Stat(res.Attachment.StoragePath)
	require.NoError(t, err)

	require.NoError(t, p.support.Delete(context.Background(), res.InboundID))

	_, err = os.Stat(res.Attachment.StoragePath)
	assert.True(t, os.IsNotExist(err))
	atts, err := p.db.ListAttachmentsByMessage(context.Background(), res.InboundID)
	require.NoError(t, err)
	assert.Empty(t, atts)
	gone, err := p.db.GetMessage(context.Background(), res.InboundID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestPipeline_TooLongIsRejected(t *testing.T) {
	p := newPipeline(t)
	long := "cek "
	for len([]rune(long)) <= 200 {
		long += "kode "
	}

	res, err := p.intake.Handle(context.Background(), textEvent("w1", long))

	require.NoError(t, err)
	assert.Equal(t, gate.ReasonTooLong, res.Verdict.Reason)
	assert.Empty(t, p.messages(t))
}
