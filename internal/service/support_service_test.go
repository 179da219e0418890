package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"csbridge/internal/attachments"
	apperrors "csbridge/internal/errors"
	"csbridge/internal/models"
	"csbridge/pkg/whatsapp/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type supportFixture struct {
	store      *mockConversationStore
	atts       *mockAttachmentManager
	sender     *mockSender
	exclusions *mockExclusions
	session    *mockSessionClient
	svc        *SupportService
}

func newSupportFixture() *supportFixture {
	f := &supportFixture{
		store:      &mockConversationStore{},
		atts:       &mockAttachmentManager{},
		sender:     &mockSender{},
		exclusions: &mockExclusions{},
		session:    &mockSessionClient{},
	}
	f.svc = NewSupportService(f.store, f.atts, f.sender, f.exclusions, f.session, nil, quietLogger())
	return f
}

func inbound(id int64) *models.Message {
	return &models.Message{ID: id, ConversationID: chat, Direction: models.DirectionInbound, Status: models.StatusPending}
}

func TestSupport_Conversation(t *testing.T) {
	f := newSupportFixture()
	thread := []models.Message{*inbound(1), {ID: 2, ConversationID: chat, Direction: models.DirectionOutbound}}
	f.store.On("GetMessage", mock.Anything, int64(1)).Return(inbound(1), nil)
	f.store.On("GetThread", mock.Anything, chat).Return(thread, nil)
	f.atts.On("ListByMessage", mock.Anything, int64(1)).Return([]models.Attachment{{ID: 9, MessageID: 1}}, nil)
	f.atts.On("ListByMessage", mock.Anything, int64(2)).Return(nil, nil)

	view, err := f.svc.Conversation(context.Background(), 1)

	require.NoError(t, err)
	assert.Equal(t, int64(1), view.Message.ID)
	assert.Len(t, view.Thread, 2)
	assert.Len(t, view.Attachments[1], 1)
	_, has := view.Attachments[2]
	assert.False(t, has)
}

func TestSupport_ConversationNotFound(t *testing.T) {
	f := newSupportFixture()
	f.store.On("GetMessage", mock.Anything, int64(404)).Return(nil, nil)

	_, err := f.svc.Conversation(context.Background(), 404)

	assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.GetCode(err))
}

func TestSupport_ReplyTextClosesMessage(t *testing.T) {
	f := newSupportFixture()
	f.store.On("GetMessage", mock.Anything, int64(1)).Return(inbound(1), nil)
	f.sender.On("SendText", mock.Anything, chat, "sudah kami proses", OriginOperator).Return(&DispatchResult{MessageID: 2}, nil)
	f.store.On("UpdateStatus", mock.Anything, int64(1), models.StatusDone).Return(nil)

	res, err := f.svc.Reply(context.Background(), 1, ReplyRequest{Text: "  sudah kami proses "})

	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Text.MessageID)
	assert.Nil(t, res.Media)
	f.store.AssertExpectations(t)
}

func TestSupport_ReplyTextAndFile(t *testing.T) {
	f := newSupportFixture()
	f.store.On("GetMessage", mock.Anything, int64(1)).Return(inbound(1), nil)
	f.atts.On("Resolve", "123_bukti.png").Return("/srv/uploads/123_bukti.png", nil)
	f.sender.On("SendText", mock.Anything, chat, "ini buktinya", OriginOperator).Return(&DispatchResult{MessageID: 2}, nil)
	f.sender.On("SendMedia", mock.Anything, chat, "/srv/uploads/123_bukti.png", "image/png", OriginOperator).
		Return(&DispatchResult{MessageID: 3}, nil)
	f.store.On("UpdateStatus", mock.Anything, int64(1), models.StatusDone).Return(nil)

	res, err := f.svc.Reply(context.Background(), 1, ReplyRequest{Text: "ini buktinya", FilePath: "123_bukti.png", MimeType: "image/png"})

	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Media.MessageID)
	f.sender.AssertExpectations(t)
}

func TestSupport_ReplyTransportFailureKeepsStatus(t *testing.T) {
	f := newSupportFixture()
	f.store.On("GetMessage", mock.Anything, int64(1)).Return(inbound(1), nil)
	f.sender.On("SendText", mock.Anything, chat, "halo", OriginOperator).
		Return(nil, apperrors.NewTransportError("send_text", errors.New("offline")))

	_, err := f.svc.Reply(context.Background(), 1, ReplyRequest{Text: "halo"})

	assert.Equal(t, apperrors.ErrCodeTransport, apperrors.GetCode(err))
	f.store.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestSupport_ReplyValidation(t *testing.T) {
	f := newSupportFixture()
	f.store.On("GetMessage", mock.Anything, int64(1)).Return(inbound(1), nil)
	f.atts.On("Resolve", "../etc/passwd").Return("", apperrors.NewValidationError("path", "outside uploads"))

	_, err := f.svc.Reply(context.Background(), 1, ReplyRequest{Text: "  "})
	assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.GetCode(err))

	_, err = f.svc.Reply(context.Background(), 1, ReplyRequest{FilePath: "../etc/passwd"})
	assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.GetCode(err))

	_, err = f.svc.ReplyAttachment(context.Background(), 1, "", "")
	assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.GetCode(err))

	f.sender.AssertNotCalled(t, "SendText", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.sender.AssertNotCalled(t, "SendMedia", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSupport_UpdateStatus(t *testing.T) {
	f := newSupportFixture()
	f.store.On("UpdateStatus", mock.Anything, int64(1), models.StatusPending).
		Return(apperrors.NewTransitionError("done", "pending"))

	err := f.svc.UpdateStatus(context.Background(), 1, models.StatusPending)
	assert.Equal(t, apperrors.ErrCodeInvalidTransition, apperrors.GetCode(err))

	err = f.svc.UpdateStatus(context.Background(), 1, models.Status("archived"))
	assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.GetCode(err))
}

func TestSupport_DeleteRemovesAttachmentsFirst(t *testing.T) {
	f := newSupportFixture()
	var order []string
	f.store.On("GetMessage", mock.Anything, int64(1)).Return(inbound(1), nil)
	f.atts.On("DeleteAllForMessage", mock.Anything, int64(1)).Run(func(mock.Arguments) { order = append(order, "attachments") }).Return(nil)
	f.store.On("DeleteMessage", mock.Anything, int64(1)).Run(func(mock.Arguments) { order = append(order, "message") }).Return(nil)

	require.NoError(t, f.svc.Delete(context.Background(), 1))
	assert.Equal(t, []string{"attachments", "message"}, order)
}

func TestSupport_DeleteMissing(t *testing.T) {
	f := newSupportFixture()
	f.store.On("GetMessage", mock.Anything, int64(7)).Return(nil, nil)

	err := f.svc.Delete(context.Background(), 7)

	assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.GetCode(err))
	f.atts.AssertNotCalled(t, "DeleteAllForMessage", mock.Anything, mock.Anything)
}

func TestSupport_Upload(t *testing.T) {
	f := newSupportFixture()
	body := strings.NewReader("data")
	f.atts.On("StoreUpload", "bukti transfer.png", body).Return(&attachments.Upload{Name: "1_bukti_transfer.png"}, nil)

	up, err := f.svc.Upload("bukti transfer.png", body)
	require.NoError(t, err)
	assert.Equal(t, "1_bukti_transfer.png", up.Name)

	_, err = f.svc.Upload(" ", body)
	assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.GetCode(err))
}

func TestSupport_Exclusions(t *testing.T) {
	f := newSupportFixture()
	f.exclusions.On("Load", mock.Anything).Return([]string{"62811@c.us"}, nil)
	f.exclusions.On("Add", mock.Anything, "62822@c.us").Return(true, nil)
	f.exclusions.On("Remove", mock.Anything, "62833@c.us").Return(false, nil)

	list, err := f.svc.Exclusions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"62811@c.us"}, list)

	added, err := f.svc.AddExclusion(context.Background(), " 62822@c.us ")
	require.NoError(t, err)
	assert.True(t, added)

	_, err = f.svc.AddExclusion(context.Background(), "")
	assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.GetCode(err))

	err = f.svc.RemoveExclusion(context.Background(), "62833@c.us")
	assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.GetCode(err))
}

func TestSupport_Session(t *testing.T) {
	f := newSupportFixture()
	f.session.On("GetSessionStatus", mock.Anything).Return(&types.Session{Name: "default", Status: types.SessionStatusScanQR}, nil)
	f.session.On("GetQRCode", mock.Anything).Return([]byte("png"), "image/png", nil)
	f.session.On("GetGroups", mock.Anything).Return(nil, errors.New("session not started"))

	sess, err := f.svc.SessionStatus(context.Background())
	require.NoError(t, err)
	assert.False(t, sess.Ready())

	data, ct, err := f.svc.PairingQR(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("png"), data)
	assert.Equal(t, "image/png", ct)

	_, err = f.svc.Groups(context.Background())
	assert.Equal(t, apperrors.ErrCodeTransport, apperrors.GetCode(err))
}
