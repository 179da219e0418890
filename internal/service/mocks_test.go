package service

import (
	"context"
	"io"

	"csbridge/internal/attachments"
	"csbridge/internal/gate"
	"csbridge/internal/models"
	"csbridge/pkg/whatsapp/types"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// Transport
type mockTransport struct {
	mock.Mock
}

func (m *mockTransport) SendText(ctx context.Context, chatID, text string) (*types.SendMessageResponse, error) {
	args := m.Called(ctx, chatID, text)
	resp, _ := args.Get(0).(*types.SendMessageResponse)
	return resp, args.Error(1)
}

func (m *mockTransport) SendMedia(ctx context.Context, chatID string, file types.FileData, caption string) (*types.SendMessageResponse, error) {
	args := m.Called(ctx, chatID, file, caption)
	resp, _ := args.Get(0).(*types.SendMessageResponse)
	return resp, args.Error(1)
}

// Conversation store
type mockMessageWriter struct {
	mock.Mock
}

func (m *mockMessageWriter) InsertMessage(ctx context.Context, msg models.NewMessage) (int64, error) {
	args := m.Called(ctx, msg)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockMessageWriter) DeleteMessage(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

type mockConversationStore struct {
	mock.Mock
}

func (m *mockConversationStore) ListInbound(ctx context.Context) ([]models.Message, error) {
	args := m.Called(ctx)
	msgs, _ := args.Get(0).([]models.Message)
	return msgs, args.Error(1)
}

func (m *mockConversationStore) GetMessage(ctx context.Context, id int64) (*models.Message, error) {
	args := m.Called(ctx, id)
	msg, _ := args.Get(0).(*models.Message)
	return msg, args.Error(1)
}

func (m *mockConversationStore) GetThread(ctx context.Context, conversationID string) ([]models.Message, error) {
	args := m.Called(ctx, conversationID)
	msgs, _ := args.Get(0).([]models.Message)
	return msgs, args.Error(1)
}

func (m *mockConversationStore) UpdateStatus(ctx context.Context, id int64, status models.Status) error {
	return m.Called(ctx, id, status).Error(0)
}

func (m *mockConversationStore) DeleteMessage(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

// Attachments
type mockAttachmentRecorder struct {
	mock.Mock
}

func (m *mockAttachmentRecorder) Register(ctx context.Context, messageID int64, path, mimeType string) (*models.Attachment, error) {
	args := m.Called(ctx, messageID, path, mimeType)
	att, _ := args.Get(0).(*models.Attachment)
	return att, args.Error(1)
}

type mockMediaSaver struct {
	mock.Mock
}

func (m *mockMediaSaver) Save(ctx context.Context, messageID int64, data []byte, mimeType, name string) (*models.Attachment, error) {
	args := m.Called(ctx, messageID, data, mimeType, name)
	att, _ := args.Get(0).(*models.Attachment)
	return att, args.Error(1)
}

type mockAttachmentManager struct {
	mock.Mock
}

func (m *mockAttachmentManager) ListByMessage(ctx context.Context, messageID int64) ([]models.Attachment, error) {
	args := m.Called(ctx, messageID)
	atts, _ := args.Get(0).([]models.Attachment)
	return atts, args.Error(1)
}

func (m *mockAttachmentManager) DeleteAllForMessage(ctx context.Context, messageID int64) error {
	return m.Called(ctx, messageID).Error(0)
}

func (m *mockAttachmentManager) StoreUpload(name string, r io.Reader) (*attachments.Upload, error) {
	args := m.Called(name, r)
	up, _ := args.Get(0).(*attachments.Upload)
	return up, args.Error(1)
}

func (m *mockAttachmentManager) Resolve(path string) (string, error) {
	args := m.Called(path)
	return args.String(0), args.Error(1)
}

// Generation and dispatch
type mockGenerator struct {
	mock.Mock
}

func (m *mockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

type mockSender struct {
	mock.Mock
}

func (m *mockSender) SendText(ctx context.Context, conversationID, text string, origin Origin) (*DispatchResult, error) {
	args := m.Called(ctx, conversationID, text, origin)
	res, _ := args.Get(0).(*DispatchResult)
	return res, args.Error(1)
}

func (m *mockSender) SendMedia(ctx context.Context, conversationID, filePath, mimeType string, origin Origin) (*DispatchResult, error) {
	args := m.Called(ctx, conversationID, filePath, mimeType, origin)
	res, _ := args.Get(0).(*DispatchResult)
	return res, args.Error(1)
}

type mockReplier struct {
	mock.Mock
}

func (m *mockReplier) Reply(ctx context.Context, conversationID string, text *string) (*AutoReplyResult, error) {
	args := m.Called(ctx, conversationID, text)
	res, _ := args.Get(0).(*AutoReplyResult)
	return res, args.Error(1)
}

type mockGatekeeper struct {
	mock.Mock
}

func (m *mockGatekeeper) Evaluate(ctx context.Context, in gate.Input) gate.Verdict {
	return m.Called(ctx, in).Get(0).(gate.Verdict)
}

// Exclusions and session
type mockExclusions struct {
	mock.Mock
}

func (m *mockExclusions) Load(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	list, _ := args.Get(0).([]string)
	return list, args.Error(1)
}

func (m *mockExclusions) Add(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *mockExclusions) Remove(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

type mockSessionClient struct {
	mock.Mock
}

func (m *mockSessionClient) GetSessionStatus(ctx context.Context) (*types.Session, error) {
	args := m.Called(ctx)
	sess, _ := args.Get(0).(*types.Session)
	return sess, args.Error(1)
}

func (m *mockSessionClient) GetQRCode(ctx context.Context) ([]byte, string, error) {
	args := m.Called(ctx)
	data, _ := args.Get(0).([]byte)
	return data, args.String(1), args.Error(2)
}

func (m *mockSessionClient) GetGroups(ctx context.Context) ([]types.Group, error) {
	args := m.Called(ctx)
	groups, _ := args.Get(0).([]types.Group)
	return groups, args.Error(1)
}

// Listener collaborators
type mockDownloader struct {
	mock.Mock
}

func (m *mockDownloader) DownloadMedia(ctx context.Context, url string) ([]byte, string, error) {
	args := m.Called(ctx, url)
	data, _ := args.Get(0).([]byte)
	return data, args.String(1), args.Error(2)
}

type mockInboundHandler struct {
	mock.Mock
}

func (m *mockInboundHandler) Handle(ctx context.Context, ev models.InboundEvent) (*IntakeResult, error) {
	args := m.Called(ctx, ev)
	res, _ := args.Get(0).(*IntakeResult)
	return res, args.Error(1)
}

// staticMedia is an in-memory MediaSource.
type staticMedia struct {
	payload *models.MediaPayload
	err     error
}

func (s staticMedia) Download(context.Context) (*models.MediaPayload, error) {
	return s.payload, s.err
}
