package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"csbridge/pkg/constants"
	"csbridge/pkg/whatsapp/types"
)

// WhatsAppClient talks to a WAHA-compatible HTTP API for one session.
type WhatsAppClient struct {
	baseURL     string
	apiKey      string
	sessionName string
	client      *http.Client
}

var _ types.WAClient = (*WhatsAppClient)(nil)

func NewClient(config types.ClientConfig) *WhatsAppClient {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = constants.DefaultHTTPTimeoutSec * time.Second
	}
	return &WhatsAppClient{
		baseURL:     strings.TrimRight(config.BaseURL, "/"),
		apiKey:      config.APIKey,
		sessionName: config.SessionName,
		client:      &http.Client{Timeout: timeout},
	}
}

// SessionName is the WAHA session this client drives.
func (c *WhatsAppClient) SessionName() string { return c.sessionName }

// APIError is a non-2xx answer from WAHA.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("WAHA API error (status %d): %s", e.StatusCode, e.Message)
}

func (c *WhatsAppClient) SendText(ctx context.Context, chatID, text string) (*types.SendMessageResponse, error) {
	payload := types.SendMessageRequest{
		ChatID:  chatID,
		Text:    text,
		Session: c.sessionName,
	}
	return c.sendRequest(ctx, types.EndpointSendText, payload)
}

// SendMedia sends a base64 file. Images go through sendImage, everything else through sendFile.
func (c *WhatsAppClient) SendMedia(ctx context.Context, chatID string, file types.FileData, caption string) (*types.SendMessageResponse, error) {
	endpoint := types.EndpointSendFile
	if strings.HasPrefix(strings.ToLower(file.Mimetype), "image/") {
		endpoint = types.EndpointSendImage
	}
	payload := types.MediaMessageRequest{
		ChatID:  chatID,
		File:    file,
		Caption: caption,
		Session: c.sessionName,
	}
	return c.sendRequest(ctx, endpoint, payload)
}

func (c *WhatsAppClient) GetSessionStatus(ctx context.Context) (*types.Session, error) {
	endpoint := fmt.Sprintf("%s%s%s/%s", c.baseURL, types.APIBase, types.EndpointSessions, url.PathEscape(c.sessionName))
	resp, err := c.do(ctx, http.MethodGet, endpoint, nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var session types.Session
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, fmt.Errorf("failed to decode session response: %w", err)
	}
	if session.Name == "" {
		session.Name = c.sessionName
	}
	return &session, nil
}

// GetQRCode returns the pairing QR image and its content type.
func (c *WhatsAppClient) GetQRCode(ctx context.Context) ([]byte, string, error) {
	endpoint := fmt.Sprintf("%s%s/%s%s?format=image", c.baseURL, types.APIBase, url.PathEscape(c.sessionName), types.EndpointAuthQR)
	resp, err := c.do(ctx, http.MethodGet, endpoint, nil, "")
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read QR code: %w", err)
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return data, contentType, nil
}

func (c *WhatsAppClient) GetGroups(ctx context.Context) ([]types.Group, error) {
	endpoint := fmt.Sprintf("%s%s/%s%s", c.baseURL, types.APIBase, url.PathEscape(c.sessionName), types.EndpointGroups)
	resp, err := c.do(ctx, http.MethodGet, endpoint, nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var groups []types.Group
	if err := json.NewDecoder(resp.Body).Decode(&groups); err != nil {
		return nil, fmt.Errorf("failed to decode groups response: %w", err)
	}
	return groups, nil
}

// DownloadMedia fetches a media URL from an event. Relative URLs resolve against the API base.
func (c *WhatsAppClient) DownloadMedia(ctx context.Context, mediaURL string) ([]byte, string, error) {
	if mediaURL == "" {
		return nil, "", fmt.Errorf("media URL is empty")
	}
	if strings.HasPrefix(mediaURL, "/") {
		mediaURL = c.baseURL + mediaURL
	}
	if err := validateMediaURL(c.baseURL, mediaURL); err != nil {
		return nil, "", err
	}

	resp, err := c.do(ctx, http.MethodGet, mediaURL, nil, "")
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, constants.MaxMediaDownloadBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read media: %w", err)
	}
	if len(data) > constants.MaxMediaDownloadBytes {
		return nil, "", fmt.Errorf("media exceeds %d bytes", constants.MaxMediaDownloadBytes)
	}
	return data, resp.Header.Get("Content-Type"), nil
}

func (c *WhatsAppClient) sendRequest(ctx context.Context, endpoint string, payload interface{}) (*types.SendMessageResponse, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, c.baseURL+types.APIBase+endpoint, bytes.NewReader(jsonData), "application/json")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	result := &types.SendMessageResponse{}
	var waha types.WAHAMessageResponse
	if len(body) > 0 && json.Unmarshal(body, &waha) == nil && waha.ID != nil {
		result.MessageID = waha.ID.Serialized
		if result.MessageID == "" {
			result.MessageID = waha.ID.ID
		}
	}
	return result, nil
}

// do sends a request and turns non-2xx answers into *APIError.
func (c *WhatsAppClient) do(ctx context.Context, method, endpoint string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.apiKey != "" {
		req.Header.Set(types.HeaderAPIKey, c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, constants.MaxErrorBodyBytes))
		return nil, &APIError{StatusCode: resp.StatusCode, Message: errorMessage(raw)}
	}
	return resp, nil
}

func errorMessage(raw []byte) string {
	var errResp types.WAHAErrorResponse
	if json.Unmarshal(raw, &errResp) == nil {
		if errResp.Message != "" {
			return errResp.Message
		}
		if errResp.Error != "" {
			return errResp.Error
		}
	}
	return strings.TrimSpace(string(raw))
}
