package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Sender delivers one message over one channel. Implementations never
// panic: every failure comes back as an error, and callers treat delivery
// as best-effort either way. Nil senders are no-ops reporting failure.
type Sender interface {
	// Send returns a provider delivery id on success.
	Send(ctx context.Context, recipient, text string) (string, error)
}

const senderTimeout = 15 * time.Second

// --------------------------------------------------------------------------
// Twilio SMS
// --------------------------------------------------------------------------

const twilioBaseURL = "https://api.twilio.com/2010-04-01"

// TwilioSender sends SMS through the Twilio REST API. Nil when not
// configured.
type TwilioSender struct {
	accountSID string
	authToken  string
	fromNumber string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewTwilioSender returns nil if any credential is missing (SMS disabled).
func NewTwilioSender(accountSID, authToken, fromNumber string, logger *slog.Logger) *TwilioSender {
	if accountSID == "" || authToken == "" || fromNumber == "" {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TwilioSender{
		accountSID: accountSID,
		authToken:  authToken,
		fromNumber: fromNumber,
		baseURL:    twilioBaseURL,
		httpClient: &http.Client{Timeout: senderTimeout},
		logger:     logger,
	}
}

func (s *TwilioSender) Send(ctx context.Context, recipient, text string) (string, error) {
	if s == nil {
		return "", fmt.Errorf("sms sender not configured")
	}

	form := url.Values{}
	form.Set("To", recipient)
	form.Set("From", s.fromNumber)
	form.Set("Body", text)

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", s.baseURL, s.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build sms request: %w", err)
	}
	req.SetBasicAuth(s.accountSID, s.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("sms request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read sms response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("twilio returned %d: %s", resp.StatusCode, truncate(body, 200))
	}

	var parsed struct {
		SID string `json:"sid"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decode sms response: %w", err)
	}
	return parsed.SID, nil
}

// --------------------------------------------------------------------------
// Facebook Messenger
// --------------------------------------------------------------------------

const messengerBaseURL = "https://graph.facebook.com/v17.0"

// MessengerSender sends messages through the Messenger Send API. Nil when
// not configured.
type MessengerSender struct {
	pageToken  string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewMessengerSender returns nil if the page token is missing.
func NewMessengerSender(pageToken string, logger *slog.Logger) *MessengerSender {
	if pageToken == "" {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MessengerSender{
		pageToken:  pageToken,
		baseURL:    messengerBaseURL,
		httpClient: &http.Client{Timeout: senderTimeout},
		logger:     logger,
	}
}

func (s *MessengerSender) Send(ctx context.Context, recipient, text string) (string, error) {
	if s == nil {
		return "", fmt.Errorf("messenger sender not configured")
	}

	payload := map[string]any{
		"recipient": map[string]string{"id": recipient},
		"message":   map[string]string{"text": text},
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode messenger payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/me/messages?access_token=%s", s.baseURL, url.QueryEscape(s.pageToken))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(string(encoded)))
	if err != nil {
		return "", fmt.Errorf("build messenger request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("messenger request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read messenger response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("messenger returned %d: %s", resp.StatusCode, truncate(body, 200))
	}

	var parsed struct {
		MessageID string `json:"message_id"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decode messenger response: %w", err)
	}
	return parsed.MessageID, nil
}

// truncate returns a truncated string representation for error messages.
func truncate(b []byte, maxLen int) string {
	if len(b) <= maxLen {
		return string(b)
	}
	return string(b[:maxLen]) + "..."
}
