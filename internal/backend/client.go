// Package backend is the HTTP client for the health-twin analysis service.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/nfarrow/vitalink/internal/record"
)

const defaultTimeout = 30 * time.Second

// Client talks to the analysis backend. The scan endpoint carries no
// client-level timeout; the caller bounds it with a context deadline.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		HTTPClient: &http.Client{Timeout: defaultTimeout},
	}
}

// ChatContext is the health context attached to every chat message.
type ChatContext struct {
	record.HealthRecord
	Timezone  string `json:"timezone"`
	LocalTime string `json:"currentDateTime"`
	ISOTime   string `json:"currentDateISO"`
}

type chatRequest struct {
	Message string      `json:"message"`
	Context ChatContext `json:"context"`
}

type chatResponse struct {
	Response string `json:"response"`
}

// Chat sends one user message with its health context and returns the reply.
func (c *Client) Chat(ctx context.Context, message string, chatCtx ChatContext) (string, error) {
	payload, err := json.Marshal(chatRequest{Message: message, Context: chatCtx})
	if err != nil {
		return "", fmt.Errorf("encode chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/chat", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()

	var reply chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if reply.Response == "" {
		return "", fmt.Errorf("chat response missing reply (status %d)", resp.StatusCode)
	}
	return reply.Response, nil
}

// analyzeResponse is the scan payload plus the structured error variant.
type analyzeResponse struct {
	record.Analysis
	Err string `json:"error"`
}

// Analyze uploads a document for analysis. The context carries the hard
// deadline; on expiry the in-flight request is cancelled and
// ErrAnalysisTimeout is returned. A structured rate-limit error maps to
// ErrRateLimited, any other structured error to *AnalysisError.
func (c *Client) Analyze(ctx context.Context, fileName string, mimeType string, data []byte) (record.Analysis, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, fileName))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	header.Set("Content-Type", mimeType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return record.Analysis{}, fmt.Errorf("build scan request body: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return record.Analysis{}, fmt.Errorf("write scan payload: %w", err)
	}
	if err := writer.Close(); err != nil {
		return record.Analysis{}, fmt.Errorf("finalize scan payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/scan", &body)
	if err != nil {
		return record.Analysis{}, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.scanClient().Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return record.Analysis{}, ErrAnalysisTimeout
		}
		return record.Analysis{}, fmt.Errorf("scan request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return record.Analysis{}, ErrAnalysisTimeout
		}
		return record.Analysis{}, fmt.Errorf("read scan response: %w", err)
	}

	var decoded analyzeResponse
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&decoded); err != nil {
		return record.Analysis{}, fmt.Errorf("decode scan response (status %d): %w", resp.StatusCode, err)
	}

	if decoded.Err != "" {
		if strings.Contains(decoded.Err, "429") {
			return record.Analysis{}, ErrRateLimited
		}
		return record.Analysis{}, &AnalysisError{Message: decoded.Err}
	}
	return decoded.Analysis, nil
}

// scanClient strips the transport-level timeout so the caller context alone
// bounds long-running scans.
func (c *Client) scanClient() *http.Client {
	client := *c.HTTPClient
	client.Timeout = 0
	return &client
}

type authStatusResponse struct {
	Connected bool `json:"connected"`
}

// AuthStatus reports whether the calendar integration is connected.
func (c *Client) AuthStatus(ctx context.Context) (bool, error) {
	var status authStatusResponse
	if err := c.getJSON(ctx, "/auth/status", &status); err != nil {
		return false, err
	}
	return status.Connected, nil
}

type authURLResponse struct {
	URL     string `json:"url"`
	Err     string `json:"error"`
	Message string `json:"message"`
}

// AuthURL returns the OAuth consent URL for connecting a calendar.
func (c *Client) AuthURL(ctx context.Context) (string, error) {
	var reply authURLResponse
	if err := c.getJSON(ctx, "/auth/google", &reply); err != nil {
		return "", err
	}
	if reply.Err != "" {
		return "", fmt.Errorf("auth url: %s: %s", reply.Err, reply.Message)
	}
	return reply.URL, nil
}

// Appointment describes a calendar appointment to create.
type Appointment struct {
	Summary      string `json:"summary"`
	Description  string `json:"description"`
	StartTime    string `json:"start_time"`
	DurationMins int    `json:"duration_mins"`
	Timezone     string `json:"timezone"`
	UserID       string `json:"user_id"`
}

// TimeBlock describes a calendar block-out request.
type TimeBlock struct {
	Reason       string `json:"reason"`
	DurationMins int    `json:"duration_mins"`
	Timezone     string `json:"timezone"`
	UserID       string `json:"user_id"`
}

// CalendarResult is the outcome of a calendar mutation.
type CalendarResult struct {
	Status  string `json:"status"`
	Link    string `json:"link"`
	Message string `json:"message"`
}

// CreateAppointment schedules an appointment on the connected calendar.
func (c *Client) CreateAppointment(ctx context.Context, appt Appointment) (CalendarResult, error) {
	return c.postCalendar(ctx, "/calendar/create-appointment", appt)
}

// BlockTime reserves recovery time on the connected calendar.
func (c *Client) BlockTime(ctx context.Context, block TimeBlock) (CalendarResult, error) {
	return c.postCalendar(ctx, "/calendar/block-time", block)
}

func (c *Client) postCalendar(ctx context.Context, path string, payload any) (CalendarResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return CalendarResult{}, fmt.Errorf("encode calendar request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return CalendarResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return CalendarResult{}, fmt.Errorf("calendar request: %w", err)
	}
	defer resp.Body.Close()

	var result CalendarResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return CalendarResult{}, fmt.Errorf("decode calendar response: %w", err)
	}
	if result.Status == "error" {
		return result, fmt.Errorf("calendar action failed: %s", result.Message)
	}
	return result, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return err
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("get %s: %w", path, err)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
