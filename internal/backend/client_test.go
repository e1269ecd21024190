package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestChatSendsMessageWithContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/chat", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "how is my hydration", body["message"])

		chatCtx, ok := body["context"].(map[string]any)
		require.True(t, ok)
		require.Equal(t, "America/New_York", chatCtx["timezone"])

		_ = json.NewEncoder(w).Encode(map[string]string{"response": "Hydration looks good."})
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	reply, err := client.Chat(context.Background(), "how is my hydration", ChatContext{Timezone: "America/New_York"})
	require.NoError(t, err)
	require.Equal(t, "Hydration looks good.", reply)
}

func TestChatMissingReplyIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Chat(context.Background(), "hello there", ChatContext{})
	require.Error(t, err)
}

func TestAnalyzeSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/scan", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1 << 20))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		require.Equal(t, "labs.pdf", header.Filename)
		require.Equal(t, "application/pdf", header.Header.Get("Content-Type"))

		data, err := io.ReadAll(file)
		require.NoError(t, err)
		require.Equal(t, []byte("pdf-bytes"), data)

		_, _ = w.Write([]byte(`{
			"overall_status": "Healthy",
			"health_score": 88,
			"hydration_level": "High",
			"summary": "Strong panel.",
			"velocity": "Stable",
			"primary_risk": "None",
			"correlations": []
		}`))
	}))
	defer srv.Close()

	analysis, err := NewClient(srv.URL).Analyze(context.Background(), "labs.pdf", "application/pdf", []byte("pdf-bytes"))
	require.NoError(t, err)
	require.Equal(t, "Healthy", analysis.OverallStatus)
	require.Equal(t, "88", analysis.HealthScore.String())
}

func TestAnalyzeRateLimitError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"error": "quota exceeded: 429 RESOURCE_EXHAUSTED"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Analyze(context.Background(), "labs.pdf", "application/pdf", []byte("x"))
	require.ErrorIs(t, err, ErrRateLimited)
}

func TestAnalyzeStructuredError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"error": "unreadable document"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Analyze(context.Background(), "labs.pdf", "application/pdf", []byte("x"))
	var analysisErr *AnalysisError
	require.ErrorAs(t, err, &analysisErr)
	require.Equal(t, "unreadable document", analysisErr.Message)
}

func TestAnalyzeDeadlineMapsToTimeout(t *testing.T) {
	var cancelled atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
			cancelled.Store(true)
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := NewClient(srv.URL).Analyze(ctx, "labs.pdf", "application/pdf", []byte("x"))
	require.ErrorIs(t, err, ErrAnalysisTimeout)

	require.Eventually(t, func() bool { return cancelled.Load() }, 2*time.Second, 5*time.Millisecond,
		"server should observe the cancelled request")
}

func TestAuthStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/status", r.URL.Path)
		_, _ = w.Write([]byte(`{"connected": true}`))
	}))
	defer srv.Close()

	connected, err := NewClient(srv.URL).AuthStatus(context.Background())
	require.NoError(t, err)
	require.True(t, connected)
}

func TestAuthURLError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"error": "missing secret", "message": "client_secret.json not found"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).AuthURL(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "client_secret.json")
}

func TestCreateAppointment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/calendar/create-appointment", r.URL.Path)

		var appt Appointment
		require.NoError(t, json.NewDecoder(r.Body).Decode(&appt))
		require.Equal(t, "Annual checkup", appt.Summary)
		require.Equal(t, 30, appt.DurationMins)

		_ = json.NewEncoder(w).Encode(CalendarResult{Status: "confirmed", Link: "https://calendar/evt"})
	}))
	defer srv.Close()

	result, err := NewClient(srv.URL).CreateAppointment(context.Background(), Appointment{
		Summary:      "Annual checkup",
		DurationMins: 30,
		Timezone:     "UTC",
		UserID:       "user-1",
	})
	require.NoError(t, err)
	require.Equal(t, "confirmed", result.Status)
	require.Equal(t, "https://calendar/evt", result.Link)
}

func TestBlockTimeErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(CalendarResult{Status: "error", Message: "calendar not connected"})
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).BlockTime(context.Background(), TimeBlock{Reason: "recovery", DurationMins: 60})
	require.Error(t, err)
	require.Contains(t, err.Error(), "calendar not connected")
}

func TestChatNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // refuse connections

	_, err := NewClient(srv.URL).Chat(context.Background(), "hello there", ChatContext{})
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrRateLimited))
}
