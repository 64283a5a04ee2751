package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DevArk-AI/devark/internal/upload"
	"github.com/DevArk-AI/devark/pkg/models"
)

type staticToken string

func (s staticToken) GetToken() (string, error) { return string(s), nil }

func TestUploadBatchSendsBearerAndBody(t *testing.T) {
	var got upload.BatchPayload
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/cli/sessions", r.URL.Path)
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(models.UploadResult{Success: true, Created: 2})
	}))
	defer server.Close()

	client := NewClient(server.URL, staticToken("secret-token"))
	result, err := client.UploadBatch(context.Background(), upload.BatchPayload{
		Sessions:      json.RawMessage(`[{"id":"s1"}]`),
		Checksum:      "abc",
		TotalSessions: 1,
		BatchNumber:   1,
		TotalBatches:  1,
	})

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 2, result.Created)
	assert.Equal(t, "Bearer secret-token", auth)
	assert.Equal(t, "abc", got.Checksum)
	assert.JSONEq(t, `[{"id":"s1"}]`, string(got.Sessions))
}

func TestUploadBatchErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := NewClient(server.URL, nil).UploadBatch(context.Background(), upload.BatchPayload{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestCreateAuthSessionAppendsSource(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/auth/cli/session", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]string{
			"authUrl": "https://devark.ai/login?code=xyz",
			"token":   "poll-123",
		})
	}))
	defer server.Close()

	session, err := NewClient(server.URL, nil).CreateAuthSession(context.Background())
	require.NoError(t, err)
	assert.Contains(t, session.AuthURL, "source=ide_extension")
	assert.Contains(t, session.AuthURL, "code=xyz")
	assert.Equal(t, "poll-123", session.PollToken())
}

func TestPollTokenFallsBackToSessionID(t *testing.T) {
	assert.Equal(t, "sid", AuthSession{SessionID: "sid"}.PollToken())
	assert.Equal(t, "tok", AuthSession{Token: "tok", SessionID: "sid"}.PollToken())
}

func TestCompleteAuthPendingOn404(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "poll-123", r.URL.Query().Get("token"))
		http.NotFound(w, r)
	}))
	defer server.Close()

	completion, err := NewClient(server.URL, nil).CompleteAuth(context.Background(), "poll-123")
	require.NoError(t, err)
	assert.False(t, completion.Success)
}

func TestCompleteAuthSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"success": true, "userId": "u1", "token": "jwt"})
	}))
	defer server.Close()

	completion, err := NewClient(server.URL, nil).CompleteAuth(context.Background(), "poll-123")
	require.NoError(t, err)
	assert.True(t, completion.Success)
	assert.Equal(t, "u1", completion.UserID)
	assert.Equal(t, "jwt", completion.Token)
}

func TestVerifyAuthUserImpliesValid(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"user": map[string]any{"id": "u1"}})
	}))
	defer server.Close()

	verification, err := NewClient(server.URL, nil).VerifyAuth(context.Background())
	require.NoError(t, err)
	assert.True(t, verification.IsValid())

	assert.False(t, AuthVerification{}.IsValid())
	assert.True(t, AuthVerification{Valid: true}.IsValid())
}
