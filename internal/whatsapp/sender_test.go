package whatsapp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraphSenderSend(t *testing.T) {
	var captured sendRequest
	var path, auth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"messages":[{"id":"wamid.OUT1"}]}`))
	}))
	defer srv.Close()

	s := NewGraphSender(SenderOptions{
		AccessToken:   "token-1",
		PhoneNumberID: "PN1",
		BaseURL:       srv.URL,
	}, zerolog.Nop())

	require.NoError(t, s.Send(context.Background(), "15550002222", "hello back"))

	assert.Equal(t, "/PN1/messages", path)
	assert.Equal(t, "Bearer token-1", auth)
	assert.Equal(t, "whatsapp", captured.MessagingProduct)
	assert.Equal(t, "individual", captured.RecipientType)
	assert.Equal(t, "15550002222", captured.To)
	assert.Equal(t, "text", captured.Type)
	assert.Equal(t, "hello back", captured.Text.Body)
}

func TestGraphSenderRejectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"bad token"}}`))
	}))
	defer srv.Close()

	s := NewGraphSender(SenderOptions{BaseURL: srv.URL, PhoneNumberID: "PN1"}, zerolog.Nop())

	err := s.Send(context.Background(), "U1", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestGraphSenderConnectionFailure(t *testing.T) {
	s := NewGraphSender(SenderOptions{BaseURL: "http://127.0.0.1:1", PhoneNumberID: "PN1"}, zerolog.Nop())

	assert.Error(t, s.Send(context.Background(), "U1", "hi"))
}
