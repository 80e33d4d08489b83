package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTwilioSenderSend(t *testing.T) {
	var gotPath, gotTo, gotFrom, gotBody string
	var gotAuth bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _, gotAuth = r.BasicAuth()
		require.NoError(t, r.ParseForm())
		gotTo = r.PostFormValue("To")
		gotFrom = r.PostFormValue("From")
		gotBody = r.PostFormValue("Body")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"sid": "SM123"})
	}))
	defer srv.Close()

	s := NewTwilioSender("AC1", "token", "+15550000", testLogger)
	require.NotNil(t, s)
	s.baseURL = srv.URL

	sid, err := s.Send(context.Background(), "+15551234567", "hello")
	require.NoError(t, err)
	assert.Equal(t, "SM123", sid)
	assert.Equal(t, "/Accounts/AC1/Messages.json", gotPath)
	assert.True(t, gotAuth)
	assert.Equal(t, "+15551234567", gotTo)
	assert.Equal(t, "+15550000", gotFrom)
	assert.Equal(t, "hello", gotBody)
}

func TestTwilioSenderErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"invalid number"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	s := NewTwilioSender("AC1", "token", "+15550000", testLogger)
	s.baseURL = srv.URL

	_, err := s.Send(context.Background(), "bogus", "hello")
	assert.Error(t, err)
}

func TestTwilioSenderUnconfigured(t *testing.T) {
	assert.Nil(t, NewTwilioSender("", "token", "+15550000", testLogger))
	assert.Nil(t, NewTwilioSender("AC1", "", "+15550000", testLogger))
	assert.Nil(t, NewTwilioSender("AC1", "token", "", testLogger))

	var s *TwilioSender
	_, err := s.Send(context.Background(), "+15551234567", "hello")
	assert.Error(t, err)
}

func TestMessengerSenderSend(t *testing.T) {
	var gotToken string
	var gotPayload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.URL.Query().Get("access_token")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		json.NewEncoder(w).Encode(map[string]string{"message_id": "mid.1"})
	}))
	defer srv.Close()

	s := NewMessengerSender("page-token", testLogger)
	require.NotNil(t, s)
	s.baseURL = srv.URL

	id, err := s.Send(context.Background(), "recipient-1", "hello")
	require.NoError(t, err)
	assert.Equal(t, "mid.1", id)
	assert.Equal(t, "page-token", gotToken)

	recipient := gotPayload["recipient"].(map[string]any)
	message := gotPayload["message"].(map[string]any)
	assert.Equal(t, "recipient-1", recipient["id"])
	assert.Equal(t, "hello", message["text"])
}

func TestMessengerSenderErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"bad token"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	s := NewMessengerSender("page-token", testLogger)
	s.baseURL = srv.URL

	_, err := s.Send(context.Background(), "recipient-1", "hello")
	assert.Error(t, err)
}

func TestMessengerSenderUnconfigured(t *testing.T) {
	assert.Nil(t, NewMessengerSender("", testLogger))

	var s *MessengerSender
	_, err := s.Send(context.Background(), "recipient-1", "hello")
	assert.Error(t, err)
}
