package callmebot

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Dan9191/pledge-service/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(url string) *Client {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return NewClient(&config.Config{CallMeBotURL: url}, log)
}

func TestSendPassesQueryParameters(t *testing.T) {
	var gotPhone, gotKey, gotText string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPhone = r.URL.Query().Get("phone")
		gotKey = r.URL.Query().Get("apikey")
		gotText = r.URL.Query().Get("text")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	err := c.Send(context.Background(), "+243970000001", "APIKEY0001", "hello & welcome")
	require.NoError(t, err)

	assert.Equal(t, "+243970000001", gotPhone)
	assert.Equal(t, "APIKEY0001", gotKey)
	assert.Equal(t, "hello & welcome", gotText)
}

func TestSendRejectsNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	err := c.Send(context.Background(), "+243970000001", "APIKEY0001", "hello")
	assert.Error(t, err)
}

func TestSendRequiresAPIKey(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	err := c.Send(context.Background(), "+243970000001", "", "hello")
	assert.Error(t, err)
	assert.False(t, called)
}
