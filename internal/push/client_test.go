package push

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendPush(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"push-1","recipients":1}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "app-1", "key-1", nil)
	raw, err := client.SendPush(context.Background(), "player-9", Payload{
		Title:   "Upcoming visit",
		Message: "See you at 10:00",
		Path:    "/appointments",
	})
	require.NoError(t, err)
	assert.Contains(t, raw, "push-1")
	assert.Equal(t, "app-1", gotBody["app_id"])
	assert.Equal(t, []any{"player-9"}, gotBody["include_player_ids"])
}

func TestSendPushGatewayFailureReturnsRawBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"errors":["invalid player id"]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "app-1", "key-1", nil)
	raw, err := client.SendPush(context.Background(), "bogus", Payload{Title: "x", Message: "y"})
	require.Error(t, err)
	assert.Contains(t, raw, "invalid player id")
}
