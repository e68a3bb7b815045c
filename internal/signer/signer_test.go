package signer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zulandar/aocrank/internal/tags"
)

func TestRemote_BuildAndSign(t *testing.T) {
	var got BuildRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/sign", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"tx-123","data":"hello","tags":[{"name":"Type","value":"Message"}],"raw":{"sig":"abc"}}`))
	}))
	defer srv.Close()

	s := NewRemote(srv.URL+"/", time.Second)
	tx, err := s.BuildAndSign(context.Background(), BuildRequest{
		ProcessID: "target",
		Tags:      []tags.Tag{{Name: "Type", Value: "Message"}},
		Anchor:    "00000001",
		Data:      "hello",
	})
	require.NoError(t, err)
	assert.Equal(t, "tx-123", tx.ID)
	assert.Equal(t, "target", tx.ProcessID, "process id defaults to the request target")
	assert.JSONEq(t, `{"sig":"abc"}`, string(tx.Raw))

	assert.Equal(t, "target", got.ProcessID)
	assert.Equal(t, "00000001", got.Anchor)
	assert.Equal(t, []tags.Tag{{Name: "Type", Value: "Message"}}, got.Tags)
}

func TestRemote_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "server error", status: http.StatusInternalServerError, body: `{"error":"down"}`},
		{name: "missing id", status: http.StatusOK, body: `{"data":"x"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewRemote(srv.URL, time.Second).BuildAndSign(context.Background(), BuildRequest{ProcessID: "p"})
			assert.Error(t, err)
		})
	}
}

func TestRemote_RequiresTarget(t *testing.T) {
	_, err := NewRemote("http://127.0.0.1:1", time.Second).BuildAndSign(context.Background(), BuildRequest{})
	assert.Error(t, err)
}
