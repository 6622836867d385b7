package llm

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCaptionClient(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			w.WriteHeader(http.StatusOK)
		case "/api/generate":
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]any{
				"model":    "llava",
				"response": "  a man kicking a ball  \n",
				"done":     true,
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	frame := filepath.Join(t.TempDir(), "frame_000000.png")
	require.NoError(t, os.WriteFile(frame, []byte("png-bytes"), 0644))

	client, err := NewCaptionClient(srv.URL, "llava", 16, discardLogger())
	require.NoError(t, err)
	require.NoError(t, client.Ping(t.Context()))

	caption, err := client.Caption(t.Context(), frame)
	require.NoError(t, err)
	assert.Equal(t, "a man kicking a ball", caption)

	assert.Equal(t, "llava", got["model"])
	assert.Equal(t, false, got["stream"])
	assert.Len(t, got["images"], 1)
	options := got["options"].(map[string]any)
	assert.EqualValues(t, 16, options["num_predict"])
}

func TestCaptionClientErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"model crashed"}`))
	}))
	defer srv.Close()

	client, err := NewCaptionClient(srv.URL, "llava", 16, discardLogger())
	require.NoError(t, err)

	t.Run("MissingFrame", func(t *testing.T) {
		_, err := client.Caption(t.Context(), filepath.Join(t.TempDir(), "nope.png"))
		assert.Error(t, err)
	})

	t.Run("ServerError", func(t *testing.T) {
		frame := filepath.Join(t.TempDir(), "frame.png")
		require.NoError(t, os.WriteFile(frame, []byte("x"), 0644))

		_, err := client.Caption(t.Context(), frame)
		assert.ErrorContains(t, err, "model crashed")
	})
}
