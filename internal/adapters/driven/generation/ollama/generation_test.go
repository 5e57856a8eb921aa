package ollama

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/railsup-labs/railsup-cli/internal/core/domain"
	"github.com/railsup-labs/railsup-cli/internal/core/ports/driven"
)

func TestGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/generate", r.URL.Path)

		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Stream)
		require.NotNil(t, req.Options)
		assert.Equal(t, 256, req.Options.NumPredict)

		json.NewEncoder(w).Encode(generateResponse{Response: "use strong parameters", Done: true})
	}))
	defer srv.Close()

	svc := NewGenerationService(Config{BaseURL: srv.URL})
	out, err := svc.Generate(context.Background(), "fix this", driven.GenerateOptions{MaxTokens: 256})
	require.NoError(t, err)
	assert.Equal(t, "use strong parameters", out)
}

func TestGenerate_ServerErrorClassified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	svc := NewGenerationService(Config{BaseURL: srv.URL})
	_, err := svc.Generate(context.Background(), "fix this", driven.GenerateOptions{})
	assert.ErrorIs(t, err, domain.ErrGenerationFailed)
}

func TestGenerate_TimeoutClassified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server starts its background read and can
		// observe the client disconnect; otherwise r.Context() is never
		// canceled and the deferred srv.Close() deadlocks.
		io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer srv.Close()

	svc := NewGenerationService(Config{BaseURL: srv.URL})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := svc.Generate(ctx, "fix this", driven.GenerateOptions{})
	assert.ErrorIs(t, err, domain.ErrGenerationTimeout)
}

func TestPing_Unreachable(t *testing.T) {
	svc := NewGenerationService(Config{BaseURL: "http://127.0.0.1:1", Timeout: 100 * time.Millisecond})
	assert.Error(t, svc.Ping(context.Background()))
}
