package extract

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"docintake/internal/config"
	"docintake/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p, err := NewHTTPProvider(config.ExtractorConfig{
		Endpoint:   srv.URL,
		APIKey:     "secret",
		TimeoutSec: 5,
	}, nil)
	require.NoError(t, err)
	return p
}

func TestNewHTTPProvider_RequiresEndpoint(t *testing.T) {
	_, err := NewHTTPProvider(config.ExtractorConfig{}, nil)
	assert.Error(t, err)
}

func TestHTTPProvider_Analyze(t *testing.T) {
	t.Run("layout mode request shape", func(t *testing.T) {
		var gotPath, gotMode, gotAuth string
		var gotBody []byte

		p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotMode = r.URL.Query().Get("mode")
			gotAuth = r.Header.Get("Authorization")
			gotBody, _ = io.ReadAll(r.Body)
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"fields":[{"name":"vendor","value":"ACME","kind":"key_value","confidence":0.93}]}`))
		})

		res, err := p.Analyze(context.Background(), strings.NewReader("%PDF-1.4"), model.ProcessingTypeLayout)
		require.NoError(t, err)

		assert.Equal(t, "/v1/analyze", gotPath)
		assert.Equal(t, "layout", gotMode)
		assert.Equal(t, "Bearer secret", gotAuth)
		assert.Equal(t, "%PDF-1.4", string(gotBody))

		require.Len(t, res.Fields, 1)
		assert.Equal(t, "vendor", res.Fields[0].Name)
		require.NotNil(t, res.Fields[0].Confidence)
		assert.Equal(t, 0.93, *res.Fields[0].Confidence)
	})

	t.Run("text mode", func(t *testing.T) {
		var gotMode string
		p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
			gotMode = r.URL.Query().Get("mode")
			w.Write([]byte(`{"fields":[]}`))
		})

		res, err := p.Analyze(context.Background(), strings.NewReader("plain text"), model.ProcessingTypeText)
		require.NoError(t, err)
		assert.Equal(t, "text", gotMode)
		assert.Empty(t, res.Fields)
	})

	t.Run("non-200 status", func(t *testing.T) {
		p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})

		_, err := p.Analyze(context.Background(), strings.NewReader("x"), model.ProcessingTypeText)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "502")
	})

	t.Run("schema violation is a provider failure", func(t *testing.T) {
		p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"fields":[{"name":"f","kind":"line","confidence":2.0}]}`))
		})

		_, err := p.Analyze(context.Background(), strings.NewReader("x"), model.ProcessingTypeText)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "malformed analyze response")
	})

	t.Run("cancelled context", func(t *testing.T) {
		p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"fields":[]}`))
		})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := p.Analyze(ctx, strings.NewReader("x"), model.ProcessingTypeText)
		assert.Error(t, err)
	})
}
