package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"docintake/internal/config"
	"docintake/internal/model"
)

// httpProvider calls a REST analyze endpoint:
//
//	POST {endpoint}/v1/analyze?mode=layout|text
//
// with the document bytes as the request body. The response is validated
// against the analyze schema before decoding.
type httpProvider struct {
	endpoint string
	apiKey   string
	client   *http.Client
	log      *slog.Logger
}

// NewHTTPProvider builds a Provider over the configured REST endpoint.
func NewHTTPProvider(cfg config.ExtractorConfig, logger *slog.Logger) (Provider, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("extractor endpoint is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &httpProvider{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:   cfg.APIKey,
		client:   &http.Client{Timeout: timeout},
		log:      logger,
	}, nil
}

func (p *httpProvider) Analyze(ctx context.Context, r io.Reader, mode model.ProcessingType) (*Result, error) {
	start := time.Now()

	q := "text"
	if mode == model.ProcessingTypeLayout {
		q = "layout"
	}
	url := p.endpoint + "/v1/analyze?mode=" + q

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, r)
	if err != nil {
		return nil, fmt.Errorf("build analyze request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.log.Error("extract.analyze.http_error", "mode", q, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return nil, fmt.Errorf("analyze request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read analyze response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		p.log.Error("extract.analyze.status_error", "mode", q, "status", resp.StatusCode,
			"elapsed_ms", time.Since(start).Milliseconds())
		return nil, fmt.Errorf("analyze returned status %d", resp.StatusCode)
	}

	if err := ValidateResponse(raw); err != nil {
		p.log.Error("extract.analyze.invalid_response", "mode", q, "error", err,
			"raw_bytes", len(raw))
		return nil, fmt.Errorf("malformed analyze response: %w", err)
	}

	var res Result
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("decode analyze response: %w", err)
	}

	p.log.Debug("extract.analyze.ok", "mode", q, "fields", len(res.Fields),
		"elapsed_ms", time.Since(start).Milliseconds())
	return &res, nil
}
