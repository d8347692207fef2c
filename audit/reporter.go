package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPReporter posts reports to an audit service.
type HTTPReporter struct {
	baseURL string
	client  *http.Client
}

// NewHTTPReporter creates a reporter for the service at baseURL.
func NewHTTPReporter(baseURL string) *HTTPReporter {
	return &HTTPReporter{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// ReportInsecure posts a raw private value.
func (r *HTTPReporter) ReportInsecure(ctx context.Context, report *InsecureReport) error {
	return r.post(ctx, "/report-insecure", report)
}

// ReportSecure posts a masked value and the generated masks.
func (r *HTTPReporter) ReportSecure(ctx context.Context, report *SecureReport) error {
	return r.post(ctx, "/report-secure", report)
}

func (r *HTTPReporter) post(ctx context.Context, path string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s returned status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}
