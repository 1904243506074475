package fanout

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"
)

// Callback delivery headers
const (
	HeaderEventSignature = "X-Event-Signature"
	HeaderEventType      = "X-Event-Type"
	HeaderEventTimestamp = "X-Event-Timestamp"
	HeaderEventID        = "X-Event-Id"
)

// Sign computes the hex HMAC-SHA256 of the body under the destination
// secret. Receivers recompute this over the raw request body to verify.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// post issues one delivery attempt and returns the response status code.
// Any non-2xx response is an error so the dispatcher schedules a retry.
func (s *Service) post(ctx context.Context, d *delivery) (int, error) {
	timeout := s.opts.Timeout
	if d.dest.TimeoutSeconds > 0 {
		timeout = time.Duration(d.dest.TimeoutSeconds) * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.dest.URL, bytes.NewReader(d.body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderEventSignature, "sha256="+Sign(d.body, d.dest.Secret))
	req.Header.Set(HeaderEventType, string(d.eventType))
	req.Header.Set(HeaderEventTimestamp, d.timestamp.UTC().Format(time.RFC3339))
	req.Header.Set(HeaderEventID, d.eventID)

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if !isSuccessStatus(resp.StatusCode) {
		return resp.StatusCode, fmt.Errorf("destination returned status %d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}

func isSuccessStatus(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}
