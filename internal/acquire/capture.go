package acquire

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

const opCapture = "TakePhoto"

// DefaultCaptureTimeout bounds a capture request when none is configured.
const DefaultCaptureTimeout = 10 * time.Second

// maxSnapshotBytes caps the size of a downloaded snapshot.
const maxSnapshotBytes = 64 << 20

// CaptureSource takes a photo by fetching a still from a camera's snapshot
// URL, e.g. http://camera.local/snapshot.jpg.
type CaptureSource struct {
	URL     string
	Timeout time.Duration

	// Client defaults to http.DefaultClient.
	Client *http.Client
}

// Acquire fetches one snapshot. 401 and 403 responses are permission
// failures; 204 or an empty body yields ErrNoImage.
func (s *CaptureSource) Acquire(ctx context.Context) ([]byte, error) {
	if s.URL == "" {
		return nil, unsupported(opCapture, errors.New("no capture URL configured"))
	}

	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultCaptureTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, unsupported(opCapture, err)
	}
	req.Header.Set("Accept", "image/jpeg, image/png, image/*")

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, failed(opCapture, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return nil, permissionDenied(opCapture, errors.Errorf("camera returned %s", resp.Status))
	case resp.StatusCode == http.StatusNoContent:
		return nil, ErrNoImage
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, failed(opCapture, errors.Errorf("camera returned %s", resp.Status))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSnapshotBytes+1))
	if err != nil {
		return nil, failed(opCapture, err)
	}
	if len(data) > maxSnapshotBytes {
		return nil, failed(opCapture, errors.Errorf("snapshot larger than %d bytes", maxSnapshotBytes))
	}
	if len(data) == 0 {
		return nil, ErrNoImage
	}
	return data, nil
}
