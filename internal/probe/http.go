package probe

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"time"

	"github.com/rcavanagh/sitesentry/internal/snapshot"
)

// checkHTTP issues a GET against url and records timing, status, body length
// and a content hash. Transport failures are recorded, never raised.
func (p *Prober) checkHTTP(ctx context.Context, url string) snapshot.CheckResult {
	if url == "" {
		return snapshot.CheckResult{Status: snapshot.StatusUnknown}
	}

	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return snapshot.CheckResult{
			Status: snapshot.StatusError,
			Error:  err.Error(),
		}
	}
	req.Header.Set("User-Agent", "sitesentry-probe/1.0")

	resp, err := p.client.Do(req)
	if err != nil {
		return snapshot.CheckResult{
			Status:     snapshot.StatusError,
			HTTPStatus: 0,
			ResponseMS: time.Since(start).Milliseconds(),
			Error:      err.Error(),
		}
	}
	defer resp.Body.Close()

	hasher := sha256.New()
	length, readErr := io.Copy(hasher, resp.Body)
	elapsed := time.Since(start).Milliseconds()

	result := snapshot.CheckResult{
		Status:        snapshot.StatusOK,
		HTTPStatus:    resp.StatusCode,
		ResponseMS:    elapsed,
		ContentLength: length,
		ContentHash:   hex.EncodeToString(hasher.Sum(nil)),
	}
	if readErr != nil {
		result.Status = snapshot.StatusError
		result.Error = readErr.Error()
		return result
	}
	if resp.StatusCode >= 500 {
		result.Status = snapshot.StatusCritical
	} else if resp.StatusCode >= 400 {
		result.Status = snapshot.StatusWarning
	}
	return result
}
