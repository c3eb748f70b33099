package ingestion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/docforge/docforge/internal/logger"
	"github.com/docforge/docforge/internal/models"
)

// Runner accepts upload jobs for processing. The in-process Pipeline and the
// RemoteRunner both implement it, so the intake handler is oblivious to
// where the work actually runs.
type Runner interface {
	Submit(ctx context.Context, job models.UploadJob) error
}

var _ Runner = (*Pipeline)(nil)
var _ Runner = (*RemoteRunner)(nil)

// RemoteRunner relays jobs to a dedicated upload-processing server over HTTP.
// It does no processing of its own; the remote end runs the same pipeline.
type RemoteRunner struct {
	url    string
	token  string
	client *http.Client
	log    *logger.Logger
}

// NewRemoteRunner targets the upload server at url. The token authenticates
// this node to the remote intake endpoint.
func NewRemoteRunner(url, token string, log *logger.Logger) *RemoteRunner {
	return &RemoteRunner{
		url:    url,
		token:  token,
		client: &http.Client{Timeout: 30 * time.Second},
		log:    log,
	}
}

func (r *RemoteRunner) Submit(ctx context.Context, job models.UploadJob) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url+"/api/internal/jobs", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Internal-Token", r.token)

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("relay job %d: %w", job.FileID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("relay job %d: upload server returned %s", job.FileID, resp.Status)
	}
	r.log.Info("job relayed", "job_id", job.FileID, "target", r.url)
	return nil
}
