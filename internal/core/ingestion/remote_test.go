package ingestion

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/docforge/docforge/internal/logger"
	"github.com/docforge/docforge/internal/models"
)

func TestRemoteRunnerRelaysJobWithToken(t *testing.T) {
	var gotToken string
	var gotJob models.UploadJob
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/internal/jobs" {
			t.Errorf("path = %q", r.URL.Path)
		}
		gotToken = r.Header.Get("X-Internal-Token")
		if err := json.NewDecoder(r.Body).Decode(&gotJob); err != nil {
			t.Errorf("decode relayed job: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	runner := NewRemoteRunner(srv.URL, "shared-secret", logger.NewNop())
	err := runner.Submit(context.Background(), models.UploadJob{FileID: 42, FilePath: "/uploads/t/42.txt"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if gotToken != "shared-secret" {
		t.Errorf("relayed token = %q", gotToken)
	}
	if gotJob.FileID != 42 {
		t.Errorf("relayed job id = %d", gotJob.FileID)
	}
}

func TestRemoteRunnerRejectsNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	runner := NewRemoteRunner(srv.URL, "wrong", logger.NewNop())
	if err := runner.Submit(context.Background(), models.UploadJob{FileID: 1}); err == nil {
		t.Fatal("expected an error for a rejected relay")
	}
}
