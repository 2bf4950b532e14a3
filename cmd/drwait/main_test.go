package main

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/reverbdotcom/datarobot-2.25.1-sub000/internal/testutil"
	"github.com/reverbdotcom/datarobot-2.25.1-sub000/pkg/config"
)

// setPlatformEnv points the process configuration at the mock platform.
func setPlatformEnv(t *testing.T, mock *testutil.MockPlatform) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv(config.EnvConfigFile, "")
	t.Setenv(config.EnvEndpoint, mock.Endpoint())
	t.Setenv(config.EnvAPIToken, "test-token")
}

func TestWaitTarget(t *testing.T) {
	tests := []struct {
		name      string
		statusURL string
		project   string
		job       string
		jobType   string
		want      string
		wantErr   bool
	}{
		{
			name:      "explicit status url wins",
			statusURL: "https://app.example.com/api/v2/status/abc/",
			project:   "p-1",
			job:       "42",
			jobType:   "job",
			want:      "https://app.example.com/api/v2/status/abc/",
		},
		{
			name:    "generic job coordinates",
			project: "p-1",
			job:     "7",
			jobType: "job",
			want:    "projects/p-1/jobs/7/",
		},
		{
			name:    "model job coordinates",
			project: "p-1",
			job:     "42",
			jobType: "model",
			want:    "projects/p-1/modelJobs/42/",
		},
		{
			name:    "predict job coordinates",
			project: "p-1",
			job:     "55",
			jobType: "predict",
			want:    "projects/p-1/predictJobs/55/",
		},
		{
			name:    "missing job id",
			project: "p-1",
			jobType: "job",
			wantErr: true,
		},
		{
			name:    "missing everything",
			jobType: "job",
			wantErr: true,
		},
		{
			name:    "unknown type",
			project: "p-1",
			job:     "42",
			jobType: "autopilot",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := waitTarget(tt.statusURL, tt.project, tt.job, tt.jobType)
			if tt.wantErr {
				if err == nil {
					t.Fatal("waitTarget() should fail")
				}
				return
			}
			if err != nil {
				t.Fatalf("waitTarget() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("waitTarget() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRun_ResolvesViaRedirect(t *testing.T) {
	mock := testutil.NewMockPlatform()
	defer mock.Close()
	mock.SetAsyncFlow("status/abc/", 1, "projects/p-1/")
	setPlatformEnv(t, mock)

	code := run([]string{"-status-url", mock.AbsoluteURL("status/abc/"), "-max-wait", "10s"})
	if code != exitResolved {
		t.Errorf("run() = %d, want %d", code, exitResolved)
	}
	if got := mock.Requests("status/abc/"); got != 2 {
		t.Errorf("status polls = %d, want 2", got)
	}
}

func TestRun_ModelJobCoordinates(t *testing.T) {
	mock := testutil.NewMockPlatform()
	defer mock.Close()
	mock.SetAsyncFlow("projects/p-1/modelJobs/42/", 0, "projects/p-1/models/m-9/")
	setPlatformEnv(t, mock)

	code := run([]string{"-project", "p-1", "-job", "42", "-type", "model"})
	if code != exitResolved {
		t.Errorf("run() = %d, want %d", code, exitResolved)
	}
}

func TestRun_FailedOperation(t *testing.T) {
	mock := testutil.NewMockPlatform()
	defer mock.Close()
	mock.SetFailingFlow("status/abc/", 0, "ERROR", "target column not found")
	setPlatformEnv(t, mock)

	code := run([]string{"-status-url", mock.AbsoluteURL("status/abc/")})
	if code != exitFailed {
		t.Errorf("run() = %d, want %d", code, exitFailed)
	}
}

func TestRun_Timeout(t *testing.T) {
	mock := testutil.NewMockPlatform()
	defer mock.Close()
	mock.SetJSON("status/abc/", http.StatusOK, `{"status": "RUNNING"}`)
	setPlatformEnv(t, mock)

	code := run([]string{"-status-url", mock.AbsoluteURL("status/abc/"), "-max-wait", "200ms"})
	if code != exitTimedOut {
		t.Errorf("run() = %d, want %d", code, exitTimedOut)
	}
}

func TestRun_InvalidArgs(t *testing.T) {
	if code := run([]string{}); code != exitFailed {
		t.Errorf("run() without a target = %d, want %d", code, exitFailed)
	}
	if code := run([]string{"-project", "p-1"}); code != exitFailed {
		t.Errorf("run() without -job = %d, want %d", code, exitFailed)
	}
}

func TestRun_Unconfigured(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv(config.EnvConfigFile, "")
	t.Setenv(config.EnvEndpoint, "")
	t.Setenv(config.EnvAPIToken, "")

	code := run([]string{"-status-url", "https://app.example.com/api/v2/status/abc/"})
	if code != exitFailed {
		t.Errorf("run() without configuration = %d, want %d", code, exitFailed)
	}
}

func TestHealthHandler(t *testing.T) {
	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	healthHandler(w, req)

	resp := w.Result()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if string(body) != "OK" {
		t.Errorf("body = %q, want OK", string(body))
	}
}

func TestMetricsHandler(t *testing.T) {
	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()

	promhttp.Handler().ServeHTTP(w, req)

	resp := w.Result()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if !strings.Contains(string(body), "# HELP") || !strings.Contains(string(body), "# TYPE") {
		t.Error("expected Prometheus exposition format")
	}
}
