package task

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/LotharSee/mortar-luigi/internal/mortar"
)

// getJobResult scripts one GetJob outcome.
type getJobResult struct {
	job mortar.Job
	err error
}

// fakeBackend is a scripted Backend for controller and poller tests.
type fakeBackend struct {
	mu sync.Mutex

	nextJobID string
	submitErr error
	listErr   error
	stopErr   error
	clusters  []mortar.Cluster

	// GetJob returns results in order; the last one repeats once the
	// script is exhausted.
	jobResults []getJobResult

	newSubmits      []mortar.NewClusterJobRequest
	existingSubmits []mortar.ExistingClusterJobRequest
	getJobCalls     []string
	listCalls       int
	stopped         []string
}

func (f *fakeBackend) SubmitNewCluster(_ context.Context, req mortar.NewClusterJobRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return "", f.submitErr
	}
	f.newSubmits = append(f.newSubmits, req)
	return f.nextJobID, nil
}

func (f *fakeBackend) SubmitExistingCluster(_ context.Context, req mortar.ExistingClusterJobRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return "", f.submitErr
	}
	f.existingSubmits = append(f.existingSubmits, req)
	return f.nextJobID, nil
}

func (f *fakeBackend) GetJob(_ context.Context, jobID string) (mortar.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getJobCalls = append(f.getJobCalls, jobID)
	idx := len(f.getJobCalls) - 1
	if idx >= len(f.jobResults) {
		idx = len(f.jobResults) - 1
	}
	result := f.jobResults[idx]
	return result.job, result.err
}

func (f *fakeBackend) ListClusters(_ context.Context) ([]mortar.Cluster, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.clusters, nil
}

func (f *fakeBackend) StopCluster(_ context.Context, clusterID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stopErr != nil {
		return f.stopErr
	}
	f.stopped = append(f.stopped, clusterID)
	return nil
}

func (f *fakeBackend) submissions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.newSubmits) + len(f.existingSubmits)
}

// Verify fakeBackend implements Backend
var _ mortar.Backend = (*fakeBackend)(nil)

// logCapture is a slog.Handler recording message texts, for asserting
// log de-duplication.
type logCapture struct {
	mu       sync.Mutex
	messages []string
}

func (c *logCapture) Enabled(context.Context, slog.Level) bool { return true }

func (c *logCapture) Handle(_ context.Context, r slog.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, r.Message)
	return nil
}

func (c *logCapture) WithAttrs([]slog.Attr) slog.Handler { return c }
func (c *logCapture) WithGroup(string) slog.Handler      { return c }

func (c *logCapture) count(message string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, m := range c.messages {
		if m == message {
			n++
		}
	}
	return n
}

// captureLogs installs a capturing default logger for the test.
// Tests using it must not run in parallel.
func captureLogs(t *testing.T) *logCapture {
	t.Helper()
	capture := &logCapture{}
	prev := slog.Default()
	slog.SetDefault(slog.New(capture))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return capture
}
