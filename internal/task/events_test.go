package task

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/LotharSee/mortar-luigi/internal/dispatcher"
	"github.com/LotharSee/mortar-luigi/internal/mortar"
	"github.com/LotharSee/mortar-luigi/pkg/cloudevent"
)

// fakeDispatcher records dispatched events for lifecycle assertions.
type fakeDispatcher struct {
	mu     sync.Mutex
	events []*dispatcher.Event
}

func (f *fakeDispatcher) Dispatch(e *dispatcher.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
	return nil
}

func (f *fakeDispatcher) Stats() dispatcher.Stats { return dispatcher.Stats{} }

func (f *fakeDispatcher) Close(context.Context) error { return nil }

// byType returns the payloads of recorded events of one type, in order.
func (f *fakeDispatcher) byType(eventType string) []*cloudevent.CloudEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*cloudevent.CloudEvent
	for _, e := range f.events {
		if e.Payload.Type == eventType {
			out = append(out, e.Payload)
		}
	}
	return out
}

var _ dispatcher.Dispatcher = (*fakeDispatcher)(nil)

func TestRunEmitsLifecycleEvents(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{
		nextJobID:  "j-1",
		jobResults: []getJobResult{runningJob(10), successJob()},
	}
	fd := &fakeDispatcher{}
	cfg := testConfig()
	cfg.Events = NewNotifier(fd, "https://callback.example/hook", "secret", cfg.TaskID)
	task, _ := newTestTask(t, cfg, backend)

	if err := task.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	submitted := fd.byType(EventTypeSubmitted)
	if len(submitted) != 1 {
		t.Fatalf("submitted events = %d, want 1", len(submitted))
	}
	data := submitted[0].Data
	if data["taskId"] != "DailyAggregate" || data["jobId"] != "j-1" {
		t.Errorf("submitted data = %v", data)
	}
	if data["newCluster"] != true {
		t.Errorf("newCluster = %v, want true", data["newCluster"])
	}
	if _, ok := data["clusterId"]; ok {
		t.Error("submitted event for a new cluster must not carry clusterId")
	}

	statuses := fd.byType(EventTypeStatus)
	if len(statuses) != 2 {
		t.Fatalf("status events = %d, want one per transition", len(statuses))
	}
	if statuses[0].Data["statusCode"] != mortar.StatusRunning {
		t.Errorf("first status = %v, want running", statuses[0].Data["statusCode"])
	}
	if statuses[1].Data["statusCode"] != mortar.StatusSuccess {
		t.Errorf("second status = %v, want success", statuses[1].Data["statusCode"])
	}

	finished := fd.byType(EventTypeFinished)
	if len(finished) != 1 {
		t.Fatalf("finished events = %d, want 1", len(finished))
	}
	if finished[0].Data["statusCode"] != mortar.StatusSuccess {
		t.Errorf("finished status = %v, want success", finished[0].Data["statusCode"])
	}
	if _, ok := finished[0].Data["error"]; ok {
		t.Error("successful finish must not carry an error field")
	}

	// Envelope checks on one representative event.
	env := fd.events[0]
	if env.Destination != "https://callback.example/hook" || env.SigningKey != "secret" {
		t.Errorf("envelope = %+v", env)
	}
	if env.Payload.Source != eventSource || env.Payload.Subject != "DailyAggregate" {
		t.Errorf("payload envelope = %+v", env.Payload)
	}
}

func TestRunSubmittedEventForReusedCluster(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{
		nextJobID: "j-1",
		clusters: []mortar.Cluster{
			{ClusterID: "c-idle", Size: 4, StatusCode: mortar.ClusterStatusRunning, ClusterTypeCode: mortar.ClusterTypePersistent},
		},
		jobResults: []getJobResult{successJob()},
	}
	fd := &fakeDispatcher{}
	cfg := testConfig()
	cfg.Events = NewNotifier(fd, "https://callback.example/hook", "", cfg.TaskID)
	task, _ := newTestTask(t, cfg, backend)

	if err := task.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	submitted := fd.byType(EventTypeSubmitted)
	if len(submitted) != 1 {
		t.Fatalf("submitted events = %d, want 1", len(submitted))
	}
	data := submitted[0].Data
	if data["clusterId"] != "c-idle" {
		t.Errorf("clusterId = %v, want c-idle", data["clusterId"])
	}
	if data["newCluster"] != false {
		t.Errorf("newCluster = %v, want false", data["newCluster"])
	}
}

func TestRunFinishedEventCarriesFailureDetail(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{
		nextJobID: "j-1",
		jobResults: []getJobResult{{job: mortar.Job{
			JobID:      "j-1",
			StatusCode: mortar.StatusExecutionError,
			Error:      &mortar.JobError{Message: "container exited 137"},
		}}},
	}
	fd := &fakeDispatcher{}
	cfg := testConfig()
	cfg.Events = NewNotifier(fd, "https://callback.example/hook", "", cfg.TaskID)
	task, _ := newTestTask(t, cfg, backend)

	if err := task.Run(context.Background()); err == nil {
		t.Fatal("expected error for failed job")
	}

	finished := fd.byType(EventTypeFinished)
	if len(finished) != 1 {
		t.Fatalf("finished events = %d, want 1", len(finished))
	}
	data := finished[0].Data
	if data["statusCode"] != mortar.StatusExecutionError {
		t.Errorf("statusCode = %v, want execution_error", data["statusCode"])
	}
	detail, _ := data["error"].(string)
	if !strings.Contains(detail, "container exited 137") {
		t.Errorf("error detail = %q, want remote failure message", detail)
	}
}

func TestResumeEmitsNoSubmittedEvent(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{
		nextJobID:  "j-should-not-be-used",
		jobResults: []getJobResult{{job: mortar.Job{JobID: "j-resume", StatusCode: mortar.StatusSuccess}}},
	}
	fd := &fakeDispatcher{}
	cfg := testConfig()
	cfg.Events = NewNotifier(fd, "https://callback.example/hook", "", cfg.TaskID)
	task, store := newTestTask(t, cfg, backend)
	if err := store.Write(context.Background(), "/tokens/DailyAggregate-Running", []byte("j-resume\n")); err != nil {
		t.Fatal(err)
	}

	if err := task.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := fd.byType(EventTypeSubmitted); len(got) != 0 {
		t.Errorf("submitted events on resume = %d, want 0", len(got))
	}
	finished := fd.byType(EventTypeFinished)
	if len(finished) != 1 || finished[0].Data["jobId"] != "j-resume" {
		t.Errorf("finished events = %+v, want one for j-resume", finished)
	}
}

func TestNotifierNilReceiver(t *testing.T) {
	t.Parallel()

	var n *Notifier
	// Events disabled: all emitters must be no-ops.
	n.JobSubmitted("j-1", "c-1", false)
	n.StatusChanged("j-1", mortar.StatusRunning, "running")
	n.JobFinished("j-1", mortar.StatusSuccess, "")
}
