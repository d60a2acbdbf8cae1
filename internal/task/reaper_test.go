package task

import (
	"context"
	"errors"
	"testing"

	"github.com/LotharSee/mortar-luigi/internal/mortar"
)

func TestShutdownIdleClusters(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{clusters: []mortar.Cluster{
		{ClusterID: "c-idle-1", Size: 2, StatusCode: mortar.ClusterStatusRunning, ClusterTypeCode: mortar.ClusterTypePersistent},
		{ClusterID: "c-busy", Size: 4, StatusCode: mortar.ClusterStatusRunning, ClusterTypeCode: mortar.ClusterTypePersistent, RunningJobs: []string{"j-1"}},
		{ClusterID: "c-starting", Size: 2, StatusCode: mortar.ClusterStatusStarting, ClusterTypeCode: mortar.ClusterTypePersistent},
		{ClusterID: "c-idle-2", Size: 8, StatusCode: mortar.ClusterStatusRunning, ClusterTypeCode: mortar.ClusterTypeSingleJob},
	}}

	reaper := NewReaper(backend, nil)
	if err := reaper.ShutdownIdleClusters(context.Background()); err != nil {
		t.Fatalf("ShutdownIdleClusters: %v", err)
	}

	// Idle running clusters of any type are stopped; busy and
	// not-yet-running clusters are left alone.
	want := []string{"c-idle-1", "c-idle-2"}
	if len(backend.stopped) != len(want) {
		t.Fatalf("stopped %v, want %v", backend.stopped, want)
	}
	for i, id := range want {
		if backend.stopped[i] != id {
			t.Errorf("stopped[%d] = %q, want %q", i, backend.stopped[i], id)
		}
	}
}

func TestShutdownIdleClustersStopError(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{
		clusters: []mortar.Cluster{
			{ClusterID: "c-1", StatusCode: mortar.ClusterStatusRunning, ClusterTypeCode: mortar.ClusterTypePersistent},
		},
		stopErr: errors.New("api unavailable"),
	}

	reaper := NewReaper(backend, nil)
	if err := reaper.ShutdownIdleClusters(context.Background()); err == nil {
		t.Fatal("expected stop error to propagate")
	}
}

func TestShutdownIdleClustersListError(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{listErr: errors.New("api unavailable")}
	reaper := NewReaper(backend, nil)
	if err := reaper.ShutdownIdleClusters(context.Background()); err == nil {
		t.Fatal("expected list error to propagate")
	}
}
