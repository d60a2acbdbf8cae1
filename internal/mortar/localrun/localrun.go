// Package localrun implements the mortar.Backend interface on the local
// Docker daemon. Jobs run as containers instead of on remote clusters,
// which lets pipelines be exercised end to end without remote credentials.
package localrun

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"

	"github.com/LotharSee/mortar-luigi/internal/apperrors"
	"github.com/LotharSee/mortar-luigi/internal/mortar"
)

const (
	managedByLabel = "managed-by=mortar-luigi"
	localClusterID = "local"
)

// Backend runs jobs as containers on the host Docker daemon.
type Backend struct {
	client *client.Client
	image  string
	logger *slog.Logger

	mu   sync.Mutex
	jobs map[string]string // job ID -> container ID
	seq  int
}

// Config holds configuration for the local backend.
type Config struct {
	Image string // Container image jobs run in (required)
}

// New creates a local Docker-backed job backend.
func New(cfg Config) (*Backend, error) {
	if cfg.Image == "" {
		return nil, apperrors.Validation("image", "must not be empty")
	}

	dockerClient, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	return &Backend{
		client: dockerClient,
		image:  cfg.Image,
		logger: slog.With("component", "localrun"),
		jobs:   make(map[string]string),
	}, nil
}

// SubmitNewCluster runs the job in a new container. The cluster request
// fields are accepted but only the script invocation matters locally.
func (b *Backend) SubmitNewCluster(ctx context.Context, req mortar.NewClusterJobRequest) (string, error) {
	return b.runJob(ctx, req.Project, req.Script, req.GitRef, req.Parameters)
}

// SubmitExistingCluster runs the job in a new container. Locally there is
// a single synthetic cluster, so this is equivalent to SubmitNewCluster.
func (b *Backend) SubmitExistingCluster(ctx context.Context, req mortar.ExistingClusterJobRequest) (string, error) {
	if req.ClusterID != localClusterID {
		return "", apperrors.NotFound("cluster", req.ClusterID)
	}
	return b.runJob(ctx, req.Project, req.Script, req.GitRef, req.Parameters)
}

func (b *Backend) runJob(ctx context.Context, project, script, gitRef string, params map[string]string) (string, error) {
	if err := b.pullImageIfNeeded(ctx); err != nil {
		return "", apperrors.Transient("localrun.pullImage", err)
	}

	b.mu.Lock()
	b.seq++
	jobID := fmt.Sprintf("local-%d-%d", time.Now().Unix(), b.seq)
	b.mu.Unlock()

	env := []string{
		fmt.Sprintf("MORTAR_PROJECT=%s", project),
		fmt.Sprintf("MORTAR_SCRIPT=%s", script),
		fmt.Sprintf("MORTAR_GIT_REF=%s", gitRef),
	}
	for k, v := range params {
		env = append(env, fmt.Sprintf("MORTAR_PARAM_%s=%s", k, v))
	}

	containerConfig := &container.Config{
		Image: b.image,
		Cmd:   []string{"/bin/sh", "-c", fmt.Sprintf("run-script %s", script)},
		Env:   env,
		Labels: map[string]string{
			"job.id":      jobID,
			"job.project": project,
			"managed-by":  "mortar-luigi",
		},
	}

	containerName := fmt.Sprintf("mortar-job-%s", jobID)
	resp, err := b.client.ContainerCreate(ctx, containerConfig, nil, nil, nil, containerName)
	if err != nil {
		return "", apperrors.Transient("localrun.createContainer", err)
	}

	if err := b.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return "", apperrors.Transient("localrun.startContainer", err)
	}

	b.mu.Lock()
	b.jobs[jobID] = resp.ID
	b.mu.Unlock()

	b.logger.Info("Job container started", "jobId", jobID, "containerId", resp.ID[:12], "project", project, "script", script)
	return jobID, nil
}

// GetJob maps the container state to a job snapshot.
func (b *Backend) GetJob(ctx context.Context, jobID string) (mortar.Job, error) {
	containerID, err := b.containerFor(ctx, jobID)
	if err != nil {
		return mortar.Job{}, err
	}

	inspect, err := b.client.ContainerInspect(ctx, containerID)
	if err != nil {
		if client.IsErrNotFound(err) {
			return mortar.Job{}, apperrors.NotFound("job", jobID)
		}
		return mortar.Job{}, apperrors.Transient("localrun.inspectContainer", err)
	}

	job := mortar.Job{JobID: jobID}
	switch {
	case inspect.State.Running:
		job.StatusCode = mortar.StatusRunning
		job.StatusDescription = "Running"

	case inspect.State.Status == "created":
		job.StatusCode = mortar.StatusStarting
		job.StatusDescription = "Starting"

	default:
		exitCode := inspect.State.ExitCode
		if exitCode == 0 {
			job.StatusCode = mortar.StatusSuccess
			job.StatusDescription = "Success"
			job.Progress = 100
		} else {
			job.StatusCode = mortar.StatusExecutionError
			job.StatusDescription = "Execution error"
			job.StatusDetails = fmt.Sprintf("container exited with code %d", exitCode)
			if inspect.State.Error != "" {
				job.Error = &mortar.JobError{Message: inspect.State.Error}
			}
		}
	}

	return job, nil
}

// ListClusters reports a single synthetic persistent cluster representing
// the local daemon, idle when no job containers are running.
func (b *Backend) ListClusters(ctx context.Context) ([]mortar.Cluster, error) {
	containers, err := b.client.ContainerList(ctx, container.ListOptions{
		Filters: filters.NewArgs(filters.Arg("label", managedByLabel)),
	})
	if err != nil {
		return nil, apperrors.Transient("localrun.listContainers", err)
	}

	running := make([]string, 0, len(containers))
	for _, c := range containers {
		if jobID := c.Labels["job.id"]; jobID != "" {
			running = append(running, jobID)
		}
	}

	return []mortar.Cluster{{
		ClusterID:       localClusterID,
		Size:            1,
		StatusCode:      mortar.ClusterStatusRunning,
		ClusterTypeCode: mortar.ClusterTypePersistent,
		RunningJobs:     running,
	}}, nil
}

// StopCluster removes all finished job containers. The local cluster
// itself cannot be stopped.
func (b *Backend) StopCluster(ctx context.Context, clusterID string) error {
	if clusterID != localClusterID {
		return apperrors.NotFound("cluster", clusterID)
	}

	containers, err := b.client.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filters.NewArgs(filters.Arg("label", managedByLabel)),
	})
	if err != nil {
		return apperrors.Transient("localrun.listContainers", err)
	}

	for _, c := range containers {
		if c.State == "running" {
			continue
		}
		if err := b.client.ContainerRemove(ctx, c.ID, container.RemoveOptions{}); err != nil {
			b.logger.Warn("Failed to remove job container", "containerId", c.ID[:12], "error", err)
		}
	}
	return nil
}

// Close releases the Docker client.
func (b *Backend) Close() error {
	return b.client.Close()
}

func (b *Backend) containerFor(ctx context.Context, jobID string) (string, error) {
	b.mu.Lock()
	containerID, ok := b.jobs[jobID]
	b.mu.Unlock()
	if ok {
		return containerID, nil
	}

	// Unknown in memory, look it up by label (survives a process restart).
	containers, err := b.client.ContainerList(ctx, container.ListOptions{
		All: true,
		Filters: filters.NewArgs(
			filters.Arg("label", managedByLabel),
			filters.Arg("label", fmt.Sprintf("job.id=%s", jobID)),
		),
	})
	if err != nil {
		return "", apperrors.Transient("localrun.listContainers", err)
	}
	if len(containers) == 0 {
		return "", apperrors.NotFound("job", jobID)
	}

	b.mu.Lock()
	b.jobs[jobID] = containers[0].ID
	b.mu.Unlock()
	return containers[0].ID, nil
}

func (b *Backend) pullImageIfNeeded(ctx context.Context) error {
	_, err := b.client.ImageInspect(ctx, b.image)
	if err == nil {
		return nil
	}

	reader, err := b.client.ImagePull(ctx, b.image, image.PullOptions{})
	if err != nil {
		return err
	}
	defer reader.Close()

	_, err = io.Copy(io.Discard, reader)
	return err
}

var _ mortar.Backend = (*Backend)(nil)
