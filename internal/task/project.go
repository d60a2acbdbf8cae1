package task

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/LotharSee/mortar-luigi/internal/apperrors"
	"github.com/LotharSee/mortar-luigi/internal/cluster"
	"github.com/LotharSee/mortar-luigi/internal/config"
	"github.com/LotharSee/mortar-luigi/internal/mortar"
	"github.com/LotharSee/mortar-luigi/internal/observability"
	"github.com/LotharSee/mortar-luigi/internal/token"
)

// GitRefUnset is the sentinel meaning "no git ref was configured"; the
// environment override and the default branch apply in that case.
const GitRefUnset = "unset"

// gitRefEnv is the environment override consulted when no git ref is
// configured on the task.
const gitRefEnv = "MORTAR_LUIGI_GIT_REF"

// defaultGitRef is used when neither the config nor the environment
// names a git ref.
const defaultGitRef = "master"

// runningSuffix distinguishes the in-flight token from the success token.
const runningSuffix = "-Running"

// ProjectConfig configures one project task: a remote script run driven
// to completion with idempotent retry-safe semantics.
type ProjectConfig struct {
	TaskID          string            // stable task identity, names the tokens (required)
	Project         string            // remote project to run (required)
	Script          string            // script within the project (required)
	TokenPath       string            // base path for tokens, local or s3:// (required)
	IsControlScript bool              // remote-system accounting classification
	Parameters      map[string]string // script parameters
	ScriptOutputs   []string          // declared output paths, removed when the job fails

	ClusterSize       int           // minimum worker count (default: 2)
	SingleUseCluster  bool          // dedicated cluster torn down after the job (default: false)
	UseSpotInstances  bool          // spot policy for new clusters (default: true)
	GitRef            string        // code revision to run (default: env override, then "master")
	NotifyOnJobFinish bool          // remote-side notification flag (default: false)
	PollInterval      time.Duration // job status polling interval (default: 5s)
	PollMaxRetries    int           // consecutive poll failures tolerated (default: 3)
	PigVersion        string        // pig runtime version (default: "0.12")

	Metrics *observability.Metrics // optional
	Events  *Notifier              // optional lifecycle event emission
}

// DefaultProjectConfig returns a config with all optional fields at
// their defaults. Start from it when building configs in code; loading
// from the environment goes through cmd.
func DefaultProjectConfig() ProjectConfig {
	return ProjectConfig{
		ClusterSize:      2,
		UseSpotInstances: true,
		GitRef:           GitRefUnset,
		PollInterval:     5 * time.Second,
		PollMaxRetries:   3,
		PigVersion:       "0.12",
	}
}

// withDefaults fills in zero values with defaults. UseSpotInstances
// cannot be distinguished from an explicit false here; its default is
// applied by DefaultProjectConfig.
func (c ProjectConfig) withDefaults() ProjectConfig {
	if c.ClusterSize <= 0 {
		c.ClusterSize = 2
	}
	if c.GitRef == "" {
		c.GitRef = GitRefUnset
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.PollMaxRetries <= 0 {
		c.PollMaxRetries = 3
	}
	if c.PigVersion == "" {
		c.PigVersion = "0.12"
	}
	return c
}

// validate checks required fields. Does not modify the config.
func (c ProjectConfig) validate() error {
	if c.TaskID == "" {
		return apperrors.Validation("task_id", "task ID is required")
	}
	if c.Project == "" {
		return apperrors.Validation("project", "project is required")
	}
	if c.Script == "" {
		return apperrors.Validation("script", "script is required")
	}
	if c.TokenPath == "" {
		return apperrors.Validation("token_path", "token path is required")
	}
	return nil
}

// ProjectTask drives one remote job to completion. Run is idempotent
// and safe to invoke repeatedly for the same task identity, including
// after a process restart.
//
// Single-writer assumption: at most one live execution per task
// identity. The existence check and write of the running token are not
// atomic, so two concurrent invocations for the same identity can both
// submit; that race is a known limitation, not handled here.
type ProjectTask struct {
	config  ProjectConfig
	backend mortar.Backend
	store   token.Store
	poller  *Poller
	logger  *slog.Logger
}

// NewProjectTask creates a project task. Required config fields are
// validated here rather than surfacing as failures mid-run.
func NewProjectTask(cfg ProjectConfig, backend mortar.Backend, store token.Store) (*ProjectTask, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &ProjectTask{
		config:  cfg,
		backend: backend,
		store:   store,
		poller: NewPoller(backend, PollerConfig{
			Interval:   cfg.PollInterval,
			MaxRetries: cfg.PollMaxRetries,
			Metrics:    cfg.Metrics,
			Events:     cfg.Events,
		}),
		logger: slog.With("taskId", cfg.TaskID, "project", cfg.Project, "script", cfg.Script),
	}, nil
}

// Output returns the declared outputs of the task: the success token,
// which doubles as the dependency-satisfaction marker for the outer
// scheduler.
func (t *ProjectTask) Output() []string {
	return []string{t.successTokenPath()}
}

// Run drives the job to a terminal status:
//
//  1. An existing success token makes Run a no-op.
//  2. An existing running token resumes polling of the stored job ID —
//     the job is never resubmitted.
//  3. Otherwise the job is submitted (reusing an idle cluster when
//     possible) and the returned job ID is persisted before polling, so
//     a crash after that point resumes rather than resubmits. A crash
//     between submission and the token write resubmits on the next run;
//     that gap is accepted.
//  4. Polling failures propagate with the running token left in place.
//  5. On a terminal status the running token is deleted best-effort (a
//     failed delete is logged, never masking the outcome); success
//     writes the success token, failure deletes all declared outputs
//     and returns an error carrying job ID, status code, and the
//     remote-supplied detail.
func (t *ProjectTask) Run(ctx context.Context) error {
	done, err := t.store.Exists(ctx, t.successTokenPath())
	if err != nil {
		return fmt.Errorf("check success token: %w", err)
	}
	if done {
		t.logger.Info("Task already satisfied, nothing to do")
		return nil
	}

	jobID, err := t.findOrSubmitJob(ctx)
	if err != nil {
		return err
	}

	if t.config.Metrics != nil {
		t.config.Metrics.RecordTaskStarted(ctx, t.config.Project)
	}
	started := time.Now()

	job, err := t.poller.Poll(ctx, jobID)
	if err != nil {
		// The running token stays in place: the next run resumes
		// polling instead of resubmitting.
		if t.config.Metrics != nil {
			t.config.Metrics.RecordTaskAborted(ctx, t.config.Project)
		}
		return err
	}

	// The job reached a terminal status; a failed token delete must not
	// mask it. A stale token is harmless: the next run either sees the
	// success token first or re-observes the same terminal status.
	if err := t.store.Delete(ctx, t.runningTokenPath()); err != nil {
		t.logger.Warn("Failed to clear running token", "error", err)
	}

	if t.config.Metrics != nil {
		t.config.Metrics.RecordJobFinished(ctx, t.config.Project, job.StatusCode, time.Since(started).Seconds())
	}
	t.config.Events.JobFinished(jobID, job.StatusCode, job.ErrorMessage())

	if !job.Succeeded() {
		for _, out := range t.config.ScriptOutputs {
			t.logger.Info("Job failed, removing incomplete output", "path", out)
			if err := t.store.Delete(ctx, out); err != nil {
				return fmt.Errorf("remove incomplete output %s: %w", out, err)
			}
		}
		return apperrors.JobFailure(jobID, job.StatusCode, job.ErrorMessage())
	}

	if err := t.store.Write(ctx, t.successTokenPath(), nil); err != nil {
		return fmt.Errorf("write success token: %w", err)
	}
	t.logger.Info("Job completed successfully", "jobId", jobID)
	return nil
}

// findOrSubmitJob returns the job ID to poll: the one stored in the
// running token when present, otherwise a fresh submission whose ID is
// persisted before returning.
func (t *ProjectTask) findOrSubmitJob(ctx context.Context) (string, error) {
	running, err := t.store.Exists(ctx, t.runningTokenPath())
	if err != nil {
		return "", fmt.Errorf("check running token: %w", err)
	}
	if running {
		content, err := t.store.Read(ctx, t.runningTokenPath())
		if err != nil {
			return "", fmt.Errorf("read running token: %w", err)
		}
		jobID := strings.TrimSpace(string(content))
		t.logger.Info("Resuming in-flight job", "jobId", jobID)
		return jobID, nil
	}

	jobID, err := t.submitJob(ctx)
	if err != nil {
		return "", err
	}
	t.logger.Info("Submitted new job", "jobId", jobID)

	// Durability point: record the job ID before polling so a crash
	// from here on resumes instead of resubmitting.
	if err := t.store.Write(ctx, t.runningTokenPath(), []byte(jobID+"\n")); err != nil {
		return "", fmt.Errorf("write running token: %w", err)
	}
	return jobID, nil
}

// submitJob picks the submission target and submits. A single-use task
// always gets its own cluster; otherwise an idle running cluster of
// sufficient size is reused when one exists, else a new persistent
// cluster is requested.
func (t *ProjectTask) submitJob(ctx context.Context) (string, error) {
	if !t.config.SingleUseCluster {
		clusters, err := t.backend.ListClusters(ctx)
		if err != nil {
			return "", fmt.Errorf("list clusters: %w", err)
		}
		if c, ok := cluster.SelectReusableCluster(clusters, t.config.ClusterSize); ok {
			t.logger.Info("Using largest running idle cluster", "clusterId", c.ClusterID, "size", c.Size)
			jobID, err := t.backend.SubmitExistingCluster(ctx, mortar.ExistingClusterJobRequest{
				Project:         t.config.Project,
				Script:          t.config.Script,
				ClusterID:       c.ClusterID,
				GitRef:          t.gitRef(),
				Parameters:      t.config.Parameters,
				NotifyOnFinish:  t.config.NotifyOnJobFinish,
				IsControlScript: t.config.IsControlScript,
				PigVersion:      t.config.PigVersion,
			})
			if err != nil {
				return "", err
			}
			t.recordSubmission(ctx, jobID, c.ClusterID, false)
			return jobID, nil
		}
	}

	clusterType := mortar.ClusterTypePersistent
	if t.config.SingleUseCluster {
		clusterType = mortar.ClusterTypeSingleJob
	}
	jobID, err := t.backend.SubmitNewCluster(ctx, mortar.NewClusterJobRequest{
		Project:          t.config.Project,
		Script:           t.config.Script,
		ClusterSize:      t.config.ClusterSize,
		ClusterType:      clusterType,
		GitRef:           t.gitRef(),
		Parameters:       t.config.Parameters,
		NotifyOnFinish:   t.config.NotifyOnJobFinish,
		IsControlScript:  t.config.IsControlScript,
		PigVersion:       t.config.PigVersion,
		UseSpotInstances: t.config.UseSpotInstances,
	})
	if err != nil {
		return "", err
	}
	t.recordSubmission(ctx, jobID, "", true)
	return jobID, nil
}

func (t *ProjectTask) recordSubmission(ctx context.Context, jobID, clusterID string, newCluster bool) {
	if t.config.Metrics != nil {
		t.config.Metrics.RecordSubmission(ctx, t.config.Project, newCluster)
	}
	t.config.Events.JobSubmitted(jobID, clusterID, newCluster)
}

// gitRef resolves the code revision to run: explicit config, then the
// environment override, then the default branch. First match wins.
func (t *ProjectTask) gitRef() string {
	if t.config.GitRef != GitRefUnset {
		return t.config.GitRef
	}
	if ref := config.GetEnv(gitRefEnv, ""); ref != "" {
		return ref
	}
	return defaultGitRef
}

func (t *ProjectTask) successTokenPath() string {
	return t.config.TokenPath + "/" + t.config.TaskID
}

func (t *ProjectTask) runningTokenPath() string {
	return t.successTokenPath() + runningSuffix
}
