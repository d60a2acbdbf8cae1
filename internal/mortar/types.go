// Package mortar models the remote job API: jobs running on provisioned
// compute clusters, submitted and observed through the Backend interface.
package mortar

import (
	"context"
	"slices"
)

// Job status codes as reported by the remote API.
const (
	StatusPending          = "pending"
	StatusStarting         = "starting"
	StatusValidatingScript = "validating_script"
	StatusStartingCluster  = "starting_cluster"
	StatusRunning          = "running"
	StatusStopping         = "stopping"
	StatusSuccess          = "success"
	StatusScriptError      = "script_error"
	StatusPlanError        = "plan_error"
	StatusExecutionError   = "execution_error"
	StatusServiceError     = "service_error"
	StatusStopped          = "stopped"
)

// TerminalStatuses is the fixed set of statuses from which no further
// transition occurs.
var TerminalStatuses = []string{
	StatusSuccess,
	StatusScriptError,
	StatusPlanError,
	StatusExecutionError,
	StatusServiceError,
	StatusStopped,
}

// Cluster status codes.
const (
	ClusterStatusPending   = "pending"
	ClusterStatusStarting  = "starting"
	ClusterStatusRunning   = "running"
	ClusterStatusDestroyed = "destroyed"
)

// Cluster type codes.
const (
	ClusterTypePersistent = "persistent"
	ClusterTypeSingleJob  = "single_job"
)

// Job is a read-only snapshot of a remote unit of work. It is created by
// a submission call and mutated only by the remote system.
type Job struct {
	JobID             string    `json:"job_id"`
	StatusCode        string    `json:"status_code"`
	Progress          int       `json:"progress"`
	StatusDescription string    `json:"status_description"`
	StatusDetails     string    `json:"status_details,omitempty"`
	Error             *JobError `json:"error,omitempty"`
}

// JobError carries the remote-supplied failure detail.
type JobError struct {
	Message string `json:"message"`
}

// Finished reports whether the job has reached a terminal status.
func (j Job) Finished() bool {
	return slices.Contains(TerminalStatuses, j.StatusCode)
}

// Succeeded reports whether the job finished with the success status.
func (j Job) Succeeded() bool {
	return j.StatusCode == StatusSuccess
}

// StatusSummary joins the human-readable description and details.
func (j Job) StatusSummary() string {
	if j.StatusDetails == "" {
		return j.StatusDescription
	}
	return j.StatusDescription + " - " + j.StatusDetails
}

// ErrorMessage returns the remote failure detail, or empty when none.
func (j Job) ErrorMessage() string {
	if j.Error == nil {
		return ""
	}
	return j.Error.Message
}

// Cluster is a read-only snapshot of a remote compute resource.
type Cluster struct {
	ClusterID       string   `json:"cluster_id"`
	Size            int      `json:"size"`
	StatusCode      string   `json:"status_code"`
	ClusterTypeCode string   `json:"cluster_type_code"`
	RunningJobs     []string `json:"running_jobs"`
}

// Idle reports whether the cluster has no jobs assigned to it.
func (c Cluster) Idle() bool {
	return len(c.RunningJobs) == 0
}

// NewClusterJobRequest submits a job together with a request to provision
// a new cluster for it.
type NewClusterJobRequest struct {
	Project          string            `json:"project_name"`
	Script           string            `json:"script_name"`
	ClusterSize      int               `json:"cluster_size"`
	ClusterType      string            `json:"cluster_type"`
	GitRef           string            `json:"git_ref"`
	Parameters       map[string]string `json:"parameters,omitempty"`
	NotifyOnFinish   bool              `json:"notify_on_job_finish"`
	IsControlScript  bool              `json:"is_control_script"`
	PigVersion       string            `json:"pig_version"`
	UseSpotInstances bool              `json:"use_spot_instances"`
}

// ExistingClusterJobRequest submits a job against an already-running cluster.
type ExistingClusterJobRequest struct {
	Project         string            `json:"project_name"`
	Script          string            `json:"script_name"`
	ClusterID       string            `json:"cluster_id"`
	GitRef          string            `json:"git_ref"`
	Parameters      map[string]string `json:"parameters,omitempty"`
	NotifyOnFinish  bool              `json:"notify_on_job_finish"`
	IsControlScript bool              `json:"is_control_script"`
	PigVersion      string            `json:"pig_version"`
}

// Backend is the RPC boundary to the remote job system.
type Backend interface {
	// SubmitNewCluster submits a job to a freshly provisioned cluster and
	// returns the remote-assigned job ID.
	SubmitNewCluster(ctx context.Context, req NewClusterJobRequest) (string, error)

	// SubmitExistingCluster submits a job against a running cluster and
	// returns the remote-assigned job ID.
	SubmitExistingCluster(ctx context.Context, req ExistingClusterJobRequest) (string, error)

	// GetJob fetches the current snapshot of a job.
	GetJob(ctx context.Context, jobID string) (Job, error)

	// ListClusters fetches a fresh snapshot of all clusters.
	ListClusters(ctx context.Context) ([]Cluster, error)

	// StopCluster requests shutdown of a cluster. It does not wait for
	// the cluster to stop.
	StopCluster(ctx context.Context, clusterID string) error
}
