package mortar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/LotharSee/mortar-luigi/internal/apperrors"
	"github.com/LotharSee/mortar-luigi/internal/config"
)

// DefaultHost is the production API endpoint.
const DefaultHost = "https://api.mortardata.com"

// Client implements Backend over the remote HTTP API.
type Client struct {
	baseURL string
	email   string
	apiKey  string
	client  *http.Client
}

// NewClient creates an API client for the given account credentials.
func NewClient(creds config.Credentials) *Client {
	host := creds.Host
	if host == "" {
		host = DefaultHost
	}
	return &Client{
		baseURL: host,
		email:   creds.Email,
		apiKey:  creds.APIKey,
		client: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// submitResponse is the body returned by job submission calls.
type submitResponse struct {
	JobID string `json:"job_id"`
}

// clustersResponse is the body returned by the cluster listing call.
type clustersResponse struct {
	Clusters []Cluster `json:"clusters"`
}

// apiError is the error body returned on non-2xx responses.
type apiError struct {
	ErrorMessage string `json:"error_message"`
}

// SubmitNewCluster submits a job to a freshly provisioned cluster.
func (c *Client) SubmitNewCluster(ctx context.Context, req NewClusterJobRequest) (string, error) {
	var resp submitResponse
	if err := c.do(ctx, http.MethodPost, "/v2/jobs", req, &resp); err != nil {
		return "", fmt.Errorf("submit job to new cluster: %w", err)
	}
	return resp.JobID, nil
}

// SubmitExistingCluster submits a job against a running cluster.
func (c *Client) SubmitExistingCluster(ctx context.Context, req ExistingClusterJobRequest) (string, error) {
	var resp submitResponse
	if err := c.do(ctx, http.MethodPost, "/v2/jobs", req, &resp); err != nil {
		return "", fmt.Errorf("submit job to cluster %s: %w", req.ClusterID, err)
	}
	return resp.JobID, nil
}

// GetJob fetches the current snapshot of a job.
func (c *Client) GetJob(ctx context.Context, jobID string) (Job, error) {
	var job Job
	if err := c.do(ctx, http.MethodGet, "/v2/jobs/"+url.PathEscape(jobID), nil, &job); err != nil {
		return Job{}, err
	}
	return job, nil
}

// ListClusters fetches a fresh snapshot of all clusters.
func (c *Client) ListClusters(ctx context.Context) ([]Cluster, error) {
	var resp clustersResponse
	if err := c.do(ctx, http.MethodGet, "/v2/clusters", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Clusters, nil
}

// StopCluster requests shutdown of a cluster.
func (c *Client) StopCluster(ctx context.Context, clusterID string) error {
	return c.do(ctx, http.MethodDelete, "/v2/clusters/"+url.PathEscape(clusterID), nil, nil)
}

// do sends one API request and decodes the JSON response into out when
// out is non-nil. Non-2xx responses are classified into apperrors kinds.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return apperrors.Internal("mortar.encode", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return apperrors.Internal("mortar.request", err)
	}
	req.SetBasicAuth(c.email, c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return apperrors.Transient("mortar."+method+" "+path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.classify(resp, method, path)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.Transient("mortar.decode "+path, err)
	}
	return nil
}

// classify maps an error response to an apperrors kind, preserving the
// remote-supplied message when the body carries one.
func (c *Client) classify(resp *http.Response, method, path string) error {
	op := "mortar." + method + " " + path

	var detail apiError
	if data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10)); err == nil {
		_ = json.Unmarshal(data, &detail)
	}
	cause := fmt.Errorf("status %d", resp.StatusCode)
	if detail.ErrorMessage != "" {
		cause = fmt.Errorf("status %d: %s", resp.StatusCode, detail.ErrorMessage)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return apperrors.NotFound("resource", path)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return apperrors.Transient(op, cause)
	default:
		return apperrors.Internal(op, cause)
	}
}

// Verify Client implements Backend
var _ Backend = (*Client)(nil)
