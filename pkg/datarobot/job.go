package datarobot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/reverbdotcom/datarobot-2.25.1-sub000/pkg/async"
	"github.com/reverbdotcom/datarobot-2.25.1-sub000/pkg/pagination"
)

// ErrJobFinished reports that a job has already redirected to its
// result, so there is no job document left to fetch.
var ErrJobFinished = errors.New("job has already finished")

// Job is a queued or running unit of work inside a project.
type Job struct {
	ID        string `json:"id"`
	ProjectID string `json:"projectId"`
	Status    string `json:"status"`
	JobType   string `json:"jobType"`
	IsBlocked bool   `json:"isBlocked"`
	URL       string `json:"url"`
}

func jobPath(projectID, jobID string) string {
	return "projects/" + projectID + "/jobs/" + jobID + "/"
}

// GetJob fetches the job document for a job that has not finished.
// A finished job returns ErrJobFinished, with the result URL in the
// error message, because the platform answers those with a redirect
// instead of a document.
func (c *Client) GetJob(ctx context.Context, projectID, jobID string) (*Job, error) {
	outcome, err := c.resolver.Poll(ctx, jobPath(projectID, jobID))
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", jobID, err)
	}
	if outcome.Kind == async.Redirect {
		return nil, fmt.Errorf("%w: result at %s", ErrJobFinished, outcome.Location)
	}

	var job Job
	if err := json.Unmarshal([]byte(outcome.Body), &job); err != nil {
		return nil, fmt.Errorf("get job %s: decode job document: %w", jobID, err)
	}
	return &job, nil
}

// ListJobs fetches the project's job queue.
func (c *Client) ListJobs(ctx context.Context, projectID string) ([]Job, error) {
	jobs, err := pagination.Collect[Job](ctx, c.api, "projects/"+projectID+"/jobs/", nil)
	if err != nil {
		return nil, fmt.Errorf("list jobs in project %s: %w", projectID, err)
	}
	return jobs, nil
}

// GetJobResult checks a job exactly once and decodes its result into
// out when it is done. A job still in the queue returns
// async.ErrJobNotFinished; it never waits.
func (c *Client) GetJobResult(ctx context.Context, projectID, jobID string, out any) error {
	statusURL := jobPath(projectID, jobID)
	outcome, err := c.resolver.Poll(ctx, statusURL)
	if err != nil {
		return fmt.Errorf("get result of job %s: %w", jobID, err)
	}

	switch outcome.Kind {
	case async.Redirect:
		return c.api.GetJSON(ctx, outcome.Location, nil, out)
	case async.Completed:
		if err := json.Unmarshal([]byte(outcome.Body), out); err != nil {
			return fmt.Errorf("get result of job %s: decode result: %w", jobID, err)
		}
		return nil
	case async.Failed:
		return &async.OperationFailedError{
			URL:    statusURL,
			Status: outcome.Status,
			Body:   outcome.Body,
		}
	default:
		return fmt.Errorf("job %s: %w", jobID, async.ErrJobNotFinished)
	}
}
