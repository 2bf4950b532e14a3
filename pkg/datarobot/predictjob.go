package datarobot

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/reverbdotcom/datarobot-2.25.1-sub000/pkg/async"
)

// PredictJob tracks an asynchronous prediction request.
type PredictJob struct {
	ID        string `json:"id"`
	ProjectID string `json:"projectId"`
	ModelID   string `json:"modelId"`
	Status    string `json:"status"`
	Message   string `json:"message"`
}

// Predictions is the result document of a finished predict job.
type Predictions struct {
	Task        string       `json:"task"`
	Predictions []Prediction `json:"predictions"`
}

// Prediction is one scored row.
type Prediction struct {
	RowID               int      `json:"rowId"`
	Prediction          any      `json:"prediction"`
	PositiveProbability *float64 `json:"positiveProbability,omitempty"`
}

// RequestPredictions asks a model to score an uploaded dataset and
// returns the id of the predict job tracking the work.
func (c *Client) RequestPredictions(ctx context.Context, projectID, modelID, datasetID string) (string, error) {
	payload := map[string]string{
		"modelId":   modelID,
		"datasetId": datasetID,
	}
	resp, err := c.api.Post(ctx, "projects/"+projectID+"/predictions/", payload)
	if err != nil {
		return "", fmt.Errorf("request predictions in project %s: %w", projectID, err)
	}
	location, err := responseLocation(resp)
	if err != nil {
		return "", fmt.Errorf("request predictions in project %s: %w", projectID, err)
	}
	jobID := idFromLocation(location)
	c.logger.Debug().
		Str("project_id", projectID).
		Str("model_id", modelID).
		Str("job_id", jobID).
		Msg("Predictions requested")
	return jobID, nil
}

func predictJobPath(projectID, jobID string) string {
	return "projects/" + projectID + "/predictJobs/" + jobID + "/"
}

// GetPredictJob fetches the job document of a predict job that has not
// finished. Finished jobs redirect to their predictions and return
// ErrJobFinished.
func (c *Client) GetPredictJob(ctx context.Context, projectID, jobID string) (*PredictJob, error) {
	outcome, err := c.resolver.Poll(ctx, predictJobPath(projectID, jobID))
	if err != nil {
		return nil, fmt.Errorf("get predict job %s: %w", jobID, err)
	}
	if outcome.Kind == async.Redirect {
		return nil, fmt.Errorf("%w: predictions at %s", ErrJobFinished, outcome.Location)
	}

	var job PredictJob
	if err := json.Unmarshal([]byte(outcome.Body), &job); err != nil {
		return nil, fmt.Errorf("get predict job %s: decode job document: %w", jobID, err)
	}
	return &job, nil
}

// WaitForPredictions blocks until a predict job finishes and returns
// the predictions it produced.
func (c *Client) WaitForPredictions(ctx context.Context, projectID, jobID string, maxWait time.Duration) (*Predictions, error) {
	var predictions Predictions
	if err := c.resolveToResource(ctx, predictJobPath(projectID, jobID), maxWait, &predictions); err != nil {
		return nil, fmt.Errorf("wait for predict job %s: %w", jobID, err)
	}
	return &predictions, nil
}
