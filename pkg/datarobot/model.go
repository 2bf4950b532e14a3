package datarobot

import (
	"context"
	"fmt"
	"time"

	"github.com/reverbdotcom/datarobot-2.25.1-sub000/pkg/pagination"
)

// Model is a trained model inside a project.
type Model struct {
	ID            string  `json:"id"`
	ProjectID     string  `json:"projectId"`
	BlueprintID   string  `json:"blueprintId"`
	ModelType     string  `json:"modelType"`
	FeaturelistID string  `json:"featurelistId"`
	SamplePct     float64 `json:"samplePct"`
}

// TrainModelOptions selects what to train. BlueprintID is required.
type TrainModelOptions struct {
	BlueprintID   string  `json:"blueprintId"`
	FeaturelistID string  `json:"featurelistId,omitempty"`
	SamplePct     float64 `json:"samplePct,omitempty"`
}

// TrainModel submits a model training request and returns the id of
// the model job tracking it. Pass the id to WaitForModelJob to block
// until the model exists.
func (c *Client) TrainModel(ctx context.Context, projectID string, opts TrainModelOptions) (string, error) {
	resp, err := c.api.Post(ctx, "projects/"+projectID+"/models/", opts)
	if err != nil {
		return "", fmt.Errorf("train model in project %s: %w", projectID, err)
	}
	location, err := responseLocation(resp)
	if err != nil {
		return "", fmt.Errorf("train model in project %s: %w", projectID, err)
	}
	jobID := idFromLocation(location)
	c.logger.Debug().
		Str("project_id", projectID).
		Str("job_id", jobID).
		Msg("Model training submitted")
	return jobID, nil
}

// WaitForModelJob blocks until a model job finishes and returns the
// model it produced.
func (c *Client) WaitForModelJob(ctx context.Context, projectID, jobID string, maxWait time.Duration) (*Model, error) {
	var model Model
	statusURL := "projects/" + projectID + "/modelJobs/" + jobID + "/"
	if err := c.resolveToResource(ctx, statusURL, maxWait, &model); err != nil {
		return nil, fmt.Errorf("wait for model job %s: %w", jobID, err)
	}
	return &model, nil
}

// GetModel fetches a model by id.
func (c *Client) GetModel(ctx context.Context, projectID, modelID string) (*Model, error) {
	var model Model
	if err := c.api.GetJSON(ctx, "projects/"+projectID+"/models/"+modelID+"/", nil, &model); err != nil {
		return nil, fmt.Errorf("get model %s: %w", modelID, err)
	}
	return &model, nil
}

// ListModels fetches every model in a project.
func (c *Client) ListModels(ctx context.Context, projectID string) ([]Model, error) {
	models, err := pagination.Collect[Model](ctx, c.api, "projects/"+projectID+"/models/", nil)
	if err != nil {
		return nil, fmt.Errorf("list models in project %s: %w", projectID, err)
	}
	return models, nil
}
