package datarobot

import (
	"context"
	"fmt"
	"time"

	"github.com/reverbdotcom/datarobot-2.25.1-sub000/pkg/pagination"
)

// Deployment serves a model for scoring.
type Deployment struct {
	ID          string          `json:"id"`
	Label       string          `json:"label"`
	Description string          `json:"description"`
	Model       DeploymentModel `json:"model"`
}

// DeploymentModel identifies the model behind a deployment.
type DeploymentModel struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// GetDeployment fetches a deployment by id.
func (c *Client) GetDeployment(ctx context.Context, deploymentID string) (*Deployment, error) {
	var deployment Deployment
	if err := c.api.GetJSON(ctx, "deployments/"+deploymentID+"/", nil, &deployment); err != nil {
		return nil, fmt.Errorf("get deployment %s: %w", deploymentID, err)
	}
	return &deployment, nil
}

// ListDeployments fetches every deployment visible to the token.
func (c *Client) ListDeployments(ctx context.Context) ([]Deployment, error) {
	deployments, err := pagination.Collect[Deployment](ctx, c.api, "deployments/", nil)
	if err != nil {
		return nil, fmt.Errorf("list deployments: %w", err)
	}
	return deployments, nil
}

// ReplaceDeploymentModel swaps the model behind a deployment and waits
// for the replacement to finish. reason is the platform's audit label,
// for example "ACCURACY" or "SCHEDULED_REFRESH".
func (c *Client) ReplaceDeploymentModel(ctx context.Context, deploymentID, modelID, reason string, maxWait time.Duration) (*Deployment, error) {
	payload := map[string]string{
		"modelId": modelID,
		"reason":  reason,
	}
	resp, err := c.api.Patch(ctx, "deployments/"+deploymentID+"/model/", payload)
	if err != nil {
		return nil, fmt.Errorf("replace model on deployment %s: %w", deploymentID, err)
	}
	statusURL, err := responseLocation(resp)
	if err != nil {
		return nil, fmt.Errorf("replace model on deployment %s: %w", deploymentID, err)
	}

	if _, err := c.resolver.Resolve(ctx, statusURL, c.maxWait(maxWait)); err != nil {
		return nil, fmt.Errorf("replace model on deployment %s: %w", deploymentID, err)
	}
	deployment, err := c.GetDeployment(ctx, deploymentID)
	if err != nil {
		return nil, err
	}
	c.logger.Info().
		Str("deployment_id", deploymentID).
		Str("model_id", deployment.Model.ID).
		Msg("Deployment model replaced")
	return deployment, nil
}
