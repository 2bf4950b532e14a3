package datarobot

import (
	"context"
	"fmt"

	"github.com/reverbdotcom/datarobot-2.25.1-sub000/pkg/pagination"
)

// Featurelist names a subset of a project's features to train on.
type Featurelist struct {
	ID        string   `json:"id"`
	ProjectID string   `json:"projectId"`
	Name      string   `json:"name"`
	Features  []string `json:"features"`
}

// CreateFeaturelist creates a featurelist. Unlike most writes this one
// is synchronous: the platform answers with the created resource's
// Location directly, so there is nothing to poll.
func (c *Client) CreateFeaturelist(ctx context.Context, projectID, name string, features []string) (*Featurelist, error) {
	payload := map[string]any{
		"name":     name,
		"features": features,
	}
	resp, err := c.api.Post(ctx, "projects/"+projectID+"/featurelists/", payload)
	if err != nil {
		return nil, fmt.Errorf("create featurelist in project %s: %w", projectID, err)
	}
	location, err := responseLocation(resp)
	if err != nil {
		return nil, fmt.Errorf("create featurelist in project %s: %w", projectID, err)
	}

	var featurelist Featurelist
	if err := c.api.GetJSON(ctx, location, nil, &featurelist); err != nil {
		return nil, fmt.Errorf("create featurelist in project %s: %w", projectID, err)
	}
	return &featurelist, nil
}

// GetFeaturelist fetches a featurelist by id.
func (c *Client) GetFeaturelist(ctx context.Context, projectID, featurelistID string) (*Featurelist, error) {
	var featurelist Featurelist
	path := "projects/" + projectID + "/featurelists/" + featurelistID + "/"
	if err := c.api.GetJSON(ctx, path, nil, &featurelist); err != nil {
		return nil, fmt.Errorf("get featurelist %s: %w", featurelistID, err)
	}
	return &featurelist, nil
}

// ListFeaturelists fetches every featurelist in a project.
func (c *Client) ListFeaturelists(ctx context.Context, projectID string) ([]Featurelist, error) {
	featurelists, err := pagination.Collect[Featurelist](ctx, c.api, "projects/"+projectID+"/featurelists/", nil)
	if err != nil {
		return nil, fmt.Errorf("list featurelists in project %s: %w", projectID, err)
	}
	return featurelists, nil
}
