package datarobot

import (
	"context"
	"fmt"
	"time"

	"github.com/reverbdotcom/datarobot-2.25.1-sub000/pkg/pagination"
)

// Project is a modeling project.
type Project struct {
	ID          string `json:"id"`
	ProjectName string `json:"projectName"`
	FileName    string `json:"fileName"`
	Stage       string `json:"stage"`
	Target      string `json:"target"`
	Metric      string `json:"metric"`
	Created     string `json:"created"`
}

// CreateProject uploads a dataset by URL and waits for the platform to
// finish ingesting it. projectName is optional.
func (c *Client) CreateProject(ctx context.Context, dataURL, projectName string, maxWait time.Duration) (*Project, error) {
	payload := map[string]string{"url": dataURL}
	if projectName != "" {
		payload["projectName"] = projectName
	}

	resp, err := c.api.Post(ctx, "projects/", payload)
	if err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	statusURL, err := responseLocation(resp)
	if err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}

	var project Project
	if err := c.resolveToResource(ctx, statusURL, maxWait, &project); err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	c.logger.Info().
		Str("project_id", project.ID).
		Str("project_name", project.ProjectName).
		Msg("Project created")
	return &project, nil
}

// GetProject fetches a project by id.
func (c *Client) GetProject(ctx context.Context, projectID string) (*Project, error) {
	var project Project
	if err := c.api.GetJSON(ctx, "projects/"+projectID+"/", nil, &project); err != nil {
		return nil, fmt.Errorf("get project %s: %w", projectID, err)
	}
	return &project, nil
}

// ListProjects fetches every project visible to the token.
func (c *Client) ListProjects(ctx context.Context) ([]Project, error) {
	projects, err := pagination.Collect[Project](ctx, c.api, "projects/", nil)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return projects, nil
}

// DeleteProject removes a project.
func (c *Client) DeleteProject(ctx context.Context, projectID string) error {
	resp, err := c.api.Delete(ctx, "projects/"+projectID+"/")
	if err != nil {
		return fmt.Errorf("delete project %s: %w", projectID, err)
	}
	resp.Body.Close()
	return nil
}

// SetTarget selects the target feature and starts autopilot in quick
// mode, then waits for the project to leave the aim stage.
func (c *Client) SetTarget(ctx context.Context, projectID, target string, maxWait time.Duration) (*Project, error) {
	payload := map[string]string{
		"target": target,
		"mode":   "quick",
	}
	resp, err := c.api.Patch(ctx, "projects/"+projectID+"/aim/", payload)
	if err != nil {
		return nil, fmt.Errorf("set target on project %s: %w", projectID, err)
	}
	statusURL, err := responseLocation(resp)
	if err != nil {
		return nil, fmt.Errorf("set target on project %s: %w", projectID, err)
	}

	if _, err := c.resolver.Resolve(ctx, statusURL, c.maxWait(maxWait)); err != nil {
		return nil, fmt.Errorf("set target on project %s: %w", projectID, err)
	}
	return c.GetProject(ctx, projectID)
}
