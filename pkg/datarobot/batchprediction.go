package datarobot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/reverbdotcom/datarobot-2.25.1-sub000/pkg/async"
	"github.com/reverbdotcom/datarobot-2.25.1-sub000/pkg/backoff"
)

// BatchPredictionJob tracks a batch scoring run against a deployment.
type BatchPredictionJob struct {
	ID            string               `json:"id"`
	Status        string               `json:"status"`
	StatusDetails string               `json:"statusDetails"`
	ScoredRows    int64                `json:"scoredRows"`
	Links         BatchPredictionLinks `json:"links"`
}

// BatchPredictionLinks are the job's companion URLs. CSVUpload accepts
// the intake data; Download appears once scoring finishes.
type BatchPredictionLinks struct {
	Self      string `json:"self"`
	CSVUpload string `json:"csvUpload"`
	Download  string `json:"download"`
}

// GetBatchPredictionJob fetches a batch prediction job document.
func (c *Client) GetBatchPredictionJob(ctx context.Context, jobID string) (*BatchPredictionJob, error) {
	var job BatchPredictionJob
	if err := c.api.GetJSON(ctx, "batchPredictions/"+jobID+"/", nil, &job); err != nil {
		return nil, fmt.Errorf("get batch prediction job %s: %w", jobID, err)
	}
	return &job, nil
}

func (c *Client) createBatchPredictionJob(ctx context.Context, deploymentID string) (*BatchPredictionJob, error) {
	payload := map[string]any{
		"deploymentId": deploymentID,
		"intakeSettings": map[string]string{
			"type": "localFile",
		},
	}
	resp, err := c.api.Post(ctx, "batchPredictions/", payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var job BatchPredictionJob
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		return nil, fmt.Errorf("decode batch prediction job: %w", err)
	}
	return &job, nil
}

// ScoreBatch scores intake CSV data against a deployment and streams the
// result CSV into out. The intake upload runs concurrently with the job
// polling: the server starts scoring while data is still arriving, and a
// job that dies mid-upload cancels the upload instead of letting it run
// to the end of the reader. The upload uses a cloned transport so its
// connection state stays isolated from the polling requests.
func (c *Client) ScoreBatch(ctx context.Context, deploymentID string, intake io.Reader, out io.Writer, maxWait time.Duration) (*BatchPredictionJob, error) {
	job, err := c.createBatchPredictionJob(ctx, deploymentID)
	if err != nil {
		return nil, fmt.Errorf("score batch on deployment %s: %w", deploymentID, err)
	}
	if job.Links.CSVUpload == "" {
		return nil, fmt.Errorf("score batch on deployment %s: job %s carried no intake upload link", deploymentID, job.ID)
	}
	statusURL := job.Links.Self
	if statusURL == "" {
		statusURL = "batchPredictions/" + job.ID + "/"
	}
	c.logger.Debug().
		Str("deployment_id", deploymentID).
		Str("job_id", job.ID).
		Msg("Batch prediction job created")

	uploadCtx, cancelUpload := context.WithCancel(ctx)
	defer cancelUpload()

	uploader := c.api.Clone()
	uploadErr := make(chan error, 1)
	go func() {
		resp, err := uploader.Upload(uploadCtx, http.MethodPut, job.Links.CSVUpload, intake, "text/csv")
		if resp != nil {
			resp.Body.Close()
		}
		uploadErr <- err
	}()

	finished, pollErr := c.waitForBatchJob(ctx, statusURL, maxWait)
	if pollErr != nil {
		cancelUpload()
	}
	uerr := <-uploadErr
	if pollErr != nil {
		if uerr != nil && !errors.Is(uerr, context.Canceled) {
			return nil, fmt.Errorf("%w (intake upload also failed: %v)", pollErr, uerr)
		}
		return nil, pollErr
	}
	if uerr != nil {
		return nil, fmt.Errorf("score batch on deployment %s: upload intake: %w", deploymentID, uerr)
	}

	resp, err := c.api.Get(ctx, finished.Links.Download, nil)
	if err != nil {
		return nil, fmt.Errorf("score batch on deployment %s: download results: %w", deploymentID, err)
	}
	defer resp.Body.Close()
	if _, err := io.Copy(out, resp.Body); err != nil {
		return nil, fmt.Errorf("score batch on deployment %s: stream results: %w", deploymentID, err)
	}

	c.logger.Info().
		Str("deployment_id", deploymentID).
		Str("job_id", finished.ID).
		Int64("scored_rows", finished.ScoredRows).
		Msg("Batch scoring finished")
	return finished, nil
}

// waitForBatchJob polls a batch prediction job until it completes.
// Batch jobs publish terminal state in the document itself rather than
// via redirect, and the completed document must carry a download link.
func (c *Client) waitForBatchJob(ctx context.Context, statusURL string, maxWait time.Duration) (*BatchPredictionJob, error) {
	budget := c.maxWait(maxWait)
	cadence := c.resolver.Cadence()

	var last async.Outcome
	for attempt, elapsed := range backoff.WaitWith(ctx, budget, cadence.InitialPollDelay, cadence.MaxPollDelay) {
		outcome, err := c.resolver.Poll(ctx, statusURL)
		if err != nil {
			return nil, err
		}
		last = outcome

		switch outcome.Kind {
		case async.Completed:
			var job BatchPredictionJob
			if err := json.Unmarshal([]byte(outcome.Body), &job); err != nil {
				return nil, fmt.Errorf("decode batch prediction job: %w", err)
			}
			if job.Links.Download == "" {
				return nil, fmt.Errorf("batch prediction job %s completed without a download link", job.ID)
			}
			return &job, nil

		case async.Failed:
			return nil, &async.OperationFailedError{
				URL:    statusURL,
				Status: outcome.Status,
				Body:   outcome.Body,
			}

		case async.Redirect:
			return nil, &async.UnexpectedResponseError{
				URL:        statusURL,
				StatusCode: outcome.StatusCode,
				Body:       outcome.Body,
			}
		}

		c.logger.Debug().
			Str("status_url", statusURL).
			Str("status", outcome.Status.Status).
			Int("attempt", attempt).
			Dur("elapsed", elapsed).
			Msg("Batch prediction job still running")
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("wait for batch prediction job: %w", err)
	}
	return nil, &async.TimeoutError{
		URL:            statusURL,
		MaxWait:        budget,
		LastStatusCode: last.StatusCode,
		LastBody:       last.Body,
	}
}
