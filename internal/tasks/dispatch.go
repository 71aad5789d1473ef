package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hotelly/hotelly/internal/apperr"
)

// Client dispatches tasks to the managed queue over HTTP. It is the
// only way the ingress, and the worker for send-response tasks, get
// work onto the worker: every call
// goes through Enqueue, which mints a fresh OIDC identity token per
// request via Minter.
type Client struct {
	httpClient   *http.Client
	queueBaseURL string
	minter       *Minter
}

// NewClient builds a dispatch client with a bounded-timeout transport,
// matching the connector pattern used throughout the payment and
// identity packages: short-lived http.Client per dependency, not a
// shared global client.
func NewClient(queueBaseURL string, minter *Minter) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     60 * time.Second,
			},
		},
		queueBaseURL: queueBaseURL,
		minter:       minter,
	}
}

// enqueueRequest is the body posted to the managed queue's create-task
// API. The queue itself performs the actual scheduling and delivery;
// this client only registers the task under its deterministic name.
type enqueueRequest struct {
	Name      string          `json:"name"`
	TargetURL string          `json:"target_url"`
	Audience  string          `json:"audience"`
	Payload   json.RawMessage `json:"payload"`
}

// Enqueue implements spec §4.8's "deterministic task name" contract:
// a 409/"already exists" response from the queue is treated as
// success, since the task was already scheduled by an earlier
// attempt.
func (c *Client) Enqueue(ctx context.Context, taskID, targetURL string, payload []byte) (Outcome, error) {
	token, err := c.minter.Mint(ctx, targetURL)
	if err != nil {
		return 0, err
	}

	body, err := json.Marshal(enqueueRequest{
		Name:      taskID,
		TargetURL: targetURL,
		Audience:  targetURL,
		Payload:   payload,
	})
	if err != nil {
		return 0, apperr.Permanent(apperr.CodeSchemaMismatch, "task payload marshal failed")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.queueBaseURL+"/tasks", bytes.NewReader(body))
	if err != nil {
		return 0, apperr.Transient(apperr.CodeTransientFailure, "task enqueue request build failed", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, apperr.Transient(apperr.CodeTransientFailure, "task enqueue request failed", err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)

	switch {
	case resp.StatusCode == http.StatusCreated || resp.StatusCode == http.StatusOK:
		return OutcomeEnqueued, nil
	case resp.StatusCode == http.StatusConflict:
		return OutcomeAlreadyExists, nil
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return 0, apperr.Transient(apperr.CodeTransientFailure, "task queue transient error", fmt.Errorf("status %d: %s", resp.StatusCode, respBody))
	default:
		return 0, apperr.Permanent(apperr.CodeProviderRejected, fmt.Sprintf("task queue rejected enqueue: status %d", resp.StatusCode))
	}
}
