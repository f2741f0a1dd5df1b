// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package client is a Go client for the voter-facing election API.
//
// CastBallot never submits a second ballot blindly: when a submission fails
// without a response, the client asks the server whether the voter's ballot
// was recorded and resubmits only if it was not.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/danielhkuo/clubvote/middleware"
	"github.com/danielhkuo/clubvote/models"
)

const (
	defaultTimeout  = 10 * time.Second
	defaultMaxTries = 5
)

// APIError is a non-2xx response. It unwraps to the matching models.Rejection
// so errors.Is(err, models.ErrDuplicateBallot) works across the wire.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Invariant  string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("%d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

func (e *APIError) Unwrap() error {
	if e.StatusCode == http.StatusServiceUnavailable {
		return models.ErrInfrastructure
	}
	if e.Code == "" {
		return nil
	}
	return &models.Rejection{
		Kind:      models.ErrorKind(e.Code),
		Invariant: e.Invariant,
		Message:   e.Message,
	}
}

// Temporary reports whether the request may succeed if retried unchanged
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusServiceUnavailable
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	voterToken string
	newBackOff func() backoff.BackOff
	maxTries   uint
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithVoterToken sets the token issued by the identity service
func WithVoterToken(token string) Option {
	return func(c *Client) { c.voterToken = token }
}

// WithRetry overrides the backoff schedule and the attempt limit
func WithRetry(initial time.Duration, maxTries uint) Option {
	return func(c *Client) {
		c.maxTries = maxTries
		c.newBackOff = func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = initial
			b.MaxInterval = 20 * initial
			return b
		}
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		newBackOff: func() backoff.BackOff { return backoff.NewExponentialBackOff() },
		maxTries:   defaultMaxTries,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CastBallot submits the voter's selections and returns the ballot ID.
//
// Domain rejections are returned as they are. 503s and transport failures
// are retried with exponential backoff, but their outcome is unknown, so the
// next attempt first checks the voter's ballot and returns its ID if the
// earlier submission was in fact recorded.
func (c *Client) CastBallot(ctx context.Context, electionID string, selections map[models.Position]string) (string, error) {
	req := models.CastBallotRequest{Selections: make(map[string]string, len(selections))}
	for pos, candidateID := range selections {
		req.Selections[string(pos)] = candidateID
	}
	path := "/elections/" + electionID + "/ballots"

	unknown := false
	op := func() (string, error) {
		if unknown {
			status, err := c.MyBallot(ctx, electionID)
			if err != nil {
				return "", retryable(err)
			}
			if status.HasVoted {
				slog.Info("earlier ballot submission was recorded", "election_id", electionID)
				if status.Ballot != nil {
					return status.Ballot.ID, nil
				}
				return "", nil
			}
			unknown = false
		}

		var resp models.CastBallotResponse
		err := c.do(ctx, http.MethodPost, path, req, &resp)
		if err == nil {
			return resp.BallotID, nil
		}
		// A 503 may come from a failed commit acknowledgement as well
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.Temporary() {
			unknown = true
		}
		return "", retryable(err)
	}

	return backoff.Retry(ctx, op,
		backoff.WithBackOff(c.newBackOff()),
		backoff.WithMaxTries(c.maxTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			slog.Warn("ballot submission failed, retrying",
				"election_id", electionID, "error", err, "retry_in", next)
		}),
	)
}

// MyBallot reports whether the voter has voted and, if so, their ballot
func (c *Client) MyBallot(ctx context.Context, electionID string) (*models.HasVotedResponse, error) {
	var resp models.HasVotedResponse
	if err := c.do(ctx, http.MethodGet, "/elections/"+electionID+"/ballots/me", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) HasVoted(ctx context.Context, electionID string) (bool, error) {
	resp, err := c.MyBallot(ctx, electionID)
	if err != nil {
		return false, err
	}
	return resp.HasVoted, nil
}

// ActiveElection returns the open election with its candidates
func (c *Client) ActiveElection(ctx context.Context) (*models.ElectionWithCandidates, error) {
	var resp models.ElectionWithCandidates
	if err := c.do(ctx, http.MethodGet, "/elections/active", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Results(ctx context.Context, electionID string) (*models.TallyView, error) {
	var resp models.TallyView
	if err := c.do(ctx, http.MethodGet, "/elections/"+electionID+"/results", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// retryable marks every error permanent except 503s and transport failures
func retryable(err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) && !apiErr.Temporary() {
		return backoff.Permanent(err)
	}
	return err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.voterToken != "" {
		req.Header.Set(middleware.VoterTokenHeader, c.voterToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var errResp models.ErrorResponse
		if json.NewDecoder(resp.Body).Decode(&errResp) == nil {
			apiErr.Code = errResp.Code
			apiErr.Message = errResp.Message
			apiErr.Invariant = errResp.Invariant
			if apiErr.Message == "" {
				apiErr.Message = errResp.Error
			}
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
