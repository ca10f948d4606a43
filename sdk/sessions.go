package interview

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/vango-go/vai-interview/pkg/core"
	"github.com/vango-go/vai-interview/pkg/core/types"
)

type turnsResponse struct {
	Turns []types.ChatTurn `json:"turns"`
}

type elapsedRequest struct {
	Seconds int `json:"seconds"`
}

func sessionPath(sessionID, suffix string) (string, error) {
	if strings.TrimSpace(sessionID) == "" {
		return "", core.NewInvalidRequestError("session id is required")
	}
	return "/v1/sessions/" + url.PathEscape(sessionID) + suffix, nil
}

// FetchTurns returns the full ordered transcript of a session.
func (c *Client) FetchTurns(ctx context.Context, sessionID string) ([]types.ChatTurn, error) {
	path, err := sessionPath(sessionID, "/turns")
	if err != nil {
		return nil, err
	}
	var resp turnsResponse
	if err := c.do(ctx, "fetch_turns", http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Turns, nil
}

// SubmitTurn sends a user turn and returns the interviewer's reply.
func (c *Client) SubmitTurn(ctx context.Context, turn types.ChatTurn) (*types.Reply, error) {
	path, err := sessionPath(turn.SessionID, "/turns")
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(turn.Text) == "" {
		return nil, core.NewInvalidRequestError("turn text is required")
	}
	var reply types.Reply
	if err := c.do(ctx, "submit_turn", http.MethodPost, path, turn, &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}

// CreateReview asks the backend to generate the interview review.
func (c *Client) CreateReview(ctx context.Context, sessionID string) error {
	path, err := sessionPath(sessionID, "/review")
	if err != nil {
		return err
	}
	return c.do(ctx, "create_review", http.MethodPost, path, struct{}{}, nil)
}

// CreateSummary asks the backend to generate the interview summary.
func (c *Client) CreateSummary(ctx context.Context, sessionID string) error {
	path, err := sessionPath(sessionID, "/summary")
	if err != nil {
		return err
	}
	return c.do(ctx, "create_summary", http.MethodPost, path, struct{}{}, nil)
}

// PersistElapsedTime stores the final session duration in seconds.
func (c *Client) PersistElapsedTime(ctx context.Context, sessionID string, seconds int) error {
	path, err := sessionPath(sessionID, "/elapsed")
	if err != nil {
		return err
	}
	if seconds < 0 {
		return core.NewInvalidRequestError("elapsed seconds must be >= 0")
	}
	return c.do(ctx, "persist_elapsed", http.MethodPut, path, elapsedRequest{Seconds: seconds}, nil)
}
