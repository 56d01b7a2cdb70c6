package loadgen

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/sugawarayuuta/sonnet"

	"github.com/okian/ladder/internal/domain/types"
)

// client talks to the API as one player.
type client struct {
	http    *http.Client
	baseURL string
}

type apiError struct {
	Status  int
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("status %d: %s: %s", e.Status, e.Code, e.Message)
}

func (c *client) do(ctx context.Context, method, path, token string, in, out interface{}) error {
	var body io.Reader = http.NoBody
	if in != nil {
		raw, err := sonnet.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &apiError{Status: resp.StatusCode}
		_ = sonnet.Unmarshal(raw, apiErr)
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := sonnet.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (c *client) health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", "", nil, nil)
}

func (c *client) submit(ctx context.Context, token string, s scoreBody) (types.SubmitResult, error) {
	var res types.SubmitResult
	err := c.do(ctx, http.MethodPost, "/scores", token, s, &res)
	return res, err
}

func (c *client) page(ctx context.Context, token string, limit, offset int) (types.Page, error) {
	q := url.Values{}
	q.Set("timeframe", string(types.AllTime))
	q.Set("limit", fmt.Sprint(limit))
	q.Set("offset", fmt.Sprint(offset))
	var page types.Page
	err := c.do(ctx, http.MethodGet, "/leaderboard?"+q.Encode(), token, nil, &page)
	return page, err
}

func (c *client) surround(ctx context.Context, token string) (types.Surround, error) {
	var s types.Surround
	err := c.do(ctx, http.MethodGet, "/leaderboard/player?timeframe="+string(types.AllTime), token, nil, &s)
	return s, err
}
