package rankcheck

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/akashca-pro/codex-problem-service-sub000/internal/domain/types"
	"github.com/akashca-pro/codex-problem-service-sub000/pkg/logger"
)

const maxRetries = 20

// client talks to the rankd HTTP API.
type client struct {
	base string
	http *http.Client
}

func newClient(cfg *Config) *client {
	return &client{
		base: cfg.BaseURL,
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *client) do(ctx context.Context, method, path string, body, out any) (int, error) {
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("marshal %s %s: %w", method, path, err)
		}
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return 0, fmt.Errorf("build %s %s: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return resp.StatusCode, fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, bytes.TrimSpace(msg))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode %s %s: %w", method, path, err)
		}
	}
	return resp.StatusCode, nil
}

// submitAll posts every submission with cfg.Workers requests in flight.
// Backpressure answers are retried with a growing delay.
func (c *client) submitAll(ctx context.Context, cfg *Config, subs []submission, stats *Stats, log logger.Logger) error {
	var accepted, duplicate, failed, throttled atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)

	for i := range subs {
		s := subs[i]
		g.Go(func() error {
			for attempt := 0; ; attempt++ {
				status, err := c.do(ctx, http.MethodPost, "/submissions", s, nil)
				switch {
				case err == nil && status == http.StatusOK:
					duplicate.Add(1)
					return nil
				case err == nil:
					accepted.Add(1)
					return nil
				case status == http.StatusTooManyRequests && attempt < maxRetries:
					throttled.Add(1)
					select {
					case <-ctx.Done():
						return ctx.Err()
					case <-time.After(time.Duration(attempt+1) * 10 * time.Millisecond):
					}
				case status >= 500 || status == 0:
					// Transport failures abort the run.
					return err
				default:
					failed.Add(1)
					log.Debug(ctx, "submission rejected", logger.String("submission_id", s.SubmissionID), logger.Error(err))
					return nil
				}
			}
		})
	}
	err := g.Wait()
	stats.Accepted = int(accepted.Load())
	stats.Duplicate = int(duplicate.Load())
	stats.Failed = int(failed.Load())
	stats.Throttled = int(throttled.Load())
	return err
}

func (c *client) leaderboard(ctx context.Context, entity string, limit int) (types.Leaderboard, error) {
	path := "/leaderboard"
	if entity != "" {
		path += "/" + url.PathEscape(entity)
	}
	var lb types.Leaderboard
	_, err := c.do(ctx, http.MethodGet, path+"?limit="+strconv.Itoa(limit), nil, &lb)
	return lb, err
}

func (c *client) user(ctx context.Context, id string) (types.User, error) {
	var u types.User
	_, err := c.do(ctx, http.MethodGet, "/users/"+url.PathEscape(id), nil, &u)
	return u, err
}

func (c *client) stats(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	_, err := c.do(ctx, http.MethodGet, "/stats", nil, &out)
	return out, err
}

func (c *client) resync(ctx context.Context) (types.ResyncResult, int, error) {
	var res types.ResyncResult
	status, err := c.do(ctx, http.MethodPost, "/admin/resync", nil, &res)
	return res, status, err
}
