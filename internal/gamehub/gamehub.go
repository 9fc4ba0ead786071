// Package gamehub reports finished draws to an external game-tracking
// service.
package gamehub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"

	"roulette/internal/models"
)

// StartGame describes one game as the hub sees it: two parties and a score
// for each.
type StartGame struct {
	GameID         models.Identity `json:"gameId"`
	SessionID      uint32          `json:"sessionId"`
	PlayerOne      models.Identity `json:"player1"`
	PlayerTwo      models.Identity `json:"player2"`
	PlayerOneScore int64           `json:"player1Points"`
	PlayerTwoScore int64           `json:"player2Points"`
}

// EndGame closes a game. PlayerTwoWon marks the second party as the winner.
type EndGame struct {
	SessionID    uint32 `json:"sessionId"`
	PlayerTwoWon bool   `json:"player2Won"`
}

// ErrInvalidAddress is returned for hub addresses that are not http(s) URLs.
var ErrInvalidAddress = errors.New("invalid hub address")

// IdempotencyHeader carries a key that is the same every time a given game
// is started or ended, so the hub can drop repeats of a call it already
// applied.
const IdempotencyHeader = "Idempotency-Key"

// Client talks to a game hub. Calls are synchronous and never retried.
type Client interface {
	StartGame(ctx context.Context, req StartGame) error
	EndGame(ctx context.Context, req EndGame) error
}

// Dialer builds a client for the hub at address.
type Dialer func(address string) (Client, error)

// HTTPClient is a Client speaking JSON over HTTP.
type HTTPClient struct {
	base *url.URL
	http *http.Client
}

// NewHTTPClient validates address and returns a client for it.
func NewHTTPClient(address string, timeout time.Duration) (*HTTPClient, error) {
	u, err := url.Parse(address)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidAddress, "%q: %v", address, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, errors.Wrapf(ErrInvalidAddress, "%q: want an http(s) URL", address)
	}

	u.Path = strings.TrimSuffix(u.Path, "/")
	return &HTTPClient{base: u, http: &http.Client{Timeout: timeout}}, nil
}

// HTTPDialer returns a Dialer producing HTTPClients with timeout.
func HTTPDialer(timeout time.Duration) Dialer {
	return func(address string) (Client, error) {
		return NewHTTPClient(address, timeout)
	}
}

// StartGame implements Client.
func (c *HTTPClient) StartGame(ctx context.Context, req StartGame) error {
	return c.post(ctx, "/games/start", fmt.Sprintf("start/%s/%d", req.GameID, req.SessionID), req)
}

// EndGame implements Client.
func (c *HTTPClient) EndGame(ctx context.Context, req EndGame) error {
	return c.post(ctx, "/games/end", fmt.Sprintf("end/%d", req.SessionID), req)
}

func (c *HTTPClient) post(ctx context.Context, path, key string, body interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "failed to encode request")
	}

	u := *c.base
	u.Path += path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(data))
	if err != nil {
		return errors.Wrap(err, "failed to build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(IdempotencyHeader, key)

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "POST %s", path)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := ioutil.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("POST %s: hub answered %d: %s", path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}
