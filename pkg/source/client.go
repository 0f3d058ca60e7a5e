// Package source fetches scanning data: the player's own view from the game
// API, and the merged view of every player from an np-scanner server.
package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"mapembed/pkg/reconcile"
	"mapembed/pkg/types"
)

var (
	ErrUnauthorized         = errors.New("access code rejected")
	ErrUnsuccessfulResponse = errors.New("response returned non-200 status code")
)

const (
	DefaultGameEndpoint = "https://np.ironhelmet.com/api"
	userAgent           = "mapembed by np-scanner users"
)

type Request struct {
	GameNumber string
	APIKey     string
}

// NewLimiter allows one request per interval with a small burst.
func NewLimiter(interval time.Duration) *rate.Limiter {
	return rate.NewLimiter(rate.Every(interval), 3)
}

// --- Scanner ---

// ScannerClient reads the merged snapshot an np-scanner server builds from
// every registered player's API key.
type ScannerClient struct {
	BaseURL string
	HTTP    *http.Client
	Limiter *rate.Limiter
}

func NewScannerClient(baseURL string, base *http.Client) *ScannerClient {
	return &ScannerClient{
		BaseURL: baseURL,
		HTTP:    base,
		Limiter: NewLimiter(time.Second),
	}
}

func (c *ScannerClient) Snapshot(ctx context.Context, request *Request) (*types.APIResponse, error) {
	query := url.Values{}
	query.Set("access_code", request.APIKey)

	target := fmt.Sprintf("%s/api/matches/%s/merged-snapshot?%s",
		strings.TrimRight(c.BaseURL, "/"),
		url.PathEscape(request.GameNumber),
		query.Encode(),
	)
	return fetch(ctx, c.HTTP, c.Limiter, target)
}

// --- Game API ---

// GameClient reads the player's own scanning data.
type GameClient struct {
	Endpoint string
	HTTP     *http.Client
	Limiter  *rate.Limiter
}

func NewGameClient(endpoint string, base *http.Client) *GameClient {
	if endpoint == "" {
		endpoint = DefaultGameEndpoint
	}
	return &GameClient{
		Endpoint: endpoint,
		HTTP:     base,
		Limiter:  NewLimiter(time.Minute),
	}
}

func (c *GameClient) State(ctx context.Context, request *Request) (*types.APIResponse, error) {
	data := url.Values{}
	data.Set("api_version", "0.1")
	data.Set("game_number", request.GameNumber)
	data.Set("code", request.APIKey)

	return fetch(ctx, c.HTTP, c.Limiter, c.Endpoint+"?"+data.Encode())
}

// --- Transport ---

func fetch(ctx context.Context, client *http.Client, limiter *rate.Limiter, target string) (*types.APIResponse, error) {
	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}
	if client == nil {
		client = http.DefaultClient
	}

	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	httpRequest.Header.Set("User-Agent", userAgent)

	httpResp, err := client.Do(httpRequest)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(httpResp.Body, 256))
		base := ErrUnsuccessfulResponse
		if httpResp.StatusCode == http.StatusUnauthorized {
			base = ErrUnauthorized
		}
		return nil, fmt.Errorf("%w: %d %s", base, httpResp.StatusCode, strings.TrimSpace(string(body)))
	}

	apiResponse := &types.APIResponse{}
	if err := json.NewDecoder(httpResp.Body).Decode(apiResponse); err != nil {
		return nil, fmt.Errorf("decode scanning data: %w", err)
	}

	if apiResponse.Error != "" {
		return nil, &reconcile.SnapshotError{Message: apiResponse.Error}
	}

	return apiResponse, nil
}
