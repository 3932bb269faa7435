package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"finsync/internal/config"
	"finsync/internal/models"
	"finsync/internal/syncerr"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"
)

// Client talks to the account aggregation service. Requests are rate limited
// client-side and authenticated with OAuth2 client credentials.
type Client struct {
	http    *http.Client
	baseURL string
	limiter *rate.Limiter
	logger  *zerolog.Logger
}

func NewClient(cfg config.AggregatorConfig, logger *zerolog.Logger) *Client {
	httpClient := &http.Client{Timeout: cfg.Timeout.Std()}
	if cfg.TokenURL != "" {
		cc := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
		}
		httpClient = cc.Client(context.Background())
		httpClient.Timeout = cfg.Timeout.Std()
	}

	return &Client{
		http:    httpClient,
		baseURL: cfg.BaseURL,
		limiter: rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst),
		logger:  logger,
	}
}

// Accounts fetches the current remote view of all linked accounts.
func (c *Client) Accounts(ctx context.Context) ([]models.Account, error) {
	var out struct {
		Accounts []models.Account `json:"accounts"`
	}
	if err := c.get(ctx, "/v1/accounts", nil, &out); err != nil {
		return nil, err
	}
	return out.Accounts, nil
}

// Transactions fetches transactions for one account, optionally bounded to
// those updated at or after since.
func (c *Client) Transactions(ctx context.Context, accountID string, since time.Time) ([]models.Transaction, error) {
	if accountID == "" {
		return nil, syncerr.Validation("account id is required", nil)
	}
	query := url.Values{}
	if !since.IsZero() {
		query.Set("since", since.UTC().Format(time.RFC3339))
	}
	var out struct {
		Transactions []models.Transaction `json:"transactions"`
	}
	path := "/v1/accounts/" + url.PathEscape(accountID) + "/transactions"
	if err := c.get(ctx, path, query, &out); err != nil {
		return nil, err
	}
	return out.Transactions, nil
}

// Notification is an upstream alert the app surfaces to the user.
type Notification struct {
	ID        string    `json:"id"`
	AccountID string    `json:"account_id,omitempty"`
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Notifications fetches pending upstream alerts.
func (c *Client) Notifications(ctx context.Context) ([]Notification, error) {
	var out struct {
		Notifications []Notification `json:"notifications"`
	}
	if err := c.get(ctx, "/v1/notifications", nil, &out); err != nil {
		return nil, err
	}
	return out.Notifications, nil
}

// Goal is a savings target tracked upstream.
type Goal struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	TargetAmount  float64   `json:"target_amount"`
	CurrentAmount float64   `json:"current_amount"`
	Deadline      time.Time `json:"deadline,omitempty"`
}

// Goals fetches the user's savings goals.
func (c *Client) Goals(ctx context.Context) ([]Goal, error) {
	var out struct {
		Goals []Goal `json:"goals"`
	}
	if err := c.get(ctx, "/v1/goals", nil, &out); err != nil {
		return nil, err
	}
	return out.Goals, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return syncerr.Timeout("rate limiter wait aborted", err)
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return syncerr.Validation("failed to build request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return syncerr.Timeout("aggregator request timed out", err)
		}
		return syncerr.Network("aggregator request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.statusError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return syncerr.Validation("failed to decode aggregator response", err)
	}
	return nil
}

func (c *Client) statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	msg := fmt.Sprintf("aggregator returned %d: %s", resp.StatusCode, string(body))

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return syncerr.Auth(msg, nil)
	case resp.StatusCode == http.StatusTooManyRequests:
		return syncerr.RateLimited(msg, parseRetryAfter(resp.Header.Get("Retry-After")), nil)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return syncerr.Validation(msg, nil)
	default:
		return syncerr.Network(msg, nil)
	}
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(header); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}
