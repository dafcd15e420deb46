package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/devclassik/harmoney-backend-sub000/internal/config"
	"github.com/devclassik/harmoney-backend-sub000/internal/logging"
)

const (
	tokenSkew        = 60 * time.Second
	defaultTokenLife = 40 * time.Minute
	responseOK       = "00"
)

var pendingCodes = map[string]bool{"09": true, "99": true}

// Client is the long-lived HTTP adapter for the payment rail. It caches the client-credentials
// access token and refreshes it shortly before expiry or when the rail answers 401.
type Client struct {
	baseURL      string
	clientID     string
	clientSecret string
	http         *http.Client
	logger       *slog.Logger

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
	now         func() time.Time
}

// NewClient builds the HTTP gateway adapter.
func NewClient(cfg config.GatewayConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = logging.Discard()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		http:         &http.Client{Timeout: timeout},
		logger:       logger,
		now:          time.Now,
	}
}

type envelope struct {
	StatusCode   int             `json:"statusCode"`
	ResponseCode string          `json:"responseCode"`
	Message      string          `json:"message"`
	Data         json.RawMessage `json:"data"`
}

// Purchase submits a VAS or bill payment.
func (c *Client) Purchase(ctx context.Context, req PurchaseRequest) (Result, error) {
	payload := make(map[string]any, len(req.Fields)+2)
	for k, v := range req.Fields {
		payload[k] = v
	}
	// Caller fields never override what was reserved and recorded in the ledger.
	payload["reference"] = req.Reference
	payload["amount"] = req.Amount.StringFixed(2)
	env, status, err := c.do(ctx, http.MethodPost, "/vas/pay/"+url.PathEscape(req.Service), payload)
	if err != nil {
		return Result{}, err
	}
	return toResult(env, status), nil
}

// AccountLookup performs a name enquiry on the account.
func (c *Client) AccountLookup(ctx context.Context, accountNumber, bankCode string) (Account, error) {
	env, status, err := c.do(ctx, http.MethodPost, "/transfers/name-enquiry", map[string]string{
		"accountNumber": accountNumber,
		"bankCode":      bankCode,
	})
	if err != nil {
		return Account{}, err
	}
	if status == http.StatusNotFound || env.ResponseCode != responseOK {
		return Account{}, ErrAccountNotFound
	}

	var data struct {
		AccountName string `json:"accountName"`
		SessionID   string `json:"sessionId"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil || data.AccountName == "" {
		return Account{}, ErrAccountNotFound
	}
	return Account{AccountNumber: accountNumber, BankCode: bankCode, AccountName: data.AccountName, SessionID: data.SessionID}, nil
}

// QueryTransaction fetches the rail's view of a submitted reference.
func (c *Client) QueryTransaction(ctx context.Context, reference string) (Result, error) {
	env, status, err := c.do(ctx, http.MethodGet, "/vas/transaction/"+url.PathEscape(reference), nil)
	if err != nil {
		return Result{}, err
	}
	if status == http.StatusNotFound {
		return Result{}, ErrTransactionNotFound
	}
	return toResult(env, status), nil
}

func (c *Client) do(ctx context.Context, method, path string, body any) (envelope, int, error) {
	env, status, err := c.send(ctx, method, path, body)
	if err == nil && status == http.StatusUnauthorized {
		c.invalidateToken()
		env, status, err = c.send(ctx, method, path, body)
	}
	return env, status, err
}

func (c *Client) send(ctx context.Context, method, path string, body any) (envelope, int, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return envelope{}, 0, err
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return envelope{}, 0, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return envelope{}, 0, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("ClientID", c.clientID)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return envelope{}, 0, classify(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.Warn("gateway error response", "path", path, "status", resp.StatusCode, "body", string(raw))
		return envelope{}, resp.StatusCode, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusUnauthorized {
		return envelope{StatusCode: resp.StatusCode}, resp.StatusCode, nil
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil && !errors.Is(err, io.EOF) {
		return envelope{}, resp.StatusCode, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	if env.StatusCode == 0 {
		env.StatusCode = resp.StatusCode
	}
	return env, resp.StatusCode, nil
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", classify(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("%w: token request failed with %d: %s", ErrUnavailable, resp.StatusCode, string(raw))
	}

	var res struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return "", fmt.Errorf("%w: decode token: %v", ErrUnavailable, err)
	}
	if res.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access token", ErrUnavailable)
	}

	life := defaultTokenLife
	if res.ExpiresIn > 0 {
		life = time.Duration(res.ExpiresIn) * time.Second
	}
	if life > 2*tokenSkew {
		life -= tokenSkew
	}
	c.token = res.AccessToken
	c.tokenExpiry = c.now().Add(life)
	return c.token, nil
}

func (c *Client) invalidateToken() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

func classify(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

func toResult(env envelope, httpStatus int) Result {
	res := Result{Code: env.ResponseCode, Message: env.Message}
	if len(env.Data) > 0 {
		_ = json.Unmarshal(env.Data, &res.Data)
	}
	res.ProviderRef = providerRef(res.Data)

	switch {
	case httpStatus < 200 || httpStatus > 299:
		res.Status = StatusFailed
	case env.ResponseCode == responseOK:
		res.Status = StatusSuccessful
	case pendingCodes[env.ResponseCode]:
		res.Status = StatusPending
	default:
		res.Status = StatusFailed
	}
	if status, ok := res.Data["status"].(string); ok && res.Status == StatusSuccessful {
		switch strings.ToLower(status) {
		case "failed":
			res.Status = StatusFailed
		case "reversed":
			res.Status = StatusReversed
		case "processing", "pending":
			res.Status = StatusPending
		}
	}
	return res
}

func providerRef(data map[string]any) string {
	for _, key := range []string{"_id", "id", "sessionId", "paymentReference"} {
		if v, ok := data[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
