package mpesa

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Config carries the Daraja credentials and endpoints. All URLs are
// absolute; sandbox vs production is a deployment concern.
type Config struct {
	StkPushURL     string
	TokenURL       string
	StkQueryURL    string
	B2CURL         string
	ShortCode      string
	Passkey        string
	ConsumerKey    string
	ConsumerSecret string
	CallbackURL    string
	InitiatorName  string
}

// Client talks to the M-Pesa Daraja API. Access tokens are cached and
// refreshed shortly before expiry; every call honors the caller's context
// deadline.
type Client struct {
	cfg        Config
	httpClient *http.Client

	mu       sync.Mutex
	token    string
	tokenExp time.Time
}

func NewClient(cfg Config) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// tokenRefreshMargin keeps a cached token from being used right at its
// expiry edge.
const tokenRefreshMargin = 60 * time.Second

func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExp.Add(-tokenRefreshMargin)) {
		return c.token, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.TokenURL, nil)
	if err != nil {
		return "", fmt.Errorf("token request: %w", err)
	}
	credentials := base64.StdEncoding.EncodeToString([]byte(c.cfg.ConsumerKey + ":" + c.cfg.ConsumerSecret))
	req.Header.Set("Authorization", "Basic "+credentials)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token request failed: http=%d body=%s", resp.StatusCode, string(raw))
	}

	var res struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   string `json:"expires_in"`
	}
	if err := json.Unmarshal(raw, &res); err != nil {
		return "", fmt.Errorf("token decode: %w body=%s", err, string(raw))
	}

	ttl := 3600
	if n, err := strconv.Atoi(res.ExpiresIn); err == nil && n > 0 {
		ttl = n
	}

	c.token = res.AccessToken
	c.tokenExp = time.Now().Add(time.Duration(ttl) * time.Second)
	return c.token, nil
}

func (c *Client) timestamp() string {
	return time.Now().Format(transactionDateLayout)
}

// password is the Daraja request credential: base64(shortcode+passkey+ts).
func (c *Client) password(timestamp string) string {
	raw := c.cfg.ShortCode + c.cfg.Passkey + timestamp
	return base64.StdEncoding.EncodeToString([]byte(raw))
}

func (c *Client) postJSON(ctx context.Context, url string, payload any, out any) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}

	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("mpesa call failed: http=%d body=%s", resp.StatusCode, string(raw))
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("mpesa decode: %w body=%s", err, string(raw))
	}
	return nil
}

// STKPush submits a charge prompt to the payer's phone. The returned
// CheckoutRequestID correlates the eventual callback or query result.
func (c *Client) STKPush(ctx context.Context, phoneNumber string, amount float64, description string) (*STKPushResponse, error) {
	ts := c.timestamp()
	payload := map[string]any{
		"BusinessShortCode": c.cfg.ShortCode,
		"Password":          c.password(ts),
		"Timestamp":         ts,
		"TransactionType":   "CustomerPayBillOnline",
		"Amount":            amount,
		"PartyA":            phoneNumber,
		"PartyB":            c.cfg.ShortCode,
		"PhoneNumber":       phoneNumber,
		"CallBackURL":       c.cfg.CallbackURL,
		"AccountReference":  "SpinWish",
		"TransactionDesc":   description,
	}

	var res STKPushResponse
	if err := c.postJSON(ctx, c.cfg.StkPushURL, payload, &res); err != nil {
		return nil, fmt.Errorf("stk push: %w", err)
	}
	if res.CheckoutRequestID == "" {
		return nil, fmt.Errorf("stk push: provider returned no CheckoutRequestID")
	}
	return &res, nil
}

// QueryStatus asks the provider for the current outcome of a charge.
func (c *Client) QueryStatus(ctx context.Context, checkoutRequestID string) (*QueryResponse, error) {
	ts := c.timestamp()
	payload := map[string]any{
		"BusinessShortCode": c.cfg.ShortCode,
		"Password":          c.password(ts),
		"Timestamp":         ts,
		"CheckoutRequestID": checkoutRequestID,
	}

	var res QueryResponse
	if err := c.postJSON(ctx, c.cfg.StkQueryURL, payload, &res); err != nil {
		return nil, fmt.Errorf("stk query: %w", err)
	}
	return &res, nil
}

// B2CPayout pushes money back to a subscriber, used for refunds. The call
// is synchronous from the caller's point of view; there is no retry here.
func (c *Client) B2CPayout(ctx context.Context, phoneNumber string, amount float64, remarks string) (*B2CResult, error) {
	payload := map[string]any{
		"InitiatorName": c.cfg.InitiatorName,
		"CommandID":     "BusinessPayment",
		"Amount":        amount,
		"PartyA":        c.cfg.ShortCode,
		"PartyB":        phoneNumber,
		"Remarks":       remarks,
	}

	var res B2CResult
	if err := c.postJSON(ctx, c.cfg.B2CURL, payload, &res); err != nil {
		return nil, fmt.Errorf("b2c payout: %w", err)
	}
	if res.ResponseCode != "0" {
		return nil, fmt.Errorf("b2c payout rejected: code=%s desc=%s", res.ResponseCode, res.ResponseDescription)
	}
	return &res, nil
}
