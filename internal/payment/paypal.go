package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/beach-seat-reservation/internal/apperr"
)

const providerPayPal = "paypal"

// PayPalClient calls the PayPal orders v2 REST API. The OAuth access token is
// cached until shortly before it expires.
type PayPalClient struct {
	baseURL      string
	clientID     string
	clientSecret string
	http         *http.Client

	mu       sync.Mutex
	token    string
	tokenExp time.Time
	now      func() time.Time
}

func NewPayPalClient(baseURL, clientID, clientSecret string, hc *http.Client) *PayPalClient {
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &PayPalClient{
		baseURL:      strings.TrimRight(baseURL, "/"),
		clientID:     clientID,
		clientSecret: clientSecret,
		http:         hc,
		now:          time.Now,
	}
}

type paypalAmount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type paypalPurchaseUnit struct {
	Amount paypalAmount `json:"amount"`
}

type paypalOrderRequest struct {
	Intent        string               `json:"intent"`
	PurchaseUnits []paypalPurchaseUnit `json:"purchase_units"`
}

type paypalOrder struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Links  []Link `json:"links"`
}

type paypalError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Error   string `json:"error"`
	Desc    string `json:"error_description"`
}

func (c *PayPalClient) CreateOrder(ctx context.Context, amountMinor int64, currency string) (Order, error) {
	req := paypalOrderRequest{
		Intent: "CAPTURE",
		PurchaseUnits: []paypalPurchaseUnit{{Amount: paypalAmount{
			CurrencyCode: strings.ToUpper(currency),
			Value:        fmt.Sprintf("%d.%02d", amountMinor/100, amountMinor%100),
		}}},
	}

	var out paypalOrder
	if _, err := c.call(ctx, http.MethodPost, "/v2/checkout/orders", req, &out); err != nil {
		return Order{}, err
	}
	return Order{ID: out.ID, Status: out.Status, Links: out.Links}, nil
}

func (c *PayPalClient) CaptureOrder(ctx context.Context, id string) (Capture, error) {
	var out paypalOrder
	raw, err := c.call(ctx, http.MethodPost, "/v2/checkout/orders/"+url.PathEscape(id)+"/capture", nil, &out)
	if err != nil {
		return Capture{}, err
	}
	return Capture{ID: out.ID, Status: out.Status, Raw: raw}, nil
}

func (c *PayPalClient) call(ctx context.Context, method, path string, in, out any) (json.RawMessage, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	var body io.Reader = http.NoBody
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, apperr.Gateway(providerPayPal, "encode request", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, apperr.Gateway(providerPayPal, "build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	raw, status, err := c.send(req, out)
	if status == http.StatusUnauthorized {
		c.mu.Lock()
		c.token = ""
		c.mu.Unlock()
	}
	return raw, err
}

// accessToken returns a cached client-credentials token or fetches a new one.
func (c *PayPalClient) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Before(c.tokenExp) {
		return c.token, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", apperr.Gateway(providerPayPal, "build token request", err)
	}
	req.SetBasicAuth(c.clientID, c.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var out struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if _, _, err := c.send(req, &out); err != nil {
		return "", err
	}
	if out.AccessToken == "" {
		return "", apperr.Gateway(providerPayPal, "empty access token", nil)
	}

	// refresh a minute early so a token never expires mid-request
	ttl := time.Duration(out.ExpiresIn)*time.Second - time.Minute
	if ttl < 0 {
		ttl = 0
	}
	c.token = out.AccessToken
	c.tokenExp = c.now().Add(ttl)
	return c.token, nil
}

func (c *PayPalClient) send(req *http.Request, out any) (json.RawMessage, int, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, apperr.Gateway(providerPayPal, "request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, resp.StatusCode, apperr.Gateway(providerPayPal, "read response", err)
	}
	if resp.StatusCode >= 300 {
		var pe paypalError
		msg := resp.Status
		if json.Unmarshal(raw, &pe) == nil {
			switch {
			case pe.Message != "":
				msg = pe.Message
			case pe.Desc != "":
				msg = pe.Desc
			}
		}
		return nil, resp.StatusCode, apperr.Gateway(providerPayPal, msg, fmt.Errorf("http %d", resp.StatusCode))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return nil, resp.StatusCode, apperr.Gateway(providerPayPal, "decode response", err)
	}
	return raw, resp.StatusCode, nil
}
