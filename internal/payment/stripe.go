package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/iliyamo/beach-seat-reservation/internal/apperr"
)

const providerStripe = "stripe"

// StripeClient calls the Stripe payment intents REST API.
type StripeClient struct {
	baseURL   string
	secretKey string
	http      *http.Client
}

func NewStripeClient(baseURL, secretKey string, hc *http.Client) *StripeClient {
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &StripeClient{baseURL: strings.TrimRight(baseURL, "/"), secretKey: secretKey, http: hc}
}

type stripeIntent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
	Status       string `json:"status"`
}

func (s stripeIntent) intent() Intent {
	return Intent{ID: s.ID, ClientSecret: s.ClientSecret, Amount: s.Amount, Currency: s.Currency, Status: s.Status}
}

type stripeError struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *StripeClient) CreateIntent(ctx context.Context, amountMinor int64, currency string) (Intent, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(amountMinor, 10))
	form.Set("currency", strings.ToLower(currency))
	form.Set("automatic_payment_methods[enabled]", "true")

	var out stripeIntent
	if err := c.do(ctx, http.MethodPost, "/v1/payment_intents", form, &out); err != nil {
		return Intent{}, err
	}
	return out.intent(), nil
}

func (c *StripeClient) UpdateIntent(ctx context.Context, id string, amountMinor int64) (Intent, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(amountMinor, 10))

	var out stripeIntent
	if err := c.do(ctx, http.MethodPost, "/v1/payment_intents/"+url.PathEscape(id), form, &out); err != nil {
		return Intent{}, err
	}
	return out.intent(), nil
}

func (c *StripeClient) IntentStatus(ctx context.Context, id string) (string, error) {
	var out stripeIntent
	if err := c.do(ctx, http.MethodGet, "/v1/payment_intents/"+url.PathEscape(id), nil, &out); err != nil {
		return "", err
	}
	return out.Status, nil
}

func (c *StripeClient) do(ctx context.Context, method, path string, form url.Values, out any) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return apperr.Gateway(providerStripe, "build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return apperr.Gateway(providerStripe, "request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return apperr.Gateway(providerStripe, "read response", err)
	}
	if resp.StatusCode >= 300 {
		var se stripeError
		msg := resp.Status
		if json.Unmarshal(raw, &se) == nil && se.Error.Message != "" {
			msg = se.Error.Message
		}
		return apperr.Gateway(providerStripe, msg, fmt.Errorf("http %d", resp.StatusCode))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return apperr.Gateway(providerStripe, "decode response", err)
	}
	return nil
}
