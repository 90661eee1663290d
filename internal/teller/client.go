// Package teller talks to the Teller bank-data API. Requests authenticate
// with the enrollment access token as a bearer token over an mTLS channel
// using the application certificate.
package teller

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"beep/internal/core"
	"beep/internal/log"
)

const defaultBaseURL = "https://api.teller.io"

// ErrUnauthorized means the access token was rejected, typically because the
// user disconnected the enrollment on the bank side.
var ErrUnauthorized = errors.New("teller: unauthorized")

// StatusError is a non-2xx provider response.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("teller: unexpected status %d: %s", e.Status, e.Body)
}

type Client struct {
	baseURL string
	http    *http.Client
	logger  *log.Logger
}

var _ Source = (*Client)(nil)

// Options configures a Client. CertFile and KeyFile hold the application
// certificate pair issued by the provider; both empty disables mTLS, which
// only works against the provider's sandbox.
type Options struct {
	BaseURL  string
	CertFile string
	KeyFile  string
	Timeout  time.Duration
}

func NewClient(opts Options, logger *log.Logger) (*Client, error) {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if opts.CertFile != "" || opts.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(opts.CertFile, opts.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("load client certificate: %w", err)
		}
		transport.TLSClientConfig = &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		}
	}

	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Transport: transport, Timeout: timeout},
		logger:  logger.WithComponent(log.ComponentTeller),
	}, nil
}

func (c *Client) Accounts(ctx context.Context, accessToken string) ([]core.Account, error) {
	var wire []wireAccount
	if err := c.get(ctx, accessToken, "/accounts", &wire); err != nil {
		return nil, err
	}

	accounts := make([]core.Account, 0, len(wire))
	for _, w := range wire {
		accounts = append(accounts, w.toAccount())
	}
	return accounts, nil
}

func (c *Client) Transactions(ctx context.Context, accessToken, accountID string, q TransactionQuery) ([]core.Transaction, error) {
	params := url.Values{}
	if !q.From.IsZero() {
		params.Set("from", q.From.String())
	}
	if !q.To.IsZero() {
		params.Set("to", q.To.String())
	}
	if q.Count > 0 {
		params.Set("count", strconv.Itoa(q.Count))
	}

	path := "/accounts/" + url.PathEscape(accountID) + "/transactions"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var wire []wireTransaction
	if err := c.get(ctx, accessToken, path, &wire); err != nil {
		return nil, err
	}

	// Records that fail the typed boundary are dropped, not propagated:
	// one malformed record must not take down a whole summary.
	txs := make([]core.Transaction, 0, len(wire))
	dropped := 0
	for _, w := range wire {
		tx, err := w.toTransaction()
		if err != nil {
			dropped++
			c.logger.Warn("dropping malformed transaction",
				log.FieldAccountID, accountID,
				log.FieldError, err.Error())
			continue
		}
		txs = append(txs, tx)
	}
	if dropped > 0 {
		c.logger.Warn("malformed transactions dropped",
			log.FieldAccountID, accountID,
			"dropped", dropped,
			"kept", len(txs))
	}
	return txs, nil
}

func (c *Client) Balance(ctx context.Context, accessToken, accountID string) (core.Balance, error) {
	var wire wireBalance
	path := "/accounts/" + url.PathEscape(accountID) + "/balances"
	if err := c.get(ctx, accessToken, path, &wire); err != nil {
		return core.Balance{}, err
	}
	return wire.toBalance()
}

func (c *Client) get(ctx context.Context, accessToken, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("teller request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Status: resp.StatusCode, Body: string(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
