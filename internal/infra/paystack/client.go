package paystack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const DefaultBaseURL = "https://api.paystack.co"

// ゲートウェイが status=false / 非2xx を返したとき
type GatewayError struct {
	StatusCode int
	Message    string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("paystack: %d: %s", e.StatusCode, e.Message)
}

type Client struct {
	baseURL   string
	secretKey string
	http      *http.Client
}

func NewClient(baseURL, secretKey string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		secretKey: secretKey,
		http:      &http.Client{Timeout: timeout},
	}
}

func (c *Client) SecretKey() string { return c.secretKey }

type InitializeRequest struct {
	Email       string                 `json:"email"`
	Amount      int64                  `json:"amount"` // 最小単位
	Currency    string                 `json:"currency"`
	Reference   string                 `json:"reference"`
	CallbackURL string                 `json:"callback_url"`
	Channels    []string               `json:"channels,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

type InitializeData struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type VerifyData struct {
	ID        int64  `json:"id"`
	Status    string `json:"status"`
	Reference string `json:"reference"`
	Amount    int64  `json:"amount"` // 最小単位
	Currency  string `json:"currency"`
	PaidAt    string `json:"paid_at"`
}

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (c *Client) Initialize(ctx context.Context, in InitializeRequest) (InitializeData, error) {
	var out InitializeData
	if err := c.do(ctx, http.MethodPost, "/transaction/initialize", in, &out); err != nil {
		return InitializeData{}, errors.Wrap(err, "initialize transaction")
	}
	if out.AuthorizationURL == "" {
		return InitializeData{}, &GatewayError{StatusCode: http.StatusOK, Message: "missing authorization url"}
	}
	return out, nil
}

func (c *Client) Verify(ctx context.Context, reference string) (VerifyData, error) {
	var out VerifyData
	path := "/transaction/verify/" + url.PathEscape(reference)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return VerifyData{}, errors.Wrapf(err, "verify transaction %s", reference)
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "marshal request")
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "send request")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return errors.Wrap(err, "read response")
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		//JSONでない応答（プロキシのHTMLなど）
		if resp.StatusCode >= 300 {
			return &GatewayError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		return errors.Wrap(err, "decode response")
	}

	if resp.StatusCode >= 300 || !env.Status {
		msg := env.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &GatewayError{StatusCode: resp.StatusCode, Message: msg}
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return errors.Wrap(err, "decode data")
		}
	}
	return nil
}
