package client

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

	"github.com/Ayflow350/Ice-empire/internal/domain/model"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// APIErrorはストアフロントAPIの2xx以外の応答
type APIError struct {
	StatusCode int
	Message    string
	Reference  string //決済開始に失敗した注文（再試行で送り返す）
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (%d): %s", e.StatusCode, e.Message)
}

// Clientはストアフロントの決済APIを呼ぶ（cmd/shop用）
type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

type Item struct {
	ProductID string          `json:"product_id"`
	VariantID string          `json:"variant_id"`
	Name      string          `json:"name"`
	Color     string          `json:"color"`
	Size      string          `json:"size"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int64           `json:"quantity"`
	Image     string          `json:"image"`
}

type InitializeRequest struct {
	Email           string                `json:"email"`
	Amount          decimal.Decimal       `json:"amount"`
	Currency        string                `json:"currency,omitempty"`
	Items           []Item                `json:"items"`
	ShippingAddress model.ShippingAddress `json:"shipping_address"`
	UserID          *int64                `json:"user_id,omitempty"`
	Reference       string                `json:"reference,omitempty"`
}

type InitializeResponse struct {
	Reference   string `json:"reference"`
	RedirectURL string `json:"redirect_url"`
}

type VerifyResponse struct {
	Status string      `json:"status"`
	Order  model.Order `json:"order"`
	Error  string      `json:"error"`
}

func (c *Client) Initialize(ctx context.Context, in InitializeRequest) (InitializeResponse, error) {
	var out InitializeResponse
	if err := c.do(ctx, http.MethodPost, "/payment/initialize", in, &out); err != nil {
		return InitializeResponse{}, errors.Wrap(err, "initialize payment")
	}
	if out.RedirectURL == "" {
		return InitializeResponse{}, &APIError{StatusCode: http.StatusBadGateway, Message: "no redirect url"}
	}
	return out, nil
}

// 1回だけ呼ぶ。リトライはしない
func (c *Client) Verify(ctx context.Context, reference string) (VerifyResponse, error) {
	var out VerifyResponse
	path := "/payment/verify?reference=" + url.QueryEscape(reference)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return VerifyResponse{}, errors.Wrapf(err, "verify %s", reference)
	}
	return out, nil
}

func (c *Client) Product(ctx context.Context, id string) (model.Product, error) {
	var out model.Product
	if err := c.do(ctx, http.MethodGet, "/products/"+url.PathEscape(id), nil, &out); err != nil {
		return model.Product{}, errors.Wrapf(err, "product %s", id)
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

	if resp.StatusCode >= 300 {
		var e struct {
			Error     string `json:"error"`
			Reference string `json:"reference"`
		}
		msg := http.StatusText(resp.StatusCode)
		if json.Unmarshal(raw, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg, Reference: e.Reference}
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return errors.Wrap(err, "decode response")
		}
	}
	return nil
}
