// Package yookassa is a client of the YooKassa payments API (v3).
package yookassa

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"github.com/sendgrid/rest"
	"github.com/shopspring/decimal"

	"github.com/neuromagic/academy/core"
	"github.com/neuromagic/academy/core/payment"
)

const requestTimeout = 15 * time.Second

type (
	amount struct {
		Value    string `json:"value"`
		Currency string `json:"currency"`
	}

	confirmation struct {
		Type            string `json:"type"`
		ReturnURL       string `json:"return_url,omitempty"`
		ConfirmationURL string `json:"confirmation_url,omitempty"`
	}

	createRequest struct {
		Amount       amount            `json:"amount"`
		Capture      bool              `json:"capture"`
		Confirmation confirmation      `json:"confirmation"`
		Description  string            `json:"description"`
		Metadata     map[string]string `json:"metadata,omitempty"`
	}

	paymentResponse struct {
		ID           string            `json:"id"`
		Status       string            `json:"status"`
		Paid         bool              `json:"paid"`
		Amount       amount            `json:"amount"`
		Confirmation *confirmation     `json:"confirmation"`
		Metadata     map[string]string `json:"metadata"`
	}

	errorResponse struct {
		Type        string `json:"type"`
		Code        string `json:"code"`
		Description string `json:"description"`
		Parameter   string `json:"parameter"`
	}
)

type Client struct {
	baseURL string
	auth    string
	client  *rest.Client
}

var _ payment.Gateway = (*Client)(nil) // interface compliance check

// NewClient returns nil when the shop credentials are not configured.
func NewClient(conf *core.Config) *Client {
	if !conf.PaymentsEnabled() {
		return nil
	}
	creds := conf.YooKassa.ShopID + ":" + conf.YooKassa.SecretKey
	return &Client{
		baseURL: strings.TrimRight(conf.YooKassa.APIURL, "/"),
		auth:    "Basic " + base64.StdEncoding.EncodeToString([]byte(creds)),
		client:  &rest.Client{HTTPClient: &http.Client{Timeout: requestTimeout}},
	}
}

func (c *Client) headers() map[string]string {
	return map[string]string{
		"Authorization": c.auth,
		"Content-Type":  "application/json",
	}
}

func (c *Client) CreatePayment(ctx context.Context, req payment.GatewayPaymentRequest) (payment.GatewayPayment, error) {
	err := vala.BeginValidation().Validate(
		vala.StringNotEmpty(req.IdempotenceKey, "IdempotenceKey"),
		vala.StringNotEmpty(req.Currency, "Currency"),
		vala.StringNotEmpty(req.ReturnURL, "ReturnURL"),
	).Check()
	if err != nil {
		return payment.GatewayPayment{}, err
	}
	if !req.Amount.IsPositive() {
		return payment.GatewayPayment{}, errors.New("amount must be positive")
	}

	body, err := json.Marshal(createRequest{
		Amount:       amount{Value: req.Amount.StringFixed(2), Currency: req.Currency},
		Capture:      true,
		Confirmation: confirmation{Type: "redirect", ReturnURL: req.ReturnURL},
		Description:  req.Description,
		Metadata:     req.Metadata,
	})
	if err != nil {
		return payment.GatewayPayment{}, errors.Wrap(err, "encoding payment request")
	}

	headers := c.headers()
	headers["Idempotence-Key"] = req.IdempotenceKey
	return c.send(ctx, rest.Request{
		Method:  rest.Post,
		BaseURL: c.baseURL + "/payments",
		Headers: headers,
		Body:    body,
	})
}

func (c *Client) GetPayment(ctx context.Context, id string) (payment.GatewayPayment, error) {
	if err := vala.BeginValidation().Validate(vala.StringNotEmpty(id, "id")).Check(); err != nil {
		return payment.GatewayPayment{}, err
	}
	return c.send(ctx, rest.Request{
		Method:  rest.Get,
		BaseURL: c.baseURL + "/payments/" + id,
		Headers: c.headers(),
	})
}

// do runs req with the deadline and cancellation of ctx.
func (c *Client) do(ctx context.Context, req rest.Request) (*rest.Response, error) {
	httpReq, err := rest.BuildRequestObject(req)
	if err != nil {
		return nil, errors.Wrap(err, "building request")
	}
	httpRes, err := c.client.MakeRequest(httpReq.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	return rest.BuildResponse(httpRes)
}

func (c *Client) send(ctx context.Context, req rest.Request) (payment.GatewayPayment, error) {
	res, err := c.do(ctx, req)
	if err != nil {
		return payment.GatewayPayment{}, errors.Wrap(err, "calling yookassa")
	}
	if res.StatusCode >= http.StatusBadRequest {
		var apiErr errorResponse
		if json.Unmarshal([]byte(res.Body), &apiErr) == nil && apiErr.Description != "" {
			return payment.GatewayPayment{}, errors.Errorf("yookassa: %d %s: %s", res.StatusCode, apiErr.Code, apiErr.Description)
		}
		return payment.GatewayPayment{}, errors.Errorf("yookassa: status %d: %s", res.StatusCode, res.Body)
	}

	var pr paymentResponse
	if err = json.Unmarshal([]byte(res.Body), &pr); err != nil {
		return payment.GatewayPayment{}, errors.Wrap(err, "decoding yookassa payment")
	}
	return pr.toGatewayPayment()
}

func (pr paymentResponse) toGatewayPayment() (payment.GatewayPayment, error) {
	status := payment.Status(pr.Status)
	if !status.IsValid() {
		return payment.GatewayPayment{}, errors.Errorf("yookassa: unknown payment status %q", pr.Status)
	}
	value, err := decimal.NewFromString(pr.Amount.Value)
	if err != nil {
		return payment.GatewayPayment{}, errors.Wrapf(err, "yookassa: parsing amount %q", pr.Amount.Value)
	}
	gp := payment.GatewayPayment{
		ID:       pr.ID,
		Status:   status,
		Paid:     pr.Paid,
		Amount:   value,
		Currency: pr.Amount.Currency,
		Metadata: pr.Metadata,
	}
	if pr.Confirmation != nil {
		gp.ConfirmationURL = pr.Confirmation.ConfirmationURL
	}
	return gp, nil
}
