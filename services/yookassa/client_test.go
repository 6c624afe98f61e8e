package yookassa

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuromagic/academy/core"
	"github.com/neuromagic/academy/core/payment"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	conf := new(core.Config)
	conf.YooKassa.ShopID = "12345"
	conf.YooKassa.SecretKey = "test_secret"
	conf.YooKassa.APIURL = srv.URL + "/v3/"
	return NewClient(conf)
}

func TestNewClient_disabled(t *testing.T) {
	assert.Nil(t, NewClient(new(core.Config)))
}

func TestClient_CreatePayment(t *testing.T) {
	var (
		gotBody createRequest
		gotReq  *http.Request
	)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotReq = r
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &gotBody)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "2d9e3a9f-000f-5000-9000-1b68e7b15f3f",
			"status": "pending",
			"paid": false,
			"amount": {"value": "24000.00", "currency": "RUB"},
			"confirmation": {"type": "redirect", "confirmation_url": "https://yoomoney.ru/checkout/payments/v2/contract?orderId=2d9e"},
			"metadata": {"user_id": "u1", "course_id": "ai-for-beginners"}
		}`))
	})

	gp, err := client.CreatePayment(context.Background(), payment.GatewayPaymentRequest{
		IdempotenceKey: "key-1",
		Amount:         decimal.NewFromInt(24000),
		Currency:       payment.CurrencyRUB,
		Description:    "Оплата курса «AI для начинающих»",
		ReturnURL:      "https://neuro-magic.ru/payment/success",
		Metadata:       map[string]string{"user_id": "u1", "course_id": "ai-for-beginners"},
	})
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, gotReq.Method)
	assert.Equal(t, "/v3/payments", gotReq.URL.Path)
	assert.Equal(t, "key-1", gotReq.Header.Get("Idempotence-Key"))
	user, pwd, ok := gotReq.BasicAuth()
	assert.True(t, ok)
	assert.Equal(t, "12345", user)
	assert.Equal(t, "test_secret", pwd)

	assert.Equal(t, "24000.00", gotBody.Amount.Value)
	assert.Equal(t, "RUB", gotBody.Amount.Currency)
	assert.True(t, gotBody.Capture)
	assert.Equal(t, confirmation{Type: "redirect", ReturnURL: "https://neuro-magic.ru/payment/success"}, gotBody.Confirmation)
	assert.Equal(t, "ai-for-beginners", gotBody.Metadata["course_id"])

	assert.Equal(t, "2d9e3a9f-000f-5000-9000-1b68e7b15f3f", gp.ID)
	assert.Equal(t, payment.StatusPending, gp.Status)
	assert.True(t, decimal.NewFromInt(24000).Equal(gp.Amount))
	assert.Equal(t, "https://yoomoney.ru/checkout/payments/v2/contract?orderId=2d9e", gp.ConfirmationURL)
}

func TestClient_CreatePayment_invalidArgs(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})

	_, err := client.CreatePayment(context.Background(), payment.GatewayPaymentRequest{Amount: decimal.NewFromInt(1)})
	assert.Error(t, err)

	_, err = client.CreatePayment(context.Background(), payment.GatewayPaymentRequest{
		IdempotenceKey: "key-1",
		Currency:       payment.CurrencyRUB,
		ReturnURL:      "https://neuro-magic.ru",
	})
	assert.Error(t, err)

	_, err = client.GetPayment(context.Background(), "")
	assert.Error(t, err)
}

func TestClient_GetPayment(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantErr    bool
		wantStatus payment.Status
	}{
		{
			name:       "succeeded",
			status:     http.StatusOK,
			body:       `{"id": "p1", "status": "succeeded", "paid": true, "amount": {"value": "990.50", "currency": "RUB"}}`,
			wantStatus: payment.StatusSucceeded,
		},
		{
			name:    "not found",
			status:  http.StatusNotFound,
			body:    `{"type": "error", "code": "not_found", "description": "Payment doesn't exist"}`,
			wantErr: true,
		},
		{
			name:    "unknown status",
			status:  http.StatusOK,
			body:    `{"id": "p1", "status": "refunded", "amount": {"value": "1.00", "currency": "RUB"}}`,
			wantErr: true,
		},
		{
			name:    "bad amount",
			status:  http.StatusOK,
			body:    `{"id": "p1", "status": "pending", "amount": {"value": "lots", "currency": "RUB"}}`,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodGet, r.Method)
				assert.Equal(t, "/v3/payments/p1", r.URL.Path)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			gp, err := client.GetPayment(context.Background(), "p1")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, gp.Status)
			assert.True(t, gp.Paid)
			assert.Equal(t, "990.5", gp.Amount.String())
		})
	}
}

func TestClient_GetPayment_canceled(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("request must not reach the server")
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.GetPayment(ctx, "p1")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
