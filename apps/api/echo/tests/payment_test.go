package tests

import (
	"net/http"
	"testing"

	"github.com/neuromagic/academy/tests"
)

func Test_paymentApi(t *testing.T) {
	f := setup(t)
	usr := testutil.CreateUser(t, f.usrRepo, "anna", "anna@test.ru", strongPwd, true, false)
	token := f.getToken(t, usr)
	ok := []byte(`{"status":"ok"}`)
	ko := []byte(`{"status":"error"}`)

	f.run(t, []httpTest{
		{name: "checkout (auth required)", method: http.MethodPost, path: "/v1/payments", wantCode: http.StatusUnauthorized},
		{
			name: "checkout (invalid slug)", method: http.MethodPost, path: "/v1/payments", token: token,
			body: []byte(`{"course_slug":"Not a slug!"}`), wantCode: http.StatusBadRequest,
		},
		{
			name: "checkout (payments disabled)", method: http.MethodPost, path: "/v1/payments", token: token,
			body: []byte(`{"course_slug":"vibe-coding"}`), wantCode: http.StatusForbidden,
			wantData: marshalObj(t, httpErr{Error: "online payments are not available"}),
		},
		{name: "list (empty)", path: "/v1/payments", token: token, wantCode: http.StatusOK, wantData: []byte(`[]`)},
		{name: "retrieve (unknown)", path: "/v1/payments/lol", token: token, wantCode: http.StatusNotFound},
		{
			name: "mock purchase (debug only)", method: http.MethodPost, path: "/v1/payments/mock", token: token,
			body: []byte(`{"course_slug":"vibe-coding"}`), wantCode: http.StatusNotFound,
		},
		// webhook
		{name: "webhook (malformed)", method: http.MethodPost, path: "/v1/payments/webhook", body: []byte(`{`), wantCode: http.StatusBadRequest, wantData: ko},
		{
			name: "webhook (ignored event)", method: http.MethodPost, path: "/v1/payments/webhook",
			body: []byte(`{"type":"notification","event":"refund.succeeded","object":{"id":"gw-1"}}`), wantCode: http.StatusOK, wantData: ok,
		},
		{
			name: "webhook (payments disabled)", method: http.MethodPost, path: "/v1/payments/webhook",
			body: []byte(`{"type":"notification","event":"payment.succeeded","object":{"id":"gw-1"}}`), wantCode: http.StatusBadRequest, wantData: ko,
		},
	})
}
