package tests

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_leadApi(t *testing.T) {
	f := setup(t)

	f.run(t, []httpTest{
		{
			name: "no contact", method: http.MethodPost, path: "/v1/leads",
			body: []byte(`{"name":"Анна"}`), wantCode: http.StatusBadRequest,
		},
		{
			name: "invalid recommendation", method: http.MethodPost, path: "/v1/leads",
			body: []byte(`{"name":"Анна","telegram":"@anna","recommended":["Not a slug!"]}`), wantCode: http.StatusBadRequest,
		},
	})
	require.Empty(t, f.notifier.messages)

	rec := f.do(http.MethodPost, "/v1/leads", "",
		[]byte(`{"name":"Анна <b>","telegram":"@anna","purpose":"автоматизация","recommended":["vibe-coding"]}`))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Len(t, f.notifier.messages, 1)
	msg := f.notifier.messages[0]
	assert.Contains(t, msg, "Анна &lt;b&gt;")
	assert.Contains(t, msg, "@anna")
	assert.Contains(t, msg, "vibe-coding")
}
