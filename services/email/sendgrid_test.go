package emailsvc

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/mail"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuromagic/academy/core"
)

func newSendgridConf() *core.Config {
	conf := new(core.Config)
	conf.AppName = "Нейромагия"
	conf.ContactEmail = "hello@neuro-magic.ru"
	conf.Mail.DefaultFromName = "Нейромагия"
	conf.Mail.DefaultFromEmail = "noreply@neuro-magic.ru"
	conf.Mail.SendgridApiKey = "SG.test"
	return conf
}

func TestSendgridService_deliver(t *testing.T) {
	var (
		gotReq  *http.Request
		gotBody map[string]interface{}
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReq = r
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &gotBody)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	svc := newSendgridService(newSendgridConf(), nil, srv.URL)
	err := svc.deliver(&core.EmailMessage{
		To:      []mail.Address{{Name: "anna", Address: "anna@test.ru"}},
		Subject: "Привет",
		BodyStr: "Добро пожаловать",
	})
	require.NoError(t, err)

	assert.Equal(t, sendgridEndpoint, gotReq.URL.Path)
	assert.Equal(t, "Bearer SG.test", gotReq.Header.Get("Authorization"))
	assert.Equal(t, map[string]interface{}{"email": "hello@neuro-magic.ru", "name": "Нейромагия"}, gotBody["reply_to"])

	pers := gotBody["personalizations"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "[Нейромагия] Привет", pers["subject"])
	assert.Equal(t, []interface{}{map[string]interface{}{"email": "anna@test.ru", "name": "anna"}}, pers["to"])

	content := gotBody["content"].([]interface{})
	require.Len(t, content, 1)
	assert.Equal(t, "text/plain", content[0].(map[string]interface{})["type"])
}

func TestSendgridService_deliver_skipsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("nothing should be sent")
	}))
	defer srv.Close()

	svc := newSendgridService(newSendgridConf(), nil, srv.URL)
	assert.NoError(t, svc.deliver(&core.EmailMessage{Subject: "no recipients", BodyStr: "hi"}))
	assert.NoError(t, svc.deliver(&core.EmailMessage{To: []mail.Address{{Address: "anna@test.ru"}}, Subject: "no content"}))
}

func TestSendgridService_deliver_rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"errors":[{"message":"invalid from"}]}`))
	}))
	defer srv.Close()

	svc := newSendgridService(newSendgridConf(), nil, srv.URL)
	err := svc.deliver(&core.EmailMessage{To: []mail.Address{{Address: "anna@test.ru"}}, BodyStr: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid from")
}

func TestSendgridService_build(t *testing.T) {
	conf := newSendgridConf()
	conf.ContactEmail = ""
	svc := newSendgridService(conf, nil, sendgridHost)

	m := svc.build(&core.EmailMessage{
		To:           []mail.Address{{Address: "anna@test.ru"}},
		Bcc:          []mail.Address{{Address: "audit@neuro-magic.ru"}},
		TemplateName: "purchase",
		TextContent:  "txt",
		HTMLContent:  "<p>html</p>",
	})
	assert.Nil(t, m.ReplyTo)
	assert.Equal(t, []string{"purchase"}, m.Categories)
	require.Len(t, m.Content, 2)
	assert.Equal(t, "text/plain", m.Content[0].Type)
	assert.Equal(t, "text/html", m.Content[1].Type)
	require.Len(t, m.Personalizations, 1)
	assert.Len(t, m.Personalizations[0].BCC, 1)
}
