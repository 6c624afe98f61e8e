package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/neuromagic/academy/apps/api/echo"
	"github.com/neuromagic/academy/core"
	"github.com/neuromagic/academy/core/access"
	"github.com/neuromagic/academy/core/lead"
	"github.com/neuromagic/academy/core/learning"
	"github.com/neuromagic/academy/core/payment"
	"github.com/neuromagic/academy/core/user"
	appfs "github.com/neuromagic/academy/fs"
	emailsvc "github.com/neuromagic/academy/services/email"
	dummydb "github.com/neuromagic/academy/storage/database/dummy"
	"github.com/neuromagic/academy/tests"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type fixture struct {
	app      Server
	conf     *core.Config
	usrRepo  user.Repository
	access   access.Service
	lessons  []int // ai-for-beginners lesson IDs in program order
	notifier *fakeNotifier
	logs     *recordingLogger
}

// recordingLogger keeps the messages reported at Error level or above.
type recordingLogger struct {
	core.Logger
	mu     sync.Mutex
	errors []string
}

func (l *recordingLogger) Error(msg string, args ...interface{}) {
	l.mu.Lock()
	l.errors = append(l.errors, msg)
	l.mu.Unlock()
	l.Logger.Error(msg, args...)
}

func (l *recordingLogger) Fatal(msg string, args ...interface{}) { l.Error(msg, args...) }

func (l *recordingLogger) reported() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.errors...)
}

type options struct {
	metrics prometheus.Registerer
}

func setup(t *testing.T, opts ...options) fixture {
	db, err := dummydb.Open()
	require.NoError(t, err)

	conf := testutil.NewConfig()
	validate, translator := testutil.NewValidator(t)
	logs := &recordingLogger{Logger: testutil.NewLogger(conf)}
	var logger core.Logger = logs
	cat := testutil.LoadCatalog(t)

	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	emailsvc.ResetSentMessages()

	usrRepo := dummydb.NewUserRepository(db)
	usrSvc := user.NewService(db, usrRepo, dummydb.NewAttemptStore(db), mailSvc, conf)
	accessSvc := access.NewService(dummydb.NewEnrollmentRepository(db), cat)
	learningSvc := learning.NewService(db, dummydb.NewLearningRepository(db), accessSvc, cat)
	paymentSvc := payment.NewService(payment.ServiceDeps{
		DB:      db,
		Repo:    dummydb.NewPaymentRepository(db),
		Access:  accessSvc,
		Catalog: cat,
		Users:   usrSvc,
		MailSvc: mailSvc,
		Logger:  logger,
		Conf:    conf,
	})
	notifier := new(fakeNotifier)

	deps := ServerDeps{
		Conf:           conf,
		Logger:         logger,
		Catalog:        cat,
		UserSvc:        usrSvc,
		AccessSvc:      accessSvc,
		LearningSvc:    learningSvc,
		PaymentSvc:     paymentSvc,
		LeadSvc:        lead.NewService(notifier, logger),
		Validate:       validate,
		Translator:     translator,
		DisableReqLogs: true,
	}
	if len(opts) > 0 {
		deps.Metrics = opts[0].metrics
	}

	// course program
	data, err := appfs.FS.ReadFile("content/ai-for-beginners.yaml")
	require.NoError(t, err)
	cc, err := learning.ParseCourseContent(data)
	require.NoError(t, err)
	require.NoError(t, cc.Validate(validate))
	mods, err := learningSvc.ImportCourse(context.Background(), cc)
	require.NoError(t, err)

	var lessons []int
	for _, mod := range mods {
		for _, lsn := range mod.Lessons {
			lessons = append(lessons, lsn.ID)
		}
	}

	return fixture{
		app:      NewServer(deps),
		conf:     conf,
		usrRepo:  usrRepo,
		access:   accessSvc,
		lessons:  lessons,
		notifier: notifier,
		logs:     logs,
	}
}

type fakeNotifier struct {
	messages []string
}

func (n *fakeNotifier) Notify(_ context.Context, text string) error {
	n.messages = append(n.messages, text)
	return nil
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func (f fixture) do(method, path, token string, data ...[]byte) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(method, path, token, data...)
	f.app.ServeHTTP(rec, req)
	return rec
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func (f fixture) getToken(t *testing.T, usr user.User) string {
	token, err := GenerateToken(f.conf, GetUserClaims(f.conf, usr))
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marshalObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshalObj() failed: %v", err)
	}
	return data
}

func unmarshal(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("unmarshal(%s) failed: %v", rec.Body.String(), err)
	}
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func (f fixture) run(t *testing.T, tests []httpTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			checkCodeAndData(t, tt, f.do(method, tt.path, tt.token, tt.body))
		})
	}
}
