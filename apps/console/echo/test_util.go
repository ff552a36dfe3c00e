package echoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/cmrsapp/console/core"
	"github.com/cmrsapp/console/core/notification"
	"github.com/cmrsapp/console/core/session"
	dummypush "github.com/cmrsapp/console/services/push/dummy"
	"github.com/cmrsapp/console/storage/kvstore"
	dummystore "github.com/cmrsapp/console/storage/kvstore/dummy"
	testutil "github.com/cmrsapp/console/tests"
)

type authMock struct {
	token      string
	loginErr   error
	profile    session.Profile
	profileErr error
}

func (m *authMock) Login(_ context.Context, username, password string) (string, error) {
	if m.loginErr != nil {
		return "", m.loginErr
	}
	return m.token, nil
}

func (m *authMock) StaffProfile(_ context.Context, userID int64) (session.Profile, error) {
	return m.profile, m.profileErr
}

func (m *authMock) StudentProfile(_ context.Context, userID int64) (session.Profile, error) {
	return m.profile, m.profileErr
}

type notifMock struct {
	mu      sync.Mutex
	notifs  []notification.Notification
	marked  []notification.Notification
	fetches int
}

func (m *notifMock) fetch() ([]notification.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetches++
	notifs := make([]notification.Notification, len(m.notifs))
	copy(notifs, m.notifs)
	return notifs, nil
}

func (m *notifMock) fetchCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetches
}

func (m *notifMock) StudentNotifications(_ context.Context, identifier string) ([]notification.Notification, error) {
	return m.fetch()
}

func (m *notifMock) UserNotifications(_ context.Context, identifier string) ([]notification.Notification, error) {
	return m.fetch()
}

func (m *notifMock) MarkRead(_ context.Context, id int64) (notification.Notification, error) {
	readAt := time.Now().UTC().Format(time.RFC3339)
	n := notification.Notification{NotificationID: id, ReadAt: &readAt}
	m.mu.Lock()
	m.marked = append(m.marked, n)
	m.mu.Unlock()
	return n, nil
}

func (m *notifMock) MarkManyRead(_ context.Context, ids []int64) ([]notification.Notification, error) {
	readAt := time.Now().UTC().Format(time.RFC3339)
	updated := make([]notification.Notification, 0, len(ids))
	for _, id := range ids {
		updated = append(updated, notification.Notification{NotificationID: id, ReadAt: &readAt})
	}
	return updated, nil
}

type testEnv struct {
	app     Server
	auth    *authMock
	notif   *notifMock
	state   kvstore.Store
	session *session.Store
	logger  *testutil.Logger

	mu   sync.Mutex
	push *dummypush.Transport
}

// currentPush returns the dummy transport behind the most recent channel.
func (e *testEnv) currentPush() *dummypush.Transport {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.push
}

func testConf() *core.Config {
	conf := new(core.Config)
	conf.AppName = "CMRS Console"
	conf.Env = "test"
	conf.TestMode = true
	conf.Notification.FetchThrottleDelta = 30 * time.Second
	conf.Notification.RefreshMinDelta = 5 * time.Second
	conf.Notification.ReconnectDelay = 5 * time.Second
	conf.Notification.HeartbeatDelta = 4 * time.Second
	conf.Notification.ConnectedShowDelta = time.Second
	conf.Notification.ConnectingShowDelta = 3 * time.Second
	return conf
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	conf := testConf()
	logger := &testutil.Logger{}
	state := dummystore.Open()
	auth := new(authMock)
	notif := new(notifMock)
	sess := session.NewStore(auth, state, logger)

	env := &testEnv{
		auth:    auth,
		notif:   notif,
		state:   state,
		session: sess,
		logger:  logger,
	}
	validate, translator := newTestValidator()
	env.app = NewServer(&Options{
		DisableReqLogs: true,
		Conf:           conf,
		Logger:         logger,
		Session:        sess,
		State:          state,
		NewChannel: func() *notification.Channel {
			env.mu.Lock()
			defer env.mu.Unlock()
			env.push = dummypush.Open()
			return notification.NewChannel(notif, env.push, logger, conf)
		},
		Validate:   validate,
		Translator: translator,
	})
	return env
}

func newTestValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	uni := ut.New(en.New())
	translator, _ := uni.GetTranslator("en")
	core.InitValidators(validate, translator)
	return validate, translator
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	return req, rec
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

// signIn runs the full login flow against the test server and fails the test
// if it does not succeed.
func (e *testEnv) signIn(t *testing.T, username string, userID int64, roles []string) LoginResponse {
	t.Helper()
	e.auth.token = testutil.MakeToken(t, username, userID, roles, time.Now().Add(time.Hour))

	body := marchallObj(t, LoginRequest{Username: username, Password: "hunter2"})
	req, rec := newRequest(http.MethodPost, "/login", body)
	e.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("signIn() code = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp LoginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("signIn() decoding response: %v", err)
	}
	return resp
}
