package echoapi

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/cmrsapp/console/core/access"
	"github.com/cmrsapp/console/core/notification"
)

type bellResponse struct {
	UnreadCount int    `json:"unreadCount"`
	Status      string `json:"status"`
}

func (e *testEnv) bell(t *testing.T) bellResponse {
	t.Helper()
	req, rec := newRequest(http.MethodGet, "/notifications/bell")
	e.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("bell() code = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp bellResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bell() decoding response: %v", err)
	}
	return resp
}

func (e *testEnv) waitForUnread(t *testing.T, want int) {
	t.Helper()
	assert.Eventually(t, func() bool {
		req, rec := newRequest(http.MethodGet, "/notifications/bell")
		e.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			return false
		}
		var resp bellResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			return false
		}
		return resp.UnreadCount == want
	}, 2*time.Second, 10*time.Millisecond)
}

func strPtr(s string) *string { return &s }

func TestNotifications_BaselineFetchAfterLogin(t *testing.T) {
	env := newTestEnv(t)
	read := "2024-01-01T00:00:00Z"
	env.notif.notifs = []notification.Notification{
		{NotificationID: 1, EventType: notification.EventWaitlisted},
		{NotificationID: 2, ReadAt: strPtr(read)},
		{NotificationID: 3},
	}

	env.signIn(t, "s124642", 7, []string{access.RoleStaff})
	env.waitForUnread(t, 2)

	req, rec := newRequest(http.MethodGet, "/notifications")
	env.app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	var notifs []notification.Notification
	if err := json.Unmarshal(rec.Body.Bytes(), &notifs); err != nil {
		t.Fatalf("decoding notifications: %v", err)
	}
	assert.Len(t, notifs, 3)
}

func TestNotifications_PushUpdatesBellAndAlerts(t *testing.T) {
	env := newTestEnv(t)
	env.signIn(t, "s124642", 7, []string{access.RoleStaff})

	// let the baseline fetch land first; it replaces the collection
	assert.Eventually(t, func() bool { return env.notif.fetchCount() > 0 }, 2*time.Second, 10*time.Millisecond)

	payload := []byte(`{"notificationId":9,"eventType":"VACANCY_AVAILABLE","courseName":"Databases","courseCode":"CS305"}`)
	env.currentPush().Publish(payload)
	env.currentPush().Publish(payload) // duplicate delivery is idempotent

	env.waitForUnread(t, 1)

	req, rec := newRequest(http.MethodGet, "/notifications/alerts")
	env.app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	var alerts []notification.Alert
	if err := json.Unmarshal(rec.Body.Bytes(), &alerts); err != nil {
		t.Fatalf("decoding alerts: %v", err)
	}
	if assert.Len(t, alerts, 1) {
		assert.Contains(t, alerts[0].Body, "Databases")
	}

	// alerts are drained on read
	req, rec = newRequest(http.MethodGet, "/notifications/alerts")
	env.app.ServeHTTP(rec, req)
	assert.Equal(t, "[]\n", rec.Body.String())
}

func TestNotifications_MarkOneRead(t *testing.T) {
	env := newTestEnv(t)
	env.notif.notifs = []notification.Notification{
		{NotificationID: 5},
		{NotificationID: 6},
	}
	env.signIn(t, "s124642", 7, []string{access.RoleStaff})
	env.waitForUnread(t, 2)

	req, rec := newRequest(http.MethodPut, "/notifications/5/read")
	env.app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, env.bell(t).UnreadCount)
}

func TestNotifications_MarkAllRead(t *testing.T) {
	env := newTestEnv(t)
	env.notif.notifs = []notification.Notification{
		{NotificationID: 1},
		{NotificationID: 2},
		{NotificationID: 3},
	}
	env.signIn(t, "s124642", 7, []string{access.RoleStaff})
	env.waitForUnread(t, 3)

	req, rec := newRequest(http.MethodPut, "/notifications/read")
	env.app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, env.bell(t).UnreadCount)
}

func TestNotifications_RequireAuthentication(t *testing.T) {
	env := newTestEnv(t)

	req, rec := newRequest(http.MethodGet, "/notifications/bell")
	env.app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
}

func TestNotifications_StatusReflectsTransportFlips(t *testing.T) {
	env := newTestEnv(t)
	env.signIn(t, "s124642", 7, []string{access.RoleStaff})

	// the dummy transport reports up immediately but the indicator keeps
	// showing connecting until the state has been stable for a second
	assert.Equal(t, string(notification.StatusConnecting), env.bell(t).Status)
}

func TestNotifications_TestEndpointAbsentOutsideDebug(t *testing.T) {
	env := newTestEnv(t)
	env.signIn(t, "s124642", 7, []string{access.RoleAdmin})

	req, rec := newRequest(http.MethodPost, "/notifications/test")
	env.app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNotifications_ChannelTornDownOnLogout(t *testing.T) {
	env := newTestEnv(t)
	env.signIn(t, "s124642", 7, []string{access.RoleStaff})
	env.waitForUnread(t, 0)
	push := env.currentPush()

	req, rec := newRequest(http.MethodPost, "/logout")
	env.app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// late deliveries on the dead transport go nowhere
	push.Publish([]byte(`{"notificationId":9}`))

	env.signIn(t, "s124642", 7, []string{access.RoleStaff})
	env.waitForUnread(t, 0)
}
