// Package cmrsapi holds the HTTP clients for the CMRS backend services: auth,
// user/profile, course registration and notification. One Client fronts them
// all; the session store and the notification channel each consume the slice
// they need through their own interfaces.
package cmrsapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/cmrsapp/console/core"
	"github.com/cmrsapp/console/core/notification"
	"github.com/cmrsapp/console/core/session"
)

const requestTimeout = 10 * time.Second

type Client struct {
	http   *http.Client
	logger core.Logger

	authBase         string
	userBase         string
	registrationBase string
	notificationBase string

	// TokenSource supplies the bearer credential for authenticated calls.
	// Set at wiring time once the session store exists; Login does not
	// need it.
	TokenSource func() string
}

var (
	_ session.AuthAPI  = (*Client)(nil)
	_ notification.API = (*Client)(nil)
)

func NewClient(conf *core.Config, logger core.Logger) *Client {
	return &Client{
		http:             &http.Client{Timeout: requestTimeout},
		logger:           logger,
		authBase:         strings.TrimRight(conf.Services.AuthBaseURL, "/"),
		userBase:         strings.TrimRight(conf.Services.UserBaseURL, "/"),
		registrationBase: strings.TrimRight(conf.Services.RegistrationBaseURL, "/"),
		notificationBase: strings.TrimRight(conf.Services.NotificationBaseURL, "/"),
	}
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	body := map[string]string{"username": username, "password": password}
	var resp struct {
		AccessToken string `json:"accessToken"`
	}
	if err := c.do(ctx, http.MethodPost, c.authBase+"/api/auth/login", body, &resp, false); err != nil {
		return "", err
	}
	if resp.AccessToken == "" {
		return "", errors.New("auth service returned no token")
	}
	return resp.AccessToken, nil
}

func (c *Client) StaffProfile(ctx context.Context, userID int64) (session.Profile, error) {
	var profile session.Profile
	url := fmt.Sprintf("%s/staff/%d", c.userBase, userID)
	err := c.do(ctx, http.MethodGet, url, nil, &profile, true)
	return profile, err
}

func (c *Client) StudentProfile(ctx context.Context, userID int64) (session.Profile, error) {
	var profile session.Profile
	url := fmt.Sprintf("%s/students/secure/%d", c.userBase, userID)
	err := c.do(ctx, http.MethodGet, url, nil, &profile, true)
	return profile, err
}

func (c *Client) StudentNotifications(ctx context.Context, identifier string) ([]notification.Notification, error) {
	var notifs []notification.Notification
	url := c.notificationBase + "/api/notifications/student/" + identifier
	err := c.do(ctx, http.MethodGet, url, nil, &notifs, true)
	return notifs, err
}

func (c *Client) UserNotifications(ctx context.Context, identifier string) ([]notification.Notification, error) {
	var notifs []notification.Notification
	url := c.notificationBase + "/api/notifications/user/" + identifier
	err := c.do(ctx, http.MethodGet, url, nil, &notifs, true)
	return notifs, err
}

func (c *Client) MarkRead(ctx context.Context, id int64) (notification.Notification, error) {
	var notif notification.Notification
	url := fmt.Sprintf("%s/api/notifications/%d/read", c.notificationBase, id)
	err := c.do(ctx, http.MethodPut, url, nil, &notif, true)
	return notif, err
}

func (c *Client) MarkManyRead(ctx context.Context, ids []int64) ([]notification.Notification, error) {
	var notifs []notification.Notification
	url := c.notificationBase + "/api/notifications/read"
	err := c.do(ctx, http.MethodPut, url, ids, &notifs, true)
	return notifs, err
}

// RegisterForClass registers the signed-in student for the class, the action
// behind a vacancy notification.
func (c *Client) RegisterForClass(ctx context.Context, classID int64) error {
	body := map[string]int64{"classId": classID}
	url := c.registrationBase + "/api/registrations"
	return c.do(ctx, http.MethodPost, url, body, nil, true)
}

// PublishTestEvent asks the notification service to emit a synthetic event
// back to the caller's topic. Development aid only.
func (c *Client) PublishTestEvent(ctx context.Context, event notification.Notification) error {
	url := c.notificationBase + "/api/notifications/notificationEvent"
	return c.do(ctx, http.MethodPost, url, event, nil, true)
}

func (c *Client) do(ctx context.Context, method, url string, body, out interface{}, authed bool) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "encoding request body")
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return errors.Wrap(err, "building request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed && c.TokenSource != nil {
		if token := c.TokenSource(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "calling %s %s", method, url)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return errors.Wrapf(session.ErrUnauthenticated, "%s %s: %s", method, url, resp.Status)
	case resp.StatusCode >= 400:
		return errors.Errorf("%s %s: %s", method, url, resp.Status)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decoding response body")
	}
	return nil
}
