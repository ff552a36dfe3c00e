package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"

	"github.com/cmrsapp/console/core"
	"github.com/cmrsapp/console/core/session"
)

// Logger is a core.Logger that records messages for assertions.
type Logger struct {
	mu       sync.Mutex
	Messages []string
}

var _ core.Logger = (*Logger)(nil)

func (l *Logger) log(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Messages = append(l.Messages, msg)
}

func (l *Logger) Debug(msg string, args ...interface{}) { l.log(msg) }
func (l *Logger) Info(msg string, args ...interface{})  { l.log(msg) }
func (l *Logger) Warn(msg string, args ...interface{})  { l.log(msg) }
func (l *Logger) Error(msg string, args ...interface{}) { l.log(msg) }
func (l *Logger) Fatal(msg string, args ...interface{}) { l.log(msg) }

// MakeToken signs a bearer token for the given principal, the way the auth
// service would issue it.
func MakeToken(t *testing.T, username string, userID int64, roles []string, exp time.Time) string {
	t.Helper()
	claims := &session.Claims{
		StandardClaims: jwt.StandardClaims{
			Subject:   username,
			ExpiresAt: exp.Unix(),
			IssuedAt:  time.Now().Unix(),
		},
		UserID: userID,
		Roles:  roles,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("MakeToken() failed: %v", err)
	}
	return token
}
