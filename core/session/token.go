package session

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/pkg/errors"
)

var nowFunc = time.Now // mockable

// errors
var (
	errInvalidToken = errors.New("invalid token")
	errTokenExpired = errors.New("token expired")
)

// decodeToken decodes the bearer token's claims without verifying the
// signature; the token was issued by the auth service and this client only
// needs its payload.
func decodeToken(token string) (*Claims, error) {
	claims := new(Claims)
	parser := &jwt.Parser{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return nil, errors.Wrap(errInvalidToken, err.Error())
	}
	return claims, nil
}

// verifyToken decodes the token and checks its expiry locally.
// No network call is made.
func verifyToken(token string) (*Claims, error) {
	claims, err := decodeToken(token)
	if err != nil {
		return nil, err
	}
	if claims.ExpiresAt != 0 && claims.ExpiresAt < nowFunc().Unix() {
		return nil, errTokenExpired
	}
	return claims, nil
}
