// Package kvstore defines the persisted client-state contract: a small
// key-value store standing in for the browser's persistent storage. Only the
// credential, the role list and the serialized profile record live here; all
// notification state is in-memory and rebuilt from the network on each start.
package kvstore

import "errors"

var ErrKeyNotFound = errors.New("key not found")

type Store interface {
	Get(key string) (string, error)
	Set(key, value string) error
	// Delete removes the given keys; missing keys are not an error.
	Delete(keys ...string) error
	Close() error
}
