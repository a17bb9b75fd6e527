// Package kvstore bridges the cluster's asynchronous, callback-based
// key-value interface to blocking callers. The node scheduler consumes the
// blocking form; the asynchronous form is implemented by whichever transport
// the deployment wires in.
package kvstore

import (
	"github.com/Scusemua/go-utils/config"
	"github.com/Scusemua/go-utils/logger"
	"github.com/Scusemua/go-utils/promise"
	"github.com/pkg/errors"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// AsyncStore is the asynchronous key-value interface. Every operation
// reports its outcome through the supplied callback; a nil status means the
// operation itself succeeded. Optional results are conveyed by pointer: a
// nil value pointer on Get means the key had no value, and a nil addedNum on
// Put means the transport did not report whether an insert occurred.
//
// Implementations must invoke the callback exactly once. They may do so on
// any goroutine, including synchronously from the calling one.
type AsyncStore interface {
	// GetAsync fetches the value stored under key.
	GetAsync(key string, callback func(status error, value *string))

	// PutAsync stores value under key. When overwrite is false, an existing
	// value is left in place. addedNum carries the number of keys newly
	// inserted, when the transport reports it.
	PutAsync(key string, value string, overwrite bool, callback func(status error, addedNum *int))

	// DeleteAsync removes the value stored under key.
	DeleteAsync(key string, callback func(status error))

	// ExistsAsync reports whether a value is stored under key.
	ExistsAsync(key string, callback func(status error, exists *bool))

	// KeysAsync lists the keys beginning with prefix.
	KeysAsync(prefix string, callback func(status error, keys []string))
}

// BlockingClient adapts an AsyncStore for synchronous callers: each call
// hands the store a fresh promise, resolves it from the callback, and waits.
type BlockingClient struct {
	store AsyncStore
	log   logger.Logger
}

// NewBlockingClient wraps the given asynchronous store.
func NewBlockingClient(store AsyncStore) *BlockingClient {
	client := &BlockingClient{store: store}
	config.InitLogger(&client.log, client)
	return client
}

// Get fetches the value stored under key, blocking until the store answers.
// A key with no value yields a NotFound status.
func (c *BlockingClient) Get(key string) (string, error) {
	p := promise.NewSyncPromise()
	c.store.GetAsync(key, func(st error, value *string) {
		if st == nil && value == nil {
			p.Resolve(nil, status.Error(codes.NotFound, "failed to find the key"))
			return
		}
		p.Resolve(value, st)
	})

	result, err := p.Result()
	if err != nil {
		if status.Code(err) != codes.NotFound {
			c.log.Error("Get of key %q failed: %v", key, err)
		}
		return "", err
	}
	return *(result.(*string)), nil
}

// Put stores value under key, blocking until the store answers. It reports
// whether a new key was inserted; a store that does not report an insert
// count is taken to have added nothing.
func (c *BlockingClient) Put(key string, value string, overwrite bool) (added bool, err error) {
	p := promise.NewSyncPromise()
	c.store.PutAsync(key, value, overwrite, func(st error, addedNum *int) {
		added = addedNum != nil && *addedNum != 0
		p.Resolve(nil, st)
	})

	if _, err = p.Result(); err != nil {
		c.log.Error("Put of key %q failed: %v", key, err)
		return false, errors.Wrapf(err, "put of key %q failed", key)
	}
	return added, nil
}

// Delete removes the value stored under key, blocking until the store
// answers.
func (c *BlockingClient) Delete(key string) error {
	p := promise.NewSyncPromise()
	c.store.DeleteAsync(key, func(st error) {
		p.Resolve(nil, st)
	})

	if _, err := p.Result(); err != nil {
		return errors.Wrapf(err, "delete of key %q failed", key)
	}
	return nil
}

// Exists reports whether a value is stored under key, blocking until the
// store answers. A store that answers without a result is taken to mean the
// key does not exist.
func (c *BlockingClient) Exists(key string) (bool, error) {
	p := promise.NewSyncPromise()
	var exists bool
	c.store.ExistsAsync(key, func(st error, result *bool) {
		if result != nil {
			exists = *result
		}
		p.Resolve(nil, st)
	})

	if _, err := p.Result(); err != nil {
		return false, errors.Wrapf(err, "existence check of key %q failed", key)
	}
	return exists, nil
}

// Keys lists the keys beginning with prefix, blocking until the store
// answers. A store that answers without a result yields an empty list.
func (c *BlockingClient) Keys(prefix string) ([]string, error) {
	p := promise.NewSyncPromise()
	var keys []string
	c.store.KeysAsync(prefix, func(st error, result []string) {
		keys = result
		p.Resolve(nil, st)
	})

	if _, err := p.Result(); err != nil {
		return nil, errors.Wrapf(err, "listing keys with prefix %q failed", prefix)
	}
	if keys == nil {
		keys = []string{}
	}
	return keys, nil
}
