package http

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/counselsim/internal/gateway"
	"github.com/fyrsmithlabs/counselsim/internal/prompt"
	"github.com/fyrsmithlabs/counselsim/internal/session"
)

func newRegistrySession() *session.Session {
	return session.New(gateway.NewStub(), prompt.New(nil))
}

func TestRegistryAddDoRemove(t *testing.T) {
	r := NewRegistry(nil)
	assert.Equal(t, 0, r.Len())

	id := r.Add(newRegistrySession())
	assert.NotEmpty(t, id)
	assert.Equal(t, 1, r.Len())

	var seen *session.Session
	err := r.Do(id, func(sess *session.Session) error {
		seen = sess
		return nil
	})
	require.NoError(t, err)
	assert.NotNil(t, seen)

	assert.True(t, r.Remove(id))
	assert.Equal(t, 0, r.Len())
	assert.False(t, r.Remove(id))
}

func TestRegistryDoUnknownID(t *testing.T) {
	r := NewRegistry(nil)

	err := r.Do("missing", func(*session.Session) error {
		t.Fatal("fn must not run for unknown ids")
		return nil
	})
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRegistryDistinctIDs(t *testing.T) {
	r := NewRegistry(nil)

	a := r.Add(newRegistrySession())
	b := r.Add(newRegistrySession())
	assert.NotEqual(t, a, b)
	assert.Equal(t, 2, r.Len())
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := NewRegistry(nil)

	ids := make([]string, 8)
	for i := range ids {
		ids[i] = r.Add(newRegistrySession())
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		id := id
		for j := 0; j < 4; j++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = r.Do(id, func(*session.Session) error { return nil })
			}()
		}
	}
	wg.Wait()

	assert.Equal(t, 8, r.Len())
}
