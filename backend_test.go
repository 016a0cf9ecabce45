package video_acquirer

import (
	"context"
	"errors"
	"testing"

	assert_ "github.com/stretchr/testify/assert"
)

type namedBackend struct {
	name string
}

func (b namedBackend) Name() string { return b.name }

func (b namedBackend) ResolveMetadata(context.Context, Locator) (*Metadata, error) {
	return &Metadata{}, nil
}

func (b namedBackend) FetchEncoding(context.Context, FetchRequest, Sink) (*FetchResult, error) {
	return &FetchResult{}, nil
}

func namedFactory(name string) BackendFactory {
	return func(BackendOptions) (Backend, error) { return namedBackend{name}, nil }
}

func TestBackendRegistry(t *testing.T) {
	assert := assert_.New(t)

	var r BackendRegistry
	assert.ErrorIs(r.Add(BackendRegistration{Name: "x"}), ErrInvalidBackend)
	assert.NoError(r.CreatePriority("secondary", namedFactory("secondary"), PriorityLowest))
	assert.NoError(r.CreatePriority("primary", namedFactory("primary"), PriorityDefault))
	assert.ErrorIs(r.CreatePriority("primary", namedFactory("primary"), PriorityDefault), ErrDuplicateBackend)
	assert.Equal([]string{"primary", "secondary"}, r.List())

	assert.NoError(r.SetPriority("secondary", PriorityHighest))
	assert.Equal([]string{"secondary", "primary"}, r.List())
	assert.ErrorIs(r.SetPriority("missing", 0), ErrUnknownBackend)

	b, err := r.Build("primary", BackendOptions{})
	assert.NoError(err)
	assert.Equal("primary", b.Name())
	_, err = r.Build("missing", BackendOptions{})
	assert.ErrorIs(err, ErrUnknownBackend)
}

func TestBackendRegistry_BuildAll(t *testing.T) {
	assert := assert_.New(t)

	var r BackendRegistry
	r.MustCreatePriority("a", namedFactory("a"), 1)
	r.MustCreatePriority("broken", func(BackendOptions) (Backend, error) {
		return nil, errors.New("binary not found")
	}, 2)
	r.MustCreatePriority("c", namedFactory("c"), 3)

	built, err := r.BuildAll(BackendOptions{})
	assert.Error(err)
	assert.Contains(err.Error(), "[broken]")
	assert.Len(built, 2)
	assert.Equal("a", built[0].Name())
	assert.Equal("c", built[1].Name())
}
