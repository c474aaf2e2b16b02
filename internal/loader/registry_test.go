package loader_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexara-six/ingestion/internal/domain"
	"github.com/lexara-six/ingestion/internal/loader"
)

func TestRegistryBuildKnownType(t *testing.T) {
	t.Parallel()
	r := loader.NewRegistry()
	r.Register("iowa_business", func(config map[string]any) (loader.Loader, error) {
		return &fakeLoader{}, nil
	})

	l, err := r.Build("iowa_business", nil)
	require.NoError(t, err)
	assert.NotNil(t, l)
}

func TestRegistryBuildUnknownType(t *testing.T) {
	t.Parallel()
	r := loader.NewRegistry()

	_, err := r.Build("nope", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNoLoader))
}

func TestRegistryBuildConstructorError(t *testing.T) {
	t.Parallel()
	r := loader.NewRegistry()
	r.Register("broken", func(config map[string]any) (loader.Loader, error) {
		return nil, errors.New("bad config")
	})

	_, err := r.Build("broken", nil)
	require.Error(t, err)
}

func TestRegistryJobTypes(t *testing.T) {
	t.Parallel()
	r := loader.NewRegistry()
	r.Register("a", func(map[string]any) (loader.Loader, error) { return &fakeLoader{}, nil })
	r.Register("b", func(map[string]any) (loader.Loader, error) { return &fakeLoader{}, nil })

	types := r.JobTypes()
	assert.Len(t, types, 2)
	assert.Contains(t, types, "a")
	assert.Contains(t, types, "b")
}
