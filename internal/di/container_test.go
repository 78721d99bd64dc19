package di

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type greeter struct{ name string }

func TestContainerRegistry(t *testing.T) {
	c := NewContainer()
	assert.False(t, c.Has("a"))
	assert.Nil(t, c.Get("a"))

	c.Register("b", 2)
	c.Register("a", &greeter{name: "ari"})
	assert.True(t, c.Has("a"))
	assert.Equal(t, []string{"a", "b"}, c.GetNames())

	c.Remove("b")
	assert.Equal(t, []string{"a"}, c.GetNames())

	c.Clear()
	assert.Empty(t, c.GetNames())
}

func TestResolve(t *testing.T) {
	c := NewContainer()
	c.Register(ServiceGraph, &greeter{name: "bo"})

	g, err := Resolve[*greeter](c, ServiceGraph)
	require.NoError(t, err)
	assert.Equal(t, "bo", g.name)

	_, err = Resolve[string](c, ServiceGraph)
	assert.ErrorContains(t, err, "has type")

	_, err = Resolve[*greeter](c, ServiceSessions)
	assert.ErrorContains(t, err, "not registered")
}

func TestGetContainerIsShared(t *testing.T) {
	assert.Same(t, GetContainer(), GetContainer())
}
