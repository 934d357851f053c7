package muxrpc

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistryAddServiceNestsAsyncHandlers(t *testing.T) {
	sub := NewRegistry()
	sub.AddAsync([]string{"get"}, func(args []json.RawMessage) AsyncResult {
		return OkResult(StringBody("blob"))
	})

	top := NewRegistry()
	top.AddService("blobs", sub)

	handler, ok := top.lookupAsync([]string{"blobs", "get"})
	require.True(t, ok)
	require.Equal(t, "blob", handler(nil).Body.Str)

	_, ok = top.lookupAsync([]string{"get"})
	require.False(t, ok)
}

func TestRegistryAddServiceNestsStreamHandlers(t *testing.T) {
	sub := NewRegistry()
	sub.AddSource([]string{"tail"}, func(args []json.RawMessage) <-chan StreamResult {
		ch := make(chan StreamResult)
		close(ch)
		return ch
	})

	top := NewRegistry()
	top.AddService("feed", sub)

	entry, ok := top.lookupStream([]string{"feed", "tail"})
	require.True(t, ok)
	require.Equal(t, kindSource, entry.kind)
}

func TestRegistryLookupMissingMethod(t *testing.T) {
	reg := NewRegistry()
	_, ok := reg.lookupAsync([]string{"nope"})
	require.False(t, ok)
	_, ok = reg.lookupStream([]string{"nope"})
	require.False(t, ok)
}
