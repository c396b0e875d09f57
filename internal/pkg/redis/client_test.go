package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunScript(t *testing.T) {
	mr := miniredis.RunT(t)
	c := Wrap(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = c.Close() })

	require.NoError(t, c.LoadScriptFromContent("incr_by", `return redis.call('incrby', KEYS[1], ARGV[1])`))

	res, err := c.RunScript(context.Background(), "incr_by", []string{"n"}, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(5), res)

	_, err = c.RunScript(context.Background(), "missing", nil)
	assert.Error(t, err)
}

func TestNewClientRequiresAddress(t *testing.T) {
	_, err := NewClient(" , ")
	assert.Error(t, err)
}

func TestNewClientSingleNode(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := NewClient(mr.Addr())
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.GetClient().Set(context.Background(), "k", "v", 0).Err())
	v, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)
}
