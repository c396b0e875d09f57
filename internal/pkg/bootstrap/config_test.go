package bootstrap

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coupon-core/internal/pkg/lock"
)

func writeConfig(t *testing.T, body string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	t.Setenv("CONFIG_FILE", path)
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	writeConfig(t, `
service:
  name: coupon-service
  port: 9000
infra:
  redis:
    addrs: redis-a:6379
  mysql:
    dsn: root:pw@tcp(db:3306)/coupon
    connMaxLifetime: 30m
lock:
  default:
    strategy: spin
    waitTime: 1s
  resources:
    USER_BALANCE:
      strategy: PUBSUB
      waitTime: 0s
      leaseTime: 10s
coupon:
  cacheTTL: 5s
  warmUp: [1, 2]
`)
	t.Setenv("REDIS_ADDRS", "r1:6379,r2:6379")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("HTTP_PORT", "9100")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Same(t, cfg, GetCurrentConfig())

	assert.Equal(t, 9100, cfg.Service.Port)
	assert.Equal(t, "r1:6379,r2:6379", cfg.Infra.Redis.Addrs)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Infra.Kafka.Brokers)
	assert.Equal(t, 30*time.Minute, cfg.Infra.MySQL.ConnMaxLifetime)
	assert.Equal(t, 5*time.Second, cfg.Coupon.CacheTTL)
	assert.Equal(t, []int64{1, 2}, cfg.Coupon.WarmUp)
	assert.Equal(t, lock.DefaultZookeeperRoot, cfg.Infra.Zookeeper.Root, "defaults survive")

	def, policies, err := cfg.Lock.Policies()
	require.NoError(t, err)
	assert.Equal(t, lock.Policy{Strategy: lock.StrategySpin, WaitTime: time.Second, LeaseTime: 30 * time.Second}, def)
	assert.Equal(t, lock.Policy{Strategy: lock.StrategyPubSub, WaitTime: 0, LeaseTime: 10 * time.Second}, policies[lock.ResourceUserBalance])

	strategies, err := cfg.Lock.Strategies()
	require.NoError(t, err)
	assert.ElementsMatch(t, []lock.Strategy{lock.StrategySpin, lock.StrategyPubSub}, strategies)
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Service.Port)
	assert.Equal(t, "PUBSUB", cfg.Lock.Default.Strategy)
}

func TestLoadConfig_Rejects(t *testing.T) {
	cases := map[string]string{
		"unknown strategy": "lock:\n  default:\n    strategy: MUTEX\n",
		"unknown resource": "lock:\n  resources:\n    CART:\n      strategy: SPIN\n",
		"bad duration":     "lock:\n  default:\n    waitTime: soon\n",
		"bad yaml":         "service: [",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			writeConfig(t, body)
			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}

	writeConfig(t, "lock:\n  default:\n    strategy: MUTEX\n")
	_, err := LoadConfig()
	assert.ErrorIs(t, err, lock.ErrUnknownStrategy)
}

func TestLoadConfig_BadPort(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))
	t.Setenv("HTTP_PORT", "eighty")

	_, err := LoadConfig()
	assert.Error(t, err)
}
