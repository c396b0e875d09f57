package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"

	"coupon-core/internal/pkg/lock"
)

// Config 是服务的全部配置，来自 YAML 文件并可被环境变量覆盖
type Config struct {
	Service ServiceConfig `yaml:"service"`
	Infra   InfraConfig   `yaml:"infra"`
	Lock    LockConfig    `yaml:"lock"`
	Coupon  CouponConfig  `yaml:"coupon"`
}

type ServiceConfig struct {
	Name      string `yaml:"name"`
	Port      int    `yaml:"port"`
	LogLevel  string `yaml:"logLevel"`
	LogPretty bool   `yaml:"logPretty"`
}

type InfraConfig struct {
	Redis struct {
		Addrs string `yaml:"addrs"`
	} `yaml:"redis"`
	MySQL struct {
		DSN             string        `yaml:"dsn"`
		MaxOpenConns    int           `yaml:"maxOpenConns"`
		MaxIdleConns    int           `yaml:"maxIdleConns"`
		ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
		AutoMigrate     bool          `yaml:"autoMigrate"`
	} `yaml:"mysql"`
	Kafka struct {
		Brokers []string `yaml:"brokers"`
	} `yaml:"kafka"`
	Jaeger struct {
		Endpoint string `yaml:"endpoint"`
	} `yaml:"jaeger"`
	Zookeeper struct {
		Servers        []string      `yaml:"servers"`
		SessionTimeout time.Duration `yaml:"sessionTimeout"`
		Root           string        `yaml:"root"`
	} `yaml:"zookeeper"`
	Nacos struct {
		ServerAddrs string `yaml:"serverAddrs"`
		Namespace   string `yaml:"namespace"`
		Group       string `yaml:"group"`
	} `yaml:"nacos"`
}

// PolicyConfig 是单个资源的锁配置，时间为 Go duration 字符串，如 "3s"
type PolicyConfig struct {
	Strategy  string `yaml:"strategy"`
	WaitTime  string `yaml:"waitTime"`
	LeaseTime string `yaml:"leaseTime"`
}

type LockConfig struct {
	Default      PolicyConfig            `yaml:"default"`
	Resources    map[string]PolicyConfig `yaml:"resources"`
	PollInterval time.Duration           `yaml:"pollInterval"`
	MaxBackstop  time.Duration           `yaml:"maxBackstop"`
}

type CouponConfig struct {
	CacheTTL       time.Duration `yaml:"cacheTTL"`
	WarmUp         []int64       `yaml:"warmUp"`
	ExpireInterval time.Duration `yaml:"expireInterval"`
}

var currentConfig atomic.Pointer[Config]

// GetCurrentConfig 返回最近一次加载的配置，未加载时返回默认值
func GetCurrentConfig() *Config {
	if c := currentConfig.Load(); c != nil {
		return c
	}
	return defaultConfig()
}

func defaultConfig() *Config {
	c := &Config{}
	c.Service.Name = "coupon-service"
	c.Service.Port = 8080
	c.Service.LogLevel = "info"
	c.Infra.Redis.Addrs = "localhost:6379"
	c.Infra.MySQL.MaxOpenConns = 50
	c.Infra.MySQL.MaxIdleConns = 10
	c.Infra.MySQL.ConnMaxLifetime = time.Hour
	c.Infra.Zookeeper.SessionTimeout = 10 * time.Second
	c.Infra.Zookeeper.Root = lock.DefaultZookeeperRoot
	c.Infra.Nacos.Group = "DEFAULT_GROUP"
	c.Lock.Default = PolicyConfig{Strategy: string(lock.StrategyPubSub), WaitTime: "3s", LeaseTime: "30s"}
	c.Lock.PollInterval = lock.DefaultPollInterval
	c.Lock.MaxBackstop = lock.DefaultMaxBackstop
	c.Coupon.CacheTTL = 30 * time.Second
	c.Coupon.ExpireInterval = time.Minute
	return c
}

// LoadConfig 读取 CONFIG_FILE (默认 configs/config.yaml)，然后应用环境变量覆盖。
// 文件不存在时只使用默认值与环境变量。
func LoadConfig() (*Config, error) {
	path := getEnv("CONFIG_FILE", "configs/config.yaml")
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if _, _, err := cfg.Lock.Policies(); err != nil {
		return nil, err
	}
	currentConfig.Store(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	cfg.Infra.Redis.Addrs = getEnv("REDIS_ADDRS", cfg.Infra.Redis.Addrs)
	cfg.Infra.MySQL.DSN = getEnv("MYSQL_DSN", cfg.Infra.MySQL.DSN)
	cfg.Infra.Jaeger.Endpoint = getEnv("JAEGER_ENDPOINT", cfg.Infra.Jaeger.Endpoint)
	cfg.Infra.Nacos.ServerAddrs = getEnv("NACOS_SERVER_ADDRS", cfg.Infra.Nacos.ServerAddrs)
	cfg.Infra.Nacos.Namespace = getEnv("NACOS_NAMESPACE", cfg.Infra.Nacos.Namespace)
	cfg.Infra.Nacos.Group = getEnv("NACOS_GROUP", cfg.Infra.Nacos.Group)
	cfg.Service.LogLevel = getEnv("LOG_LEVEL", cfg.Service.LogLevel)
	if v := getEnv("KAFKA_BROKERS", ""); v != "" {
		cfg.Infra.Kafka.Brokers = splitList(v)
	}
	if v := getEnv("ZK_SERVERS", ""); v != "" {
		cfg.Infra.Zookeeper.Servers = splitList(v)
	}
	if v := getEnv("HTTP_PORT", ""); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid HTTP_PORT %q: %w", v, err)
		}
		cfg.Service.Port = port
	}
	return nil
}

// Policies 把配置转换为锁策略。未知的策略或资源名返回错误。
func (c LockConfig) Policies() (lock.Policy, map[lock.Resource]lock.Policy, error) {
	def, err := c.Default.toPolicy(lock.DefaultPolicy)
	if err != nil {
		return lock.Policy{}, nil, fmt.Errorf("lock.default: %w", err)
	}
	policies := make(map[lock.Resource]lock.Policy, len(c.Resources))
	for name, pc := range c.Resources {
		r, err := lock.ParseResource(name)
		if err != nil {
			return lock.Policy{}, nil, err
		}
		p, err := pc.toPolicy(def)
		if err != nil {
			return lock.Policy{}, nil, fmt.Errorf("lock.resources.%s: %w", name, err)
		}
		policies[r] = p
	}
	return def, policies, nil
}

// toPolicy 未填写的字段取 fallback 的值
func (pc PolicyConfig) toPolicy(fallback lock.Policy) (lock.Policy, error) {
	p := fallback
	if pc.Strategy != "" {
		s, err := lock.ParseStrategy(pc.Strategy)
		if err != nil {
			return p, err
		}
		p.Strategy = s
	}
	if pc.WaitTime != "" {
		d, err := time.ParseDuration(pc.WaitTime)
		if err != nil {
			return p, fmt.Errorf("waitTime: %w", err)
		}
		p.WaitTime = d
	}
	if pc.LeaseTime != "" {
		d, err := time.ParseDuration(pc.LeaseTime)
		if err != nil {
			return p, fmt.Errorf("leaseTime: %w", err)
		}
		p.LeaseTime = d
	}
	return p, nil
}

// Strategies 返回配置中用到的全部策略
func (c LockConfig) Strategies() ([]lock.Strategy, error) {
	def, policies, err := c.Policies()
	if err != nil {
		return nil, err
	}
	seen := map[lock.Strategy]bool{def.Strategy: true}
	out := []lock.Strategy{def.Strategy}
	for _, p := range policies {
		if !seen[p.Strategy] {
			seen[p.Strategy] = true
			out = append(out, p.Strategy)
		}
	}
	return out, nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// getEnv 是一个内部辅助函数，从环境变量中读取配置。
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
