// Package bootstrap 封装了服务的通用启动与优雅关停逻辑。
package bootstrap

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"coupon-core/internal/pkg/logger"
	"coupon-core/internal/pkg/metrics"
	"coupon-core/internal/pkg/nacos"
	"coupon-core/internal/pkg/tracing"
)

const shutdownTimeout = 10 * time.Second

// AppCtx 在注册路由时提供给各服务
type AppCtx struct {
	Mux    *http.ServeMux
	Config *Config

	ctx     context.Context
	group   *errgroup.Group
	mu      *sync.Mutex
	closers *[]func(ctx context.Context) error
}

// Context 在收到退出信号时取消
func (a AppCtx) Context() context.Context {
	return a.ctx
}

// Go 启动一个后台任务。任务应在 ctx 取消时返回，返回错误会触发整个服务退出。
func (a AppCtx) Go(fn func(ctx context.Context) error) {
	a.group.Go(func() error { return fn(a.ctx) })
}

// OnShutdown 注册关停时的清理动作，按注册的相反顺序执行
func (a AppCtx) OnShutdown(fn func(ctx context.Context) error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	*a.closers = append(*a.closers, fn)
}

// AppInfo 包含了启动一个服务所需的所有特定信息。
type AppInfo struct {
	ServiceName string
	Config      *Config
	// RegisterHandlers 注册服务自己的 HTTP 路由并初始化依赖
	RegisterHandlers func(appCtx AppCtx) error
}

// StartService 初始化日志、链路追踪与指标，启动 HTTP 服务，
// 配置了 Nacos 时注册服务实例，收到 SIGINT/SIGTERM 后优雅关停。
func StartService(info AppInfo) error {
	cfg := info.Config
	if cfg == nil {
		cfg = GetCurrentConfig()
	}
	logger.Init(logger.Config{Level: cfg.Service.LogLevel, Service: info.ServiceName, Pretty: cfg.Service.LogPretty})

	tp, err := tracing.InitTracerProvider(info.ServiceName, cfg.Infra.Jaeger.Endpoint)
	if err != nil {
		return err
	}
	metrics.Register(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	group, gctx := errgroup.WithContext(ctx)

	var closers []func(ctx context.Context) error
	app := AppCtx{
		Mux:     http.NewServeMux(),
		Config:  cfg,
		ctx:     gctx,
		group:   group,
		mu:      &sync.Mutex{},
		closers: &closers,
	}
	app.OnShutdown(tp.Shutdown)

	app.Mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	app.Mux.Handle("/metrics", promhttp.Handler())

	if info.RegisterHandlers != nil {
		if err := info.RegisterHandlers(app); err != nil {
			runClosers(closers)
			return err
		}
	}

	if cfg.Infra.Nacos.ServerAddrs != "" {
		deregister, err := registerNacos(info.ServiceName, cfg)
		if err != nil {
			runClosers(closers)
			return err
		}
		// 最后注册、最先执行：先摘流量再关资源
		app.OnShutdown(deregister)
	}

	server := &http.Server{Addr: ":" + strconv.Itoa(cfg.Service.Port), Handler: app.Mux}
	group.Go(func() error {
		log.Info().Str("service", info.ServiceName).Int("port", cfg.Service.Port).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-gctx.Done()
		log.Info().Str("service", info.ServiceName).Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	err = group.Wait()
	runClosers(closers)
	if err != nil {
		log.Error().Err(err).Str("service", info.ServiceName).Msg("service stopped with error")
		return err
	}
	log.Info().Str("service", info.ServiceName).Msg("gracefully shut down")
	return nil
}

func runClosers(closers []func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](ctx); err != nil {
			log.Warn().Err(err).Msg("shutdown step failed")
		}
	}
}

func registerNacos(serviceName string, cfg *Config) (func(ctx context.Context) error, error) {
	client, err := nacos.NewNacosClient(cfg.Infra.Nacos.ServerAddrs, cfg.Infra.Nacos.Namespace, cfg.Infra.Nacos.Group)
	if err != nil {
		return nil, err
	}
	ip, err := outboundIP()
	if err != nil {
		client.Close()
		return nil, err
	}
	if err := client.RegisterServiceInstance(serviceName, ip, cfg.Service.Port); err != nil {
		client.Close()
		return nil, err
	}
	return func(context.Context) error {
		defer client.Close()
		return client.DeregisterServiceInstance(serviceName, ip, cfg.Service.Port)
	}, nil
}

// outboundIP 返回本机访问外网时使用的地址，不会真正发送数据
func outboundIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", err
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String(), nil
}

// Fatal 记录错误并退出进程
func Fatal(err error, msg string) {
	log.Error().Err(err).Msg(msg)
	os.Exit(1)
}
