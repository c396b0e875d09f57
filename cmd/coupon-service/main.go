// cmd/coupon-service/main.go
package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"gorm.io/gorm"

	"coupon-core/internal/pkg/bootstrap"
	"coupon-core/internal/pkg/database"
	"coupon-core/internal/pkg/lock"
	"coupon-core/internal/pkg/logger"
	"coupon-core/internal/pkg/mq"
	"coupon-core/internal/pkg/redis"
	balanceapp "coupon-core/internal/service/balance/application"
	balanceinfra "coupon-core/internal/service/balance/infrastructure"
	balanceapi "coupon-core/internal/service/balance/interfaces"
	couponapp "coupon-core/internal/service/coupon/application"
	couponinfra "coupon-core/internal/service/coupon/infrastructure"
	ledgeradapter "coupon-core/internal/service/coupon/infrastructure/adapter"
	"coupon-core/internal/service/coupon/infrastructure/rule"
	couponapi "coupon-core/internal/service/coupon/interfaces"
	orderapp "coupon-core/internal/service/order/application"
	"coupon-core/internal/service/order/application/saga"
	orderinfra "coupon-core/internal/service/order/infrastructure"
	orderadapter "coupon-core/internal/service/order/infrastructure/adapter"
	orderapi "coupon-core/internal/service/order/interfaces"
	productapp "coupon-core/internal/service/product/application"
	productport "coupon-core/internal/service/product/domain/port"
	productinfra "coupon-core/internal/service/product/infrastructure"
	productadapter "coupon-core/internal/service/product/infrastructure/adapter"
	productapi "coupon-core/internal/service/product/interfaces"
)

const serviceName = "coupon-service"

// main 函数是应用的"组装根" (Composition Root)
// 它的核心职责是：创建并组装所有依赖项，然后启动应用。
func main() {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		bootstrap.Fatal(err, "failed to load config")
	}

	err = bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Config:      cfg,
		RegisterHandlers: func(app bootstrap.AppCtx) error {
			return wire(app)
		},
	})
	if err != nil {
		bootstrap.Fatal(err, "service exited")
	}
}

func wire(app bootstrap.AppCtx) error {
	cfg := app.Config
	ctx := app.Context()
	tracer := otel.Tracer(serviceName)

	// 1. 初始化基础设施
	redisClient, err := redis.NewClient(cfg.Infra.Redis.Addrs)
	if err != nil {
		return fmt.Errorf("failed to initialize redis client: %w", err)
	}
	app.OnShutdown(func(context.Context) error { return redisClient.Close() })

	db, err := database.OpenMySQL(cfg.Infra.MySQL.DSN, database.PoolConfig{
		MaxOpenConns:    cfg.Infra.MySQL.MaxOpenConns,
		MaxIdleConns:    cfg.Infra.MySQL.MaxIdleConns,
		ConnMaxLifetime: cfg.Infra.MySQL.ConnMaxLifetime,
	})
	if err != nil {
		return fmt.Errorf("failed to connect mysql: %w", err)
	}
	if cfg.Infra.MySQL.AutoMigrate {
		if err := migrate(db); err != nil {
			return err
		}
	}

	// 2. 锁执行器与 Guard
	guard, err := buildGuard(app, redisClient)
	if err != nil {
		return err
	}

	// 3. 业务服务
	var publisher productport.StockEventPublisher = productadapter.LogPublisher{}
	if len(cfg.Infra.Kafka.Brokers) > 0 {
		writer := mq.NewKafkaWriter(cfg.Infra.Kafka.Brokers, productadapter.StockChangedTopic)
		app.OnShutdown(func(context.Context) error { return writer.Close() })
		publisher = productadapter.NewStockEventKafkaPublisher(writer)
	}

	ledger, err := ledgeradapter.NewLedgerRedisAdapter(redisClient)
	if err != nil {
		return err
	}
	rules, err := rule.NewCELRuleEngine()
	if err != nil {
		return err
	}
	couponRepo := couponinfra.NewGormRepository(db)
	cachedCoupons, err := couponinfra.NewCachedCouponRepository(couponRepo, cfg.Coupon.CacheTTL)
	if err != nil {
		return err
	}
	app.OnShutdown(func(context.Context) error { cachedCoupons.Close(); return nil })

	coupons := couponapp.NewCouponService(cachedCoupons, couponRepo, ledger, rules, guard, tracer)
	balances := balanceapp.NewBalanceService(balanceinfra.NewGormRepository(db), guard, tracer)
	products := productapp.NewProductService(productinfra.NewGormRepository(db), guard, publisher, tracer)
	payments := orderapp.NewPaymentService(orderinfra.NewGormOrderRepository(db), saga.Deps{
		Balance:   orderadapter.NewBalanceAdapter(balances),
		Inventory: orderadapter.NewInventoryAdapter(products),
		Coupon:    orderadapter.NewCouponAdapter(coupons),
	}, guard, tracer)

	// 4. 预热快速通道，启动过期任务
	for _, couponID := range cfg.Coupon.WarmUp {
		if err := coupons.WarmUp(ctx, couponID); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Int64("coupon_id", couponID).Msg("could not warm up coupon ledger")
		}
	}
	if cfg.Coupon.ExpireInterval > 0 {
		app.Go(func(ctx context.Context) error {
			runExpiry(ctx, coupons, cfg.Coupon.ExpireInterval)
			return nil
		})
	}

	// 5. 注册路由
	couponapi.NewCouponHandler(coupons).RegisterRoutes(app.Mux)
	balanceapi.NewBalanceHandler(balances).RegisterRoutes(app.Mux)
	productapi.NewProductHandler(products).RegisterRoutes(app.Mux)
	orderapi.NewOrderHandler(payments).RegisterRoutes(app.Mux)
	return nil
}

func migrate(db *gorm.DB) error {
	models := append(couponinfra.Models(), orderinfra.Models()...)
	models = append(models, &balanceinfra.BalanceModel{}, &productinfra.ProductModel{})
	if err := db.AutoMigrate(models...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// buildGuard 只创建配置中用到的执行器
func buildGuard(app bootstrap.AppCtx, redisClient *redis.Client) (*lock.Guard, error) {
	cfg := app.Config
	def, policies, err := cfg.Lock.Policies()
	if err != nil {
		return nil, err
	}
	strategies, err := cfg.Lock.Strategies()
	if err != nil {
		return nil, err
	}

	executors := make(map[lock.Strategy]lock.Executor, len(strategies))
	for _, s := range strategies {
		switch s {
		case lock.StrategySpin:
			executors[s] = lock.NewSpinExecutor(redisClient.GetClient(), lock.WithPollInterval(cfg.Lock.PollInterval))
		case lock.StrategyPubSub:
			e, err := lock.NewPubSubExecutor(app.Context(), redisClient.GetClient(), lock.WithMaxBackstop(cfg.Lock.MaxBackstop))
			if err != nil {
				return nil, err
			}
			app.OnShutdown(func(context.Context) error { return e.Close() })
			executors[s] = e
		case lock.StrategyZookeeper:
			if len(cfg.Infra.Zookeeper.Servers) == 0 {
				return nil, fmt.Errorf("%w: ZOOKEEPER requires ZK_SERVERS", lock.ErrUnknownStrategy)
			}
			conn, err := lock.ConnectZookeeper(strings.Join(cfg.Infra.Zookeeper.Servers, ","), cfg.Infra.Zookeeper.SessionTimeout)
			if err != nil {
				return nil, err
			}
			app.OnShutdown(func(context.Context) error { conn.Close(); return nil })
			executors[s] = lock.NewZookeeperExecutor(conn, cfg.Infra.Zookeeper.Root)
		}
	}
	return lock.NewGuard(lock.NewRegistry(executors), def, policies)
}

func runExpiry(ctx context.Context, coupons *couponapp.CouponService, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := coupons.ExpireOverdue(ctx); err != nil {
				logger.Ctx(ctx).Warn().Err(err).Msg("expire overdue coupons failed")
			}
		}
	}
}
