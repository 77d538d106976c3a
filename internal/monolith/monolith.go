// Package monolith provides the application container and module interface.
package monolith

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/fd1az/flashloan-arb/internal/apperror"
	"github.com/fd1az/flashloan-arb/internal/asset"
	"github.com/fd1az/flashloan-arb/internal/config"
	"github.com/fd1az/flashloan-arb/internal/di"
	"github.com/fd1az/flashloan-arb/internal/httpclient"
	"github.com/fd1az/flashloan-arb/internal/logger"
	"github.com/fd1az/flashloan-arb/internal/ratelimit"
)

// Shared service names registered by New.
const (
	ServiceConfig        = "config"
	ServiceLogger        = "logger"
	ServiceEthClient     = "ethClient"
	ServiceEthWSClient   = "ethWSClient" // *ethclient.Client, nil without a websocket endpoint
	ServiceAssetRegistry = "assetRegistry"
	ServiceRPCLimiter    = "rpcLimiter"
	ServiceRedis         = "redisClient" // *redis.Client, nil when not configured
)

// rpcMaxConns caps concurrent HTTP connections to the node.
const rpcMaxConns = 8

// Monolith is the main application container providing access to shared infrastructure.
type Monolith interface {
	Config() *config.Config
	Logger() logger.LoggerInterface
	EthClient() *ethclient.Client
	AssetRegistry() *asset.Registry
	Services() di.ServiceRegistry
}

// Module represents a bounded context module that can register services and start up.
type Module interface {
	RegisterServices(di.Container) error
	Startup(context.Context, Monolith) error
}

// app implements the Monolith interface.
type app struct {
	config        *config.Config
	logger        logger.LoggerInterface
	ethClient     *ethclient.Client
	wsClient      *ethclient.Client
	redis         *redis.Client
	assetRegistry *asset.Registry
	container     di.Container
}

// New dials the configured endpoints and registers the shared services.
// The websocket and redis connections are optional; failing to reach them
// is logged and the corresponding service is registered as nil.
func New(ctx context.Context, cfg *config.Config, log logger.LoggerInterface) (*app, error) {
	httpClient, err := httpclient.New(
		httpclient.WithProviderName("ethereum_rpc"),
		httpclient.WithMaxConnsPerHost(rpcMaxConns),
	)
	if err != nil {
		return nil, apperror.New(apperror.CodeConfigurationError,
			apperror.WithCause(err),
			apperror.WithContext("build rpc http client"))
	}
	rpcClient, err := rpc.DialOptions(ctx, cfg.Ethereum.HTTPURL, rpc.WithHTTPClient(httpClient))
	if err != nil {
		return nil, apperror.New(apperror.CodeEthereumConnectionFailed,
			apperror.WithCause(err),
			apperror.WithContext("dial http endpoint"))
	}
	ethClient := ethclient.NewClient(rpcClient)

	var wsClient *ethclient.Client
	if cfg.Ethereum.WebSocketURL != "" {
		dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		wsClient, err = ethclient.DialContext(dialCtx, cfg.Ethereum.WebSocketURL)
		cancel()
		if err != nil {
			log.Warn(ctx, "websocket endpoint unavailable, event subscriptions disabled", "error", err)
			wsClient = nil
		}
	}

	redisClient := connectRedis(ctx, cfg.Execution.RedisURL, log)

	registry := BuildRegistry(cfg)

	rps := cfg.Ethereum.RequestsPerSecond
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	limiter := ratelimit.NewWithBurst(rps, burst)

	container := di.NewContainer()
	container.Register(ServiceConfig, cfg)
	container.Register(ServiceLogger, log)
	container.Register(ServiceEthClient, ethClient)
	container.Register(ServiceEthWSClient, wsClient)
	container.Register(ServiceAssetRegistry, registry)
	container.Register(ServiceRPCLimiter, limiter)
	container.Register(ServiceRedis, redisClient)

	return &app{
		config:        cfg,
		logger:        log,
		ethClient:     ethClient,
		wsClient:      wsClient,
		redis:         redisClient,
		assetRegistry: registry,
		container:     container,
	}, nil
}

func connectRedis(ctx context.Context, url string, log logger.LoggerInterface) *redis.Client {
	if url == "" {
		return nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		log.Warn(ctx, "invalid redis url, distributed locking disabled", "error", err)
		return nil
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warn(ctx, "redis unreachable, distributed locking disabled", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildRegistry returns the well-known assets overlaid with the configured tokens.
func BuildRegistry(cfg *config.Config) *asset.Registry {
	registry := asset.DefaultRegistry()
	for _, t := range cfg.Tokens {
		a := asset.NewAsset(common.HexToAddress(t.Address), t.Symbol, t.Decimals)
		if t.ReferencePrice > 0 {
			a = a.WithReferencePrice(decimal.NewFromFloat(t.ReferencePrice))
		}
		registry.Upsert(a)
	}
	return registry
}

func (a *app) Config() *config.Config {
	return a.config
}

func (a *app) Logger() logger.LoggerInterface {
	return a.logger
}

func (a *app) EthClient() *ethclient.Client {
	return a.ethClient
}

func (a *app) AssetRegistry() *asset.Registry {
	return a.assetRegistry
}

func (a *app) Services() di.ServiceRegistry {
	return a.container
}

// Container returns the DI container for module registration.
func (a *app) Container() di.Container {
	return a.container
}

// RegisterModules registers all provided modules.
func (a *app) RegisterModules(modules ...Module) error {
	for _, m := range modules {
		if err := m.RegisterServices(a.container); err != nil {
			return err
		}
	}
	return nil
}

// StartModules starts all provided modules.
func (a *app) StartModules(ctx context.Context, modules ...Module) error {
	for _, m := range modules {
		if err := m.Startup(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

// Close closes all resources.
func (a *app) Close() error {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.wsClient != nil {
		a.wsClient.Close()
	}
	if a.ethClient != nil {
		a.ethClient.Close()
	}
	return nil
}
