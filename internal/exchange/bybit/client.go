package bybit

import (
	bybit_api "github.com/bybit-exchange/bybit.go.api"

	"github.com/ducminhle1904/tick-backtester/internal/safety"
)

// defaultRequestsPerSecond stays well below the public market data IP limit
const defaultRequestsPerSecond = 10

// Client wraps the Bybit API client for public market data
type Client struct {
	httpClient *bybit_api.Client
	retry      RetryConfig
	limiter    *safety.RateLimiter
	testnet    bool
	demo       bool
}

// Config holds the configuration for the Bybit client.
// Kline history is public, so the keys may be empty.
type Config struct {
	APIKey    string
	APISecret string
	Testnet   bool
	Demo      bool // Demo trading environment
	Retry     *RetryConfig

	RequestsPerSecond float64 // 0 = defaultRequestsPerSecond
}

// NewClient creates a new Bybit client
func NewClient(config Config) *Client {
	var baseURL string
	if config.Demo {
		baseURL = "https://api-demo.bybit.com"
	} else if config.Testnet {
		baseURL = bybit_api.TESTNET
	} else {
		baseURL = bybit_api.MAINNET
	}

	httpClient := bybit_api.NewBybitHttpClient(
		config.APIKey,
		config.APISecret,
		bybit_api.WithBaseURL(baseURL),
	)

	retry := DefaultRetryConfig()
	if config.Retry != nil {
		retry = *config.Retry
	}

	rps := config.RequestsPerSecond
	if rps <= 0 {
		rps = defaultRequestsPerSecond
	}

	return &Client{
		httpClient: httpClient,
		retry:      retry,
		limiter:    safety.NewRateLimiter("bybit-market", int(rps), rps),
		testnet:    config.Testnet,
		demo:       config.Demo,
	}
}

// Environment returns a string describing the current environment
func (c *Client) Environment() string {
	if c.demo {
		return "demo"
	} else if c.testnet {
		return "testnet"
	}
	return "mainnet"
}
