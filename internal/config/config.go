package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Common contains Elasticsearch parameters shared by every service.
type Common struct {
	SearchAddr  string
	SearchIndex string
}

// Indexer holds configuration for the Kafka -> Elasticsearch consumer.
type Indexer struct {
	Common
	KafkaBrokers  []string
	KafkaTopic    string
	KafkaGroup    string
	ReadyAttempts int
	ReadyDelay    time.Duration
	BrokerWarmup  time.Duration
	ErrorBackoff  time.Duration
	MetricsAddr   string
}

// API describes HTTP-layer configuration for the search service.
type API struct {
	Common
	BindAddr         string
	DefaultPageSize  int
	MaxPageSize      int
	RequestTimeout   time.Duration
	HighlightPreTag  string
	HighlightPostTag string
	RedisAddr        string
	CacheTTL         time.Duration
	RateLimit        int
	RateWindow       time.Duration
}

// Publisher configures the change-event producer.
type Publisher struct {
	KafkaBrokers []string
	KafkaTopic   string
}

// LoadIndexer builds an Indexer config from environment variables.
func LoadIndexer() (*Indexer, error) {
	c := &Indexer{
		Common:        LoadCommon(),
		KafkaBrokers:  splitAndTrim(getEnv("KAFKA_BROKERS", "kafka:9092")),
		KafkaTopic:    getEnv("KAFKA_TOPIC", "programs.events"),
		KafkaGroup:    getEnv("KAFKA_CONSUMER_GROUP", "discovery-indexer"),
		ReadyAttempts: getInt("INDEXER_READY_ATTEMPTS", 60),
		ReadyDelay:    getDuration("INDEXER_READY_DELAY", "5s"),
		BrokerWarmup:  getDuration("INDEXER_BROKER_WARMUP", "15s"),
		ErrorBackoff:  getDuration("INDEXER_ERROR_BACKOFF", "5s"),
		MetricsAddr:   getEnv("INDEXER_METRICS_ADDR", ":9102"),
	}

	if len(c.KafkaBrokers) == 0 {
		return nil, fmt.Errorf("KAFKA_BROKERS must contain at least one broker")
	}
	if c.KafkaGroup == "" {
		return nil, fmt.Errorf("KAFKA_CONSUMER_GROUP cannot be empty")
	}
	if c.ReadyAttempts <= 0 {
		return nil, fmt.Errorf("INDEXER_READY_ATTEMPTS must be positive")
	}
	if c.ReadyDelay <= 0 {
		return nil, fmt.Errorf("INDEXER_READY_DELAY must be positive")
	}
	if c.BrokerWarmup < 0 {
		return nil, fmt.Errorf("INDEXER_BROKER_WARMUP cannot be negative")
	}
	if c.ErrorBackoff <= 0 {
		return nil, fmt.Errorf("INDEXER_ERROR_BACKOFF must be positive")
	}

	return c, nil
}

// LoadAPI builds an API config from environment variables.
func LoadAPI() (*API, error) {
	c := &API{
		Common:           LoadCommon(),
		BindAddr:         getEnv("API_BIND_ADDR", "0.0.0.0:8080"),
		DefaultPageSize:  getInt("API_PAGE_SIZE", 20),
		MaxPageSize:      getInt("API_MAX_PAGE_SIZE", 100),
		RequestTimeout:   getDuration("API_REQUEST_TIMEOUT", "30s"),
		HighlightPreTag:  getEnv("API_HIGHLIGHT_PRE_TAG", "<em>"),
		HighlightPostTag: getEnv("API_HIGHLIGHT_POST_TAG", "</em>"),
		RedisAddr:        getEnv("REDIS_ADDR", ""),
		CacheTTL:         getDuration("API_CACHE_TTL", "30s"),
		RateLimit:        getInt("API_RATE_LIMIT", 100),
		RateWindow:       getDuration("API_RATE_WINDOW", "1m"),
	}

	if c.DefaultPageSize <= 0 {
		return nil, fmt.Errorf("API_PAGE_SIZE must be positive")
	}
	if c.MaxPageSize <= 0 {
		return nil, fmt.Errorf("API_MAX_PAGE_SIZE must be positive")
	}
	if c.DefaultPageSize > c.MaxPageSize {
		return nil, fmt.Errorf("API_PAGE_SIZE cannot exceed API_MAX_PAGE_SIZE")
	}
	if c.RequestTimeout <= 0 {
		return nil, fmt.Errorf("API_REQUEST_TIMEOUT must be positive")
	}
	if c.CacheTTL <= 0 {
		return nil, fmt.Errorf("API_CACHE_TTL must be positive")
	}
	if c.RateLimit <= 0 {
		return nil, fmt.Errorf("API_RATE_LIMIT must be positive")
	}

	return c, nil
}

// LoadPublisher builds a Publisher config from environment variables.
func LoadPublisher() (*Publisher, error) {
	c := &Publisher{
		KafkaBrokers: splitAndTrim(getEnv("KAFKA_BROKERS", "kafka:9092")),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "programs.events"),
	}

	if len(c.KafkaBrokers) == 0 {
		return nil, fmt.Errorf("KAFKA_BROKERS must contain at least one broker")
	}
	if c.KafkaTopic == "" {
		return nil, fmt.Errorf("KAFKA_TOPIC cannot be empty")
	}

	return c, nil
}

// LoadCommon builds the shared Elasticsearch parameters. Exposed for
// tools that need only the search connection.
func LoadCommon() Common {
	return Common{
		SearchAddr:  getEnv("ELASTICSEARCH_ADDR", "http://elasticsearch:9200"),
		SearchIndex: getEnv("DISCOVERY_INDEX_NAME", "programs"),
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key, fallback string) time.Duration {
	raw := getEnv(key, fallback)
	d, err := time.ParseDuration(raw)
	if err != nil {
		fd, ferr := time.ParseDuration(fallback)
		if ferr != nil {
			panic(fmt.Sprintf("invalid fallback duration %q: %v", fallback, ferr))
		}
		return fd
	}
	return d
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
