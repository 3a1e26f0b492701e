package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/caarlos0/env/v7"
)

// Config is the full environment surface of the server. Master and
// workers parse the same variables; SMPP_WORKER_INDEX tells the two
// roles apart.
type Config struct {
	Host string `env:"HOST" envDefault:"0.0.0.0"`
	Port int    `env:"PORT" envDefault:"2775"`

	WorkersCount         int    `env:"WORKERS_COUNT" envDefault:"2"`
	WorkerSocketTemplate string `env:"WORKER_SOCKET_TEMPLATE" envDefault:"/tmp/smpp_server_{port}_worker_{i}.sock"`
	QueueBasePort        int    `env:"INCOMING_MESSAGES_QUEUE_BASE_PORT" envDefault:"25555"`

	Provider            string `env:"PROVIDER" envDefault:"logging"`
	ProviderFile        string `env:"PROVIDER_FILE" envDefault:"sms.txt"`
	ProviderClientsFile string `env:"PROVIDER_CLIENTS_FILE"`
	DatabaseURL         string `env:"DATABASE_URL"`

	ReceiptBusAMQPURL string `env:"RECEIPT_BUS_AMQP_URL"`

	MetricsListen        string `env:"METRICS_LISTEN"`
	LogLevel             string `env:"LOG_LEVEL" envDefault:"info"`
	HAProxyProxyProtocol bool   `env:"HAPROXY_PROXY_PROTOCOL"`

	// WorkerIndex is set by the master on spawned workers. -1 means this
	// process is the master.
	WorkerIndex int `env:"SMPP_WORKER_INDEX" envDefault:"-1"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parsing environment: %w", err)
	}
	if cfg.WorkersCount < 1 {
		return cfg, fmt.Errorf("WORKERS_COUNT must be at least 1, got %d", cfg.WorkersCount)
	}
	return cfg, nil
}

// WorkerSocket resolves the unix socket path of worker i from the
// template's {port} and {i} placeholders.
func (c Config) WorkerSocket(i int) string {
	r := strings.NewReplacer(
		"{port}", strconv.Itoa(c.Port),
		"{i}", strconv.Itoa(i),
	)
	return r.Replace(c.WorkerSocketTemplate)
}

// QueueURL is the receipt bus endpoint of worker i.
func (c Config) QueueURL(i int) string {
	return fmt.Sprintf("tcp://127.0.0.1:%d", c.QueueBasePort+i)
}

// AllQueueURLs lists the bus endpoints of every worker; each worker
// subscribes to all of them.
func (c Config) AllQueueURLs() []string {
	urls := make([]string, c.WorkersCount)
	for i := range urls {
		urls[i] = c.QueueURL(i)
	}
	return urls
}
