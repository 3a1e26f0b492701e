package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/oxymeal/smpp-server/smpp"
	"github.com/oxymeal/smpp-server/smpp/external"
)

// buildProvider constructs the provider named by PROVIDER.
func buildProvider(cfg Config) (external.Provider, error) {
	switch cfg.Provider {
	case "logging":
		return external.NewLoggingProvider(cfg.ProviderFile), nil
	case "static":
		if cfg.ProviderClientsFile == "" {
			return nil, fmt.Errorf("PROVIDER=static requires PROVIDER_CLIENTS_FILE")
		}
		return external.LoadStaticProvider(cfg.ProviderClientsFile)
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("PROVIDER=postgres requires DATABASE_URL")
		}
		return external.NewRecordProvider(cfg.DatabaseURL)
	}
	return nil, fmt.Errorf("unknown PROVIDER %q", cfg.Provider)
}

// runWorker runs one worker process: an SMPP server on this worker's unix
// socket, publishing receipts to its own bus endpoint and subscribed to
// the endpoints of every worker.
func runWorker(cfg Config) error {
	provider, err := buildProvider(cfg)
	if err != nil {
		return err
	}

	sock := cfg.WorkerSocket(cfg.WorkerIndex)
	// A previous run may have left the socket file behind.
	if err := os.Remove(sock); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing stale socket %s: %w", sock, err)
	}

	server := &smpp.Server{
		UnixSocket:    sock,
		Provider:      provider,
		PublishURL:    cfg.QueueURL(cfg.WorkerIndex),
		SubscribeURLs: cfg.AllQueueURLs(),
	}

	if cfg.ReceiptBusAMQPURL != "" {
		// Broker-backed bus instead of the worker-to-worker TCP one.
		server.Publisher = smpp.NewAMQPBus(cfg.ReceiptBusAMQPURL, server.HandleBusPayload)
		server.PublishURL = ""
		server.SubscribeURLs = nil
	}

	if err := server.Start(); err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"worker": cfg.WorkerIndex,
		"socket": sock,
	}).Info("Worker running")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.WithFields(log.Fields{"worker": cfg.WorkerIndex}).Info("Worker shutting down")
	server.Stop()
	os.Remove(sock)
	return nil
}
