package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Info("No .env file found. Using existing environment variables.")
	}

	cfg, err := LoadConfig()
	if err != nil {
		log.WithFields(log.Fields{"error": err}).Error("Invalid configuration")
		os.Exit(1)
	}

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithFields(log.Fields{"level": cfg.LogLevel}).Warn("Unknown LOG_LEVEL, using info")
		level = log.InfoLevel
	}
	log.SetLevel(level)

	startMetricsExporter(cfg)

	if cfg.WorkerIndex >= 0 {
		if err := runWorker(cfg); err != nil {
			log.WithFields(log.Fields{
				"worker": cfg.WorkerIndex,
				"error":  err,
			}).Error("Worker failed")
			os.Exit(1)
		}
		return
	}

	master := NewMaster(cfg)
	if err := master.StartWorkers(); err != nil {
		log.WithFields(log.Fields{"error": err}).Error("Failed to start workers")
		os.Exit(1)
	}
	if err := master.Listen(); err != nil {
		log.WithFields(log.Fields{"error": err}).Error("Failed to listen")
		master.Stop()
		os.Exit(1)
	}

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		log.Info("Shutting down")
		master.Stop()
	}()

	master.Serve()
}
