package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/kelseyhightower/envconfig"
	"github.com/phuslu/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vheck/emberwire/internal/relayserver"
)

type Config struct {
	RelayServerAddr4 string `envconfig:"RELAY_SERVER_ADDR4" required:"true" default:"0.0.0.0:5000"`
	// empty disables the scrape endpoint
	MetricsAddr string `envconfig:"METRICS_ADDR" default:""`
}

func loadConfig() (*Config, error) {
	config := new(Config)
	if err := envconfig.Process("", config); err != nil {
		return nil, err
	}
	return config, nil
}

func configureLogger() *log.Logger {
	logger := log.DefaultLogger

	// https://github.com/phuslu/log?tab=readme-ov-file#pretty-console-writer
	logger.Caller = 1
	logger.TimeFormat = "15:04:05"
	logger.Writer = &log.ConsoleWriter{
		ColorOutput:    true,
		QuoteString:    true,
		EndWithMessage: true,
	}

	return &logger
}

func erringMain() error {
	config, err := loadConfig()
	if err != nil {
		return fmt.Errorf("could not process config: %w", err)
	}

	logger := configureLogger()

	relayServer, err := relayserver.NewRelayServer("udp4", config.RelayServerAddr4, logger)
	if err != nil {
		return fmt.Errorf("could not construct relay server: %w", err)
	}
	logger.Info().Msgf("started relay server on %s", config.RelayServerAddr4)

	if config.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(
			relayServer.MetricsRegistry(),
			promhttp.HandlerOpts{},
		))
		go func() {
			logger.Info().Msgf("serving metrics on %s", config.MetricsAddr)
			if err := http.ListenAndServe(config.MetricsAddr, mux); err != nil {
				logger.Error().Msgf("metrics server failed: %v", err)
			}
		}()
	}

	wg := new(sync.WaitGroup)
	ctx, cancel := context.WithCancel(context.Background())

	wg.Add(1)
	var relayServerRunErr error
	go func() {
		defer wg.Done()
		relayServerRunErr = relayServer.Run(ctx)
	}()

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGTERM, syscall.SIGINT)

	sig := <-signalChan
	logger.Info().Msgf("received %+v signal", sig)

	cancel()
	wg.Wait()
	if relayServerRunErr != nil {
		return fmt.Errorf("relay server run failed: %w", relayServerRunErr)
	}

	return nil
}

func main() {
	if err := erringMain(); err != nil {
		fmt.Fprintf(os.Stderr, "fucky wucky! %v\n", err)
		os.Exit(42)
	}
}
