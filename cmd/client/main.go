package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/phuslu/log"

	"github.com/vheck/emberwire/internal/relayclient"
)

type Config struct {
	RelayServerAddr4 string `envconfig:"RELAY_SERVER_ADDR4" required:"true" default:"127.0.0.1:5000"`
	PlayerName       string `envconfig:"PLAYER_NAME" default:""`
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

// erringMain joins the relay with a random player id and wanders around,
// printing whoever else is wandering too. handy for smoke-testing a relay.
func erringMain() error {
	config, err := loadConfig()
	if err != nil {
		return fmt.Errorf("could not process config: %w", err)
	}

	logger := configureLogger()

	relayClient, err := relayclient.NewRelayClient("udp4", config.RelayServerAddr4, logger)
	if err != nil {
		return fmt.Errorf("could not construct relay client: %w", err)
	}

	wg := new(sync.WaitGroup)
	ctx, cancel := context.WithCancel(context.Background())

	wg.Add(1)
	var relayClientRunErr error
	go func() {
		defer wg.Done()
		relayClientRunErr = relayClient.Run(ctx)
	}()

	playerID := rand.Uint64()

	welcome, err := relayClient.Join(playerID, config.PlayerName)
	if err != nil {
		cancel()
		wg.Wait()
		return fmt.Errorf("could not join: %w", err)
	}
	logger.Info().
		Uint64("player_id", welcome.PlayerID).
		Int32("seed", welcome.Seed).
		Msg("joined")
	if welcome.MOTD != nil {
		logger.Info().Msgf("motd: %s", *welcome.MOTD)
	}

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGTERM, syscall.SIGINT)

	x, y := int32(0), int32(0)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

loop:
	for {
		select {
		case sig := <-signalChan:
			logger.Info().Msgf("received %+v signal", sig)
			break loop
		case <-ticker.C:
			x += rand.Int31n(3) - 1
			y += rand.Int31n(3) - 1
			relayClient.SendMove(playerID, x, y)

			for _, peer := range relayClient.GetPeers() {
				logger.Info().
					Uint64("player_id", peer.PlayerID).
					Int32("x", peer.X).
					Int32("y", peer.Y).
					Msg("peer")
			}
		}
	}

	cancel()
	wg.Wait()
	if relayClientRunErr != nil {
		return fmt.Errorf("relay client run failed: %w", relayClientRunErr)
	}

	return nil
}

func main() {
	if err := erringMain(); err != nil {
		fmt.Fprintf(os.Stderr, "fucky wucky! %v\n", err)
		os.Exit(42)
	}
}
