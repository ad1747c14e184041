package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/kalanyuz/gcp-cryptobot/internal/alert"
	"github.com/kalanyuz/gcp-cryptobot/internal/config"
	"github.com/kalanyuz/gcp-cryptobot/internal/exchange"
	"github.com/kalanyuz/gcp-cryptobot/internal/exchange/binance"
	"github.com/kalanyuz/gcp-cryptobot/internal/exchange/bitflyer"
	"github.com/kalanyuz/gcp-cryptobot/internal/secrets"
	"github.com/kalanyuz/gcp-cryptobot/internal/server"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "config/config.yaml", "config yaml path")
	flag.Parse()

	// best-effort: container deployments inject env directly
	_ = godotenv.Load()

	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	log := logrus.WithField("component", "main")

	cfg, err := config.Load(configPath)
	if err != nil {
		fatal(err.Error())
	}

	alerts := buildAlertManager(cfg)
	if alerts != nil {
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := alerts.Close(closeCtx); err != nil {
				fmt.Fprintf(os.Stderr, "close alert manager failed: %v\n", err)
			}
		}()
	}

	store := secrets.NewEnvStore()
	ex, err := buildExchange(cfg, store)
	if err != nil {
		fatal(err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: server.New(ex, alerts).Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	log.WithFields(logrus.Fields{
		"addr":     cfg.Server.Addr,
		"exchange": ex.Name(),
	}).Info("listening")

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal(err.Error())
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			fmt.Fprintf(os.Stderr, "shutdown failed: %v\n", err)
		}
		log.Info("stopped")
	}
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}

func buildExchange(cfg config.Config, store secrets.Store) (exchange.Exchange, error) {
	switch cfg.Exchange.Name {
	case config.ExchangeBinance:
		return binance.NewClient(cfg, store), nil
	case config.ExchangeBitFlyer:
		return bitflyer.NewClient(cfg, store)
	default:
		return nil, fmt.Errorf("unknown exchange %q", cfg.Exchange.Name)
	}
}

func buildAlertManager(cfg config.Config) *alert.Manager {
	tg := cfg.Observability.Telegram
	if !tg.Enabled {
		return nil
	}
	notifier := alert.NewTelegramNotifier(tg)
	return alert.NewManager(string(cfg.Exchange.Name), notifier)
}
