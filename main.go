package main

import (
	"context"
	"errors"
	"evsim/configuration"
	"evsim/internal"
	"evsim/internal/config"
	"evsim/metrics"
	"evsim/notifier/mqtt"
	"evsim/notifier/nats"
	"evsim/server"
	"evsim/simulator"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("conf", "config.yml", "path to config file")
	flag.Parse()

	conf, err := config.GetConfig(*configPath)
	if err != nil {
		log.Fatalf("configuration: %s", err)
	}

	logger := internal.NewLogger(time.Local)
	logger.SetDebugMode(conf.IsDebug)

	var services internal.MessageServices
	if conf.Nats.Enabled {
		notifier, err := nats.Connect(conf.Nats.Url, conf.Nats.Subject, logger)
		if err != nil {
			logger.Error("nats notifier disabled", err)
		} else {
			defer notifier.Close()
			services = append(services, notifier)
		}
	}
	if conf.Mqtt.Enabled {
		notifier := mqtt.NewNotifier(conf, logger)
		if err = notifier.Connect(); err != nil {
			logger.Error("mqtt notifier disabled", err)
		} else {
			defer notifier.Close()
			services = append(services, notifier)
		}
	}

	options := simulator.Options{
		Identity:      conf.ChargePoint.Identity,
		Model:         conf.ChargePoint.Model,
		Configuration: configuration.NewService(configuration.DefaultCatalog(conf)),
		Logger:        logger,
	}
	if len(services) > 0 {
		logger.SetMessageService(services)
		options.Events = internal.NewEventPublisher(services, logger)
	}

	sim, err := simulator.New(options)
	if err != nil {
		log.Fatalf("simulator: %s", err)
	}

	api := server.NewServer(conf, sim, logger)
	go func() {
		if err := api.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", err)
			os.Exit(1)
		}
	}()
	go func() {
		if err := metrics.Listen(conf); err != nil {
			logger.Error("metrics server failed", err)
		}
	}()
	logger.FeatureEvent("Startup", conf.ChargePoint.Identity, fmt.Sprintf("control api listening on %s:%s", conf.Listen.BindIP, conf.Listen.Port))

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	<-signals

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if sim.IsOnline() {
		if err = sim.Disconnect(ctx); err != nil {
			logger.Error("disconnect on shutdown", err)
		}
	}
	if err = api.Shutdown(ctx); err != nil {
		logger.Error("api shutdown", err)
	}
}
