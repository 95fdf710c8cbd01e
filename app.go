package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"i4.energy/across/powermon/inbox"
	"i4.energy/across/powermon/metrics"
	"i4.energy/across/powermon/modem"
	"i4.energy/across/powermon/notify"
	"i4.energy/across/powermon/outage"
	"i4.energy/across/powermon/sensor"
)

const shutdownTimeout = 30 * time.Second

// openModem dials a serial modem and runs its handshake.
func openModem(ctx context.Context, port string, baud int, settle, gap time.Duration) (*modem.Modem, error) {
	config, err := modem.NewConfigBuilder().
		WithSettleDelay(settle).
		WithSendGap(gap).
		WithDialer(modem.SerialDialer{
			PortName: port,
			BaudRate: baud,
		}).
		Build()
	if err != nil {
		return nil, fmt.Errorf("modem config: %w", err)
	}
	return modem.New(ctx, config)
}

// serve runs the monitor, the optional SMS listener and the optional HTTP
// server until ctx is done or one of them fails.
func serve(ctx context.Context, cfg *Config, logger *slog.Logger) error {
	metrics.Register()

	smsModem, err := openModem(ctx, cfg.SMS.SerialPort, cfg.SMS.BaudRate, cfg.SMS.SettleDelay, cfg.SMS.SendGap)
	if err != nil {
		return fmt.Errorf("open SMS modem on %s: %w", cfg.SMS.SerialPort, err)
	}
	defer smsModem.Close()

	email, err := notify.NewEmailChannel(notify.EmailConfig{
		Host:     cfg.Mail.Host,
		Port:     cfg.Mail.Port,
		From:     cfg.Mail.From,
		FromName: cfg.Mail.FromName,
		To:       cfg.Mail.Recipients,
		Username: cfg.Mail.Username,
		Password: cfg.Mail.Password,
	})
	if err != nil {
		return err
	}

	dispatcher := notify.NewDispatcher(logger.With("component", "dispatcher"), []notify.Channel{
		email,
		notify.NewSMSChannel(smsModem, cfg.SMS.Recipients),
	})

	ina, err := sensor.Open(cfg.Sensor.Bus,
		sensor.WithAddress(cfg.Sensor.Address),
		sensor.WithShunt(cfg.Sensor.ShuntMilliOhms),
		sensor.WithMaxCurrent(cfg.Sensor.MaxCurrentMA),
	)
	if err != nil {
		return err
	}
	defer ina.Close()
	logger.Info("Sensor ready", "sensor", ina.String())

	// Everything that can fail to open is opened before the first goroutine.
	lst, err := openListener(ctx, cfg.Listener)
	if err != nil {
		return err
	}
	var store inbox.Store
	if lst != nil {
		defer lst.Close()
		store = lst.store
	}

	monitor := outage.NewMonitor(ina, dispatcher,
		outage.WithLogger(logger.With("component", "monitor")),
		outage.WithThreshold(cfg.Monitor.ThresholdMA),
		outage.WithNotifyInterval(cfg.Monitor.NotifyInterval),
		outage.WithTick(cfg.Monitor.Tick),
		outage.WithMaxSensorFailures(cfg.Monitor.MaxSensorFailures),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return monitor.Run(gctx)
	})

	if lst != nil {
		g.Go(func() error {
			listen(gctx, lst.line, lst.store, cfg.Listener.PollInterval, logger.With("component", "listener"))
			return nil
		})
	}

	if cfg.HTTP.BindAddress != "" {
		httpServer := &http.Server{
			Addr:    cfg.HTTP.BindAddress,
			Handler: NewServer(logger.With("component", "server"), monitor, store),
		}

		g.Go(func() error {
			logger.Info("Starting HTTP server", "address", httpServer.Addr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("HTTP server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			logger.Info("Closing HTTP server")
			return httpServer.Shutdown(shutdownCtx)
		})
	}

	err = g.Wait()

	drainCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if derr := dispatcher.Wait(drainCtx); derr != nil {
		logger.Warn("Notifications still in flight at shutdown", "error", derr)
	}

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// inboundListener holds the resources of the SMS listener.
type inboundListener struct {
	store *inbox.SQLiteStore
	line  *modem.Modem
}

// openListener opens the inbox and the listener modem. It returns nil when
// the listener is disabled.
func openListener(ctx context.Context, cfg ListenerConfig) (*inboundListener, error) {
	if cfg.SerialPort == "" {
		return nil, nil
	}

	store, err := inbox.NewSQLite(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	line, err := openModem(ctx, cfg.SerialPort, cfg.BaudRate, modem.DefaultSettleDelay, 0)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("open listener modem on %s: %w", cfg.SerialPort, err)
	}
	return &inboundListener{store: store, line: line}, nil
}

func (l *inboundListener) Close() error {
	return errors.Join(l.line.Close(), l.store.Close())
}

// listen stores every SMS the modem delivers. Failures never stop the
// monitor: the listener logs them and, once its line is gone, returns.
func listen(ctx context.Context, line modem.Line, store inbox.Store, interval time.Duration, logger *slog.Logger) {
	reader := modem.NewSMSReader(line, logger)

	resp, err := reader.InitReader(ctx)
	if err != nil {
		logger.Error("Failed to initialize SMS listener", "error", err)
		return
	}
	logger.Info("SMS listener ready", "modem_reply", resp)

	err = reader.Run(ctx, interval, func(ctx context.Context, msg modem.TextMsg) error {
		metrics.SMSReceived.Inc()
		_, err := store.Save(ctx, msg, time.Now())
		return err
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("SMS listener stopped", "error", err)
	}
}
