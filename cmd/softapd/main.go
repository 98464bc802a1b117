// Command softapd runs a soft AP session against the simulated driver.
//
// It brings up one session from command-line flags and a YAML
// configuration file, advertises local-only sessions over mDNS, and
// exposes an interactive console for driving the simulator (connecting
// clients, failing instances) and the session (stop, timeout updates,
// block lists).
//
// Usage:
//
//	softapd [flags]
//
// Flags:
//
//	-config string      Configuration file path
//	-ssid string        Network name (default "SoftAP")
//	-passphrase string  WPA passphrase (default "password123")
//	-band string        Band request: 2ghz, 5ghz, bridged (default "2ghz")
//	-tethered           Run as a tethered session (no mDNS announce)
//	-log-level string   Log level override: debug, info, warn, error
//
// Examples:
//
//	# Bridged local-only AP with debug logging
//	softapd -band bridged -log-level debug
//
//	# Tethered AP from a config file
//	softapd -config /etc/softapd.yaml -tethered
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/softap-stack/softap-go/pkg/announce"
	"github.com/softap-stack/softap-go/pkg/ap"
	"github.com/softap-stack/softap-go/pkg/config"
	"github.com/softap-stack/softap-go/pkg/hal/halsim"
	aplog "github.com/softap-stack/softap-go/pkg/log"
	"github.com/softap-stack/softap-go/pkg/session"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "softapd:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", "", "configuration file path")
		ssid       = flag.String("ssid", "SoftAP", "network name")
		passphrase = flag.String("passphrase", "password123", "WPA passphrase")
		band       = flag.String("band", "2ghz", "band request: 2ghz, 5ghz, bridged")
		tethered   = flag.Bool("tethered", false, "run as a tethered session")
		logLevel   = flag.String("log-level", "", "log level override")
	)
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slogLevel(cfg.LogLevel),
	}))

	eventLogger, closeEvents, err := buildEventLogger(cfg, logger)
	if err != nil {
		return err
	}
	defer closeEvents()

	apConfig, err := buildApConfig(*ssid, *passphrase, *band, cfg)
	if err != nil {
		return err
	}

	sim := halsim.New(halsim.WithLogger(logger))
	capability := sim.Capability()

	var advertiser announce.Advertiser = announce.NoopAdvertiser{}
	if !*tethered {
		advertiser = announce.NewMDNSAdvertiser(announce.DefaultAdvertiserConfig())
	}

	sess, err := session.New(session.Deps{
		Hal:         sim,
		Logger:      logger,
		EventLogger: eventLogger,
		Defaults: session.Defaults{
			ShutdownTimeout:                cfg.Timeouts.Shutdown,
			BridgedInstanceShutdownTimeout: cfg.Timeouts.BridgedInstanceShutdown,
			CountryCodeWaitTimeout:         cfg.CountryCode.WaitTimeout,
			DynamicCountryCodeEnabled:      cfg.CountryCode.Dynamic,
			Overlay:                        cfg.Overlay(),
		},
		Observer: sessionObserver(logger, advertiser, apConfig),
	})
	if err != nil {
		return err
	}
	defer sess.Close()

	sess.Start(session.Request{
		Config:      apConfig,
		Capability:  capability,
		CountryCode: capability.CountryCode,
		Tethered:    *tethered,
		Requestor:   "softapd",
		Token:       uuid.NewString(),
	})

	console, err := newConsole(sess, sim, apConfig)
	if err != nil {
		return err
	}
	console.run()

	sess.Stop()
	// Give the teardown sequence a moment to reach the observer.
	time.Sleep(100 * time.Millisecond)
	advertiser.Withdraw()
	return nil
}

// sessionObserver logs lifecycle notifications and drives the mDNS
// advertisement for local-only sessions.
func sessionObserver(logger *slog.Logger, advertiser announce.Advertiser, cfg *ap.SoftApConfiguration) session.Observer {
	return session.Observer{
		OnStateChanged: func(state ap.ApState, reason ap.FailureReason, token, iface string) {
			logger.Info("state", "state", state.String(), "reason", reason.String(), "iface", iface)
		},
		OnStarted: func(token, iface string) {
			info := announce.Info{
				SSID:     cfg.SSID,
				Security: cfg.Security,
				Bridged:  cfg.BridgedRequested(),
			}
			for _, ch := range cfg.Channels {
				info.Bands = append(info.Bands, ch.Band.Lowest())
			}
			if err := advertiser.Announce(info); err != nil {
				logger.Warn("mDNS announce failed", "error", err)
			}
		},
		OnStopped: func(token string, reason ap.StopReason) {
			logger.Info("session stopped", "reason", reason.String())
			advertiser.Withdraw()
		},
		OnStartFailure: func(token string, reason ap.FailureReason) {
			logger.Error("session failed to start", "reason", reason.String())
		},
		OnBlockedClientConnecting: func(mac net.HardwareAddr, reason ap.BlockReason) {
			logger.Info("client blocked", "mac", mac.String(), "reason", reason.String())
		},
	}
}

func buildEventLogger(cfg *config.Config, logger *slog.Logger) (aplog.Logger, func(), error) {
	loggers := []aplog.Logger{}
	closers := []func(){}

	if cfg.LogLevel == "debug" {
		loggers = append(loggers, aplog.NewSlogAdapter(logger))
	}
	if cfg.EventLogPath != "" {
		fl, err := aplog.NewFileLogger(cfg.EventLogPath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open event log: %w", err)
		}
		loggers = append(loggers, fl)
		closers = append(closers, func() { _ = fl.Close() })
	}

	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}
	switch len(loggers) {
	case 0:
		return aplog.NoopLogger{}, closeAll, nil
	case 1:
		return loggers[0], closeAll, nil
	default:
		return aplog.NewMultiLogger(loggers...), closeAll, nil
	}
}

func buildApConfig(ssid, passphrase, band string, cfg *config.Config) (*ap.SoftApConfiguration, error) {
	out := &ap.SoftApConfiguration{
		SSID:                           ssid,
		Passphrase:                     passphrase,
		Security:                       ap.SecurityWpa2Psk,
		AutoShutdownEnabled:            true,
		ShutdownTimeout:                cfg.Timeouts.Shutdown,
		BridgedInstanceShutdownTimeout: cfg.Timeouts.BridgedInstanceShutdown,
	}
	switch band {
	case "2ghz":
		out.Channels = []ap.ChannelSpec{{Band: ap.Band2GHz}}
	case "5ghz":
		out.Channels = []ap.ChannelSpec{{Band: ap.Band5GHz}}
	case "bridged":
		out.Channels = []ap.ChannelSpec{{Band: ap.Band2GHz}, {Band: ap.Band5GHz}}
		out.BridgedOpportunisticShutdownEnabled = true
	default:
		return nil, fmt.Errorf("unknown band %q", band)
	}
	return out, nil
}

func slogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
