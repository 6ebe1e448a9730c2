package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/veesix-networks/reflector/internal/monitor"
	"github.com/veesix-networks/reflector/internal/reflector"
	"github.com/veesix-networks/reflector/pkg/bootstrap"
	"github.com/veesix-networks/reflector/pkg/component"
	"github.com/veesix-networks/reflector/pkg/config"
	"github.com/veesix-networks/reflector/pkg/logger"
	"github.com/veesix-networks/reflector/pkg/port"
	_ "github.com/veesix-networks/reflector/pkg/port/all"
	"github.com/veesix-networks/reflector/pkg/version"
)

const program = "reflectord"

func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	iface := flag.String("iface", "", "Interface to reflect on (overrides port.interface)")
	driver := flag.String("driver", "", "Port driver (overrides port.driver)")
	burst := flag.Int("burst", 0, "Frames per burst (overrides reflector.burst_size)")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s -config <file> [-iface <name>] [-driver <%v>] [-burst <n>]\n", program, port.Drivers())
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String(program))
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *iface != "" {
		cfg.Port.Interface = *iface
	}
	if *driver != "" {
		cfg.Port.Driver = *driver
	}
	if *burst != 0 {
		cfg.Reflector.BurstSize = *burst
	}

	logger.Configure(cfg.Logging.Format, logger.LogLevel(cfg.Logging.Level), cfg.LogComponents())

	mainLog := logger.Component(logger.Main)
	mainLog.Info("Starting "+program, "version", version.Full(), "port", cfg.Port.Interface, "driver", cfg.Port.Driver)

	if err := run(cfg); err != nil {
		mainLog.Error("Reflector failed", "error", err)
		os.Exit(1)
	}

	mainLog.Info(program + " stopped")
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Read(path)
}

func run(cfg *config.Config) (err error) {
	mainLog := logger.Component(logger.Main)

	// Signals cancel ctx from here on, so an interrupt while the link comes
	// up still tears the environment down.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	env, err := bootstrap.Init(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := env.Close(); cerr != nil {
			mainLog.Error("Error releasing environment", "error", cerr)
			if err == nil {
				err = cerr
			}
		}
	}()

	if err := env.Port.Start(ctx); err != nil {
		if ctx.Err() != nil {
			mainLog.Info("Interrupted while starting port", "port", cfg.Port.Interface)
			return nil
		}
		return fmt.Errorf("start port %s: %w", cfg.Port.Interface, err)
	}

	refl, err := reflector.New(env.Port, cfg.ReflectorOptions())
	if err != nil {
		return err
	}
	reflComp := reflector.NewComponent(refl)

	orch := component.NewOrchestrator()
	if cfg.Monitoring.ListenAddress != "" {
		orch.Register(monitor.New(monitor.Config{
			ListenAddress: cfg.Monitoring.ListenAddress,
			Sources: monitor.Sources{
				Pool: env.Pool,
				Port: env.Port,
				Loop: refl,
			},
		}))
	}
	orch.Register(reflComp)

	if err := orch.Start(ctx); err != nil {
		return err
	}

	mainLog.Info(program+" started", "run_id", refl.RunID())

	var runErr error
	select {
	case <-ctx.Done():
		mainLog.Info("Shutting down " + program)
	case runErr = <-reflComp.Err():
	}

	if err := orch.Stop(context.Background()); err != nil {
		mainLog.Error("Error stopping components", "error", err)
	}
	if runErr == nil {
		select {
		case runErr = <-reflComp.Err():
		default:
		}
	}
	return runErr
}
