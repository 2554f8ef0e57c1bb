// Command vmsim wires the virtual-memory subsystem together into a
// runnable demonstration: it boots a frame pool and swap device from
// a config file (or sane defaults), runs a short scripted workload
// against a couple of simulated processes, and optionally serves
// Prometheus metrics until interrupted.
package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	kingpin "gopkg.in/alecthomas/kingpin.v2"

	"vmkaist/config"
	"vmkaist/frame"
	"vmkaist/mem"
	"vmkaist/metrics"
	"vmkaist/page"
	"vmkaist/proc"
	"vmkaist/swap"
)

var (
	configPath = kingpin.Flag("config", "Path to a YAML config file.").Default("").String()
	serve      = kingpin.Flag("serve-metrics", "Serve Prometheus metrics and block until killed.").Bool()
)

func main() {
	kingpin.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			logger.Error("loading config", "error", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	pool, err := buildPool(cfg, logger)
	if err != nil {
		logger.Error("building frame pool", "error", err)
		os.Exit(1)
	}
	frames := frame.NewTable(pool)

	disk, err := buildDisk(cfg)
	if err != nil {
		logger.Error("building swap disk", "error", err)
		os.Exit(1)
	}
	swaps := swap.NewTable(disk, cfg.Swap.MaxInflight)

	if err := runDemo(frames, swaps); err != nil {
		logger.Error("demo workload failed", "error", err)
		os.Exit(1)
	}
	logger.Info("demo workload complete", "resident_frames", frames.Len())

	if _, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		logger.Warn("sd_notify READY=1 failed", "error", err)
	}

	if *serve && cfg.Metrics.ListenAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(metrics.NewCollector(frames, swaps))
		http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		logger.Info("serving metrics", "addr", cfg.Metrics.ListenAddr)
		if err := http.ListenAndServe(cfg.Metrics.ListenAddr, nil); err != nil {
			logger.Error("metrics server", "error", err)
			os.Exit(1)
		}
	}
}

func buildPool(cfg *config.Config, logger *slog.Logger) (mem.Pool, error) {
	if cfg.Frames.Pages > 0 {
		return mem.NewHostpool(cfg.Frames.Pages), nil
	}
	pool, err := mem.NewHostpoolFraction("/proc", cfg.Frames.HostFraction)
	if err != nil {
		logger.Warn("falling back to a fixed-size pool; /proc/meminfo unavailable", "error", err)
		return mem.NewHostpool(256), nil
	}
	return pool, nil
}

func buildDisk(cfg *config.Config) (swap.Disk, error) {
	if cfg.Swap.Path == "" {
		return swap.NewMemDisk(cfg.Swap.Slots), nil
	}
	return swap.OpenFileDisk(cfg.Swap.Path, cfg.Swap.Slots)
}

// runDemo registers and claims a lazy anonymous page in one simulated
// process, then forks it so the page is shared copy-on-write with a
// child, as a smoke test that the wiring holds together end to end.
// Neither process writes to the page afterwards, so no COW split runs.
func runDemo(frames *frame.Table, swaps *swap.Table) error {
	p1 := proc.New(frames, swaps)

	const va = uintptr(0x400000)
	if err := p1.AS.AllocPageWithInitializer(page.Anon, va, true, page.ZeroInit, nil); err != 0 {
		return fmt.Errorf("alloc_page_with_initializer: %w", err)
	}
	if err := p1.AS.ClaimPage(va); err != 0 {
		return fmt.Errorf("claim_page: %w", err)
	}

	p2, err := p1.Fork(frames, swaps)
	if err != 0 {
		return fmt.Errorf("fork: %w", err)
	}
	_ = p2
	return nil
}
