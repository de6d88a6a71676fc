//go:build !tinygo

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"gopkg.in/yaml.v2"

	"krill/app"
	"krill/hal"
)

// machineConfig is the host-side stand-in for board wiring: everything the
// bare-metal build hard-codes comes from a YAML file here.
type machineConfig struct {
	Hostname   string `yaml:"hostname"`
	ArenaBytes uint32 `yaml:"arena_bytes"`
	Quantum    uint32 `yaml:"quantum_ticks"`
	Preempt    bool   `yaml:"preempt"`
	BlockPath  string `yaml:"block_path"`
	BlockBytes uint32 `yaml:"block_bytes"`
	Hz         int    `yaml:"hz"`
}

func defaultMachine() machineConfig {
	return machineConfig{
		Hostname:   "krill",
		ArenaBytes: 64 * 1024,
		Quantum:    50,
		Preempt:    true,
		Hz:         1000,
	}
}

func loadMachine(path string) (machineConfig, error) {
	mc := defaultMachine()
	if path == "" {
		return mc, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return mc, err
	}
	if err := yaml.UnmarshalStrict(raw, &mc); err != nil {
		return mc, fmt.Errorf("parse %s: %w", path, err)
	}
	return mc, nil
}

func main() {
	var cfgPath, hostname string
	var ticks uint64
	flag.StringVar(&cfgPath, "config", "", "YAML machine config.")
	flag.StringVar(&hostname, "hostname", "", "Override the configured hostname.")
	flag.Uint64Var(&ticks, "ticks", 0, "Stop after N scheduler ticks (0 = run forever).")
	flag.Parse()

	mc, err := loadMachine(cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if hostname != "" {
		mc.Hostname = hostname
	}
	if mc.Hz <= 0 {
		mc.Hz = 1000
	}

	h := hal.New(hal.HostConfig{
		BlockPath:  mc.BlockPath,
		BlockBytes: mc.BlockBytes,
		Preempt:    mc.Preempt,
	})

	quantum := mc.Quantum
	if !mc.Preempt {
		quantum = 0
	}
	k, err := app.Boot(app.Config{
		Hostname:   mc.Hostname,
		ArenaBytes: mc.ArenaBytes,
		Quantum:    quantum,
		HAL:        h,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	pace := time.Second / time.Duration(mc.Hz)
	for n := uint64(0); ticks == 0 || n < ticks; n++ {
		select {
		case <-ctx.Done():
			return
		default:
		}
		k.Tick()
		if k.Idle() {
			time.Sleep(pace)
		}
	}
}
