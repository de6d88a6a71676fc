//go:build tinygo

package main

import (
	"time"

	"krill/app"
	"krill/hal"
)

func main() {
	k, err := app.Boot(app.Config{
		Hostname:   "krill-rp2040",
		ArenaBytes: 64 * 1024,
		Quantum:    50,
		HAL:        hal.New(),
	})
	if err != nil {
		for {
			time.Sleep(time.Second)
		}
	}
	for {
		k.Tick()
		if k.Idle() {
			time.Sleep(time.Millisecond)
		}
	}
}
