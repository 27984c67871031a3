// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/anchor_stage/internal/app"
	"github.com/relabs-tech/anchor_stage/internal/config"
)

func main() {
	configPath := flag.String("config", "anchor_config.txt", "path to the config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunPreviewer(cfg); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
