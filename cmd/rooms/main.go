// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Command rooms is the admin tool for the room catalog.
//
// Usage:
//
//	rooms [-config anchor_config.txt] list
//	rooms [-config anchor_config.txt] show <id>
//	rooms [-config anchor_config.txt] delete <id>
//	rooms [-config anchor_config.txt] nearest <lat> <lon>
//	rooms [-config anchor_config.txt] seed <name>
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/relabs-tech/anchor_stage/internal/config"
	"github.com/relabs-tech/anchor_stage/internal/room"
	"github.com/relabs-tech/anchor_stage/internal/transform"
)

func main() {
	configPath := flag.String("config", "anchor_config.txt", "path to the config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	args := flag.Args()
	if len(args) == 0 {
		usage()
	}

	store, err := room.OpenStore(cfg.RoomDBPath)
	if err != nil {
		log.Fatalf("failed to open room db: %v", err)
	}
	defer store.Close()

	switch args[0] {
	case "list":
		err = runList(store)
	case "show":
		if len(args) != 2 {
			usage()
		}
		err = runShow(store, args[1])
	case "delete":
		if len(args) != 2 {
			usage()
		}
		err = store.Delete(args[1])
		if err == nil {
			fmt.Printf("deleted %s\n", args[1])
		}
	case "nearest":
		if len(args) != 3 {
			usage()
		}
		err = runNearest(store, args[1], args[2])
	case "seed":
		if len(args) != 2 {
			usage()
		}
		err = runSeed(store, cfg, args[1])
	default:
		usage()
	}

	if err != nil {
		log.Fatalf("%s: %v", args[0], err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: rooms [-config path] {list | show <id> | delete <id> | nearest <lat> <lon> | seed <name>}")
	os.Exit(2)
}

func runList(store *room.Store) error {
	infos, err := store.List()
	if err != nil {
		return err
	}
	if len(infos) == 0 {
		fmt.Println("no rooms saved")
		return nil
	}
	for _, info := range infos {
		geoMark := " "
		if info.HasGeo {
			geoMark = "G"
		}
		fmt.Printf("%s  %s  anchors=%-3d %s  %s\n",
			info.ID, geoMark, info.AnchorCount, info.SavedAt.Format("2006-01-02 15:04"), info.Name)
	}
	return nil
}

func runShow(store *room.Store, id string) error {
	snap, err := store.Load(id)
	if err != nil {
		return err
	}
	fmt.Printf("room %s %q saved %s\n", snap.ID, snap.Name, snap.SavedAt.Format("2006-01-02 15:04:05"))
	if snap.Geo != nil {
		fmt.Printf("geo  lat=%.6f lon=%.6f\n", snap.Geo.Latitude, snap.Geo.Longitude)
	}
	fmt.Printf("world map %d bytes, %d anchors\n", len(snap.WorldMap), len(snap.Anchors))
	for name, a := range snap.Anchors {
		fmt.Printf("  %-16s t=(%7.3f %7.3f %7.3f)\n", name, a.Pose.T.X, a.Pose.T.Y, a.Pose.T.Z)
	}
	return nil
}

func runNearest(store *room.Store, latStr, lonStr string) error {
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return fmt.Errorf("invalid latitude %q: %w", latStr, err)
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		return fmt.Errorf("invalid longitude %q: %w", lonStr, err)
	}
	info, dist, err := store.Nearest(lat, lon)
	if err != nil {
		return err
	}
	fmt.Printf("%s  %q  %.0f m away\n", info.ID, info.Name, dist)
	return nil
}

// runSeed saves a minimal room with the configured primary anchor at the
// origin, for bringing up a fresh install without a capture device.
func runSeed(store *room.Store, cfg *config.Config, name string) error {
	snap := room.Empty()
	snap.Name = name
	snap.Anchors[cfg.PrimaryAnchor] = room.Anchor{
		Name: cfg.PrimaryAnchor,
		Pose: transform.Identity(),
	}
	if err := store.Save(snap); err != nil {
		return err
	}
	fmt.Printf("saved room %s %q with anchor %q\n", snap.ID, name, cfg.PrimaryAnchor)
	return nil
}
