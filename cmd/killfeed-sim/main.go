// killfeed-sim appends synthetic kill events to the local journal so the
// client can be exercised without a running game or tracker.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"

	"github.com/kmorand/killfeed/internal/config"
	"github.com/kmorand/killfeed/internal/event"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "killfeed config path; the journal path is taken from it")
	journalPath := flag.String("journal", "", "journal file to append to (overrides config)")
	every := flag.Duration("every", 2*time.Second, "delay between synthetic events")
	count := flag.Int("count", 0, "stop after this many events (0 runs until interrupted)")
	seed := flag.Int64("seed", 0, "fake-data seed (0 uses a random one)")
	flag.Parse()

	path := *journalPath
	if path == "" {
		cfg, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "killfeed-sim: %v\n", err)
			return 1
		}
		path = cfg.JournalPath
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := emit(ctx, path, *every, *count, *seed); err != nil {
		fmt.Fprintf(os.Stderr, "killfeed-sim: %v\n", err)
		return 1
	}
	return 0
}

func emit(ctx context.Context, path string, every time.Duration, count int, seed int64) error {
	if seed != 0 {
		gofakeit.Seed(seed)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create journal dir: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	written := 0
	for {
		if err := enc.Encode(fakeEvent()); err != nil {
			return fmt.Errorf("append event: %w", err)
		}
		written++
		fmt.Printf("killfeed-sim: %d event(s) written to %s\r", written, path)
		if count > 0 && written >= count {
			fmt.Println()
			return nil
		}
		select {
		case <-ctx.Done():
			fmt.Println()
			return nil
		case <-ticker.C:
		}
	}
}

var deathTypes = []event.DeathType{
	event.DeathSoft,
	event.DeathHard,
	event.DeathCombat,
	event.DeathCombat, // weighted toward combat
	event.DeathCollision,
	event.DeathCrash,
	event.DeathBleedOut,
	event.DeathSuffocation,
}

var ships = []string{
	"AEGS_Gladius", "ANVL_Arrow", "ORIG_325a", "RSI_Aurora_MR",
	"DRAK_Cutlass_Black", "MISC_Freelancer", "CNOU_Mustang_Alpha",
}

var weapons = []string{
	"KLWE_LaserRepeater_S3", "BEHR_BallisticGatling_S4",
	"AMRS_LaserCannon_S2", "GATS_BallisticCannon_S3",
}

var locations = []string{
	"OOC_Stanton_1_Hurston", "OOC_Stanton_2_Crusader",
	"OOC_Stanton_3_ArcCorp", "OOC_Stanton_4_MicroTech",
}

func fakeEvent() event.KillEvent {
	killer := gofakeit.Gamertag()
	victim := gofakeit.Gamertag()
	if rand.Intn(4) == 0 {
		victim = fmt.Sprintf("PU_Pilots-Human-%s_%02d", gofakeit.LastName(), rand.Intn(99))
	}

	ship := ships[rand.Intn(len(ships))]
	ev := event.KillEvent{
		ID:               uuid.NewString(),
		Timestamp:        time.Now().UTC().Format(time.RFC3339),
		Killers:          []string{killer},
		Victims:          []string{victim},
		DeathType:        deathTypes[rand.Intn(len(deathTypes))],
		VehicleType:      "ship",
		VehicleModel:     fmt.Sprintf("%s_%04d", ship, rand.Intn(9999)),
		Location:         locations[rand.Intn(len(locations))],
		Weapon:           weapons[rand.Intn(len(weapons))],
		DamageType:       "VehicleDestruction",
		IsPlayerInvolved: rand.Intn(3) > 0,
	}
	if ev.DeathType == event.DeathBleedOut || ev.DeathType == event.DeathSuffocation {
		ev.VehicleType = ""
		ev.VehicleModel = ""
		ev.Weapon = ""
		ev.DamageType = string(ev.DeathType)
	}
	return ev
}
