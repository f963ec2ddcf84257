package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/RogersSierra/extension/internal/config"
	"github.com/RogersSierra/extension/internal/database"
	"github.com/RogersSierra/extension/internal/handlers"
	"github.com/RogersSierra/extension/internal/host/hosttest"
	"github.com/RogersSierra/extension/pkg/core"
)

// main runs when the library is built as an executable. The host never calls
// it; it exists for database setup and a scripted demo drive.
func main() {
	var err error
	Logger.Info("Starting up...")

	args := os.Args[1:]
	if len(args) == 0 {
		fmt.Println("Usage: sierra_core setupdb | demo [seconds] | healthcheck")
		return
	}

	switch strings.ToLower(args[0]) {
	case "setupdb":
		err = setupDB()
	case "demo":
		seconds := 60.0
		if len(args) > 1 {
			if seconds, err = strconv.ParseFloat(args[1], 64); err != nil {
				panic(fmt.Errorf("invalid demo duration %q: %w", args[1], err))
			}
		}
		err = runDemo(seconds)
	case "healthcheck":
		<-coreReady
		checkServerStatus()
	default:
		fmt.Printf("Unknown command %q.\n", args[0])
	}
	if err != nil {
		panic(err)
	}

	<-coreReady
	if err := shutdown(); err != nil {
		Logger.Error("Shutdown finished with errors", "error", err)
	}
}

// setupDB creates the telemetry tables in the configured Postgres database.
func setupDB() error {
	db, err := database.OpenPostgres(config.GetStorageConfig().Postgres)
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if err := database.Migrate(db, ZLogger); err != nil {
		return err
	}
	Logger.Info("DB setup complete.")
	return nil
}

// runDemo records a journey of one locomotive that pulls away at full
// throttle and brakes to a stop halfway through.
func runDemo(seconds float64) error {
	<-coreReady
	start := time.Now()

	journeyID, err := dispatchDemoEvent(":JOURNEY:START:", []string{"demo_world", "Demo"})
	if err != nil {
		return fmt.Errorf("starting journey: %w", err)
	}
	res, err := dispatchDemoEvent(":SPAWN:", []string{"demo_loco", hosttest.BonesJSON, hosttest.WheelsJSON})
	if err != nil {
		return fmt.Errorf("spawning demo train: %w", err)
	}
	id := res.(string)
	if _, err := dispatchDemoEvent(":ACTIVE:", []string{id}); err != nil {
		return err
	}

	// levers: throttle pulled back (open), reverser full forward
	if _, err := dispatchDemoEvent(":LEVERS:", []string{id, "0", "0", "0", "0"}); err != nil {
		return err
	}

	const dt = 1.0 / 60
	ticks := int(seconds / dt)
	var pos core.Vector3
	var speed float64
	for i := 0; i < ticks; i++ {
		if i == ticks/2 {
			// throttle closed, air brake applied
			if _, err := dispatchDemoEvent(":LEVERS:", []string{id, "1", "0", "1", "0"}); err != nil {
				return err
			}
		}
		res, err := dispatchDemoEvent(":TICK:", []string{
			id,
			strconv.FormatFloat(dt, 'f', -1, 64),
			strconv.FormatFloat(speed, 'f', -1, 64),
			"0,1,0",
			fmt.Sprintf("%g,%g,%g", pos.X, pos.Y, pos.Z),
		})
		if err != nil {
			return fmt.Errorf("tick %d: %w", i, err)
		}
		var reply handlers.TickReply
		if err := json.Unmarshal([]byte(res.(string)), &reply); err != nil {
			return fmt.Errorf("decoding tick %d: %w", i, err)
		}
		speed = reply.Speed
		pos.Y += speed * dt
	}

	path, err := dispatchDemoEvent(":JOURNEY:END:", nil)
	if err != nil {
		return fmt.Errorf("ending journey: %w", err)
	}
	Logger.Info("Demo journey recorded",
		"journey", journeyID,
		"distance", pos.Y,
		"export", path,
		"duration", time.Since(start))
	return nil
}
