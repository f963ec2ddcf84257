// Command sierra_sim drives the reference locomotive scenarios without a game
// host, prints a summary table and writes PNG plots of each run.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rs/zerolog"

	"github.com/RogersSierra/extension/internal/config"
	"github.com/RogersSierra/extension/internal/logging"
	"github.com/RogersSierra/extension/internal/plotting"
	"github.com/RogersSierra/extension/internal/train"
)

func main() {
	configDir := flag.String("config", "", "directory holding "+config.FileName+" (defaults when empty)")
	outDir := flag.String("out", "plots", "directory the PNG plots are written to")
	trials := flag.Int("trials", 10000, "derail draws at 20 m/s and a 1 degree heading change")
	noPlots := flag.Bool("no-plots", false, "print the table only")
	level := flag.String("log-level", "info", "log level")
	flag.Parse()

	logger := logging.NewZerolog(os.Stderr, *level)

	cfg, err := loadConfig(*configDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("loading config")
	}

	if err := run(os.Stdout, logger, cfg, *outDir, *trials, !*noPlots); err != nil {
		logger.Fatal().Err(err).Msg("scenario run failed")
	}
}

func loadConfig(dir string) (train.Config, error) {
	if dir == "" {
		config.SetDefaults()
	} else if err := config.Load(dir); err != nil {
		return train.Config{}, err
	}
	return config.GetPhysicsConfig(), nil
}

func run(w io.Writer, logger zerolog.Logger, cfg train.Config, outDir string, trials int, plots bool) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SCENARIO\tFINAL m/s\tMAX m/s\tFINAL PRESSURE\tMAX PRESSURE\tSTROKES\tSIGN FLIPS\tDERAILED")

	var errs []error
	for _, sc := range plotting.Scenarios() {
		tr, err := plotting.Run(sc, cfg)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		s := plotting.Summarize(tr)
		fmt.Fprintf(tw, "%s\t%.2f\t%.2f\t%.1f\t%.1f\t%d\t%d\t%t\n",
			s.Scenario, s.FinalSpeed, s.MaxSpeed, s.FinalPressure, s.MaxPressure,
			s.PistonStroke, s.SignFlips, s.Derailed)

		if !plots {
			continue
		}
		files, err := plotting.SaveTrace(outDir, tr)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		logger.Debug().Str("scenario", sc.Name).Strs("files", files).Msg("plots written")
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	rate := plotting.DerailRate(cfg.Collision, 20, 1, trials)
	fmt.Fprintf(w, "\nderail rate at 20 m/s, 1 deg: %.3f over %d draws (expected %.3f)\n",
		rate, trials, 1-cfg.Collision.DerailRollThreshold)
	if plots && len(errs) == 0 {
		logger.Info().Str("dir", outDir).Msg("plots written")
	}
	return errors.Join(errs...)
}
