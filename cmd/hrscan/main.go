// Command hrscan lists nearby heart-rate wearables, strongest signal first.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"
	"time"

	"pulse/internal/ble"
	"pulse/internal/config"
	"pulse/internal/logging"
)

func main() {
	var (
		window = flag.Duration("window", 10*time.Second, "How long to scan.")
		filter = flag.String("filter", strings.Join(ble.DefaultNameFilter, ","), "Comma-separated name substrings; empty lists every named device.")
		level  = flag.String("log-level", "warn", "Log level.")
	)
	flag.Parse()

	log := logging.New(config.LogConfig{Level: *level, Console: true}, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	adapter, err := ble.Adapter()
	if err != nil {
		log.Fatal().Err(err).Msg("bluetooth unavailable")
	}

	fmt.Fprintf(os.Stderr, "scanning for %s...\n", *window)
	found, err := ble.Discover(ctx, adapter, *window, ble.NameContains(strings.Split(*filter, ",")...))
	if err != nil {
		log.Fatal().Err(err).Msg("scan failed")
	}
	if len(found) == 0 {
		fmt.Fprintln(os.Stderr, "no matching devices found")
		os.Exit(1)
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tNAME\tADDRESS\tRSSI\tSEEN")
	for i, p := range found {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\n", i+1, p.Name, p.Address, p.RSSI, p.Seen)
	}
	_ = tw.Flush()
}
