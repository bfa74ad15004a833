package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"storecast/internal/config"
	"storecast/internal/frame"
	"storecast/internal/store"
	"storecast/pkg/storecast"
)

const version = "0.1.0"

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: storecast-cli <command> [options]\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  version              Print the CLI version\n")
		fmt.Fprintf(os.Stderr, "  tag <date>           Show the calendar features of a date\n")
		fmt.Fprintf(os.Stderr, "  tags <from> <to>     Show the calendar features of a date range\n")
		fmt.Fprintf(os.Stderr, "  sets                 List stored feature sets\n")
		fmt.Fprintf(os.Stderr, "  show <name> [rows]   Print the first rows of a feature set\n")
		fmt.Fprintf(os.Stderr, "\n")
	}

	if len(os.Args) < 2 {
		flag.Usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "version":
		fmt.Printf("storecast-cli %s\n", version)

	case "tag":
		err = runTag(os.Args[2:])

	case "tags":
		err = runTags(os.Args[2:])

	case "sets":
		err = runSets()

	case "show":
		err = runShow(os.Args[2:])

	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		flag.Usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfgPath := "config/storecast.yaml"
	if p := os.Getenv("STORECAST_CONFIG"); p != "" {
		cfgPath = p
	}
	return config.Load(cfgPath)
}

// dial connects to STORECAST_ADDR, or to the configured gRPC port.
func dial() (*storecast.Client, error) {
	addr := os.Getenv("STORECAST_ADDR")
	if addr == "" {
		cfg, err := loadConfig()
		if err != nil {
			return nil, err
		}
		host := cfg.Server.Host
		if host == "0.0.0.0" || host == "" {
			host = "localhost"
		}
		addr = net.JoinHostPort(host, strconv.Itoa(cfg.Server.GRPCPort))
	}
	return storecast.NewClient(addr)
}

func runTag(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: tag <date>")
	}
	d, err := frame.ParseDate(args[0])
	if err != nil {
		return err
	}
	c, err := dial()
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	t, err := c.Tag(ctx, d)
	if err != nil {
		return err
	}
	printTags([]storecast.Tags{t})
	return nil
}

func runTags(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: tags <from> <to>")
	}
	from, err := frame.ParseDate(args[0])
	if err != nil {
		return err
	}
	to, err := frame.ParseDate(args[1])
	if err != nil {
		return err
	}
	c, err := dial()
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	tags, err := c.TagRange(ctx, from, to)
	if err != nil {
		return err
	}
	printTags(tags)
	return nil
}

func printTags(tags []storecast.Tags) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tDAY\tWEEK\tWEEKEND\tRAMADAN\tEID\tLENT/ADVENT\tEXAMS\tNATIONAL\tSEASON\tEVENT")
	for _, t := range tags {
		fmt.Fprintf(w, "%s\t%s\t%d\t%t\t%t\t%t\t%t\t%t\t%t\t%s\t%s\n",
			t.Date.Format(time.DateOnly), t.DayOfWeek, t.WeekOfYear, t.IsWeekend, t.IsRamadan,
			t.IsEidFitr || t.IsEidAdha, t.IsGreatLent || t.IsAdventFast, t.IsExamPeriod,
			t.IsNationalHoliday, t.Season, t.RetailEvent)
	}
	w.Flush()
}

func runSets() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	names, err := store.NewParquetStore(cfg.Storage.DataDir).ListFeatureSets(context.Background())
	if err != nil {
		return err
	}
	for _, n := range names {
		fmt.Println(n)
	}
	return nil
}

func runShow(args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return fmt.Errorf("usage: show <name> [rows]")
	}
	rows := 20
	if len(args) == 2 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n < 1 {
			return fmt.Errorf("invalid rows %q", args[1])
		}
		rows = n
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	records, err := store.NewParquetStore(cfg.Storage.DataDir).ReadFeatures(context.Background(), args[0])
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STORE\tITEM\tDATE\tNET\tAVG7\tAVG15\tLAG7\tFX\tSTOCK\tCOVER\tSAFETY\tEVENT")
	for i, r := range records {
		if i == rows {
			break
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Store, r.Item, r.Time().Format(time.DateOnly),
			num(r.NetAmount), num(r.RollingAvg7d), num(r.RollingAvg15d), num(r.SalesLag7d),
			num(r.FXRate), num(r.CurrentStockQty), num(r.StockCoverDays), num(r.SafetyStockThreshold),
			str(r.RetailEvent))
	}
	w.Flush()
	fmt.Printf("%d of %d rows\n", min(rows, len(records)), len(records))
	return nil
}

func num(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}

func str(v *string) string {
	if v == nil {
		return "-"
	}
	return *v
}
