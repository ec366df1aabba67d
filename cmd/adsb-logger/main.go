// Command-line entry point for the ADS-B logger suite.
//
// The same binary runs the long-lived archiver, the archive query tools,
// and the callsign registry services:
//
//	ingest           - poll aircraft.json and archive hour segments
//	prune            - delete segments older than the retention window
//	list             - list callsigns seen on a date
//	extract          - pull one flight's records into CSV/KML/metadata
//	monitor          - tail the archive for tracked airline callsigns
//	scan-historical  - batch-populate the registry from old segments
//	callsigns        - registry export/stats/schedule
//	analyze-descents - fleet arrival descent speed analysis
//	serve            - registry REST API
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/marcoculver/adsb-logger/internal/adsb"
	"github.com/marcoculver/adsb-logger/internal/api"
	"github.com/marcoculver/adsb-logger/internal/callsign"
	"github.com/marcoculver/adsb-logger/internal/export"
	"github.com/marcoculver/adsb-logger/internal/flight"
	"github.com/marcoculver/adsb-logger/internal/fr24"
	"github.com/marcoculver/adsb-logger/internal/ingest"
	"github.com/marcoculver/adsb-logger/internal/natsfeed"
	"github.com/marcoculver/adsb-logger/internal/scan"
	"github.com/marcoculver/adsb-logger/internal/segment"
)

const (
	defaultLogDir    = "/opt/adsb-logs"
	defaultOutputDir = "/opt/adsb-analyses"
)

func usage(w io.Writer) {
	fmt.Fprintln(w, "adsb-logger - ADS-B state archiver and flight tools:")
	fmt.Fprintln(w, "  ingest           - poll aircraft.json and write hour segments")
	fmt.Fprintln(w, "  prune            - delete segments past the retention window")
	fmt.Fprintln(w, "  list             - list callsigns seen on a date")
	fmt.Fprintln(w, "  extract          - extract one flight to CSV/KML/metadata")
	fmt.Fprintln(w, "  monitor          - watch for tracked airline callsigns")
	fmt.Fprintln(w, "  scan-historical  - populate the registry from old segments")
	fmt.Fprintln(w, "  callsigns        - registry export/stats/schedule")
	fmt.Fprintln(w, "  analyze-descents - fleet descent speed analysis")
	fmt.Fprintln(w, "  serve            - registry REST API server")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  adsb-logger <command> [options]")
	fmt.Fprintln(w, "  adsb-logger <command> -h for command options")
	fmt.Fprintln(w, "")
}

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}

	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	cmd := strings.ToLower(os.Args[1])
	args := os.Args[2:]

	switch cmd {
	case "ingest":
		runIngest(args)
	case "prune":
		runPrune(args)
	case "list":
		runList(args)
	case "extract":
		runExtract(args)
	case "monitor":
		runMonitor(args)
	case "scan-historical":
		runScanHistorical(args)
	case "callsigns":
		runCallsigns(args)
	case "analyze-descents":
		runAnalyzeDescents(args)
	case "serve":
		runServe(args)
	case "-h", "--help", "help":
		usage(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage(os.Stderr)
		os.Exit(2)
	}
}

// envOrDefault returns the environment variable value or a default.
func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// signalContext cancels on SIGINT/SIGTERM and exits 130 on a second SIGINT.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		logrus.Info("shutdown signal received")
		cancel()
		<-ch
		os.Exit(130)
	}()
	return ctx, cancel
}

// parseDate accepts the date formats users actually type.
func parseDate(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", "20060102", "02/01/2006", "02-01-2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("could not parse date %q (use YYYY-MM-DD)", s)
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func runIngest(args []string) {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	url := fs.String("url", envOrDefault("AIRCRAFT_JSON_URL", adsb.DefaultSnapshotURL), "tar1090/readsb aircraft.json URL")
	outdir := fs.String("outdir", envOrDefault("ADSB_LOG_DIR", defaultLogDir), "archive output directory")
	tick := fs.Float64("tick", 1.0, "poll interval seconds")
	keepDays := fs.Int("keep-days", 30, "days of segments to keep")
	timeout := fs.Float64("timeout", 2.0, "HTTP timeout seconds")
	fsyncEvery := fs.Float64("fsync-every", 1.0, "fsync interval seconds")
	pruneEvery := fs.Float64("prune-every", 3600.0, "prune interval seconds")
	natsURL := fs.String("nats-url", envOrDefault("NATS_URL", ""), "publish records to NATS at this URL (empty: disabled)")
	natsSubject := fs.String("nats-subject", natsfeed.DefaultSubject, "NATS subject for record fan-out")
	verbose := fs.Bool("v", false, "debug logging")
	_ = fs.Parse(args)

	if *verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	if err := segment.Recover(*outdir, time.Now().UTC()); err != nil {
		logrus.WithError(err).Warn("archive recovery failed")
	}

	writer, err := segment.NewWriter(*outdir, time.Duration(*fsyncEvery*float64(time.Second)))
	if err != nil {
		fatal(err)
	}

	loop := ingest.NewLoop(ingest.Config{
		Tick:       time.Duration(*tick * float64(time.Second)),
		KeepDays:   *keepDays,
		PruneEvery: time.Duration(*pruneEvery * float64(time.Second)),
	},
		adsb.NewFetcher(*url, time.Duration(*timeout*float64(time.Second))),
		writer,
		segment.NewStore(*outdir),
	)

	if *natsURL != "" {
		feed, err := natsfeed.Connect(*natsURL, *natsSubject)
		if err != nil {
			logrus.WithError(err).Warn("NATS feed unavailable, continuing without")
		} else {
			loop.Feed = feed
		}
	}

	ctx, cancel := signalContext()
	defer cancel()

	if err := loop.Run(ctx); err != nil && err != context.Canceled {
		fatal(err)
	}
}

func runPrune(args []string) {
	fs := flag.NewFlagSet("prune", flag.ExitOnError)
	outdir := fs.String("outdir", envOrDefault("ADSB_LOG_DIR", defaultLogDir), "archive directory")
	keepDays := fs.Int("keep-days", 30, "days of segments to keep")
	_ = fs.Parse(args)

	removed, err := segment.NewStore(*outdir).Prune(*keepDays, time.Now())
	if err != nil {
		fatal(err)
	}
	fmt.Printf("Removed %d segment(s)\n", removed)
}

func runList(args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	logDir := fs.String("log-dir", envOrDefault("ADSB_LOG_DIR", defaultLogDir), "archive directory")
	pattern := fs.String("pattern", "", "glob pattern to filter callsigns (e.g. FDB*)")
	_ = fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: adsb-logger list [options] YYYY-MM-DD")
		os.Exit(2)
	}
	date, err := parseDate(fs.Arg(0))
	if err != nil {
		fatal(err)
	}

	fmt.Printf("Listing flights on %s\n", date.Format("2006-01-02"))
	names, _ := scan.UniqueCallsigns(segment.NewStore(*logDir), date)

	if *pattern != "" {
		filtered := names[:0]
		for _, cs := range names {
			if ok, _ := filepath.Match(strings.ToUpper(*pattern), cs); ok {
				filtered = append(filtered, cs)
			}
		}
		names = filtered
	}

	if len(names) == 0 {
		fmt.Printf("No flights found on %s\n", date.Format("2006-01-02"))
		return
	}

	fmt.Printf("\nFound %d unique callsigns:\n\n", len(names))
	const cols = 4
	for i := 0; i < len(names); i += cols {
		row := names[i:min(i+cols, len(names))]
		line := "  "
		for _, cs := range row {
			line += fmt.Sprintf("%-12s  ", cs)
		}
		fmt.Println(strings.TrimRight(line, " "))
	}
	fmt.Println()
}

func runExtract(args []string) {
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	logDir := fs.String("log-dir", envOrDefault("ADSB_LOG_DIR", defaultLogDir), "archive directory")
	outputDir := fs.String("output-dir", envOrDefault("ADSB_OUTPUT_DIR", defaultOutputDir), "extraction output directory")
	noCrossover := fs.Bool("no-crossover", false, "skip midnight crossover detection")
	noKML := fs.Bool("no-kml", false, "skip KML generation")
	minimal := fs.Bool("minimal-csv", false, "also write the minimal CSV variant")
	verbose := fs.Bool("v", false, "show per-file progress")
	_ = fs.Parse(args)

	if fs.NArg() < 2 {
		fmt.Fprintln(os.Stderr, "Usage: adsb-logger extract [options] CALLSIGN YYYY-MM-DD")
		os.Exit(2)
	}
	callsignArg := strings.ToUpper(fs.Arg(0))
	date, err := parseDate(fs.Arg(1))
	if err != nil {
		fatal(err)
	}

	if _, err := os.Stat(*logDir); err != nil {
		fatal(fmt.Errorf("log directory not found: %s", *logDir))
	}

	var progress scan.Progress
	if *verbose {
		progress = func(i, total int, path string) {
			fmt.Printf("  [%d/%d] %s\n", i+1, total, filepath.Base(path))
		}
	}

	extractor := flight.NewExtractor(segment.NewStore(*logDir), *outputDir)
	data, err := extractor.Extract(callsignArg, date, !*noCrossover, true, progress)
	if err != nil {
		fatal(err)
	}
	if len(data.Records) == 0 {
		fmt.Printf("No data found for %s on %s\n", callsignArg, date.Format("2006-01-02"))
		os.Exit(1)
	}

	m := data.Metadata
	fmt.Printf("Found %d records\n", len(data.Records))
	fmt.Printf("  Duration: %.1f minutes\n", m.DurationMinutes)
	if m.MaxAltitudeFt != nil {
		fmt.Printf("  Max Altitude: %.0f ft\n", *m.MaxAltitudeFt)
	}
	if m.MaxGroundSpeed != nil {
		fmt.Printf("  Max Speed: %.0f kts\n", *m.MaxGroundSpeed)
	}
	if m.CrossoverDetected {
		fmt.Println("  Midnight crossover detected!")
		fmt.Printf("  Actual range: %s to %s\n", m.ActualStartDate, m.ActualEndDate)
	}

	if _, err := flight.SaveMetadata(data); err != nil {
		fatal(err)
	}
	if _, err := flight.SaveSummary(data); err != nil {
		fatal(err)
	}
	if err := export.WriteCSV(data.Records, filepath.Join(data.OutDir, "flight_data.csv"), true); err != nil {
		fatal(err)
	}
	if *minimal {
		if err := export.WriteMinimalCSV(data.Records, filepath.Join(data.OutDir, "flight_data_minimal.csv")); err != nil {
			fatal(err)
		}
	}
	if !*noKML {
		if err := export.WriteKML(data.Records, filepath.Join(data.OutDir, "flight_path.kml"), callsignArg, date.Format("2006-01-02")); err != nil {
			fatal(err)
		}
	}

	fmt.Printf("\nExtraction complete: %s\n", data.OutDir)
}

func openRegistry(path string) *callsign.DB {
	db, err := callsign.Open(path)
	if err != nil {
		fatal(err)
	}
	return db
}

func runMonitor(args []string) {
	fs := flag.NewFlagSet("monitor", flag.ExitOnError)
	logDir := fs.String("log-dir", envOrDefault("ADSB_LOG_DIR", defaultLogDir), "archive directory")
	dbPath := fs.String("db", envOrDefault("CALLSIGN_DB_PATH", filepath.Join(defaultLogDir, "callsigns.db")), "registry database path")
	token := fs.String("fr24-token", envOrDefault("FR24_API_TOKEN", ""), "Flightradar24 API token")
	skipAPI := fs.Bool("skip-api", false, "disable route lookups")
	interval := fs.Int("interval", 60, "scan interval seconds")
	lookback := fs.Int("lookback", 1, "hours of recent segments to tail")
	live := fs.Bool("live", false, "poll aircraft.json instead of tailing the archive")
	url := fs.String("url", envOrDefault("AIRCRAFT_JSON_URL", adsb.DefaultSnapshotURL), "aircraft.json URL for -live mode")
	verbose := fs.Bool("v", false, "debug logging")
	_ = fs.Parse(args)

	if *verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	db := openRegistry(*dbPath)
	defer db.Close()

	var client *fr24.Client
	if *token != "" {
		client = fr24.NewClient(*token)
	}

	m := callsign.NewMonitor(db, client, segment.NewStore(*logDir))
	m.SkipAPI = *skipAPI || client == nil
	m.Interval = time.Duration(*interval) * time.Second
	m.LookbackHours = *lookback

	ctx, cancel := signalContext()
	defer cancel()

	var err error
	if *live {
		err = m.RunLive(ctx, adsb.NewFetcher(*url, 10*time.Second))
	} else {
		err = m.Run(ctx)
	}
	if err != nil && err != context.Canceled {
		fatal(err)
	}
}

func runScanHistorical(args []string) {
	fs := flag.NewFlagSet("scan-historical", flag.ExitOnError)
	logDir := fs.String("log-dir", envOrDefault("ADSB_LOG_DIR", defaultLogDir), "archive directory")
	dbPath := fs.String("db", envOrDefault("CALLSIGN_DB_PATH", filepath.Join(defaultLogDir, "callsigns.db")), "registry database path")
	_ = fs.Parse(args)

	if fs.NArg() < 2 {
		fmt.Fprintln(os.Stderr, "Usage: adsb-logger scan-historical [options] START-DATE END-DATE")
		os.Exit(2)
	}
	start, err := parseDate(fs.Arg(0))
	if err != nil {
		fatal(err)
	}
	end, err := parseDate(fs.Arg(1))
	if err != nil {
		fatal(err)
	}

	db := openRegistry(*dbPath)
	defer db.Close()

	m := callsign.NewMonitor(db, nil, segment.NewStore(*logDir))
	m.SkipAPI = true

	ctx, cancel := signalContext()
	defer cancel()

	if err := m.ScanHistorical(ctx, start, end); err != nil && err != context.Canceled {
		fatal(err)
	}
}

func runCallsigns(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: adsb-logger callsigns <export|stats|schedule> [options]")
		os.Exit(2)
	}
	sub := strings.ToLower(args[0])

	fs := flag.NewFlagSet("callsigns "+sub, flag.ExitOnError)
	dbPath := fs.String("db", envOrDefault("CALLSIGN_DB_PATH", filepath.Join(defaultLogDir, "callsigns.db")), "registry database path")
	airline := fs.String("airline", "", "filter by airline name")
	output := fs.String("output", "callsigns.csv", "CSV output path (export)")
	_ = fs.Parse(args[1:])

	db := openRegistry(*dbPath)
	defer db.Close()

	switch sub {
	case "export":
		if err := db.ExportCSV(*output, *airline); err != nil {
			fatal(err)
		}
		fmt.Printf("Exported to %s\n", *output)

	case "stats":
		stats, err := db.GetStats()
		if err != nil {
			fatal(err)
		}
		fmt.Printf("Callsigns: %d\n", stats.TotalCallsigns)
		fmt.Printf("Sightings: %d\n\n", stats.TotalSightings)
		fmt.Println("By airline:")
		for airline, n := range stats.ByAirline {
			if airline == "" {
				airline = "(unknown)"
			}
			fmt.Printf("  %-20s %d\n", airline, n)
		}
		fmt.Println("\nMost seen:")
		for _, tc := range stats.TopCallsigns {
			fmt.Printf("  %-12s %d\n", tc.Callsign, tc.SightingCount)
		}

	case "schedule":
		if fs.NArg() < 1 {
			fmt.Fprintln(os.Stderr, "Usage: adsb-logger callsigns schedule [options] CALLSIGN")
			os.Exit(2)
		}
		sched, err := db.Schedule(strings.ToUpper(fs.Arg(0)))
		if err != nil {
			fatal(err)
		}
		fmt.Printf("Schedule for %s (%d sightings)\n\n", sched.Callsign, sched.TotalSightings)
		days := []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}
		fmt.Println("By weekday:")
		for d := 0; d < 7; d++ {
			fmt.Printf("  %s %d\n", days[d], sched.ByDayOfWeek[d])
		}
		fmt.Println("\nBy hour (UTC):")
		for h := 0; h < 24; h++ {
			if n := sched.ByHour[h]; n > 0 {
				fmt.Printf("  %02d:00 %d\n", h, n)
			}
		}

	default:
		fmt.Fprintf(os.Stderr, "Unknown callsigns subcommand: %s\n", sub)
		os.Exit(2)
	}
}

func runAnalyzeDescents(args []string) {
	fs := flag.NewFlagSet("analyze-descents", flag.ExitOnError)
	logDir := fs.String("log-dir", envOrDefault("ADSB_LOG_DIR", defaultLogDir), "archive directory")
	outDir := fs.String("output-dir", envOrDefault("ADSB_OUTPUT_DIR", defaultOutputDir), "analysis output directory")
	prefix := fs.String("prefix", "FDB", "callsign prefix to analyze")
	tmaLat := fs.Float64("tma-lat", 25.2532, "terminal area latitude")
	tmaLon := fs.Float64("tma-lon", 55.3657, "terminal area longitude")
	radius := fs.Float64("radius-nm", 150, "terminal area radius (nm)")
	endAlt := fs.Float64("end-alt", 15000, "descent analysis floor (ft)")
	_ = fs.Parse(args)

	if fs.NArg() < 2 {
		fmt.Fprintln(os.Stderr, "Usage: adsb-logger analyze-descents [options] START-DATE END-DATE")
		os.Exit(2)
	}
	start, err := parseDate(fs.Arg(0))
	if err != nil {
		fatal(err)
	}
	end, err := parseDate(fs.Arg(1))
	if err != nil {
		fatal(err)
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		fatal(err)
	}

	a := flight.NewAnalyzer(segment.NewStore(*logDir))
	a.CallsignPrefix = strings.ToUpper(*prefix)
	a.Descent.TMALat = *tmaLat
	a.Descent.TMALon = *tmaLon
	a.Descent.RadiusNM = *radius
	a.Descent.EndAltFt = *endAlt

	stats, err := a.Run(start, end)
	if err != nil {
		fatal(err)
	}
	if len(stats) == 0 {
		fmt.Println("No descent data found")
		os.Exit(1)
	}

	csvPath := filepath.Join(*outDir, "descent_speeds.csv")
	if err := flight.WriteDescentCSV(stats, csvPath); err != nil {
		fatal(err)
	}
	summaryPath := filepath.Join(*outDir, "fleet_summary.txt")
	if err := flight.WriteFleetSummary(stats, summaryPath, time.Now()); err != nil {
		fatal(err)
	}

	fmt.Printf("Analyzed %d descents\n", len(stats))
	fmt.Printf("  %s\n  %s\n", csvPath, summaryPath)
}

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	dbPath := fs.String("db", envOrDefault("CALLSIGN_DB_PATH", filepath.Join(defaultLogDir, "callsigns.db")), "registry database path")
	port := fs.Int("port", envOrDefaultInt("API_PORT", 8081), "HTTP port")
	authEnabled := fs.Bool("auth", false, "enable API key authentication")
	apiKeys := fs.String("api-keys", envOrDefault("API_KEYS", ""), "comma-separated valid API keys")
	_ = fs.Parse(args)

	db := openRegistry(*dbPath)
	defer db.Close()

	srv := api.NewRegistryServer(db, api.Config{
		Port:        *port,
		AuthEnabled: *authEnabled,
		APIKeys:     strings.Split(*apiKeys, ","),
	})
	if err := srv.Run(); err != nil {
		fatal(err)
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
