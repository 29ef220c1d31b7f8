package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/anmarca/chatgrab/internal/analytics"
	"github.com/anmarca/chatgrab/internal/config"
	"github.com/anmarca/chatgrab/internal/dom"
	"github.com/anmarca/chatgrab/internal/download"
	"github.com/anmarca/chatgrab/internal/identity"
	"github.com/anmarca/chatgrab/internal/output"
	"github.com/anmarca/chatgrab/internal/scanner"
	"github.com/anmarca/chatgrab/internal/scrollback"
	"github.com/anmarca/chatgrab/internal/session"
	"github.com/anmarca/chatgrab/internal/watcher"
	"github.com/anmarca/chatgrab/pkg/plugin"
)

var version = "1.0.0"

// flags holds all parsed CLI options.
type flags struct {
	// Target
	url    string
	attach string

	// Scan
	window     time.Duration
	full       bool
	maxScrolls int
	scrollStep int

	// Filters
	jpegPNGOnly bool
	docExts     []string
	noImages    bool
	noDocuments bool

	// Download
	download    bool
	out         string
	browserSink bool
	retries     int
	timeout     int

	// Analytics
	analytics   string
	noAnalytics bool
	consent     string

	// Browser
	headless bool

	// Output
	silent  bool
	verbose bool
	noColor bool

	// Meta
	showHelp    bool
	showVersion bool
}

func main() {
	f := parseFlags()

	if f.showVersion {
		fmt.Printf("chatgrab v%s\n", version)
		os.Exit(0)
	}

	if f.showHelp {
		printUsage()
		os.Exit(0)
	}

	if f.noColor {
		colorEnabled = false
	}
	enableANSI()

	run(f)
}

func run(f *flags) {
	logger := buildLogger(f)
	defer logger.Sync()

	cfg := buildConfig(f)

	if !f.silent {
		printBanner()
		target := f.url
		if f.attach != "" {
			target = f.attach + " (attached)"
		}
		fmt.Printf("\n  %s %s\n", clr("cyan", "Target:"), target)
		mode := "magic scan"
		if f.full {
			mode = "full scan"
		}
		fmt.Printf("  %s %s  %s %s  %s %s\n\n",
			clr("dim", "Mode:"), mode,
			clr("dim", "Window:"), windowStr(f.window),
			clr("dim", "Output:"), cfg.DownloadRoot,
		)
	}

	browser, err := dom.Connect(dom.BrowserConfig{
		ControlURL: f.attach,
		Timeout:    time.Duration(f.timeout) * time.Second,
		Headless:   f.headless,
	})
	if err != nil {
		fatal("browser connection failed: %v", err)
	}
	defer browser.Close()

	var page *dom.LivePage
	if f.attach != "" {
		page, err = browser.AttachPage(f.url, scanner.MutationRoot)
	} else {
		page, err = browser.OpenPage(f.url, scanner.MutationRoot)
	}
	if err != nil {
		fatal("open chat page: %v", err)
	}

	sink := buildAnalytics(f, logger)
	defer sink.Close()

	fetcher := download.NewBinaryFetcher(download.BinaryFetcherConfig{
		Timeout: cfg.DownloadTimeout,
	})

	sc := scanner.New(logger)
	if f.jpegPNGOnly || len(f.docExts) > 0 {
		sc.Filter = &scanner.TypeFilter{
			JPEGPNGOnly:   f.jpegPNGOnly,
			DocExtensions: f.docExts,
			Sniff:         fetcher.SniffType,
			SniffTimeout:  cfg.DownloadTimeout,
		}
	}

	var dlSink plugin.DownloadSink
	if f.browserSink {
		dlSink = &download.BrowserSink{Page: page.Rod()}
	} else {
		dlSink = &download.FileSink{Root: cfg.DownloadRoot, Fetcher: fetcher}
	}

	// Document clicks make the browser itself download; capture those so
	// the files land in the session folder instead of the default dir.
	var native download.NativeDownloads
	if w, err := browser.Downloads(cfg.DownloadRoot); err != nil {
		logger.Warn("native download capture unavailable", zap.Error(err))
	} else {
		native = w
		defer w.Close()
	}

	reporter := output.NewConsole(os.Stdout)

	ctl := &session.Controller{
		Page:    page,
		Cfg:     cfg,
		Scanner: sc,
		Driver: &scrollback.Driver{
			MaxScrolls: cfg.MaxScrolls,
			Step:       cfg.ScrollStep,
			Settle:     cfg.ScrollSettle,
			Logger:     logger,
		},
		Watcher: &watcher.Watcher{Logger: logger},
		Tracker: &identity.Tracker{
			Page:     page,
			Interval: cfg.ConversationPoll,
			Logger:   logger,
		},
		Orch: &download.Orchestrator{
			Cfg:        cfg,
			Sink:       dlSink,
			Fetcher:    fetcher,
			Intercepts: download.NewIntercepts(cfg.InterceptExpiry),
			Downloads:  native,
			Analytics:  sink,
			Logger:     logger,
			Now:        time.Now,
		},
		Analytics: sink,
		Reporter:  reporter,
		Logger:    logger,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle Ctrl+C
	sig := make(chan os.Signal, 1)
	registerSignals(sig)
	go func() {
		<-sig
		fmt.Fprintf(os.Stderr, "\n\n%s Interrupt received, stopping...\n", clr("yellow", "!"))
		ctl.Stop()
		cancel()
	}()

	if err := ctl.Open(ctx); err != nil {
		fatal("session open failed: %v", err)
	}
	defer ctl.Close()

	ctl.Session().SetToggles(!f.noImages, !f.noDocuments)

	var stats plugin.ScanStats
	if f.full {
		stats, err = ctl.FullScan(ctx)
	} else {
		stats, err = ctl.MagicScan(ctx, f.window)
	}
	if err != nil {
		fatal("scan failed: %v", err)
	}

	if !f.silent {
		reporter.Summary(stats)
	}

	if f.download && stats.Images+stats.Documents > 0 {
		report, err := ctl.Download(ctx)
		if err != nil {
			fatal("download failed: %v", err)
		}
		if !f.silent {
			fmt.Printf("\n  %s Downloaded %s, %s errors\n",
				clr("green", "✓"),
				clr("cyan", fmt.Sprintf("%d", report.Downloaded)),
				clr("red", fmt.Sprintf("%d", report.Errors)),
			)
		}
	}
}

// buildAnalytics assembles the consent-gated event sink. A recorded denial
// or an unresolved prompt yields a sink that never sends.
func buildAnalytics(f *flags, logger *zap.Logger) plugin.AnalyticsSink {
	if f.noAnalytics || f.analytics == "" {
		return analytics.Noop{}
	}

	consent := &analytics.Consent{Store: &analytics.FileStore{Path: consentPath()}}

	switch f.consent {
	case "yes":
		if err := consent.Grant(); err != nil {
			logger.Warn("persist consent", zap.Error(err))
		}
	case "no":
		if err := consent.Deny(); err != nil {
			logger.Warn("persist consent", zap.Error(err))
		}
	default:
		state, err := consent.State()
		if err == nil && state == analytics.Unset && !f.silent {
			promptConsent(consent)
		}
	}

	return &analytics.Gated{
		Consent: consent,
		Sink:    analytics.NewClient(f.analytics, logger),
	}
}

func promptConsent(consent *analytics.Consent) {
	fmt.Printf("  %s Share anonymous usage counts (scans only, no content)? [y/N] ", clr("yellow", "?"))
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	if answer == "y" || answer == "yes" {
		consent.Grant()
	} else {
		consent.Deny()
	}
}

func consentPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".chatgrab.json"
	}
	return filepath.Join(home, ".chatgrab.json")
}

func buildLogger(f *flags) *zap.Logger {
	level := zapcore.WarnLevel
	if f.verbose {
		level = zapcore.DebugLevel
	}
	if f.silent {
		level = zapcore.ErrorLevel
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.OutputPaths = []string{"stderr"}
	if f.noColor {
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	} else {
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func windowStr(d time.Duration) string {
	if d == 0 {
		return "unbounded"
	}
	return d.String()
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "%s %s\n", clr("red", "✗"), fmt.Sprintf(format, args...))
	os.Exit(1)
}

// ---------- Flag parsing ----------

func parseFlags() *flags {
	f := &flags{
		url:       "https://web.whatsapp.com",
		out:       "chat_media",
		analytics: "http://localhost:3001",
		retries:   3,
		timeout:   30,
	}

	args := os.Args[1:]
	for i := 0; i < len(args); i++ {
		arg := args[i]
		next := func() string {
			if i+1 < len(args) {
				i++
				return args[i]
			}
			fatal("flag %s requires an argument", arg)
			return ""
		}
		nextInt := func() int {
			v := next()
			var n int
			fmt.Sscanf(v, "%d", &n)
			return n
		}

		switch arg {
		// Target
		case "-u", "--url":
			f.url = next()
		case "-a", "--attach":
			f.attach = next()

		// Scan
		case "-w", "--window":
			v := next()
			d, err := time.ParseDuration(v)
			if err != nil {
				d = 0
			}
			f.window = d
		case "-fs", "--full":
			f.full = true
		case "-ms", "--max-scrolls":
			f.maxScrolls = nextInt()
		case "-st", "--scroll-step":
			f.scrollStep = nextInt()

		// Filters
		case "-jp", "--jpeg-png":
			f.jpegPNGOnly = true
		case "-de", "--doc-ext":
			v := next()
			for _, ext := range strings.Split(v, ",") {
				if ext = strings.ToLower(strings.TrimSpace(ext)); ext != "" {
					f.docExts = append(f.docExts, strings.TrimPrefix(ext, "."))
				}
			}
		case "-ni", "--no-images":
			f.noImages = true
		case "-nd", "--no-documents":
			f.noDocuments = true

		// Download
		case "-dl", "--download":
			f.download = true
		case "-o", "--out":
			f.out = next()
		case "-bs", "--browser-sink":
			f.browserSink = true
		case "-rt", "--retry":
			f.retries = nextInt()
		case "-t", "--timeout":
			f.timeout = nextInt()

		// Analytics
		case "-ae", "--analytics":
			f.analytics = next()
		case "-na", "--no-analytics":
			f.noAnalytics = true
		case "-cs", "--consent":
			f.consent = strings.ToLower(next())

		// Browser
		case "-hl", "--headless":
			f.headless = true

		// Output
		case "-si", "--silent":
			f.silent = true
		case "-v", "--verbose":
			f.verbose = true
		case "-nc", "--no-color":
			f.noColor = true

		// Meta
		case "-h", "--help":
			f.showHelp = true
		case "-V", "--version":
			f.showVersion = true

		default:
			if !strings.HasPrefix(arg, "-") && f.attach == "" {
				f.attach = arg
			} else {
				fmt.Fprintf(os.Stderr, "Unknown flag: %s (use --help for usage)\n", arg)
				os.Exit(1)
			}
		}
	}
	return f
}

func buildConfig(f *flags) config.Engine {
	cfg := config.Default()

	if f.maxScrolls > 0 {
		cfg.MaxScrolls = f.maxScrolls
	}
	if f.scrollStep > 0 {
		cfg.ScrollStep = float64(f.scrollStep)
	}
	if f.retries > 0 {
		cfg.MaxAttempts = f.retries
	}
	if f.timeout > 0 {
		cfg.DownloadTimeout = time.Duration(f.timeout) * time.Second
	}
	if f.out != "" {
		cfg.DownloadRoot = f.out
	}

	return cfg
}

// ---------- Help / banner ----------

func printUsage() {
	printBanner()
	fmt.Print(`
USAGE:
  chatgrab [flags]
  chatgrab -a ws://127.0.0.1:9222 -w 24h -dl
  chatgrab -fs -dl -o my_media

TARGET:
  -u,  --url <string>          chat page URL (default "https://web.whatsapp.com")
  -a,  --attach <string>       attach to a running browser by control URL instead of launching

SCAN:
  -w,  --window <duration>     only collect messages newer than this (e.g. 2h, 24h; default unbounded)
  -fs, --full                  exhaustive scan: scroll back through the full history
  -ms, --max-scrolls <int>     scroll-back iteration cap (default 100)
  -st, --scroll-step <int>     pixels per scroll-back step (default 800)

FILTERS:
  -jp, --jpeg-png              restrict images to JPEG and PNG (sniffs blob sources)
  -de, --doc-ext <string>      document extension allow-list, comma separated (e.g. pdf,docx)
  -ni, --no-images             exclude images from the download queue
  -nd, --no-documents          exclude documents from the download queue

DOWNLOAD:
  -dl, --download              download collected media after the scan
  -o,  --out <string>          download root directory (default "chat_media")
  -bs, --browser-sink          save through the page itself instead of refetching URLs
  -rt, --retry <int>           attempts per item (default 3)
  -t,  --timeout <int>         per-item download timeout in seconds (default 30)

ANALYTICS:
  -ae, --analytics <string>    analytics server base URL (default "http://localhost:3001")
  -na, --no-analytics          disable usage reporting entirely
  -cs, --consent <yes|no>      record the usage-reporting decision without prompting

BROWSER:
  -hl, --headless              launch the browser headless (default headed)

OUTPUT:
  -si, --silent                suppress all output except errors
  -v,  --verbose               debug logging
  -nc, --no-color              disable colored output

META:
  -h,  --help                  show this help message
  -V,  --version               show version

`)
}

func printBanner() {
	grab := `
   ██████╗██╗  ██╗ █████╗ ████████╗ ██████╗ ██████╗  █████╗ ██████╗
  ██╔════╝██║  ██║██╔══██╗╚══██╔══╝██╔════╝ ██╔══██╗██╔══██╗██╔══██╗
  ██║     ███████║███████║   ██║   ██║  ███╗██████╔╝███████║██████╔╝
  ██║     ██╔══██║██╔══██║   ██║   ██║   ██║██╔══██╗██╔══██║██╔══██╗
  ╚██████╗██║  ██║██║  ██║   ██║   ╚██████╔╝██║  ██║██║  ██║██████╔╝
   ╚═════╝╚═╝  ╚═╝╚═╝  ╚═╝   ╚═╝    ╚═════╝ ╚═╝  ╚═╝╚═╝  ╚═╝╚═════╝`
	fmt.Println(clr("cyan", grab))
	fmt.Printf("  %s  %s\n", clr("dim", "Chat page media scanner and downloader"), clr("dim", "v"+version))
	fmt.Printf("  %s\n", clr("dim", strings.Repeat("─", 58)))
}

// ---------- Utilities ----------

var colorEnabled = true

func clr(color, text string) string {
	if !colorEnabled {
		return text
	}
	codes := map[string]string{
		"red":    "\033[31m",
		"green":  "\033[32m",
		"yellow": "\033[33m",
		"cyan":   "\033[36m",
		"dim":    "\033[2m",
		"bold":   "\033[1m",
		"reset":  "\033[0m",
	}
	c, ok := codes[color]
	if !ok {
		return text
	}
	return c + text + codes["reset"]
}
