package main

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/receipt-bot/internal/extraction"
	"github.com/zombor/receipt-bot/internal/receipt"
	"github.com/zombor/receipt-bot/internal/scanning"
	"github.com/zombor/receipt-bot/internal/scanning/tesseract"
	"github.com/zombor/receipt-bot/internal/session"
	"github.com/zombor/receipt-bot/internal/telegram"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	fs := ff.NewFlagSet("receipt-bot")
	var (
		port          = fs.IntLong("port", 8080, "HTTP server port (0 disables the API)")
		dbPath        = fs.StringLong("db", "receipt-bot.db", "Scan history database file path")
		sessionsPath  = fs.StringLong("sessions", "", "Pending image database file path (empty keeps sessions in memory)")
		storagePath   = fs.StringLong("storage", "./scans", "Archived image directory path")
		scannerType   = fs.StringLong("scanner", "azure", "Scanner type: 'azure', 'gemini', 'ollama' or 'tesseract'")
		azureEndpoint = fs.StringLong("azure-endpoint", "", "Azure Computer Vision endpoint")
		azureKey      = fs.StringLong("azure-key", "", "Azure Computer Vision subscription key")
		pollInterval  = fs.DurationLong("poll-interval", scanning.DefaultPollInterval, "Wait between Azure status checks")
		pollAttempts  = fs.IntLong("poll-attempts", scanning.DefaultMaxAttempts, "Maximum Azure status checks per image")
		pollTimeout   = fs.DurationLong("poll-timeout", scanning.DefaultTimeout, "Upper bound on one Azure read")
		geminiKey     = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel   = fs.StringLong("gemini-model", "gemini-2.5-flash", "Google Gemini model name")
		ollamaURL     = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel   = fs.StringLong("ollama-model", "llava", "Ollama model name (e.g., llava, llava-phi3, qwen2-vl)")
		tessLang      = fs.StringLong("tesseract-lang", "eng", "Comma separated Tesseract languages")
		ocrRPM        = fs.IntLong("ocr-rpm", 20, "OCR requests per minute (0 = unlimited)")
		tgToken       = fs.StringLong("telegram-token", "", "Telegram bot token (empty disables the bot)")
		tgAllow       = fs.StringLong("telegram-allow", "", "Comma separated Telegram user IDs allowed to use the bot")
		minLineLength = fs.IntLong("min-line-length", extraction.DefaultQualityGate.MinLineLength, "Shortest line that counts as readable text")
		noQuality     = fs.BoolLong("no-quality-gate", "Classify every image regardless of text quality")
		pendingTTL    = fs.DurationLong("pending-ttl", receipt.DefaultPendingTTL, "How long an uploaded image waits for its category")
		authUser      = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass      = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		showVersion   = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("RECEIPT_BOT"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Check version flag after parsing
	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	if *port == 0 && *tgToken == "" {
		slog.Error("Nothing to run. Set --port or --telegram-token")
		os.Exit(1)
	}

	// Initialize database
	slog.Info("Initializing database...")
	db, err := receipt.NewBoltDB(*dbPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Initialize session store
	var sessions session.Store
	if *sessionsPath != "" {
		slog.Info("Initializing session database...", "path", *sessionsPath)
		boltSessions, err := session.OpenBoltStore(*sessionsPath)
		if err != nil {
			slog.Error("Failed to initialize session database", "error", err)
			os.Exit(1)
		}
		defer boltSessions.Close()
		sessions = boltSessions
	} else {
		sessions = session.NewMemoryStore()
	}

	// Initialize scanner based on type
	var engine scanning.Scanner
	switch *scannerType {
	case "azure":
		slog.Info("Initializing Azure Read scanner...", "endpoint", *azureEndpoint)
		engine, err = scanning.NewAzureRead(scanning.AzureConfig{
			Endpoint:     *azureEndpoint,
			Key:          *azureKey,
			PollInterval: *pollInterval,
			MaxAttempts:  *pollAttempts,
			Timeout:      *pollTimeout,
		})
		if err != nil {
			slog.Error("Failed to initialize Azure Read", "error", err)
			os.Exit(1)
		}
	case "gemini":
		// Get Gemini API key from flag or environment
		apiKey := *geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			slog.Error("Gemini API key is required. Set --gemini-key flag or GEMINI_API_KEY environment variable")
			os.Exit(1)
		}
		slog.Info("Initializing Gemini scanner...", "model", *geminiModel)
		engine, err = scanning.NewGemini(apiKey, *geminiModel)
		if err != nil {
			slog.Error("Failed to initialize Gemini", "error", err)
			os.Exit(1)
		}
	case "ollama":
		slog.Info("Initializing Ollama scanner...", "url", *ollamaURL, "model", *ollamaModel)
		engine, err = scanning.NewOllama(*ollamaURL, *ollamaModel)
		if err != nil {
			slog.Error("Failed to initialize Ollama", "error", err)
			os.Exit(1)
		}
	case "tesseract":
		slog.Info("Initializing Tesseract scanner...", "languages", *tessLang)
		engine = tesseract.New(splitList(*tessLang)...)
	default:
		slog.Error("Invalid scanner type", "type", *scannerType, "valid", "azure, gemini, ollama or tesseract")
		os.Exit(1)
	}

	guard := scanning.DefaultGuardConfig(*scannerType)
	guard.RPM = *ocrRPM
	scanner := scanning.NewGuarded(engine, guard)
	defer scanner.Close()

	// Initialize storage
	slog.Info("Initializing storage...")
	store, err := receipt.NewLocalStorage(*storagePath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}

	gate := extraction.QualityGate{Enabled: !*noQuality, MinLineLength: *minLineLength}

	// Initialize service
	receiptService := receipt.NewService(db, scanner, store, sessions, extraction.NewExtractor(gate))
	receiptService.SetPendingTTL(*pendingTTL)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *port != 0 {
		basicAuth := receipt.BasicAuth{
			Username: *authUser,
			Password: *authPass,
		}
		server := receipt.NewServer(receiptService, basicAuth)

		// Start server in goroutine
		addr := fmt.Sprintf(":%d", *port)
		go func() {
			if err := server.Start(addr); err != nil {
				slog.Error("Server error", "error", err)
				os.Exit(1)
			}
		}()

		slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr))
		if *authUser != "" || *authPass != "" {
			slog.Info("Basic auth enabled", "user", *authUser)
		}
	}

	if *tgToken != "" {
		allowList, err := parseUserIDs(*tgAllow)
		if err != nil {
			slog.Error("Invalid --telegram-allow", "error", err)
			os.Exit(1)
		}
		bot, err := telegram.NewBot(telegram.Config{
			Token:          *tgToken,
			AllowList:      allowList,
			ProcessTimeout: *pollTimeout + guard.OpenTimeout,
		}, receiptService)
		if err != nil {
			slog.Error("Failed to initialize Telegram bot", "error", err)
			os.Exit(1)
		}
		go func() {
			if err := bot.Run(ctx); err != nil {
				slog.Error("Telegram bot error", "error", err)
			}
		}()
		slog.Info("Telegram bot started", "allowed_users", len(allowList))
	}

	// Wait for interrupt signal
	<-ctx.Done()

	slog.Info("Shutting down...")
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseUserIDs(s string) ([]int64, error) {
	var ids []int64
	for _, part := range splitList(s) {
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing user ID %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
