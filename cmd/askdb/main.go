package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/cenkalti/backoff/v4"
	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"

	"github.com/askdblabs/askdb/internal/agent"
	"github.com/askdblabs/askdb/internal/db"
	"github.com/askdblabs/askdb/internal/dbtools"
	"github.com/askdblabs/askdb/internal/logger"
	"github.com/askdblabs/askdb/internal/metrics"
)

var (
	// Set by LDFLAGS
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const (
	defaultMaxRounds   = 10
	defaultMaxTokens   = 2000
	defaultPingTimeout = 30 * time.Second
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env file is fine; the environment may be set directly.
	_ = godotenv.Load()

	verboseFlag := flag.Bool("verbose", false, "enable verbose (debug) logging")
	dbURLFlag := flag.String("db", os.Getenv("DATABASE_URL"), "database URL (or set DATABASE_URL env var)")
	modelFlag := flag.String("model", string(anthropic.ModelClaudeSonnet4_5_20250929), "Anthropic model to use")
	maxRoundsFlag := flag.Int("max-rounds", defaultMaxRounds, "maximum tool-calling rounds per question")
	maxTokensFlag := flag.Int64("max-tokens", defaultMaxTokens, "maximum output tokens per LLM call")
	noStreamFlag := flag.Bool("no-stream", false, "disable streaming of the final answer")
	metricsAddrFlag := flag.String("metrics-addr", "", "address to listen on for prometheus metrics (disabled when empty)")
	flag.Parse()

	log := logger.New(*verboseFlag)

	if *dbURLFlag == "" {
		return fmt.Errorf("database URL is required (pass -db or set DATABASE_URL)")
	}
	anthropicAPIKey := os.Getenv("ANTHROPIC_API_KEY")
	if anthropicAPIKey == "" {
		return fmt.Errorf("ANTHROPIC_API_KEY is required")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if *metricsAddrFlag != "" {
		metrics.BuildInfo.WithLabelValues(version, commit, date).Set(1)
		go func() {
			listener, err := net.Listen("tcp", *metricsAddrFlag)
			if err != nil {
				log.Error("failed to start prometheus metrics server listener", "error", err)
				return
			}
			log.Info("prometheus metrics server listening", "address", listener.Addr().String())
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.Serve(listener, mux); err != nil {
				log.Error("failed to start prometheus metrics server", "error", err)
			}
		}()
	}

	fmt.Println("Initializing database connection...")
	conn, err := db.Open(*dbURLFlag)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer conn.Close()

	if err := pingWithBackoff(ctx, conn); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	fmt.Printf("Database connection established (%s).\n", conn.Dialect.Name())

	introspector := db.NewIntrospector(log, conn.DB, conn.Dialect)
	executor := db.NewExecutor(log, conn.DB)
	toolClient := dbtools.NewClient(log, introspector, executor)

	anthropicClient := anthropic.NewClient(option.WithAPIKey(anthropicAPIKey))
	llm := agent.NewAnthropicClient(agent.AnthropicConfig{
		Client:          anthropicClient,
		Model:           anthropic.Model(*modelFlag),
		MaxOutputTokens: *maxTokensFlag,
		System:          agent.SystemPrompt,
		Stream:          !*noStreamFlag,
		OnTextDelta: func(text string) {
			fmt.Print(text)
		},
	})

	a, err := agent.New(&agent.Config{
		Logger:    log,
		LLM:       llm,
		Tools:     toolClient,
		MaxRounds: *maxRoundsFlag,
		Hooks: &agent.Hooks{
			OnToolStart: func(name string, args map[string]any) {
				fmt.Printf("\n[tool] %s %s\n", name, formatToolArgs(args))
			},
			OnToolDone: func(name, result string, isError bool) {
				if isError {
					fmt.Printf("[tool] %s failed: %s\n", name, truncate(result, 200))
				}
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create agent: %w", err)
	}

	fmt.Println("\naskdb is ready. Ask me anything about your database.")
	fmt.Println("Type 'quit' or 'q' to exit. Local commands: \\tables, \\schema <table>, \\sql <select>.")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\n> ")
		if !scanner.Scan() {
			break
		}
		if ctx.Err() != nil {
			break
		}

		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		switch strings.ToLower(question) {
		case "quit", "q", "exit":
			fmt.Println("Goodbye!")
			return nil
		}

		if strings.HasPrefix(question, "\\") {
			if err := runLocalCommand(ctx, introspector, executor, question); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}
			continue
		}

		msgs := []agent.Message{llm.CreateUserMessage(question)}

		var output io.Writer
		if *noStreamFlag {
			// Deltas are not printed, so the final text is.
			output = os.Stdout
		}

		result, err := a.Run(ctx, msgs, output)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				fmt.Println("\nInterrupted.")
				return nil
			}
			if errors.Is(err, agent.ErrMaxRounds) {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				continue
			}
			return fmt.Errorf("failed to run agent: %w", err)
		}
		fmt.Println()

		log.Debug("question answered", "rounds", result.Rounds, "tools", result.ToolsUsed)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	return nil
}

// pingWithBackoff retries the initial ping so a database that is still coming
// up does not fail the session immediately.
func pingWithBackoff(ctx context.Context, conn *db.Conn) error {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = defaultPingTimeout
	return backoff.Retry(func() error {
		pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
		defer pingCancel()
		return conn.DB.PingContext(pingCtx)
	}, backoff.WithContext(bo, ctx))
}

// runLocalCommand handles the backslash commands that bypass the model and
// hit the database directly.
func runLocalCommand(ctx context.Context, introspector *db.Introspector, executor *db.Executor, command string) error {
	cmd, arg, _ := strings.Cut(command, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "\\tables":
		tables, err := introspector.ListTables(ctx)
		if err != nil {
			return err
		}
		table := tablewriter.NewWriter(os.Stdout)
		table.SetAutoWrapText(false)
		table.SetHeader([]string{"Table"})
		for _, name := range tables {
			table.Append([]string{name})
		}
		table.Render()
		return nil

	case "\\schema":
		if arg == "" {
			return fmt.Errorf("usage: \\schema <table>")
		}
		schema, err := introspector.DescribeTable(ctx, arg)
		if err != nil {
			return err
		}
		table := tablewriter.NewWriter(os.Stdout)
		table.SetAutoWrapText(false)
		table.SetHeader([]string{"Column", "Type", "Nullable", "Primary Key"})
		for _, col := range schema.Columns {
			table.Append([]string{col.Name, col.Type, fmt.Sprintf("%t", col.Nullable), fmt.Sprintf("%t", col.PrimaryKey)})
		}
		table.Render()
		return nil

	case "\\sql":
		if arg == "" {
			return fmt.Errorf("usage: \\sql <select statement>")
		}
		result, err := executor.Execute(ctx, arg)
		if err != nil {
			return err
		}
		table := tablewriter.NewWriter(os.Stdout)
		table.SetAutoWrapText(false)
		table.SetHeader(result.Columns)
		for _, row := range result.Rows {
			values := make([]string, len(result.Columns))
			for i, col := range result.Columns {
				values[i] = fmt.Sprintf("%v", row[col])
			}
			table.Append(values)
		}
		table.Render()
		fmt.Printf("(%d rows)\n", result.Count)
		return nil

	default:
		return fmt.Errorf("unknown command: %s", cmd)
	}
}

func formatToolArgs(args map[string]any) string {
	if len(args) == 0 {
		return ""
	}
	parts := make([]string, 0, len(args))
	for k, v := range args {
		parts = append(parts, fmt.Sprintf("%s=%v", k, v))
	}
	return strings.Join(parts, " ")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
