package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"deskbot/internal/completion"
	"deskbot/internal/config"
	"deskbot/internal/engine"
	"deskbot/internal/knowledge"
	"deskbot/internal/logging"
	"deskbot/internal/metrics"
)

var (
	// Global flags
	verbose    bool
	configPath string
	userID     string

	// Logger
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "deskbot",
	Short: "deskbot - customer support conversation engine",
	Long: `deskbot is a customer support chatbot engine.

Each turn runs intent classification, entity extraction, escalation
rules, and a knowledge base lookup before falling back to the external
completion service. Conversation memory is bounded per user and every
turn feeds the metrics aggregator.

Run without arguments to start an interactive chat session.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zapCfg := zap.NewProductionConfig()
		if verbose {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zapCfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		if err := logging.Initialize("."); err != nil {
			logger.Warn("debug logging unavailable", zap.Error(err))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAll()
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat()
	},
}

var askCmd = &cobra.Command{
	Use:   "ask [message]",
	Short: "Process a single message and print the result as JSON",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bot, _, cleanup, err := buildEngine()
		if err != nil {
			return err
		}
		defer cleanup()

		res, err := bot.ProcessMessage(cmd.Context(), userID, strings.Join(args, " "))
		if err != nil {
			return err
		}
		return printJSON(res)
	},
}

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Print the rolled-up metrics report",
	RunE: func(cmd *cobra.Command, args []string) error {
		days, _ := cmd.Flags().GetInt("days")
		realtime, _ := cmd.Flags().GetBool("realtime")
		export, _ := cmd.Flags().GetString("export")

		_, agg, cleanup, err := buildEngine()
		if err != nil {
			return err
		}
		defer cleanup()

		if export != "" {
			if err := agg.ExportJSON(export, days); err != nil {
				return err
			}
			fmt.Printf("Metrics exported to %s\n", export)
			return nil
		}
		if realtime {
			return printJSON(agg.RealTime())
		}
		return printJSON(agg.Report(days))
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print the stored conversation for a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		bot, _, cleanup, err := buildEngine()
		if err != nil {
			return err
		}
		defer cleanup()

		turns := bot.History(userID)
		if len(turns) == 0 {
			fmt.Printf("No conversation found for user %s\n", userID)
			return nil
		}
		for _, turn := range turns {
			fmt.Printf("[%s] %s: %s\n", turn.Timestamp.Format("15:04:05"), turn.Role, turn.Content)
		}
		return printJSON(bot.Summary(userID))
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear the stored conversation for a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		bot, _, cleanup, err := buildEngine()
		if err != nil {
			return err
		}
		defer cleanup()

		if bot.Clear(userID) {
			fmt.Printf("Cleared conversation for user %s\n", userID)
		} else {
			fmt.Printf("No conversation found for user %s\n", userID)
		}
		return nil
	},
}

var feedbackCmd = &cobra.Command{
	Use:   "feedback [rating 1-5]",
	Short: "Record a satisfaction rating for the current user",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		rating, err := strconv.Atoi(args[0])
		if err != nil || rating < 1 || rating > 5 {
			return fmt.Errorf("rating must be an integer between 1 and 5")
		}
		comment := ""
		if len(args) > 1 {
			comment = args[1]
		}

		bot, _, cleanup, err := buildEngine()
		if err != nil {
			return err
		}
		defer cleanup()

		bot.RecordFeedback(userID, rating, comment)
		fmt.Printf("Recorded %d/5 from user %s\n", rating, userID)
		return nil
	},
}

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Drop metrics older than the retention window",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if cfg.Metrics.ArchivePath == "" {
			return fmt.Errorf("metrics.archive_path is not configured")
		}

		archive, err := metrics.OpenArchive(cfg.Metrics.ArchivePath)
		if err != nil {
			return err
		}
		defer archive.Close()

		removed, err := archive.Prune(cfg.Metrics.RetentionDays)
		if err != nil {
			return err
		}
		fmt.Printf("Pruned %d archived sample(s) older than %d days\n", removed, cfg.Metrics.RetentionDays)
		return nil
	},
}

// buildEngine loads config and assembles the engine plus its metrics
// aggregator, seeded from the archive when one is configured.
func buildEngine() (*engine.Engine, *metrics.Aggregator, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	logging.Boot("%s %s starting", cfg.Name, cfg.Version)

	kb, err := knowledge.Load(cfg.Knowledge.Path)
	if err != nil {
		return nil, nil, nil, err
	}

	agg := metrics.NewAggregator()
	cleanup := func() {}

	if cfg.Metrics.ArchivePath != "" {
		archive, err := metrics.OpenArchive(cfg.Metrics.ArchivePath)
		if err != nil {
			return nil, nil, nil, err
		}
		samples, err := archive.LoadSamples()
		if err != nil {
			archive.Close()
			return nil, nil, nil, err
		}
		feedback, err := archive.LoadFeedback()
		if err != nil {
			archive.Close()
			return nil, nil, nil, err
		}
		agg.Load(samples, feedback)
		agg.AttachArchive(archive)
		cleanup = func() { archive.Close() }
	}

	timeout, err := cfg.LLMTimeout()
	if err != nil {
		cleanup()
		return nil, nil, nil, err
	}
	client := completion.NewHTTPClient(cfg.LLM, timeout)

	bot, err := engine.New(cfg, kb, client, agg)
	if err != nil {
		cleanup()
		return nil, nil, nil, err
	}
	return bot, agg, cleanup, nil
}

// runChat is the interactive REPL.
func runChat() error {
	bot, agg, cleanup, err := buildEngine()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	fmt.Printf("deskbot interactive chat (user: %s). Type 'exit' to quit.\n", userID)
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		switch line {
		case "exit", "quit":
			return nil
		case "/stats":
			if err := printJSON(agg.RealTime()); err != nil {
				return err
			}
			continue
		case "/clear":
			bot.Clear(userID)
			fmt.Println("Conversation cleared.")
			continue
		case "/users":
			for _, id := range bot.Users() {
				fmt.Println(id)
			}
			continue
		}

		res, err := bot.ProcessMessage(ctx, userID, line)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Error("failed to process message", zap.Error(err))
			fmt.Printf("error: %v\n", err)
			continue
		}
		fmt.Printf("\n%s\n\n", res.Response)
		if res.Escalated {
			logger.Info("conversation escalated",
				zap.String("user", userID),
				zap.String("reason", string(res.EscalationReason)))
		}
	}
	return scanner.Err()
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", ".deskbot/config.yaml", "Path to config file")
	rootCmd.PersistentFlags().StringVarP(&userID, "user", "u", "local", "User id for the conversation")

	metricsCmd.Flags().Int("days", 7, "Report period in days")
	metricsCmd.Flags().Bool("realtime", false, "Print real-time stats instead of a report")
	metricsCmd.Flags().String("export", "", "Write the report and raw data to a JSON file")

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(metricsCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(feedbackCmd)
	rootCmd.AddCommand(pruneCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
