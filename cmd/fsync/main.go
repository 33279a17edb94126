package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"forumsync/internal/app"
	"forumsync/internal/config"
	"forumsync/internal/encryption"
	"forumsync/internal/importer"
	"forumsync/internal/watch"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// readConfig reads the config file from its default location.
func readConfig() (*config.Config, string, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, "", fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, "", fmt.Errorf("reading config: %w", err)
	}
	return cfg, defaults["config_path"], nil
}

// newApp reads the config and creates an FsyncApp. The caller must defer app.Close().
// operation identifies the CLI command being run (e.g. "import", "history").
func newApp(cmd *cobra.Command, operation string, dryRun bool) (*app.FsyncApp, error) {
	cfg, _, err := readConfig()
	if err != nil {
		return nil, err
	}

	verbose, _ := cmd.Flags().GetBool("verbose")
	out := cmd.OutOrStdout()
	a, err := app.NewFsyncApp(cfg, app.Options{
		Operation:  operation,
		DryRun:     dryRun,
		Verbose:    verbose,
		Passphrase: app.TerminalPassphrase(),
		OnResult:   func(r *importer.FileResult) { printResult(out, r) },
	})
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

var rootCmd = &cobra.Command{
	Use:           "fsync",
	Short:         "Import a repository's files into forum categories and topics",
	SilenceUsage:  true,
	SilenceErrors: false,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		// Get application defaults
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		// Create config with defaults
		cfg := config.NewConfig(defaults["base_dir"])

		// Initialize config file
		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		fmt.Println("Set forum.url and source.root, then run `fsync config token`.")
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := readConfig()
		if err != nil {
			return err
		}

		fmt.Printf("Configuration from %s:\n\n", path)
		fmt.Printf("Base Dir:        %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:         %s\n", cfg.LogDir)
		fmt.Printf("Forum:           %s %s (user %d)\n", cfg.Forum.Type, cfg.Forum.URL, cfg.Forum.UserID)
		switch cfg.Source.Type {
		case "filesystem":
			fmt.Printf("Source:          filesystem %s\n", cfg.Source.Root)
		case "tarball":
			fmt.Printf("Source:          tarball %s\n", cfg.Source.URL)
		case "s3":
			fmt.Printf("Source:          s3://%s/%s\n", cfg.Source.S3Bucket, cfg.Source.S3Prefix)
		default:
			fmt.Printf("Source:          %s\n", cfg.Source.Type)
		}
		fmt.Printf("Ignore:          %v\n", cfg.Source.Ignore)
		fmt.Printf("Master Category: %s\n", cfg.Import.MasterCategory)
		fmt.Printf("Index:           %v %q\n", cfg.Import.GenerateTOC, cfg.Import.TOCTitle)
		fmt.Printf("Chunk Length:    %d\n", cfg.Import.ChunkMaxLength)
		fmt.Printf("Reply Delay:     %s\n", cfg.Import.ReplyDelay.Duration)
		fmt.Printf("Journal:         %s %s\n", cfg.Journal.Type, cfg.Journal.DataDir)
		return nil
	},
}

var configCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate configuration, journal schema and forum access",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "check", false)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signalContext()
		defer stop()

		if err := a.Check(ctx); err != nil {
			return err
		}
		fmt.Println("Configuration OK")
		return nil
	},
}

var configTokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Store the forum API token encrypted",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := readConfig()
		if err != nil {
			return err
		}

		store, err := encryption.NewTokenStoreFromConfig(cfg.Encryption)
		if err != nil {
			return err
		}

		if !store.IsConfigured() {
			pass, err := app.ReadSecret(os.Stdin, os.Stderr, "New passphrase: ")
			if err != nil {
				return fmt.Errorf("reading passphrase: %w", err)
			}
			confirm, err := app.ReadSecret(os.Stdin, os.Stderr, "Repeat passphrase: ")
			if err != nil {
				return fmt.Errorf("reading passphrase: %w", err)
			}
			if pass != confirm {
				return errors.New("passphrases do not match")
			}
			if err := store.Setup(pass); err != nil {
				return fmt.Errorf("creating key pair: %w", err)
			}
			fmt.Printf("Key pair created at %s\n", cfg.Encryption.PublicKeyPath)
		}

		token, err := app.ReadSecret(os.Stdin, os.Stderr, "Forum API token: ")
		if err != nil {
			return fmt.Errorf("reading token: %w", err)
		}
		if err := store.StoreToken(token); err != nil {
			return fmt.Errorf("storing token: %w", err)
		}

		fmt.Printf("API token stored at %s\n", cfg.Encryption.TokenPath)
		return nil
	},
}

// import command
var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import the source tree into the forum",
	RunE: func(cmd *cobra.Command, args []string) error {
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		a, err := newApp(cmd, "import", dryRun)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signalContext()
		defer stop()

		summary, err := a.Import(ctx)
		if summary != nil {
			printSummary(cmd.OutOrStdout(), summary)
		}
		if err != nil {
			return fmt.Errorf("import failed: %w", err)
		}

		if dryRun {
			if mf := a.DryRunForum(); mf != nil {
				fmt.Printf("Dry run: %d topic(s) across %d categories; nothing was written to the forum.\n",
					len(mf.Topics()), len(mf.Categories()))
			}
		}
		return nil
	},
}

// watch command
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Import, then re-import whenever the source tree changes",
	RunE: func(cmd *cobra.Command, args []string) error {
		quiet, _ := cmd.Flags().GetDuration("quiet")

		a, err := newApp(cmd, "watch", false)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signalContext()
		defer stop()

		out := cmd.OutOrStdout()
		return a.Watch(ctx, quiet, func(s *importer.RunSummary, err error) {
			if s != nil {
				printSummary(out, s)
			}
			if err != nil {
				fmt.Fprintf(out, "%s %v\n", red("import failed:"), err)
			}
		})
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history [RUN_ID]",
	Short: "View import runs, or the file outcomes of one run",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cmd, "history", false)
		if err != nil {
			return err
		}
		defer a.Close()

		out := cmd.OutOrStdout()
		if len(args) == 1 {
			recs, err := a.RunOutcomes(args[0])
			if err != nil {
				return err
			}
			for _, r := range recs {
				printOutcome(out, r, true)
			}
			return nil
		}

		runs, err := a.History(limit)
		if err != nil {
			return err
		}

		if len(runs) == 0 {
			fmt.Fprintln(out, "No import runs recorded.")
			return nil
		}

		for _, r := range runs {
			printRun(out, r)
		}
		return nil
	},
}

// log command
var logCmd = &cobra.Command{
	Use:   "log PATH",
	Short: "View the import history of one file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cmd, "log", false)
		if err != nil {
			return err
		}
		defer a.Close()

		recs, err := a.FileLog(args[0], limit)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(recs) == 0 {
			fmt.Fprintln(out, "No import history.")
			return nil
		}
		for _, r := range recs {
			printOutcome(out, r, false)
		}
		return nil
	},
}

// journal command
var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Manage the import journal",
}

var journalBackupCmd = &cobra.Command{
	Use:   "backup DEST",
	Short: "Write a consistent copy of the journal database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "journal-backup", false)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.BackupJournal(args[0]); err != nil {
			return err
		}
		fmt.Printf("Journal copied to %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log debug records")

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configCheckCmd)
	configCmd.AddCommand(configTokenCmd)

	// journal subcommands
	journalCmd.AddCommand(journalBackupCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().Bool("dry-run", false, "Import into an in-memory forum and record nothing")
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().Duration("quiet", watch.DefaultQuietPeriod, "How long the tree must be still before re-importing")
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of runs to show")
	rootCmd.AddCommand(logCmd)
	logCmd.Flags().IntP("limit", "n", 20, "Maximum number of outcomes to show")
	rootCmd.AddCommand(journalCmd)
}

