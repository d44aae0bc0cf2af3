package main

import (
	"encoding/json"
	"fmt"
	"os"
	"syscall"
	"time"

	"ark-go/internal/app"
	"ark-go/internal/config"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates an ArkApp. The caller must defer app.Close().
// operation identifies the CLI command being run (e.g. "AppendEvent", "RunDaily").
func newApp(operation string) (*app.ArkApp, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewArkApp(cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

// readPassphrase prompts for a passphrase without echoing it to the terminal.
func readPassphrase(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return string(b), nil
}

var rootCmd = &cobra.Command{
	Use:   "ark",
	Short: "Tamper-evident event storage with reproducible restore",
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
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		hostID := uuid.New().String()
		cfg := config.NewConfig(hostID, defaults["base_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Host ID: %s\n", hostID)
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Host ID:   %s\n", cfg.HostID)
		fmt.Printf("Base Dir:  %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:   %s\n", cfg.LogDir)
		fmt.Printf("Store:     %s (%s)\n", cfg.Store.Name, cfg.Store.Type)
		fmt.Printf("Archive:   %s\n", cfg.Archive.Type)
		fmt.Printf("Seal:      %s\n", cfg.Seal.Type)
		return nil
	},
}

// seal command
var sealCmd = &cobra.Command{
	Use:   "seal",
	Short: "Manage the bundle sealing key",
}

var sealInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate the sealing key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		pass, err := readPassphrase("Passphrase for new sealing key: ")
		if err != nil {
			return err
		}
		confirm, err := readPassphrase("Confirm passphrase: ")
		if err != nil {
			return err
		}
		if pass != confirm {
			return fmt.Errorf("passphrases do not match")
		}

		a, err := newApp("SealSetup")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.SealSetup(pass); err != nil {
			return fmt.Errorf("generating sealing key: %w", err)
		}
		fmt.Println("Sealing key pair generated.")
		return nil
	},
}

// append command
var appendCmd = &cobra.Command{
	Use:   "append STREAM TYPE [PAYLOAD_JSON]",
	Short: "Append an event to the ledger",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		payload := map[string]any{}
		if len(args) == 3 {
			if err := json.Unmarshal([]byte(args[2]), &payload); err != nil {
				return fmt.Errorf("parsing payload: %w", err)
			}
		}

		a, err := newApp("AppendEvent")
		if err != nil {
			return err
		}
		defer a.Close()

		ev, err := a.AppendEvent(args[0], args[1], payload)
		if err != nil {
			return fmt.Errorf("appending event: %w", err)
		}

		fmt.Printf("Appended %s  %s\n", ev.EventID, ev.AuditHash[:12])
		return nil
	},
}

// snapshot command
var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Manage snapshots",
}

var snapshotCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a snapshot of the store",
	RunE: func(cmd *cobra.Command, args []string) error {
		label, _ := cmd.Flags().GetString("label")

		a, err := newApp("CreateSnapshot")
		if err != nil {
			return err
		}
		defer a.Close()

		snap, err := a.CreateSnapshot(label)
		if err != nil {
			return fmt.Errorf("creating snapshot: %w", err)
		}

		fmt.Printf("Snapshot %s  %d bytes  %s\n", snap.Name, snap.SizeBytes, snap.SHA256[:12])
		return nil
	},
}

var snapshotVerifyCmd = &cobra.Command{
	Use:   "verify PATH",
	Short: "Verify a snapshot artifact against its recorded hash",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("VerifySnapshot")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.VerifySnapshot(args[0]); err != nil {
			return fmt.Errorf("snapshot verification failed: %w", err)
		}
		fmt.Println("Snapshot OK.")
		return nil
	},
}

var snapshotListCmd = &cobra.Command{
	Use:   "list",
	Short: "List snapshots",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("ListSnapshots")
		if err != nil {
			return err
		}
		defer a.Close()

		snaps, err := a.ListSnapshots()
		if err != nil {
			return err
		}

		if len(snaps) == 0 {
			fmt.Println("No snapshots.")
			return nil
		}

		for _, s := range snaps {
			label := ""
			if s.Label != "" {
				label = "  [" + s.Label + "]"
			}
			fmt.Printf("%s  %s  %10d  %s%s\n",
				s.Timestamp.UTC().Format("2006-01-02 15:04:05"),
				s.SHA256[:12],
				s.SizeBytes,
				s.Name,
				label,
			)
		}
		return nil
	},
}

var snapshotCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove snapshots outside the retention policy",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("CleanupSnapshots")
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.CleanupSnapshots()
		if err != nil {
			return fmt.Errorf("cleanup failed: %w", err)
		}
		fmt.Printf("Removed %d snapshot(s)\n", n)
		return nil
	},
}

// bundle command
var bundleCmd = &cobra.Command{
	Use:   "bundle",
	Short: "Manage monthly bundles",
}

var bundleCreateCmd = &cobra.Command{
	Use:   "create [YYYY-MM]",
	Short: "Archive a month's history into a bundle",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		month := ""
		if len(args) > 0 {
			month = args[0]
		}

		a, err := newApp("CreateBundle")
		if err != nil {
			return err
		}
		defer a.Close()

		b, err := a.CreateBundle(month)
		if err != nil {
			return fmt.Errorf("creating bundle: %w", err)
		}

		sealed := ""
		if b.Sealed {
			sealed = "  sealed"
		}
		fmt.Printf("Bundle %s  %d entries  %s%s\n", b.Label, b.EntryCount, b.SHA256[:12], sealed)
		return nil
	},
}

var bundleVerifyCmd = &cobra.Command{
	Use:   "verify PATH",
	Short: "Verify a bundle's checksum and structure",
	RunE: func(cmd *cobra.Command, args []string) error {
		unlock, _ := cmd.Flags().GetBool("unlock")

		pass := ""
		if unlock {
			var err error
			pass, err = readPassphrase("Passphrase for sealing key: ")
			if err != nil {
				return err
			}
		}

		a, err := newApp("VerifyBundle")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.VerifyBundle(args[0], pass); err != nil {
			return fmt.Errorf("bundle verification failed: %w", err)
		}
		fmt.Println("Bundle OK.")
		return nil
	},
	Args: cobra.ExactArgs(1),
}

// manifest command
var manifestCmd = &cobra.Command{
	Use:   "manifest",
	Short: "Manage the daily manifest chain",
}

var manifestCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Commit today's manifest to the chain",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("CreateDailyManifest")
		if err != nil {
			return err
		}
		defer a.Close()

		m, err := a.CreateDailyManifest()
		if err != nil {
			return fmt.Errorf("creating manifest: %w", err)
		}

		fmt.Printf("Manifest %s  %d event(s)  %s\n", m.Date, m.EventCount, m.ManifestHash[:12])
		return nil
	},
}

var manifestVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify the manifest chain",
	RunE: func(cmd *cobra.Command, args []string) error {
		from, _ := cmd.Flags().GetString("from")

		a, err := newApp("VerifyChain")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.VerifyChain(from); err != nil {
			return fmt.Errorf("chain verification failed: %w", err)
		}
		fmt.Println("Chain OK.")
		return nil
	},
}

// restore command
var restoreCmd = &cobra.Command{
	Use:   "restore TIMESTAMP",
	Short: "Reconstruct store state as of the given RFC3339 timestamp",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target, err := time.Parse(time.RFC3339, args[0])
		if err != nil {
			return fmt.Errorf("parsing target timestamp: %w", err)
		}

		a, err := newApp("Restore")
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.Restore(cmd.Context(), target)
		if err != nil {
			if report != nil {
				fmt.Printf("Restore FAILED (session %s): %v\n", report.SessionID, err)
			}
			return fmt.Errorf("restore failed: %w", err)
		}

		fmt.Printf("Restored to %s\n", report.RestoredPath)
		fmt.Printf("Session:  %s\n", report.SessionID)
		fmt.Printf("Snapshot: %s\n", report.SnapshotUsed)
		fmt.Printf("Hash:     %s (verified)\n", report.FinalHash[:12])
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View operation history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp("GetHistory")
		if err != nil {
			return err
		}
		defer a.Close()

		ops, err := a.GetHistory(limit)
		if err != nil {
			return err
		}

		if len(ops) == 0 {
			fmt.Println("No operations recorded.")
			return nil
		}

		for _, op := range ops {
			duration := ""
			if op.FinishedAt != nil {
				d := op.FinishedAt.Sub(op.StartedAt)
				duration = d.Truncate(time.Millisecond).String()
			}
			fmt.Printf("#%d  %-20s  %s  %-10s  %s\n",
				op.ID,
				op.Operation,
				op.StartedAt.Format("2006-01-02 15:04:05"),
				op.Status,
				duration,
			)
		}
		return nil
	},
}

// daily command
var dailyCmd = &cobra.Command{
	Use:   "daily",
	Short: "Run the daily flow: snapshot the store, then commit the manifest",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("RunDaily")
		if err != nil {
			return err
		}
		defer a.Close()

		snap, m, err := a.RunDaily()
		if err != nil {
			return fmt.Errorf("daily flow failed: %w", err)
		}

		fmt.Printf("Snapshot %s  %s\n", snap.Name, snap.SHA256[:12])
		fmt.Printf("Manifest %s  %s\n", m.Date, m.ManifestHash[:12])
		return nil
	},
}

// monthly command
var monthlyCmd = &cobra.Command{
	Use:   "monthly [YYYY-MM]",
	Short: "Run the monthly flow: bundle the month's history",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		month := ""
		if len(args) > 0 {
			month = args[0]
		}

		a, err := newApp("RunMonthly")
		if err != nil {
			return err
		}
		defer a.Close()

		b, err := a.RunMonthly(month)
		if err != nil {
			return fmt.Errorf("monthly flow failed: %w", err)
		}

		fmt.Printf("Bundle %s  %d entries  %s\n", b.Label, b.EntryCount, b.SHA256[:12])
		return nil
	},
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// seal subcommands
	sealCmd.AddCommand(sealInitCmd)

	// snapshot subcommands
	snapshotCmd.AddCommand(snapshotCreateCmd)
	snapshotCmd.AddCommand(snapshotVerifyCmd)
	snapshotCmd.AddCommand(snapshotListCmd)
	snapshotCmd.AddCommand(snapshotCleanupCmd)
	snapshotCreateCmd.Flags().StringP("label", "l", "", "Optional snapshot label")

	// bundle subcommands
	bundleCmd.AddCommand(bundleCreateCmd)
	bundleCmd.AddCommand(bundleVerifyCmd)
	bundleVerifyCmd.Flags().BoolP("unlock", "u", false, "Unlock the sealing key to walk sealed contents")

	// manifest subcommands
	manifestCmd.AddCommand(manifestCreateCmd)
	manifestCmd.AddCommand(manifestVerifyCmd)
	manifestVerifyCmd.Flags().StringP("from", "f", "", "Verify from this date (YYYY-MM-DD) onward")

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(sealCmd)
	rootCmd.AddCommand(appendCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(bundleCmd)
	rootCmd.AddCommand(manifestCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of operations to show")
	rootCmd.AddCommand(dailyCmd)
	rootCmd.AddCommand(monthlyCmd)
}
