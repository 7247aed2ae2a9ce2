package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/TheMichaelB/syncvault/internal/diff"
	"github.com/TheMichaelB/syncvault/internal/models"
	"github.com/TheMichaelB/syncvault/internal/scan"
)

var diffCmd = &cobra.Command{
	Use:   "diff <local-dir> <server-listing.json>",
	Short: "Classify differences between a local directory and a server listing",
	Long: `Diff scans the local directory, loads the server file listing and
reports paths that exist on one side only, were modified, or conflict
(content differs while modification times are equal).

Nothing is transferred or resolved.`,
	Example: `  syncvault diff ./notes server.json
  syncvault diff ./notes server.json --watch --history`,
	Args: cobra.ExactArgs(2),
	RunE: runDiff,
}

var (
	diffHistory bool
	diffWatch   bool
	diffWrite   string
)

func init() {
	rootCmd.AddCommand(diffCmd)

	diffCmd.Flags().BoolVar(&diffHistory, "history", false,
		"Print the snapshot history after each capture")
	diffCmd.Flags().BoolVarP(&diffWatch, "watch", "w", false,
		"Re-run the comparison whenever the local directory changes")
	diffCmd.Flags().StringVar(&diffWrite, "write-listing", "",
		"Also write the local scan as a listing file")
}

func runDiff(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	localDir, listingPath := args[0], args[1]

	scanner, err := scan.NewScanner(localDir, cfg.Diff, logger)
	if err != nil {
		return err
	}

	server, err := scan.LoadListing(listingPath)
	if err != nil {
		return err
	}

	engine := diff.NewEngine(
		diff.WithHistorySize(cfg.Diff.HistorySize),
		diff.WithLogger(logger),
	)

	local, err := scanner.Scan(ctx)
	if err != nil {
		return err
	}
	if diffWrite != "" {
		if err := scan.WriteListing(diffWrite, local); err != nil {
			return err
		}
	}

	report(engine, engine.CaptureSnapshot(local, server))

	if !diffWatch {
		return nil
	}

	if !jsonOutput {
		printInfo("Watching %s (Ctrl-C to stop)", scanner.BaseDir())
	}
	return scanner.Watch(ctx, scan.DefaultDebounce, func(local map[string]models.FileFingerprint) {
		report(engine, engine.CaptureSnapshot(local, server))
	})
}

func report(engine *diff.Engine, snap *models.SyncSnapshot) {
	if jsonOutput {
		out := map[string]interface{}{"snapshot": snapshotJSON(snap)}
		if diffHistory {
			var history []map[string]interface{}
			for _, s := range engine.AllSnapshots() {
				history = append(history, snapshotJSON(s))
			}
			out["history"] = history
		}
		printJSON(out)
		return
	}

	printDifferences(snap)
	if diffHistory {
		printHistory(engine.AllSnapshots())
	}
}

func snapshotJSON(s *models.SyncSnapshot) map[string]interface{} {
	return map[string]interface{}{
		"timestamp":    s.Timestamp,
		"local_files":  len(s.LocalFiles),
		"server_files": len(s.ServerFiles),
		"differences":  s.Differences,
	}
}

func printDifferences(s *models.SyncSnapshot) {
	fmt.Printf("\n%s  local %d, server %d\n",
		s.Timestamp.Format(time.RFC3339), len(s.LocalFiles), len(s.ServerFiles))

	if s.Differences.IsEmpty() {
		printSuccess("In sync")
		return
	}

	groups := []struct {
		label string
		mark  string
		c     *color.Color
		paths []string
	}{
		{"Local only", "+", color.New(color.FgGreen), s.Differences.LocalOnly},
		{"Server only", "-", color.New(color.FgBlue), s.Differences.ServerOnly},
		{"Modified", "~", color.New(color.FgYellow), s.Differences.Modified},
		{"Conflicts", "!", color.New(color.FgRed, color.Bold), s.Differences.Conflicts},
	}

	for _, g := range groups {
		if len(g.paths) == 0 {
			continue
		}
		fmt.Printf("%s (%d):\n", g.label, len(g.paths))
		for _, p := range g.paths {
			g.c.Printf("  %s %s\n", g.mark, p)
		}
	}

	if s.HasConflicts() {
		printWarn("%d conflicting path(s): content differs with identical modification times", len(s.Differences.Conflicts))
	}
}

func printHistory(history []*models.SyncSnapshot) {
	fmt.Printf("\nHistory (%d):\n", len(history))
	for i, s := range history {
		d := s.Differences
		fmt.Printf("  %2d  %s  +%d -%d ~%d !%d\n", i+1, s.Timestamp.Format(time.RFC3339),
			len(d.LocalOnly), len(d.ServerOnly), len(d.Modified), len(d.Conflicts))
	}
}
