// This file contains the scan-duplicates command.
package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"envdeploy/internal/dupscan"
)

var scanRoots []string

var scanCmd = &cobra.Command{
	Use:   "scan-duplicates",
	Short: "Report config keys defined more than once across file shares",
	Long: `Walks the given share roots, collects the config keys declared in
every *.config file and reports keys defined more than once within a
file and keys duplicated across files.

Roots are scanned concurrently; a share that does not answer within
the per-root timeout is reported as unreachable and skipped.

Example:
  envdeploy scan-duplicates --root //fileserver/configs --root D:\shares\legacy`,
	RunE: runScanDuplicates,
}

func init() {
	scanCmd.Flags().StringArrayVar(&scanRoots, "root", nil, "Share root to scan (repeatable, required)")
	scanCmd.MarkFlagRequired("root")

	rootCmd.AddCommand(scanCmd)
}

func runScanDuplicates(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	report, err := dupscan.Scan(ctx, dupscan.Options{
		Roots:       scanRoots,
		KeyPattern:  cfg.Scan.KeyPattern,
		Workers:     cfg.Scan.Workers,
		RootTimeout: cfg.GetRootTimeout(),
	}, logger)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "scanned %d file(s)\n", report.FilesScanned)
	for _, root := range report.Unreachable {
		fmt.Fprintln(out, warnStyle.Render("unreachable: "+root))
	}

	within := report.WithinFile()
	if len(within) == 0 && len(report.AcrossFiles()) == 0 {
		fmt.Fprintln(out, "no duplicated keys")
		return nil
	}
	for key, files := range within {
		fmt.Fprintf(out, "key %q defined more than once in:\n", key)
		for _, f := range files {
			fmt.Fprintf(out, "  %s\n", f)
		}
	}
	for _, key := range report.AcrossFiles() {
		fmt.Fprintf(out, "key %q defined in multiple files:\n", key)
		for _, occ := range report.Keys[key] {
			fmt.Fprintf(out, "  %s (%d)\n", occ.File, occ.Count)
		}
	}
	return nil
}
