// This file contains the bump-version command.
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"envdeploy/internal/bump"
)

var (
	bumpRoot    string
	bumpPackage string
	bumpVersion string
	bumpDryRun  bool
)

var bumpCmd = &cobra.Command{
	Use:   "bump-version",
	Short: "Rewrite a package's version strings across a project tree",
	Long: `Rewrites every versioned reference to a package (reference paths in
project files, version attributes in packages.config) to the given
version. Files whose content would not change are left untouched.

Example:
  envdeploy bump-version --root . --package Newtonsoft.Json --version 13.0.3`,
	RunE: runBump,
}

func init() {
	bumpCmd.Flags().StringVar(&bumpRoot, "root", ".", "Tree to rewrite")
	bumpCmd.Flags().StringVar(&bumpPackage, "package", "", "Package identifier (required)")
	bumpCmd.Flags().StringVar(&bumpVersion, "version", "", "New dotted version (required)")
	bumpCmd.Flags().BoolVar(&bumpDryRun, "dry-run", false, "Report intended changes without writing")
	bumpCmd.MarkFlagRequired("package")
	bumpCmd.MarkFlagRequired("version")

	rootCmd.AddCommand(bumpCmd)
}

func runBump(cmd *cobra.Command, args []string) error {
	res, err := bump.Run(bump.Options{
		Root:    bumpRoot,
		Package: bumpPackage,
		Version: bumpVersion,
		DryRun:  bumpDryRun,
	}, logger)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	verb := "rewrote"
	if res.DryRun {
		verb = "would rewrite"
	}
	fmt.Fprintf(out, "%s %d occurrence(s) in %d file(s), %d file(s) scanned\n",
		verb, res.Total, len(res.Changes), res.FilesScanned)
	for _, ch := range res.Changes {
		fmt.Fprintf(out, "  %s (%d)\n", ch.Path, ch.Replacements)
	}
	return nil
}
