// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/holomush/authlobby/internal/banner"
	"github.com/holomush/authlobby/internal/language"
)

// NewCheckCmd creates the check subcommand.
func NewCheckCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify banner assets and the language catalog",
		Long: `Check that the language catalog is valid and that the base language
has every banner. Exits non-zero when anything is missing, which is the
same condition that stops serve from starting.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			store, catalog, err := openAssets(cfg)
			if err != nil {
				return err
			}
			resolver := banner.NewResolver(store, catalog)
			if err := resolver.Verify(); err != nil {
				return err
			}

			cmd.Printf("ok: %d languages, base language %s has all %d banners\n",
				len(catalog.Codes()), catalog.Base(), len(banner.Images()))
			if verbose {
				return printCoverage(cmd.OutOrStdout(), resolver, catalog)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print which language serves each banner")
	return cmd
}

// printCoverage writes a language by image table. Each cell names the
// language whose file is served, or "=" when the language has its own.
func printCoverage(w io.Writer, resolver *banner.Resolver, catalog *language.Catalog) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprint(tw, "LANGUAGE")
	for _, img := range banner.Images() {
		fmt.Fprintf(tw, "\t%s", img)
	}
	fmt.Fprintln(tw)

	for _, code := range catalog.Codes() {
		fmt.Fprint(tw, code)
		for _, img := range banner.Images() {
			asset, err := resolver.Resolve(code, img)
			if err != nil {
				return err
			}
			cell := "="
			if asset.FellBack() {
				cell = asset.Language
			}
			fmt.Fprintf(tw, "\t%s", cell)
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}
