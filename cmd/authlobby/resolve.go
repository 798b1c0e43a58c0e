// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"image/png"
	"os"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/authlobby/internal/banner"
	"github.com/holomush/authlobby/internal/host"
)

// NewResolveCmd creates the resolve subcommand.
func NewResolveCmd() *cobra.Command {
	var (
		lang  string
		image string
		out   string
	)

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Show which banner file a viewer would see",
		Long: `Resolve a banner for a language the way the lobby does, walking the
fallback chain to the base language. With --out, the banner is also
rasterized at the configured surface size and written as a PNG.`,
		Example: `  authlobby resolve --lang ca_ES --image LOGIN_WRONG_PASSWORD
  authlobby resolve --lang pt_BR --image REGISTER --out preview.png`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			img, err := banner.ParseImage(strings.ToUpper(image))
			if err != nil {
				return err
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			store, catalog, err := openAssets(cfg)
			if err != nil {
				return err
			}

			asset, err := banner.NewResolver(store, catalog).Resolve(lang, img)
			if err != nil {
				return err
			}
			cmd.Printf("%s\n", asset.Key)
			cmd.Printf("chain: %s\n", strings.Join(catalog.Chain(lang), " -> "))
			if asset.FellBack() {
				cmd.Printf("fell back from %s to %s\n", asset.Requested, asset.Language)
			}

			if out == "" {
				return nil
			}
			data, err := store.Read(asset.Key)
			if err != nil {
				return err
			}
			lc := cfg.Lobby()
			surface := banner.NewSurface(host.SurfaceID("preview"), lc.Placement, lc.PixelsPerBlock)
			frame, err := surface.Rasterize(data)
			if err != nil {
				return err
			}
			f, err := os.Create(out) //nolint:gosec // path comes from the operator
			if err != nil {
				return oops.With("path", out).Wrap(err)
			}
			if err := png.Encode(f, frame.Image); err != nil {
				_ = f.Close()
				return oops.With("path", out).Wrapf(err, "write preview")
			}
			if err := f.Close(); err != nil {
				return oops.With("path", out).Wrap(err)
			}
			cmd.Printf("wrote %dx%d preview to %s\n", frame.Image.Bounds().Dx(), frame.Image.Bounds().Dy(), out)
			return nil
		},
	}

	cmd.Flags().StringVar(&lang, "lang", "", "viewer language code (default: base language)")
	cmd.Flags().StringVar(&image, "image", "", "banner image, e.g. LOGIN or CONFIRM_PASSWORD")
	cmd.Flags().StringVar(&out, "out", "", "write the rasterized banner to this PNG file")
	_ = cmd.MarkFlagRequired("image")
	return cmd
}
