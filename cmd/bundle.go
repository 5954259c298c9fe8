/*
Copyright © 2025 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"bundlecore.dev/bundler/config"
	"bundlecore.dev/bundler/serializer"
	"bundlecore.dev/bundler/transform"
)

// bundleCmd drives one shot of §10.1: load config, run InitialTraverse
// from the given entry points, serialize to the requested format, and
// write the result to --out (stdout if empty).
var bundleCmd = &cobra.Command{
	Use:   "bundle [entry points...]",
	Short: "Build a bundle from one or more entry points",
	Long: `Resolves and transforms every module reachable from the given
entry points and serializes the result to the requested format
(plain, indexed-ram, or file-ram).`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var cfg config.BundleConfig
		root, err := firstProjectRoot(viper.GetStringSlice("projectRoots"))
		if err != nil {
			return fmt.Errorf("resolving project root: %w", err)
		}
		if err := config.Load(viper.GetViper(), viper.GetString("configFile"), root, &cfg); err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if len(cfg.ProjectRoots) == 0 {
			cfg.ProjectRoots = []string{root}
		}
		cfg.EntryPoints = args
		if err := cfg.Validate(); err != nil {
			return err
		}

		sourcemap := transform.SourceMapExternal
		if cfg.Dev {
			sourcemap = transform.SourceMapInline
		}
		eng, g, _, _, err := buildEngine(cfg.Config, sourcemap)
		if err != nil {
			return fmt.Errorf("building transform engine: %w", err)
		}
		eng.SetEntryPoints(cfg.EntryPoints)

		pterm.Info.Println("Traversing entry points...")
		if _, err := g.InitialTraverse(context.Background(), cfg.EntryPoints); err != nil {
			return fmt.Errorf("initial traverse: %w", err)
		}
		g.SynthesizeRequireCalls(cfg.EntryPoints)

		format := cfg.Format
		if format == "" {
			format = "plain"
		}
		var output []byte
		switch format {
		case "plain":
			if cfg.SourceMapURL != "" {
				output = []byte(serializer.PlainWithSourceMapURL(g, cfg.SourceMapURL))
			} else {
				output = []byte(serializer.Plain(g))
			}
		case "indexed-ram":
			output = serializer.IndexedRAM(g)
		case "file-ram":
			files := serializer.FileRAM(g)
			combined, err := writeFileRAM(files, cfg.Out)
			if err != nil {
				return err
			}
			if combined {
				return nil
			}
		default:
			return fmt.Errorf("unknown format %q: must be plain, indexed-ram, or file-ram", format)
		}

		if format != "file-ram" {
			if cfg.Out == "" {
				_, err = os.Stdout.Write(output)
				return err
			}
			if err := os.WriteFile(cfg.Out, output, 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", cfg.Out, err)
			}
			pterm.Success.Printf("Wrote %s (%d bytes)\n", cfg.Out, len(output))
		}
		return nil
	},
}

// writeFileRAM writes a File RAM bundle's path→bytes map under outDir,
// since that format is inherently multi-file (§6). Returns true once
// every file has been written, so the caller can skip the single-output
// write path used by the other formats.
func writeFileRAM(files map[string][]byte, outDir string) (bool, error) {
	if outDir == "" {
		return false, fmt.Errorf("--out is required for the file-ram format")
	}
	for name, content := range files {
		path := filepath.Join(outDir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return false, fmt.Errorf("creating directory for %s: %w", path, err)
		}
		if err := os.WriteFile(path, content, 0o644); err != nil {
			return false, fmt.Errorf("writing %s: %w", path, err)
		}
	}
	pterm.Success.Printf("Wrote %d files to %s\n", len(files), outDir)
	return true, nil
}

func init() {
	rootCmd.AddCommand(bundleCmd)

	bundleCmd.Flags().String("format", "plain", "output format: plain, indexed-ram, or file-ram")
	bundleCmd.Flags().String("out", "", "output path (stdout for plain/indexed-ram if omitted; required for file-ram)")
	bundleCmd.Flags().Bool("dev", true, "development build (inline per-module source maps instead of external)")
	bundleCmd.Flags().String("source-map-url", "", "sourceMappingURL comment to append to a plain bundle")
	viper.BindPFlag("format", bundleCmd.Flags().Lookup("format"))
	viper.BindPFlag("out", bundleCmd.Flags().Lookup("out"))
	viper.BindPFlag("dev", bundleCmd.Flags().Lookup("dev"))
	viper.BindPFlag("sourceMapUrl", bundleCmd.Flags().Lookup("source-map-url"))
}
