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
	"os"
	"path/filepath"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"bundlecore.dev/bundler/config"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "bundler",
	Short: "A JavaScript module bundler core",
	Long: `Resolves, transforms, and serializes a JavaScript/TypeScript module
graph into a bundle, either as a one-shot build ("bundle") or a live dev
session ("serve").`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main(). It only needs to happen
// once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveProjectRoots expands every --project-root flag value to an
// absolute path, falling back to the current working directory when none
// were given.
func resolveProjectRoots(flagRoots []string) ([]string, error) {
	if len(flagRoots) == 0 {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		return []string{cwd}, nil
	}
	roots := make([]string, 0, len(flagRoots))
	for _, r := range flagRoots {
		abs, err := config.ExpandPath(r)
		if err != nil {
			return nil, err
		}
		roots = append(roots, abs)
	}
	return roots, nil
}

// firstProjectRoot is a small helper shared by bundle/serve: config.Load
// needs a single directory to search for bundler.yaml before the full
// project-root list (which the config file itself may extend) is known.
func firstProjectRoot(flagRoots []string) (string, error) {
	roots, err := resolveProjectRoots(flagRoots)
	if err != nil {
		return "", err
	}
	return filepath.Clean(roots[0]), nil
}

func initConfig() {
	if viper.GetBool("verbose") {
		pterm.EnableDebugMessages()
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: bundler.yaml in the project root)")
	rootCmd.PersistentFlags().StringSlice("project-root", nil, "project search root (repeatable)")
	rootCmd.PersistentFlags().String("platform", "", "platform query value (e.g. ios, android, web)")
	rootCmd.PersistentFlags().Uint("max-workers", 0, "transform worker pool size (0: use config default)")
	rootCmd.PersistentFlags().Bool("reset-cache", false, "discard the persistent transform cache on start")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose logging output")

	viper.BindPFlag("configFile", rootCmd.PersistentFlags().Lookup("config"))
	viper.BindPFlag("projectRoots", rootCmd.PersistentFlags().Lookup("project-root"))
	viper.BindPFlag("platform", rootCmd.PersistentFlags().Lookup("platform"))
	viper.BindPFlag("maxWorkers", rootCmd.PersistentFlags().Lookup("max-workers"))
	viper.BindPFlag("resetCache", rootCmd.PersistentFlags().Lookup("reset-cache"))
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}
