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
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"atomicgo.dev/keyboard"
	"atomicgo.dev/keyboard/keys"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"bundlecore.dev/bundler/config"
	"bundlecore.dev/bundler/internal/logging"
	"bundlecore.dev/bundler/internal/platform"
	"bundlecore.dev/bundler/session"
	"bundlecore.dev/bundler/transform"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start a live bundler dev session",
	Long: `Start a long-lived HTTP + WebSocket dev session exposing
GET /index.bundle, GET /index.delta, GET /index.ram, and a WS /hot
broadcast that tells connected clients when a new delta is ready.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var cfg config.ServeConfig
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

		verbose := viper.GetBool("verbose")
		logging.SetDebugEnabled(verbose)

		eng, g, allocator, cache, err := buildEngine(cfg.Config, transform.SourceMapInline)
		if err != nil {
			return fmt.Errorf("building transform engine: %w", err)
		}
		eng.SetEntryPoints(cfg.EntryPoints)

		if _, err := g.InitialTraverse(context.Background(), cfg.EntryPoints); err != nil {
			return fmt.Errorf("initial traverse: %w", err)
		}
		g.SynthesizeRequireCalls(cfg.EntryPoints)

		watcher, err := platform.NewFSNotifyFileWatcher()
		if err != nil {
			return fmt.Errorf("starting file watcher: %w", err)
		}

		srv := session.New(platform.NewOSFileSystem(), watcher, eng.Resolver(), g, allocator, cache, cfg.EntryPoints, logging.GetLogger())
		if err := srv.Watch(context.Background(), cfg.ProjectRoots); err != nil {
			return fmt.Errorf("starting watch: %w", err)
		}
		defer func() {
			if err := srv.Shutdown(); err != nil {
				pterm.Warning.Printf("session shutdown: %v\n", err)
			}
		}()

		addr := cfg.Addr
		if addr == "" {
			addr = ":8000"
		}
		httpServer := &http.Server{Addr: addr, Handler: srv.Handler()}
		go func() {
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				pterm.Error.Printf("http server: %v\n", err)
			}
		}()
		pterm.Success.Printf("Serving on http://localhost%s\n", addr)
		logging.Separator()

		quitChan := make(chan struct{})
		go func() {
			time.Sleep(100 * time.Millisecond)
			handleServeKeyboardInput(quitChan)
		}()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

		select {
		case <-quitChan:
		case <-sigChan:
		}

		pterm.Info.Println("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	},
}

// handleServeKeyboardInput is the serve command's keyboard-shortcut
// handler: 'q'/Ctrl+C quits, 'h' shows help.
func handleServeKeyboardInput(quitChan chan struct{}) {
	err := keyboard.Listen(func(key keys.Key) (stop bool, err error) {
		if key.Code == keys.CtrlC {
			close(quitChan)
			return true, nil
		}
		if key.Code != keys.RuneKey || len(key.Runes) == 0 {
			return false, nil
		}
		switch key.Runes[0] {
		case 'q', 'Q':
			close(quitChan)
			return true, nil
		case 'h', 'H', '?':
			pterm.Info.Println("Keyboard shortcuts: h - help, q / Ctrl+C - quit")
		}
		return false, nil
	})
	if err != nil {
		pterm.Warning.Printf("keyboard input disabled: %v\n", err)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", ":8000", "address to serve on")
	viper.BindPFlag("addr", serveCmd.Flags().Lookup("addr"))
}
