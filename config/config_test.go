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

package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bundlecore.dev/bundler/config"
)

func TestValidateRejectsEmptyProjectRoots(t *testing.T) {
	c := config.Defaults()
	err := c.Validate()
	assert.ErrorContains(t, err, "projectRoots")
}

func TestValidateRejectsBadBlacklistRE(t *testing.T) {
	c := config.Defaults()
	c.ProjectRoots = []string{"/tmp/proj"}
	c.BlacklistRE = "(unterminated"
	err := c.Validate()
	assert.ErrorContains(t, err, "blacklistRE")
}

func TestValidateAcceptsDefaults(t *testing.T) {
	c := config.Defaults()
	c.ProjectRoots = []string{"/tmp/proj"}
	assert.NoError(t, c.Validate())
}

func TestCloneDeepCopiesSlices(t *testing.T) {
	c := config.Defaults()
	c.ProjectRoots = []string{"/tmp/proj"}

	clone := c.Clone()
	clone.ProjectRoots[0] = "/tmp/other"
	clone.AssetExts = append(clone.AssetExts, "bmp")

	assert.Equal(t, "/tmp/proj", c.ProjectRoots[0])
	assert.NotContains(t, c.AssetExts, "bmp")
}

func TestAssetExtSetAndPathMappings(t *testing.T) {
	c := config.Defaults()
	c.AssetExts = []string{"png", "svg"}
	set := c.AssetExtSet()
	assert.Len(t, set, 2)
	_, ok := set["png"]
	assert.True(t, ok)

	c.PathMappings = []config.PathMapping{{Pattern: "src/", Template: "src/ios/"}}
	mapped := c.ResolverPathMappings()
	require.Len(t, mapped, 1)
	assert.Equal(t, "src/", mapped[0].Prefix)
	assert.Equal(t, "src/ios/", mapped[0].Replacement)
}

func TestLoadLayersConfigFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	yaml := "projectRoots:\n  - " + dir + "\nmaxWorkers: 7\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bundler.yaml"), []byte(yaml), 0o644))

	var cfg config.BundleConfig
	v := viper.New()
	require.NoError(t, config.Load(v, "", dir, &cfg))

	assert.Equal(t, []string{dir}, cfg.ProjectRoots)
	assert.EqualValues(t, 7, cfg.MaxWorkers)
	// defaults not overridden by the file survive the merge.
	assert.Equal(t, "esbuild-v1", cfg.TransformerKey)
}

func TestLoadToleratesMissingConfigFile(t *testing.T) {
	dir := t.TempDir()
	var cfg config.ServeConfig
	v := viper.New()
	require.NoError(t, config.Load(v, "", dir, &cfg))
	assert.EqualValues(t, 4, cfg.MaxWorkers)
}
