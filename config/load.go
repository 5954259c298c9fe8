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

package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// ExpandPath expands a leading ~ and makes path absolute.
func ExpandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		if path == "~" {
			path = home
		} else if strings.HasPrefix(path, "~/") {
			path = filepath.Join(home, path[2:])
		}
	}
	return filepath.Abs(path)
}

// Load layers Defaults() under bundler.yaml (if found, via the already
// flag-bound v) under whatever flags the caller bound into v, and
// unmarshals the result into dst (either *BundleConfig or *ServeConfig).
// cfgFile, if non-empty, names an explicit config file; otherwise
// bundler.yaml is searched for in projectRoot.
func Load(v *viper.Viper, cfgFile, projectRoot string, dst any) error {
	for key, val := range structToMap(Defaults()) {
		v.SetDefault(key, val)
	}

	v.SetConfigType("yaml")
	v.SetConfigName("bundler")
	if cfgFile != "" {
		abs, err := ExpandPath(cfgFile)
		if err != nil {
			return err
		}
		v.SetConfigFile(abs)
	} else {
		v.AddConfigPath(projectRoot)
	}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
	}
	v.AutomaticEnv()

	return v.Unmarshal(dst)
}

// structToMap flattens Config's mapstructure tags into a key→value map
// suitable for viper.SetDefault, since viper has no "default struct"
// primitive of its own.
func structToMap(c Config) map[string]any {
	return map[string]any{
		"assetExts":      c.AssetExts,
		"sourceExts":     c.SourceExts,
		"maxWorkers":     c.MaxWorkers,
		"cacheVersion":   c.CacheVersion,
		"transformerKey": c.TransformerKey,
		"cacheMaxBytes":  c.CacheMaxBytes,
	}
}
