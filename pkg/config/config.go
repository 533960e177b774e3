/*
Copyright 2016 The GoStor Authors All rights reserved.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/gostor/gotgt-async-core/pkg/homedir"
)

const (
	// ConfigFileName is the name of config file
	ConfigFileName = "config.json"
)

var (
	configDir = os.Getenv("GOSTOR_CONFIG")
)

// Device configures one exported device. Backend is a URI of the form
// "subtype/path[/opt=value[,opt=value]*]", e.g. "file//var/lib/img" or
// "ceph-rbd/rbd/image0".
type Device struct {
	Backend   string `json:"backend" mapstructure:"backend"`
	BlockSize uint32 `json:"block_size,omitempty" mapstructure:"block_size"`
	Workers   int    `json:"workers,omitempty" mapstructure:"workers"`
}

type Config struct {
	Storage string            `json:"storage" mapstructure:"storage"`
	Devices map[string]Device `json:"devices" mapstructure:"devices"`

	LogFile       string `json:"log_file,omitempty" mapstructure:"log_file"`
	LogMaxSizeMB  int    `json:"log_max_size_mb,omitempty" mapstructure:"log_max_size_mb"`
	LogMaxBackups int    `json:"log_max_backups,omitempty" mapstructure:"log_max_backups"`
}

func init() {
	if configDir == "" {
		configDir = filepath.Join(homedir.Get(), ".gotgt")
	}
}

// ConfigDir returns the directory the configuration file is stored in
func ConfigDir() string {
	return configDir
}

// Load reads the configuration file in the given directory. A missing
// file yields the defaults; GOTGT_-prefixed environment variables
// override file values either way.
func Load(dir string) (*Config, error) {
	if dir == "" {
		dir = ConfigDir()
	}

	v := viper.New()
	v.SetConfigName(strings.TrimSuffix(ConfigFileName, filepath.Ext(ConfigFileName)))
	v.SetConfigType("json")
	v.AddConfigPath(dir)
	v.SetEnvPrefix("gotgt")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetDefault("storage", "file")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("%s - %v", filepath.Join(dir, ConfigFileName), err)
		}
	}

	config := &Config{Devices: make(map[string]Device)}
	if err := v.Unmarshal(config); err != nil {
		return nil, err
	}
	return config, nil
}

// Save encodes and writes out the configuration.
func (config *Config) Save(filename string) error {
	if filename == "" {
		return fmt.Errorf("can't save config with empty filename")
	}

	if err := os.MkdirAll(filepath.Dir(filename), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(filename, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()
	data, err := json.MarshalIndent(config, "", "\t")
	if err != nil {
		return err
	}
	_, err = f.Write(data)
	return err
}

// ParseBackendURI splits a backend URI into its registered subtype and
// the backend-specific remainder. "file//var/lib/img" parses to
// ("file", "/var/lib/img"); the remainder's own structure (a path, a
// pool/image pair, trailing opt=value segments) is the backend's to
// interpret, usually via ParseOpts.
func ParseBackendURI(uri string) (subtype, rest string, err error) {
	parts := strings.SplitN(uri, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid backend URI %q, expected subtype/path", uri)
	}
	return parts[0], parts[1], nil
}

// ParseOpts splits a backend remainder into its path and any trailing
// "/opt=value[,opt=value]*" segment. Only the final "/"-separated
// segment is eligible to carry options, so paths containing "/" pass
// through untouched.
func ParseOpts(rest string) (path string, opts map[string]string) {
	opts = map[string]string{}
	idx := strings.LastIndex(rest, "/")
	if idx < 0 || !strings.Contains(rest[idx+1:], "=") {
		return rest, opts
	}
	path = rest[:idx]
	for _, kv := range strings.Split(rest[idx+1:], ",") {
		pair := strings.SplitN(kv, "=", 2)
		if len(pair) == 2 {
			opts[pair[0]] = pair[1]
		}
	}
	return path, opts
}
