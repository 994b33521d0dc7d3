/*
 Licensed under the Apache License, Version 2.0 (the "License");
 you may not use this file except in compliance with the License.
 You may obtain a copy of the License at

     https://www.apache.org/licenses/LICENSE-2.0

 Unless required by applicable law or agreed to in writing, software
 distributed under the License is distributed on an "AS IS" BASIS,
 WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 See the License for the specific language governing permissions and
 limitations under the License.
*/

package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v2"

	"jinr.ru/greenlab/go-rc6d/pkg/layers"
	"jinr.ru/greenlab/go-rc6d/pkg/log"
)

type ReceiverConfig struct {
	// Name identifies the receiver in the state database
	Name       string `yaml:"name"`
	Address    string `yaml:"address"`
	Port       int    `yaml:"port"`
	BufferSize int    `yaml:"buffer_size"`
}

type TransmitterConfig struct {
	PeerAddress string `yaml:"peer_address"`
	PeerPort    int    `yaml:"peer_port"`
	// Rate is the number of frames per second
	Rate float64 `yaml:"rate"`
}

type ApiConfig struct {
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
}

type Config struct {
	Receiver    *ReceiverConfig    `yaml:"receiver"`
	Transmitter *TransmitterConfig `yaml:"transmitter"`
	Api         *ApiConfig         `yaml:"api"`
	DBPath      string             `yaml:"db_path"`
	LogLevel    string             `yaml:"log_level"`
	filepath    string
}

func (c *Config) Filepath() string {
	return c.filepath
}

func (c *Config) SetFilepath(path string) {
	c.filepath = path
}

func (c *Config) Persist(overwrite bool) error {
	if _, err := os.Stat(c.filepath); err == nil && !overwrite {
		return ErrConfigFileExists{Path: c.filepath}
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	dir := filepath.Dir(c.filepath)
	err = os.MkdirAll(dir, 0755)
	if err != nil {
		return err
	}

	return os.WriteFile(c.filepath, data, 0644)
}

// Load reads the config file over the current values.
// Sections missing from the file keep their current values.
func (c *Config) Load() error {
	data, err := os.ReadFile(c.filepath)
	if err != nil {
		log.Debug("Config file is not loaded: %s", err)
		return err
	}
	return yaml.Unmarshal(data, c)
}

func (c *Config) Validate() error {
	if c.Receiver == nil || c.Transmitter == nil || c.Api == nil {
		return ErrInvalidConfig{What: "receiver, transmitter and api sections are required"}
	}
	if c.Receiver.Port < 0 || c.Receiver.Port > 65535 {
		return ErrInvalidConfig{What: "receiver port must be in range 0..65535"}
	}
	if c.Receiver.BufferSize <= layers.RCFrameSize {
		return ErrInvalidConfig{What: fmt.Sprintf("receiver buffer size must be larger than %d", layers.RCFrameSize)}
	}
	if c.Transmitter.PeerPort <= 0 || c.Transmitter.PeerPort > 65535 {
		return ErrInvalidConfig{What: "transmitter peer port must be in range 1..65535"}
	}
	if c.Transmitter.Rate <= 0 {
		return ErrInvalidConfig{What: "transmitter rate must be positive"}
	}
	if c.Api.Port < 0 || c.Api.Port > 65535 {
		return ErrInvalidConfig{What: "api port must be in range 0..65535"}
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return ErrInvalidConfig{What: err.Error()}
	}
	return nil
}

func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = ""
	}
	return filepath.Join(home, ConfigDir, ConfigFile)
}

func DefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = ""
	}
	return filepath.Join(home, ConfigDir, DBFile)
}

func NewDefaultConfig() *Config {
	return &Config{
		Receiver: &ReceiverConfig{
			Name:       DefaultReceiverName,
			Address:    DefaultReceiverAddress,
			Port:       DefaultReceiverPort,
			BufferSize: DefaultBufferSize,
		},
		Transmitter: &TransmitterConfig{
			PeerAddress: DefaultTransmitterPeer,
			PeerPort:    DefaultTransmitterPort,
			Rate:        DefaultTransmitterRate,
		},
		Api: &ApiConfig{
			Address: DefaultApiAddress,
			Port:    DefaultApiPort,
		},
		DBPath:   DefaultDBPath(),
		LogLevel: DefaultLogLevel,
		filepath: DefaultConfigPath(),
	}
}
