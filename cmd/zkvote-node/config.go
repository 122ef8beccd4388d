package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	defaultAPIHost   = "0.0.0.0"
	defaultAPIPort   = 8080
	defaultLogLevel  = "info"
	defaultLogOutput = "stdout"
	defaultDatadir   = ".zkvote-node" // prefixed with the user's home directory
	defaultVerifier  = verifierGroth16
	envPrefix        = "ZKVOTE"

	verifierGroth16 = "groth16"
	verifierCircom  = "circom"
	verifierStub    = "stub"
)

// Config contains the configuration of the node
type Config struct {
	Datadir  string
	Admin    string
	Log      LogConfig
	API      APIConfig
	Verifier VerifierConfig
	Web3     Web3Config
}

// LogConfig contains the logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Output string `mapstructure:"output"`
}

// APIConfig contains the HTTP API configuration
type APIConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// VerifierConfig contains the proof verifier configuration
type VerifierConfig struct {
	Type string `mapstructure:"type"`
	// VKey is the path of the verification key: gnark binary encoding for
	// groth16, snarkjs JSON for circom
	VKey string `mapstructure:"vkey"`
	// Accept is the result of the stub verifier
	Accept bool `mapstructure:"accept"`
}

// Web3Config contains the Ethereum configuration
type Web3Config struct {
	// RPC is the endpoint used as clock source. The system clock is used
	// when empty.
	RPC string `mapstructure:"rpc"`
}

// loadConfig loads the configuration from the given arguments, the
// environment variables and the defaults
func loadConfig(args []string) (*Config, error) {
	v := viper.New()

	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	datadir := filepath.Join(home, defaultDatadir)

	fs := flag.NewFlagSet("zkvote-node", flag.ContinueOnError)
	fs.StringP("datadir", "d", datadir, "storage data directory")
	fs.String("admin", "", "admin address, the only one allowed to create and close sessions (required)")
	fs.StringP("log.level", "l", defaultLogLevel, "log level (debug, info, warn, error)")
	fs.StringP("log.output", "o", defaultLogOutput, "log output (stdout, stderr or filepath)")
	fs.StringP("api.host", "a", defaultAPIHost, "API host")
	fs.IntP("api.port", "p", defaultAPIPort, "API port")
	fs.String("verifier.type", defaultVerifier, "proof verifier (groth16, circom, stub)")
	fs.String("verifier.vkey", "", "verification key path (groth16: gnark binary, circom: snarkjs json)")
	fs.Bool("verifier.accept", true, "result of the stub verifier")
	fs.StringP("web3.rpc", "w", "", "web3 rpc endpoint used as clock source (optional)")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: zkvote-node [flags]\n\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEvery flag can be set with an environment variable with the\n"+
			"%s_ prefix, where dots are replaced by underscores, e.g. %s_API_PORT\n",
			envPrefix, envPrefix)
	}
	fs.SortFlags = false
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("error binding flags: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return cfg, nil
}

// validateConfig validates the loaded configuration
func validateConfig(cfg *Config) error {
	if !common.IsHexAddress(cfg.Admin) {
		return fmt.Errorf("invalid admin address %q (use --admin flag or %s_ADMIN"+
			" environment variable)", cfg.Admin, envPrefix)
	}
	if common.HexToAddress(cfg.Admin) == (common.Address{}) {
		return fmt.Errorf("admin address can not be the zero address")
	}
	if cfg.API.Port < 1 || cfg.API.Port > 65535 {
		return fmt.Errorf("invalid API port %d", cfg.API.Port)
	}
	switch cfg.Verifier.Type {
	case verifierGroth16, verifierCircom:
		if cfg.Verifier.VKey == "" {
			return fmt.Errorf("circuit verification key path is required for the %s verifier",
				cfg.Verifier.Type)
		}
	case verifierStub:
	default:
		return fmt.Errorf("invalid verifier type %q, available: %s, %s, %s",
			cfg.Verifier.Type, verifierGroth16, verifierCircom, verifierStub)
	}
	if cfg.Datadir == "" {
		return fmt.Errorf("datadir is required")
	}
	return nil
}
