package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/vocdoni/arbo/memdb"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/metadb"

	"github.com/tocipoco/DAO-Vote/crypto/ethereum"
	"github.com/tocipoco/DAO-Vote/storage"
)

const (
	envPrefix = "DAOVOTE"

	dbTypeMemory = "memory"
)

// Config is the daovote configuration, read from flags and DAOVOTE_*
// environment variables (DAOVOTE_API_PORT for api.port).
type Config struct {
	Datadir string      `mapstructure:"datadir"`
	DBType  string      `mapstructure:"dbtype"`
	Log     LogConfig   `mapstructure:"log"`
	API     APIConfig   `mapstructure:"api"`
	Chain   ChainConfig `mapstructure:"chain"`
	Web3    Web3Config  `mapstructure:"web3"`
	// PrivateKey is the wallet of the dashboard session. A random wallet is
	// generated when empty.
	PrivateKey string `mapstructure:"privkey"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Output string `mapstructure:"output"`
}

type APIConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// ChainConfig describes the in process ledger.
type ChainConfig struct {
	ID           uint64 `mapstructure:"id"`
	Contract     string `mapstructure:"contract"`
	MaxPlaintext uint64 `mapstructure:"maxplaintext"`
}

// Web3Config describes an optional EVM deployment of the DAO contract.
type Web3Config struct {
	ChainID    uint64   `mapstructure:"chainid"`
	RPC        []string `mapstructure:"rpc"`
	Contract   string   `mapstructure:"contract"`
	StartBlock uint64   `mapstructure:"startblock"`
	// Gateway is the URL of the API serving the co-processor gateway of the
	// web3 chain. The local co-processor is used when empty.
	Gateway string `mapstructure:"gateway"`
}

func defaultDatadir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".daovote"
	}
	return filepath.Join(home, ".daovote")
}

// addGlobalFlags registers the flags shared by every command.
func addGlobalFlags(fs *pflag.FlagSet) {
	fs.String("datadir", defaultDatadir(), "data directory")
	fs.String("dbtype", db.TypePebble, "database type: pebble or memory")
	fs.String("log.level", "info", "log level: debug, info, warn, error")
	fs.String("log.output", "stdout", "log output: stdout, stderr or a file path")
	fs.Uint64("chain.id", 31337, "chain id of the in process ledger")
	fs.String("chain.contract", "0x5FbDB2315678afecb367f032d93F642f64180aa3", "DAO contract address on the in process ledger")
	fs.Uint64("chain.maxplaintext", 1<<20, "largest plaintext the co-processor decrypts")
	fs.String("privkey", "", "hex private key of the dashboard wallet")
}

// loadConfig binds fs and the environment and returns the merged
// configuration.
func loadConfig(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("cannot bind flags: %w", err)
	}
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("cannot read configuration: %w", err)
	}
	if !common.IsHexAddress(cfg.Chain.Contract) {
		return nil, fmt.Errorf("invalid contract address %q", cfg.Chain.Contract)
	}
	if len(cfg.Web3.RPC) > 0 && !common.IsHexAddress(cfg.Web3.Contract) {
		return nil, fmt.Errorf("invalid web3 contract address %q", cfg.Web3.Contract)
	}
	return cfg, nil
}

// openStorage opens the database configured in cfg.
func openStorage(cfg *Config) (*storage.Storage, error) {
	if cfg.DBType == dbTypeMemory {
		return storage.New(memdb.New()), nil
	}
	if err := os.MkdirAll(cfg.Datadir, 0o750); err != nil {
		return nil, fmt.Errorf("cannot create data directory: %w", err)
	}
	database, err := metadb.New(cfg.DBType, filepath.Join(cfg.Datadir, "db"))
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}
	return storage.New(database), nil
}

// wallet returns the configured dashboard wallet, or a fresh one.
func (cfg *Config) wallet() (*ethereum.SignKeys, error) {
	signer := ethereum.NewSignKeys()
	if cfg.PrivateKey == "" {
		return signer, signer.Generate()
	}
	if err := signer.AddHexKey(cfg.PrivateKey); err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return signer, nil
}
