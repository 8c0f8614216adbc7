// Package config resolves mailwatchd's configuration in four tiers:
// built-in defaults, environment variables, an optional YAML file, then
// explicit command-line flags (highest wins).
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every environment-configurable value mailwatchd needs, plus
// the control API's own bind address.
type Config struct {
	APIAddr string `yaml:"api_addr"`

	ChatHost  string `yaml:"chat_host"`
	BotToken  string `yaml:"bot_token"`

	EncryptionKeyHex string `yaml:"encryption_key"`

	DBPath string `yaml:"db_path"`

	KVHost string `yaml:"kv_host"`
	KVPort int    `yaml:"kv_port"`
	KVDB   int    `yaml:"kv_db"`

	CacheTTLSeconds int `yaml:"cache_ttl_seconds"`

	AllowedHosts []string `yaml:"allowed_hosts"`

	Debug bool `yaml:"debug"`
}

type fileConfig struct {
	APIAddr          *string  `yaml:"api_addr"`
	ChatHost         *string  `yaml:"chat_host"`
	BotToken         *string  `yaml:"bot_token"`
	EncryptionKeyHex *string  `yaml:"encryption_key"`
	DBPath           *string  `yaml:"db_path"`
	KVHost           *string  `yaml:"kv_host"`
	KVPort           *int     `yaml:"kv_port"`
	KVDB             *int     `yaml:"kv_db"`
	CacheTTLSeconds  *int     `yaml:"cache_ttl_seconds"`
	AllowedHosts     []string `yaml:"allowed_hosts"`
	Debug            *bool    `yaml:"debug"`
}

type stringFlag struct {
	val string
	set bool
}

func (s *stringFlag) String() string     { return s.val }
func (s *stringFlag) Set(v string) error { s.val = v; s.set = true; return nil }

type intFlag struct {
	val int
	set bool
}

func (i *intFlag) String() string { return fmt.Sprintf("%d", i.val) }
func (i *intFlag) Set(v string) error {
	var tmp int
	if _, err := fmt.Sscanf(v, "%d", &tmp); err != nil {
		return err
	}
	i.val = tmp
	i.set = true
	return nil
}

type boolFlag struct {
	val bool
	set bool
}

func (b *boolFlag) String() string {
	if b.val {
		return "true"
	}
	return "false"
}
func (b *boolFlag) Set(v string) error {
	b.val = parseBool(v)
	b.set = true
	return nil
}

// Load resolves the Config in precedence order: defaults, env, YAML file
// (path from --config or MAILWATCH_CONFIG), explicit flags.
func Load() (*Config, error) {
	cfg := &Config{
		APIAddr:         ":8080",
		ChatHost:        "https://api.telegram.org",
		DBPath:          "mailwatch.db",
		KVHost:          "127.0.0.1",
		KVPort:          6379,
		KVDB:            0,
		CacheTTLSeconds: 300,
	}

	if v, ok := os.LookupEnv("API_ADDR"); ok {
		cfg.APIAddr = v
	}
	if v, ok := os.LookupEnv("CHAT_HOST"); ok {
		cfg.ChatHost = v
	}
	if v, ok := os.LookupEnv("BOT_TOKEN"); ok {
		cfg.BotToken = v
	}
	if v, ok := os.LookupEnv("ENCRYPTION_KEY"); ok {
		cfg.EncryptionKeyHex = v
	}
	if v, ok := os.LookupEnv("DB_PATH"); ok {
		cfg.DBPath = v
	}
	if v, ok := os.LookupEnv("KV_HOST"); ok {
		cfg.KVHost = v
	}
	if v, ok := os.LookupEnv("KV_PORT"); ok {
		var n int
		fmt.Sscanf(v, "%d", &n)
		if n > 0 {
			cfg.KVPort = n
		}
	}
	if v, ok := os.LookupEnv("KV_DB"); ok {
		var n int
		fmt.Sscanf(v, "%d", &n)
		cfg.KVDB = n
	}
	if v, ok := os.LookupEnv("CACHE_TTL_SECONDS"); ok {
		var n int
		fmt.Sscanf(v, "%d", &n)
		if n > 0 {
			cfg.CacheTTLSeconds = n
		}
	}
	if v, ok := os.LookupEnv("ALLOWED_HOSTS"); ok {
		cfg.AllowedHosts = splitCSV(v)
	}
	if v, ok := os.LookupEnv("DEBUG"); ok {
		cfg.Debug = parseBool(v)
	}

	var configPath string
	if v, ok := os.LookupEnv("MAILWATCH_CONFIG"); ok {
		configPath = v
	}
	pre := flag.NewFlagSet("pre", flag.ContinueOnError)
	pre.StringVar(&configPath, "config", configPath, "path to a YAML config file")
	_ = pre.Parse(os.Args[1:])

	if configPath != "" {
		if err := mergeFile(configPath, cfg); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	sfAPI := &stringFlag{val: cfg.APIAddr}
	flag.Var(sfAPI, "api-addr", "control API listen address")
	sfChat := &stringFlag{val: cfg.ChatHost}
	flag.Var(sfChat, "chat-host", "chat API base URL")
	sfToken := &stringFlag{val: cfg.BotToken}
	flag.Var(sfToken, "bot-token", "chat bot API token")
	sfKey := &stringFlag{val: cfg.EncryptionKeyHex}
	flag.Var(sfKey, "encryption-key", "hex-encoded 32-byte mailbox password encryption key")
	sfDB := &stringFlag{val: cfg.DBPath}
	flag.Var(sfDB, "db-path", "sqlite database file path")
	sfKVHost := &stringFlag{val: cfg.KVHost}
	flag.Var(sfKVHost, "kv-host", "KV store host")
	ifKVPort := &intFlag{val: cfg.KVPort}
	flag.Var(ifKVPort, "kv-port", "KV store port")
	ifKVDB := &intFlag{val: cfg.KVDB}
	flag.Var(ifKVDB, "kv-db", "KV store logical database index")
	ifTTL := &intFlag{val: cfg.CacheTTLSeconds}
	flag.Var(ifTTL, "cache-ttl-seconds", "read-through cache TTL in seconds")
	bfDebug := &boolFlag{val: cfg.Debug}
	flag.Var(bfDebug, "debug", "enable debug logging")
	flag.StringVar(&configPath, "config", configPath, "path to a YAML config file")

	flag.Parse()

	if sfAPI.set {
		cfg.APIAddr = sfAPI.val
	}
	if sfChat.set {
		cfg.ChatHost = sfChat.val
	}
	if sfToken.set {
		cfg.BotToken = sfToken.val
	}
	if sfKey.set {
		cfg.EncryptionKeyHex = sfKey.val
	}
	if sfDB.set {
		cfg.DBPath = sfDB.val
	}
	if sfKVHost.set {
		cfg.KVHost = sfKVHost.val
	}
	if ifKVPort.set {
		cfg.KVPort = ifKVPort.val
	}
	if ifKVDB.set {
		cfg.KVDB = ifKVDB.val
	}
	if ifTTL.set {
		cfg.CacheTTLSeconds = ifTTL.val
	}
	if bfDebug.set {
		cfg.Debug = bfDebug.val
	}

	if cfg.BotToken == "" {
		return nil, errors.New("missing required config: bot-token")
	}
	if cfg.EncryptionKeyHex == "" {
		return nil, errors.New("missing required config: encryption-key")
	}
	return cfg, nil
}

func mergeFile(path string, base *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return errors.New("config file is empty")
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return err
	}
	if fc.APIAddr != nil {
		base.APIAddr = *fc.APIAddr
	}
	if fc.ChatHost != nil {
		base.ChatHost = *fc.ChatHost
	}
	if fc.BotToken != nil {
		base.BotToken = *fc.BotToken
	}
	if fc.EncryptionKeyHex != nil {
		base.EncryptionKeyHex = *fc.EncryptionKeyHex
	}
	if fc.DBPath != nil {
		base.DBPath = *fc.DBPath
	}
	if fc.KVHost != nil {
		base.KVHost = *fc.KVHost
	}
	if fc.KVPort != nil {
		base.KVPort = *fc.KVPort
	}
	if fc.KVDB != nil {
		base.KVDB = *fc.KVDB
	}
	if fc.CacheTTLSeconds != nil {
		base.CacheTTLSeconds = *fc.CacheTTLSeconds
	}
	if fc.AllowedHosts != nil {
		base.AllowedHosts = fc.AllowedHosts
	}
	if fc.Debug != nil {
		base.Debug = *fc.Debug
	}
	return nil
}

func parseBool(v string) bool { return v == "1" || v == "true" || v == "TRUE" || v == "yes" }

func splitCSV(v string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(v); i++ {
		if i == len(v) || v[i] == ',' {
			if i > start {
				out = append(out, v[start:i])
			}
			start = i + 1
		}
	}
	return out
}
