package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Config represents the persistent reel configuration stored as config.toml
// in the .reel/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version     int               `toml:"version"`
	Backend     BackendConfig     `toml:"backend"`
	Store       StoreConfig       `toml:"store"`
	Serve       ServeConfig       `toml:"serve"`
	Publish     PublishConfig     `toml:"publish"`
	VectorStore VectorStoreConfig `toml:"vector_store"`
	Embedding   EmbeddingConfig   `toml:"embedding"`
}

// BackendConfig holds settings for commands that talk to the agent backend
// (reel chat, reel run, reel apps, reel sessions). URL is a full base URL
// (scheme + host + port).
type BackendConfig struct {
	URL    string `toml:"url,omitempty"`
	App    string `toml:"app,omitempty"`
	UserID string `toml:"user_id,omitempty"`
}

// StoreConfig holds local transcript storage settings shared by the chat,
// run, sessions, and serve commands.
type StoreConfig struct {
	Driver     string `toml:"driver,omitempty"`
	SQLitePath string `toml:"sqlite_path,omitempty"`
	DSN        string `toml:"dsn,omitempty"`
}

// ServeConfig holds dev server settings.
type ServeConfig struct {
	Listen     string `toml:"listen,omitempty"`
	ScriptPath string `toml:"script_path,omitempty"`
	AgentURL   string `toml:"agent_url,omitempty"`
}

// PublishConfig holds event republishing settings. Provider "nop" disables
// publishing; "kafka" writes every delivered event to the configured topic.
type PublishConfig struct {
	Provider string   `toml:"provider,omitempty"`
	Brokers  []string `toml:"brokers,omitempty"`
	Topic    string   `toml:"topic,omitempty"`
}

// VectorStoreConfig holds vector store settings for transcript search.
type VectorStoreConfig struct {
	Provider string `toml:"provider,omitempty"`
	Target   string `toml:"target,omitempty"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider   string `toml:"provider,omitempty"`
	Target     string `toml:"target,omitempty"`
	Model      string `toml:"model,omitempty"`
	Dimensions uint   `toml:"dimensions,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"backend.url": {
		get: func(c *Config) string { return c.Backend.URL },
		set: func(c *Config, v string) error { c.Backend.URL = v; return nil },
	},
	"backend.app": {
		get: func(c *Config) string { return c.Backend.App },
		set: func(c *Config, v string) error { c.Backend.App = v; return nil },
	},
	"backend.user_id": {
		get: func(c *Config) string { return c.Backend.UserID },
		set: func(c *Config, v string) error { c.Backend.UserID = v; return nil },
	},
	"store.driver": {
		get: func(c *Config) string { return c.Store.Driver },
		set: func(c *Config, v string) error { c.Store.Driver = v; return nil },
	},
	"store.sqlite_path": {
		get: func(c *Config) string { return c.Store.SQLitePath },
		set: func(c *Config, v string) error { c.Store.SQLitePath = v; return nil },
	},
	"store.dsn": {
		get: func(c *Config) string { return c.Store.DSN },
		set: func(c *Config, v string) error { c.Store.DSN = v; return nil },
	},
	"serve.listen": {
		get: func(c *Config) string { return c.Serve.Listen },
		set: func(c *Config, v string) error { c.Serve.Listen = v; return nil },
	},
	"serve.script_path": {
		get: func(c *Config) string { return c.Serve.ScriptPath },
		set: func(c *Config, v string) error { c.Serve.ScriptPath = v; return nil },
	},
	"serve.agent_url": {
		get: func(c *Config) string { return c.Serve.AgentURL },
		set: func(c *Config, v string) error { c.Serve.AgentURL = v; return nil },
	},
	"publish.provider": {
		get: func(c *Config) string { return c.Publish.Provider },
		set: func(c *Config, v string) error { c.Publish.Provider = v; return nil },
	},
	"publish.brokers": {
		get: func(c *Config) string { return strings.Join(c.Publish.Brokers, ",") },
		set: func(c *Config, v string) error {
			if v == "" {
				c.Publish.Brokers = nil
				return nil
			}
			parts := strings.Split(v, ",")
			brokers := make([]string, 0, len(parts))
			for _, p := range parts {
				if p = strings.TrimSpace(p); p != "" {
					brokers = append(brokers, p)
				}
			}
			c.Publish.Brokers = brokers
			return nil
		},
	},
	"publish.topic": {
		get: func(c *Config) string { return c.Publish.Topic },
		set: func(c *Config, v string) error { c.Publish.Topic = v; return nil },
	},
	"vector_store.provider": {
		get: func(c *Config) string { return c.VectorStore.Provider },
		set: func(c *Config, v string) error { c.VectorStore.Provider = v; return nil },
	},
	"vector_store.target": {
		get: func(c *Config) string { return c.VectorStore.Target },
		set: func(c *Config, v string) error { c.VectorStore.Target = v; return nil },
	},
	"embedding.provider": {
		get: func(c *Config) string { return c.Embedding.Provider },
		set: func(c *Config, v string) error { c.Embedding.Provider = v; return nil },
	},
	"embedding.target": {
		get: func(c *Config) string { return c.Embedding.Target },
		set: func(c *Config, v string) error { c.Embedding.Target = v; return nil },
	},
	"embedding.model": {
		get: func(c *Config) string { return c.Embedding.Model },
		set: func(c *Config, v string) error { c.Embedding.Model = v; return nil },
	},
	"embedding.dimensions": {
		get: func(c *Config) string {
			if c.Embedding.Dimensions == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.Embedding.Dimensions), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for embedding.dimensions: %w", err)
			}
			c.Embedding.Dimensions = uint(n)
			return nil
		},
	},
}
