// Package config declares the top-level CLI structure parsed by kong.
package config

import "github.com/relaykvm/bridge/internal/cmd"

// LogOptions configures logging for all commands.
type LogOptions struct {
	Level   string `help:"Log level (trace, debug, info, warn, error)" enum:"trace,debug,info,warn,error" default:"info" env:"RELAYKVM_LOG_LEVEL"`
	File    string `help:"Also write logs to this file" env:"RELAYKVM_LOG_FILE"`
	RawFile string `help:"Write raw wire traffic hex dumps to this file" env:"RELAYKVM_LOG_RAW_FILE"`
}

// CLI is the root command tree.
type CLI struct {
	Log    LogOptions `embed:"" prefix:"log."`
	Config string     `help:"Path to configuration file" env:"RELAYKVM_CONFIG"`

	Serve     cmd.Serve         `cmd:"" help:"Run the bridge"`
	ConfigCmd cmd.ConfigCommand `cmd:"" name:"config" help:"Configuration utilities"`
}
