package main

import (
	"fmt"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/cpu"
	"github.com/spf13/viper"
	"wsshell/internel/engine"
	"wsshell/internel/shared"
	"wsshell/internel/transfer"
)

type Config struct {
	Server   string `long:"server" description:"server address, any scheme is replaced" mapstructure:"server"`
	SSL      bool   `long:"ssl" description:"optional use wss instead of ws" mapstructure:"ssl"`
	Operator string `short:"o" long:"operator" description:"operator id of the remote shell" mapstructure:"operator"`
	SID      string `short:"s" long:"sid" description:"optional hardware id, defaults to the cpu physical id" mapstructure:"sid"`
	Dest     string `short:"t" long:"dest" description:"optional directory downloads are saved to" mapstructure:"dest"`
	Compress bool   `long:"compress" description:"optional store downloads zstd compressed" mapstructure:"compress"`
	Raw      bool   `long:"raw" description:"optional put the terminal in raw mode and forward every key" mapstructure:"raw"`
	Metrics  string `long:"metrics" description:"optional address to serve prometheus metrics on" mapstructure:"metrics"`
	LogLevel string `long:"log-level" description:"optional debug, info, warn or error" mapstructure:"log_level"`

	Chunk   int           `long:"chunk" description:"optional upload chunk size in bytes" mapstructure:"chunk"`
	Mode    string        `long:"mode" description:"optional upload mode" choice:"chunked" choice:"whole" mapstructure:"mode"`
	Timeout time.Duration `long:"timeout" description:"optional fail transfers idle this long, 0 disables" mapstructure:"timeout"`
	Path    string        `long:"path" description:"optional initial remote directory" mapstructure:"path"`

	ConfigFile string `long:"config" description:"optional toml, yaml or json config file" mapstructure:"-"`
}

// ParseConfig layers defaults, the config file, WSSHELL_* env and finally
// command line flags.
func ParseConfig(args []string) (*Config, error) {
	var pre struct {
		ConfigFile string `long:"config"`
	}
	_, _ = flags.NewParser(&pre, flags.IgnoreUnknown).ParseArgs(args)

	conf, err := loadConfig(pre.ConfigFile)
	if err != nil {
		return nil, err
	}
	if _, err := flags.NewParser(conf, flags.Default).ParseArgs(args); err != nil {
		return nil, err
	}

	if conf.Operator == "" {
		return nil, errors.New("operator id can not be empty, please use -h to see help")
	}
	if conf.SID == "" {
		conf.SID = hardwareID()
	}
	return conf, nil
}

func loadConfig(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server", "127.0.0.1:8080")
	v.SetDefault("ssl", false)
	v.SetDefault("operator", "")
	v.SetDefault("sid", "")
	v.SetDefault("dest", "./downloads")
	v.SetDefault("compress", false)
	v.SetDefault("raw", false)
	v.SetDefault("metrics", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("chunk", transfer.DefaultChunkSize)
	v.SetDefault("mode", engine.Chunked.String())
	v.SetDefault("timeout", "0s")
	v.SetDefault("path", shared.DefaultPath)

	v.SetEnvPrefix("WSSHELL")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
	}

	var conf Config
	if err := v.Unmarshal(&conf); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	return &conf, nil
}

func hardwareID() string {
	info, err := cpu.Info()
	if err != nil || len(info) == 0 {
		fmt.Fprintln(os.Stderr, "get PhysicalID info error: ", err)
		return ""
	}
	return info[0].PhysicalID
}

func (c *Config) EngineConfig() *engine.Config {
	cfg := engine.DefaultConfig()
	if c.Chunk > 0 {
		cfg.ChunkSize = c.Chunk
	}
	cfg.UploadMode = engine.ParseUploadMode(c.Mode)
	cfg.SessionTimeout = c.Timeout
	if c.Path != "" {
		cfg.InitialPath = c.Path
	}
	return cfg
}
