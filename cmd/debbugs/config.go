package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/smnsjas/go-debbugs"
)

// fileConfig is the YAML configuration file. Command line flags override
// its values.
//
//	url: https://bugs.debian.org/cgi-bin/soap.cgi
//	proxy: http://proxy.example.org:3128
//	timeout: 30s
//	batch_size: 200
type fileConfig struct {
	URL       string        `yaml:"url"`
	Proxy     string        `yaml:"proxy"`
	Timeout   time.Duration `yaml:"timeout"`
	BatchSize int           `yaml:"batch_size"`
}

func loadConfig(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg fileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &cfg, nil
}

// clientFlags are the persistent flags shared by every subcommand.
type clientFlags struct {
	ConfigPath string
	URL        string
	Proxy      string
	Timeout    time.Duration
	BatchSize  int
	Verbose    bool

	fs *pflag.FlagSet
}

func (f *clientFlags) BindFlags(fs *pflag.FlagSet) {
	f.fs = fs
	fs.StringVar(&f.ConfigPath, "config", "", "YAML configuration file")
	fs.StringVar(&f.URL, "url", debbugs.DefaultURL, "SOAP endpoint of the Debbugs server")
	fs.StringVar(&f.Proxy, "proxy", "", "HTTP proxy URL")
	fs.DurationVar(&f.Timeout, "timeout", time.Minute, "Timeout for each SOAP call")
	fs.IntVar(&f.BatchSize, "batch-size", debbugs.DefaultBatchSize, "Bugs per get_status request")
	fs.BoolVarP(&f.Verbose, "verbose", "v", false, "Log every SOAP call to stderr")
}

// options merges the config file and the flags that were set explicitly.
func (f *clientFlags) options() ([]debbugs.Option, error) {
	var opts []debbugs.Option

	if f.ConfigPath != "" {
		cfg, err := loadConfig(f.ConfigPath)
		if err != nil {
			return nil, err
		}
		if cfg.URL != "" {
			opts = append(opts, debbugs.WithURL(cfg.URL))
		}
		if cfg.Proxy != "" {
			opts = append(opts, debbugs.WithProxy(cfg.Proxy))
		}
		if cfg.Timeout != 0 {
			opts = append(opts, debbugs.WithTimeout(cfg.Timeout))
		}
		if cfg.BatchSize != 0 {
			opts = append(opts, debbugs.WithBatchSize(cfg.BatchSize))
		}
	}

	if f.changed("url") {
		opts = append(opts, debbugs.WithURL(f.URL))
	}
	if f.changed("proxy") {
		opts = append(opts, debbugs.WithProxy(f.Proxy))
	}
	if f.changed("timeout") {
		opts = append(opts, debbugs.WithTimeout(f.Timeout))
	}
	if f.changed("batch-size") {
		opts = append(opts, debbugs.WithBatchSize(f.BatchSize))
	}
	return opts, nil
}

func (f *clientFlags) changed(name string) bool {
	return f.fs != nil && f.fs.Changed(name)
}

func (f *clientFlags) newClient(stderr io.Writer) (*debbugs.Client, error) {
	opts, err := f.options()
	if err != nil {
		return nil, err
	}
	opts = append(opts, debbugs.WithLogger(newLogger(stderr, f.Verbose)))
	return debbugs.New(opts...)
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
