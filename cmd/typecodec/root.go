package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	typecodec "github.com/reoring/typecodec"
	"github.com/reoring/typecodec/codec"
	"github.com/reoring/typecodec/compiler"
	"github.com/reoring/typecodec/hook"
	"github.com/reoring/typecodec/model"
)

// Version is set at build time.
var Version = "dev"

// NewRootCommand creates the root command with all subcommands.
func NewRootCommand() *cobra.Command {
	v := viper.New()
	root := &cobra.Command{
		Use:   "typecodec",
		Short: "Type-directed JSON and CSV codec",
		Long: `typecodec compiles a type expression such as array<string,?int> into a
codec and uses it to validate and convert documents.

Configuration is read from typecodec.yaml in the working directory (or the
file given with --config), then TYPECODEC_* environment variables, then flags.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "config file (default ./typecodec.yaml)")
	pf.BoolP("verbose", "v", false, "log compiler activity to stderr")
	pf.Bool("lazy", false, "decode lazily from the resource")
	pf.Bool("collect-errors", false, "collect decode errors and keep going")
	pf.String("cache-dir", "", "publish and reuse plan artifacts in this directory")
	pf.String("cache-backend", "", "artifact store: file or badger")
	pf.String("target-type", "", "override the type expression")
	pf.String("indent", "", "JSON output indent")
	pf.Bool("escape-html", false, "escape <, > and & in JSON strings")
	pf.Bool("preserve-zero-fraction", false, "write integral floats as 1.0")
	pf.Int("max-depth", 0, "maximum JSON nesting depth (0 = unlimited)")
	pf.String("delimiter", "", "CSV delimiter")
	pf.StringToString("select", nil, "union selector, e.g. --select 'int|string=int'")

	for key, flag := range map[string]string{
		"verbose":                     "verbose",
		"lazy":                        "lazy",
		"collect_errors":              "collect-errors",
		"cache_dir":                   "cache-dir",
		"cache_backend":               "cache-backend",
		"target_type":                 "target-type",
		"json.indent":                 "indent",
		"json.escape_html":            "escape-html",
		"json.preserve_zero_fraction": "preserve-zero-fraction",
		"json.max_depth":              "max-depth",
		"csv.delimiter":               "delimiter",
		"union_selector":              "select",
	} {
		_ = v.BindPFlag(key, pf.Lookup(flag))
	}

	root.AddCommand(newTypeCommand())
	root.AddCommand(newSplitCommand())
	root.AddCommand(newDecodeCommand(v))
	root.AddCommand(newEncodeCommand(v))
	return root
}

// loadConfig layers the config file, the environment and the flags.
func loadConfig(cmd *cobra.Command, v *viper.Viper) (typecodec.Config, error) {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("typecodec")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	v.SetEnvPrefix("TYPECODEC")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return typecodec.Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	var cfg typecodec.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return typecodec.Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return typecodec.Config{}, err
	}
	return cfg, nil
}

func newLogger(verbose bool) *zap.Logger {
	if !verbose {
		return zap.NewNop()
	}
	l, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return l
}

// newCompiler builds a compiler with an empty class registry and the
// built-in time hooks.
func newCompiler(cmd *cobra.Command, v *viper.Viper) (*compiler.Compiler, error) {
	cfg, err := loadConfig(cmd, v)
	if err != nil {
		return nil, err
	}
	hooks := &hook.Hooks{}
	if err := codec.TimeRFC3339(hooks); err != nil {
		return nil, err
	}
	return compiler.New(model.NewRegistry(),
		compiler.WithConfig(cfg),
		compiler.WithHooks(hooks),
		compiler.WithLogger(newLogger(v.GetBool("verbose"))),
	)
}
