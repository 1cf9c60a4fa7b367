package typecodec

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// Format names a wire format backend.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// Direction is the codec direction.
type Direction string

const (
	Serialize   Direction = "serialize"
	Deserialize Direction = "deserialize"
)

// Strategy selects how decode providers consume the resource.
type Strategy string

const (
	Eager Strategy = "eager" // Providers take a fully parsed native value.
	Lazy  Strategy = "lazy"  // Providers take (resource, boundary) and defer children.
)

// Cache backends.
const (
	CacheBackendFile   = "file"
	CacheBackendBadger = "badger"
)

// JSONOptions carries JSON encode/decode flags.
type JSONOptions struct {
	Indent               string `yaml:"indent" mapstructure:"indent"`
	EscapeHTML           bool   `yaml:"escape_html" mapstructure:"escape_html"`
	PreserveZeroFraction bool   `yaml:"preserve_zero_fraction" mapstructure:"preserve_zero_fraction"`
	MaxDepth             int    `yaml:"max_depth" mapstructure:"max_depth"` // 0 means unlimited.
}

// CSVOptions carries CSV dialect flags. Enclosure and escape character are
// limited to the double quote because cells are written and read with RFC 4180
// quoting.
type CSVOptions struct {
	Delimiter  string `yaml:"delimiter" mapstructure:"delimiter"`
	Enclosure  string `yaml:"enclosure" mapstructure:"enclosure"`
	EscapeChar string `yaml:"escape_char" mapstructure:"escape_char"`
	EndOfLine  string `yaml:"end_of_line" mapstructure:"end_of_line"`
}

// Comma returns the delimiter rune (',' by default).
func (o CSVOptions) Comma() rune {
	if o.Delimiter == "" {
		return ','
	}
	r, _ := utf8.DecodeRuneInString(o.Delimiter)
	return r
}

// CRLF reports whether rows end with "\r\n".
func (o CSVOptions) CRLF() bool { return o.EndOfLine == "\r\n" }

// Config bundles the recognized codec options.
type Config struct {
	// TargetType overrides the type passed to the compiler when set.
	TargetType string `yaml:"target_type" mapstructure:"target_type"`
	// Lazy selects the lazy decode strategy.
	Lazy bool `yaml:"lazy" mapstructure:"lazy"`
	// CacheDir enables persisted plan artifacts when non-empty.
	CacheDir     string `yaml:"cache_dir" mapstructure:"cache_dir"`
	CacheBackend string `yaml:"cache_backend" mapstructure:"cache_backend"`
	// UnionSelector maps a union signature (e.g. "int|string") to the member
	// decoded when the raw value alone cannot disambiguate.
	UnionSelector map[string]string `yaml:"union_selector" mapstructure:"union_selector"`
	// CollectErrors switches decoding to collect mode.
	CollectErrors bool        `yaml:"collect_errors" mapstructure:"collect_errors"`
	JSON          JSONOptions `yaml:"json" mapstructure:"json"`
	CSV           CSVOptions  `yaml:"csv" mapstructure:"csv"`
}

// Strategy returns the decode strategy selected by the config.
func (c Config) Strategy() Strategy {
	if c.Lazy {
		return Lazy
	}
	return Eager
}

// Validate checks option values that can be rejected before generation.
func (c Config) Validate() error {
	var iss Issues
	if c.CSV.Delimiter != "" && utf8.RuneCountInString(c.CSV.Delimiter) != 1 {
		iss = AppendIssues(iss, Errorf(CodeInvalidType, "csv.delimiter must be a single character, got %q", c.CSV.Delimiter))
	}
	if c.CSV.Enclosure != "" && c.CSV.Enclosure != `"` {
		iss = AppendIssues(iss, Errorf(CodeInvalidType, "csv.enclosure must be '\"', got %q", c.CSV.Enclosure))
	}
	if c.CSV.EscapeChar != "" && c.CSV.EscapeChar != `"` {
		iss = AppendIssues(iss, Errorf(CodeInvalidType, "csv.escape_char must be '\"', got %q", c.CSV.EscapeChar))
	}
	switch c.CSV.EndOfLine {
	case "", "\n", "\r\n":
	default:
		iss = AppendIssues(iss, Errorf(CodeInvalidType, "csv.end_of_line must be \\n or \\r\\n, got %q", c.CSV.EndOfLine))
	}
	switch c.CacheBackend {
	case "", CacheBackendFile, CacheBackendBadger:
	default:
		iss = AppendIssues(iss, Errorf(CodeInvalidType, "unknown cache_backend %q", c.CacheBackend))
	}
	if c.JSON.MaxDepth < 0 {
		iss = AppendIssues(iss, Errorf(CodeInvalidType, "json.max_depth must not be negative"))
	}
	if len(iss) > 0 {
		return iss
	}
	return nil
}

// Variant renders the options that change the shape of a generated graph in a
// stable order. It feeds the content hash of cached artifacts.
func (c Config) Variant() string {
	var parts []string
	if c.TargetType != "" {
		parts = append(parts, "target="+c.TargetType)
	}
	if len(c.UnionSelector) > 0 {
		keys := make([]string, 0, len(c.UnionSelector))
		for k := range c.UnionSelector {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			parts = append(parts, "select:"+k+"="+c.UnionSelector[k])
		}
	}
	return strings.Join(parts, ";")
}

// ParseConfig decodes a YAML configuration document.
func ParseConfig(data []byte) (Config, error) {
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// LoadConfig reads and decodes a YAML configuration file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return ParseConfig(data)
}
