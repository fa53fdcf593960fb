package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/roach88/prevail/internal/codec"
	"github.com/roach88/prevail/internal/snapshot"
)

//go:embed schema.cue
var schemaSource string

// Config configures a prevalence engine.
type Config struct {
	JournalDir           string   `yaml:"journal_dir" json:"journal_dir" validate:"required"`
	JournalSizeThreshold int64    `yaml:"journal_size_threshold" json:"journal_size_threshold" validate:"gte=0"`
	JournalAgeThreshold  Duration `yaml:"journal_age_threshold" json:"journal_age_threshold" validate:"gte=0"`
	SnapshotDir          string   `yaml:"snapshot_dir" json:"snapshot_dir" validate:"required"`
	SnapshotSuffix       string   `yaml:"snapshot_suffix" json:"snapshot_suffix" validate:"required,file_suffix"`
	SnapshotCodec        string   `yaml:"snapshot_codec" json:"snapshot_codec" validate:"oneof=msgpack json"`
	SnapshotCompression  string   `yaml:"snapshot_compression" json:"snapshot_compression" validate:"oneof=none gzip zstd"`
	SnapshotInterval     Duration `yaml:"snapshot_interval" json:"snapshot_interval" validate:"gte=0"`
	FaultDB              string   `yaml:"fault_db" json:"fault_db"`
	LogLevel             string   `yaml:"log_level" json:"log_level" validate:"oneof=debug info warn error"`
}

// DefaultJournalSizeThreshold is the default rotation size of journal
// segments.
const DefaultJournalSizeThreshold = 16 << 20

// Default returns a configuration rooted at dir.
func Default(dir string) Config {
	return Config{
		JournalDir:           filepath.Join(dir, "journal"),
		JournalSizeThreshold: DefaultJournalSizeThreshold,
		SnapshotDir:          filepath.Join(dir, "snapshots"),
		SnapshotSuffix:       "snapshot",
		SnapshotCodec:        "msgpack",
		SnapshotCompression:  string(codec.CompressionZstd),
		LogLevel:             "info",
	}
}

// Load reads a .yaml, .yml or .cue file over Default(dir of path) and
// validates the result.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	base := filepath.Dir(path)
	cfg := Default(base)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = decodeYAML(data, &cfg)
	case ".cue":
		err = decodeCUE(path, data, &cfg)
	default:
		return Config{}, fmt.Errorf("unsupported config format %q (want .yaml, .yml or .cue)", filepath.Ext(path))
	}
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}

	cfg.resolve(base)
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func decodeYAML(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode yaml: %w", err)
	}
	return nil
}

func decodeCUE(path string, data []byte, cfg *Config) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	value := ctx.CompileBytes(data, cue.Filename(path))
	if err := value.Err(); err != nil {
		return fmt.Errorf("compile cue: %w", err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Config")).Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("validate cue: %w", err)
	}
	if err := unified.Decode(cfg); err != nil {
		return fmt.Errorf("decode cue: %w", err)
	}
	return nil
}

// resolve makes relative directories relative to base.
func (c *Config) resolve(base string) {
	for _, p := range []*string{&c.JournalDir, &c.SnapshotDir, &c.FaultDB} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(base, *p)
		}
	}
}

var (
	validate     = validator.New()
	suffixFormat = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

func init() {
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	validate.RegisterValidation("file_suffix", func(fl validator.FieldLevel) bool {
		suffix := fl.Field().String()
		return suffixFormat.MatchString(suffix) && snapshot.ValidateSuffix(suffix) == nil
	})
}

// Validate checks field constraints.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: %s", fe.Field(), describe(fe)))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "field is required"
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s], got %q", fe.Param(), fmt.Sprint(fe.Value()))
	case "file_suffix":
		return "must contain only letters, digits, '_' and '-' and must not be \"journal\""
	default:
		return fmt.Sprintf("failed %q", fe.Tag())
	}
}

// Serializer builds the snapshot serialization pipeline.
func (c Config) Serializer() (*codec.Serializer, error) {
	cd, err := codec.ByName(c.SnapshotCodec)
	if err != nil {
		return nil, err
	}
	comp, err := codec.ParseCompression(c.SnapshotCompression)
	if err != nil {
		return nil, err
	}
	return codec.NewSerializer(cd, comp), nil
}

// SlogLevel maps LogLevel to a slog level. Unknown names mean info.
func (c Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Duration is a time.Duration written as "10m" or "1h30m" in config files.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalYAML accepts the same strings as UnmarshalText.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a string like \"10m\"", node.Line)
	}
	return d.UnmarshalText([]byte(node.Value))
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}
