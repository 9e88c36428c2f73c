// Package mapping holds the declarative field mapping configs and the
// per-row transform engine.
package mapping

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/shipos/shipos/modules/migration/domain/source"
	"github.com/shipos/shipos/pkg/constants"
)

type Transform string

const (
	TransformNone      Transform = ""
	TransformUppercase Transform = "uppercase"
	TransformLowercase Transform = "lowercase"
	TransformTrim      Transform = "trim"
	TransformPhone     Transform = "phone"
	TransformDate      Transform = "date"
	TransformBoolean   Transform = "boolean"
	TransformNumber    Transform = "number"
)

type TargetModel string

const (
	TargetCustomer  TargetModel = "customer"
	TargetPackage   TargetModel = "package"
	TargetMailPiece TargetModel = "mailPiece"
	TargetInvoice   TargetModel = "invoice"
)

// SourceIDField is the target name that carries the legacy identifier.
const SourceIDField = "sourceId"

var ErrInvalidConfig = errors.New("invalid migration config")

type FieldMapping struct {
	Source    string    `json:"source" yaml:"source" toml:"source" validate:"required"`
	Target    string    `json:"target" yaml:"target" toml:"target" validate:"required"`
	Transform Transform `json:"transform,omitempty" yaml:"transform,omitempty" toml:"transform,omitempty" validate:"omitempty,oneof=uppercase lowercase trim phone date boolean number"`
	Required  bool      `json:"required,omitempty" yaml:"required,omitempty" toml:"required,omitempty"`
	Default   string    `json:"default,omitempty" yaml:"default,omitempty" toml:"default,omitempty"`
}

type Config struct {
	Name          string         `json:"name,omitempty" yaml:"name,omitempty" toml:"name,omitempty"`
	Version       int            `json:"version,omitempty" yaml:"version,omitempty" toml:"version,omitempty" validate:"gte=0"`
	SourceFormat  source.Format  `json:"sourceFormat" yaml:"sourceFormat" toml:"sourceFormat" validate:"required,oneof=csv tsv json xlsx auto"`
	TargetModel   TargetModel    `json:"targetModel" yaml:"targetModel" toml:"targetModel" validate:"required,oneof=customer package mailPiece invoice"`
	FieldMappings []FieldMapping `json:"fieldMappings" yaml:"fieldMappings" toml:"fieldMappings" validate:"required,min=1,dive"`
	DeduplicateOn string         `json:"deduplicateOn,omitempty" yaml:"deduplicateOn,omitempty" toml:"deduplicateOn,omitempty"`
	SkipHeader    bool           `json:"skipHeader,omitempty" yaml:"skipHeader,omitempty" toml:"skipHeader,omitempty"`
}

// Validate checks enums, non-blank source and target names, and that
// deduplicateOn names a mapped target.
func (c *Config) Validate() error {
	if err := constants.Validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return errors.Wrap(ErrInvalidConfig, strings.Join(msgs, "; "))
		}
		return errors.Wrap(err, "validate config")
	}

	targets := make(map[string]struct{}, len(c.FieldMappings))
	for i, m := range c.FieldMappings {
		if strings.TrimSpace(m.Source) == "" || strings.TrimSpace(m.Target) == "" {
			return errors.Wrap(ErrInvalidConfig, fmt.Sprintf("fieldMappings[%d]: source and target must not be blank", i))
		}
		targets[m.Target] = struct{}{}
	}
	if c.DeduplicateOn != "" {
		if _, ok := targets[c.DeduplicateOn]; !ok {
			return errors.Wrap(ErrInvalidConfig, fmt.Sprintf("deduplicateOn %q is not a mapped target", c.DeduplicateOn))
		}
	}
	return nil
}

// Clone returns a deep copy.
func (c Config) Clone() Config {
	out := c
	out.FieldMappings = make([]FieldMapping, len(c.FieldMappings))
	copy(out.FieldMappings, c.FieldMappings)
	return out
}

// ParseConfig decodes and validates a custom config. ext is a file extension
// or format name: json, yaml, yml or toml.
func ParseConfig(data []byte, ext string) (Config, error) {
	var cfg Config
	switch strings.TrimPrefix(strings.ToLower(ext), ".") {
	case "json", "":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return Config{}, errors.Wrap(err, "decode json config")
		}
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, errors.Wrap(err, "decode yaml config")
		}
	case "toml":
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return Config{}, errors.Wrap(err, "decode toml config")
		}
	default:
		return Config{}, errors.Errorf("unsupported config format %q", ext)
	}
	if cfg.SourceFormat == "" {
		cfg.SourceFormat = source.Auto
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
