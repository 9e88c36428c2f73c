package main

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/roblaszczak/go-cleanarch/cleanarch"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type config struct {
	Root              string   `yaml:"root"`
	IgnoreTests       bool     `yaml:"ignore_tests"`
	IgnorePackages    []string `yaml:"ignore_packages"`
	SharedModules     []string `yaml:"shared_modules"`
	AllowedViolations []string `yaml:"allow_violations"`
	Layers            struct {
		Domain         []string `yaml:"domain"`
		Application    []string `yaml:"application"`
		Interfaces     []string `yaml:"interfaces"`
		Infrastructure []string `yaml:"infrastructure"`
	} `yaml:"layers"`
}

var (
	defaultDomain         = []string{"domain", "entities"}
	defaultApplication    = []string{"services", "handlers"}
	defaultInterfaces     = []string{"presentation", "controllers"}
	defaultInfrastructure = []string{"infrastructure", "persistence"}
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
	)
	cmd := &cobra.Command{
		Use:           "archguard",
		Short:         "Check that module layers only import inward",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return fmt.Errorf("read config: %w", err)
			}
			if debug {
				cleanarch.Log.SetOutput(os.Stderr)
			}
			violations, err := check(cfg)
			if err != nil {
				return err
			}
			log := logrus.New()
			log.SetOutput(cmd.ErrOrStderr())
			for _, v := range violations {
				log.WithField("violation", v).Error("layer violation")
			}
			if len(violations) > 0 {
				return fmt.Errorf("%d layer violations", len(violations))
			}
			log.Info("layer check passed")
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", ".gocleanarch.yml", "Config file")
	cmd.Flags().BoolVar(&debug, "debug", false, "Enable go-cleanarch debug logging")
	return cmd
}

func loadConfig(path string) (*config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.Root) == "" {
		cfg.Root = "."
	}
	return cfg, nil
}

func layerAliases(cfg *config) map[string]cleanarch.Layer {
	aliases := map[string]cleanarch.Layer{}
	add := func(custom, defaults []string, layer cleanarch.Layer) {
		names := defaults
		if len(custom) > 0 {
			names = custom
		}
		for _, n := range names {
			if n = strings.TrimSpace(n); n != "" {
				aliases[n] = layer
			}
		}
	}
	add(cfg.Layers.Domain, defaultDomain, cleanarch.LayerDomain)
	add(cfg.Layers.Application, defaultApplication, cleanarch.LayerApplication)
	add(cfg.Layers.Interfaces, defaultInterfaces, cleanarch.LayerInterfaces)
	add(cfg.Layers.Infrastructure, defaultInfrastructure, cleanarch.LayerInfrastructure)
	return aliases
}

func check(cfg *config) ([]string, error) {
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, err
	}
	_, errs, err := cleanarch.NewValidator(layerAliases(cfg)).Validate(root, cfg.IgnoreTests, cfg.IgnorePackages)
	if err != nil {
		return nil, fmt.Errorf("go-cleanarch: %w", err)
	}
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, e.Error())
	}
	return filterViolations(msgs, cfg), nil
}

var crossModulePattern = regexp.MustCompile(`between ([\w-]+) and ([\w-]+) modules`)

// filterViolations drops violations that touch a shared module or contain
// an allowed substring.
func filterViolations(msgs []string, cfg *config) []string {
	shared := make(map[string]struct{}, len(cfg.SharedModules))
	for _, m := range cfg.SharedModules {
		if m = strings.TrimSpace(m); m != "" {
			shared[m] = struct{}{}
		}
	}

	out := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		if m := crossModulePattern.FindStringSubmatch(msg); len(m) == 3 {
			_, a := shared[m[1]]
			_, b := shared[m[2]]
			if a || b {
				continue
			}
		}
		if allowed(msg, cfg.AllowedViolations) {
			continue
		}
		out = append(out, msg)
	}
	return out
}

func allowed(msg string, patterns []string) bool {
	for _, p := range patterns {
		if p != "" && strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
