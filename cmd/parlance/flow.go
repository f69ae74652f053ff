package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/aretw0/parlance"
	"github.com/aretw0/parlance/internal/adapters/file"
	"github.com/aretw0/parlance/internal/compiler"
	"github.com/aretw0/parlance/internal/config"
	"github.com/aretw0/parlance/pkg/domain"
	"github.com/aretw0/parlance/pkg/flows"
	"github.com/aretw0/parlance/pkg/grammar"
	"github.com/spf13/viper"
)

// setFlow interprets a --flow value: a YAML path or a built-in flow name.
func setFlow(v *viper.Viper, value string) {
	if isFlowFile(value) {
		v.Set("flow.file", value)
		return
	}
	v.Set("flow.name", value)
	v.Set("flow.file", "")
}

func isFlowFile(value string) bool {
	ext := strings.ToLower(filepath.Ext(value))
	return ext == ".yaml" || ext == ".yml"
}

// flowConfig returns the configured flow, or the one named by arg.
func flowConfig(arg string) config.FlowConfig {
	fc := cfg.Flow
	switch {
	case arg == "":
	case isFlowFile(arg):
		fc.File = arg
	default:
		fc.Name, fc.File = arg, ""
	}
	return fc
}

// loadDefinition builds a built-in flow or compiles a YAML flow file.
func loadDefinition(fc config.FlowConfig, res *grammar.Resolver) (*domain.Definition, error) {
	if fc.File == "" {
		return flows.Get(fc.Name, res)
	}
	dir, base := filepath.Split(fc.File)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	data, err := file.NewLoader(dir).GetFlow(name)
	if err != nil {
		return nil, err
	}
	def, err := compiler.NewParser(compiler.WithResolver(res)).Parse(data)
	if err != nil {
		return nil, fmt.Errorf("flow %s: %w", fc.File, err)
	}
	return def, nil
}

// newEngine compiles the configured flow with the speech defaults of cfg.
func newEngine(res *grammar.Resolver, opts ...parlance.Option) (*parlance.Engine, error) {
	def, err := loadDefinition(cfg.Flow, res)
	if err != nil {
		return nil, err
	}
	base := []parlance.Option{
		parlance.WithLogger(logger),
		parlance.WithDefaultVoice(domain.VoiceOptions{
			Voice:  cfg.Speech.Voice,
			Locale: cfg.Speech.Locale,
		}),
		parlance.WithDefaultListen(domain.ListenOptions{
			NLU:            cfg.Speech.NLU,
			Locale:         cfg.Speech.Locale,
			NoInputTimeout: cfg.Speech.NoInputTimeout,
		}),
	}
	if cfg.Flow.Seed != nil {
		base = append(base, parlance.WithSeed(*cfg.Flow.Seed))
	}
	return parlance.New(def, append(base, opts...)...)
}
