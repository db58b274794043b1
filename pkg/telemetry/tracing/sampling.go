package tracing

import (
	"fmt"
	"strings"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Sampler strategies accepted in telemetry.tracing.sampler.
const (
	SamplerAlways = "always"
	SamplerNever  = "never"
	SamplerRatio  = "ratio"

	// SamplerExports records every export trace and applies the ratio to
	// everything else, so per-minute rule passes can be thinned without
	// losing export traces.
	SamplerExports = "exports"
)

// Samplers returns every accepted strategy.
func Samplers() []string {
	return []string{SamplerAlways, SamplerNever, SamplerRatio, SamplerExports}
}

// createSampler builds the root sampler for strategy. Every strategy is
// wrapped in ParentBased so a remote parent's decision wins.
func createSampler(strategy string, ratio float64) (sdktrace.Sampler, error) {
	if err := ValidateSamplingConfig(SamplingConfig{Strategy: strategy, Ratio: ratio}); err != nil {
		return nil, err
	}

	var root sdktrace.Sampler
	switch strategy {
	case SamplerAlways:
		root = sdktrace.AlwaysSample()
	case SamplerNever:
		root = sdktrace.NeverSample()
	case SamplerRatio:
		root = sdktrace.TraceIDRatioBased(ratio)
	case SamplerExports:
		root = exportSampler{rest: sdktrace.TraceIDRatioBased(ratio)}
	}
	return sdktrace.ParentBased(root), nil
}

// exportSampler always samples spans named "export" or "export.*" and
// defers other root spans to rest.
type exportSampler struct {
	rest sdktrace.Sampler
}

func (s exportSampler) ShouldSample(p sdktrace.SamplingParameters) sdktrace.SamplingResult {
	if isExportSpan(p.Name) {
		return sdktrace.AlwaysSample().ShouldSample(p)
	}
	return s.rest.ShouldSample(p)
}

func (s exportSampler) Description() string {
	return fmt.Sprintf("ExportSampler{rest:%s}", s.rest.Description())
}

func isExportSpan(name string) bool {
	return name == SpanExport || strings.HasPrefix(name, SpanExport+".")
}

// SamplingConfig contains configuration for trace sampling.
type SamplingConfig struct {
	Strategy string
	Ratio    float64
}

// ValidateSamplingConfig checks the strategy name and, for ratio based
// strategies, the ratio.
func ValidateSamplingConfig(cfg SamplingConfig) error {
	switch cfg.Strategy {
	case SamplerAlways, SamplerNever:
		return nil
	case SamplerRatio, SamplerExports:
		if cfg.Ratio < 0 || cfg.Ratio > 1 {
			return fmt.Errorf("sample ratio must be between 0.0 and 1.0, got %g", cfg.Ratio)
		}
		return nil
	}
	return fmt.Errorf("unknown sampler strategy %q (valid: %s)", cfg.Strategy, strings.Join(Samplers(), ", "))
}
