// Package stages implements the pipeline stage functions: scope
// classification, blueprint design, structure refinement, code generation,
// syntax and semantic validation, dependency synthesis, and packaging. Each
// stage is a pure function of the task snapshot it receives; all state
// changes travel through the returned patch.
package stages

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/go-viper/mapstructure/v2"

	"github.com/sitesmith/sitesmith/internal/llm"
	"github.com/sitesmith/sitesmith/internal/models"
	"github.com/sitesmith/sitesmith/internal/pipeline"
)

// Config holds the per-stage model selection and generation settings.
type Config struct {
	GatekeeperModel string
	ArchitectModel  string
	BuilderModel    string
	AuditorModel    string

	GatekeeperTemperature float64
	ArchitectTemperature  float64
	BuilderTemperature    float64
	AuditorTemperature    float64

	// BuilderConcurrency bounds parallel per-file generation calls.
	BuilderConcurrency int

	// OutputDir is where the packager writes zip artifacts.
	OutputDir string
}

// Stages binds the stage functions to a completion client and config.
type Stages struct {
	client llm.Client
	cfg    Config
}

// New creates the stage set.
func New(client llm.Client, cfg Config) *Stages {
	if cfg.BuilderConcurrency <= 0 {
		cfg.BuilderConcurrency = 1
	}
	return &Stages{client: client, cfg: cfg}
}

// Registry wires the full stage graph: generation stages, the two approval
// checkpoints, and the validator retry routes back to the builder.
func (s *Stages) Registry() *pipeline.Registry {
	reg := pipeline.NewRegistry(models.StageGatekeeper)

	reg.Register(models.StageGatekeeper, s.Gatekeeper, models.StageArchitect)
	reg.Register(models.StageArchitect, s.Architect, models.StageFeatureApproval)
	reg.RegisterPause(models.StageFeatureApproval, models.StageStructurer)
	reg.Register(models.StageStructurer, s.Structurer, models.StageTechstackApproval)
	reg.RegisterPause(models.StageTechstackApproval, models.StageBuilder)
	reg.Register(models.StageBuilder, s.Builder, models.StageSyntaxGuard)
	reg.Register(models.StageSyntaxGuard, s.SyntaxGuard, models.StageAuditor)
	reg.Register(models.StageAuditor, s.Auditor, models.StageDependencyResolver)
	reg.Register(models.StageDependencyResolver, s.ResolveDependencies, models.StagePackager)
	reg.Register(models.StagePackager, s.Package, "")

	reg.SetRetryTarget(models.StageSyntaxGuard, models.StageBuilder)
	reg.SetRetryTarget(models.StageAuditor, models.StageBuilder)

	return reg
}

// decodeDoc decodes parsed JSON into a typed struct keyed by json tags.
// mapstructure tolerates model output quirks (extra keys, numeric widening)
// that encoding/json's strict struct decoding would not.
func decodeDoc(raw json.RawMessage, out any) error {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return fmt.Errorf("parsing document: %w", err)
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(m); err != nil {
		return fmt.Errorf("decoding document: %w", err)
	}
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
