// Command oracle runs the governance oracle's analyze() operation against
// a JSON-encoded AnalysisContext and emits the resulting report as JSON on
// stdout. Exit codes: 0 = pass|warn, 1 = block, 2 = fatal non-decision
// error, per spec §6.
package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dissonance-oracle/oracle/internal/actor"
	"github.com/dissonance-oracle/oracle/internal/logging"
	"github.com/dissonance-oracle/oracle/internal/oracleconfig"
	"github.com/dissonance-oracle/oracle/pkg/adapter"
	"github.com/dissonance-oracle/oracle/pkg/canonicalize"
	"github.com/dissonance-oracle/oracle/pkg/contracts/schemas"
	"github.com/dissonance-oracle/oracle/pkg/l0"
	"github.com/dissonance-oracle/oracle/pkg/model"
	"github.com/dissonance-oracle/oracle/pkg/oracle"
	"github.com/dissonance-oracle/oracle/pkg/rules"
	"github.com/dissonance-oracle/oracle/pkg/telemetry"
)

const (
	exitDecisionOK    = 0
	exitDecisionBlock = 1
	exitFatal         = 2
)

func main() {
	os.Exit(Run(os.Args[1:], os.Stdout, os.Stderr))
}

// Run is the CLI's testable entrypoint: no os.Exit, no global state beyond
// the process-wide logger.
func Run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("oracle", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to the oracle YAML config file")
	inputPath := fs.String("input", "-", "path to a JSON AnalysisContext, or - for stdin")
	dryRun := fs.Bool("dry-run", false, "always exit 0 regardless of decision")
	logLevel := fs.String("log-level", string(logging.LevelInfo), "DEBUG|INFO|WARN|ERROR")
	if err := fs.Parse(args); err != nil {
		return exitFatal
	}

	logger := logging.New(stderr, logging.Level(*logLevel))

	validator, err := schemas.New()
	if err != nil {
		logger.Error("compile wire-format schemas", "error", err)
		return exitFatal
	}

	cfg, err := oracleconfig.Load(*configPath)
	if err != nil {
		logger.Error("load config", "error", err)
		return exitFatal
	}

	bundle, err := adapter.New(cfg.AdapterConfig())
	if err != nil {
		logger.Error("construct adapter bundle", "error", err)
		return exitFatal
	}

	telemetryProvider, err := telemetry.New(context.Background(), &telemetry.Config{
		ServiceName:  "dissonance-oracle",
		OTLPEndpoint: cfg.OTLPEndpoint,
		Enabled:      cfg.TelemetryEnabled,
	})
	if err != nil {
		logger.Error("construct telemetry provider", "error", err)
		return exitFatal
	}
	defer func() {
		if err := telemetryProvider.Shutdown(context.Background()); err != nil {
			logger.Warn("shutdown telemetry provider", "error", err)
		}
	}()

	analysis, err := readAnalysisContext(*inputPath)
	if err != nil {
		logger.Error("read analysis context", "error", err)
		return exitFatal
	}

	if analysis.OrgContext != nil && analysis.OrgContext.Manifest != nil {
		if err := validator.Validate(schemas.PolicyManifest, *analysis.OrgContext.Manifest); err != nil {
			logger.Error("validate policy manifest", "error", err)
			return exitFatal
		}
		if err := model.CheckSchemaVersion(*analysis.OrgContext.Manifest); err != nil {
			logger.Error("check policy manifest schema version", "error", err)
			return exitFatal
		}
	}

	if actorClaims, err := actor.ParseClaims(analysis.Actor, []byte(cfg.ActorJWTSecret)); err != nil {
		logger.Warn("parse actor token", "error", err)
	} else if actorClaims != nil {
		logger.Info("actor identified", "subject", actorClaims.Subject, "verified", actorClaims.Verified)
	}

	registry := rules.NewRegistry()
	o := oracle.New(bundle, registry, oracle.Config{
		RuleTimeout:      cfg.RuleTimeout(),
		BreakerThreshold: cfg.BlockThreshold,
		BreakerWindow:    cfg.BlockWindow(),
		BreakerCooldown:  cfg.BlockWindow(),
	}, defaultL0Input(cfg), telemetryProvider)

	report, err := o.Analyze(context.Background(), analysis)
	if err != nil {
		logger.Error("analyze", "error", err)
		return exitFatal
	}

	if err := validator.Validate(schemas.Report, report); err != nil {
		logger.Error("validate report against schema", "error", err)
		return exitFatal
	}

	canonical, err := canonicalize.JCS(report)
	if err != nil {
		logger.Error("canonicalize report", "error", err)
		return exitFatal
	}
	if _, err := stdout.Write(canonical); err != nil {
		logger.Error("write report", "error", err)
		return exitFatal
	}
	if _, err := stdout.Write([]byte("\n")); err != nil {
		logger.Error("write report", "error", err)
		return exitFatal
	}

	if *dryRun {
		return exitDecisionOK
	}
	if report.Decision == model.DecisionBlock {
		return exitDecisionBlock
	}
	return exitDecisionOK
}

func readAnalysisContext(path string) (model.AnalysisContext, error) {
	var r io.Reader
	if path == "-" || path == "" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return model.AnalysisContext{}, fmt.Errorf("open %s: %w", path, err)
		}
		defer f.Close()
		r = f
	}

	var analysis model.AnalysisContext
	if err := json.NewDecoder(r).Decode(&analysis); err != nil {
		return model.AnalysisContext{}, fmt.Errorf("decode analysis context: %w", err)
	}
	return analysis, nil
}

// defaultL0Input builds the L0.Input for an AnalysisContext out of config
// alone, since the CLI entrypoint has no drift-baseline or schema-manifest
// source of its own. A hosting caller that owns baseline storage and a
// declared-schema manifest should build its own l0Input function and call
// pkg/oracle.New directly instead of this binary.
func defaultL0Input(cfg oracleconfig.Config) func(model.AnalysisContext) l0.Input {
	return func(analysis model.AnalysisContext) l0.Input {
		now := time.Now()
		return l0.Input{
			DeclaredSchema:       []byte(analysis.CommitSha),
			ExpectedSchemaPrefix: schemaPrefix(analysis.CommitSha),
			AllowedMask:          ^uint64(0),
			DriftCurrent:         0,
			DriftBaseline:        0,
			DriftThreshold:       cfg.DriftThreshold,
			Now:                  now,
			NonceIssued:          now,
			NonceMaxAge:          cfg.NonceMaxAge(),
			FPRBefore:            0,
			FPRAfter:             0,
			WitnessCount:         0,
			MinRequiredEvents:    0,
		}
	}
}

// schemaPrefix computes the same prefix-8 hex SHA-256 that l0.SchemaHash
// checks declaredSchema against, so the CLI's self-supplied schema always
// passes L0-001 absent a real schema manifest source.
func schemaPrefix(declaredSchema string) string {
	sum := sha256.Sum256([]byte(declaredSchema))
	return hex.EncodeToString(sum[:4])
}
