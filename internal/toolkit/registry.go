// Package toolkit implements the tool registry and execution policy
// (C11): a name-keyed set of agent-facing tools, each declaratively
// schema-validated, retried and timed out per policy, and logged with
// sensitive-value masking.
package toolkit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/starford/mnemo/internal/apperr"
)

// Tool is one registered capability.
type Tool struct {
	Name        string
	Description string
	InputSchema map[string]any
	Handler     Handler
}

// Registry is the name-keyed set of tools plus a compiled-schema cache.
type Registry struct {
	tools  map[string]Tool
	log    *slog.Logger
	policy Policy

	schemaCache map[string]*gojsonschema.Schema
}

// NewRegistry builds an empty registry. log defaults to slog.Default() when nil.
func NewRegistry(log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		tools:       make(map[string]Tool),
		log:         log,
		policy:      defaultPolicy,
		schemaCache: make(map[string]*gojsonschema.Schema),
	}
}

// SetPolicy replaces the registry-wide default policy, e.g. from loaded
// configuration.
func (r *Registry) SetPolicy(p Policy) { r.policy = p }

// Register adds t to the registry, compiling its schema eagerly so a
// malformed schema fails at startup rather than on first call.
func (r *Registry) Register(t Tool) error {
	schema, err := compileSchema(t.InputSchema)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "compile schema for tool "+t.Name, err)
	}
	r.tools[t.Name] = t
	r.schemaCache[t.Name] = schema
	return nil
}

// List returns every registered tool's name, description, and schema, for
// protocol-adapter advertisement.
func (r *Registry) List() []Tool {
	out := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	return out
}

// CallContext carries the caller's policy overrides threaded through from
// the protocol adapter (spec.md's "ctx.policy").
type CallContext struct {
	Policy PolicyOverride
}

func compileSchema(schemaData map[string]any) (*gojsonschema.Schema, error) {
	raw, err := json.Marshal(schemaData)
	if err != nil {
		return nil, err
	}
	return gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
}

// Execute runs the named tool: lookup, schema validation, policy merge,
// retried/timed-out invocation, and masked structured logging (§4.11).
func (r *Registry) Execute(ctx context.Context, name string, rawInput json.RawMessage, callCtx CallContext, overrides *PolicyOverride) (any, error) {
	tool, ok := r.tools[name]
	if !ok {
		return nil, apperr.Newf(apperr.InvalidRequest, "unknown tool: %s", name)
	}

	schema := r.schemaCache[name]
	result, err := schema.Validate(gojsonschema.NewBytesLoader(rawInput))
	if err != nil {
		return nil, apperr.Wrap(apperr.SchemaValidationError, "validate input for "+name, err)
	}
	if !result.Valid() {
		return nil, schemaValidationError(name, result)
	}

	policy := r.policy.apply(callCtx.Policy)
	if overrides != nil {
		policy = policy.apply(*overrides)
	}

	preview := maskedPreview(string(rawInput))
	r.log.Info("tool call started", slog.String("tool", name), slog.String("input_preview", preview))

	start := time.Now()
	value, callErr := runWithPolicy(ctx, policy, rawInput, tool.Handler, func(attempt int, err error) {
		r.log.Warn("tool call retry", slog.String("tool", name), slog.Int("attempt", attempt), slog.String("error", err.Error()))
	})
	duration := time.Since(start)

	if callErr != nil {
		r.log.Error("tool call failed", slog.String("tool", name), slog.Duration("duration", duration), slog.String("error", callErr.Error()))
		return nil, callErr
	}
	r.log.Info("tool call succeeded", slog.String("tool", name), slog.Duration("duration", duration))
	return value, nil
}

func schemaValidationError(name string, result *gojsonschema.Result) *apperr.Error {
	errs := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		errs = append(errs, desc.String())
	}
	e := apperr.Newf(apperr.SchemaValidationError, "invalid input for %s", name)
	for i, msg := range errs {
		e = e.WithMeta(fmt.Sprintf("error_%d", i), msg)
	}
	return e
}
