package config

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

//go:embed policy.cue
var policySchema string

// ValidationError lists every policy violation.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid policy: " + strings.Join(e.Problems, "; ")
}

func schema(ctx *cue.Context) (cue.Value, error) {
	v := ctx.CompileString(policySchema, cue.Filename("policy.cue"))
	if err := v.Err(); err != nil {
		return cue.Value{}, fmt.Errorf("compile policy schema: %w", err)
	}
	return v.LookupPath(cue.ParsePath("#Policy")), nil
}

// Validate checks p against the policy schema.
func Validate(p Policy) error {
	ctx := cuecontext.New()
	def, err := schema(ctx)
	if err != nil {
		return err
	}
	v := def.Unify(ctx.Encode(p))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return newValidationError(err)
	}
	return nil
}

// LoadPolicyFile reads a CUE policy override and applies it on top of base.
// The file may set any subset of the policy fields; unknown fields and out
// of range values are rejected.
func LoadPolicyFile(path string, base Policy) (Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("read policy file: %w", err)
	}

	ctx := cuecontext.New()
	file := ctx.CompileBytes(data, cue.Filename(path))
	if err := file.Err(); err != nil {
		return Policy{}, newValidationError(err)
	}
	def, err := schema(ctx)
	if err != nil {
		return Policy{}, err
	}
	if err := def.Unify(file).Validate(); err != nil {
		return Policy{}, newValidationError(err)
	}

	var o override
	if err := file.Decode(&o); err != nil {
		return Policy{}, fmt.Errorf("decode policy file: %w", err)
	}
	merged := o.apply(base)
	if err := Validate(merged); err != nil {
		return Policy{}, err
	}
	return merged, nil
}

func newValidationError(err error) *ValidationError {
	var problems []string
	for _, e := range cueerrors.Errors(err) {
		msg := strings.TrimSpace(cueerrors.Details(e, nil))
		problems = append(problems, msg)
	}
	if len(problems) == 0 {
		problems = []string{err.Error()}
	}
	return &ValidationError{Problems: problems}
}

// override holds the fields a policy file sets.
type override struct {
	DefaultDurationMS   *int     `json:"default_duration_ms"`
	TickIntervalMS      *int     `json:"tick_interval_ms"`
	PaginationThreshold *int     `json:"pagination_threshold"`
	SwipeThreshold      *float64 `json:"swipe_threshold"`
	DismissThreshold    *float64 `json:"dismiss_threshold"`
	HoldDelayMS         *int     `json:"hold_delay_ms"`
	PauseOnWidget       *bool    `json:"pause_on_widget"`
	Muted               *bool    `json:"muted"`
	ReelLoop            *bool    `json:"reel_loop"`
}

func (o override) apply(p Policy) Policy {
	setInt(&p.DefaultDurationMS, o.DefaultDurationMS)
	setInt(&p.TickIntervalMS, o.TickIntervalMS)
	setInt(&p.PaginationThreshold, o.PaginationThreshold)
	setInt(&p.HoldDelayMS, o.HoldDelayMS)
	if o.SwipeThreshold != nil {
		p.SwipeThreshold = *o.SwipeThreshold
	}
	if o.DismissThreshold != nil {
		p.DismissThreshold = *o.DismissThreshold
	}
	if o.PauseOnWidget != nil {
		p.PauseOnWidget = *o.PauseOnWidget
	}
	if o.Muted != nil {
		p.Muted = *o.Muted
	}
	if o.ReelLoop != nil {
		p.ReelLoop = *o.ReelLoop
	}
	return p
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}
