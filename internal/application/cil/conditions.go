package cil

import (
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/smilemakc/cil/internal/domain"
	domerrors "github.com/smilemakc/cil/internal/domain/errors"
)

// ConditionEvaluator compiles and caches the boolean expressions attached to
// a conditional_plan's activation/invalidation/entry/exit criteria, so the
// dispatcher can re-evaluate every plan against the current
// market/regime variables on every sweep without recompiling.
type ConditionEvaluator struct {
	mu sync.RWMutex
	compiledCache map[string]*vm.Program
}

// NewConditionEvaluator builds an empty ConditionEvaluator.
func NewConditionEvaluator() *ConditionEvaluator {
	return &ConditionEvaluator{compiledCache: make(map[string]*vm.Program)}
}

// Evaluate compiles (or reuses the cached compilation of) expression and runs
// it against variables, requiring a boolean result.
func (ce *ConditionEvaluator) Evaluate(expression string, variables map[string]any) (bool, error) {
	if expression == "" {
		return false, domerrors.New(domerrors.CodeValidationFailure, "condition expression cannot be empty")
	}

	program, err := ce.getCompiledProgram(expression)
	if err != nil {
		return false, err
	}

	result, err := expr.Run(program, variables)
	if err != nil {
		return ce.handleEvaluationError(expression, err)
	}

	resultBool, ok := result.(bool)
	if !ok {
		return false, domerrors.Newf(domerrors.CodeValidationFailure,
			"condition %q did not evaluate to a boolean, got %T", expression, result)
	}
	return resultBool, nil
}

// EvaluateAll reports whether every criterion in criteria evaluates true
// against variables.
func (ce *ConditionEvaluator) EvaluateAll(criteria []domain.ConditionCriteria, variables map[string]any) (bool, error) {
	for _, c := range criteria {
		ok, err := ce.Evaluate(c.Expression, variables)
		if err != nil {
			return false, domerrors.Wrap(domerrors.CodeValidationFailure, "criterion "+c.Label, err)
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func (ce *ConditionEvaluator) getCompiledProgram(expression string) (*vm.Program, error) {
	ce.mu.RLock()
	program, cached := ce.compiledCache[expression]
	ce.mu.RUnlock()
	if cached {
		return program, nil
	}

	compiled, err := expr.Compile(expression, expr.AsBool())
	if err != nil {
		return nil, domerrors.Wrap(domerrors.CodeValidationFailure, "compile condition "+expression, err)
	}

	ce.mu.Lock()
	ce.compiledCache[expression] = compiled
	ce.mu.Unlock()
	return compiled, nil
}

// handleEvaluationError treats a reference to a not-yet-available variable
// (e.g. a regime signal that hasn't ticked yet) as a false evaluation rather
// than a hard error, since a plan's activation criteria routinely reference
// variables the market feed hasn't produced yet.
func (ce *ConditionEvaluator) handleEvaluationError(expression string, err error) (bool, error) {
	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{"cannot fetch", "undefined", "unknown name", "nil pointer", "not found"} {
		if strings.Contains(msg, pattern) {
			return false, nil
		}
	}
	return false, domerrors.Wrap(domerrors.CodeValidationFailure, "evaluate condition "+expression, err)
}
