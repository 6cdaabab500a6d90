package ingest

import (
	"fmt"
	"log/slog"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/opensource-finance/kestrel/internal/domain"
)

// Filter is a compiled CEL predicate applied to each normalized record.
// Records the expression evaluates to false for are excluded from the
// screening set before any analysis runs.
type Filter struct {
	expression string
	program    cel.Program
}

// NewFilter compiles a CEL expression into a reusable filter. The
// expression sees one record at a time and must evaluate to bool.
func NewFilter(expression string) (*Filter, error) {
	if expression == "" {
		return nil, fmt.Errorf("filter expression is required")
	}

	env, err := cel.NewEnv(
		cel.Variable("id", cel.StringType),
		cel.Variable("amount", cel.DoubleType),
		cel.Variable("direction", cel.StringType),
		cel.Variable("tx_type", cel.StringType),
		cel.Variable("account_id", cel.IntType),
		cel.Variable("counterparty_id", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile filter: %w", issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("filter expression must return bool, got %s", ast.OutputType())
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create filter program: %w", err)
	}

	return &Filter{
		expression: expression,
		program:    program,
	}, nil
}

// Expression returns the source expression the filter was compiled
// from.
func (f *Filter) Expression() string {
	return f.expression
}

// Keep reports whether the record passes the filter. Evaluation errors
// fail open: the record stays in the set.
func (f *Filter) Keep(t *domain.Transaction) bool {
	amount, _ := t.Amount.Float64()
	activation := map[string]any{
		"id":              t.ID,
		"amount":          amount,
		"direction":       string(t.Direction),
		"tx_type":         t.Type,
		"account_id":      t.AccountID,
		"counterparty_id": t.CounterpartyID,
	}

	out, _, err := f.program.Eval(activation)
	if err != nil {
		slog.Warn("filter evaluation failed, keeping record",
			"transaction_id", t.ID,
			"error", err)
		return true
	}

	keep, ok := out.(types.Bool)
	if !ok {
		return true
	}
	return bool(keep)
}
