// package opa provides helpers to evaluate rego policies with the v1 sdk
package opa

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
)

// ErrUndefined is returned when the query produces no value for the input,
// usually because the policy has no default for the queried rule.
var ErrUndefined = errors.New("policy result is undefined")

// PreparedPolicy holds a compiled policy ready for evaluation
type PreparedPolicy struct {
	query rego.PreparedEvalQuery
	name  string
}

// PreparePolicy compiles a policy and query for later evaluation. Compile
// once at startup and reuse the result for every invocation.
func PreparePolicy(ctx context.Context, policy string, query string) (*PreparedPolicy, error) {
	return prepare(ctx, "policy.rego", policy, query)
}

// LoadPolicy reads the rego module at path and prepares query against it.
func LoadPolicy(ctx context.Context, path string, query string) (*PreparedPolicy, error) {
	policy, err := ReadPolicy(path)
	if err != nil {
		return nil, err
	}
	return prepare(ctx, filepath.Base(path), policy, query)
}

func prepare(ctx context.Context, name, policy, query string) (*PreparedPolicy, error) {
	r := rego.New(
		rego.Query(query),
		rego.Module(name, policy),
		rego.SetRegoVersion(ast.RegoV1),
	)

	pq, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare policy %s: %w", name, err)
	}

	return &PreparedPolicy{query: pq, name: name}, nil
}

// Name is the module name the policy was compiled under.
func (p *PreparedPolicy) Name() string {
	return p.name
}

// Evaluate runs the prepared policy against the given input and returns the
// first expression value decoded into T.
func Evaluate[T any](ctx context.Context, pp *PreparedPolicy, input any) (*T, error) {
	rs, err := pp.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return nil, ErrUndefined
	}

	bs, err := json.Marshal(rs[0].Expressions[0].Value)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal policy result: %w", err)
	}

	var out T
	if err := json.Unmarshal(bs, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal policy result: %w", err)
	}

	return &out, nil
}

func ReadPolicy(path string) (string, error) {
	p, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read policy file: %w", err)
	}

	return string(p), nil
}
