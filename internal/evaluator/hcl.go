// Package evaluator evaluates the payload of expression tagged property
// values as HCL expressions.
//
// Bindings are exposed as string variables. The functions config(key) and
// env(name) read other properties and environment variables; upper, lower
// and join are available for string handling. Results are converted to
// strings, a null result means the property has no value.
package evaluator

import (
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"

	"github.com/redhatinsights/layerconf/internal/props"
)

// Lookup resolves a fully qualified property key.
type Lookup func(key string) (string, bool, error)

// HCL implements props.Evaluator.
type HCL struct {
	functions map[string]function.Function
}

// New returns an evaluator whose config function resolves keys with lookup.
// A nil lookup makes every config call return null.
func New(lookup Lookup) *HCL {
	return &HCL{
		functions: map[string]function.Function{
			"config": stringFunc("key", func(key string) (cty.Value, error) {
				if lookup == nil {
					return cty.NullVal(cty.String), nil
				}
				v, ok, err := lookup(key)
				if err != nil {
					return cty.NilVal, err
				}
				if !ok {
					return cty.NullVal(cty.String), nil
				}
				return cty.StringVal(v), nil
			}),
			"env": stringFunc("name", func(name string) (cty.Value, error) {
				v, ok := os.LookupEnv(name)
				if !ok {
					return cty.NullVal(cty.String), nil
				}
				return cty.StringVal(v), nil
			}),
			"upper": stdlib.UpperFunc,
			"lower": stdlib.LowerFunc,
			"join":  stdlib.JoinFunc,
		},
	}
}

func stringFunc(param string, impl func(string) (cty.Value, error)) function.Function {
	return function.New(&function.Spec{
		Params: []function.Parameter{{Name: param, Type: cty.String}},
		Type:   function.StaticReturnType(cty.String),
		Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
			return impl(args[0].AsString())
		},
	})
}

// Evaluate implements props.Evaluator.
func (h *HCL) Evaluate(expr string, bindings map[string]string) (string, error) {
	parsed, diags := hclsyntax.ParseExpression([]byte(expr), "layerconf", hcl.Pos{Line: 1, Column: 1})
	if diags.HasErrors() {
		return "", fmt.Errorf("cannot parse expression: %w", diags)
	}

	vars := make(map[string]cty.Value, len(bindings))
	for k, v := range bindings {
		vars[k] = cty.StringVal(v)
	}
	val, diags := parsed.Value(&hcl.EvalContext{Variables: vars, Functions: h.functions})
	if diags.HasErrors() {
		return "", fmt.Errorf("cannot evaluate expression: %w", diags)
	}

	if val.IsNull() {
		return "", props.ErrNullResult
	}
	if !val.IsWhollyKnown() {
		return "", fmt.Errorf("expression %q has no known value", expr)
	}
	str, err := convert.Convert(val, cty.String)
	if err != nil {
		return "", fmt.Errorf("cannot convert result of %q to string: %w", expr, err)
	}
	return str.AsString(), nil
}
