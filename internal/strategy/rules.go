package strategy

import (
	"fmt"
	"sort"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/vm"

	bterrors "github.com/ducminhle1904/tick-backtester/internal/errors"
	"github.com/ducminhle1904/tick-backtester/pkg/types"
)

// RuleSet holds the compiled buy and sell rules. Programs are immutable after
// Compile and safe to share between goroutines.
type RuleSet struct {
	buy     *vm.Program
	sell    *vm.Program
	buySrc  string
	sellSrc string
}

// Compile compiles both rule bodies against the rule environment.
// An empty body compiles to a rule that never acts.
func Compile(buySrc, sellSrc string) (*RuleSet, error) {
	buy, err := compileRule(buySrc)
	if err != nil {
		return nil, bterrors.NewRuleCompileError("buy-rule", err)
	}
	sell, err := compileRule(sellSrc)
	if err != nil {
		return nil, bterrors.NewRuleCompileError("sell-rule", err)
	}
	return &RuleSet{buy: buy, sell: sell, buySrc: buySrc, sellSrc: sellSrc}, nil
}

// MustCompile is Compile for rules known at build time
func MustCompile(buySrc, sellSrc string) *RuleSet {
	rs, err := Compile(buySrc, sellSrc)
	if err != nil {
		panic(err)
	}
	return rs
}

// BuySource returns the buy rule text
func (r *RuleSet) BuySource() string { return r.buySrc }

// SellSource returns the sell rule text
func (r *RuleSet) SellSource() string { return r.sellSrc }

func compileRule(src string) (*vm.Program, error) {
	if strings.TrimSpace(src) == "" {
		src = "false"
	}
	checker := &nameChecker{}
	program, err := expr.Compile(src, expr.Env(Env{}), expr.Patch(checker))
	if err != nil {
		return nil, err
	}
	if len(checker.unknown) > 0 {
		sort.Strings(checker.unknown)
		return nil, fmt.Errorf("unknown column(s) %s, expected one of %s",
			strings.Join(checker.unknown, ", "), strings.Join(sortedFieldNames(), ", "))
	}
	return program, nil
}

// columnFuncs take a column name as their first argument
var columnFuncs = map[string]bool{
	"Avg":            true,
	"Highest":        true,
	"Lowest":         true,
	"Lag":            true,
	"Angle":          true,
	"AvgSinceEntry":  true,
	"HighSinceEntry": true,
	"LowSinceEntry":  true,
}

// nameChecker rejects literal column names that do not exist
type nameChecker struct {
	unknown []string
}

func (c *nameChecker) Visit(node *ast.Node) {
	call, ok := (*node).(*ast.CallNode)
	if !ok || len(call.Arguments) == 0 {
		return
	}
	ident, ok := call.Callee.(*ast.IdentifierNode)
	if !ok || !columnFuncs[ident.Value] {
		return
	}
	name, ok := call.Arguments[0].(*ast.StringNode)
	if !ok {
		return
	}
	if _, known := types.ParseField(name.Value); !known {
		c.unknown = append(c.unknown, name.Value)
	}
}

func sortedFieldNames() []string {
	names := types.FieldNames()
	sort.Strings(names)
	return names
}
