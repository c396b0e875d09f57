// Package rule 使用 CEL 表达式评估券的使用条件。
//
// 表达式中可用的变量：user_id、coupon_id、order_amount (均为 int)，结果必须是 bool。
// 例如：order_amount >= 10000
package rule

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"coupon-core/internal/service/coupon/domain"
)

// CELRuleEngine 是 domain.RuleEngine 接口的 CEL 实现，编译结果按表达式缓存
type CELRuleEngine struct {
	env      *cel.Env
	programs sync.Map // rule -> cel.Program
}

// NewCELRuleEngine 创建规则引擎
func NewCELRuleEngine() (*CELRuleEngine, error) {
	env, err := cel.NewEnv(
		cel.Variable("user_id", cel.IntType),
		cel.Variable("coupon_id", cel.IntType),
		cel.Variable("order_amount", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("create cel env: %w", err)
	}
	return &CELRuleEngine{env: env}, nil
}

// Compile 校验表达式，返回可执行的程序
func (e *CELRuleEngine) Compile(rule string) (cel.Program, error) {
	if p, ok := e.programs.Load(rule); ok {
		return p.(cel.Program), nil
	}
	ast, iss := e.env.Compile(rule)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("compile rule %q: %w", rule, iss.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("rule %q must evaluate to bool, got %s", rule, ast.OutputType())
	}
	prg, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("build rule %q: %w", rule, err)
	}
	e.programs.Store(rule, prg)
	return prg, nil
}

// Check 实现了 domain.RuleEngine 接口，只编译不求值
func (e *CELRuleEngine) Check(rule string) error {
	if rule == "" {
		return nil
	}
	_, err := e.Compile(rule)
	return err
}

// Evaluate 实现了 domain.RuleEngine 接口。空规则视为满足。
func (e *CELRuleEngine) Evaluate(rule string, fact domain.Fact) (bool, error) {
	if rule == "" {
		return true, nil
	}
	prg, err := e.Compile(rule)
	if err != nil {
		return false, err
	}
	out, _, err := prg.Eval(map[string]interface{}{
		"user_id":      fact.UserID,
		"coupon_id":    fact.CouponID,
		"order_amount": fact.OrderAmount,
	})
	if err != nil {
		return false, fmt.Errorf("evaluate rule %q: %w", rule, err)
	}
	ok, isBool := out.Value().(bool)
	if !isBool {
		return false, fmt.Errorf("rule %q returned %T", rule, out.Value())
	}
	return ok, nil
}
