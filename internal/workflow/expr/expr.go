// Package expr 实现工作流条件使用的受限表达式语言
//
// 语法只允许：字面量（数字/字符串/布尔）、字段路径（result.output.score 或 [result.status]）、
// 比较运算（== != > >= < <= =~ !~ in）、逻辑运算（&& || !）以及括号。
// 函数调用、算术/位运算和三元运算在编译阶段直接拒绝，表达式永远不会被当作代码执行。
package expr

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/Knetic/govaluate"
)

// ErrInvalidExpression 表达式不合法（语法错误或使用了受限语法）
var ErrInvalidExpression = errors.New("表达式不合法")

// allowedKinds 允许出现的 token 类型
var allowedKinds = map[govaluate.TokenKind]bool{
	govaluate.PREFIX:       true,
	govaluate.NUMERIC:      true,
	govaluate.BOOLEAN:      true,
	govaluate.STRING:       true,
	govaluate.PATTERN:      true,
	govaluate.VARIABLE:     true,
	govaluate.SEPARATOR:    true,
	govaluate.COMPARATOR:   true,
	govaluate.LOGICALOP:    true,
	govaluate.CLAUSE:       true,
	govaluate.CLAUSE_CLOSE: true,
}

// Expression 已编译的表达式
type Expression struct {
	source    string
	evaluable *govaluate.EvaluableExpression
}

// Compile 编译表达式并校验只使用了受限语法
func Compile(source string) (*Expression, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, fmt.Errorf("%w: 表达式不能为空", ErrInvalidExpression)
	}

	rewritten, literals := bracketPaths(source)
	evaluable, err := govaluate.NewEvaluableExpression(rewritten)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidExpression, err)
	}
	if evaluable, err = restoreStringLiterals(evaluable, literals); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidExpression, err)
	}

	for _, token := range evaluable.Tokens() {
		if !allowedKinds[token.Kind] {
			return nil, fmt.Errorf("%w: 不支持的语法 %s (%v)", ErrInvalidExpression, token.Kind.String(), token.Value)
		}
		if token.Kind == govaluate.PREFIX {
			if symbol, _ := token.Value.(string); symbol != "!" && symbol != "-" {
				return nil, fmt.Errorf("%w: 不支持的前缀运算符 %v", ErrInvalidExpression, token.Value)
			}
		}
	}

	return &Expression{source: source, evaluable: evaluable}, nil
}

// MustCompile 编译失败时 panic，仅用于常量表达式
func MustCompile(source string) *Expression {
	e, err := Compile(source)
	if err != nil {
		panic(err)
	}
	return e
}

// String 返回原始表达式
func (e *Expression) String() string {
	return e.source
}

// Paths 返回表达式引用的字段路径
func (e *Expression) Paths() []string {
	return e.evaluable.Vars()
}

// Evaluate 在给定上下文上求值
// 缺失的路径解析为 nil，不视为错误
func (e *Expression) Evaluate(data map[string]any) (any, error) {
	params := make(map[string]any)
	for _, path := range e.evaluable.Vars() {
		params[path] = normalize(Lookup(data, path))
	}

	result, err := e.evaluable.Evaluate(params)
	if err != nil {
		return nil, fmt.Errorf("评估表达式 %q 失败: %w", e.source, err)
	}
	return result, nil
}

// EvaluateBool 求值并按真值规则转换为布尔
func (e *Expression) EvaluateBool(data map[string]any) (bool, error) {
	v, err := e.Evaluate(data)
	if err != nil {
		return false, err
	}
	return Truthy(v), nil
}

// EvaluateKey 求值并转换为 switch 分支键
func (e *Expression) EvaluateKey(data map[string]any) (string, bool, error) {
	v, err := e.Evaluate(data)
	if err != nil {
		return "", false, err
	}
	key, ok := ScalarKey(v)
	return key, ok, nil
}

// Lookup 按点号路径读取嵌套 map 中的值
func Lookup(data map[string]any, path string) any {
	var current any = data
	for _, part := range strings.Split(path, ".") {
		switch v := current.(type) {
		case map[string]any:
			current = v[part]
		case map[string]string:
			current = v[part]
		default:
			return nil
		}
		if current == nil {
			return nil
		}
	}
	return current
}

// Truthy 真值规则：nil、false、0、空字符串与空集合为假
func Truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case float64:
		return val != 0
	case string:
		return val != ""
	case []any:
		return len(val) > 0
	case map[string]any:
		return len(val) > 0
	default:
		return true
	}
}

// ScalarKey 将标量值转换为 switch 分支键，非标量返回 false
func ScalarKey(v any) (string, bool) {
	switch val := normalize(v).(type) {
	case nil:
		return "", false
	case string:
		return val, true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(val), true
	case time.Time:
		return val.UTC().Format(time.RFC3339), true
	default:
		return "", false
	}
}

// normalize govaluate 只对 float64 做数值比较，这里统一数值类型
func normalize(v any) any {
	switch val := v.(type) {
	case int:
		return float64(val)
	case int8:
		return float64(val)
	case int16:
		return float64(val)
	case int32:
		return float64(val)
	case int64:
		return float64(val)
	case uint:
		return float64(val)
	case uint8:
		return float64(val)
	case uint16:
		return float64(val)
	case uint32:
		return float64(val)
	case uint64:
		return float64(val)
	case float32:
		return float64(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalize(item)
		}
		return out
	case []string:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = item
		}
		return out
	default:
		return v
	}
}

// restoreStringLiterals govaluate 会把形如日期的字符串字面量解析成 time.Time，
// 而上下文中的值始终是字符串，这里把 TIME token 还原为原始字面量
func restoreStringLiterals(evaluable *govaluate.EvaluableExpression, literals []string) (*govaluate.EvaluableExpression, error) {
	tokens := evaluable.Tokens()
	rebuilt := make([]govaluate.ExpressionToken, len(tokens))
	copy(rebuilt, tokens)

	changed := false
	index := 0
	for i, token := range rebuilt {
		switch token.Kind {
		case govaluate.STRING, govaluate.PATTERN:
			index++
		case govaluate.TIME:
			if index >= len(literals) {
				return nil, fmt.Errorf("无法还原字符串字面量 %v", token.Value)
			}
			rebuilt[i] = govaluate.ExpressionToken{Kind: govaluate.STRING, Value: literals[index]}
			index++
			changed = true
		}
	}
	if !changed {
		return evaluable, nil
	}
	return govaluate.NewEvaluableExpressionFromTokens(rebuilt)
}

// bracketPaths 把裸露的点号路径改写成 [a.b.c] 变量形式，并按出现顺序返回字符串字面量
// govaluate 会把 a.b 解析为结构体访问器（只允许导出字段），而上下文是 map。
// 方括号前补一个空格，否则 ![ 会被词法分析当成一个运算符
func bracketPaths(source string) (string, []string) {
	var b strings.Builder
	var literals []string
	var literal strings.Builder
	runes := []rune(source)
	inQuote := false
	inBracket := false

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case inQuote:
			b.WriteRune(r)
			if r == '\\' && i+1 < len(runes) {
				i++
				b.WriteRune(runes[i])
				literal.WriteRune(runes[i])
				continue
			}
			// 单双引号都会结束字符串
			if r == '"' || r == '\'' {
				inQuote = false
				literals = append(literals, literal.String())
				literal.Reset()
				continue
			}
			literal.WriteRune(r)
		case inBracket:
			b.WriteRune(r)
			if r == ']' {
				inBracket = false
			}
		case r == '"' || r == '\'':
			inQuote = true
			b.WriteRune(r)
		case r == '[':
			inBracket = true
			b.WriteString(" [")
		case unicode.IsLetter(r) || r == '_':
			j := i
			for j < len(runes) && (unicode.IsLetter(runes[j]) || unicode.IsDigit(runes[j]) || runes[j] == '_' || runes[j] == '.') {
				j++
			}
			ident := string(runes[i:j])
			if strings.Contains(ident, ".") {
				b.WriteString(" [" + ident + "]")
			} else {
				b.WriteString(ident)
			}
			i = j - 1
		case unicode.IsDigit(r):
			j := i
			for j < len(runes) && (unicode.IsDigit(runes[j]) || runes[j] == '.' || runes[j] == 'e' || runes[j] == 'E') {
				j++
			}
			b.WriteString(string(runes[i:j]))
			i = j - 1
		default:
			b.WriteRune(r)
		}
	}
	return b.String(), literals
}
