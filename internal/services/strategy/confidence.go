package strategy

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"unicode"

	"FactorLab/internal/domain/models"
)

// DefaultConfidence is returned whenever a formula cannot be evaluated.
const DefaultConfidence = 50.0

// aliases maps short formula names to canonical factor ids.
var aliases = map[string]string{
	"RSI":          "rsi_14",
	"K":            "kd_k",
	"D":            "kd_d",
	"PE":           "pe_ratio",
	"PB":           "pb_ratio",
	"ROE":          "roe",
	"EPS":          "eps",
	"MACD":         "macd",
	"VOL":          "volume_ratio",
	"VOLUME_RATIO": "volume_ratio",
	"FOREIGN":      "foreign_net",
	"TRUST":        "trust_net",
	"DEALER":       "dealer_net",
	"CLOSE":        "close",
	"PRICE":        "close",
	"CCI":          "cci_20",
	"WR":           "williams_r_14",
	"HURST":        "hurst_exponent",
	"ZSCORE":       "zscore_20",
}

// ConfidenceCalculator scores a match from a small arithmetic formula. The grammar is
//
//	expr   = term { ("+" | "-") term }
//	term   = unary { ("*" | "/") unary }
//	unary  = "-" unary | primary
//	primary = number | ident | func "(" expr { "," expr } ")" | "(" expr ")"
//
// with func one of MIN, MAX, ABS.
type ConfidenceCalculator struct{}

func NewConfidenceCalculator() *ConfidenceCalculator { return &ConfidenceCalculator{} }

// Score returns the formula result times 100, clamped to [0,100]. Any failure yields
// DefaultConfidence.
func (c *ConfidenceCalculator) Score(formula string, snap models.FactorSnapshot) float64 {
	score, _ := c.Explain(formula, snap)
	return score
}

// Explain is Score plus the reason a formula fell back to the default.
func (c *ConfidenceCalculator) Explain(formula string, snap models.FactorSnapshot) (float64, error) {
	v, err := EvalFormula(formula, snap)
	if err != nil {
		return DefaultConfidence, err
	}
	return clamp(v*100, 0, 100), nil
}

// EvalFormula evaluates formula against snap without scaling.
func EvalFormula(formula string, snap models.FactorSnapshot) (float64, error) {
	if strings.TrimSpace(formula) == "" {
		return 0, &FormulaEvaluationError{Formula: formula, Msg: "empty formula"}
	}
	toks, err := tokenize(formula)
	if err != nil {
		return 0, err
	}
	p := &parser{formula: formula, toks: toks, snap: snap}
	v, err := p.expr()
	if err != nil {
		return 0, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return 0, p.fail(t, "unexpected "+t.text)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &FormulaEvaluationError{Formula: formula, Msg: "result is not finite"}
	}
	return v, nil
}

// CheckFormula reports syntax errors in formula. Every identifier is bound to 1, so
// failures that depend on factor values are not reported.
func CheckFormula(formula string) error {
	toks, err := tokenize(formula)
	if err != nil {
		return err
	}
	probe := models.FactorSnapshot{}
	for _, t := range toks {
		if t.kind == tokIdent {
			probe[t.text] = 1
		}
	}
	_, err = EvalFormula(formula, probe)
	var fe *FormulaEvaluationError
	if errors.As(err, &fe) && (fe.Msg == "division by zero" || fe.Msg == "result is not finite") {
		return nil
	}
	return err
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

type tokKind int

const (
	tokEOF tokKind = iota
	tokNum
	tokIdent
	tokOp
	tokLParen
	tokRParen
	tokComma
)

type token struct {
	kind tokKind
	text string
	num  float64
	pos  int
}

func tokenize(formula string) ([]token, error) {
	var out []token
	rs := []rune(formula)
	for i := 0; i < len(rs); {
		r := rs[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case unicode.IsDigit(r) || r == '.':
			start := i
			for i < len(rs) && (unicode.IsDigit(rs[i]) || rs[i] == '.') {
				i++
			}
			// exponent
			if i < len(rs) && (rs[i] == 'e' || rs[i] == 'E') {
				j := i + 1
				if j < len(rs) && (rs[j] == '+' || rs[j] == '-') {
					j++
				}
				if j < len(rs) && unicode.IsDigit(rs[j]) {
					for j < len(rs) && unicode.IsDigit(rs[j]) {
						j++
					}
					i = j
				}
			}
			text := string(rs[start:i])
			f, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return nil, &FormulaEvaluationError{Formula: formula, Pos: start, Msg: "bad number " + text}
			}
			out = append(out, token{kind: tokNum, text: text, num: f, pos: start})
		case unicode.IsLetter(r) || r == '_':
			start := i
			for i < len(rs) && (unicode.IsLetter(rs[i]) || unicode.IsDigit(rs[i]) || rs[i] == '_') {
				i++
			}
			out = append(out, token{kind: tokIdent, text: string(rs[start:i]), pos: start})
		case strings.ContainsRune("+-*/", r):
			out = append(out, token{kind: tokOp, text: string(r), pos: i})
			i++
		case r == '(':
			out = append(out, token{kind: tokLParen, text: "(", pos: i})
			i++
		case r == ')':
			out = append(out, token{kind: tokRParen, text: ")", pos: i})
			i++
		case r == ',':
			out = append(out, token{kind: tokComma, text: ",", pos: i})
			i++
		default:
			return nil, &FormulaEvaluationError{Formula: formula, Pos: i, Msg: "unexpected character " + strconv.QuoteRune(r)}
		}
	}
	return append(out, token{kind: tokEOF, text: "end of formula", pos: len(rs)}), nil
}

type parser struct {
	formula string
	toks    []token
	i       int
	snap    models.FactorSnapshot
}

func (p *parser) peek() token { return p.toks[p.i] }

func (p *parser) next() token {
	t := p.toks[p.i]
	if t.kind != tokEOF {
		p.i++
	}
	return t
}

func (p *parser) fail(t token, msg string) error {
	return &FormulaEvaluationError{Formula: p.formula, Pos: t.pos, Msg: msg}
}

func (p *parser) expr() (float64, error) {
	v, err := p.term()
	if err != nil {
		return 0, err
	}
	for {
		t := p.peek()
		if t.kind != tokOp || (t.text != "+" && t.text != "-") {
			return v, nil
		}
		p.next()
		r, err := p.term()
		if err != nil {
			return 0, err
		}
		if t.text == "+" {
			v += r
		} else {
			v -= r
		}
	}
}

func (p *parser) term() (float64, error) {
	v, err := p.unary()
	if err != nil {
		return 0, err
	}
	for {
		t := p.peek()
		if t.kind != tokOp || (t.text != "*" && t.text != "/") {
			return v, nil
		}
		p.next()
		r, err := p.unary()
		if err != nil {
			return 0, err
		}
		if t.text == "*" {
			v *= r
			continue
		}
		if r == 0 {
			return 0, p.fail(t, "division by zero")
		}
		v /= r
	}
}

func (p *parser) unary() (float64, error) {
	if t := p.peek(); t.kind == tokOp && (t.text == "-" || t.text == "+") {
		p.next()
		v, err := p.unary()
		if t.text == "-" {
			v = -v
		}
		return v, err
	}
	return p.primary()
}

func (p *parser) primary() (float64, error) {
	t := p.next()
	switch t.kind {
	case tokNum:
		return t.num, nil
	case tokLParen:
		v, err := p.expr()
		if err != nil {
			return 0, err
		}
		if c := p.next(); c.kind != tokRParen {
			return 0, p.fail(c, "expected )")
		}
		return v, nil
	case tokIdent:
		if p.peek().kind == tokLParen {
			return p.call(t)
		}
		return p.resolve(t)
	}
	return 0, p.fail(t, "unexpected "+t.text)
}

func (p *parser) call(name token) (float64, error) {
	p.next()
	var args []float64
	if p.peek().kind != tokRParen {
		for {
			v, err := p.expr()
			if err != nil {
				return 0, err
			}
			args = append(args, v)
			if p.peek().kind != tokComma {
				break
			}
			p.next()
		}
	}
	if c := p.next(); c.kind != tokRParen {
		return 0, p.fail(c, "expected )")
	}

	switch strings.ToUpper(name.text) {
	case "ABS":
		if len(args) != 1 {
			return 0, p.fail(name, "ABS takes one argument")
		}
		return math.Abs(args[0]), nil
	case "MIN", "MAX":
		if len(args) == 0 {
			return 0, p.fail(name, name.text+" needs arguments")
		}
		v := args[0]
		for _, a := range args[1:] {
			if strings.EqualFold(name.text, "MIN") {
				v = math.Min(v, a)
			} else {
				v = math.Max(v, a)
			}
		}
		return v, nil
	}
	return 0, p.fail(name, "unknown function "+name.text)
}

func (p *parser) resolve(t token) (float64, error) {
	if v, ok := p.snap[t.text]; ok {
		return v, nil
	}
	if v, ok := p.snap[strings.ToLower(t.text)]; ok {
		return v, nil
	}
	if id, ok := aliases[strings.ToUpper(t.text)]; ok {
		if v, ok := p.snap[id]; ok {
			return v, nil
		}
	}
	return 0, p.fail(t, (&UnknownFactorError{FactorID: t.text}).Error())
}
