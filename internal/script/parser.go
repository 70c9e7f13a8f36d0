// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package script

import (
	"fmt"
	"strings"
)

// line is one logical (non-blank, non-comment-only) source line, tokenized,
// tagged with its leading-whitespace indent width.
type line struct {
	indent int
	toks   []token
	raw    string
}

// ParseError marks a failure to parse source as opposed to a failure while
// executing already-parsed statements, so callers can classify worker
// failures as "syntax" vs "execution" (spec.md §7).
type ParseError struct {
	err error
}

func (e *ParseError) Error() string { return e.err.Error() }
func (e *ParseError) Unwrap() error { return e.err }

// Parse compiles source into a statement list. It implements the restricted
// grammar documented in SPEC_FULL.md's interpreter section: assignment,
// expressions, list/map literals, if/else, def (inline or indented-block),
// and return.
func Parse(source string) ([]Stmt, error) {
	lines, err := splitLines(source)
	if err != nil {
		return nil, &ParseError{err}
	}
	p := &parser{lines: lines}
	stmts, _, err := p.parseBlock(0, 0)
	if err != nil {
		return nil, &ParseError{err}
	}
	return stmts, nil
}

func splitLines(source string) ([]line, error) {
	var out []line
	for _, raw := range strings.Split(source, "\n") {
		trimmed := strings.TrimLeft(raw, " \t")
		if strings.TrimSpace(trimmed) == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		indent := len(raw) - len(trimmed)
		toks, err := lexLine(trimmed)
		if err != nil {
			return nil, fmt.Errorf("line %q: %w", raw, err)
		}
		out = append(out, line{indent: indent, toks: toks, raw: trimmed})
	}
	return out, nil
}

type parser struct {
	lines []line
}

// parseBlock parses consecutive lines at exactly the given indent, starting
// at index start, stopping at EOF or a line with a lesser indent.
func (p *parser) parseBlock(start, indent int) ([]Stmt, int, error) {
	var stmts []Stmt
	i := start
	for i < len(p.lines) {
		l := p.lines[i]
		if l.indent < indent {
			break
		}
		if l.indent > indent {
			return nil, 0, fmt.Errorf("unexpected indent at %q", l.raw)
		}
		stmt, next, err := p.parseStmt(i)
		if err != nil {
			return nil, 0, err
		}
		stmts = append(stmts, stmt)
		i = next
	}
	return stmts, i, nil
}

func (p *parser) parseStmt(i int) (Stmt, int, error) {
	l := p.lines[i]
	toks := l.toks

	if len(toks) > 0 && toks[0].kind == tokIdent {
		switch toks[0].text {
		case "def":
			return p.parseDef(i)
		case "if":
			return p.parseIf(i)
		case "return":
			rest := toks[1 : len(toks)-1]
			if len(rest) == 0 {
				return &ReturnStmt{}, i + 1, nil
			}
			expr, err := parseExprTokens(rest)
			if err != nil {
				return nil, 0, err
			}
			return &ReturnStmt{Value: expr}, i + 1, nil
		}
	}

	// assignment: IDENT = expr  (only single-identifier targets are
	// supported — matching spec.md's flat-namespace model)
	if len(toks) > 2 && toks[0].kind == tokIdent && toks[1].kind == tokOp && toks[1].text == "=" {
		rhs := toks[2 : len(toks)-1]
		expr, err := parseExprTokens(rhs)
		if err != nil {
			return nil, 0, err
		}
		return &AssignStmt{Target: toks[0].text, Value: expr}, i + 1, nil
	}

	expr, err := parseExprTokens(toks[:len(toks)-1])
	if err != nil {
		return nil, 0, err
	}
	return &ExprStmt{X: expr}, i + 1, nil
}

func (p *parser) parseDef(i int) (Stmt, int, error) {
	l := p.lines[i]
	toks := l.toks
	if len(toks) < 2 || toks[1].kind != tokIdent {
		return nil, 0, fmt.Errorf("def: expected function name in %q", l.raw)
	}
	name := toks[1].text
	j := 2
	if j >= len(toks) || toks[j].text != "(" {
		return nil, 0, fmt.Errorf("def %s: expected '('", name)
	}
	j++
	var params []string
	for j < len(toks) && toks[j].text != ")" {
		if toks[j].kind == tokIdent {
			params = append(params, toks[j].text)
		}
		j++
		if j < len(toks) && toks[j].text == "," {
			j++
		}
	}
	if j >= len(toks) || toks[j].text != ")" {
		return nil, 0, fmt.Errorf("def %s: expected ')'", name)
	}
	j++
	if j >= len(toks) || toks[j].text != ":" {
		return nil, 0, fmt.Errorf("def %s: expected ':'", name)
	}
	j++

	fd := &FuncDef{Name: name, Params: params}

	inline := toks[j : len(toks)-1]
	if len(inline) > 0 {
		stmt, err := parseInlineStmt(inline)
		if err != nil {
			return nil, 0, err
		}
		fd.Body = []Stmt{stmt}
		fd.RawSource = l.raw
		return &FuncDefStmt{Def: fd}, i + 1, nil
	}

	if i+1 >= len(p.lines) || p.lines[i+1].indent <= l.indent {
		return nil, 0, fmt.Errorf("def %s: expected an indented body", name)
	}
	body, next, err := p.parseBlock(i+1, p.lines[i+1].indent)
	if err != nil {
		return nil, 0, err
	}
	fd.Body = body
	fd.RawSource = p.rawRange(i, next)
	return &FuncDefStmt{Def: fd}, next, nil
}

// rawRange reconstructs the original source text (with indentation) of
// lines[start:end], relative to lines[start]'s indent.
func (p *parser) rawRange(start, end int) string {
	base := p.lines[start].indent
	var sb strings.Builder
	for i := start; i < end; i++ {
		if i > start {
			sb.WriteByte('\n')
		}
		l := p.lines[i]
		if l.indent > base {
			sb.WriteString(strings.Repeat(" ", l.indent-base))
		}
		sb.WriteString(l.raw)
	}
	return sb.String()
}

func (p *parser) parseIf(i int) (Stmt, int, error) {
	l := p.lines[i]
	toks := l.toks
	colon := indexOf(toks, ":")
	if colon < 0 {
		return nil, 0, fmt.Errorf("if: expected ':' in %q", l.raw)
	}
	cond, err := parseExprTokens(toks[1:colon])
	if err != nil {
		return nil, 0, err
	}
	stmt := &IfStmt{Cond: cond}

	inline := toks[colon+1 : len(toks)-1]
	next := i + 1
	if len(inline) > 0 {
		s, err := parseInlineStmt(inline)
		if err != nil {
			return nil, 0, err
		}
		stmt.Then = []Stmt{s}
	} else {
		if next >= len(p.lines) || p.lines[next].indent <= l.indent {
			return nil, 0, fmt.Errorf("if: expected an indented body")
		}
		body, n, err := p.parseBlock(next, p.lines[next].indent)
		if err != nil {
			return nil, 0, err
		}
		stmt.Then = body
		next = n
	}

	if next < len(p.lines) && p.lines[next].indent == l.indent {
		el := p.lines[next]
		if len(el.toks) > 0 && el.toks[0].kind == tokIdent && (el.toks[0].text == "else" || el.toks[0].text == "elif") {
			if el.toks[0].text == "elif" {
				elifStmt, n, err := p.parseIf(next)
				if err != nil {
					return nil, 0, err
				}
				stmt.Else = []Stmt{elifStmt}
				next = n
			} else {
				ecolon := indexOf(el.toks, ":")
				if ecolon < 0 {
					return nil, 0, fmt.Errorf("else: expected ':'")
				}
				inlineElse := el.toks[ecolon+1 : len(el.toks)-1]
				if len(inlineElse) > 0 {
					s, err := parseInlineStmt(inlineElse)
					if err != nil {
						return nil, 0, err
					}
					stmt.Else = []Stmt{s}
					next++
				} else {
					if next+1 >= len(p.lines) || p.lines[next+1].indent <= l.indent {
						return nil, 0, fmt.Errorf("else: expected an indented body")
					}
					body, n, err := p.parseBlock(next+1, p.lines[next+1].indent)
					if err != nil {
						return nil, 0, err
					}
					stmt.Else = body
					next = n
				}
			}
		}
	}

	return stmt, next, nil
}

func parseInlineStmt(toks []token) (Stmt, error) {
	full := append(append([]token{}, toks...), token{kind: tokEOF})
	if len(full) > 3 && full[0].kind == tokIdent && full[1].kind == tokOp && full[1].text == "=" {
		expr, err := parseExprTokens(full[2 : len(full)-1])
		if err != nil {
			return nil, err
		}
		return &AssignStmt{Target: full[0].text, Value: expr}, nil
	}
	if len(full) > 0 && full[0].kind == tokIdent && full[0].text == "return" {
		rest := full[1 : len(full)-1]
		if len(rest) == 0 {
			return &ReturnStmt{}, nil
		}
		expr, err := parseExprTokens(rest)
		if err != nil {
			return nil, err
		}
		return &ReturnStmt{Value: expr}, nil
	}
	expr, err := parseExprTokens(full[:len(full)-1])
	if err != nil {
		return nil, err
	}
	return &ExprStmt{X: expr}, nil
}

func indexOf(toks []token, text string) int {
	depth := 0
	for i, t := range toks {
		if t.kind == tokOp {
			switch t.text {
			case "(", "[", "{":
				depth++
			case ")", "]", "}":
				depth--
			}
		}
		if depth == 0 && t.text == text && t.kind == tokOp {
			return i
		}
	}
	return -1
}
