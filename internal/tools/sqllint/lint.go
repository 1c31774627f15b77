package main

import (
	"go/ast"
	"go/parser"
	"go/token"
	"regexp"
	"strconv"
	"strings"
)

var (
	sqlKeywordPattern = regexp.MustCompile(`(?i)^\s*(--sql\s+\S+\s*\n)?\s*(select|insert|update|delete|with)\b`)
	uuidMarkerPattern = regexp.MustCompile(`^--sql [0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)
)

type violation struct {
	file    string
	name    string
	line    int
	message string
}

// query is one SQL string constant found in a file.
type query struct {
	file   string
	name   string
	line   int
	marker string
}

// linter collects violations across files. Markers identify queries in the
// SQL runner's logs, so a marker reused by two queries is reported too.
type linter struct {
	violations []violation
	seen       map[string]query
}

func newLinter() *linter {
	return &linter{seen: map[string]query{}}
}

func (l *linter) lintFile(path string, src any) error {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, src, parser.ParseComments)
	if err != nil {
		return err
	}
	for _, q := range sqlConstants(fset, path, file) {
		l.check(q)
	}
	return nil
}

func (l *linter) check(q query) {
	if !uuidMarkerPattern.MatchString(q.marker) {
		l.violations = append(l.violations, violation{
			file:    q.file,
			line:    q.line,
			name:    q.name,
			message: "missing or invalid --sql <uuid> marker",
		})
		return
	}
	if prev, ok := l.seen[q.marker]; ok {
		l.violations = append(l.violations, violation{
			file:    q.file,
			line:    q.line,
			name:    q.name,
			message: "marker already used by " + prev.name + " at " + prev.file + ":" + strconv.Itoa(prev.line),
		})
		return
	}
	l.seen[q.marker] = q
}

func sqlConstants(fset *token.FileSet, path string, file *ast.File) []query {
	var out []query
	ast.Inspect(file, func(n ast.Node) bool {
		vs, ok := n.(*ast.ValueSpec)
		if !ok {
			return true
		}
		for i, value := range vs.Values {
			bl, ok := value.(*ast.BasicLit)
			if !ok || bl.Kind != token.STRING {
				continue
			}
			raw, err := unquote(bl.Value)
			if err != nil || !sqlKeywordPattern.MatchString(raw) {
				continue
			}
			name := joinNames(vs.Names)
			if i < len(vs.Names) && vs.Names[i] != nil {
				name = vs.Names[i].Name
			}
			out = append(out, query{
				file:   path,
				name:   name,
				line:   fset.Position(bl.Pos()).Line,
				marker: firstLine(raw),
			})
		}
		return true
	})
	return out
}

func firstLine(s string) string {
	s = strings.TrimLeft(s, "\n\r \t")
	if idx := strings.IndexAny(s, "\n\r"); idx >= 0 {
		return strings.TrimSpace(s[:idx])
	}
	return strings.TrimSpace(s)
}

func unquote(v string) (string, error) {
	if len(v) == 0 {
		return v, nil
	}
	if v[0] == '`' {
		return v[1 : len(v)-1], nil
	}
	return strconv.Unquote(v)
}

func joinNames(idents []*ast.Ident) string {
	parts := make([]string, 0, len(idents))
	for _, ident := range idents {
		if ident == nil {
			continue
		}
		parts = append(parts, ident.Name)
	}
	return strings.Join(parts, ",")
}
