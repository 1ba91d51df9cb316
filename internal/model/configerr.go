package model

import (
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strings"

	"cuelang.org/go/cue"
	cueerrors "cuelang.org/go/cue/errors"
)

// CueErrorDetail describes one field rejected by the configuration schema.
type CueErrorDetail struct {
	Path    string // weaver.kill_grace
	Code    string // one of the codes in detailRules, or validation_error
	Message string
	Pos     CueErrorPosition
	Raw     string
}

type CueErrorPosition struct {
	Filename string
	Line     int
	Column   int
}

func (c CueErrorDetail) Attr(name string) slog.Attr {
	return slog.GroupAttrs(
		name,
		slog.String("code", c.Code),
		slog.String("path", c.Path),
		slog.String("message", c.Message),
		slog.String("file", c.Pos.Filename),
		slog.Int("line", c.Pos.Line),
		slog.Int("column", c.Pos.Column),
	)
}

// detailRules are matched in order against the raw CUE message.
var detailRules = []struct {
	re     *regexp.Regexp
	code   string
	format string
}{
	{regexp.MustCompile(`(?i)not allowed|unknown field`), "unknown_field", "Field %s is not allowed"},
	{regexp.MustCompile(`(?i)incomplete value`), "missing_required", "Field %s is required"},
	{regexp.MustCompile(`(?i)conflicting values|cannot unify|incompatible`), "conflicting_values", "Conflicting values for %s"},
	{regexp.MustCompile(`(?i)invalid value .* \(out of bound`), "out_of_bound", "Field %s is out of range"},
	{regexp.MustCompile(`(?i)does not match`), "invalid_format", "Field %s has invalid format"},
	{regexp.MustCompile(`(?i)expected .* got .*`), "type_mismatch", "Field %s has wrong type"},
}

// CueErrDetails turns a LoadConfig error into one detail per offending
// position. Errors which did not come from CUE validation yield nil.
func CueErrDetails(err error) []CueErrorDetail {
	if err == nil {
		return nil
	}
	var out []CueErrorDetail
	seen := make(map[CueErrorPosition]bool)
	for _, e := range cueerrors.Errors(err) {
		pos, ok := firstPosition(e)
		if !ok || seen[pos] {
			continue
		}
		seen[pos] = true

		format, args := e.Msg()
		d := CueErrorDetail{
			Path: fieldPath(e.Path()),
			Pos:  pos,
			Raw:  fmt.Sprintf(format, args...),
		}
		d.Code, d.Message = "validation_error", d.Raw
		field := d.Path[strings.LastIndexByte(d.Path, '.')+1:]
		for _, r := range detailRules {
			if r.re.MatchString(format) {
				d.Code, d.Message = r.code, fmt.Sprintf(r.format, field)
				break
			}
		}
		if d.Code == "conflicting_values" {
			d.Message += alternatives(schema.LookupPath(cue.ParsePath(d.Path)))
		}
		out = append(out, d)
	}
	return out
}

// alternatives describes the allowed values of a string disjunction such as
// *"stderr" | "stdout" | "discard". Other values yield "".
func alternatives(v cue.Value) string {
	if !v.Exists() {
		return ""
	}
	op, args := v.Expr()
	if op != cue.OrOp {
		return ""
	}
	var values []string
	for _, a := range args {
		if s, err := a.String(); err == nil && !slices.Contains(values, s) {
			values = append(values, s)
		}
	}
	if len(values) < 2 {
		return ""
	}
	msg := fmt.Sprintf(": possible values (%s)", strings.Join(values, ","))
	if d, ok := v.Default(); ok {
		if s, err := d.String(); err == nil {
			msg += fmt.Sprintf(" (default %s)", s)
		}
	}
	return msg
}

func firstPosition(err cueerrors.Error) (CueErrorPosition, bool) {
	for _, p := range cueerrors.Positions(err) {
		if p.Filename() != "" {
			return CueErrorPosition{Filename: p.Filename(), Line: p.Line(), Column: p.Column()}, true
		}
	}
	return CueErrorPosition{}, false
}

// fieldPath drops the leading #Config selector.
func fieldPath(p []string) string {
	if len(p) > 0 && strings.HasPrefix(p[0], "#") {
		p = p[1:]
	}
	return strings.Join(p, ".")
}
