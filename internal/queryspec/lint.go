package queryspec

import (
	"fmt"
	"strings"
)

// LintResult lists constructs that compile but lean on lenient behavior.
type LintResult struct {
	// Clean is true when there are no warnings.
	Clean bool

	// Warnings are human-readable, in spec traversal order.
	Warnings []string
}

// Lint reports:
//   - references ("head.column") whose head is not the source table, a
//     relationship table, or a relationship alias. The compiler registers
//     such heads implicitly, so a typo silently becomes a new alias.
//   - through_table relationships whose join_on cannot be split into
//     through-side and target-side pairs. Those compile with every pair
//     applied to both joins.
//
// Lint is a pure function with no side effects.
func Lint(spec *QuerySpec) LintResult {
	l := &linter{declared: map[string]bool{}, warnings: []string{}}
	if spec == nil {
		return LintResult{Clean: true, Warnings: l.warnings}
	}

	l.declared[spec.SourceTable] = true
	l.declare(spec.Fields)

	l.checkFields(spec.Fields, spec.SourceTable, spec.SourceTable)
	if spec.Filter != nil {
		l.checkFilter(spec.Filter)
	}
	for i, o := range spec.OrderBy {
		if o.Field != "" {
			l.checkRef(o.Field, fmt.Sprintf("order_by[%d]", i))
		} else if o.Table != "" && !l.declared[o.Table] {
			l.addWarning("order_by[%d]: table %q is not declared by any relationship; it will be registered implicitly", i, o.Table)
		}
	}

	return LintResult{Clean: len(l.warnings) == 0, Warnings: l.warnings}
}

type linter struct {
	declared map[string]bool
	warnings []string
}

func (l *linter) addWarning(format string, args ...any) {
	l.warnings = append(l.warnings, fmt.Sprintf(format, args...))
}

// declare collects every table and alias the field tree introduces. Heads in
// a bridged join_on count as declared because the bridge target is inferred
// from them.
func (l *linter) declare(fields Fields) {
	for _, f := range fields {
		rel, ok := f.(*Relationship)
		if !ok {
			continue
		}
		for _, name := range []string{rel.ChildTable, rel.LookupTable, rel.ThroughTable, rel.As} {
			if name != "" {
				l.declared[name] = true
			}
		}
		if rel.Bridged() {
			for _, p := range rel.JoinOn {
				l.declared[head(p.Left)] = true
				l.declared[head(p.Right)] = true
			}
		}
		l.declare(rel.Fields)
	}
}

func (l *linter) checkFields(fields Fields, source, parent string) {
	for _, f := range fields {
		rel, ok := f.(*Relationship)
		if !ok {
			continue
		}
		target := rel.ChildTable
		if target == "" {
			target = rel.LookupTable
		}
		if rel.Bridged() {
			target = l.checkBridge(rel, source, parent)
		} else {
			for _, p := range rel.JoinOn {
				l.checkRef(p.Left, "join_on")
				l.checkRef(p.Right, "join_on")
			}
		}
		next := rel.As
		if next == "" {
			next = target
		}
		l.checkFields(rel.Fields, source, next)
	}
}

// checkBridge mirrors the compiler's target inference and returns the
// inferred target ("" when it cannot be inferred).
func (l *linter) checkBridge(rel *Relationship, source, parent string) string {
	if len(rel.JoinOn) == 0 {
		return ""
	}
	var candidates []string
	seen := map[string]bool{source: true, parent: true, rel.ThroughTable: true}
	for _, p := range rel.JoinOn {
		for _, h := range []string{head(p.Left), head(p.Right)} {
			if h != "" && !seen[h] {
				seen[h] = true
				candidates = append(candidates, h)
			}
		}
	}
	target := rel.As
	if len(candidates) == 1 {
		target = candidates[0]
	}
	if target == "" {
		return ""
	}

	throughSide, targetSide := 0, 0
	for _, p := range rel.JoinOn {
		if h1, h2 := head(p.Left), head(p.Right); h1 == target || h2 == target || (rel.As != "" && (h1 == rel.As || h2 == rel.As)) {
			targetSide++
		} else {
			throughSide++
		}
	}
	if throughSide == 0 || targetSide == 0 {
		l.addWarning("through_table %q: join_on cannot be split into through-side and target-side pairs; all pairs apply to both joins", rel.ThroughTable)
	}
	return target
}

func (l *linter) checkFilter(node FilterNode) {
	switch n := node.(type) {
	case Condition:
		l.checkRef(n.Field, "filter")
	case *Combinator:
		for _, c := range n.Conditions {
			l.checkFilter(c)
		}
	}
}

func (l *linter) checkRef(ref, where string) {
	h := head(ref)
	if h == "" || l.declared[h] {
		return
	}
	l.addWarning("%s: %q references undeclared table %q; it will be registered implicitly", where, ref, h)
}

// head returns the part before the first dot, or "" when there is none.
func head(ref string) string {
	h, _, ok := strings.Cut(ref, ".")
	if !ok {
		return ""
	}
	return h
}
