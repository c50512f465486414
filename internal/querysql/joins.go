package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/specsql/internal/ident"
	"github.com/roach88/specsql/internal/queryspec"
)

func (st *compileState) compileRelationship(rel *queryspec.Relationship, parentAlias string, depth int, path string) error {
	if depth > st.opts.MaxDepth {
		return newError(ErrDepthExceeded, path, "depth %d exceeds maximum %d", depth, st.opts.MaxDepth)
	}
	if rel.As != "" {
		if err := ident.Check(rel.As); err != nil {
			return wrapIdent(err, path+".as")
		}
	}
	if rel.Bridged() {
		return st.compileBridge(rel, parentAlias, depth, path)
	}
	return st.compileDirect(rel, depth, path)
}

// compileDirect emits one JOIN to child_table or lookup_table.
func (st *compileState) compileDirect(rel *queryspec.Relationship, depth int, path string) error {
	target, field := rel.ChildTable, "child_table"
	switch {
	case rel.ChildTable != "" && rel.LookupTable != "":
		return newError(ErrInvalidSpec, path, "child_table and lookup_table are mutually exclusive")
	case rel.ChildTable == "" && rel.LookupTable == "":
		return newError(ErrInvalidSpec, path, "relationship must define child_table, lookup_table or through_table")
	case rel.LookupTable != "":
		target, field = rel.LookupTable, "lookup_table"
	}
	if err := ident.Check(target); err != nil {
		return wrapIdent(err, path+"."+field)
	}
	alias, ok := st.aliases.registerAs(target, rel.As)
	if !ok {
		return newError(ErrIdentifier, path+".as", "alias %q is already in use", rel.As)
	}

	if len(rel.JoinOn) == 0 {
		return newError(ErrMissingJoinCondition, path+".join_on", "relationship to %q has no join_on", target)
	}
	conds, err := st.resolvePairs(rel.JoinOn, path+".join_on")
	if err != nil {
		return err
	}
	if err := st.addJoin(target, alias, conds, path); err != nil {
		return err
	}
	if err := st.countJoins(1, path); err != nil {
		return err
	}
	return st.compileFields(rel.Fields, alias, depth+1, path+".fields")
}

// compileBridge emits a JOIN to the through table and then to the inferred
// target table.
//
// The target is the only join_on head that is not the parent, the source
// table or the through table (or one of their aliases). When zero or several
// heads remain, the relationship's "as" names the target. join_on pairs that
// mention the target go on the second JOIN and the rest on the first; when
// either side would be empty every pair goes on both.
func (st *compileState) compileBridge(rel *queryspec.Relationship, parentAlias string, depth int, path string) error {
	through := rel.ThroughTable
	if err := ident.Check(through); err != nil {
		return wrapIdent(err, path+".through_table")
	}
	throughAlias := st.aliases.register(through, "")

	joinPath := path + ".join_on"
	if len(rel.JoinOn) == 0 {
		return newError(ErrMissingJoinCondition, joinPath, "through_table %q has no join_on", through)
	}

	type headPair struct{ left, right string }
	heads := make([]headPair, 0, len(rel.JoinOn))
	for _, p := range rel.JoinOn {
		lh, _, err := ident.Split(p.Left)
		if err != nil {
			return wrapIdent(err, joinPath)
		}
		rh, _, err := ident.Split(p.Right)
		if err != nil {
			return wrapIdent(err, joinPath)
		}
		heads = append(heads, headPair{lh, rh})
	}

	known := map[string]bool{
		parentAlias:  true,
		st.source:    true,
		st.baseAlias: true,
		through:      true,
		throughAlias: true,
	}
	var candidates []string
	seen := map[string]bool{}
	for _, hp := range heads {
		for _, h := range []string{hp.left, hp.right} {
			if seen[h] || known[h] {
				continue
			}
			seen[h] = true
			if alias, ok := st.aliases.lookup(h); ok && known[alias] {
				continue
			}
			candidates = append(candidates, h)
		}
	}

	var target string
	switch {
	case len(candidates) == 1:
		target = candidates[0]
	case rel.As != "":
		target = rel.As
	default:
		return newError(ErrAmbiguousTarget, path,
			"cannot infer target of through_table %q from join_on heads %s; reference the target table in join_on or set 'as' to the real table name",
			through, describeCandidates(candidates))
	}
	targetAlias, ok := st.aliases.registerAs(target, rel.As)
	if !ok {
		return newError(ErrIdentifier, path+".as", "alias %q is already in use", rel.As)
	}
	isTarget := func(h string) bool { return h == target || h == targetAlias }

	var throughConds, targetConds []string
	for i, p := range rel.JoinOn {
		cond, err := st.resolvePair(p, joinPath)
		if err != nil {
			return err
		}
		hp := heads[i]
		if isTarget(hp.left) || isTarget(hp.right) {
			targetConds = append(targetConds, cond)
		} else {
			throughConds = append(throughConds, cond)
		}
	}
	if len(throughConds) == 0 || len(targetConds) == 0 {
		all := append(append([]string{}, throughConds...), targetConds...)
		throughConds, targetConds = all, all
	}

	if err := st.addJoin(through, throughAlias, throughConds, path); err != nil {
		return err
	}
	if err := st.addJoin(target, targetAlias, targetConds, path); err != nil {
		return err
	}
	if err := st.countJoins(2, path); err != nil {
		return err
	}
	return st.compileFields(rel.Fields, targetAlias, depth+1, path+".fields")
}

func describeCandidates(c []string) string {
	if len(c) == 0 {
		return "(none left)"
	}
	return "[" + strings.Join(c, ", ") + "]"
}

func (st *compileState) resolvePair(p queryspec.JoinPair, path string) (string, error) {
	l, err := st.resolve(p.Left, path)
	if err != nil {
		return "", err
	}
	r, err := st.resolve(p.Right, path)
	if err != nil {
		return "", err
	}
	return l + " = " + r, nil
}

func (st *compileState) resolvePairs(pairs queryspec.JoinOn, path string) ([]string, error) {
	out := make([]string, 0, len(pairs))
	for _, p := range pairs {
		cond, err := st.resolvePair(p, path)
		if err != nil {
			return nil, err
		}
		out = append(out, cond)
	}
	return out, nil
}

func (st *compileState) addJoin(table, alias string, conds []string, path string) error {
	ta, err := st.tableWithAlias(table, alias)
	if err != nil {
		return wrapIdent(err, path)
	}
	st.joins = append(st.joins, fmt.Sprintf(" JOIN %s ON %s", ta, strings.Join(conds, " AND ")))
	return nil
}

// countJoins adds n to the join counter shared by the whole compile call.
func (st *compileState) countJoins(n int, path string) error {
	st.joinCount += n
	if st.joinCount > st.opts.MaxJoins {
		return newError(ErrTooManyJoins, path, "%d joins exceed maximum %d", st.joinCount, st.opts.MaxJoins)
	}
	return nil
}
