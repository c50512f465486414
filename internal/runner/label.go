package runner

import (
	"regexp"
	"strings"
)

var (
	fromRe      = regexp.MustCompile(`(?i)\sFROM\s`)
	asRe        = regexp.MustCompile(`(?i)\sAS\s`)
	qualifiedRe = regexp.MustCompile(`^"?([A-Za-z_][A-Za-z0-9_]*)"?\."?([A-Za-z_][A-Za-z0-9_]*)"?$`)
)

// LabelColumns rewrites every alias.column projection of a compiled SELECT
// into alias.column AS "alias__column" so that columns from different joined
// tables never share a result name. It returns the rewritten text and the
// label of each projection in order.
//
// Projections that already carry AS keep their label. Anything else is left
// untouched and labelled with its own text. Text that is not a SELECT with a
// FROM clause is returned unchanged with no labels.
func LabelColumns(text string) (string, []string) {
	const head = "SELECT "
	if len(text) < len(head) || !strings.EqualFold(text[:len(head)], head) {
		return text, nil
	}
	loc := fromRe.FindStringIndex(text)
	if loc == nil || loc[0] < len(head) {
		return text, nil
	}

	selectList := text[len(head):loc[0]]
	rest := text[loc[0]:]

	items := strings.Split(selectList, ",")
	out := make([]string, 0, len(items))
	labels := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)

		if asRe.MatchString(item) {
			parts := asRe.Split(item, -1)
			labels = append(labels, strings.Trim(strings.TrimSpace(parts[len(parts)-1]), `"`))
			out = append(out, item)
			continue
		}

		m := qualifiedRe.FindStringSubmatch(item)
		if m == nil {
			labels = append(labels, item)
			out = append(out, item)
			continue
		}
		label := m[1] + "__" + m[2]
		labels = append(labels, label)
		out = append(out, item+` AS "`+label+`"`)
	}

	return text[:len(head)] + strings.Join(out, ", ") + rest, labels
}
