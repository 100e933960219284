package cte

import (
	"fmt"
	"strings"

	"github.com/joelmontavon/fhir4ds3-sub006/internal/dialect"
	"github.com/joelmontavon/fhir4ds3-sub006/internal/translator"
)

// Node is one named common table expression with declared dependencies.
type Node struct {
	Name      string
	SQL       string
	DependsOn []string
	Index     int // creation order; ties in the topological sort break on it
}

// Build renders every stage and fragment of a translation as a CTE node.
// The root population CTE filters the resource table by type and renames the
// document column to the uniform value column.
func Build(res *translator.Result, d dialect.Dialect) ([]Node, error) {
	if res == nil {
		return nil, &AssemblyError{Message: "nil translation result"}
	}
	var nodes []Node

	if res.Root != "" {
		nodes = append(nodes, Node{
			Name: res.Root,
			SQL: fmt.Sprintf("SELECT id, resource AS value FROM %s WHERE resource_type = %s",
				res.Table, d.QuoteString(res.Resource)),
			Index: 0,
		})
	}

	for _, s := range res.Stages {
		nodes = append(nodes, buildStage(s, d))
	}
	for _, f := range res.Fragments {
		n, err := buildFragment(f, res.Root, d)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

// buildStage renders a flatten stage: a lateral unnest join exposing one row
// per array element with a zero-based ord. The ord ranks by the element's
// true array position (never row delivery order); a nested stage ranks by
// the parent element's ord first, so elements of different parent entries
// never interleave.
func buildStage(s translator.Stage, d dialect.Dialect) Node {
	order := d.UnnestOrdinal("u")
	if s.SourceOrd {
		order = s.Source + ".ord, " + order
	}
	sql := fmt.Sprintf("SELECT %s.id AS id, u.value AS value, %s AS ord FROM %s %s",
		s.Source,
		d.RowNumber(s.Source+".id", order),
		s.Source,
		d.LateralUnnest(s.Array, "u", "value"))
	return Node{Name: s.Name, SQL: sql, DependsOn: []string{s.Source}, Index: s.Index}
}

func buildFragment(f translator.Fragment, root string, d dialect.Dialect) (Node, error) {
	switch f.Kind {
	case translator.FragmentFilter:
		return buildFilter(f), nil
	case translator.FragmentProject:
		return buildProject(f), nil
	case translator.FragmentOrdSelect:
		return buildOrdSelect(f, d)
	case translator.FragmentDistinct:
		return buildDistinct(f, d), nil
	case translator.FragmentAggregate:
		return buildAggregate(f, root), nil
	}
	return Node{}, &AssemblyError{Message: fmt.Sprintf("unknown fragment kind %q", f.Kind)}
}

func buildFilter(f translator.Fragment) Node {
	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s.id AS id, %s AS value", f.Source, f.Value)
	if f.PerElement {
		fmt.Fprintf(&sb, ", %s.ord AS ord", f.Source)
	}
	fmt.Fprintf(&sb, " FROM %s%s WHERE %s", f.Source, joinClause(f.Source, f.Joins), f.Predicate)
	if f.DropNull {
		fmt.Fprintf(&sb, " AND (%s) IS NOT NULL", f.Value)
	}
	return Node{Name: f.Name, SQL: sb.String(), DependsOn: depNames(f), Index: f.Index}
}

func buildProject(f translator.Fragment) Node {
	if f.Source == "" {
		return Node{
			Name:  f.Name,
			SQL:   fmt.Sprintf("SELECT NULL AS id, %s AS value", f.Value),
			Index: f.Index,
		}
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s.id AS id, %s AS value", f.Source, f.Value)
	if f.PerElement {
		fmt.Fprintf(&sb, ", %s.ord AS ord", f.Source)
	}
	fmt.Fprintf(&sb, " FROM %s%s", f.Source, joinClause(f.Source, f.Joins))
	if f.DropNull {
		fmt.Fprintf(&sb, " WHERE (%s) IS NOT NULL", f.Value)
	}
	return Node{Name: f.Name, SQL: sb.String(), DependsOn: depNames(f), Index: f.Index}
}

func buildOrdSelect(f translator.Fragment, d dialect.Dialect) (Node, error) {
	var order, cond string
	switch f.Ord.Kind {
	case "first":
		order, cond = f.Source+".ord", "ord = 0"
	case "last":
		order, cond = f.Source+".ord DESC", "ord = 0"
	case "skip":
		order, cond = f.Source+".ord", fmt.Sprintf("ord >= %d", f.Ord.N)
	case "take":
		order, cond = f.Source+".ord", fmt.Sprintf("ord < %d", f.Ord.N)
	default:
		return Node{}, &AssemblyError{Message: fmt.Sprintf("unknown positional select %q", f.Ord.Kind)}
	}

	var inner strings.Builder
	fmt.Fprintf(&inner, "SELECT %s.id AS id, %s AS value, %s AS ord FROM %s%s",
		f.Source, f.Value, d.RowNumber(f.Source+".id", order), f.Source, joinClause(f.Source, f.Joins))
	if f.DropNull {
		fmt.Fprintf(&inner, " WHERE (%s) IS NOT NULL", f.Value)
	}

	sql := fmt.Sprintf("SELECT id, value, ord FROM (%s) AS ranked WHERE %s", inner.String(), cond)
	return Node{Name: f.Name, SQL: sql, DependsOn: depNames(f), Index: f.Index}, nil
}

// buildDistinct deduplicates element values per record. The first occurrence
// keeps its position; ord is re-ranked to stay dense.
func buildDistinct(f translator.Fragment, d dialect.Dialect) Node {
	var inner strings.Builder
	fmt.Fprintf(&inner, "SELECT %s.id AS id, %s AS value, MIN(%s.ord) AS ord FROM %s%s",
		f.Source, f.Value, f.Source, f.Source, joinClause(f.Source, f.Joins))
	if f.DropNull {
		fmt.Fprintf(&inner, " WHERE (%s) IS NOT NULL", f.Value)
	}
	fmt.Fprintf(&inner, " GROUP BY %s.id, %s", f.Source, f.Value)

	sql := fmt.Sprintf("SELECT id, value, %s AS ord FROM (%s) AS dedup",
		d.RowNumber("id", "ord"), inner.String())
	return Node{Name: f.Name, SQL: sql, DependsOn: depNames(f), Index: f.Index}
}

// buildAggregate collapses element rows to one row per record. The LEFT JOIN
// against the root population keeps records whose collection is empty: their
// COUNT is zero, not a missing row.
func buildAggregate(f translator.Fragment, root string) Node {
	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s.id AS id, %s AS value FROM %s LEFT JOIN %s ON %s.id = %s.id",
		root, f.Value, root, f.Source, f.Source, root)
	for _, j := range f.Joins {
		fmt.Fprintf(&sb, " LEFT JOIN %s ON %s.id = %s.id", j, j, root)
	}
	fmt.Fprintf(&sb, " GROUP BY %s.id", root)

	deps := append([]string{root}, depNames(f)...)
	return Node{Name: f.Name, SQL: sb.String(), DependsOn: dedupe(deps), Index: f.Index}
}

func joinClause(source string, joins []string) string {
	var sb strings.Builder
	for _, j := range joins {
		fmt.Fprintf(&sb, " JOIN %s ON %s.id = %s.id", j, j, source)
	}
	return sb.String()
}

func depNames(f translator.Fragment) []string {
	var deps []string
	if f.Source != "" {
		deps = append(deps, f.Source)
	}
	deps = append(deps, f.Joins...)
	return dedupe(deps)
}

func dedupe(xs []string) []string {
	seen := map[string]bool{}
	out := xs[:0]
	for _, x := range xs {
		if !seen[x] {
			seen[x] = true
			out = append(out, x)
		}
	}
	return out
}
