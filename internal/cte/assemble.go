package cte

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/joelmontavon/fhir4ds3-sub006/internal/translator"
)

// AssemblyError reports an internal consistency failure in the CTE graph.
// Valid translator output can never produce one.
type AssemblyError struct {
	Message string
}

func (e *AssemblyError) Error() string {
	return "cte assembly: " + e.Message
}

// AsAssemblyError unwraps err as an *AssemblyError if possible.
func AsAssemblyError(err error) (*AssemblyError, bool) {
	var aerr *AssemblyError
	if errors.As(err, &aerr) {
		return aerr, true
	}
	return nil, false
}

// Assemble topologically orders the CTE nodes and renders the complete
// WITH ... SELECT statement. The final projection always includes the record
// identity column alongside the value column, ordered by identity (and
// element position for flattened results) so result sets are deterministic.
func Assemble(nodes []Node, final translator.Final) (string, error) {
	ordered, err := topoSort(nodes)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	if len(ordered) > 0 {
		sb.WriteString("WITH ")
		for i, n := range ordered {
			if i > 0 {
				sb.WriteString(",\n")
			}
			fmt.Fprintf(&sb, "%s AS (\n  %s\n)", n.Name, n.SQL)
		}
		sb.WriteString("\n")
	}
	sb.WriteString(finalSelect(final))
	return sb.String(), nil
}

func finalSelect(final translator.Final) string {
	if final.Source == "" {
		return fmt.Sprintf("SELECT NULL AS id, %s AS value", final.Value)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s.id AS id, %s AS value FROM %s",
		final.Source, final.Value, final.Source)
	for _, j := range final.Joins {
		fmt.Fprintf(&sb, " JOIN %s ON %s.id = %s.id", j, j, final.Source)
	}
	if final.DropNull {
		fmt.Fprintf(&sb, " WHERE (%s) IS NOT NULL", final.Value)
	}
	if final.PerElement {
		fmt.Fprintf(&sb, " ORDER BY %s.id, %s.ord", final.Source, final.Source)
	} else {
		fmt.Fprintf(&sb, " ORDER BY %s.id", final.Source)
	}
	return sb.String()
}

// topoSort is Kahn's algorithm over node indices. Ready nodes are taken in
// index order, so the output is deterministic and matches creation order for
// valid input. A dependency cycle or a reference to an unknown name is fatal.
func topoSort(nodes []Node) ([]Node, error) {
	byName := make(map[string]int, len(nodes))
	for i, n := range nodes {
		if _, dup := byName[n.Name]; dup {
			return nil, &AssemblyError{Message: fmt.Sprintf("duplicate CTE name %q", n.Name)}
		}
		byName[n.Name] = i
	}

	indegree := make([]int, len(nodes))
	dependents := make([][]int, len(nodes))
	for i, n := range nodes {
		for _, dep := range n.DependsOn {
			j, ok := byName[dep]
			if !ok {
				return nil, &AssemblyError{Message: fmt.Sprintf("%s depends on unknown CTE %q", n.Name, dep)}
			}
			indegree[i]++
			dependents[j] = append(dependents[j], i)
		}
	}

	var ready []int
	for i, deg := range indegree {
		if deg == 0 {
			ready = append(ready, i)
		}
	}

	ordered := make([]Node, 0, len(nodes))
	for len(ready) > 0 {
		sort.Slice(ready, func(a, b int) bool {
			return nodes[ready[a]].Index < nodes[ready[b]].Index
		})
		i := ready[0]
		ready = ready[1:]
		ordered = append(ordered, nodes[i])
		for _, dep := range dependents[i] {
			indegree[dep]--
			if indegree[dep] == 0 {
				ready = append(ready, dep)
			}
		}
	}
	if len(ordered) != len(nodes) {
		return nil, &AssemblyError{Message: "dependency cycle in CTE graph"}
	}
	return ordered, nil
}
