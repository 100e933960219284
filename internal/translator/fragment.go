package translator

// FragmentKind selects the CTE shape the builder renders for a fragment.
type FragmentKind string

const (
	// FragmentFilter keeps input rows matching Predicate and projects Value.
	FragmentFilter FragmentKind = "filter"

	// FragmentProject rewrites the value column row for row.
	FragmentProject FragmentKind = "project"

	// FragmentOrdSelect selects rows by element position (first, last, skip,
	// take) after re-ranking by the ord column.
	FragmentOrdSelect FragmentKind = "ordselect"

	// FragmentDistinct deduplicates element values per record, keeping the
	// first occurrence's position.
	FragmentDistinct FragmentKind = "distinct"

	// FragmentAggregate collapses element rows to one row per record,
	// LEFT-JOINed against the root population so records with no elements
	// still appear.
	FragmentAggregate FragmentKind = "aggregate"
)

// OrdSpec parameterizes a FragmentOrdSelect.
type OrdSpec struct {
	Kind string // "first", "last", "skip", "take"
	N    int    // for skip and take
}

// Stage is a flatten step: one lateral unnest of an array-valued property.
// Stages are created by the translator when an operation needs one row per
// element; the CTE builder renders them.
type Stage struct {
	Index     int    // global CTE creation order
	Name      string // CTE name
	Source    string // upstream CTE
	Array     string // rendered, normalized array expression over source rows
	SourceOrd bool   // source rows carry an ord column (nested flatten)
}

// Fragment is the translation unit for one promoted AST node. The builder
// renders exactly one CTE per fragment.
type Fragment struct {
	ID    int // position in the fragment list; dependencies never point forward
	Index int // global CTE creation order
	Name  string

	Kind       FragmentKind
	Source     string   // input CTE; "" for fragments over pure literals
	Joins      []string // additional per-record CTEs joined on id
	PerElement bool     // input rows carry an ord column

	Value     string // rendered value expression
	Predicate string // rendered filter condition (filter fragments)
	DropNull  bool   // discard rows whose projected value is NULL
	Ord       *OrdSpec

	IsAggregate    bool
	RequiresUnnest bool // translation of this fragment created flatten stages
	Dependencies   []int
}

// Final describes the assembled statement's terminal SELECT.
type Final struct {
	Source     string // CTE the final projection reads from; "" for literal-only expressions
	Joins      []string
	Value      string
	PerElement bool
	DropNull   bool
}

// Result is the complete output of one translation.
type Result struct {
	Resource  string // root resource type; "" for literal-only expressions
	Table     string
	Root      string // root population CTE name; "" when Resource is ""
	Stages    []Stage
	Fragments []Fragment
	Final     Final
}
