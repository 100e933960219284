package translator

import (
	"fmt"

	"github.com/joelmontavon/fhir4ds3-sub006/internal/dialect"
	"github.com/joelmontavon/fhir4ds3-sub006/internal/schema"
)

// DefaultTable is the resource table name used when the context does not
// override it. The table holds one row per resource:
// (id, resource_type, resource).
const DefaultTable = "resources"

// Context is the mutable state threaded through one translation. Exactly one
// Context exists per Translate call; it is never shared across concurrent
// translations. The context owns the CTE name counter, so names come out in
// creation order, which is also dependency order.
type Context struct {
	Dialect  dialect.Dialect
	Registry *schema.Registry
	Table    string

	resource  string
	rootName  string
	counter   int
	stages    []Stage
	fragments []Fragment
}

// NewContext builds a fresh translation context.
func NewContext(d dialect.Dialect, reg *schema.Registry) *Context {
	return &Context{Dialect: d, Registry: reg, Table: DefaultTable}
}

func (c *Context) nextName() (string, int) {
	idx := c.counter
	c.counter++
	return fmt.Sprintf("cte_%d", idx), idx
}

// root returns the root population CTE name for the given resource type,
// allocating it on first use. A second, different resource type is an error:
// one statement filters one population.
func (c *Context) root(resource string) (string, error) {
	if c.resource == "" {
		c.resource = resource
		c.rootName, _ = c.nextName()
		return c.rootName, nil
	}
	if c.resource != resource {
		return "", errorf(ErrCodeMultipleResources,
			"expression navigates both %s and %s", c.resource, resource)
	}
	return c.rootName, nil
}

// addStage records a flatten stage reading from source and returns its name.
// sourceOrd marks sources whose rows already carry an element position, so
// the builder can rank nested elements within their parent's order.
func (c *Context) addStage(source, array string, sourceOrd bool) string {
	name, idx := c.nextName()
	c.stages = append(c.stages, Stage{Index: idx, Name: name, Source: source, Array: array, SourceOrd: sourceOrd})
	return name
}

// promote records a fragment, assigning its id, name, and order index.
func (c *Context) promote(f Fragment) Fragment {
	f.ID = len(c.fragments)
	f.Name, f.Index = c.nextName()
	c.fragments = append(c.fragments, f)
	return f
}
