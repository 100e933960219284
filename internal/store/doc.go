// Package store manages database connections and the resource table the
// compiled statements run against.
//
// One Store wraps one database/sql pool for one dialect. The resource table
// layout is fixed: (id, resource_type, resource), one row per resource, the
// full document as JSON in the resource column. Compiled statements are
// read-only; writes happen only through LoadNDJSON and Insert during data
// loading.
//
// SQLite needs a custom driver registration because the REGEXP operator the
// sqlite dialect emits is not built in; see sqlite.go.
package store
