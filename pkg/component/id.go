// Package component holds the identifier shared by every collation cache.
package component

// ID uniquely identifies a reporting component (processing plant, workshop,
// work unit processor or endpoint) anywhere in the deployment topology.
type ID string

// IsEmpty reports whether the id carries no value.
func (id ID) IsEmpty() bool {
	return id == ""
}

func (id ID) String() string {
	return string(id)
}
