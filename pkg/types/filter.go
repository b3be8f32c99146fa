package types

// Filter decides whether a container takes part in an update run.
//
// Parameters:
//   - c: Container to evaluate.
//
// Returns:
//   - bool: True if the container passes the filter, false otherwise.
type Filter func(FilterableContainer) bool
