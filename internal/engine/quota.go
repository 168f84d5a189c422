package engine

// DefaultMaxSteps is the default rule-attempt quota per top-level
// resolution. It prevents runaway searches (typically mutually recursive
// rules the cycle guard cannot see through fresh bindings) from consuming
// unbounded time.
const DefaultMaxSteps = 10000

// quota counts rule attempts within one resolution.
type quota struct {
	steps int
	limit int
}

// spend consumes one step and reports whether the quota is exceeded.
func (q *quota) spend() bool {
	q.steps++
	return q.steps > q.limit
}
