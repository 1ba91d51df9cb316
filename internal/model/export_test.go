package model

import "cuelang.org/go/cue"

// LogAlternatives renders the allowed values of service.log.
func LogAlternatives() string {
	return alternatives(schema.LookupPath(cue.ParsePath("service.log")))
}

// PoolAlternatives renders the allowed values of pool.size, which is no
// string disjunction.
func PoolAlternatives() string {
	return alternatives(schema.LookupPath(cue.ParsePath("pool.size")))
}
