// Package model holds the typed rows of the table. Field tags name the
// stored attributes; key and index attributes are added by package repo.
//
// Optional timestamps are pointers so that an absent attribute stays
// distinguishable from the zero time. Counters are plain integers; an
// absent counter reads as zero.
package model
