package assignment

import (
	"github.com/spaolacci/murmur3"

	"github.com/rafaeljc/valkyrie/internal/experiment"
)

// HashSelector buckets visitors with consistent hashing (Murmur3, 32-bit).
// The same visitor always lands on the same variant of an experiment as long as
// its weight table is unchanged. Nothing is stored.
type HashSelector struct{}

// Select hashes "experimentID_visitorID", maps it to a fraction in [0,1) as
// (hash mod 100)/100 and returns the first variant whose cumulative weight
// fraction exceeds it.
//
// Thread-Safety: stateless.
func (HashSelector) Select(def *experiment.Definition, sc SelectionContext) (Result, error) {
	if sc.VisitorID == "" {
		return Result{}, ErrMissingVisitorID
	}

	// The experiment id salts the hash so that a visitor's bucket in one
	// experiment says nothing about its bucket in another.
	bucket := int(Bucket(def.ID(), sc.VisitorID))

	// bucket/100 < cumulative/100, compared in integers to avoid float error.
	id := walkCumulative(def, func(cumulative int) bool {
		return bucket < cumulative
	})
	return Result{VariantID: id}, nil
}

// Bucket returns the visitor's bucket in [0,100) for an experiment.
func Bucket(experimentID, visitorID string) uint32 {
	return murmur3.Sum32([]byte(experimentID+"_"+visitorID)) % experiment.TotalWeight
}
