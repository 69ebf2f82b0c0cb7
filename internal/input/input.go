// Package input generates request inputs: actors picked from a fixed roster
// and best-effort unique pull request identifiers.
package input

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// Actor is a user the target service knows about once the team is seeded.
type Actor struct {
	ID       string `json:"user_id"`
	Username string `json:"username"`
	Active   bool   `json:"is_active"`
}

// Roster is shared read-only by every virtual user. Do not modify.
var Roster = []Actor{
	{ID: "a12", Username: "Alice", Active: true},
	{ID: "a22", Username: "Bob", Active: true},
	{ID: "a32", Username: "Charlie", Active: true},
	{ID: "a42", Username: "Diana", Active: true},
	{ID: "a52", Username: "Eve", Active: true},
}

// IDs returns the roster's user ids in roster order.
func IDs() []string {
	ids := make([]string, len(Roster))
	for i, a := range Roster {
		ids[i] = a.ID
	}
	return ids
}

// PickActor returns a uniformly random roster entry. Safe for concurrent use.
func PickActor() Actor {
	return Roster[rand.IntN(len(Roster))]
}

// NewIdentifier builds a pull request id from the wall clock, the virtual
// user, its iteration and a random suffix. Uniqueness is likely, not
// guaranteed.
func NewIdentifier(vu, iter int) string {
	return fmt.Sprintf("pr-test-%d-%d-%d-%d", time.Now().UnixMilli(), vu, iter, rand.IntN(1_000_000))
}

// PullRequestName is a human-readable title for a generated pull request.
func PullRequestName() string {
	return fmt.Sprintf("Load Test PR %d", time.Now().UnixMilli())
}
