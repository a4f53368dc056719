package types

// Subject is a catalog entry tutors can teach. Subjects are immutable
// once created; there is no update endpoint.
type Subject struct {
	ID   int    `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}
