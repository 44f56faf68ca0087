package models

import "math"

// User identifies one of the two journal members.
type User string

const (
	UserJoJo User = "jojo"
	UserDoDo User = "dodo"
)

// ValidUser reports whether u names a known member.
func ValidUser(u User) bool {
	return u == UserJoJo || u == UserDoDo
}

// Users lists both members in a stable order.
func Users() []User {
	return []User{UserJoJo, UserDoDo}
}

// DualRating holds one 1-5 rating per member. A missing rating is stored as
// 0 once any rating exists for the key, never as an absent field.
type DualRating struct {
	JoJo int `json:"jojo"`
	DoDo int `json:"dodo"`
}

// ValueFor returns the rating for the given user.
func (d DualRating) ValueFor(u User) int {
	if u == UserDoDo {
		return d.DoDo
	}
	return d.JoJo
}

// SetFor stores value for the given user, leaving the other untouched.
func (d *DualRating) SetFor(u User, value int) {
	if u == UserDoDo {
		d.DoDo = value
		return
	}
	d.JoJo = value
}

// Normalized clamps both values into the 0-5 range, mapping anything
// unusable down to 0.
func (d DualRating) Normalized() DualRating {
	return DualRating{JoJo: normalizeRating(d.JoJo), DoDo: normalizeRating(d.DoDo)}
}

func normalizeRating(v int) int {
	if v < 0 || v > 5 {
		return 0
	}
	return v
}

// ValidRating reports whether v is an acceptable explicit rating value.
func ValidRating(v int) bool {
	return v >= 1 && v <= 5
}

// NormalizeSeconds maps non-finite or negative playback positions to 0 so
// garbage from storage never propagates past a read boundary.
func NormalizeSeconds(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}
