package models

// Scope names the comment thread an entry message belongs to: the shared
// thread or one of the two per-member threads.
type Scope string

const (
	ScopeShared Scope = "shared"
	ScopeJoJo   Scope = "jojo"
	ScopeDoDo   Scope = "dodo"
)

// ValidScope reports whether s is a known comment scope.
func ValidScope(s Scope) bool {
	return s == ScopeShared || s == ScopeJoJo || s == ScopeDoDo
}

// Scopes lists all comment scopes in a stable order.
func Scopes() []Scope {
	return []Scope{ScopeShared, ScopeJoJo, ScopeDoDo}
}

// ScopeForUser maps an optional member to the thread they author into.
// An empty user writes to the shared thread.
func ScopeForUser(u User) Scope {
	switch u {
	case UserJoJo:
		return ScopeJoJo
	case UserDoDo:
		return ScopeDoDo
	default:
		return ScopeShared
	}
}

// Message is one chat-style comment on an entry. Threads are append-only.
type Message struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Sender    Scope  `json:"sender"`
	CreatedAt int64  `json:"createdAt"` // milliseconds since epoch
}
