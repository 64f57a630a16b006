package props

// Scope is a node in the caller's override hierarchy. It optionally owns a
// store and links to up to two parents: the lexical Location and the dynamic
// Call scope. A scope without a store delegates every read and write to its
// parents, Location first.
type Scope struct {
	Location *Scope
	Call     *Scope

	store *Table
}

// NewScope returns a scope without a store of its own.
func NewScope(location, call *Scope) *Scope {
	return &Scope{Location: location, Call: call}
}

// NewLocalScope returns a scope with an empty store of its own.
func NewLocalScope(location, call *Scope) *Scope {
	return &Scope{Location: location, Call: call, store: NewTable(nil)}
}

// Store returns the scope's own store, or nil.
func (s *Scope) Store() *Table {
	return s.store
}

// nearestStore returns the first store on the parent chains, Location before
// Call, or nil when there is none.
func (s *Scope) nearestStore() *Table {
	if s == nil {
		return nil
	}
	if s.store != nil {
		return s.store
	}
	if t := s.Location.nearestStore(); t != nil {
		return t
	}
	return s.Call.nearestStore()
}
