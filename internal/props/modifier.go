package props

// Modifier describes a write applied to a scope chain. With Prepend or
// Append set and a current value present, Value is combined with it using
// Separator.
type Modifier struct {
	Name      string
	Value     string
	Prepend   bool
	Append    bool
	Separator string
}

// Apply performs mods in order, writing like Set.
func (r *Resolver) Apply(scope *Scope, mods ...Modifier) error {
	for _, m := range mods {
		value := m.Value
		if m.Prepend || m.Append {
			current, ok, err := r.Lookup(scope, m.Name)
			if err != nil {
				return err
			}
			if ok {
				if m.Prepend {
					value = current + m.Separator + value
				} else {
					value = value + m.Separator + current
				}
			}
		}
		r.Set(scope, m.Name, value)
	}
	return nil
}
