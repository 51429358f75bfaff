package result

// Value is one dimension's value on a single test run. A dimension may
// not apply to a given run (for example fio_mode on a snapshot-restore
// test), so a Value is either present or missing; missing is an
// explicit state, never a sentinel threaded through comparisons.
type Value struct {
	val     string
	present bool
}

// Missing is the zero Value.
var Missing = Value{}

// Val wraps a concrete dimension value.
func Val(s string) Value {
	return Value{val: s, present: true}
}

func (v Value) Present() bool {
	return v.present
}

func (v Value) IsMissing() bool {
	return !v.present
}

// String returns the concrete value, or "n/a" for a missing one.
func (v Value) String() string {
	if !v.present {
		return "n/a"
	}
	return v.val
}
