package solver

import "errors"

// ErrNoOptions is returned when a bookwork check shows no options to pick from
var ErrNoOptions = errors.New("no options to choose from")

// MatchOption returns the index of the first option whose normalised text equals
// the normalised answer. When nothing matches the first option is chosen; this is
// a best-effort pick, not a correctness guarantee.
func MatchOption(options []string, answer string) (index int, matched bool, err error) {
	if len(options) == 0 {
		return 0, false, ErrNoOptions
	}

	want := Normalize(answer)
	for i, opt := range options {
		if Normalize(opt) == want {
			return i, true, nil
		}
	}
	return 0, false, nil
}
