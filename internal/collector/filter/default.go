package filter

import (
	"fmt"
)

// DefaultFilter is the disposition of entities the EntityFilter does not match.
type DefaultFilter int

const (
	Allow DefaultFilter = iota
	Deny
)

// InvalidDefaultFilterError is returned for anything other than "allow" or "deny".
type InvalidDefaultFilterError struct {
	Value string
}

func (err *InvalidDefaultFilterError) Error() string {
	return fmt.Sprintf("invalid default filter '%s'; must be 'deny' or 'allow'", err.Value)
}

func ParseDefaultFilter(input string) (DefaultFilter, error) {
	switch input {
	case "allow":
		return Allow, nil
	case "deny":
		return Deny, nil
	default:
		return Allow, &InvalidDefaultFilterError{Value: input}
	}
}

// Admits combines the policy with the result of EntityFilter.Matches. Under Deny only matches are admitted;
// under Allow only non-matches are.
func (d DefaultFilter) Admits(matched bool) bool {
	if d == Deny {
		return matched
	}
	return !matched
}

func (d DefaultFilter) String() string {
	switch d {
	case Allow:
		return "allow"
	case Deny:
		return "deny"
	default:
		return fmt.Sprintf("DefaultFilter(%d)", int(d))
	}
}

func (d DefaultFilter) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *DefaultFilter) UnmarshalText(text []byte) error {
	parsed, err := ParseDefaultFilter(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
