package domain

import "errors"

// Option is one of the fifteen selectable tokens. Its value is the position on the dominance circle.
type Option int

const (
	Rock Option = iota
	Gun
	Lightning
	Devil
	Dragon
	Water
	Air
	Paper
	Sponge
	Wolf
	Tree
	Human
	Snake
	Scissors
	Fire
)

// OptionCount is the number of positions on the dominance circle.
const OptionCount = 15

// ErrInvalidOption is returned when a name does not match any option.
var ErrInvalidOption = errors.New("invalid option")

var optionNames = [OptionCount]string{
	"Rock",
	"Gun",
	"Lightning",
	"Devil",
	"Dragon",
	"Water",
	"Air",
	"Paper",
	"Sponge",
	"Wolf",
	"Tree",
	"Human",
	"Snake",
	"Scissors",
	"Fire",
}

// AllOptions returns every option in circular order.
func AllOptions() []Option {
	out := make([]Option, OptionCount)
	for i := range out {
		out[i] = Option(i)
	}
	return out
}

// Valid reports whether o is on the circle.
func (o Option) Valid() bool {
	return o >= 0 && o < OptionCount
}

// Index returns the circular position of o.
func (o Option) Index() int {
	return int(o)
}

func (o Option) String() string {
	if !o.Valid() {
		return "Unknown"
	}
	return optionNames[o]
}

// ParseOption maps a wire name ("Rock", "Paper", ...) to its Option. Names are case-sensitive.
func ParseOption(name string) (Option, error) {
	for i, n := range optionNames {
		if n == name {
			return Option(i), nil
		}
	}
	return 0, ErrInvalidOption
}

// MarshalText encodes the option by name.
func (o Option) MarshalText() ([]byte, error) {
	if !o.Valid() {
		return nil, ErrInvalidOption
	}
	return []byte(optionNames[o]), nil
}

// UnmarshalText decodes an option name.
func (o *Option) UnmarshalText(b []byte) error {
	parsed, err := ParseOption(string(b))
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}
