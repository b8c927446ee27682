package regions

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
)

// Kind is the state of a region.
type Kind uint8

// Region kinds.
const (
	KindFree Kind = iota
	KindAllocated
	KindRelocating
)

var kindNames = [...]string{
	KindFree:       "free",
	KindAllocated:  "allocated",
	KindRelocating: "relocating",
}

// ErrUnknownKind is returned when parsing an unknown kind name.
var ErrUnknownKind = errors.New("unknown region kind")

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}

	return fmt.Sprintf("kind(%d)", k)
}

// ParseKind parses a kind name, case-insensitively.
func ParseKind(name string) (Kind, error) {
	for k, kindName := range kindNames {
		if strings.EqualFold(name, kindName) {
			return Kind(k), nil
		}
	}

	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, name)
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}

	*k = parsed

	return nil
}

// Region is a half-open address range [Start, Start+Size).
type Region struct {
	Start      uint64
	Size       uint64
	Kind       Kind
	Generation uint32
}

// End returns the first address past the region.
func (r Region) End() uint64 {
	return r.Start + r.Size
}

// Contains reports whether addr falls inside the region.
func (r Region) Contains(addr uint64) bool {
	return addr >= r.Start && addr-r.Start < r.Size
}

// Overlaps reports whether both regions share at least one address.
func (r Region) Overlaps(other Region) bool {
	return r.Start < other.End() && other.Start < r.End()
}

func (r Region) String() string {
	return fmt.Sprintf("[%#x, %#x) %s %s", r.Start, r.End(), humanize.IBytes(r.Size), r.Kind)
}
