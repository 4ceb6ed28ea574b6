package miles

import "errors"

var ErrTeamBitRange = errors.New("team bit index outside pattern")
var ErrDuplicateCode = errors.New("duplicate code id")
var ErrUnknownCode = errors.New("unknown code id")
var ErrEmptyRegistry = errors.New("registry has no codes")

// FrameBits is the length of a MILES code word.
const FrameBits = 11

type Side string

const (
	SideBlufor Side = "blufor"
	SideOpfor  Side = "opfor"
)

// SideFromOpfor maps the persisted boolean form back to a Side.
func SideFromOpfor(opfor bool) Side {
	if opfor {
		return SideOpfor
	}
	return SideBlufor
}

func (s Side) Opfor() bool { return s == SideOpfor }

func (s Side) Toggle() Side {
	if s == SideOpfor {
		return SideBlufor
	}
	return SideOpfor
}

// Code is one named code word. Pattern holds FrameBits 0/1 values; TeamBit is
// the position overwritten with the side bit on every transmission.
type Code struct {
	ID      int
	Name    string
	Pattern []byte
	TeamBit int
}

// Frame is a concrete bit sequence ready for transmission.
type Frame []byte

func (f Frame) String() string {
	out := make([]byte, len(f))
	for i, b := range f {
		out[i] = '0' + b
	}
	return string(out)
}

// Encode copies the code's pattern and overwrites the team bit: 1 for OPFOR,
// 0 for BLUFOR. It never returns partial output.
func Encode(c Code, side Side) (Frame, error) {
	if c.TeamBit < 0 || c.TeamBit >= len(c.Pattern) {
		return nil, ErrTeamBitRange
	}
	f := make(Frame, len(c.Pattern))
	copy(f, c.Pattern)
	if side == SideOpfor {
		f[c.TeamBit] = 1
	} else {
		f[c.TeamBit] = 0
	}
	return f, nil
}

// Registry is an immutable, ordered table of code words. Construction
// validates every entry so Encode cannot fail at transmission time.
type Registry struct {
	codes []Code
	byID  map[int]int // id -> position
}

func NewRegistry(codes []Code) (*Registry, error) {
	if len(codes) == 0 {
		return nil, ErrEmptyRegistry
	}
	r := &Registry{
		codes: make([]Code, len(codes)),
		byID:  make(map[int]int, len(codes)),
	}
	copy(r.codes, codes)
	for i, c := range r.codes {
		if c.TeamBit < 0 || c.TeamBit >= len(c.Pattern) {
			return nil, ErrTeamBitRange
		}
		if _, dup := r.byID[c.ID]; dup {
			return nil, ErrDuplicateCode
		}
		r.byID[c.ID] = i
	}
	return r, nil
}

func (r *Registry) Len() int { return len(r.codes) }

// At returns the code at position i. Positions wrap, so callers can cycle
// with a bare increment.
func (r *Registry) At(i int) Code {
	return r.codes[((i%len(r.codes))+len(r.codes))%len(r.codes)]
}

// IndexByID resolves a persisted protocol id back to a registry position.
func (r *Registry) IndexByID(id int) (int, error) {
	i, ok := r.byID[id]
	if !ok {
		return 0, ErrUnknownCode
	}
	return i, nil
}
