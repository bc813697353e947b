package callin

import (
	"github.com/Iron-Ham/callin/internal/team"
)

// MethodID identifies a bound base method. The high bit marks a
// constructor join point. Ids are opaque apart from that bit and the
// super-call offset.
type MethodID int32

const constructorBit MethodID = -1 << 31

// ConstructorID returns id with the constructor bit set.
func ConstructorID(id MethodID) MethodID { return id | constructorBit }

// IsConstructor reports whether id denotes a constructor join point.
func (id MethodID) IsConstructor() bool { return id&constructorBit != 0 }

// BaseCallFlags select how CallNext reaches the original method.
type BaseCallFlags int

const (
	// BaseCallPlain calls the original bound method.
	BaseCallPlain BaseCallFlags = 0
	// BaseCallSuper calls the slot of the next more general overload,
	// SuperCallOffset entries after the bound method id.
	BaseCallSuper BaseCallFlags = 2
)

// DefaultSuperCallOffset is the distance between a method's dispatch slot
// and its super-call slot.
const DefaultSuperCallOffset int32 = 1

// String returns the string representation of the flags.
func (f BaseCallFlags) String() string {
	switch f {
	case BaseCallPlain:
		return "plain"
	case BaseCallSuper:
		return "super"
	default:
		return "unknown"
	}
}

// BaseObject is an instance whose original methods can be called by id.
type BaseObject interface {
	CallOrig(id MethodID, args []any) (any, error)
}

// StaticDispatcher calls original static methods. The callin id is the one
// of the innermost team of the chain.
type StaticDispatcher interface {
	CallOrigStatic(callinID int, id MethodID, args []any) (any, error)
}

// ActiveTeam is one entry of an invocation snapshot.
type ActiveTeam struct {
	Team   *team.Team
	Advice Advice
}

// JoinPoint names one base method a team binds, and the callin id the team
// uses for it.
type JoinPoint struct {
	Base     string
	Method   MethodID
	CallinID int
}
