package protocol

import "fmt"

// Version identifies a revision of the protocol. Peers must agree exactly.
type Version uint32

// CurrentVersion is the revision implemented by this package.
const CurrentVersion Version = 1

func (v Version) String() string {
	return fmt.Sprintf("v%d", uint32(v))
}
