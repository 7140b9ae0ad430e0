package nodes

import "fmt"

// ID is a small integer identifying a cluster node. Higher IDs win leader tie-breaks.
type ID int16

// NoID marks a node whose identity is not known yet.
const NoID ID = -1

func (id ID) HasNoID() bool {
	return id == NoID
}

func (id ID) GreaterThan(other ID) bool {
	return id > other
}

// Compare returns -1, 0 or +1 depending on whether id is less, equal or greater than other.
func (id ID) Compare(other ID) int {
	switch {
	case id < other:
		return -1
	case id > other:
		return 1
	default:
		return 0
	}
}

func (id ID) String() string {
	return fmt.Sprintf("%d", id)
}
