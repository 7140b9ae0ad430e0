package nodes

import "strings"

// Name is the human-readable label of a node.
type Name string

// NoName is the label of a node that has not been named.
const NoName Name = "?"

func (n Name) HasNoName() bool {
	return n == NoName
}

func (n Name) SameAs(name string) bool {
	return string(n) == name
}

func (n Name) Compare(other Name) int {
	return strings.Compare(string(n), string(other))
}

func (n Name) String() string {
	return string(n)
}

// Host is a hostname or an IP address.
type Host string

func (h Host) String() string {
	return string(h)
}
