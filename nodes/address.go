package nodes

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// AddressType tells which logical plane an address or a channel serves.
type AddressType uint8

const (
	AddressTypeNone AddressType = iota
	AddressTypeOp
	AddressTypeApp
)

func (t AddressType) String() string {
	switch t {
	case AddressTypeOp:
		return "op"
	case AddressTypeApp:
		return "app"
	default:
		return "none"
	}
}

// Address is a host and port pair tagged with the plane it belongs to.
type Address struct {
	Host Host
	Port int
	Type AddressType
}

// NoAddress is the address of a node plane that is not known.
var NoAddress = Address{Port: -1, Type: AddressTypeNone}

// NewAddress creates an address of the given type.
func NewAddress(host Host, port int, t AddressType) Address {
	return Address{Host: host, Port: port, Type: t}
}

// ParseAddress parses a "host:port" string.
func ParseAddress(hostPort string, t AddressType) (Address, error) {
	host, portStr, err := net.SplitHostPort(hostPort)
	if err != nil {
		return NoAddress, fmt.Errorf("invalid address %q: %w", hostPort, err)
	}

	port, err := strconv.Atoi(portStr)
	if err != nil || port < 0 || port > 65535 {
		return NoAddress, fmt.Errorf("invalid port in address %q", hostPort)
	}

	return Address{Host: Host(host), Port: port, Type: t}, nil
}

func (a Address) HasNoAddress() bool {
	return a.Host == "" && a.Port < 0
}

// HostPort returns the address in a form suitable for net.Dial.
func (a Address) HostPort() string {
	return net.JoinHostPort(string(a.Host), strconv.Itoa(a.Port))
}

// Compare orders addresses by host, then port, then type.
func (a Address) Compare(other Address) int {
	if c := strings.Compare(string(a.Host), string(other.Host)); c != 0 {
		return c
	}

	switch {
	case a.Port < other.Port:
		return -1
	case a.Port > other.Port:
		return 1
	}

	switch {
	case a.Type < other.Type:
		return -1
	case a.Type > other.Type:
		return 1
	}

	return 0
}

func (a Address) String() string {
	if a.HasNoAddress() {
		return "<none>"
	}

	return fmt.Sprintf("%s/%s", a.HostPort(), a.Type)
}
