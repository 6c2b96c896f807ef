package network

import (
	"fmt"
	"net"
	"os/exec"

	logger "github.com/sirupsen/logrus"
)

// HostRadio watches a Linux network interface. With Manage set it also
// joins and leaves the network through NetworkManager.
type HostRadio struct {
	Interface string
	Manage    bool

	run func(name string, args ...string) error
}

func NewHostRadio(iface string, manage bool) *HostRadio {
	return &HostRadio{
		Interface: iface,
		Manage:    manage,
		run:       runCommand,
	}
}

func runCommand(name string, args ...string) error {
	out, err := exec.Command(name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s failed: %w [%s]", name, err, out)
	}
	return nil
}

func (h *HostRadio) Begin(ssid string, password string) error {
	if !h.Manage {
		return nil
	}
	args := []string{"dev", "wifi", "connect", ssid}
	if password != "" {
		args = append(args, "password", password)
	}
	args = append(args, "ifname", h.Interface)
	return h.run("nmcli", args...)
}

func (h *HostRadio) Disconnect(force bool) error {
	if !h.Manage {
		return nil
	}
	if !force && h.Status() == Disconnected {
		return nil
	}
	return h.run("nmcli", "dev", "disconnect", h.Interface)
}

// Status is Connected once the interface is up with a routable address.
func (h *HostRadio) Status() State {
	iface, err := net.InterfaceByName(h.Interface)
	if err != nil {
		logger.Debugf("No interface [%v]: %v", h.Interface, err)
		return Disconnected
	}
	if iface.Flags&net.FlagUp == 0 {
		return Disconnected
	}
	if h.address(iface) == nil {
		return Connecting
	}
	return Connected
}

func (h *HostRadio) LocalAddress() string {
	iface, err := net.InterfaceByName(h.Interface)
	if err != nil {
		return ""
	}
	ip := h.address(iface)
	if ip == nil {
		return ""
	}
	return ip.String()
}

func (h *HostRadio) address(iface *net.Interface) net.IP {
	addrs, err := iface.Addrs()
	if err != nil {
		return nil
	}
	for _, a := range addrs {
		ipnet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		ip := ipnet.IP
		if ip.IsLinkLocalUnicast() || ip.IsUnspecified() {
			continue
		}
		return ip
	}
	return nil
}

// SimulatedRadio joins after JoinPolls status polls. It is used in test
// mode and by the tests of the sampling loop.
type SimulatedRadio struct {
	JoinPolls int

	state       State
	polls       int
	Begins      int
	Disconnects int
	StatusCalls int
}

func NewSimulatedRadio(joinPolls int) *SimulatedRadio {
	return &SimulatedRadio{JoinPolls: joinPolls}
}

func (s *SimulatedRadio) Begin(ssid string, password string) error {
	s.Begins++
	s.state = Connecting
	s.polls = 0
	return nil
}

func (s *SimulatedRadio) Disconnect(force bool) error {
	s.Disconnects++
	s.state = Disconnected
	return nil
}

func (s *SimulatedRadio) Status() State {
	s.StatusCalls++
	if s.state == Connecting {
		s.polls++
		if s.polls >= s.JoinPolls {
			s.state = Connected
		}
	}
	return s.state
}

// Drop simulates losing the link.
func (s *SimulatedRadio) Drop() {
	s.state = Disconnected
}

func (s *SimulatedRadio) LocalAddress() string {
	if s.state != Connected {
		return ""
	}
	return "192.0.2.10"
}
