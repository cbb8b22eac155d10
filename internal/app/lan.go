package app

import "net"

type netInterface interface {
	Flags() net.Flags
	Addrs() ([]net.Addr, error)
}

type interfaceLister interface {
	Interfaces() ([]netInterface, error)
}

type hostInterface struct{ *net.Interface }

func (h hostInterface) Flags() net.Flags { return h.Interface.Flags }

type realNetworkProvider struct{}

func (realNetworkProvider) Interfaces() ([]netInterface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	out := make([]netInterface, 0, len(ifaces))
	for i := range ifaces {
		out = append(out, hostInterface{&ifaces[i]})
	}
	return out, nil
}

// getPreferredIP picks the address voters on the local network can reach:
// the first private IPv4 address, else any non-loopback IPv4 address,
// else "localhost".
func getPreferredIP(lister interfaceLister) string {
	ifaces, err := lister.Interfaces()
	if err != nil {
		return "localhost"
	}

	var fallback net.IP
	for _, iface := range ifaces {
		if iface.Flags()&net.FlagUp == 0 || iface.Flags()&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ip := addrIP(addr).To4()
			if ip == nil || ip.IsLoopback() {
				continue
			}
			if ip.IsPrivate() {
				return ip.String()
			}
			if fallback == nil {
				fallback = ip
			}
		}
	}
	if fallback != nil {
		return fallback.String()
	}
	return "localhost"
}

func addrIP(addr net.Addr) net.IP {
	switch v := addr.(type) {
	case *net.IPNet:
		return v.IP
	case *net.IPAddr:
		return v.IP
	}
	return nil
}
