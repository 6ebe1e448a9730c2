package logger

const (
	Main      = "main"
	Bootstrap = "bootstrap"
	Pool      = "pool"
	Port      = "port"
	Reflector = "reflector"
	Monitor   = "monitor"

	PortVirtual  = "port.virtual"
	PortAFPacket = "port.afpacket"
	PortPcap     = "port.pcap"
)
