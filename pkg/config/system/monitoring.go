package system

type MonitoringConfig struct {
	ListenAddress string `json:"listen_address,omitempty" yaml:"listen_address,omitempty"`
}
