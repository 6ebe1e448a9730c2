// Package all links every port driver into the binary.
package all

import (
	_ "github.com/veesix-networks/reflector/pkg/port/afpacket"
	_ "github.com/veesix-networks/reflector/pkg/port/pcapfile"
	_ "github.com/veesix-networks/reflector/pkg/port/vport"
)
