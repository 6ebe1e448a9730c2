//go:build !linux

package mbuf

func mapArena(size int) ([]byte, error) {
	return make([]byte, size), nil
}

func unmapArena([]byte) error {
	return nil
}
