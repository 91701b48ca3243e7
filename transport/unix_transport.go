package transport

import (
	"os"

	httperrors "github.com/nczempin/tinyd-go-uring/errors"
)

// NewUnixListener binds a Unix domain socket listener at path.
// A stale socket file left behind by a previous run is removed first.
func NewUnixListener(path string) (*NetListener, error) {
	if info, err := os.Lstat(path); err == nil {
		if info.Mode()&os.ModeSocket == 0 {
			return nil, httperrors.NewTransportError(httperrors.TransportErrorSocketBindFailure, path+" exists and is not a socket", nil)
		}
		os.Remove(path)
	}

	return newNetListener("unix", path)
}
