package server

import (
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/godzie44/go-uring/uring"

	httperrors "github.com/nczempin/tinyd-go-uring/errors"
	"github.com/nczempin/tinyd-go-uring/protocol"
)

var contentTypes = []struct {
	suffix      string
	contentType string
}{
	{".html", "text/html"},
	{".gif", "image/gif"},
	{".jpg", "image/jpeg"},
	{".png", "image/png"},
	{".mpg", "video/mpeg"},
}

// ContentType derives the Content-type header from the file name suffix
func ContentType(filename string) string {
	for _, ct := range contentTypes {
		if strings.HasSuffix(filename, ct.suffix) {
			return ct.contentType
		}
	}
	return "text/plain"
}

// FileReader loads the contents of a static file
type FileReader interface {
	// ReadFile returns exactly size bytes from the start of path
	ReadFile(path string, size int64) ([]byte, error)
}

// OSFileReader reads files with plain read(2) calls
type OSFileReader struct{}

// ReadFile implements FileReader
func (OSFileReader) ReadFile(path string, size int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, httperrors.NewStorageError(path, err)
	}
	defer f.Close()

	buf := make([]byte, size)
	if _, err := io.ReadFull(f, buf); err != nil {
		return nil, httperrors.NewStorageError(path, err)
	}
	return buf, nil
}

// UringFileReader reads files through a single io_uring instance. The ring
// is shared, so reads are serialized.
type UringFileReader struct {
	mu   sync.Mutex
	ring *uring.Ring
}

// NewUringFileReader creates a reader backed by a ring with the given depth
func NewUringFileReader(entries uint32) (*UringFileReader, error) {
	ring, err := uring.New(entries)
	if err != nil {
		return nil, httperrors.NewTransportError(
			httperrors.TransportErrorIoUringInit,
			"failed to initialize io_uring",
			err,
		)
	}
	return &UringFileReader{ring: ring}, nil
}

// ReadFile implements FileReader, issuing positioned reads until size bytes
// have arrived
func (r *UringFileReader) ReadFile(path string, size int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, httperrors.NewStorageError(path, err)
	}
	defer f.Close()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ring == nil {
		return nil, httperrors.NewTransportError(httperrors.TransportErrorIoUringInit, "reader closed", nil)
	}

	buf := make([]byte, size)
	var offset int64
	for offset < size {
		// Queue read operation
		sqe := uring.Read(f.Fd(), buf[offset:], uint64(offset))
		if err := r.ring.QueueSQE(sqe, 0, 0); err != nil {
			return nil, httperrors.NewTransportError(httperrors.TransportErrorIoUringSubmit, "failed to queue read request", err)
		}

		// Submit and wait
		if _, err := r.ring.Submit(); err != nil {
			return nil, httperrors.NewTransportError(httperrors.TransportErrorIoUringSubmit, "failed to submit read request", err)
		}

		cqe, err := r.ring.WaitCQEvents(1)
		if err != nil {
			return nil, httperrors.NewStorageError(path, err)
		}

		if err := cqe.Error(); err != nil {
			r.ring.SeenCQE(cqe)
			return nil, httperrors.NewStorageError(path, err)
		}

		n := int64(cqe.Res)
		r.ring.SeenCQE(cqe)

		// The file shrank after it was stat'ed
		if n == 0 {
			return nil, httperrors.NewStorageError(path, io.ErrUnexpectedEOF)
		}

		offset += n
	}

	return buf, nil
}

// Close releases the ring
func (r *UringFileReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ring == nil {
		return nil
	}
	r.ring.Close()
	r.ring = nil
	return nil
}

// ServeStatic writes the 200 response head for path and, unless isHead is
// set, exactly size bytes of file content. Errors after the head was sent
// are returned for logging only.
func (h *Handler) ServeStatic(w io.Writer, path string, size int64, isHead bool) error {
	resp := protocol.NewResponse(200, "OK").
		AddHeader("Server", h.serverName).
		AddHeader("Content-length", strconv.FormatInt(size, 10)).
		AddHeader("Content-type", ContentType(path))

	if isHead {
		_, err := resp.WriteTo(w)
		return err
	}

	if _, err := w.Write(resp.AppendHead(nil, true)); err != nil {
		return err
	}

	body, err := h.files.ReadFile(path, size)
	if err != nil {
		return err
	}
	_, err = w.Write(body)
	return err
}
