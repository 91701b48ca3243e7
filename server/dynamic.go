package server

import (
	"maps"
	"os"
	"slices"
	"strings"

	httperrors "github.com/nczempin/tinyd-go-uring/errors"
	"github.com/nczempin/tinyd-go-uring/protocol"
	"github.com/nczempin/tinyd-go-uring/transport"
)

// Invocation describes one run of a dynamic-content program
type Invocation struct {
	Path string
	Argv []string

	// Env entries override the server's own environment
	Env map[string]string

	// Stdout receives the program's output; stdin and stderr are inherited
	Stdout *os.File
}

// Spawner starts a program without waiting for it
type Spawner interface {
	// Spawn starts inv and returns the child's pid
	Spawn(inv Invocation) (int, error)
}

// ProcessSpawner starts real child processes and hands them to a Reaper
type ProcessSpawner struct {
	reaper *Reaper
}

// NewProcessSpawner creates a spawner registering children with reaper
func NewProcessSpawner(reaper *Reaper) *ProcessSpawner {
	return &ProcessSpawner{reaper: reaper}
}

// Spawn implements Spawner
func (s *ProcessSpawner) Spawn(inv Invocation) (int, error) {
	argv := inv.Argv
	if len(argv) == 0 {
		argv = []string{inv.Path}
	}

	proc, err := os.StartProcess(inv.Path, argv, &os.ProcAttr{
		Env:   mergeEnv(os.Environ(), inv.Env),
		Files: []*os.File{os.Stdin, inv.Stdout, os.Stderr},
	})
	if err != nil {
		return 0, httperrors.NewSpawnError(inv.Path, err)
	}

	pid := proc.Pid
	if s.reaper != nil {
		s.reaper.Track(proc)
	} else {
		proc.Release()
	}
	return pid, nil
}

// mergeEnv returns ambient with every key in override replaced
func mergeEnv(ambient []string, override map[string]string) []string {
	env := make([]string, 0, len(ambient)+len(override))
	for _, kv := range ambient {
		key, _, _ := strings.Cut(kv, "=")
		if _, ok := override[key]; ok {
			continue
		}
		env = append(env, kv)
	}

	for _, key := range slices.Sorted(maps.Keys(override)) {
		env = append(env, key+"="+override[key])
	}
	return env
}

// ServeDynamic writes the partial 200 head and starts the program at path
// with its stdout attached to conn. The program writes the remaining headers
// and the body itself; the server never waits for it.
func (h *Handler) ServeDynamic(conn transport.Conn, path, query string) (int, error) {
	head := protocol.NewResponse(200, "OK").
		AddHeader("Server", h.serverName).
		AppendHead(nil, false)
	if _, err := conn.Write(head); err != nil {
		return 0, err
	}

	stdout, err := conn.File()
	if err != nil {
		return 0, httperrors.NewSpawnError(path, err)
	}
	defer stdout.Close()

	return h.spawner.Spawn(Invocation{
		Path:   path,
		Argv:   []string{path},
		Env:    map[string]string{"QUERY_STRING": query},
		Stdout: stdout,
	})
}
