package server

import "strings"

// ResolvedTarget is the outcome of mapping a request URI onto the filesystem
type ResolvedTarget struct {
	IsStatic    bool
	Filename    string
	QueryString string
}

// Resolver maps request URIs to files below Root. A URI containing Marker
// anywhere names a dynamic program; every other URI names a static file.
type Resolver struct {
	Root            string
	Marker          string
	DefaultDocument string
}

// Resolve classifies uri and builds the file name. The URI is used as sent:
// no percent-decoding and no dot-segment removal.
func (r Resolver) Resolve(uri string) ResolvedTarget {
	if !strings.Contains(uri, r.Marker) {
		filename := r.Root + uri
		if strings.HasSuffix(uri, "/") {
			filename += r.DefaultDocument
		}
		return ResolvedTarget{IsStatic: true, Filename: filename}
	}

	path, query, _ := strings.Cut(uri, "?")
	return ResolvedTarget{
		Filename:    r.Root + path,
		QueryString: query,
	}
}
