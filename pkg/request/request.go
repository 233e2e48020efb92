package request

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

// MaxLineBytes caps a single request or header line. Reading stops at the
// first longer line; the lines read before it are still used.
const MaxLineBytes = 64 * 1024

// ErrUnparsable is returned when no usable request line could be read.
var ErrUnparsable = errors.New("unparsable request line")

// Param is one key=value pair from the query string, kept verbatim.
type Param struct {
	Key   string
	Value string
}

// Request is the part of an inbound HTTP request the proxy cares about.
type Request struct {
	Method string
	Target string
	Path   string
	Query  []Param
}

// Cacheable reports whether the request may be looked up in or stored to
// the cache. Requests without a path never touch the cache.
func (r Request) Cacheable() bool {
	return r.Path != ""
}

// Parse reads the head of an HTTP request from r and extracts the request
// target. Only the request line is interpreted; headers are read until the
// blank line and discarded.
func Parse(r io.Reader) (Request, error) {
	lines := readHead(r)
	if len(lines) == 0 {
		return Request{}, ErrUnparsable
	}
	return ParseLine(lines[0])
}

// ParseLine parses a single request line such as "GET /a?b=c HTTP/1.1".
func ParseLine(line string) (Request, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return Request{}, ErrUnparsable
	}

	req := Request{
		Method: fields[0],
		Target: fields[1],
		Path:   fields[1],
	}
	if path, query, found := strings.Cut(fields[1], "?"); found {
		req.Path = path
		req.Query = ParseQuery(query)
	}
	return req, nil
}

// ParseQuery splits a raw query string on '&' and each piece at the first
// '='. Pieces without '=' are skipped. No percent-decoding is applied.
func ParseQuery(query string) []Param {
	var params []Param
	for _, piece := range strings.Split(query, "&") {
		key, value, found := strings.Cut(piece, "=")
		if !found {
			continue
		}
		params = append(params, Param{Key: key, Value: value})
	}
	return params
}

// readHead returns the lines up to (not including) the first empty line.
func readHead(r io.Reader) []string {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), MaxLineBytes)

	var lines []string
	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")
		if line == "" {
			break
		}
		lines = append(lines, line)
	}
	return lines
}
