package proxy

import (
	"io"
	"strconv"
)

const (
	headerContentLength = "Content-Length"
	headerContentType   = "Content-Type"
	headerCache         = "X-Cache"

	contentTypeOctetStream = "application/octet-stream"

	statusLineOK = "HTTP/1.1 200 OK\r\n"
	// errorResponse is written verbatim when the origin cannot be reached:
	// a bare status line, no headers, no body.
	errorResponse = "HTTP/1.1 500 Internal Server Error\r\n\r\n"
)

// responseHead builds the status line and headers for a successful reply.
func responseHead(bodyLen int, status CacheStatus) []byte {
	head := make([]byte, 0, 128)
	head = append(head, statusLineOK...)
	head = appendHeader(head, headerContentLength, strconv.Itoa(bodyLen))
	head = appendHeader(head, headerContentType, contentTypeOctetStream)
	head = appendHeader(head, headerCache, status.String())
	return append(head, "\r\n"...)
}

func appendHeader(b []byte, key, value string) []byte {
	b = append(b, key...)
	b = append(b, ": "...)
	b = append(b, value...)
	return append(b, "\r\n"...)
}

// writeResponse frames body as a 200 response. Head and body are written
// separately, so a failure reports which part did not go out.
func writeResponse(w io.Writer, body []byte, status CacheStatus) error {
	if _, err := w.Write(responseHead(len(body), status)); err != nil {
		return &WriteError{Part: "headers", Err: err}
	}
	if len(body) == 0 {
		return nil
	}
	if _, err := w.Write(body); err != nil {
		return &WriteError{Part: "body", Err: err}
	}
	return nil
}

func writeError(w io.Writer) error {
	if _, err := io.WriteString(w, errorResponse); err != nil {
		return &WriteError{Part: "error status", Err: err}
	}
	return nil
}
