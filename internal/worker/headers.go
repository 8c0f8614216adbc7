package worker

import (
	"bufio"
	"bytes"
	"io"
	"net/textproto"
)

// readAll drains r fully; used for the small header and full-body sections
// fetched over the IMAP connection.
func readAll(r io.Reader) ([]byte, error) {
	return io.ReadAll(r)
}

// parseHeaderFields parses a raw RFC 822 header block (as returned by
// BODY.PEEK[HEADER.FIELDS (...)], which carries no body after the header
// block) into a flat field map, keyed by canonical header name.
func parseHeaderFields(raw []byte) (map[string]string, error) {
	// textproto.Reader.ReadMIMEHeader wants a trailing blank line; the
	// header-fields fetch already ends with one, but tolerate its absence.
	buf := raw
	if !bytes.HasSuffix(buf, []byte("\r\n\r\n")) {
		buf = append(append([]byte{}, buf...), []byte("\r\n")...)
	}
	tp := textproto.NewReader(bufio.NewReader(bytes.NewReader(buf)))
	hdr, err := tp.ReadMIMEHeader()
	if err != nil && err != io.EOF {
		return nil, err
	}
	out := make(map[string]string, len(hdr))
	for k, v := range hdr {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out, nil
}
