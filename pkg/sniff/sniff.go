// Package sniff infers the physical structure of a raw survey export:
// field delimiter and character encoding. The scan is non-destructive;
// the stream is always repositioned to offset 0 so callers can hand the
// same stream straight to the chunked reader.
package sniff

import (
	"bytes"
	"io"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

const (
	// DefaultDelimiter is used when detection cannot run; INEP exports
	// are overwhelmingly semicolon-separated.
	DefaultDelimiter = ';'

	// maxProbe bounds how many bytes of the first line are inspected.
	maxProbe = 64 * 1024
)

// Format is the sniffed physical structure of one input file.
type Format struct {
	Delimiter    rune
	Encoding     encoding.Encoding
	EncodingName string
}

// ForName returns the encoding for a configured override name. Supported
// names are "latin1" (the INEP default) and "utf-8".
func ForName(name string) (encoding.Encoding, bool) {
	switch name {
	case "latin1", "iso-8859-1":
		return charmap.ISO8859_1, true
	case "utf-8", "utf8":
		return unicode.UTF8, true
	default:
		return nil, false
	}
}

// Detect inspects the first line of r and returns the detected delimiter
// and encoding. The stream position is restored to the start regardless
// of outcome. Read errors degrade to the default format instead of
// failing: a file the sniffer cannot probe is still handed to the parser,
// which reports the real error with full context.
func Detect(r io.ReadSeeker) (Format, error) {
	format := Format{
		Delimiter:    DefaultDelimiter,
		Encoding:     charmap.ISO8859_1,
		EncodingName: "latin1",
	}

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return format, err
	}
	// Position must be restored even on probe errors.
	defer r.Seek(0, io.SeekStart)

	buf := make([]byte, maxProbe)
	n, err := io.ReadFull(r, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return format, nil
	}
	probe := buf[:n]

	if bytes.HasPrefix(probe, []byte{0xEF, 0xBB, 0xBF}) {
		format.Encoding = unicode.UTF8BOM
		format.EncodingName = "utf-8"
	}

	line := probe
	if i := bytes.IndexByte(probe, '\n'); i >= 0 {
		line = probe[:i]
	}

	decoded, err := format.Encoding.NewDecoder().Bytes(line)
	if err != nil {
		return format, nil
	}

	if bytes.Count(decoded, []byte{','}) > bytes.Count(decoded, []byte{';'}) {
		format.Delimiter = ','
	}

	return format, nil
}
