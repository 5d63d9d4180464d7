package source

import (
	"encoding/csv"
	"io"

	"golang.org/x/text/transform"

	"github.com/edusurvey/microagg/pkg/errors"
	"github.com/edusurvey/microagg/pkg/sniff"
)

// ChunkReader streams a delimited file as bounded-size row batches. The
// reader always begins at offset 0 (the stream is rewound on construction),
// making the sniff-then-parse double read an explicit contract rather than
// an accident of stream position.
type ChunkReader struct {
	stream    Stream
	csv       *csv.Reader
	header    []string
	chunkSize int
	rowNum    int
	done      bool
}

// NewChunkReader rewinds the stream, decodes it with the sniffed encoding,
// and consumes the header row. chunkSize is the maximum number of rows
// returned per Next call.
func NewChunkReader(stream Stream, format sniff.Format, chunkSize int) (*ChunkReader, error) {
	if chunkSize <= 0 {
		return nil, errors.New(errors.ErrorTypeConfig, "chunk size must be positive")
	}

	if _, err := stream.Seek(0, io.SeekStart); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to rewind input stream").
			WithDetail("stream", stream.Name())
	}

	decoded := transform.NewReader(stream, format.Encoding.NewDecoder())
	cr := csv.NewReader(decoded)
	cr.Comma = format.Delimiter
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return nil, errors.New(errors.ErrorTypeData, "input stream is empty").
				WithDetail("stream", stream.Name())
		}
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to read header row").
			WithDetail("stream", stream.Name())
	}

	return &ChunkReader{
		stream:    stream,
		csv:       cr,
		header:    header,
		chunkSize: chunkSize,
	}, nil
}

// Header returns the physical header row.
func (r *ChunkReader) Header() []string { return r.header }

// RowsRead returns the number of data rows consumed so far.
func (r *ChunkReader) RowsRead() int { return r.rowNum }

// Next returns the next chunk of at most chunkSize rows. A malformed line
// is skipped, not fatal: one corrupt record must not abort a multi-million
// row file. Next returns io.EOF (with no rows) once the stream is
// exhausted.
func (r *ChunkReader) Next() ([][]string, error) {
	if r.done {
		return nil, io.EOF
	}

	chunk := make([][]string, 0, r.chunkSize)
	for len(chunk) < r.chunkSize {
		row, err := r.csv.Read()
		if err == io.EOF {
			r.done = true
			break
		}
		if err != nil {
			if _, ok := err.(*csv.ParseError); ok {
				continue
			}
			return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to read row").
				WithDetail("stream", r.stream.Name()).
				WithDetail("row", r.rowNum)
		}
		r.rowNum++
		chunk = append(chunk, row)
	}

	if len(chunk) == 0 {
		return nil, io.EOF
	}
	return chunk, nil
}
