package source

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	"github.com/edusurvey/microagg/pkg/errors"
	"github.com/edusurvey/microagg/pkg/sniff"
)

func openTemp(t *testing.T, content []byte) Stream {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.csv")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	s, err := Open(path, "")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func latinFormat() sniff.Format {
	return sniff.Format{
		Delimiter:    ';',
		Encoding:     charmap.ISO8859_1,
		EncodingName: "latin1",
	}
}

func TestChunkReaderChunks(t *testing.T) {
	s := openTemp(t, []byte("UF;N\nSP;1\nRJ;2\nMG;3\n"))

	r, err := NewChunkReader(s, latinFormat(), 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"UF", "N"}, r.Header())

	chunk, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"SP", "1"}, {"RJ", "2"}}, chunk)

	chunk, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"MG", "3"}}, chunk)

	_, err = r.Next()
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, 3, r.RowsRead())
}

func TestChunkReaderDecodesLatin1(t *testing.T) {
	// "REGIÃO" with the latin1 single-byte Ã.
	header := []byte{'R', 'E', 'G', 'I', 0xC3, 'O', ';', 'N', '\n', 'S', 'u', 'l', ';', '1', '\n'}
	s := openTemp(t, header)

	r, err := NewChunkReader(s, latinFormat(), 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"REGIÃO", "N"}, r.Header())
}

func TestChunkReaderToleratesMalformedRows(t *testing.T) {
	// Unterminated quote and ragged widths; neither may abort the read.
	s := openTemp(t, []byte("UF;N\nSP;1\n\"bad;2\nRJ;3;extra\n"))

	r, err := NewChunkReader(s, latinFormat(), 10)
	require.NoError(t, err)

	chunk, err := r.Next()
	require.NoError(t, err)
	require.NotEmpty(t, chunk)
	assert.Equal(t, []string{"SP", "1"}, chunk[0])
}

func TestChunkReaderEmptyStream(t *testing.T) {
	s := openTemp(t, nil)

	_, err := NewChunkReader(s, latinFormat(), 10)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeData))
}

func TestChunkReaderRejectsBadChunkSize(t *testing.T) {
	s := openTemp(t, []byte("UF;N\n"))

	_, err := NewChunkReader(s, latinFormat(), 0)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

// Sniffing then reading must see the same bytes: the reader rewinds the
// stream it is handed.
func TestChunkReaderAfterSniff(t *testing.T) {
	s := openTemp(t, []byte("UF;N\nSP;1\n"))

	format, err := sniff.Detect(s)
	require.NoError(t, err)

	r, err := NewChunkReader(s, format, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"UF", "N"}, r.Header())

	chunk, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"SP", "1"}}, chunk)
}
