package source

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edusurvey/microagg/pkg/errors"
)

func writeZip(t *testing.T, members map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.zip")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	for name, content := range members {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = io.WriteString(w, content)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return path
}

func writeGzip(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.csv.gz")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := gzip.NewWriter(f)
	_, err = io.WriteString(zw, content)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return path
}

func TestOpenPlain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "input.csv")
	require.NoError(t, os.WriteFile(path, []byte("UF;N\nSP;1\n"), 0o644))

	s, err := Open(path, "")
	require.NoError(t, err)
	defer s.Close()

	data, err := io.ReadAll(s)
	require.NoError(t, err)
	assert.Equal(t, "UF;N\nSP;1\n", string(data))
}

func TestOpenZipPicksLargestMember(t *testing.T) {
	path := writeZip(t, map[string]string{
		"LEIA_ME.txt":   "readme",
		"DADOS/big.csv": strings.Repeat("SP;1\n", 100),
		"small.csv":     "UF;N\n",
	})

	s, err := Open(path, "")
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, "DADOS/big.csv", s.Name())
}

func TestOpenZipPrefersTokenMember(t *testing.T) {
	path := writeZip(t, map[string]string{
		"DADOS/TS_ALUNO.csv":  strings.Repeat("x;1\n", 500),
		"DADOS/TS_ESCOLA.csv": "ID_UF;MEDIA_3EM_LP\n35;600\n",
	})

	s, err := Open(path, "TS_ESCOLA")
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, "DADOS/TS_ESCOLA.csv", s.Name())
}

func TestOpenZipNoEligibleMember(t *testing.T) {
	path := writeZip(t, map[string]string{"LEIA_ME.pdf": "not data"})

	_, err := Open(path, "")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeArchive))
}

func TestZipMemberRewinds(t *testing.T) {
	content := "UF;N\nSP;1\nRJ;2\n"
	path := writeZip(t, map[string]string{"dados.csv": content})

	s, err := Open(path, "")
	require.NoError(t, err)
	defer s.Close()

	first, err := io.ReadAll(s)
	require.NoError(t, err)

	_, err = s.Seek(0, io.SeekStart)
	require.NoError(t, err)

	second, err := io.ReadAll(s)
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
	assert.Equal(t, content, string(second))
}

func TestZipMemberRejectsArbitrarySeek(t *testing.T) {
	path := writeZip(t, map[string]string{"dados.csv": "UF;N\n"})

	s, err := Open(path, "")
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Seek(10, io.SeekStart)
	assert.Error(t, err, "only a rewind to the start is supported")
}

func TestGzipRewinds(t *testing.T) {
	content := "UF;N\nSP;1\n"
	path := writeGzip(t, content)

	s, err := Open(path, "ignored")
	require.NoError(t, err)
	defer s.Close()

	first, err := io.ReadAll(s)
	require.NoError(t, err)
	assert.Equal(t, content, string(first))

	_, err = s.Seek(0, io.SeekStart)
	require.NoError(t, err)

	second, err := io.ReadAll(s)
	require.NoError(t, err)
	assert.Equal(t, content, string(second))
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope.csv"), "")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeFile))
}
