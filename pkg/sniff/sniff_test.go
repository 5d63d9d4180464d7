package sniff

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectSemicolon(t *testing.T) {
	r := bytes.NewReader([]byte("NU_ANO;SG_UF_PROVA;NU_NOTA_MT\n2023;SP;612,3\n"))

	format, err := Detect(r)
	require.NoError(t, err)
	assert.Equal(t, ';', format.Delimiter)
	assert.Equal(t, "latin1", format.EncodingName)
}

func TestDetectComma(t *testing.T) {
	r := bytes.NewReader([]byte("NU_ANO,SG_UF_PROVA,NU_NOTA_MT\n2023,SP,612.3\n"))

	format, err := Detect(r)
	require.NoError(t, err)
	assert.Equal(t, ',', format.Delimiter)
}

// A semicolon-delimited header whose labels contain commas must still
// resolve to semicolon when semicolons are at least as frequent.
func TestDetectCountsOnlyFirstLine(t *testing.T) {
	r := bytes.NewReader([]byte("A;B;C\n1,2,3,4,5,6,7,8\n1,2,3\n"))

	format, err := Detect(r)
	require.NoError(t, err)
	assert.Equal(t, ';', format.Delimiter)
}

func TestDetectUTF8BOM(t *testing.T) {
	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte("ID_UF;MEDIA_3EM_LP\n")...)
	r := bytes.NewReader(data)

	format, err := Detect(r)
	require.NoError(t, err)
	assert.Equal(t, "utf-8", format.EncodingName)
	assert.Equal(t, ';', format.Delimiter)
}

func TestDetectRestoresPosition(t *testing.T) {
	payload := []byte("SG_UF;NU_NOTA_CN\nSP;500\n")
	r := bytes.NewReader(payload)

	// Leave the reader mid-stream before sniffing.
	_, err := r.Seek(5, io.SeekStart)
	require.NoError(t, err)

	_, err = Detect(r)
	require.NoError(t, err)

	rest, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, payload, rest, "stream must be rewound to offset 0")
}

func TestDetectEmptyInputDegradesToDefaults(t *testing.T) {
	format, err := Detect(bytes.NewReader(nil))
	require.NoError(t, err)
	assert.Equal(t, ';', format.Delimiter)
	assert.Equal(t, "latin1", format.EncodingName)
}

func TestDetectLatin1Header(t *testing.T) {
	// "REGIÃO" in ISO 8859-1: 0xC3 is the single-byte Ã.
	header := []byte{'R', 'E', 'G', 'I', 0xC3, 'O', ';', 'U', 'F', '\n'}

	format, err := Detect(bytes.NewReader(header))
	require.NoError(t, err)
	assert.Equal(t, ';', format.Delimiter)
	assert.Equal(t, "latin1", format.EncodingName)
}
