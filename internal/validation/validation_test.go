package validation

import (
	"bytes"
	"image"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "bob@example.com", NormalizeEmail("  Bob@Example.COM "))
	assert.Equal(t, NormalizeEmail("STRASSE@example.com"), NormalizeEmail("strasse@example.com"))
}

func TestValidateEmail(t *testing.T) {
	assert.NoError(t, ValidateEmail("bob@example.com"))
	assert.Error(t, ValidateEmail(""))
	assert.Error(t, ValidateEmail("not-an-email"))
	assert.Error(t, ValidateEmail("Bob <bob@example.com>"))
}

func TestValidateName(t *testing.T) {
	assert.Error(t, ValidateName("album", NormalizeName("   ")))
	assert.NoError(t, ValidateName("album", NormalizeName("  Summer  ")))
	assert.Equal(t, "Summer", NormalizeName("  Summer  "))
}

func TestValidateDescription(t *testing.T) {
	ok := make([]rune, 150)
	for i := range ok {
		ok[i] = 'é'
	}
	assert.NoError(t, ValidateDescription(string(ok)))
	assert.Error(t, ValidateDescription(string(ok)+"x"))
}

func TestValidateMedia(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))))

	mime, err := ValidateMedia(buf.Bytes(), "photo.png", int64(buf.Len()), DefaultMediaConstraints)
	require.NoError(t, err)
	assert.Equal(t, "image/png", mime)

	mime, err = ValidateMedia([]byte{0x00, 0x01, 0x02, 0x03}, "IMG_0001.HEIC", 4, DefaultMediaConstraints)
	require.NoError(t, err)
	assert.Equal(t, "image/heic", mime)

	_, err = ValidateMedia([]byte("%PDF-1.7 hello"), "doc.pdf", 14, DefaultMediaConstraints)
	assert.Error(t, err)

	_, err = ValidateMedia([]byte("plain text"), "notes.txt", 10, DefaultMediaConstraints)
	assert.Error(t, err)

	_, err = ValidateMedia(buf.Bytes(), "photo.png", DefaultMediaConstraints.MaxSize+1, DefaultMediaConstraints)
	assert.Error(t, err)
}
