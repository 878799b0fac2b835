package importer

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/registrar/core/document"
)

func makeZip(t *testing.T, entries map[string]string) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)
	for name, content := range entries {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Store})
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestOrganizeBytes(t *testing.T) {
	data := makeZip(t, map[string]string{
		"Photo/GRW-BCS-2020.jpg":      "jpg",
		"Transcript/GRW-BCS-2020.pdf": "pdf",
		"Unknown/foo.txt":             "?",
	})

	o, err := OrganizeBytes(data, 0)
	require.NoError(t, err)

	assert.Equal(t, []string{"GRW-BCS-2020"}, o.RegistrationIDs())
	assert.Len(t, o.Files["GRW-BCS-2020"], 2)
	assert.Equal(t, []document.File{{Name: "GRW-BCS-2020.jpg", Content: []byte("jpg")}}, o.Files["GRW-BCS-2020"][document.TypePhoto])
	assert.Equal(t, []Unrecognized{{Path: "Unknown/foo.txt", Reason: `unknown document type folder "Unknown"`}}, o.Unrecognized)
}

func TestOrganize_conventions(t *testing.T) {
	data := makeZip(t, map[string]string{
		"export/CERTIFICATES/grw-bcs-2020.pdf": "a", // nested, plural & lower case id
		"export/supporting/GRW-BCS-2020.docx":  "b",
		"export/supporting/GRW-BEE-2021.docx":  "c",
		"Photos/GRW-BEE-2021.png":              "d",
		"Photos/GRW-BEE-2021":                  "no ext",
		"Photos/not-an-id.png":                 "e",
		"GRW-BEE-2021.png":                     "no folder",
		"__MACOSX/Photos/._GRW-BEE-2021.png":   "junk",
		"Photos/big/GRW-BEE-2022.png":          "fine", // type is the parent of the file only
		"Photos/":                              "",
	})

	o, err := OrganizeBytes(data, 0)
	require.NoError(t, err)

	assert.Equal(t, []string{"GRW-BCS-2020", "GRW-BEE-2021"}, o.RegistrationIDs())
	assert.Equal(t, 4, o.FileCount())
	assert.Len(t, o.Files["GRW-BCS-2020"][document.TypeCertificate], 1)
	assert.Len(t, o.Files["GRW-BCS-2020"][document.TypeSupporting], 1)
	assert.Len(t, o.Files["GRW-BEE-2021"][document.TypePhoto], 1)

	paths := make([]string, 0, len(o.Unrecognized))
	for _, u := range o.Unrecognized {
		paths = append(paths, u.Path)
	}
	assert.ElementsMatch(t, []string{
		"Photos/GRW-BEE-2021",
		"Photos/not-an-id.png",
		"GRW-BEE-2021.png",
		"__MACOSX/Photos/._GRW-BEE-2021.png",
		"Photos/big/GRW-BEE-2022.png",
	}, paths)
}

func TestOrganize_entrySize(t *testing.T) {
	data := makeZip(t, map[string]string{
		"Photo/GRW-BCS-2020.jpg":      "0123456789",
		"Transcript/GRW-BCS-2020.pdf": "tiny",
	})

	o, err := OrganizeBytes(data, 5)
	require.NoError(t, err)
	assert.Equal(t, 1, o.FileCount())
	require.Len(t, o.Unrecognized, 1)
	assert.Equal(t, "Photo/GRW-BCS-2020.jpg", o.Unrecognized[0].Path)
}

func TestOrganizeBytes_malformed(t *testing.T) {
	_, err := OrganizeBytes([]byte("PK\x03\x04 definitely not a zip"), 0)
	assert.Equal(t, ErrMalformedZip, errors.Cause(err))

	// corrupt the stored content of a valid archive: the checksum fails when reading
	data := makeZip(t, map[string]string{"Photo/GRW-BCS-2020.jpg": "some photo bytes"})
	corrupted := bytes.Replace(data, []byte("some photo bytes"), []byte("SOME PHOTO BYTES"), 1)
	_, err = OrganizeBytes(corrupted, 0)
	assert.Equal(t, ErrMalformedZip, errors.Cause(err))
}
