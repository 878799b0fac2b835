package importer

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/registrar/core"
	"github.com/trezcool/registrar/core/document"
)

var ErrMalformedZip = errors.New("malformed zip archive")

// Unrecognized is a ZIP entry that does not follow <DocumentType>/<registrationId>.<ext>.
type Unrecognized struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// Organized holds the files of a ZIP archive by registration ID and document type.
type Organized struct {
	Files        map[string]map[document.Type][]document.File
	Unrecognized []Unrecognized
}

// RegistrationIDs returns the registration IDs found in the archive, sorted.
func (o Organized) RegistrationIDs() []string {
	ids := make([]string, 0, len(o.Files))
	for id := range o.Files {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (o Organized) FileCount() int {
	var n int
	for _, byType := range o.Files {
		for _, files := range byType {
			n += len(files)
		}
	}
	return n
}

func OrganizeBytes(data []byte, maxEntrySize int64) (Organized, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Organized{}, errors.Wrap(ErrMalformedZip, err.Error())
	}
	return Organize(zr, maxEntrySize)
}

// Organize reads every entry of zr. Only the last two segments of an entry path matter, so archives
// zipped from a parent folder work too. An unreadable entry fails the whole archive; entries that do
// not follow the naming convention are reported in Unrecognized. A maxEntrySize <= 0 means no limit.
func Organize(zr *zip.Reader, maxEntrySize int64) (Organized, error) {
	o := Organized{
		Files:        make(map[string]map[document.Type][]document.File),
		Unrecognized: []Unrecognized{},
	}
	skip := func(p, reason string, args ...interface{}) {
		o.Unrecognized = append(o.Unrecognized, Unrecognized{Path: p, Reason: fmt.Sprintf(reason, args...)})
	}

	for _, f := range zr.File {
		name := strings.ReplaceAll(f.Name, `\`, "/")
		if f.FileInfo().IsDir() || strings.HasSuffix(name, "/") {
			continue
		}

		segments := strings.Split(strings.Trim(name, "/"), "/")
		base := segments[len(segments)-1]
		if strings.HasPrefix(base, ".") || segments[0] == "__MACOSX" {
			skip(f.Name, "hidden or system file")
			continue
		}
		if len(segments) < 2 {
			skip(f.Name, "expected <DocumentType>/<registrationId>.<ext>")
			continue
		}
		typ, ok := document.ParseType(segments[len(segments)-2])
		if !ok {
			skip(f.Name, "unknown document type folder %q", segments[len(segments)-2])
			continue
		}
		ext := path.Ext(base)
		if ext == "" {
			skip(f.Name, "missing file extension")
			continue
		}
		regID := core.CleanRegistrationID(strings.TrimSuffix(base, ext))
		if !core.IsRegistrationID(regID) {
			skip(f.Name, "%q is not a registration id", strings.TrimSuffix(base, ext))
			continue
		}
		if maxEntrySize > 0 && f.UncompressedSize64 > uint64(maxEntrySize) {
			skip(f.Name, "file exceeds %d bytes", maxEntrySize)
			continue
		}

		content, err := readEntry(f, maxEntrySize)
		if err != nil {
			return Organized{}, errors.Wrapf(ErrMalformedZip, "reading %s: %v", f.Name, err)
		}

		byType, ok := o.Files[regID]
		if !ok {
			byType = make(map[document.Type][]document.File)
			o.Files[regID] = byType
		}
		byType[typ] = append(byType[typ], document.File{Name: base, Content: content})
	}
	return o, nil
}

func readEntry(f *zip.File, maxEntrySize int64) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	//goland:noinspection GoUnhandledErrorResult
	defer rc.Close()

	var r io.Reader = rc
	if maxEntrySize > 0 {
		r = io.LimitReader(rc, maxEntrySize+1)
	}
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if maxEntrySize > 0 && int64(len(content)) > maxEntrySize {
		return nil, errors.Errorf("entry larger than its header claims")
	}
	return content, nil
}
