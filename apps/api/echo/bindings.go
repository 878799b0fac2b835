package echoapi

import (
	"io"
	"mime/multipart"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/bytes"
	"github.com/pkg/errors"

	"github.com/trezcool/registrar/core"
	"github.com/trezcool/registrar/core/document"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return
	}

	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field != "" {
			ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
		}
	}
}

// bodyLimit leaves room for the multipart envelope around the largest accepted file.
func bodyLimit(maxUploadSize int64) string {
	return bytes.Format(maxUploadSize + 1<<20)
}

// readFormFile reads an uploaded file, failing when it is larger than maxSize (if > 0).
func readFormFile(fh *multipart.FileHeader, maxSize int64) ([]byte, error) {
	if maxSize > 0 && fh.Size > maxSize {
		return nil, core.NewValidationError(nil, core.FieldError{
			Field: fh.Filename,
			Error: "file exceeds " + bytes.Format(maxSize),
		})
	}
	f, err := fh.Open()
	if err != nil {
		return nil, errors.Wrapf(err, "opening %q", fh.Filename)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	return data, errors.Wrapf(err, "reading %q", fh.Filename)
}

// bindFiles reads the files of the `files` multipart field.
// Sizes are checked per file by the document service.
func bindFiles(ctx echo.Context) ([]document.File, error) {
	form, err := ctx.MultipartForm()
	if err != nil {
		return nil, core.NewValidationError(nil, core.FieldError{Field: "files", Error: "expected a multipart form"})
	}
	headers := form.File["files"]
	files := make([]document.File, 0, len(headers))
	for _, fh := range headers {
		data, err := readFormFile(fh, 0)
		if err != nil {
			return nil, err
		}
		files = append(files, document.File{
			Name:        fh.Filename,
			ContentType: fh.Header.Get(echo.HeaderContentType),
			Content:     data,
		})
	}
	return files, nil
}
