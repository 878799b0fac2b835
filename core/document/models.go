package document

import (
	"path"
	"strings"
	"time"
)

type Type string

const (
	TypePhoto       Type = "PHOTO"
	TypeTranscript  Type = "TRANSCRIPT"
	TypeCertificate Type = "CERTIFICATE"
	TypeSupporting  Type = "SUPPORTING"
)

var Types = []Type{TypePhoto, TypeTranscript, TypeCertificate, TypeSupporting}

// ParseType maps a (case-insensitive, optionally plural) folder or path name to a Type.
func ParseType(s string) (Type, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for _, t := range Types {
		if s == string(t) || s == string(t)+"S" {
			return t, true
		}
	}
	return "", false
}

type Document struct {
	ID          string    `json:"id" db:"id"`
	StudentID   string    `json:"student_id" db:"student_id"`
	Type        Type      `json:"type" db:"type"`
	FileName    string    `json:"file_name" db:"file_name"`
	ContentType string    `json:"content_type" db:"content_type"`
	Size        int64     `json:"size" db:"size"`
	StorageKey  string    `json:"-" db:"storage_key"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"` // UTC
}

// File is an uploaded file, fully read in memory.
type File struct {
	Name        string
	ContentType string
	Content     []byte
}

func (f File) ext() string {
	return strings.ToLower(path.Ext(f.Name))
}

// DetectContentType guesses the content type from the file extension when none was given.
func (f File) DetectContentType() string {
	if f.ContentType != "" && f.ContentType != "application/octet-stream" {
		return f.ContentType
	}
	switch f.ext() {
	case ".pdf":
		return "application/pdf"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".doc":
		return "application/msword"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".txt":
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}

// FileError reports why one file of an upload failed. Index is the position of the file in the upload,
// names may repeat.
type FileError struct {
	Index int    `json:"index"`
	File  string `json:"file"`
	Error string `json:"error"`
}

// UploadError is returned when some files of an upload failed. The other files are kept.
type UploadError struct {
	Failed []FileError
}

func (err *UploadError) Error() string {
	if len(err.Failed) == 1 {
		return "upload failed for " + err.Failed[0].File + ": " + err.Failed[0].Error
	}
	names := make([]string, 0, len(err.Failed))
	for _, f := range err.Failed {
		names = append(names, f.File)
	}
	return "upload failed for " + strings.Join(names, ", ")
}
