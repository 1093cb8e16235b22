package handlers

import (
	"fmt"
	"mime/multipart"
	"net/http"
	"path/filepath"

	"github.com/google/uuid"
)

// maxUploadMemory bounds how much of a multipart body is held in memory;
// larger files spool to disk.
const maxUploadMemory = 32 << 20

func parseUploadForm(r *http.Request) error {
	return r.ParseMultipartForm(maxUploadMemory)
}

// formFile returns the first uploaded file for the field, or (nil, nil, nil)
// when the field is absent.
func formFile(r *http.Request, field string) (multipart.File, *multipart.FileHeader, error) {
	if r.MultipartForm == nil || len(r.MultipartForm.File[field]) == 0 {
		return nil, nil, nil
	}

	header := r.MultipartForm.File[field][0]
	file, err := header.Open()
	if err != nil {
		return nil, nil, fmt.Errorf("open uploaded file %s: %w", field, err)
	}
	return file, header, nil
}

// assetKey builds a collision-free object key preserving the upload's extension.
func assetKey(prefix, filename string) string {
	return fmt.Sprintf("%s/%s%s", prefix, uuid.NewString(), filepath.Ext(filename))
}

func headerContentType(header *multipart.FileHeader) string {
	if header == nil {
		return ""
	}
	return header.Header.Get("Content-Type")
}
