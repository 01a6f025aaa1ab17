package utils

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var ErrUnsupportedVideo = errors.New("unsupported video file")

// VideoStore persists an uploaded video and returns the URL it is served at.
type VideoStore interface {
	Upload(ctx context.Context, fileHeader *multipart.FileHeader, key string) (string, error)
}

var videoExtensions = map[string]bool{
	".mp4":  true,
	".mov":  true,
	".webm": true,
	".m4v":  true,
}

// CheckVideo rejects files that are too large or not a known video format.
func CheckVideo(fileHeader *multipart.FileHeader, maxBytes int64) error {
	if maxBytes > 0 && fileHeader.Size > maxBytes {
		return fmt.Errorf("%w: file too large (max %d bytes)", ErrUnsupportedVideo, maxBytes)
	}
	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	if !videoExtensions[ext] {
		return fmt.Errorf("%w: extension %q", ErrUnsupportedVideo, ext)
	}
	ct := fileHeader.Header.Get("Content-Type")
	if ct != "" && !strings.HasPrefix(ct, "video/") && ct != "application/octet-stream" {
		return fmt.Errorf("%w: content type %q", ErrUnsupportedVideo, ct)
	}
	return nil
}

// VideoKey is the object key for a match video, e.g. "matches/<id>/set/<uuid>.mp4".
func VideoKey(matchID, kind, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return path.Join("matches", matchID, kind, uuid.NewString()+ext)
}

// LocalDisk stores videos under Dir and serves them below BaseURL. Used
// when no bucket is configured.
type LocalDisk struct {
	Dir     string
	BaseURL string
}

func (d LocalDisk) Upload(ctx context.Context, fileHeader *multipart.FileHeader, key string) (string, error) {
	if err := SaveFile(fileHeader, filepath.Join(d.Dir, filepath.FromSlash(key))); err != nil {
		return "", err
	}
	return strings.TrimRight(d.BaseURL, "/") + "/" + key, nil
}

// SaveFile saves the uploaded file to the given destination path
func SaveFile(fileHeader *multipart.FileHeader, destPath string) error {
	dir := filepath.Dir(destPath)
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return err
	}

	file, err := fileHeader.Open()
	if err != nil {
		return err
	}
	defer file.Close()

	dst, err := os.Create(destPath)
	if err != nil {
		return err
	}
	defer dst.Close()

	_, err = io.Copy(dst, file)
	return err
}
