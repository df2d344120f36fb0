package types

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Default name and type used when a file is created without them.
const (
	DefaultFileName = "default_filename"
	DefaultFileType = "file"
)

// File is a file exchanged in a conversation.
type File struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Base64 string `json:"base64"`
}

// NewFileFromBytes builds a file from raw data.
func NewFileFromBytes(name, fileType string, data []byte) *File {
	if name == "" {
		name = DefaultFileName
	}
	if fileType == "" {
		fileType = DefaultFileType
	}
	return &File{Name: name, Type: fileType, Base64: base64.StdEncoding.EncodeToString(data)}
}

// NewFileFromBase64 builds a file from a base64 string, validating the encoding.
func NewFileFromBase64(name, fileType, b64 string) (*File, error) {
	if b64 == "" {
		return nil, errors.New("file: empty base64 content")
	}
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("file: invalid base64 content: %w", err)
	}
	return NewFileFromBytes(name, fileType, data), nil
}

// NewFileFromPath reads a file from disk. The name is the base name and the
// type is the extension without the dot.
func NewFileFromPath(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("file: failed to read %s: %w", path, err)
	}
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	return NewFileFromBytes(filepath.Base(path), ext, data), nil
}

// Bytes decodes the file content.
func (f *File) Bytes() ([]byte, error) {
	return base64.StdEncoding.DecodeString(f.Base64)
}

// Save writes the file content into dir and returns the written path.
func (f *File) Save(dir string) (string, error) {
	data, err := f.Bytes()
	if err != nil {
		return "", fmt.Errorf("file: invalid base64 content: %w", err)
	}
	path := filepath.Join(dir, filepath.Base(f.Name))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("file: failed to write %s: %w", path, err)
	}
	return path, nil
}
