package service

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"

	"github.com/tieubaoca/docqa/types"
	"github.com/tieubaoca/docqa/utils"
)

const DefaultMaxUploadSize = 10 << 20

// FileService turns uploaded or local PDF files into in-memory documents.
type FileService struct {
	maxSize int64
}

func NewFileService(maxSize int64) *FileService {
	if maxSize <= 0 {
		maxSize = DefaultMaxUploadSize
	}
	return &FileService{maxSize: maxSize}
}

// ReadUploads reads every uploaded file fully into memory once.
func (s *FileService) ReadUploads(files []*multipart.FileHeader) ([]types.Document, error) {
	docs := make([]types.Document, 0, len(files))
	for _, file := range files {
		if err := s.check(file.Filename, file.Size); err != nil {
			return nil, err
		}
		src, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("open upload %q: %w", file.Filename, err)
		}
		data, err := s.readAll(file.Filename, src)
		src.Close()
		if err != nil {
			return nil, err
		}
		docs = append(docs, types.Document{Name: filepath.Base(file.Filename), Data: data})
	}
	return docs, nil
}

// ReadFiles reads PDF files from disk.
func (s *FileService) ReadFiles(paths []string) ([]types.Document, error) {
	docs := make([]types.Document, 0, len(paths))
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		if err := s.check(path, info.Size()); err != nil {
			return nil, err
		}
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		data, err := s.readAll(path, f)
		f.Close()
		if err != nil {
			return nil, err
		}
		docs = append(docs, types.Document{Name: filepath.Base(path), Data: data})
	}
	return docs, nil
}

func (s *FileService) check(name string, size int64) error {
	if !utils.IsPDF(name) {
		return fmt.Errorf("%w: unsupported file type %q for %s", types.ErrUpload, filepath.Ext(name), name)
	}
	if size > s.maxSize {
		return fmt.Errorf("%w: %s is larger than %d bytes", types.ErrUpload, name, s.maxSize)
	}
	return nil
}

func (s *FileService) readAll(name string, r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, s.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", name, err)
	}
	if int64(len(data)) > s.maxSize {
		return nil, fmt.Errorf("%w: %s is larger than %d bytes", types.ErrUpload, name, s.maxSize)
	}
	return data, nil
}
