// Package attachments stores the binaries referenced by media messages.
package attachments

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/h2non/filetype"
	"github.com/npezzotti/go-messenger/internal/types"
)

// MaxUploadSize is the largest accepted attachment.
const MaxUploadSize = 100 << 20

var (
	ErrUnsupportedKind = errors.New("message type does not take attachments")
	ErrInvalidFileType = errors.New("invalid file type for message type")
	ErrInvalidRef      = errors.New("invalid attachment reference")
	ErrTooLarge        = errors.New("attachment exceeds maximum size")
)

var allowedMimeTypes = map[types.MessageType][]string{
	types.MessageTypeImage: {
		"image/jpeg",
		"image/png",
		"image/gif",
		"image/webp",
		"image/bmp",
		"image/tiff",
		"image/x-icon",
		"image/vnd.microsoft.icon",
	},
	types.MessageTypeVideo: {
		"video/mp4",
		"video/mpeg",
		"video/x-msvideo",
		"video/x-matroska",
		"video/webm",
		"video/3gpp",
		"video/quicktime",
		"video/x-flv",
		"video/x-ms-wmv",
	},
	types.MessageTypeAudio: {
		"audio/mpeg",
		"audio/wav",
		"audio/x-wav",
		"audio/ogg",
		"audio/mp4",
		"audio/x-m4a",
		"audio/aac",
		"audio/flac",
		"audio/x-flac",
		"audio/x-ms-wma",
	},
	types.MessageTypeDocument: {
		"application/pdf",
		"application/msword",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"application/vnd.ms-excel",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		"application/vnd.ms-powerpoint",
		"application/vnd.openxmlformats-officedocument.presentationml.presentation",
	},
}

// Store saves and removes attachment blobs.
type Store interface {
	Save(kind types.MessageType, name string, r io.Reader) (string, error)
	Open(kind types.MessageType, ref string) (io.ReadCloser, error)
	Remove(kind types.MessageType, ref string) error
}

// LocalStore keeps attachments on disk under root/{kind}/{ref}.
type LocalStore struct {
	root string
}

func NewLocalStore(root string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create root directory: %w", err)
	}
	return &LocalStore{root: root}, nil
}

func (s *LocalStore) path(kind types.MessageType, ref string) (string, error) {
	if _, ok := allowedMimeTypes[kind]; !ok {
		return "", ErrUnsupportedKind
	}
	if ref == "" || ref != filepath.Base(ref) || strings.HasPrefix(ref, ".") {
		return "", ErrInvalidRef
	}
	return filepath.Join(s.root, string(kind), ref), nil
}

// Save validates the content against kind and stores it. The returned
// reference is "{uuid}-{name}".
func (s *LocalStore) Save(kind types.MessageType, name string, r io.Reader) (string, error) {
	if _, ok := allowedMimeTypes[kind]; !ok {
		return "", ErrUnsupportedKind
	}

	br := bufio.NewReaderSize(r, 512)
	head, err := br.Peek(261)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return "", fmt.Errorf("read attachment: %w", err)
	}

	if !matchesKind(kind, name, head) {
		return "", ErrInvalidFileType
	}

	ref := uuid.NewString() + "-" + cleanName(name)
	path, err := s.path(kind, ref)
	if err != nil {
		return "", err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()

	n, err := io.Copy(tmp, io.LimitReader(br, MaxUploadSize+1))
	if err != nil {
		return "", fmt.Errorf("failed to write data: %w", err)
	}
	if n > MaxUploadSize {
		return "", ErrTooLarge
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("failed to rename file: %w", err)
	}

	return ref, nil
}

func (s *LocalStore) Open(kind types.MessageType, ref string) (io.ReadCloser, error) {
	path, err := s.path(kind, ref)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open attachment %s: %w", ref, err)
	}
	return f, nil
}

// Remove deletes the blob. Removing a missing blob is not an error.
func (s *LocalStore) Remove(kind types.MessageType, ref string) error {
	path, err := s.path(kind, ref)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove attachment %s: %w", ref, err)
	}
	return nil
}

func matchesKind(kind types.MessageType, name string, head []byte) bool {
	t, err := filetype.Match(head)
	if err != nil {
		return false
	}

	if t == filetype.Unknown {
		// plain text has no magic number
		return kind == types.MessageTypeDocument && strings.EqualFold(filepath.Ext(name), ".txt")
	}

	return slices.Contains(allowedMimeTypes[kind], t.MIME.Value)
}

func cleanName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.Map(func(r rune) rune {
		if r == ' ' || r == '/' || r < 0x20 {
			return '_'
		}
		return r
	}, name)
	name = strings.TrimLeft(name, ".")
	if name == "" {
		name = "file"
	}
	return name
}
