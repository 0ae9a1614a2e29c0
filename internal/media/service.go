package media

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/coursehub/coursehub-backend/pkg/enums"
	pkgerrors "github.com/coursehub/coursehub-backend/pkg/errors"
	"github.com/coursehub/coursehub-backend/pkg/logger"
)

const bytesPerMB = 1024 * 1024

type uploadSigner interface {
	SignedUploadURL(key, contentType string) (string, time.Time, error)
}

// Service accepts admin uploads: images are stored locally, videos get a
// presigned object-storage PUT URL.
type Service interface {
	Upload(ctx context.Context, file File) (*UploadResult, error)
}

// File is one multipart part. Body is read only for images.
type File struct {
	FileName    string
	ContentType string
	SizeBytes   int64
	Body        io.Reader
}

// UploadResult tells the client where the asset lives. For videos the client
// PUTs the bytes to UploadURL and stores Key on the course video.
type UploadResult struct {
	Kind      enums.MediaKind `json:"kind"`
	Key       string          `json:"key"`
	URL       string          `json:"url,omitempty"`
	UploadURL string          `json:"upload_url,omitempty"`
	ExpiresAt *time.Time      `json:"expires_at,omitempty"`
}

// Options bounds uploads and names the local image directory.
type Options struct {
	ImageDir        string
	ImagePublicPath string
	MaxImageMB      int
	MaxVideoMB      int
}

type service struct {
	signer   uploadSigner
	dir      string
	public   string
	maxImage int64
	maxVideo int64
	logg     *logger.Logger
}

func NewService(signer uploadSigner, opts Options, logg *logger.Logger) (Service, error) {
	if signer == nil {
		return nil, fmt.Errorf("upload signer required")
	}
	if strings.TrimSpace(opts.ImageDir) == "" {
		return nil, fmt.Errorf("image directory required")
	}
	if opts.MaxImageMB <= 0 || opts.MaxVideoMB <= 0 {
		return nil, fmt.Errorf("upload size limits must be positive")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		signer:   signer,
		dir:      opts.ImageDir,
		public:   "/" + strings.Trim(opts.ImagePublicPath, "/"),
		maxImage: int64(opts.MaxImageMB) * bytesPerMB,
		maxVideo: int64(opts.MaxVideoMB) * bytesPerMB,
		logg:     logg,
	}, nil
}

func (s *service) Upload(ctx context.Context, file File) (*UploadResult, error) {
	if strings.TrimSpace(file.FileName) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidUpload, "file name is required")
	}
	if file.SizeBytes <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidUpload, "file is empty")
	}
	kind, ok := kindForMime(file.ContentType)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidUpload, fmt.Sprintf("unsupported content type %q", file.ContentType))
	}

	switch kind {
	case enums.MediaKindImage:
		return s.saveImage(ctx, file)
	default:
		return s.presignVideo(ctx, file)
	}
}

func (s *service) saveImage(ctx context.Context, file File) (*UploadResult, error) {
	if file.SizeBytes > s.maxImage {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidUpload, fmt.Sprintf("images must be at most %d MB", s.maxImage/bytesPerMB))
	}
	if file.Body == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidUpload, "file body missing")
	}

	reader := bufio.NewReaderSize(file.Body, 512)
	head, err := reader.Peek(512)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInvalidUpload, err, "read upload")
	}
	detected, ok := sniffImage(head)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidUpload, "file content is not a supported image")
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "prepare image directory")
	}
	name := uuid.NewString() + extensionsByMime[detected]
	target := filepath.Join(s.dir, name)
	out, err := os.OpenFile(target, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create image file")
	}

	// One byte past the limit detects a body larger than its declared size.
	written, copyErr := io.Copy(out, io.LimitReader(reader, s.maxImage+1))
	closeErr := out.Close()
	if copyErr == nil && closeErr == nil && written > s.maxImage {
		copyErr = fmt.Errorf("image exceeds %d bytes", s.maxImage)
	}
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(target)
		if copyErr == nil {
			copyErr = closeErr
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInvalidUpload, copyErr, "store image")
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{"file": name, "bytes": written}), "image uploaded")
	return &UploadResult{
		Kind: enums.MediaKindImage,
		Key:  name,
		URL:  path.Join(s.public, name),
	}, nil
}

func (s *service) presignVideo(ctx context.Context, file File) (*UploadResult, error) {
	if file.SizeBytes > s.maxVideo {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidUpload, fmt.Sprintf("videos must be at most %d MB", s.maxVideo/bytesPerMB))
	}
	contentType := normalizeMime(file.ContentType)
	id := uuid.New()
	name := sanitizeFileName(file.FileName)
	if name == "" {
		name = id.String() + extensionsByMime[contentType]
	}
	key := fmt.Sprintf("videos/%s/%s", id, name)

	url, expires, err := s.signer.SignedUploadURL(key, contentType)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sign upload url")
	}
	s.logg.Info(s.logg.WithField(ctx, "video_key", key), "video upload url issued")
	return &UploadResult{
		Kind:      enums.MediaKindVideo,
		Key:       key,
		UploadURL: url,
		ExpiresAt: &expires,
	}, nil
}

func sanitizeFileName(name string) string {
	clean := path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if clean == "." || clean == "/" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(clean))
	for _, r := range clean {
		switch {
		case unicode.IsControl(r):
			continue
		case unicode.IsSpace(r):
			b.WriteRune('-')
		default:
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), "-_.")
}
