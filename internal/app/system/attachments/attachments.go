// Package attachments stores post files and validates uploads against
// the temporary-prefix, size and type rules of post submission.
package attachments

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/dalemusser/rulepost/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	MaxFileSize  = 25 << 20  // per file
	MaxTotalSize = 100 << 20 // all attachments of one post
	maxNameLen   = 200
	maxSuffix    = 200
)

// AllowedTypes lists the accepted MIME types (compared case-insensitively).
var AllowedTypes = []string{
	"application/pdf",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

var (
	ErrNotFound    = errors.New("attachment not found")
	ErrExists      = errors.New("attachment path already in use")
	ErrTooLarge    = errors.New("attachment too large")
	ErrTotalSize   = errors.New("total attachment size too large")
	ErrBadType     = errors.New("unsupported attachment type")
	ErrBadPath     = errors.New("invalid attachment path")
	ErrNotAllowed  = errors.New("attachments are not allowed on this post type")
	ErrEmptyUpload = errors.New("empty upload")
)

// Object describes a stored file.
type Object struct {
	Path        string
	ContentType string
	Size        int64
	Token       string
	UploadedAt  time.Time
}

// Store is the object store behind post attachments.
type Store interface {
	Put(ctx context.Context, p, contentType string, r io.Reader) (Object, error)
	Stat(ctx context.Context, p string) (Object, error)
	Move(ctx context.Context, from, to string) error
	IssueToken(ctx context.Context, p string) (string, error)
	Delete(ctx context.Context, p string) error
	DeletePrefix(ctx context.Context, prefix string) (int, error)
	OpenByToken(ctx context.Context, token string) (io.ReadCloser, Object, error)
}

// TempPrefix is where a user's uploads for a post type wait until submission.
func TempPrefix(postType string, uid primitive.ObjectID) (string, error) {
	switch postType {
	case models.PostTypeEnquiry:
		return "enquiries_temp/" + uid.Hex() + "/", nil
	case models.PostTypeResponse:
		return "responses_temp/" + uid.Hex() + "/", nil
	}
	return "", ErrNotAllowed
}

// EnquiryFolder is the final folder of an enquiry's files.
func EnquiryFolder(enquiryID primitive.ObjectID) string {
	return "enquiries/" + enquiryID.Hex()
}

// ResponseFolder is the final folder of a response's files.
func ResponseFolder(enquiryID, responseID primitive.ObjectID) string {
	return EnquiryFolder(enquiryID) + "/responses/" + responseID.Hex()
}

var unsafeName = regexp.MustCompile(`[^\w.\-+]`)

// SanitizeName replaces characters outside [A-Za-z0-9_.+-] and truncates.
func SanitizeName(name string) string {
	s := unsafeName.ReplaceAllString(strings.TrimSpace(name), "_")
	if len(s) > maxNameLen {
		s = s[:maxNameLen]
	}
	return s
}

// UniqueName returns name, or name with a -1, -2, ... suffix before the
// extension, such that folder/result does not exist in st.
func UniqueName(ctx context.Context, st Store, folder, name string) (string, error) {
	folder = strings.TrimRight(folder, "/")
	base := SanitizeName(name)
	ext := path.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	candidate := base
	for i := 1; ; i++ {
		_, err := st.Stat(ctx, folder+"/"+candidate)
		if errors.Is(err, ErrNotFound) {
			return candidate, nil
		}
		if err != nil {
			return "", err
		}
		if i > maxSuffix {
			return "", fmt.Errorf("%w: %s", ErrExists, folder+"/"+base)
		}
		candidate = fmt.Sprintf("%s-%d%s", stem, i, ext)
	}
}

// AllowedType reports whether contentType is one of AllowedTypes.
func AllowedType(contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	for _, t := range AllowedTypes {
		if ct == t {
			return true
		}
	}
	return false
}

// Incoming is an attachment named by the client at submission time.
type Incoming struct {
	Name string `json:"name"`
	Path string `json:"path"` // temporary path returned by the upload endpoint
}

// Validated is an incoming file that passed every check.
type Validated struct {
	Name        string
	TempPath    string
	ContentType string
	Size        int64
}

// Validate checks incoming files against prefix, size and type rules.
// Files that exceed the per-file size or carry a disallowed type are
// deleted from the store before the error is returned.
func Validate(ctx context.Context, st Store, prefix string, incoming []Incoming) ([]Validated, error) {
	var out []Validated
	var total int64

	for _, in := range incoming {
		name := SanitizeName(in.Name)
		p := strings.TrimSpace(in.Path)
		if name == "" || p == "" {
			continue
		}
		if !strings.HasPrefix(p, prefix) || strings.Contains(p, "..") {
			return nil, ErrBadPath
		}

		obj, err := st.Stat(ctx, p)
		if err != nil {
			return nil, err
		}
		if obj.Size > MaxFileSize {
			_ = st.Delete(ctx, p)
			return nil, ErrTooLarge
		}
		if !AllowedType(obj.ContentType) {
			_ = st.Delete(ctx, p)
			return nil, ErrBadType
		}
		total += obj.Size
		if total > MaxTotalSize {
			return nil, ErrTotalSize
		}
		out = append(out, Validated{Name: name, TempPath: p, ContentType: obj.ContentType, Size: obj.Size})
	}
	return out, nil
}

// MoveAll moves validated files into folder under unique names. On
// failure the files already moved are deleted and the error returned.
func MoveAll(ctx context.Context, st Store, folder string, files []Validated) ([]models.Attachment, error) {
	var moved []models.Attachment
	for _, f := range files {
		name, err := UniqueName(ctx, st, folder, f.Name)
		if err == nil {
			dest := strings.TrimRight(folder, "/") + "/" + name
			if err = st.Move(ctx, f.TempPath, dest); err == nil {
				moved = append(moved, models.Attachment{
					Name:        name,
					Path:        dest,
					ContentType: f.ContentType,
					Size:        f.Size,
				})
				continue
			}
		}
		for _, m := range moved {
			_ = st.Delete(ctx, m.Path)
		}
		return nil, err
	}
	return moved, nil
}

// Tokenize issues a download token for every attachment that lacks one.
// It returns the updated list and the first error; files that failed
// keep an empty token.
func Tokenize(ctx context.Context, st Store, atts []models.Attachment) ([]models.Attachment, error) {
	out := make([]models.Attachment, len(atts))
	var firstErr error
	for i, a := range atts {
		out[i] = a
		if a.Token != "" {
			continue
		}
		tok, err := st.IssueToken(ctx, a.Path)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("tokenize %s: %w", a.Path, err)
			}
			continue
		}
		out[i].Token = tok
	}
	return out, firstErr
}
