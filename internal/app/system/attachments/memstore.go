package attachments

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemStore is an in-process Store used by tests and by local runs
// without a database.
type MemStore struct {
	mu    sync.Mutex
	files map[string]memFile
}

type memFile struct {
	obj  Object
	data []byte
}

func NewMemStore() *MemStore {
	return &MemStore{files: make(map[string]memFile)}
}

func (m *MemStore) Put(_ context.Context, p, contentType string, r io.Reader) (Object, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Object{}, err
	}
	if len(data) == 0 {
		return Object{}, ErrEmptyUpload
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[p]; ok {
		return Object{}, ErrExists
	}
	obj := Object{Path: p, ContentType: contentType, Size: int64(len(data)), UploadedAt: time.Now().UTC()}
	m.files[p] = memFile{obj: obj, data: data}
	return obj, nil
}

// PutSized records a file with a declared size and no content, for
// exercising size limits without allocating.
func (m *MemStore) PutSized(p, contentType string, size int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[p] = memFile{obj: Object{Path: p, ContentType: contentType, Size: size, UploadedAt: time.Now().UTC()}}
}

func (m *MemStore) Stat(_ context.Context, p string) (Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[p]
	if !ok {
		return Object{}, ErrNotFound
	}
	return f.obj, nil
}

func (m *MemStore) Move(_ context.Context, from, to string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[from]
	if !ok {
		return ErrNotFound
	}
	if _, taken := m.files[to]; taken {
		return ErrExists
	}
	delete(m.files, from)
	f.obj.Path = to
	m.files[to] = f
	return nil
}

func (m *MemStore) IssueToken(_ context.Context, p string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[p]
	if !ok {
		return "", ErrNotFound
	}
	f.obj.Token = uuid.NewString()
	m.files[p] = f
	return f.obj.Token, nil
}

func (m *MemStore) Delete(_ context.Context, p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[p]; !ok {
		return ErrNotFound
	}
	delete(m.files, p)
	return nil
}

func (m *MemStore) DeletePrefix(_ context.Context, prefix string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for p := range m.files {
		if strings.HasPrefix(p, prefix) {
			delete(m.files, p)
			n++
		}
	}
	return n, nil
}

func (m *MemStore) OpenByToken(_ context.Context, token string) (io.ReadCloser, Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if token == "" {
		return nil, Object{}, ErrNotFound
	}
	for _, f := range m.files {
		if f.obj.Token == token {
			return io.NopCloser(bytes.NewReader(f.data)), f.obj, nil
		}
	}
	return nil, Object{}, ErrNotFound
}

// Paths lists stored paths in order.
func (m *MemStore) Paths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.files))
	for p := range m.files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
