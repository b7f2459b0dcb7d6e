package attachments

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// BucketName is the GridFS bucket holding attachments.
const BucketName = "attachments"

type fileMeta struct {
	ContentType string `bson:"content_type"`
	Token       string `bson:"token,omitempty"`
}

type fileDoc struct {
	ID         primitive.ObjectID `bson:"_id"`
	Length     int64              `bson:"length"`
	Filename   string             `bson:"filename"`
	UploadDate time.Time          `bson:"uploadDate"`
	Metadata   fileMeta           `bson:"metadata"`
}

func (d fileDoc) object() Object {
	return Object{
		Path:        d.Filename,
		ContentType: d.Metadata.ContentType,
		Size:        d.Length,
		Token:       d.Metadata.Token,
		UploadedAt:  d.UploadDate,
	}
}

// GridFSStore keeps attachments in a GridFS bucket; the file name is the path.
type GridFSStore struct {
	db    *mongo.Database
	files *mongo.Collection
}

func NewGridFSStore(db *mongo.Database) *GridFSStore {
	return &GridFSStore{db: db, files: db.Collection(BucketName + ".files")}
}

// bucket builds a bucket per call; deadlines are per bucket.
func (s *GridFSStore) bucket(ctx context.Context) (*gridfs.Bucket, error) {
	b, err := gridfs.NewBucket(s.db, options.GridFSBucket().SetName(BucketName))
	if err != nil {
		return nil, err
	}
	if dl, ok := ctx.Deadline(); ok {
		if err := b.SetWriteDeadline(dl); err != nil {
			return nil, err
		}
		if err := b.SetReadDeadline(dl); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func (s *GridFSStore) find(ctx context.Context, filter bson.M) (fileDoc, error) {
	var d fileDoc
	err := s.files.FindOne(ctx, filter).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fileDoc{}, ErrNotFound
	}
	return d, err
}

func (s *GridFSStore) Put(ctx context.Context, p, contentType string, r io.Reader) (Object, error) {
	if _, err := s.find(ctx, bson.M{"filename": p}); err == nil {
		return Object{}, ErrExists
	} else if !errors.Is(err, ErrNotFound) {
		return Object{}, err
	}
	b, err := s.bucket(ctx)
	if err != nil {
		return Object{}, err
	}
	opts := options.GridFSUpload().SetMetadata(fileMeta{ContentType: contentType})
	id, err := b.UploadFromStream(p, r, opts)
	if err != nil {
		return Object{}, fmt.Errorf("upload %s: %w", p, err)
	}
	d, err := s.find(ctx, bson.M{"_id": id})
	if err != nil {
		return Object{}, err
	}
	if d.Length == 0 {
		_ = s.deleteID(ctx, id)
		return Object{}, ErrEmptyUpload
	}
	return d.object(), nil
}

func (s *GridFSStore) Stat(ctx context.Context, p string) (Object, error) {
	d, err := s.find(ctx, bson.M{"filename": p})
	if err != nil {
		return Object{}, err
	}
	return d.object(), nil
}

func (s *GridFSStore) Move(ctx context.Context, from, to string) error {
	if _, err := s.find(ctx, bson.M{"filename": to}); err == nil {
		return ErrExists
	}
	d, err := s.find(ctx, bson.M{"filename": from})
	if err != nil {
		return err
	}
	b, err := s.bucket(ctx)
	if err != nil {
		return err
	}
	return b.RenameContext(ctx, d.ID, to)
}

func (s *GridFSStore) IssueToken(ctx context.Context, p string) (string, error) {
	tok := uuid.NewString()
	res, err := s.files.UpdateOne(ctx,
		bson.M{"filename": p},
		bson.M{"$set": bson.M{"metadata.token": tok}})
	if err != nil {
		return "", err
	}
	if res.MatchedCount == 0 {
		return "", ErrNotFound
	}
	return tok, nil
}

func (s *GridFSStore) Delete(ctx context.Context, p string) error {
	d, err := s.find(ctx, bson.M{"filename": p})
	if err != nil {
		return err
	}
	return s.deleteID(ctx, d.ID)
}

func (s *GridFSStore) deleteID(ctx context.Context, id primitive.ObjectID) error {
	b, err := s.bucket(ctx)
	if err != nil {
		return err
	}
	err = b.DeleteContext(ctx, id)
	if errors.Is(err, gridfs.ErrFileNotFound) {
		return ErrNotFound
	}
	return err
}

func (s *GridFSStore) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	filter := bson.M{"filename": bson.M{"$regex": "^" + regexp.QuoteMeta(prefix)}}
	cur, err := s.files.Find(ctx, filter, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return 0, err
	}
	var ids []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err := cur.All(ctx, &ids); err != nil {
		return 0, err
	}
	n := 0
	for _, row := range ids {
		if err := s.deleteID(ctx, row.ID); err != nil && !errors.Is(err, ErrNotFound) {
			return n, err
		}
		n++
	}
	return n, nil
}

func (s *GridFSStore) OpenByToken(ctx context.Context, token string) (io.ReadCloser, Object, error) {
	if token == "" {
		return nil, Object{}, ErrNotFound
	}
	d, err := s.find(ctx, bson.M{"metadata.token": token})
	if err != nil {
		return nil, Object{}, err
	}
	b, err := s.bucket(ctx)
	if err != nil {
		return nil, Object{}, err
	}
	stream, err := b.OpenDownloadStream(d.ID)
	if err != nil {
		return nil, Object{}, err
	}
	return stream, d.object(), nil
}
