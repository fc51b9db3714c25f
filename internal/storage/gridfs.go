package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const gridfsBucketName = "photos"

type gridfsFile struct {
	ID primitive.ObjectID `bson:"_id"`
}

type gridfsPhotoStorage struct {
	Locator
	db     *mongo.Database
	logger logrus.FieldLogger
}

// NewGridFSPhotoStorage builds PhotoStorage keeping photos in mongo GridFS bucket, key is used as file name
func NewGridFSPhotoStorage(db *mongo.Database, locator Locator, logger logrus.FieldLogger) PhotoStorage {
	return &gridfsPhotoStorage{
		Locator: locator,
		db:      db,
		logger:  logger.WithField("storage", "gridfs"),
	}
}

func (s *gridfsPhotoStorage) Put(ctx context.Context, key string, content []byte) error {
	if err := ValidateKey(key); err != nil {
		return err
	}

	if err := s.Delete(ctx, key); err != nil {
		return err
	}

	bucket, err := s.bucket(ctx)
	if err != nil {
		return err
	}

	if _, err := bucket.UploadFromStream(key, bytes.NewReader(content)); err != nil {
		return fmt.Errorf("failed to upload %s - %w", key, err)
	}
	return nil
}

func (s *gridfsPhotoStorage) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}

	bucket, err := s.bucket(ctx)
	if err != nil {
		return nil, err
	}

	var buff bytes.Buffer
	if _, err := bucket.DownloadToStreamByName(key, &buff); err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to download %s - %w", key, err)
	}
	return buff.Bytes(), nil
}

func (s *gridfsPhotoStorage) Delete(ctx context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}

	bucket, err := s.bucket(ctx)
	if err != nil {
		return err
	}

	cursor, err := bucket.Find(bson.M{"filename": key})
	if err != nil {
		return fmt.Errorf("failed to find %s - %w", key, err)
	}
	defer func() {
		if err := cursor.Close(ctx); err != nil {
			s.logger.Warnf("failed to close gridfs cursor - %v", err)
		}
	}()

	for cursor.Next(ctx) {
		var f gridfsFile
		if err := cursor.Decode(&f); err != nil {
			return err
		}

		if err := bucket.Delete(f.ID); err != nil && !errors.Is(err, gridfs.ErrFileNotFound) {
			return fmt.Errorf("failed to delete %s - %w", key, err)
		}
	}
	return cursor.Err()
}

// bucket is built per call since deadlines are bucket-wide in GridFS api
func (s *gridfsPhotoStorage) bucket(ctx context.Context) (*gridfs.Bucket, error) {
	bucket, err := gridfs.NewBucket(s.db, options.GridFSBucket().SetName(gridfsBucketName))
	if err != nil {
		return nil, fmt.Errorf("failed to open gridfs bucket - %w", err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		if err := bucket.SetReadDeadline(deadline); err != nil {
			return nil, err
		}
		if err := bucket.SetWriteDeadline(deadline); err != nil {
			return nil, err
		}
	}
	return bucket, nil
}
