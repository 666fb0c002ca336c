// Package objectstore provides the remote namespaces tracks are published into.
package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/book-expert/automuse/internal/core"
)

const natsURLScheme = "nats://"

// NatsObjectStore implements core.ObjectStore and core.BlobStore using NATS JetStream.
type NatsObjectStore struct {
	bucket string
	store  nats.ObjectStore
}

// NewNats creates the bucket, or binds to it if it already exists.
func NewNats(jetstreamContext nats.JetStreamContext, bucketName string) (*NatsObjectStore, error) {
	store, err := jetstreamContext.CreateObjectStore(&nats.ObjectStoreConfig{
		Bucket:      bucketName,
		Description: fmt.Sprintf("Storage for the %s bucket.", bucketName),
		TTL:         0,
		MaxBytes:    0,
		Storage:     nats.FileStorage,
		Replicas:    1,
		Placement:   nil,
		Metadata:    nil,
		Compression: false,
	})
	if err != nil {
		if !errors.Is(err, jetstream.ErrBucketExists) && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
			return nil, fmt.Errorf("failed to create object store bucket '%s': %w", bucketName, err)
		}

		store, err = jetstreamContext.ObjectStore(bucketName)
		if err != nil {
			return nil, fmt.Errorf("failed to bind to existing object store bucket '%s': %w", bucketName, err)
		}
	}

	return &NatsObjectStore{
		bucket: bucketName,
		store:  store,
	}, nil
}

// Stat reports whether key exists in the bucket.
func (n *NatsObjectStore) Stat(_ context.Context, key string) (core.Presence, error) {
	_, err := n.store.GetInfo(key)
	if err == nil {
		return core.PresenceFound, nil
	}

	if errors.Is(err, nats.ErrObjectNotFound) {
		return core.PresenceNotFound, nil
	}

	return core.PresenceCheckFailed, fmt.Errorf("failed to stat object '%s' in bucket '%s': %w", key, n.bucket, err)
}

// UploadFile streams a local file into the bucket under key.
func (n *NatsObjectStore) UploadFile(_ context.Context, key, localPath string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open '%s' for upload: %w", localPath, err)
	}
	defer file.Close()

	_, err = n.store.Put(&nats.ObjectMeta{
		Name:        key,
		Description: "",
		Headers:     nil,
		Metadata:    nil,
		Opts:        nil,
	}, file)
	if err != nil {
		return fmt.Errorf("failed to put object '%s' to bucket '%s': %w", key, n.bucket, err)
	}

	return nil
}

// List returns every live object whose name starts with prefix.
func (n *NatsObjectStore) List(_ context.Context, prefix string) ([]core.ObjectInfo, error) {
	infos, err := n.store.List()
	if err != nil {
		if errors.Is(err, nats.ErrNoObjectsFound) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to list bucket '%s': %w", n.bucket, err)
	}

	objects := make([]core.ObjectInfo, 0, len(infos))

	for _, info := range infos {
		if info.Deleted || !strings.HasPrefix(info.Name, prefix) {
			continue
		}

		objects = append(objects, core.ObjectInfo{
			Key:      info.Name,
			Size:     int64(info.Size),
			Modified: info.ModTime,
		})
	}

	return objects, nil
}

// URL returns the locator of key.
func (n *NatsObjectStore) URL(key string) string {
	return natsURLScheme + n.bucket + "/" + key
}

// Download retrieves an object from the NATS object store.
func (n *NatsObjectStore) Download(_ context.Context, key string) ([]byte, error) {
	obj, err := n.store.Get(key)
	if err != nil {
		return nil, fmt.Errorf("failed to get object '%s' from bucket '%s': %w", key, n.bucket, err)
	}

	data, readErr := io.ReadAll(obj)
	closeErr := obj.Close()

	if readErr != nil {
		return nil, fmt.Errorf("failed to read object '%s': %w", key, readErr)
	}

	if closeErr != nil {
		return data, fmt.Errorf("failed to close object '%s': %w", key, closeErr)
	}

	return data, nil
}

// Upload saves an object to the NATS object store.
func (n *NatsObjectStore) Upload(_ context.Context, key string, data []byte) error {
	_, err := n.store.Put(&nats.ObjectMeta{
		Name:        key,
		Description: "",
		Headers:     nil,
		Metadata:    nil,
		Opts:        nil,
	}, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to put object '%s' to bucket '%s': %w", key, n.bucket, err)
	}

	return nil
}
