// Package objectstore_test tests the object store implementations.
package objectstore_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/book-expert/automuse/internal/core"
	"github.com/book-expert/automuse/internal/objectstore"
	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// StartTestServer starts an in-memory NATS server for testing purposes.
func StartTestServer(t *testing.T) (*server.Server, *nats.Conn) {
	t.Helper()

	opts := test.DefaultTestOptions
	opts.Port = -1 // Use a random port
	opts.JetStream = true
	opts.StoreDir = t.TempDir()
	natsServer := test.RunServer(&opts)

	natsConnection, err := nats.Connect(natsServer.ClientURL())
	if err != nil {
		t.Fatalf("Failed to connect to test NATS server: %v", err)
	}

	return natsServer, natsConnection
}

func newTestStore(t *testing.T, bucket string) *objectstore.NatsObjectStore {
	t.Helper()

	natsServer, natsConnection := StartTestServer(t)
	t.Cleanup(natsServer.Shutdown)
	t.Cleanup(natsConnection.Close)

	jetstreamContext, err := natsConnection.JetStream()
	require.NoError(t, err)

	store, err := objectstore.NewNats(jetstreamContext, bucket)
	require.NoError(t, err)

	return store
}

func TestNatsObjectStore_UploadDownload(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, "test-bucket")

	ctx := context.Background()
	key := "prompts/my-test-object"
	uploadData := []byte("an ambient futuristic synthwave tune")

	require.NoError(t, store.Upload(ctx, key, uploadData))

	downloadData, err := store.Download(ctx, key)
	require.NoError(t, err)
	require.Equal(t, uploadData, downloadData)
}

func TestNatsObjectStore_StatUploadFileList(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, "tracks")
	ctx := context.Background()
	key := "generated_tracks/ambient-synth.wav"

	presence, err := store.Stat(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, core.PresenceNotFound, presence)

	objects, err := store.List(ctx, "generated_tracks/")
	require.NoError(t, err)
	assert.Empty(t, objects)

	localPath := filepath.Join(t.TempDir(), "ambient-synth.wav")
	require.NoError(t, os.WriteFile(localPath, []byte("RIFF....WAVE"), 0o600))
	require.NoError(t, store.UploadFile(ctx, key, localPath))
	require.NoError(t, store.Upload(ctx, "other/ignored.wav", []byte("x")))

	presence, err = store.Stat(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, core.PresenceFound, presence)

	objects, err = store.List(ctx, "generated_tracks/")
	require.NoError(t, err)
	require.Len(t, objects, 1)
	assert.Equal(t, key, objects[0].Key)
	assert.Equal(t, int64(len("RIFF....WAVE")), objects[0].Size)
}

func TestNatsObjectStore_UploadFileMissing(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, "tracks")

	err := store.UploadFile(context.Background(), "k.wav", filepath.Join(t.TempDir(), "missing.wav"))
	require.Error(t, err)
}

func TestNatsObjectStore_BindsExistingBucket(t *testing.T) {
	t.Parallel()

	natsServer, natsConnection := StartTestServer(t)
	defer natsServer.Shutdown()
	defer natsConnection.Close()

	jetstreamContext, err := natsConnection.JetStream()
	require.NoError(t, err)

	first, err := objectstore.NewNats(jetstreamContext, "shared")
	require.NoError(t, err)
	require.NoError(t, first.Upload(context.Background(), "a", []byte("1")))

	second, err := objectstore.NewNats(jetstreamContext, "shared")
	require.NoError(t, err)

	data, err := second.Download(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), data)
}

func TestNatsObjectStore_URL(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, "tracks")

	assert.Equal(t, "nats://tracks/generated_tracks/a.wav", store.URL("generated_tracks/a.wav"))
}
