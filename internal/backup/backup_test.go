package backup

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/dukerupert/chorechamp/internal/database"
	"github.com/dukerupert/chorechamp/internal/store"
)

// mockS3Client implements s3Client for testing.
type mockS3Client struct {
	mu       sync.Mutex
	objects  map[string][]byte
	modified map[string]time.Time
	now      time.Time
	putErr   error
}

func newMockS3() *mockS3Client {
	return &mockS3Client{objects: map[string][]byte{}, modified: map[string]time.Time{}}
}

func (m *mockS3Client) PutObject(_ context.Context, input *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.putErr != nil {
		return nil, m.putErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, _ := io.ReadAll(input.Body)
	m.objects[*input.Key] = data
	m.modified[*input.Key] = m.now
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3Client) GetObject(_ context.Context, input *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[*input.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (m *mockS3Client) DeleteObject(_ context.Context, input *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, *input.Key)
	delete(m.modified, *input.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func (m *mockS3Client) ListObjectsV2(_ context.Context, input *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	for key, data := range m.objects {
		if !strings.HasPrefix(key, aws.ToString(input.Prefix)) {
			continue
		}
		out.Contents = append(out.Contents, types.Object{
			Key:          aws.String(key),
			Size:         aws.Int64(int64(len(data))),
			LastModified: aws.Time(m.modified[key]),
		})
	}
	return out, nil
}

func (m *mockS3Client) setNow(t time.Time) {
	m.mu.Lock()
	m.now = t
	m.mu.Unlock()
}

type fixture struct {
	mgr    *Manager
	client *mockS3Client
	db     *database.DB
	at     time.Time
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := store.NewSQLStore(db).CreateFamily(context.Background(), "SMITH", "SMITH"); err != nil {
		t.Fatalf("seed family: %v", err)
	}

	fx := &fixture{client: newMockS3(), db: db, at: time.Date(2024, 1, 10, 3, 0, 0, 0, time.UTC)}
	fx.mgr = newManager(fx.client, Config{
		S3:         S3Config{Bucket: "test"},
		Prefix:     "chorechamp",
		Passphrase: "correct horse",
		Retention:  7 * 24 * time.Hour,
	}, db.DB, slog.New(slog.NewTextHandler(io.Discard, nil)))
	fx.mgr.now = func() time.Time { return fx.at }
	fx.client.setNow(fx.at)
	return fx
}

func (fx *fixture) advance(d time.Duration) {
	fx.at = fx.at.Add(d)
	fx.client.setNow(fx.at)
}

func TestConfigEnabled(t *testing.T) {
	cfg := Config{S3: S3Config{Bucket: "b", AccessKey: "k", SecretKey: "s"}}
	if cfg.Enabled() {
		t.Error("config without passphrase should be disabled")
	}
	cfg.Passphrase = "p"
	if !cfg.Enabled() {
		t.Error("complete config should be enabled")
	}
	if _, err := NewManager(Config{}, nil, nil); err == nil {
		t.Error("NewManager should reject an empty config")
	}
}

func TestRunAndRestore(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()

	obj, err := fx.mgr.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if obj.Key != "chorechamp/backup-2024-01-10T030000Z.db.enc" {
		t.Errorf("key = %q", obj.Key)
	}
	if bytes.HasPrefix(fx.client.objects[obj.Key], []byte("SQLite format 3")) {
		t.Error("uploaded snapshot is not encrypted")
	}

	dst := filepath.Join(t.TempDir(), "restored.db")
	if err := fx.mgr.Restore(ctx, obj.Key, dst); err != nil {
		t.Fatalf("restore: %v", err)
	}

	restored, err := database.Open(dst)
	if err != nil {
		t.Fatalf("open restored db: %v", err)
	}
	defer restored.Close()
	if _, err := store.NewSQLStore(restored).GetFamilyByCode(ctx, "SMITH"); err != nil {
		t.Errorf("restored db is missing the family: %v", err)
	}
}

func TestRestoreWrongPassphrase(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()

	obj, err := fx.mgr.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	fx.mgr.passphrase = "wrong"
	if err := fx.mgr.Restore(ctx, obj.Key, filepath.Join(t.TempDir(), "x.db")); !errors.Is(err, ErrDecrypt) {
		t.Errorf("err = %v, want ErrDecrypt", err)
	}
}

func TestRunUploadError(t *testing.T) {
	fx := setup(t)
	fx.client.putErr = errors.New("bucket gone")
	if _, err := fx.mgr.Run(context.Background()); err == nil {
		t.Error("expected upload error")
	}
}

func TestListAndPrune(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()

	for range 3 {
		if _, err := fx.mgr.Run(ctx); err != nil {
			t.Fatalf("run: %v", err)
		}
		fx.advance(4 * 24 * time.Hour)
	}
	// Not a snapshot; List must skip it.
	fx.client.objects["chorechamp/README"] = []byte("hi")

	objects, err := fx.mgr.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(objects) != 3 {
		t.Fatalf("len = %d, want 3", len(objects))
	}
	if !objects[0].LastModified.After(objects[2].LastModified) {
		t.Error("list should be newest first")
	}

	// Now 12 days after the first run: the first two are past retention.
	n, err := fx.mgr.Prune(ctx)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if n != 2 {
		t.Errorf("pruned = %d, want 2", n)
	}
	objects, _ = fx.mgr.List(ctx)
	if len(objects) != 1 {
		t.Errorf("remaining = %d, want 1", len(objects))
	}
}

func TestStartStop(t *testing.T) {
	fx := setup(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fx.mgr.Start(ctx, time.Hour)
	fx.mgr.Stop()

	// Double stop should not block.
	fx.mgr.Stop()
}
