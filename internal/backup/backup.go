// Package backup takes encrypted snapshots of a SQLite database and keeps
// them in S3-compatible object storage.
package backup

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	_ "modernc.org/sqlite"
)

// s3Client is the part of *s3.Client the manager uses.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, input *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Config holds S3-compatible storage configuration.
type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
}

// Config holds backup manager configuration.
type Config struct {
	S3         S3Config
	Prefix     string
	Passphrase string
	// Retention is how long Prune keeps snapshots. Zero keeps everything.
	Retention time.Duration
}

// Enabled reports whether enough is configured to take a backup.
func (c Config) Enabled() bool {
	return c.S3.Bucket != "" && c.S3.AccessKey != "" && c.S3.SecretKey != "" && c.Passphrase != ""
}

// Object describes one stored snapshot.
type Object struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"lastModified"`
}

// Manager snapshots db into encrypted objects under Prefix. Runs never
// overlap.
type Manager struct {
	client     s3Client
	bucket     string
	prefix     string
	passphrase string
	retention  time.Duration
	db         *sql.DB
	logger     *slog.Logger
	now        func() time.Time

	run    sync.Mutex
	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager creates a manager for db, which must be a SQLite handle.
func NewManager(cfg Config, db *sql.DB, logger *slog.Logger) (*Manager, error) {
	if !cfg.Enabled() {
		return nil, errors.New("backup not configured: bucket, credentials and passphrase are required")
	}
	return newManager(newS3Client(cfg.S3), cfg, db, logger), nil
}

func newManager(client s3Client, cfg Config, db *sql.DB, logger *slog.Logger) *Manager {
	prefix := cfg.Prefix
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &Manager{
		client:     client,
		bucket:     cfg.S3.Bucket,
		prefix:     prefix,
		passphrase: cfg.Passphrase,
		retention:  cfg.Retention,
		db:         db,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func newS3Client(cfg S3Config) *s3.Client {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	opts := s3.Options{
		Region:       region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

// Start takes a backup and prunes old ones every interval until ctx is
// cancelled or Stop is called.
func (m *Manager) Start(ctx context.Context, interval time.Duration) {
	m.mu.Lock()
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	done := m.done
	m.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := m.Run(ctx); err != nil {
					m.logger.Error("scheduled backup failed", "error", err)
					continue
				}
				if _, err := m.Prune(ctx); err != nil {
					m.logger.Error("backup prune failed", "error", err)
				}
			}
		}
	}()
}

// Stop halts the loop started by Start and waits for it to exit.
func (m *Manager) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// Run snapshots the database, encrypts it and uploads it.
func (m *Manager) Run(ctx context.Context) (*Object, error) {
	m.run.Lock()
	defer m.run.Unlock()

	dir, err := os.MkdirTemp("", "chorechamp-backup-")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	snapshot := filepath.Join(dir, "snapshot.db")
	if _, err := m.db.ExecContext(ctx, `VACUUM INTO ?`, snapshot); err != nil {
		return nil, fmt.Errorf("snapshot database: %w", err)
	}
	plain, err := os.ReadFile(snapshot)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	enc, err := Encrypt(plain, m.passphrase)
	if err != nil {
		return nil, err
	}

	at := m.now()
	key := m.prefix + "backup-" + at.Format("2006-01-02T150405Z") + ".db.enc"
	_, err = m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(m.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(enc),
		ContentLength: aws.Int64(int64(len(enc))),
	})
	if err != nil {
		return nil, fmt.Errorf("upload to s3: %w", err)
	}

	m.logger.Info("backup uploaded", "key", key, "size", len(enc))
	return &Object{Key: key, Size: int64(len(enc)), LastModified: at}, nil
}

// List returns stored snapshots, newest first.
func (m *Manager) List(ctx context.Context) ([]Object, error) {
	var objects []Object
	p := s3.NewListObjectsV2Paginator(m.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(m.bucket),
		Prefix: aws.String(m.prefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list backups: %w", err)
		}
		for _, o := range page.Contents {
			key := aws.ToString(o.Key)
			if !strings.HasSuffix(key, ".db.enc") {
				continue
			}
			objects = append(objects, Object{
				Key:          key,
				Size:         aws.ToInt64(o.Size),
				LastModified: aws.ToTime(o.LastModified),
			})
		}
	}
	slices.SortFunc(objects, func(a, b Object) int { return b.LastModified.Compare(a.LastModified) })
	return objects, nil
}

// Prune deletes snapshots older than the retention period and reports how
// many were removed.
func (m *Manager) Prune(ctx context.Context) (int, error) {
	if m.retention <= 0 {
		return 0, nil
	}
	objects, err := m.List(ctx)
	if err != nil {
		return 0, err
	}

	cutoff := m.now().Add(-m.retention)
	var n int
	for _, o := range objects {
		if !o.LastModified.Before(cutoff) {
			continue
		}
		_, err := m.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(m.bucket),
			Key:    aws.String(o.Key),
		})
		if err != nil {
			m.logger.Error("delete old backup", "key", o.Key, "error", err)
			continue
		}
		n++
	}
	return n, nil
}

// Restore downloads the snapshot at key, checks its integrity and writes it
// to dst. The server must not be running against dst.
func (m *Manager) Restore(ctx context.Context, key, dst string) error {
	result, err := m.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("download from s3: %w", err)
	}
	defer result.Body.Close()

	enc, err := io.ReadAll(result.Body)
	if err != nil {
		return fmt.Errorf("read download: %w", err)
	}
	plain, err := Decrypt(enc, m.passphrase)
	if err != nil {
		return err
	}

	tmp := dst + ".restore"
	if err := os.WriteFile(tmp, plain, 0o600); err != nil {
		return fmt.Errorf("write restored file: %w", err)
	}
	defer os.Remove(tmp)

	if err := checkIntegrity(ctx, tmp); err != nil {
		return err
	}
	if err := os.Rename(tmp, dst); err != nil {
		return fmt.Errorf("replace database: %w", err)
	}
	os.Remove(dst + "-wal")
	os.Remove(dst + "-shm")

	m.logger.Info("backup restored", "key", key, "path", dst)
	return nil
}

func checkIntegrity(ctx context.Context, path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open restored db: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}
	return nil
}
