package backup

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/pinmehq/toybox/internal/database"
)

// fakeS3 stores objects in memory.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func (f *fakeS3) PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(input.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.objects[aws.ToString(input.Key)] = data
	f.mu.Unlock()
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	data, ok := f.objects[aws.ToString(input.Key)]
	f.mu.Unlock()
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	delete(f.objects, aws.ToString(input.Key))
	f.mu.Unlock()
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, input *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := &s3.ListObjectsV2Output{}
	prefix := aws.ToString(input.Prefix)
	for key := range f.objects {
		if strings.HasPrefix(key, prefix) {
			out.Contents = append(out.Contents, s3types.Object{Key: aws.String(key)})
		}
	}
	return out, nil
}

func setupManager(t *testing.T) (*Manager, *fakeS3) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	fake := newFakeS3()
	m := NewManager(Config{
		S3:            S3Config{Bucket: "toybox-backups", AccessKey: "k", SecretKey: "s"},
		Prefix:        "backups",
		RetentionDays: 30,
	}, db, slog.Default())
	m.client = fake
	return m, fake
}

func TestRunNowUploadsEncryptedSnapshot(t *testing.T) {
	m, fake := setupManager(t)

	key, err := m.RunNow(context.Background(), "passphrase")
	if err != nil {
		t.Fatalf("RunNow() error = %v", err)
	}
	if !strings.HasPrefix(key, "backups/toybox-") {
		t.Errorf("key = %q, want backups/toybox- prefix", key)
	}

	sealed, ok := fake.objects[key]
	if !ok {
		t.Fatalf("object %q not uploaded", key)
	}
	plain, err := Decrypt(sealed, "passphrase")
	if err != nil {
		t.Fatalf("uploaded object does not decrypt: %v", err)
	}
	if !bytes.HasPrefix(plain, []byte("SQLite format 3")) {
		t.Error("decrypted snapshot is not a SQLite database")
	}

	status := m.Status()
	if status.State != StateIdle || status.LastBackup == nil {
		t.Errorf("Status() = %+v, want idle with last backup set", status)
	}
}

func TestRunNowUnconfigured(t *testing.T) {
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	m := NewManager(Config{}, db, slog.Default())
	if m.Status().State != StateDisabled {
		t.Errorf("State = %v, want disabled without credentials", m.Status().State)
	}
	if _, err := m.RunNow(context.Background(), "passphrase"); err == nil {
		t.Error("RunNow() succeeded without S3 configuration")
	}
}

func TestListNewestFirst(t *testing.T) {
	m, fake := setupManager(t)
	fake.objects["backups/toybox-2026-01-01T030000Z.db.enc"] = []byte("a")
	fake.objects["backups/toybox-2026-03-01T030000Z.db.enc"] = []byte("b")
	fake.objects["backups/toybox-2026-02-01T030000Z.db.enc"] = []byte("c")
	fake.objects["other/unrelated"] = []byte("d")

	keys, err := m.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	want := []string{
		"backups/toybox-2026-03-01T030000Z.db.enc",
		"backups/toybox-2026-02-01T030000Z.db.enc",
		"backups/toybox-2026-01-01T030000Z.db.enc",
	}
	if len(keys) != len(want) {
		t.Fatalf("List() = %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("List()[%d] = %q, want %q", i, keys[i], want[i])
		}
	}
}

func TestCleanupDeletesExpired(t *testing.T) {
	m, fake := setupManager(t)
	m.now = func() time.Time {
		return time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	}
	old := "backups/toybox-2026-06-01T030000Z.db.enc"
	recent := "backups/toybox-2026-08-20T030000Z.db.enc"
	fake.objects[old] = []byte("a")
	fake.objects[recent] = []byte("b")

	if err := m.Cleanup(context.Background()); err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	if _, ok := fake.objects[old]; ok {
		t.Error("expired backup survived cleanup")
	}
	if _, ok := fake.objects[recent]; !ok {
		t.Error("recent backup was deleted")
	}
}

func TestRestoreRoundTrip(t *testing.T) {
	m, _ := setupManager(t)

	key, err := m.RunNow(context.Background(), "passphrase")
	if err != nil {
		t.Fatalf("RunNow() error = %v", err)
	}

	dest := t.TempDir() + "/restored.db"
	if err := m.Restore(context.Background(), key, "passphrase", dest); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}

	restored, err := database.Open(dest)
	if err != nil {
		t.Fatalf("open restored db: %v", err)
	}
	defer restored.Close()
	var n int
	if err := restored.QueryRow("SELECT COUNT(*) FROM toys").Scan(&n); err != nil {
		t.Errorf("restored db missing schema: %v", err)
	}
}

func TestRestoreWrongPassphrase(t *testing.T) {
	m, _ := setupManager(t)

	key, err := m.RunNow(context.Background(), "passphrase")
	if err != nil {
		t.Fatalf("RunNow() error = %v", err)
	}
	dest := t.TempDir() + "/restored.db"
	if err := m.Restore(context.Background(), key, "wrong", dest); err == nil {
		t.Error("Restore() succeeded with the wrong passphrase")
	}
}
