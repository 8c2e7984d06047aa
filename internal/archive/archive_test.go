package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanKey(t *testing.T) {
	tests := []struct {
		key     string
		want    string
		wantErr bool
	}{
		{key: "u1/backup.json", want: "u1/backup.json"},
		{key: " u1//backup.json ", want: "u1/backup.json"},
		{key: "u1/./backup.json", want: "u1/backup.json"},
		{key: "", wantErr: true},
		{key: "/etc/passwd", wantErr: true},
		{key: "../x", wantErr: true},
		{key: "a/../../x", wantErr: true},
		{key: `a\b`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, err := CleanKey(tt.key)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidKey)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOwnerKey(t *testing.T) {
	assert.Equal(t, "u1/budget-tracker-backup.json", OwnerKey("u1", "budget-tracker-backup.json"))
}

type memoryStore struct {
	objects map[string][]byte
}

func (m *memoryStore) Put(_ context.Context, key string, r io.Reader) (Info, error) {
	if _, ok := m.objects[key]; ok {
		return Info{}, fmt.Errorf("%s: %w", key, ErrExists)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return Info{}, err
	}
	m.objects[key] = data
	return Info{Key: key, Size: int64(len(data))}, nil
}

func (m *memoryStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memoryStore) List(context.Context, string) ([]Info, error) {
	return nil, nil
}

func TestPutNext(t *testing.T) {
	ctx := context.Background()
	store := &memoryStore{objects: map[string][]byte{}}

	keys := make([]string, 0, 3)
	for i := 0; i < 3; i++ {
		info, err := PutNext(ctx, store, "u1/budget-backup-2024-03-01.json", []byte(fmt.Sprintf("v%d", i)))
		require.NoError(t, err)
		keys = append(keys, info.Key)
	}

	assert.Equal(t, []string{
		"u1/budget-backup-2024-03-01.json",
		"u1/budget-backup-2024-03-01-2.json",
		"u1/budget-backup-2024-03-01-3.json",
	}, keys)
	assert.Equal(t, []byte("v2"), store.objects["u1/budget-backup-2024-03-01-3.json"])
}

func TestPutNext_StopsOnOtherErrors(t *testing.T) {
	_, err := PutNext(context.Background(), rejectingStore{}, "u1/a.json", nil)
	assert.ErrorIs(t, err, ErrInvalidKey)
}

type rejectingStore struct{}

func (rejectingStore) Put(context.Context, string, io.Reader) (Info, error) {
	return Info{}, ErrInvalidKey
}

func (rejectingStore) Get(context.Context, string) (io.ReadCloser, error) {
	return nil, ErrNotFound
}

func (rejectingStore) List(context.Context, string) ([]Info, error) {
	return nil, nil
}
