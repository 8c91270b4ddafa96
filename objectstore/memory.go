package objectstore

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"
)

// Memory is an in-process Store, used for dry runs and tests.
type Memory struct {
	mu      sync.RWMutex
	objects map[string]memoryObject

	// BeforePut, if set, is called before every Put and Copy with the destination key; a non-nil error aborts the
	// write.
	BeforePut func(bucket, key string) error
}

type memoryObject struct {
	data         []byte
	contentType  string
	lastModified time.Time
}

func NewMemory() *Memory {
	return &Memory{objects: make(map[string]memoryObject)}
}

func (m *Memory) Put(ctx context.Context, bucket, key string, body io.Reader, size int64, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.BeforePut != nil {
		if err := m.BeforePut(bucket, key); err != nil {
			return err
		}
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	if size >= 0 && int64(len(data)) != size {
		return fmt.Errorf("put %s: read %d bytes, expected %d", key, len(data), size)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[memoryKey(bucket, key)] = memoryObject{data: data, contentType: contentType, lastModified: time.Now()}
	return nil
}

func (m *Memory) Get(ctx context.Context, bucket, key string) (io.ReadCloser, ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, ObjectInfo{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[memoryKey(bucket, key)]
	if !ok {
		return nil, ObjectInfo{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return io.NopCloser(bytes.NewReader(obj.data)), obj.info(key), nil
}

func (m *Memory) Stat(ctx context.Context, bucket, key string) (ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return ObjectInfo{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[memoryKey(bucket, key)]
	if !ok {
		return ObjectInfo{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return obj.info(key), nil
}

func (m *Memory) Copy(ctx context.Context, bucket, srcKey, dstKey string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.BeforePut != nil {
		if err := m.BeforePut(bucket, dstKey); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[memoryKey(bucket, srcKey)]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, srcKey)
	}
	obj.lastModified = time.Now()
	m.objects[memoryKey(bucket, dstKey)] = obj
	return nil
}

func (m *Memory) Delete(ctx context.Context, bucket, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, memoryKey(bucket, key))
	return nil
}

// Keys returns every key in bucket, sorted.
func (m *Memory) Keys(bucket string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	prefix := bucket + "/"
	var keys []string
	for k := range m.objects {
		if len(k) > len(prefix) && k[:len(prefix)] == prefix {
			keys = append(keys, k[len(prefix):])
		}
	}
	sort.Strings(keys)
	return keys
}

func (o memoryObject) info(key string) ObjectInfo {
	sum := md5.Sum(o.data)
	return ObjectInfo{
		Key:          key,
		Size:         int64(len(o.data)),
		ETag:         hex.EncodeToString(sum[:]),
		ContentType:  o.contentType,
		LastModified: o.lastModified,
	}
}

func memoryKey(bucket, key string) string {
	return bucket + "/" + key
}
