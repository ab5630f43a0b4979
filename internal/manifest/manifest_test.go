package manifest

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

func TestPublishAndReadLatest(t *testing.T) {
	dir := t.TempDir()
	m := NewFilesystemManifest(dir)
	if err := m.PublishLatest("sid-123", 42); err != nil {
		t.Fatalf("PublishLatest error: %v", err)
	}
	got, err := m.ReadLatest()
	if err != nil {
		t.Fatalf("ReadLatest error: %v", err)
	}
	if got.SnapshotID != "sid-123" || got.LastSeq != 42 || got.CreatedAtEpochSecond == 0 {
		t.Fatalf("unexpected manifest: %+v", got)
	}
	if age := got.Age(time.Now()); age < 0 || age > time.Minute {
		t.Fatalf("unexpected age: %v", age)
	}
}

func TestReadLatest_NothingPublished(t *testing.T) {
	_, err := NewFilesystemManifest(t.TempDir()).ReadLatest()
	if !errors.Is(err, ErrNoManifest) {
		t.Fatalf("want ErrNoManifest, got %v", err)
	}
}

func TestMultiPublisher_WritesAll(t *testing.T) {
	a := NewFilesystemManifest(t.TempDir())
	fk := &fakeKafkaWriter{}
	if err := MultiPublisher(a, NewKafkaManifestWith(fk, DefaultKey)).PublishLatest("sid", 7); err != nil {
		t.Fatalf("publish: %v", err)
	}
	got, err := a.ReadLatest()
	if err != nil || got.LastSeq != 7 {
		t.Fatalf("file manifest: %+v %v", got, err)
	}
	if len(fk.msgs) != 1 {
		t.Fatalf("want 1 kafka msg, got %d", len(fk.msgs))
	}
}

// fakeKafkaWriter implements kafkaMessageWriter for tests
type fakeKafkaWriter struct {
	msgs []kafka.Message
	fail bool
}

func (f *fakeKafkaWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if f.fail {
		return errors.New("fail")
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func TestKafkaManifest_PublishLatest_Success(t *testing.T) {
	fk := &fakeKafkaWriter{}
	km := NewKafkaManifestWith(fk, DefaultKey)
	if err := km.PublishLatest("sid-abc", 99); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(fk.msgs) != 1 {
		t.Fatalf("want 1 msg, got %d", len(fk.msgs))
	}
	if string(fk.msgs[0].Key) != DefaultKey {
		t.Fatalf("bad key: %s", string(fk.msgs[0].Key))
	}
	var m Manifest
	if err := json.Unmarshal(fk.msgs[0].Value, &m); err != nil || m.LastSeq != 99 {
		t.Fatalf("bad value: %+v %v", m, err)
	}
}

func TestKafkaManifest_PublishLatest_Fail(t *testing.T) {
	fk := &fakeKafkaWriter{fail: true}
	km := NewKafkaManifestWith(fk, DefaultKey)
	if err := km.PublishLatest("sid-abc", 99); err == nil {
		t.Fatalf("expected error")
	}
}

// fakeKafkaReader replays a fixed message list, then blocks until the context ends.
type fakeKafkaReader struct {
	msgs []kafka.Message
}

func (f *fakeKafkaReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	if len(f.msgs) > 0 {
		m := f.msgs[0]
		f.msgs = f.msgs[1:]
		return m, nil
	}
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (f *fakeKafkaReader) Close() error { return nil }

func TestKafkaReader_KeepsLastForKey(t *testing.T) {
	fr := &fakeKafkaReader{msgs: []kafka.Message{
		{Key: []byte(DefaultKey), Value: []byte(`{"snapshotId":"s1","lastSeq":1,"createdAt":1}`)},
		{Key: []byte("other"), Value: []byte(`{"snapshotId":"x","lastSeq":9,"createdAt":1}`)},
		{Key: []byte(DefaultKey), Value: []byte(`{"snapshotId":"s2","lastSeq":5,"createdAt":2}`)},
	}}
	got, err := NewKafkaReaderWith(fr, DefaultKey, 50*time.Millisecond).ReadLatest()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.SnapshotID != "s2" || got.LastSeq != 5 {
		t.Fatalf("unexpected manifest: %+v", got)
	}
}

func TestKafkaReader_Empty(t *testing.T) {
	_, err := NewKafkaReaderWith(&fakeKafkaReader{}, DefaultKey, 20*time.Millisecond).ReadLatest()
	if !errors.Is(err, ErrNoManifest) {
		t.Fatalf("want ErrNoManifest, got %v", err)
	}
}
