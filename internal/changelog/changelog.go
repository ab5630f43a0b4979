package changelog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/segmentio/kafka-go"
)

// Op names the kind of selection mutation a Delta records.
type Op string

const (
	// OpSet records the new absolute quantity of a key.
	OpSet Op = "set"
	// OpDrop records a key removed because the catalog no longer lists it.
	OpDrop Op = "drop"
	// OpReset records the whole selection being cleared on order confirmation.
	OpReset Op = "reset"
)

// ResetKey is the key carried by OpReset deltas.
const ResetKey = "*"

type Delta struct {
	Key string `json:"key"`
	Seq int64  `json:"seq"`
	Op  Op     `json:"op"`
	Qty int    `json:"qty,omitempty"` // absolute quantity after OpSet
	TS  int64  `json:"ts"`
}

type Writer interface {
	Append(d Delta) error
}

// MultiWriter fans out writes to multiple underlying writers.
type MultiWriter struct {
	writers []Writer
}

func NewMultiWriter(ws ...Writer) *MultiWriter {
	return &MultiWriter{writers: ws}
}

func (m *MultiWriter) Append(d Delta) error {
	for _, w := range m.writers {
		if err := w.Append(d); err != nil {
			return err
		}
	}
	return nil
}

// Discard drops every delta.
var Discard Writer = discard{}

type discard struct{}

func (discard) Append(Delta) error { return nil }

// FileWriter appends deltas as JSON lines.
type FileWriter struct {
	path string
}

func NewFileWriter(dir string, filename string) (*FileWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir: %w", err)
	}
	return &FileWriter{path: filepath.Join(dir, filename)}, nil
}

// Path returns the file the writer appends to.
func (w *FileWriter) Path() string { return w.path }

func (w *FileWriter) Append(d Delta) error {
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	if err := enc.Encode(&d); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// KafkaWriter publishes each delta to a topic, keyed by selection key so all
// changes to one unit land on one partition in order.
type KafkaWriter struct {
	writer kafkaMessageWriter
}

// kafkaMessageWriter is the part of kafka.Writer the changelog uses.
type kafkaMessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewKafkaWriter writes synchronously and waits for all in-sync replicas.
// bootstrap is a comma-separated host:port list.
func NewKafkaWriter(bootstrap string, topic string) *KafkaWriter {
	return NewKafkaWriterWith(&kafka.Writer{
		Addr:         kafka.TCP(brokerList(bootstrap)...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	})
}

// NewKafkaWriterWith wraps an existing message writer.
func NewKafkaWriterWith(w kafkaMessageWriter) *KafkaWriter {
	return &KafkaWriter{writer: w}
}

func (k *KafkaWriter) Append(d Delta) error {
	value, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal delta: %w", err)
	}
	msg := kafka.Message{Key: []byte(d.Key), Value: value}
	if err := k.writer.WriteMessages(context.Background(), msg); err != nil {
		return fmt.Errorf("publish delta %d: %w", d.Seq, err)
	}
	return nil
}

// Close flushes and releases the underlying writer.
func (k *KafkaWriter) Close() error { return k.writer.Close() }

func brokerList(bootstrap string) []string {
	var brokers []string
	for _, a := range strings.Split(bootstrap, ",") {
		if a = strings.TrimSpace(a); a != "" {
			brokers = append(brokers, a)
		}
	}
	return brokers
}
