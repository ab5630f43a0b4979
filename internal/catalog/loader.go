package catalog

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"gopkg.in/yaml.v3"
)

// ErrNoCatalog is returned when a source holds no catalog at all.
var ErrNoCatalog = errors.New("catalog: no catalog published")

// Loader produces one catalog snapshot per call.
type Loader interface {
	Load(ctx context.Context) ([]Record, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context) ([]Record, error)

func (f LoaderFunc) Load(ctx context.Context) ([]Record, error) { return f(ctx) }

// StaticLoader always returns the same records.
type StaticLoader []Record

func (s StaticLoader) Load(context.Context) ([]Record, error) {
	return append([]Record(nil), s...), nil
}

// FileLoader reads a catalog file on every call. The format follows the
// extension: .json, .yaml/.yml, or .csv (a spreadsheet export with header row).
type FileLoader struct {
	path string
}

func NewFileLoader(path string) *FileLoader {
	return &FileLoader{path: filepath.Clean(path)}
}

func (f *FileLoader) Load(ctx context.Context) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	switch strings.ToLower(filepath.Ext(f.path)) {
	case ".yaml", ".yml":
		var recs []Record
		if err := yaml.Unmarshal(data, &recs); err != nil {
			return nil, fmt.Errorf("decode yaml catalog: %w", err)
		}
		return recs, nil
	case ".csv":
		r := csv.NewReader(bytes.NewReader(data))
		r.FieldsPerRecord = -1
		rows, err := r.ReadAll()
		if err != nil {
			return nil, fmt.Errorf("decode csv catalog: %w", err)
		}
		return FromSheetRows(rows), nil
	default:
		return DecodeJSON(data)
	}
}

// DecodeJSON decodes a JSON array of records.
func DecodeJSON(data []byte) ([]Record, error) {
	var recs []Record
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("decode json catalog: %w", err)
	}
	return recs, nil
}

// kafkaMessageReader abstracts kafka.Reader for testability.
type kafkaMessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// KafkaLoader reads the latest catalog published under a key on a compacted topic.
type KafkaLoader struct {
	newReader func() kafkaMessageReader
	key       []byte
	timeout   time.Duration
}

// NewKafkaLoader creates a loader over partition 0 of topic.
// bootstrap can be a comma-separated list of host:port.
func NewKafkaLoader(bootstrap string, topic string, key string) *KafkaLoader {
	brokers := SplitBrokers(bootstrap)
	return &KafkaLoader{
		newReader: func() kafkaMessageReader {
			return kafka.NewReader(kafka.ReaderConfig{
				Brokers:   brokers,
				Topic:     topic,
				Partition: 0,
				MinBytes:  1,
				MaxBytes:  10e6,
			})
		},
		key:     []byte(key),
		timeout: 10 * time.Second,
	}
}

// NewKafkaLoaderWith is only for tests to inject a fake reader.
func NewKafkaLoaderWith(r kafkaMessageReader, key string, timeout time.Duration) *KafkaLoader {
	return &KafkaLoader{newReader: func() kafkaMessageReader { return r }, key: []byte(key), timeout: timeout}
}

// Load scans the topic from the beginning and keeps the last value seen for
// the key. The scan ends when the read deadline passes.
func (k *KafkaLoader) Load(ctx context.Context) ([]Record, error) {
	r := k.newReader()
	defer r.Close()

	ctx, cancel := context.WithTimeout(ctx, k.timeout)
	defer cancel()

	var last []byte
	for {
		m, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			return nil, fmt.Errorf("read kafka: %w", err)
		}
		if !bytes.Equal(m.Key, k.key) {
			continue
		}
		last = m.Value
	}
	if last == nil {
		return nil, ErrNoCatalog
	}
	return DecodeJSON(last)
}

// SplitBrokers splits a comma-separated bootstrap list, dropping blanks.
func SplitBrokers(bootstrap string) []string {
	var brokers []string
	for _, a := range strings.Split(bootstrap, ",") {
		a = strings.TrimSpace(a)
		if a != "" {
			brokers = append(brokers, a)
		}
	}
	return brokers
}
