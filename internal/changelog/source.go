package changelog

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/segmentio/kafka-go"
)

// Source yields recorded deltas in append order.
type Source interface {
	ReadAll(ctx context.Context) ([]Delta, int64, error)
}

// FileSource reads a JSON-lines changelog. A missing file is an empty log.
type FileSource struct {
	path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// ReadAll returns the decoded deltas and the number of bytes consumed.
func (s *FileSource) ReadAll(ctx context.Context) ([]Delta, int64, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("open changelog: %w", err)
	}
	defer f.Close()

	var (
		out   []Delta
		bytes int64
		line  int
	)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return out, bytes, err
		}
		raw := scanner.Bytes()
		bytes += int64(len(raw)) + 1
		if len(raw) == 0 {
			continue
		}
		var d Delta
		if err := json.Unmarshal(raw, &d); err != nil {
			return out, bytes, fmt.Errorf("unmarshal line %d: %w", line, err)
		}
		out = append(out, d)
	}
	if err := scanner.Err(); err != nil {
		return out, bytes, fmt.Errorf("scan changelog: %w", err)
	}
	return out, bytes, nil
}

// kafkaMessageReader abstracts kafka.Reader for testability.
type kafkaMessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// KafkaSource consumes partition 0 of the changelog topic from the start
// until the read deadline passes.
type KafkaSource struct {
	newReader func() kafkaMessageReader
	timeout   time.Duration
}

func NewKafkaSource(brokers []string, topic string) *KafkaSource {
	return &KafkaSource{
		newReader: func() kafkaMessageReader {
			return kafka.NewReader(kafka.ReaderConfig{
				Brokers:   brokers,
				Topic:     topic,
				Partition: 0,
				MinBytes:  1,
				MaxBytes:  10e6,
			})
		},
		timeout: 20 * time.Second,
	}
}

// NewKafkaSourceWith is only for tests to inject a fake reader.
func NewKafkaSourceWith(r kafkaMessageReader, timeout time.Duration) *KafkaSource {
	return &KafkaSource{newReader: func() kafkaMessageReader { return r }, timeout: timeout}
}

func (k *KafkaSource) ReadAll(ctx context.Context) ([]Delta, int64, error) {
	rd := k.newReader()
	defer rd.Close()

	ctx, cancel := context.WithTimeout(ctx, k.timeout)
	defer cancel()

	var (
		out   []Delta
		bytes int64
	)
	for {
		m, err := rd.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			return out, bytes, fmt.Errorf("read kafka: %w", err)
		}
		bytes += int64(len(m.Value))
		var d Delta
		if err := json.Unmarshal(m.Value, &d); err != nil {
			return out, bytes, fmt.Errorf("unmarshal delta: %w", err)
		}
		out = append(out, d)
	}
	return out, bytes, nil
}
