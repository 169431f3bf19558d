// storagebench runs a write/read/delete workload against a configured
// storage backend and reports per-phase throughput.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/imor/database/internal/config"
	"github.com/imor/database/internal/storage"
	"github.com/imor/database/internal/storage/bolt"
	"github.com/imor/database/internal/storage/memory"
	"github.com/imor/database/internal/storage/pebble"
	"github.com/imor/database/pkg/log"
)

func main() {
	configPath := flag.String("config", "", "Path to TOML config file")
	backendName := flag.String("backend", "", "Backend override: pebble, memory or bolt")
	namespaces := flag.Int("namespaces", 2, "Number of namespaces")
	objects := flag.Int("objects", 4, "Number of objects per namespace")
	rows := flag.Int("rows", 10000, "Number of rows per object")
	valueSize := flag.Int("value-size", 128, "Value size in bytes")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if *backendName != "" {
		cfg.Storage.Backend = *backendName
		if err := cfg.Validate(); err != nil {
			fmt.Fprintln(os.Stderr, "config:", err)
			os.Exit(1)
		}
	}

	initLogging(cfg)
	log.Root.Debug().Str("config", *configPath).Msg("configuration loaded")

	backend, cleanup, err := openBackend(cfg)
	if err != nil {
		log.Bench.Error().Err(err).Msg("opening backend")
		os.Exit(1)
	}
	defer cleanup()

	log.Bench.Info().
		Str("backend", cfg.Storage.Backend).
		Int("namespaces", *namespaces).
		Int("objects", *objects).
		Int("rows", *rows).
		Int("value_size", *valueSize).
		Msg("starting workload")

	if err := run(backend, *namespaces, *objects, *rows, *valueSize); err != nil {
		log.Bench.Error().Err(err).Msg("workload failed")
		os.Exit(1)
	}
}

func initLogging(cfg *config.Config) {
	level, err := log.ParseLogLevel(cfg.Log.Level)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	loggerType := log.ConsoleLogger
	if cfg.Log.Format == "json" {
		loggerType = log.JSONLogger
	}
	log.Init(log.Options{LogLevel: level, Type: loggerType})
}

func openBackend(cfg *config.Config) (storage.Backend, func(), error) {
	switch cfg.Storage.Backend {
	case "pebble":
		b := pebble.New()
		log.Storage.Info().Str("backend", "pebble").Msg("backend opened")
		return b, func() { _ = b.Close() }, nil
	case "memory":
		log.Storage.Info().Str("backend", "memory").Msg("backend opened")
		return memory.New(), func() {}, nil
	case "bolt":
		b, err := bolt.New(cfg.Storage.DataDir)
		if err != nil {
			return nil, nil, err
		}
		log.Storage.Info().
			Str("backend", "bolt").
			Str("data_dir", cfg.Storage.DataDir).
			Msg("backend opened")
		return b, func() { _ = b.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown backend %q", cfg.Storage.Backend)
}

func run(backend storage.Backend, namespaces, objects, rows, valueSize int) error {
	var written, read, deleted int
	start := time.Now()

	for n := 0; n < namespaces; n++ {
		namespace := fmt.Sprintf("bench_ns_%d", n)
		if err := backend.CreateNamespace(namespace); err != nil {
			return fmt.Errorf("create namespace %s: %w", namespace, err)
		}
		for o := 0; o < objects; o++ {
			object := fmt.Sprintf("bench_obj_%d", o)
			if err := backend.CreateObject(namespace, object); err != nil {
				return fmt.Errorf("create object %s.%s: %w", namespace, object, err)
			}

			count, err := backend.Write(namespace, object, makeRows(rows, valueSize))
			written += count
			if err != nil {
				return fmt.Errorf("write %s.%s: %w", namespace, object, err)
			}

			count, err = scan(backend, namespace, object)
			read += count
			if err != nil {
				return err
			}

			count, err = backend.Delete(namespace, object, makeKeys(rows/2))
			deleted += count
			if err != nil {
				return fmt.Errorf("delete %s.%s: %w", namespace, object, err)
			}
		}
		if err := backend.DropNamespace(namespace); err != nil {
			return fmt.Errorf("drop namespace %s: %w", namespace, err)
		}
	}

	elapsed := time.Since(start)
	total := written + read + deleted
	log.Bench.Info().
		Int("written", written).
		Int("read", read).
		Int("deleted", deleted).
		Dur("elapsed", elapsed).
		Float64("ops_per_sec", float64(total)/elapsed.Seconds()).
		Msg("workload finished")
	return nil
}

func scan(backend storage.Backend, namespace, object string) (int, error) {
	cursor, err := backend.Read(namespace, object)
	if err != nil {
		return 0, fmt.Errorf("read %s.%s: %w", namespace, object, err)
	}
	defer cursor.Close()

	count := 0
	for cursor.Next() {
		if _, err := cursor.Row(); err != nil {
			return count, fmt.Errorf("cursor on %s.%s: %w", namespace, object, err)
		}
		count++
	}
	return count, nil
}

func makeRows(n, valueSize int) []storage.Row {
	rows := make([]storage.Row, n)
	for i := range rows {
		value := make([]byte, valueSize)
		rand.Read(value)
		rows[i] = storage.Row{
			Key:   storage.Key(fmt.Sprintf("key_%08d", i)),
			Value: value,
		}
	}
	return rows
}

func makeKeys(n int) []storage.Key {
	keys := make([]storage.Key, n)
	for i := range keys {
		keys[i] = storage.Key(fmt.Sprintf("key_%08d", i))
	}
	return keys
}
