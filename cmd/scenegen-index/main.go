// Command scenegen-index fills the Redis retrieval index from Python sources
// or a YAML corpus.
//
//	scenegen-index [--reset] [--export corpus.yaml] <path>...
//
// Directories are walked for .py files, each split into class, method and
// function chunks. Files ending in .yaml or .yml are read as corpora. Redis
// connection settings come from the REDIS_* environment variables.
package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/aescanero/scenegen/internal/config"
	"github.com/aescanero/scenegen/pkg/adapters/retrieval"
	retrievalredis "github.com/aescanero/scenegen/pkg/adapters/retrieval/redis"
	"github.com/aescanero/scenegen/pkg/domain"

	"github.com/caarlos0/env/v10"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	reset := flag.Bool("reset", false, "remove the existing index before loading")
	export := flag.String("export", "", "also write the loaded documents to this YAML corpus file")
	dryRun := flag.Bool("dry-run", false, "collect documents without writing to Redis")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] <path>...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	docs, duplicates, err := collect(flag.Args())
	if err != nil {
		logger.Fatal("failed to collect documents", zap.Error(err))
	}
	logger.Info("documents collected",
		zap.Int("count", len(docs)),
		zap.Int("duplicates_skipped", duplicates))

	if *export != "" {
		data, err := retrieval.MarshalCorpus(docs)
		if err != nil {
			logger.Fatal("failed to encode corpus", zap.Error(err))
		}
		if err := os.WriteFile(*export, data, 0o644); err != nil {
			logger.Fatal("failed to write corpus", zap.Error(err))
		}
		logger.Info("corpus exported", zap.String("path", *export))
	}

	if *dryRun {
		return
	}

	var redisCfg config.RedisConfig
	if err := env.Parse(&redisCfg); err != nil {
		logger.Fatal("failed to parse Redis config", zap.Error(err))
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:        redisCfg.Addr,
		Password:    redisCfg.Password,
		DB:          redisCfg.DB,
		DialTimeout: redisCfg.DialTimeout,
	})
	defer client.Close()

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Fatal("failed to connect to Redis", zap.Error(err))
	}

	index := retrievalredis.NewIndex(client, logger)
	if *reset {
		if err := index.Reset(ctx); err != nil {
			logger.Fatal("failed to reset index", zap.Error(err))
		}
	}

	skipped, err := index.Add(ctx, docs...)
	if err != nil {
		logger.Fatal("failed to index documents", zap.Error(err))
	}
	logger.Info("index updated",
		zap.String("redis", redisCfg.Addr),
		zap.Int("added", len(docs)-skipped),
		zap.Int("skipped", skipped))
}

// collect reads every path into one document list. Later documents with an
// id already collected are dropped and counted.
func collect(paths []string) (docs []domain.Match, duplicates int, err error) {
	seen := make(map[string]struct{})

	add := func(batch []domain.Match) error {
		for _, doc := range batch {
			if _, dup := seen[doc.ID]; dup {
				duplicates++
				continue
			}
			seen[doc.ID] = struct{}{}
			docs = append(docs, doc)
		}
		return nil
	}

	for _, root := range paths {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}

			switch strings.ToLower(filepath.Ext(path)) {
			case ".yaml", ".yml":
				batch, err := retrieval.LoadCorpus(path)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				return add(batch)
			case ".py":
				code, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				return add(retrieval.ChunkPython(string(code), path))
			}
			return nil
		})
		if err != nil {
			return nil, duplicates, err
		}
	}

	return docs, duplicates, nil
}
