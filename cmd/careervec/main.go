// Package main is the careervec CLI entry point.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/careervec/internal/config"
	"github.com/hyperjump/careervec/internal/embedding"
	"github.com/hyperjump/careervec/internal/extract"
	"github.com/hyperjump/careervec/internal/indexer"
	"github.com/hyperjump/careervec/internal/storage"
	"github.com/hyperjump/careervec/internal/store"
	"github.com/hyperjump/careervec/pkg/utils"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var version = "dev"

const defaultConfigPath = "config.yaml"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// rootOptions holds the persistent flags.
type rootOptions struct {
	configPath string
	debug      bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "careervec",
		Short:         "careervec - semantic search over your career documents",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", defaultConfigPath, "config file path")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")

	root.AddCommand(
		newEmbedCmd(opts),
		newSearchCmd(opts),
		newStatusCmd(opts),
		newClearCmd(opts),
		newServeCmd(opts),
		newWatchCmd(opts),
		newVersionCmd(),
	)
	return root
}

// loadConfig loads config from path. A missing file at the default path is not
// an error: every default applies, with relative paths resolved against the
// current directory. Returns the config and the path actually loaded ("" for defaults).
func loadConfig(path string) (*config.Config, string, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) && path == defaultConfigPath {
			cwd, err := os.Getwd()
			if err != nil {
				return nil, "", err
			}
			return config.Default(cwd), "", nil
		}
		return nil, "", fmt.Errorf("failed to load config: %w", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// Components are the wired pieces every command works with.
type Components struct {
	Config   *config.Config
	Logger   *zap.Logger
	Embedder embedding.Embedder
	Store    *store.VectorStore
	Catalog  *storage.SQLiteCatalog
	Indexer  *indexer.Indexer
}

// Close releases the catalog and embedder and flushes the logger.
func (c *Components) Close() {
	if c.Catalog != nil {
		_ = c.Catalog.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Logger != nil {
		_ = c.Logger.Sync()
	}
}

func (o *rootOptions) setup() (*Components, error) {
	cfg, resolved, err := loadConfig(o.configPath)
	if err != nil {
		return nil, err
	}
	debug := cfg.Debug || o.debug
	logger, err := utils.NewLoggerFromConfig(cfg.Logging.Level, cfg.Logging.LogFile, debug)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	if resolved == "" {
		logger.Debug("no config file, using defaults", zap.String("looked_for", o.configPath))
	} else {
		logger.Debug("config loaded", zap.String("config_path", resolved), zap.Bool("debug", debug))
	}

	c, err := initializeComponents(cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	return c, nil
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	c := &Components{Config: cfg, Logger: logger}

	emb, err := embedding.New(cfg.AI, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	c.Embedder = emb

	vdb := cfg.AI.VectorDB
	vs, err := store.New(store.Config{
		ModelName:  cfg.AI.EmbeddingModel,
		Dimension:  vdb.Dimension,
		IndexType:  vdb.IndexType,
		StorageDir: vdb.StorageDir,
	}, emb, logger)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize vector store: %w", err)
	}
	c.Store = vs

	catalog, err := storage.NewSQLiteCatalog(filepath.Join(vdb.StorageDir, storage.CatalogFileName))
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize catalog: %w", err)
	}
	c.Catalog = catalog

	chunker, err := indexer.NewChunker(cfg.Chunking.ChunkSize, cfg.Chunking.OverlapOrDefault())
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("invalid chunking config: %w", err)
	}
	c.Indexer = indexer.NewIndexer(vs, catalog, extract.NewParser(logger), chunker,
		indexer.WithLogger(logger),
		indexer.WithProfilePath(cfg.Data.ProfilePath))

	logger.Debug("components initialized",
		zap.String("model", vs.ModelName()),
		zap.Int("dimension", vs.Dimension()),
		zap.String("index_type", vs.IndexType()),
		zap.Int("vectors", vs.Size()))
	return c, nil
}

// buildSearchQuery joins positional arguments so multi-word queries work with or without quotes.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}
