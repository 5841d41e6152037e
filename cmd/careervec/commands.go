package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/hyperjump/careervec/internal/cli"
	"github.com/hyperjump/careervec/internal/extract"
	"github.com/hyperjump/careervec/internal/models"
	"github.com/hyperjump/careervec/internal/server"
	"github.com/hyperjump/careervec/internal/store"
	"github.com/hyperjump/careervec/internal/watcher"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	probeK        = 3
	clientTimeout = 30 * time.Second
)

func newEmbedCmd(opts *rootOptions) *cobra.Command {
	var probes []string
	var noProbe bool
	var output string
	cmd := &cobra.Command{
		Use:   "embed",
		Short: "Parse the data directory and embed new or changed documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := cli.ParseOutputFormat(output)
			if err != nil {
				return err
			}
			c, err := opts.setup()
			if err != nil {
				return err
			}
			defer c.Close()

			ctx := cmd.Context()
			report, err := c.Indexer.Run(ctx, c.Config.Data.Directory)
			if err != nil {
				if errors.Is(err, extract.ErrPathInvalid) {
					return fmt.Errorf("%w (create it and add your resume, transcripts and project files)", err)
				}
				return err
			}
			out := cmd.OutOrStdout()
			if err := cli.WriteReport(out, report, format); err != nil {
				return err
			}
			if noProbe || report.TotalVectors == 0 || format == cli.OutputJSON {
				return nil
			}
			results, err := c.Indexer.Probe(ctx, probes, probeK)
			if err != nil {
				return err
			}
			fmt.Fprintln(out)
			cli.WriteProbeResults(out, results)
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&probes, "probe", nil, "query to run after embedding (repeatable; default: built-in sanity queries)")
	cmd.Flags().BoolVar(&noProbe, "no-probe", false, "skip the sanity queries")
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text, json")
	return cmd
}

func newSearchCmd(opts *rootOptions) *cobra.Command {
	var k int
	var output, serverURL string
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the embedded documents",
		Long:  "Query is all remaining arguments joined by spaces. Multi-word queries work with or without quotes.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := cli.ParseOutputFormat(output)
			if err != nil {
				return err
			}
			query := buildSearchQuery(args)
			if query == "" {
				return errors.New("query is required")
			}
			if k <= 0 {
				k = store.DefaultK
			}

			var resp *models.SearchResponse
			if serverURL != "" {
				resp, err = searchViaHTTP(cmd.Context(), serverURL, &models.SearchRequest{Query: query, K: k})
				if err != nil {
					return err
				}
			} else {
				c, err := opts.setup()
				if err != nil {
					return err
				}
				defer c.Close()
				start := time.Now()
				hits, err := c.Store.Search(cmd.Context(), query, k)
				if err != nil {
					return err
				}
				resp = &models.SearchResponse{
					Query:     query,
					K:         k,
					Hits:      hits,
					Total:     len(hits),
					QueryTime: time.Since(start).Milliseconds(),
				}
			}
			return cli.WriteSearchResults(cmd.OutOrStdout(), resp, format)
		},
	}
	cmd.Flags().IntVarP(&k, "k", "k", store.DefaultK, "number of results")
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text, json, compact")
	cmd.Flags().StringVar(&serverURL, "server", "", "query a running server at this URL instead of the local store")
	return cmd
}

func newStatusCmd(opts *rootOptions) *cobra.Command {
	var output, serverURL string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show vector store status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := cli.ParseOutputFormat(output)
			if err != nil {
				return err
			}
			var st *models.Status
			if serverURL != "" {
				st = &models.Status{}
				if err := getJSON(cmd.Context(), serverURL+"/api/v1/status", st); err != nil {
					return err
				}
			} else {
				c, err := opts.setup()
				if err != nil {
					return err
				}
				defer c.Close()
				st, err = c.Store.Status()
				if err != nil {
					c.Logger.Warn("disk usage unavailable", zap.Error(err))
				}
				if st.Documents, err = c.Catalog.Count(cmd.Context()); err != nil {
					return err
				}
			}
			return cli.WriteStatus(cmd.OutOrStdout(), st, format)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text, json")
	cmd.Flags().StringVar(&serverURL, "server", "", "read status from a running server at this URL")
	return cmd
}

func newClearCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete the saved index, metadata and document catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.setup()
			if err != nil {
				return err
			}
			defer c.Close()
			if err := c.Store.Purge(); err != nil {
				return err
			}
			if err := c.Catalog.Reset(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Vector store cleared.")
			return nil
		},
	}
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.setup()
			if err != nil {
				return err
			}
			defer c.Close()
			logger := c.Logger

			srv := server.NewServer(c.Store, c.Indexer, c.Config, logger, server.WithCatalog(c.Catalog))
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if watch {
				w := newDataWatcher(c, func() {
					if _, err := srv.Ingest(context.Background()); err != nil {
						logger.Warn("re-ingest after change failed", zap.Error(err))
					}
				})
				if err := w.Start(ctx); err != nil {
					return fmt.Errorf("failed to start watcher: %w", err)
				}
				defer w.Stop()
			}

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()
			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}
			logger.Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Stop(shutdownCtx)
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "re-ingest when files in the data directory change")
	return cmd
}

func newWatchCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Embed the data directory, then re-embed whenever it changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.setup()
			if err != nil {
				return err
			}
			defer c.Close()
			out := cmd.OutOrStdout()

			var mu sync.Mutex
			ingest := func(ctx context.Context) {
				mu.Lock()
				defer mu.Unlock()
				report, err := c.Indexer.Run(ctx, c.Config.Data.Directory)
				if err != nil {
					c.Logger.Error("ingest failed", zap.Error(err))
					return
				}
				_ = cli.WriteReport(out, report, cli.OutputText)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if _, err := os.Stat(c.Config.Data.Directory); err != nil {
				return fmt.Errorf("%w: data directory not found: %s", extract.ErrPathInvalid, c.Config.Data.Directory)
			}
			ingest(ctx)

			w := newDataWatcher(c, func() { ingest(ctx) })
			if err := w.Start(ctx); err != nil {
				return fmt.Errorf("failed to start watcher: %w", err)
			}
			defer w.Stop()
			fmt.Fprintf(out, "Watching %s (Ctrl+C to stop)\n", w.Dir())
			<-ctx.Done()
			return nil
		},
	}
}

// newDataWatcher watches the data directory for supported files, ignoring the
// profile the pipeline writes there itself.
func newDataWatcher(c *Components, onChange func()) *watcher.Watcher {
	return watcher.NewWatcher(
		c.Config.Data.Directory,
		extract.SupportedExtensions,
		func(paths []string) {
			c.Logger.Info("data directory changed", zap.Strings("paths", paths))
			onChange()
		},
		watcher.WithLogger(c.Logger),
		watcher.WithIgnore(c.Config.Data.ProfilePath),
	)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "careervec version %s\n", version)
		},
	}
}

func searchViaHTTP(ctx context.Context, serverURL string, req *models.SearchRequest) (*models.SearchResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	var resp models.SearchResponse
	if err := doJSON(ctx, http.MethodPost, serverURL+"/api/v1/search", bytes.NewReader(body), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func getJSON(ctx context.Context, url string, out any) error {
	return doJSON(ctx, http.MethodGet, url, nil, out)
}

func doJSON(ctx context.Context, method, url string, body io.Reader, out any) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, clientTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return fmt.Errorf("server returned %s: %s", resp.Status, e.Error)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
