package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/servir/aces/config"
	"github.com/servir/aces/dataset"
	"github.com/servir/aces/ingest"
	"github.com/servir/aces/manuscript"
	"github.com/servir/aces/manuscript/validation"
	"github.com/servir/aces/storage"
	"github.com/servir/aces/telemetry"
)

const (
	subjectPaperValidated = "aces.paper.validated"
	subjectShardIndexed   = "aces.dataset.indexed"
)

// App holds the long-running service components: the NATS backbone, the
// entity store, the filesystem watchers, and the metrics endpoint.
type App struct {
	config *config.Config
	logger *slog.Logger

	natsServer *natsserver.Server
	natsConn   *nats.Conn
	js         jetstream.JetStream
	store      *storage.Store

	validator *validation.Validator

	paperWatcher *ingest.Watcher
	dataWatchers []*ingest.Watcher

	metrics       *telemetry.Metrics
	metricsServer *telemetry.Server
}

// NewApp creates an App from configuration. Nothing is started until
// Start is called.
func NewApp(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		config: cfg,
		logger: logger,
		validator: validation.New(validation.Config{
			RequireDoctype: true,
			RequireORCID:   cfg.Paper.RequireORCID,
			DTDVersion:     cfg.Paper.DTDVersion,
		}),
		metrics: telemetry.New(),
	}
}

// Start brings up NATS, storage, the metrics endpoint, and the watchers.
func (a *App) Start(ctx context.Context) error {
	if err := a.startNATS(); err != nil {
		return fmt.Errorf("failed to start NATS: %w", err)
	}

	js, err := jetstream.New(a.natsConn)
	if err != nil {
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}
	a.js = js

	store, err := storage.NewStore(ctx, js)
	if err != nil {
		return fmt.Errorf("failed to create entity store: %w", err)
	}
	a.store = store

	if a.config.Metrics.Addr != "" {
		a.metricsServer = telemetry.NewServer(a.config.Metrics.Addr, a.metrics, a.logger)
		go func() {
			if err := a.metricsServer.Start(); err != nil {
				a.logger.Error("metrics server failed", "error", err)
			}
		}()
		a.logger.Info("metrics endpoint listening", "addr", a.config.Metrics.Addr)
	}

	if a.config.Watch.Enabled {
		if err := a.startWatchers(ctx); err != nil {
			return fmt.Errorf("failed to start watchers: %w", err)
		}
	}

	return nil
}

// startNATS runs an embedded server unless an external URL is configured.
func (a *App) startNATS() error {
	url := a.config.NATS.URL

	if a.config.NATS.Embedded && url == "" {
		opts := &natsserver.Options{
			Port:      -1,
			JetStream: true,
			NoLog:     true,
			NoSigs:    true,
		}

		ns, err := natsserver.NewServer(opts)
		if err != nil {
			return fmt.Errorf("failed to create embedded NATS server: %w", err)
		}

		go ns.Start()
		if !ns.ReadyForConnections(5 * time.Second) {
			return fmt.Errorf("embedded NATS server did not become ready")
		}

		a.natsServer = ns
		url = ns.ClientURL()
		a.logger.Info("embedded NATS server started", "url", url)
	}

	nc, err := nats.Connect(url)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}
	a.natsConn = nc

	return nil
}

func (a *App) startWatchers(ctx context.Context) error {
	paperCfg := ingest.WatchConfig{
		Enabled:        true,
		Debounce:       a.config.Watch.Debounce,
		FileExtensions: a.config.Watch.PaperExtensions,
		ExcludeDirs:    a.config.Watch.ExcludeDirs,
	}
	pw, err := ingest.NewWatcher(paperCfg, a.config.Paper.SubmissionsDir, a.logger)
	if err != nil {
		return fmt.Errorf("failed to create submissions watcher: %w", err)
	}
	if err := pw.Start(ctx); err != nil {
		return fmt.Errorf("failed to start submissions watcher: %w", err)
	}
	a.paperWatcher = pw
	go a.processPaperEvents(ctx, pw)

	dataCfg := ingest.WatchConfig{
		Enabled:        true,
		Debounce:       a.config.Watch.Debounce,
		FileExtensions: a.config.Watch.DataExtensions,
		ExcludeDirs:    a.config.Watch.ExcludeDirs,
	}
	for _, dir := range []string{
		a.config.Data.TrainingDir,
		a.config.Data.TestingDir,
		a.config.Data.ValidationDir,
	} {
		dw, err := ingest.NewWatcher(dataCfg, dir, a.logger)
		if err != nil {
			return fmt.Errorf("failed to create data watcher for %s: %w", dir, err)
		}
		if err := dw.Start(ctx); err != nil {
			return fmt.Errorf("failed to start data watcher for %s: %w", dir, err)
		}
		a.dataWatchers = append(a.dataWatchers, dw)
		go a.processDataEvents(ctx, dw)
	}

	return nil
}

func (a *App) processPaperEvents(ctx context.Context, w *ingest.Watcher) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.Events():
			if !ok {
				return
			}
			if event.Operation == ingest.WatchOpDelete {
				continue
			}
			if err := a.handlePaperEvent(ctx, event); err != nil {
				a.logger.Error("failed to process manuscript",
					"path", event.Path, "error", err)
			}
			a.metrics.WatchEventsDropped.Set(float64(w.DroppedEvents()))
		}
	}
}

func (a *App) handlePaperEvent(ctx context.Context, event ingest.WatchEvent) error {
	doc, err := manuscript.ParseFile(event.AbsPath)
	if err != nil {
		return fmt.Errorf("failed to parse manuscript: %w", err)
	}

	report := a.validator.Validate(doc)

	status := storage.ManuscriptStatusValid
	if !report.Valid {
		status = storage.ManuscriptStatusInvalid
	}

	meta := &doc.Article.Front.Meta
	var contributors []string
	for _, c := range meta.Contributors() {
		contributors = append(contributors, c.Name.String())
	}

	record := &storage.Manuscript{
		Path:         event.AbsPath,
		Title:        meta.Title,
		DOI:          meta.DOI(),
		Contributors: contributors,
		Status:       status,
		Failures:     len(report.Failures),
		Warnings:     len(report.Warnings),
		Feedback:     report.FormatFeedback(),
	}

	existing, err := a.store.GetManuscriptByPath(ctx, event.AbsPath)
	switch {
	case err == nil:
		record.ID = existing.ID
		record.CreatedAt = existing.CreatedAt
		err = a.store.UpdateManuscript(ctx, record)
	case err == storage.ErrNotFound:
		_, err = a.store.CreateManuscript(ctx, record)
	}
	if err != nil {
		return fmt.Errorf("failed to store manuscript record: %w", err)
	}

	a.metrics.ManuscriptsValidated.WithLabelValues(string(status)).Inc()
	a.metrics.ValidationFailures.Add(float64(len(report.Failures)))

	a.logger.Info("manuscript validated",
		"path", event.Path,
		"status", status,
		"failures", len(report.Failures),
		"warnings", len(report.Warnings))

	return a.publish(subjectPaperValidated, record)
}

func (a *App) processDataEvents(ctx context.Context, w *ingest.Watcher) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.Events():
			if !ok {
				return
			}
			if event.Operation == ingest.WatchOpDelete {
				continue
			}
			if err := a.handleDataEvent(ctx, event); err != nil {
				a.logger.Error("failed to index shard",
					"path", event.Path, "error", err)
			}
			a.metrics.WatchEventsDropped.Set(float64(w.DroppedEvents()))
		}
	}
}

func (a *App) handleDataEvent(ctx context.Context, event ingest.WatchEvent) error {
	info, err := dataset.Inspect(event.AbsPath)
	if err != nil {
		return fmt.Errorf("failed to inspect shard: %w", err)
	}

	content, err := os.ReadFile(event.AbsPath)
	if err != nil {
		return fmt.Errorf("failed to read shard: %w", err)
	}

	var bands []string
	for _, b := range info.Bands {
		bands = append(bands, b.Name)
	}

	record := &storage.DatasetShard{
		Path:      event.AbsPath,
		Split:     a.splitForPath(event.AbsPath),
		Records:   info.Records,
		PatchSize: a.config.Data.PatchSize,
		Bands:     bands,
		Hash:      ingest.ContentHash(content),
	}

	existing, err := a.store.GetShardByPath(ctx, event.AbsPath)
	switch {
	case err == nil:
		if existing.Hash == record.Hash {
			return nil
		}
		record.ID = existing.ID
		record.CreatedAt = existing.CreatedAt
		err = a.store.UpdateShard(ctx, record)
	case err == storage.ErrNotFound:
		_, err = a.store.CreateShard(ctx, record)
	}
	if err != nil {
		return fmt.Errorf("failed to store shard record: %w", err)
	}

	a.metrics.ShardsIndexed.Inc()
	a.metrics.RecordsRead.Add(float64(info.Records))

	a.logger.Info("shard indexed",
		"path", event.Path,
		"split", record.Split,
		"records", info.Records)

	return a.publish(subjectShardIndexed, record)
}

// splitForPath maps a shard path onto the configured split directories.
func (a *App) splitForPath(path string) storage.Split {
	for _, entry := range []struct {
		dir   string
		split storage.Split
	}{
		{a.config.Data.TrainingDir, storage.SplitTraining},
		{a.config.Data.TestingDir, storage.SplitTesting},
		{a.config.Data.ValidationDir, storage.SplitValidation},
	} {
		abs, err := filepath.Abs(entry.dir)
		if err != nil {
			continue
		}
		if strings.HasPrefix(path, abs+string(filepath.Separator)) {
			return entry.split
		}
	}
	return ""
}

func (a *App) publish(subject string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}
	if err := a.natsConn.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}
	return nil
}

// Shutdown stops watchers, the metrics server, and the NATS backbone.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down")

	if a.paperWatcher != nil {
		if err := a.paperWatcher.Stop(); err != nil {
			a.logger.Error("failed to stop submissions watcher", "error", err)
		}
	}
	for _, w := range a.dataWatchers {
		if err := w.Stop(); err != nil {
			a.logger.Error("failed to stop data watcher", "error", err)
		}
	}

	if a.metricsServer != nil {
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			a.logger.Error("failed to stop metrics server", "error", err)
		}
	}

	if a.natsConn != nil {
		if err := a.natsConn.Drain(); err != nil {
			a.logger.Error("failed to drain NATS connection", "error", err)
		}
		a.natsConn.Close()
	}

	if a.natsServer != nil {
		a.natsServer.Shutdown()
		a.natsServer.WaitForShutdown()
	}

	a.logger.Info("shutdown complete")
	return nil
}
