// internal/archive/archive.go
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/elastic/go-elasticsearch/v8"

	"signup-orchestrator/internal/common/config"
	"signup-orchestrator/internal/common/logger"
	"signup-orchestrator/internal/status"
)

// Archiver indexes terminal workflow snapshots into Elasticsearch so finished
// runs can be searched after the status store entry expires. Writes are
// best-effort: failures are logged and never affect the workflow outcome.
type Archiver struct {
	client *elasticsearch.Client
	index  string
	logger logger.Logger
}

func New(cfg config.ArchiveConfig, log logger.Logger) (*Archiver, error) {
	esCfg := elasticsearch.Config{
		Addresses: cfg.Addresses,
	}
	if cfg.Username != "" {
		esCfg.Username = cfg.Username
		esCfg.Password = cfg.Password
	}

	es, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}

	return &Archiver{
		client: es,
		index:  cfg.Index,
		logger: log,
	}, nil
}

// Ping tests the Elasticsearch connection.
func (a *Archiver) Ping() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	res, err := a.client.Ping(a.client.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("elasticsearch ping failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch ping error: %s", res.Status())
	}
	return nil
}

// ArchiveRun indexes a terminal snapshot, keyed by tracking id so retried
// runs replace their earlier document.
func (a *Archiver) ArchiveRun(ctx context.Context, snapshot *status.Snapshot) {
	doc, err := buildDocument(snapshot)
	if err != nil {
		a.logger.WithError(err).Warn("Failed to build archive document", map[string]interface{}{
			"statusTrackingId": snapshot.StatusTrackingID,
		})
		return
	}

	res, err := a.client.Index(
		a.index,
		bytes.NewReader(doc),
		a.client.Index.WithDocumentID(snapshot.StatusTrackingID),
		a.client.Index.WithContext(ctx),
	)
	if err != nil {
		a.logger.WithError(err).Warn("Failed to archive workflow run", map[string]interface{}{
			"statusTrackingId": snapshot.StatusTrackingID,
			"index":            a.index,
		})
		return
	}
	defer res.Body.Close()

	if res.IsError() {
		a.logger.Warn("Archive index request rejected", map[string]interface{}{
			"statusTrackingId": snapshot.StatusTrackingID,
			"index":            a.index,
			"status":           res.Status(),
		})
	}
}

func buildDocument(snapshot *status.Snapshot) ([]byte, error) {
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return nil, err
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	doc["archivedAt"] = time.Now().UTC().Format(time.RFC3339)

	return json.Marshal(doc)
}
