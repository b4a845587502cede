package transfer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/runnerr0/burrow/internal/journey"
)

// BackupEntry is one journey with all of its nodes.
type BackupEntry struct {
	Journey *journey.Journey `json:"journey" validate:"required"`
	Nodes   []journey.Node   `json:"nodes" validate:"required"`
}

// Backup holds every stored journey.
type Backup struct {
	FormatVersion string        `json:"formatVersion" validate:"required"`
	ExportedAt    int64         `json:"exportedAt"`
	Journeys      []BackupEntry `json:"journeys" validate:"required,dive"`
}

// ExportAll snapshots every journey, screenshots included.
func (c *Codec) ExportAll(ctx context.Context) (*Backup, error) {
	journeys, err := c.store.ListJourneys(ctx)
	if err != nil {
		return nil, fmt.Errorf("list journeys: %w", err)
	}

	b := &Backup{
		FormatVersion: FormatVersion,
		ExportedAt:    journey.Millis(c.now()),
		Journeys:      make([]BackupEntry, 0, len(journeys)),
	}
	total := 0
	for i := range journeys {
		nodes, err := c.store.GetNodesByJourney(ctx, journeys[i].ID)
		if err != nil {
			return nil, fmt.Errorf("back up journey %d: %w", journeys[i].ID, err)
		}
		total += len(nodes)
		b.Journeys = append(b.Journeys, BackupEntry{Journey: &journeys[i], Nodes: nodes})
	}

	c.logger.Info("exported backup",
		zap.Int("journeys", len(b.Journeys)),
		zap.Int("nodes", total),
	)
	return b, nil
}

// RestoreBackup imports every entry of b under new identifiers, keeping
// each journey's shared flag. It returns the new journey ids in entry
// order. The whole backup is validated before the first write; a store
// failure stops the restore and returns the ids created so far.
func (c *Codec) RestoreBackup(ctx context.Context, b *Backup) ([]int64, error) {
	if b == nil {
		return nil, &FormatError{Field: "backup", Reason: "is required"}
	}
	if err := c.check(b); err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(b.Journeys))
	for i, entry := range b.Journeys {
		id, err := c.restore(ctx, *entry.Journey, entry.Nodes, entry.Journey.Shared)
		if id != 0 {
			ids = append(ids, id)
		}
		if err != nil {
			return ids, fmt.Errorf("restore journey %d of %d: %w", i+1, len(b.Journeys), err)
		}
	}
	return ids, nil
}

type wireBackup struct {
	FormatVersion string        `json:"formatVersion"`
	Version       string        `json:"version"`
	ExportedAt    int64         `json:"exportedAt"`
	Journeys      []BackupEntry `json:"journeys"`
}

// DecodeBackup reads a Backup from r, accepting the older "version" key.
func DecodeBackup(r io.Reader) (*Backup, error) {
	var w wireBackup
	if err := json.NewDecoder(r).Decode(&w); err != nil {
		return nil, &FormatError{Field: "backup", Reason: err.Error()}
	}
	b := &Backup{
		FormatVersion: w.FormatVersion,
		ExportedAt:    w.ExportedAt,
		Journeys:      w.Journeys,
	}
	if b.FormatVersion == "" {
		b.FormatVersion = w.Version
	}
	return b, nil
}
