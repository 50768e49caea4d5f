package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"

	"github.com/route-beacon/ribd/internal/metrics"
)

var zstdEncoder *zstd.Encoder

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil)
	if err != nil {
		panic(fmt.Sprintf("db: zstd encoder init: %v", err))
	}
}

// SnapshotWriter persists FIB-selected rib state into rib_snapshot, the
// one supplemental persistence surface this module keeps (SPEC_FULL.md
// §1 Non-goals: "persistence beyond the supplemental snapshot table").
type SnapshotWriter struct {
	pool          *pgxpool.Pool
	logger        *zap.Logger
	storeRaw      bool
	compressRaw   bool
}

func NewSnapshotWriter(pool *pgxpool.Pool, logger *zap.Logger, storeRaw, compressRaw bool) *SnapshotWriter {
	return &SnapshotWriter{pool: pool, logger: logger, storeRaw: storeRaw, compressRaw: compressRaw}
}

// SnapshotRow is one rib_snapshot upsert.
type SnapshotRow struct {
	VRFID     uint32
	AFI       int16
	SAFI      int16
	Prefix    string // CIDR text form
	Type      int16
	Metric    int64
	Distance  int16
	Selected  bool
	Nexthops  []byte // pre-marshaled JSON array
	Community *string
	RawPayload []byte
}

// FlushBatch upserts a batch of snapshot rows, compressing each row's
// raw payload with the shared zstd encoder when enabled, mirroring
// internal/history/writer.go's StoreRawBytesCompress pattern from the
// teacher.
func (w *SnapshotWriter) FlushBatch(ctx context.Context, rows []*SnapshotRow) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	start := time.Now()

	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	const upsertSQL = `
		INSERT INTO rib_snapshot (vrf_id, afi, safi, prefix, type, metric, distance,
			selected, nexthops, community, raw_payload, raw_compressed, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now())
		ON CONFLICT (vrf_id, afi, safi, prefix, type) DO UPDATE SET
			metric = EXCLUDED.metric,
			distance = EXCLUDED.distance,
			selected = EXCLUDED.selected,
			nexthops = EXCLUDED.nexthops,
			community = EXCLUDED.community,
			raw_payload = EXCLUDED.raw_payload,
			raw_compressed = EXCLUDED.raw_compressed,
			updated_at = now()`

	batch := &pgx.Batch{}
	for _, row := range rows {
		var rawBytes []byte
		compressed := false
		if w.storeRaw && row.RawPayload != nil {
			if w.compressRaw {
				rawBytes = zstdEncoder.EncodeAll(row.RawPayload, nil)
				compressed = true
			} else {
				rawBytes = row.RawPayload
			}
		}

		batch.Queue(upsertSQL,
			row.VRFID, row.AFI, row.SAFI, row.Prefix, row.Type, row.Metric, row.Distance,
			row.Selected, row.Nexthops, row.Community, rawBytes, compressed,
		)
	}

	results := tx.SendBatch(ctx, batch)
	var totalAffected int64
	for i := range rows {
		tag, err := results.Exec()
		if err != nil {
			results.Close()
			return 0, fmt.Errorf("upsert rib_snapshot[%d]: %w", i, err)
		}
		totalAffected += tag.RowsAffected()
	}
	if err := results.Close(); err != nil {
		return 0, fmt.Errorf("closing batch results: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}

	metrics.DBWriteDuration.WithLabelValues("snapshot_flush").Observe(time.Since(start).Seconds())
	w.logger.Debug("rib_snapshot flushed", zap.Int("rows", len(rows)), zap.Int64("affected", totalAffected))
	return totalAffected, nil
}

// DeleteRow removes a rib_snapshot row for a withdrawn rib entry that
// has no remaining candidate of the same (vrf, afi, safi, prefix, type).
func (w *SnapshotWriter) DeleteRow(ctx context.Context, vrfID uint32, afi, safi int16, prefix string, rtype int16) error {
	const deleteSQL = `DELETE FROM rib_snapshot WHERE vrf_id = $1 AND afi = $2 AND safi = $3 AND prefix = $4 AND type = $5`
	if _, err := w.pool.Exec(ctx, deleteSQL, vrfID, afi, safi, prefix, rtype); err != nil {
		return fmt.Errorf("delete rib_snapshot row: %w", err)
	}
	return nil
}
