package store

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/m-mizutani/goerr/v2"
)

// RetentionPolicy defines how long a system's records are kept in the warm
// tier. TTL 0 means keep forever.
type RetentionPolicy struct {
	SystemID string        // "" applies to every system without its own policy
	TTL      time.Duration
}

// RetentionManager prunes aged-out warm-tier rows according to per-system
// policies. Deletion here is administrative retention, not part of the
// ingestion path.
type RetentionManager struct {
	warm     *WarmStore
	policies []RetentionPolicy
}

// NewRetentionManager creates a retention manager over the warm store.
func NewRetentionManager(warm *WarmStore, policies []RetentionPolicy) *RetentionManager {
	return &RetentionManager{warm: warm, policies: policies}
}

// Prune deletes rows past their TTL. Returns the number of rows removed.
func (rm *RetentionManager) Prune(ctx context.Context) (int, error) {
	if rm == nil || rm.warm == nil {
		return 0, nil
	}
	db, err := rm.warm.handle()
	if err != nil {
		return 0, err
	}

	total := 0
	for _, p := range rm.policies {
		if p.TTL <= 0 {
			continue
		}
		cutoff := time.Now().Add(-p.TTL).UTC().UnixNano()

		var res sql.Result
		if p.SystemID == "" {
			res, err = db.ExecContext(ctx, `DELETE FROM conversations WHERE timestamp < ?`, cutoff)
		} else {
			res, err = db.ExecContext(ctx, `DELETE FROM conversations WHERE system_id = ? AND timestamp < ?`, p.SystemID, cutoff)
		}
		if err != nil {
			return total, goerr.Wrap(err, "retention prune", goerr.Value("system_id", p.SystemID))
		}
		if n, _ := res.RowsAffected(); n > 0 {
			total += int(n)
			slog.Info("warm tier pruned expired records", "system_id", p.SystemID, "deleted", n)
		}
	}
	return total, nil
}
