package storage

import (
	"context"
	"encoding/json"

	"portnavigator/models"
)

// statsSampleSize bounds the number of records fed into the compression
// ratio estimate.
const statsSampleSize = 25

// Stats computes a best-effort snapshot of both tiers. Tier A size is the
// sum of stored value lengths; Tier B size is the sum of JSON-serialized
// lengths of the currently materialized requests, complaints and
// warehouses, not the on-disk file size. The UI thresholds were calibrated
// against exactly this approximation, so it is kept as-is. Callers should
// rely on monotonicity (more items never shrink the number), not on exact
// byte values.
func (s *Service) Stats(ctx context.Context) (models.StorageStats, error) {
	requests, err := s.tierB.Requests(ctx)
	if err != nil {
		return models.StorageStats{}, err
	}
	complaints, err := s.tierB.Complaints(ctx)
	if err != nil {
		return models.StorageStats{}, err
	}
	warehouses := s.Warehouses()

	var tierBBytes int64
	for _, r := range requests {
		tierBBytes += jsonLen(r)
	}
	for _, c := range complaints {
		tierBBytes += jsonLen(c)
	}
	for _, w := range warehouses {
		tierBBytes += jsonLen(w)
	}

	tierABytes := s.kv.SizeBytes()

	s.mu.RLock()
	lastSync := s.lastSync
	s.mu.RUnlock()

	return models.StorageStats{
		TierA: models.TierStats{
			UsedBytes:   tierABytes,
			LimitBytes:  s.cfg.TierALimit,
			UsedPercent: percentOf(tierABytes, s.cfg.TierALimit),
		},
		TierB: models.TierStats{
			UsedBytes:   tierBBytes,
			LimitBytes:  s.cfg.TierBLimit,
			UsedPercent: percentOf(tierBBytes, s.cfg.TierBLimit),
		},
		Counts: map[string]int{
			"requests":   len(requests),
			"complaints": len(complaints),
			"warehouses": len(warehouses),
		},
		LastSync:         lastSync,
		CompressionRatio: sampleCompressionRatio(requests, complaints),
	}, nil
}

func jsonLen(v interface{}) int64 {
	data, err := json.Marshal(v)
	if err != nil {
		return 0
	}
	return int64(len(data))
}

// percentOf caps utilization at 100 even when the approximation overshoots
// the nominal ceiling.
func percentOf(used, limit int64) float64 {
	if limit <= 0 {
		return 0
	}
	pct := float64(used) / float64(limit) * 100
	if pct > 100 {
		return 100
	}
	return pct
}

// sampleCompressionRatio compresses a bounded sample of the current
// records and reports the estimated saving.
func sampleCompressionRatio(requests []models.Request, complaints []models.Complaint) float64 {
	sample := make([]interface{}, 0, statsSampleSize)
	for _, r := range requests {
		if len(sample) >= statsSampleSize {
			break
		}
		sample = append(sample, r)
	}
	for _, c := range complaints {
		if len(sample) >= statsSampleSize {
			break
		}
		sample = append(sample, c)
	}
	if len(sample) == 0 {
		return 0
	}
	return compressionRatio(sample)
}
