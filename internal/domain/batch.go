package domain

import (
	"sort"
	"time"
)

// defaultBatchCount is the number of partitions when the trigger passes no
// batch parameters. The external scheduler fires batch 0 at :x0/:x1 and
// batch 1 at :x2 onward within each 10-minute cycle.
const defaultBatchCount = 2

// PartitionStations returns the slice of stations assigned to batch
// batchIndex of batchCount. Stations are sorted by id first so the
// assignment is stable across invocations: station i (in sorted order)
// belongs to batch i mod batchCount. A batchCount below one degrades to a
// single batch holding everything.
func PartitionStations(stations []Station, batchIndex, batchCount int) []Station {
	if batchCount < 1 {
		batchCount = 1
	}
	batchIndex = ((batchIndex % batchCount) + batchCount) % batchCount

	sorted := make([]Station, len(stations))
	copy(sorted, stations)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	var batch []Station
	for i, s := range sorted {
		if i%batchCount == batchIndex {
			batch = append(batch, s)
		}
	}
	return batch
}

// DeriveBatch determines the batch assignment from the wall-clock minute
// when the scheduler does not pass explicit parameters: within each
// 10-minute cycle, the first two minutes map to batch 0 and the rest to
// batch 1.
func DeriveBatch(now time.Time) (batchIndex, batchCount int) {
	if now.Minute()%10 < 2 {
		return 0, defaultBatchCount
	}
	return 1, defaultBatchCount
}
