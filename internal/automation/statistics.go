package automation

import (
	"sort"
	"strings"
	"time"

	"transaction-automation-service/internal/models"
	"transaction-automation-service/pkg/stats"
)

// ConfidenceBucketCount is the number of equal-width histogram buckets over [0, 1]
const ConfidenceBucketCount = 5

// ConfidenceBucketWidth is the width of each histogram bucket
const ConfidenceBucketWidth = 1.0 / ConfidenceBucketCount

// SourceStats counts processing outcomes for one source
type SourceStats struct {
	Processed int `json:"processed"`
	Matched   int `json:"matched"`
}

// ConfidenceBucket is one histogram bar. Lower is inclusive, Upper exclusive
// except for the last bucket.
type ConfidenceBucket struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Count int     `json:"count"`
}

// CounterpartyCount is one entry of the counterparty ranking
type CounterpartyCount struct {
	Counterparty string `json:"counterparty"`
	Count        int    `json:"count"`
}

// Statistics summarises everything the service has processed
type Statistics struct {
	TotalProcessed      int                           `json:"total_processed"`
	Matched             int                           `json:"matched"`
	SuccessRate         float64                       `json:"success_rate"`
	MeanLatency         time.Duration                 `json:"mean_latency"`
	BySource            map[models.Source]SourceStats `json:"by_source"`
	ConfidenceHistogram []ConfidenceBucket            `json:"confidence_histogram"`
	TopCounterparties   []CounterpartyCount           `json:"top_counterparties"`
}

// Statistics aggregates the processing history. topN <= 0 uses the
// configured ranking size.
func (s *Service) Statistics(topN int) *Statistics {
	if topN <= 0 {
		topN = s.config.TopCounterparties
	}
	return summarize(s.records.Snapshot(), topN)
}

func summarize(records []processingRecord, topN int) *Statistics {
	result := &Statistics{
		TotalProcessed:      len(records),
		BySource:            make(map[models.Source]SourceStats),
		ConfidenceHistogram: newHistogram(),
		TopCounterparties:   []CounterpartyCount{},
	}
	if len(records) == 0 {
		return result
	}

	latencies := make([]float64, len(records))
	counts := make(map[string]*CounterpartyCount)

	for i, r := range records {
		latencies[i] = float64(r.duration)

		src := result.BySource[r.source]
		src.Processed++
		if r.matched {
			src.Matched++
		}
		result.BySource[r.source] = src

		if !r.matched {
			continue
		}
		result.Matched++
		result.ConfidenceHistogram[bucketIndex(r.confidence)].Count++

		name := strings.TrimSpace(r.counterparty)
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if c, ok := counts[key]; ok {
			c.Count++
		} else {
			counts[key] = &CounterpartyCount{Counterparty: name, Count: 1}
		}
	}

	result.SuccessRate = stats.Round(float64(result.Matched)/float64(result.TotalProcessed), 4)
	result.MeanLatency = time.Duration(stats.Mean(latencies))

	ranked := make([]CounterpartyCount, 0, len(counts))
	for _, c := range counts {
		ranked = append(ranked, *c)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return strings.ToLower(ranked[i].Counterparty) < strings.ToLower(ranked[j].Counterparty)
	})
	if len(ranked) > topN {
		ranked = ranked[:topN]
	}
	result.TopCounterparties = ranked

	return result
}

func newHistogram() []ConfidenceBucket {
	buckets := make([]ConfidenceBucket, ConfidenceBucketCount)
	for i := range buckets {
		buckets[i] = ConfidenceBucket{
			Lower: stats.Round(float64(i)*ConfidenceBucketWidth, 2),
			Upper: stats.Round(float64(i+1)*ConfidenceBucketWidth, 2),
		}
	}
	return buckets
}

func bucketIndex(confidence float64) int {
	i := int(stats.Clamp01(confidence) * ConfidenceBucketCount)
	if i >= ConfidenceBucketCount {
		i = ConfidenceBucketCount - 1
	}
	return i
}
