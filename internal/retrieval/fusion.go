package retrieval

import (
	"context"
	"sort"
	"sync"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/recall/internal/model"
)

// SignalSearcher exposes the three retrieval signals the fuser combines.
type SignalSearcher interface {
	Semantic(ctx context.Context, userID, query string, limit int) ([]model.SearchHit, error)
	Keyword(ctx context.Context, userID, query string, limit int) ([]model.SearchHit, error)
	Approximate(ctx context.Context, userID, query string, limit int) ([]model.SearchHit, error)
}

// Config holds the fusion weights. Weak weights apply when the semantic
// signal comes back empty or with a best score under WeakSemanticThreshold.
type Config struct {
	SemanticWeight        float64
	KeywordWeight         float64
	ApproximateWeight     float64
	WeakSemanticThreshold float64
	WeakSemanticWeight    float64
	WeakKeywordWeight     float64
	WeakApproximateWeight float64
}

func (c Config) withDefaults() Config {
	if c.SemanticWeight == 0 {
		c.SemanticWeight = 0.6
	}
	if c.KeywordWeight == 0 {
		c.KeywordWeight = 0.4
	}
	if c.ApproximateWeight == 0 {
		c.ApproximateWeight = 0.6
	}
	if c.WeakSemanticThreshold == 0 {
		c.WeakSemanticThreshold = 0.35
	}
	if c.WeakSemanticWeight == 0 {
		c.WeakSemanticWeight = 0.3
	}
	if c.WeakKeywordWeight == 0 {
		c.WeakKeywordWeight = 0.4
	}
	if c.WeakApproximateWeight == 0 {
		c.WeakApproximateWeight = 0.3
	}
	return c
}

func (c Config) weights(weak bool) map[model.Signal]float64 {
	if weak {
		return map[model.Signal]float64{
			model.SignalSemantic:    c.WeakSemanticWeight,
			model.SignalKeyword:     c.WeakKeywordWeight,
			model.SignalApproximate: c.WeakApproximateWeight,
		}
	}
	return map[model.Signal]float64{
		model.SignalSemantic:    c.SemanticWeight,
		model.SignalKeyword:     c.KeywordWeight,
		model.SignalApproximate: c.ApproximateWeight,
	}
}

// Fuser merges multi-signal search results into one ranked, deduplicated
// list, then materializes it into a context block plus references.
type Fuser struct {
	searcher SignalSearcher
	fetcher  RecordFetcher
	renderer *ContextRenderer
	cfg      Config
}

func NewFuser(searcher SignalSearcher, fetcher RecordFetcher, cfg Config) *Fuser {
	return &Fuser{
		searcher: searcher,
		fetcher:  fetcher,
		renderer: NewContextRenderer(),
		cfg:      cfg.withDefaults(),
	}
}

// Fuse runs every signal.
func (f *Fuser) Fuse(ctx context.Context, userID, query string, topK int) (*model.FusionResult, error) {
	return f.FuseSignals(ctx, userID, query, topK,
		model.SignalSemantic, model.SignalKeyword, model.SignalApproximate)
}

// FuseSignals runs only the requested signals. A failing signal degrades to
// empty instead of failing the query; the call errors only when every
// requested signal failed.
func (f *Fuser) FuseSignals(ctx context.Context, userID, query string, topK int, signals ...model.Signal) (*model.FusionResult, error) {
	if topK <= 0 {
		topK = 5
	}
	results := make(map[model.Signal][]model.SearchHit, len(signals))
	errs := make(map[model.Signal]error, len(signals))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, signal := range signals {
		wg.Add(1)
		go func(signal model.Signal) {
			defer wg.Done()
			hits, err := f.runSignal(ctx, signal, userID, query, topK)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs[signal] = err
				return
			}
			results[signal] = hits
		}(signal)
	}
	wg.Wait()

	if len(errs) == len(signals) {
		for signal, err := range errs {
			return nil, &SignalError{Signal: signal, Err: err}
		}
	}
	for signal, err := range errs {
		logutil.GetLogger(ctx).Warn("search signal degraded",
			zap.String("signal", string(signal)), zap.Error(err))
	}

	fused := f.combine(results, signals)
	kept := fused
	if len(kept) > topK {
		kept = kept[:topK]
	}
	kept = ensureDiversity(kept, fused, topK,
		[]model.Signal{model.SignalKeyword, model.SignalApproximate})
	return f.materialize(ctx, userID, kept)
}

// SignalError reports which signal brought the whole query down.
type SignalError struct {
	Signal model.Signal
	Err    error
}

func (e *SignalError) Error() string {
	return string(e.Signal) + " search failed: " + e.Err.Error()
}

func (e *SignalError) Unwrap() error {
	return e.Err
}

func (f *Fuser) runSignal(ctx context.Context, signal model.Signal, userID, query string, limit int) ([]model.SearchHit, error) {
	switch signal {
	case model.SignalSemantic:
		return f.searcher.Semantic(ctx, userID, query, limit)
	case model.SignalKeyword:
		return f.searcher.Keyword(ctx, userID, query, limit)
	case model.SignalApproximate:
		return f.searcher.Approximate(ctx, userID, query, limit)
	}
	return nil, nil
}

type fusedHit struct {
	model.SearchHit
	signals map[model.Signal]float64
}

// combine deduplicates hits by (type, id), keeping the best score per signal,
// then ranks by the weighted sum. Ties order by type then id so results are
// deterministic.
func (f *Fuser) combine(results map[model.Signal][]model.SearchHit, requested []model.Signal) []fusedHit {
	merged := make(map[string]*fusedHit)
	var order []string
	for _, signal := range requested {
		for _, hit := range results[signal] {
			key := string(hit.Type) + "_" + hit.ID
			entry, ok := merged[key]
			if !ok {
				entry = &fusedHit{
					SearchHit: hit,
					signals:   make(map[model.Signal]float64, len(requested)),
				}
				merged[key] = entry
				order = append(order, key)
			}
			if hit.Score > entry.signals[hit.Signal] {
				entry.signals[hit.Signal] = hit.Score
			}
			if hit.Score > entry.SearchHit.Score {
				entry.SearchHit = hit
			}
		}
	}

	weak := f.semanticIsWeak(results, requested)
	weights := f.cfg.weights(weak)
	fused := make([]fusedHit, 0, len(order))
	for _, key := range order {
		entry := merged[key]
		var score float64
		for signal, raw := range entry.signals {
			score += weights[signal] * raw
		}
		entry.Score = score
		fused = append(fused, *entry)
	}
	sort.SliceStable(fused, func(i, j int) bool {
		if fused[i].Score != fused[j].Score {
			return fused[i].Score > fused[j].Score
		}
		if fused[i].Type != fused[j].Type {
			return fused[i].Type < fused[j].Type
		}
		return fused[i].ID < fused[j].ID
	})
	return fused
}

// semanticIsWeak holds vacuously when semantic returned nothing at all.
func (f *Fuser) semanticIsWeak(results map[model.Signal][]model.SearchHit, requested []model.Signal) bool {
	included := false
	for _, signal := range requested {
		if signal == model.SignalSemantic {
			included = true
			break
		}
	}
	if !included {
		return false
	}
	best := 0.0
	for _, hit := range results[model.SignalSemantic] {
		if hit.Score > best {
			best = hit.Score
		}
	}
	return best < f.cfg.WeakSemanticThreshold
}

// ensureDiversity forces the best hit of each listed signal into the kept
// slice so one dominant signal cannot crowd the others out entirely. The
// lowest-ranked survivor that is not itself a protected sole representative
// gets evicted; the result never exceeds topK.
func ensureDiversity(kept, all []fusedHit, topK int, protect []model.Signal) []fusedHit {
	ensured := make(map[model.Signal]bool)
	for _, signal := range protect {
		if hasSignal(kept, signal) {
			ensured[signal] = true
			continue
		}
		best, ok := bestForSignal(all, signal)
		if !ok {
			continue
		}
		if len(kept) < topK {
			kept = append(kept, best)
			ensured[signal] = true
			continue
		}
		victim := -1
		for i := len(kept) - 1; i >= 0; i-- {
			if isSoleRepresentative(kept, i, ensured) {
				continue
			}
			victim = i
			break
		}
		if victim < 0 {
			continue
		}
		kept[victim] = best
		ensured[signal] = true
	}
	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].Score != kept[j].Score {
			return kept[i].Score > kept[j].Score
		}
		if kept[i].Type != kept[j].Type {
			return kept[i].Type < kept[j].Type
		}
		return kept[i].ID < kept[j].ID
	})
	return kept
}

func hasSignal(hits []fusedHit, signal model.Signal) bool {
	for _, hit := range hits {
		if _, ok := hit.signals[signal]; ok {
			return true
		}
	}
	return false
}

func bestForSignal(hits []fusedHit, signal model.Signal) (fusedHit, bool) {
	var best fusedHit
	found := false
	for _, hit := range hits {
		raw, ok := hit.signals[signal]
		if !ok {
			continue
		}
		if !found || raw > best.signals[signal] {
			best = hit
			found = true
		}
	}
	return best, found
}

func isSoleRepresentative(hits []fusedHit, idx int, ensured map[model.Signal]bool) bool {
	for signal := range ensured {
		if _, ok := hits[idx].signals[signal]; !ok {
			continue
		}
		count := 0
		for _, hit := range hits {
			if _, ok := hit.signals[signal]; ok {
				count++
			}
		}
		if count == 1 {
			return true
		}
	}
	return false
}

// materialize fetches each surviving hit's record. A record that vanished
// between search and fetch is skipped, not fatal.
func (f *Fuser) materialize(ctx context.Context, userID string, hits []fusedHit) (*model.FusionResult, error) {
	result := &model.FusionResult{
		Hits:       make([]model.SearchHit, 0, len(hits)),
		References: make([]model.Reference, 0, len(hits)),
	}
	records := make([]*model.Record, 0, len(hits))
	for _, hit := range hits {
		record, err := f.fetcher.Fetch(ctx, userID, hit.Type, hit.ID)
		if err != nil {
			logutil.GetLogger(ctx).Warn("skip unmaterializable hit",
				zap.String("type", string(hit.Type)), zap.String("id", hit.ID), zap.Error(err))
			continue
		}
		result.Hits = append(result.Hits, hit.SearchHit)
		records = append(records, record)
	}
	result.Context = f.renderer.Render(ctx, records)
	result.References = BuildReferences(records)
	f.enrichAttachmentRefs(ctx, userID, result.References)
	return result, nil
}

// enrichAttachmentRefs copies the parent email subject onto attachment
// references so clients can label them without a second lookup.
func (f *Fuser) enrichAttachmentRefs(ctx context.Context, userID string, refs []model.Reference) {
	for i, ref := range refs {
		if ref.Type != model.RecordTypeAttachment || ref.EmailID == "" {
			continue
		}
		record, err := f.fetcher.Fetch(ctx, userID, model.RecordTypeEmail, ref.EmailID)
		if err != nil {
			continue
		}
		refs[i].Subject = record.Email.Subject
	}
}
