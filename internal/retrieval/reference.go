package retrieval

import (
	"context"
	"regexp"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/recall/internal/model"
)

var referenceLineRegex = regexp.MustCompile(`(?i)REFERENCE_IDS:\s*(.+?)(?:\n|$)`)

// ParseReferenceIDs pulls the citation list out of a model answer. It returns
// the answer with the citation line removed, plus the ids in the order the
// model listed them. A value of "none" (or no line at all) yields no ids.
func ParseReferenceIDs(answer string) (string, []string) {
	match := referenceLineRegex.FindStringSubmatch(answer)
	if match == nil {
		return strings.TrimSpace(answer), nil
	}
	cleaned := strings.TrimSpace(referenceLineRegex.ReplaceAllString(answer, ""))
	raw := strings.TrimSpace(match[1])
	if raw == "" || strings.EqualFold(raw, "none") {
		return cleaned, nil
	}
	var ids []string
	seen := make(map[string]bool)
	for _, part := range strings.Split(raw, ",") {
		id := strings.TrimSpace(part)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return cleaned, ids
}

// RecordFetcher loads a single user-owned record.
type RecordFetcher interface {
	Fetch(ctx context.Context, userID string, typ model.RecordType, id string) (*model.Record, error)
}

// Resolver turns cited ids back into full records.
type Resolver struct {
	fetcher RecordFetcher
}

func NewResolver(fetcher RecordFetcher) *Resolver {
	return &Resolver{fetcher: fetcher}
}

// Resolve fetches each referenced record, preserving citation order. A bare
// id with no type prefix borrows its type from a matching prior hit. Ids that
// are malformed, unknown, or belong to another user are dropped, never fatal:
// a hallucinated citation must not fail the whole answer.
func (r *Resolver) Resolve(ctx context.Context, userID string, refIDs []string, priorHits []model.SearchHit) []*model.Record {
	records := make([]*model.Record, 0, len(refIDs))
	for _, refID := range refIDs {
		id := strings.TrimSpace(refID)
		var typ model.RecordType
		var rawID string
		if typeName, rest, found := strings.Cut(id, "_"); found {
			parsed, ok := model.ParseRecordType(strings.ToLower(typeName))
			if !ok {
				logutil.GetLogger(ctx).Debug("skip unknown reference type", zap.String("ref_id", refID))
				continue
			}
			typ, rawID = parsed, rest
		} else {
			hit, ok := findPriorHit(priorHits, id)
			if !ok {
				logutil.GetLogger(ctx).Debug("skip unresolvable bare reference id", zap.String("ref_id", refID))
				continue
			}
			typ, rawID = hit.Type, hit.ID
		}
		record, err := r.fetcher.Fetch(ctx, userID, typ, rawID)
		if err != nil {
			logutil.GetLogger(ctx).Debug("skip unresolvable reference", zap.String("ref_id", refID), zap.Error(err))
			continue
		}
		records = append(records, record)
	}
	return records
}

func findPriorHit(hits []model.SearchHit, id string) (model.SearchHit, bool) {
	for _, hit := range hits {
		if hit.ID == id {
			return hit, true
		}
	}
	return model.SearchHit{}, false
}
