package job

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/recall/internal/service"
)

const summaryBatchSize = 20

type SummaryJob struct {
	corpus *service.CorpusService
}

func NewSummaryJob(corpus *service.CorpusService) *SummaryJob {
	return &SummaryJob{corpus: corpus}
}

func (j *SummaryJob) Name() string {
	return "corpus_summary"
}

func (j *SummaryJob) Run(ctx context.Context) error {
	if j.corpus == nil {
		return nil
	}
	processed, err := j.corpus.ProcessPendingSummaries(ctx, summaryBatchSize)
	if err != nil {
		return err
	}
	if processed > 0 {
		logutil.GetLogger(ctx).Info("summaries generated", zap.Int("count", processed))
	}
	return nil
}
