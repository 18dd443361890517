package job

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/recall/internal/service"
)

const embeddingBatchSize = 50

type EmbeddingJob struct {
	corpus *service.CorpusService
}

func NewEmbeddingJob(corpus *service.CorpusService) *EmbeddingJob {
	return &EmbeddingJob{corpus: corpus}
}

func (j *EmbeddingJob) Name() string {
	return "corpus_embedding"
}

func (j *EmbeddingJob) Run(ctx context.Context) error {
	if j.corpus == nil {
		return nil
	}
	processed, err := j.corpus.ProcessPendingEmbeddings(ctx, embeddingBatchSize)
	if err != nil {
		return err
	}
	if processed > 0 {
		logutil.GetLogger(ctx).Info("embeddings generated", zap.Int("count", processed))
	}
	return nil
}
