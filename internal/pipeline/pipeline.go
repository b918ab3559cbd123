// Package pipeline implements the evidence-gated answering flow: a query
// passes through classification, retrieval, validation, synthesis, citation
// binding, and safety review, in that order. Stages degrade independently;
// the pipeline always produces an answer.
package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/evidence-agent/backend/internal/domain"
	"github.com/evidence-agent/backend/internal/llm"
	"github.com/evidence-agent/backend/internal/metrics"
	"github.com/evidence-agent/backend/internal/vector"
	"github.com/evidence-agent/backend/pkg/config"
	"github.com/evidence-agent/backend/pkg/logger"
)

// Stage names as reported to progress observers and metrics.
const (
	StageClassification = "classification"
	StageRetrieval      = "retrieval"
	StageValidation     = "validation"
	StageSynthesis      = "synthesis"
	StageCitationBind   = "citation_binding"
	StageSafetyReview   = "safety_review"
)

// ProgressFunc observes stage transitions, for streaming progress to
// clients. It must not block.
type ProgressFunc func(stage, message string)

// Pipeline wires the six stages together.
type Pipeline struct {
	classifier  *Classifier
	retriever   *Retriever
	validator   *Validator
	synthesizer *Synthesizer
	binder      *Binder
	reviewer    *Reviewer
}

func New(svc llm.Service, index vector.Index, cfg config.PipelineConfig) *Pipeline {
	return &Pipeline{
		classifier:  NewClassifier(svc),
		retriever:   NewRetriever(svc, index, cfg.RetrievalTopK),
		validator:   NewValidator(svc, cfg.MinPassageLength, cfg.TermOverlapMinRatio),
		synthesizer: NewSynthesizer(svc, cfg.BaselineConfidence),
		binder:      NewBinder(NewLLMClaimExtractor(svc)),
		reviewer:    NewReviewer(svc),
	}
}

// Process runs a query through all six stages, returning the query with
// its classified domain and advanced lifecycle status alongside the
// finalized answer. The error return covers only invariant violations in
// answer construction; stage failures degrade within their stage.
func (p *Pipeline) Process(ctx context.Context, query domain.Query, progress ProgressFunc) (domain.Query, domain.Answer, error) {
	start := time.Now()
	query = query.WithStatus(domain.QueryProcessing)
	notify := func(stage, message string) {
		if progress != nil {
			progress(stage, message)
		}
	}

	notify(StageClassification, "classifying query domain")
	query = p.timed(StageClassification, func() domain.Query {
		return p.classifier.Classify(ctx, query)
	})

	notify(StageRetrieval, "retrieving evidence")
	var passages []domain.Passage
	stageStart := time.Now()
	passages = p.retriever.Retrieve(ctx, query)
	metrics.StageDuration.WithLabelValues(StageRetrieval).Observe(time.Since(stageStart).Seconds())
	metrics.RetrievalResultsCount.Observe(float64(len(passages)))

	notify(StageValidation, "validating evidence")
	stageStart = time.Now()
	validated := p.validator.Validate(ctx, query, passages)
	metrics.StageDuration.WithLabelValues(StageValidation).Observe(time.Since(stageStart).Seconds())
	if len(passages) > 0 {
		metrics.ValidationApprovedRatio.Observe(float64(len(validated)) / float64(len(passages)))
	}

	notify(StageSynthesis, "synthesizing answer")
	stageStart = time.Now()
	answer, err := p.synthesizer.Synthesize(ctx, query, validated)
	metrics.StageDuration.WithLabelValues(StageSynthesis).Observe(time.Since(stageStart).Seconds())
	if err != nil {
		return query.WithStatus(domain.QueryRejected), domain.Answer{}, err
	}

	notify(StageCitationBind, "binding citations")
	stageStart = time.Now()
	answer = p.binder.Bind(ctx, answer, validated)
	metrics.StageDuration.WithLabelValues(StageCitationBind).Observe(time.Since(stageStart).Seconds())

	notify(StageSafetyReview, "reviewing for safety")
	stageStart = time.Now()
	answer = p.reviewer.Review(ctx, answer)
	metrics.StageDuration.WithLabelValues(StageSafetyReview).Observe(time.Since(stageStart).Seconds())

	query = query.WithStatus(domain.QueryCompleted)
	p.record(query, answer, time.Since(start))

	return query, answer, nil
}

func (p *Pipeline) timed(stage string, fn func() domain.Query) domain.Query {
	start := time.Now()
	q := fn()
	metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	return q
}

func (p *Pipeline) record(query domain.Query, answer domain.Answer, elapsed time.Duration) {
	metrics.QueryDuration.WithLabelValues(string(query.Domain)).Observe(elapsed.Seconds())
	metrics.AnswerStatusTotal.WithLabelValues(string(answer.Status)).Inc()
	if answer.Confidence != nil {
		metrics.ConfidenceScore.Observe(*answer.Confidence)
	}
	if answer.Status == domain.AnswerComplete {
		metrics.CitationsPerAnswer.Observe(float64(len(answer.Citations)))
	}
	if len(DetectProhibitedContent(answer.Content)) > 0 {
		metrics.ProhibitedContentDetected.Inc()
	}

	logger.Info("pipeline complete",
		zap.String("query_id", query.ID),
		zap.String("answer_id", answer.ID),
		zap.String("domain", string(query.Domain)),
		zap.String("status", string(answer.Status)),
		zap.Int("citations", len(answer.Citations)),
		zap.Duration("elapsed", elapsed),
	)
}
