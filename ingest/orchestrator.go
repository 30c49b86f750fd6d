package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	corpus "github.com/solumlabs/corpus"
)

// JobStatus tracks an ingestion job.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobSkipped   JobStatus = "skipped" // content hash unchanged
	JobFailed    JobStatus = "failed"
)

// JobError is a structured ingestion failure: which pipeline component
// failed and whether retrying the job can plausibly succeed.
type JobError struct {
	Component string // "chunk", "embed", "store", "validate"
	Retryable bool
	Err       error
}

func (e *JobError) Error() string {
	return fmt.Sprintf("%s: %v", e.Component, e.Err)
}

func (e *JobError) Unwrap() error { return e.Err }

// Job is the queryable record of one ingestion run.
type Job struct {
	ID         string
	SourceID   string
	Status     JobStatus
	Err        *JobError
	StartedAt  int64
	FinishedAt int64
}

// Result summarizes a completed ingestion.
type Result struct {
	JobID               string
	SourceID            string
	Status              JobStatus
	ChunksCreated       int
	EmbeddingsGenerated int
	EmbeddingFailures   []EmbedFailure
	QualityReport       *corpus.ValidationReport
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithWorkers bounds how many sources IngestAll processes concurrently
// (default 4).
func WithWorkers(n int) OrchestratorOption {
	return func(o *Orchestrator) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithValidator runs a post-commit quality audit on every ingested source.
// The audit is read-only; it grades, it does not mutate chunks.
func WithValidator(v *corpus.Validator) OrchestratorOption {
	return func(o *Orchestrator) { o.validator = v }
}

// WithQualityGate fails the job when the post-commit audit scores below
// min. The chunks stay committed either way; the gate exists so callers can
// quarantine a source rather than silently serve poor context from it.
func WithQualityGate(min float64) OrchestratorOption {
	return func(o *Orchestrator) { o.qualityGate = min }
}

// WithOrchestratorLogger sets a structured logger for job events.
func WithOrchestratorLogger(l *slog.Logger) OrchestratorOption {
	return func(o *Orchestrator) { o.logger = l }
}

// Orchestrator runs the full pipeline per source: chunk, embed, persist,
// audit. Re-ingesting unchanged content is a no-op; changed content replaces
// the whole chunk set and bumps the source version.
type Orchestrator struct {
	chunker     *Chunker
	embedder    *Embedder
	store       corpus.VectorStore
	validator   *corpus.Validator
	workers     int
	qualityGate float64
	logger      *slog.Logger

	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewOrchestrator wires the pipeline stages together.
func NewOrchestrator(chunker *Chunker, embedder *Embedder, store corpus.VectorStore, opts ...OrchestratorOption) (*Orchestrator, error) {
	if chunker == nil {
		return nil, &corpus.ErrValidation{Field: "chunker", Message: "must not be nil"}
	}
	if embedder == nil {
		return nil, &corpus.ErrValidation{Field: "embedder", Message: "must not be nil"}
	}
	if store == nil {
		return nil, &corpus.ErrValidation{Field: "store", Message: "must not be nil"}
	}
	o := &Orchestrator{
		chunker:  chunker,
		embedder: embedder,
		store:    store,
		workers:  4,
		logger:   nopLogger,
		jobs:     make(map[string]*Job),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// JobStatus returns the job record for the given ID.
func (o *Orchestrator) JobStatus(jobID string) (Job, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	j, ok := o.jobs[jobID]
	if !ok {
		return Job{}, false
	}
	return *j, true
}

// Jobs returns a snapshot of all job records.
func (o *Orchestrator) Jobs() []Job {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]Job, 0, len(o.jobs))
	for _, j := range o.jobs {
		out = append(out, *j)
	}
	return out
}

// Ingest runs the pipeline for one source. Content whose hash matches the
// already-completed version short-circuits with JobSkipped. Failures carry a
// JobError naming the failed component and whether a retry can help.
func (o *Orchestrator) Ingest(ctx context.Context, in corpus.SourceInput) (Result, error) {
	if in.SourceID == "" {
		return Result{}, &corpus.ErrValidation{Field: "source_id", Message: "must not be empty"}
	}

	job := &Job{
		ID:        corpus.NewID(),
		SourceID:  in.SourceID,
		Status:    JobRunning,
		StartedAt: corpus.NowUnix(),
	}
	o.mu.Lock()
	o.jobs[job.ID] = job
	o.mu.Unlock()

	res, err := o.run(ctx, job, in)

	o.mu.Lock()
	job.FinishedAt = corpus.NowUnix()
	if err != nil {
		job.Status = JobFailed
		var je *JobError
		if errors.As(err, &je) {
			job.Err = je
		} else {
			job.Err = &JobError{Component: "pipeline", Retryable: false, Err: err}
		}
	} else {
		job.Status = res.Status
	}
	o.mu.Unlock()

	res.JobID = job.ID
	res.SourceID = in.SourceID
	if err != nil {
		res.Status = JobFailed
		o.logger.Error("ingest failed",
			"job_id", job.ID, "source_id", in.SourceID, "error", err)
		return res, err
	}
	o.logger.Info("ingest finished",
		"job_id", job.ID,
		"source_id", in.SourceID,
		"status", string(res.Status),
		"chunks", res.ChunksCreated,
		"embeddings", res.EmbeddingsGenerated)
	return res, nil
}

func (o *Orchestrator) run(ctx context.Context, job *Job, in corpus.SourceInput) (Result, error) {
	var res Result
	hash := corpus.HashContent(in.Text)
	now := corpus.NowUnix()

	existing, err := o.store.GetSource(ctx, in.SourceID)
	switch {
	case err == nil:
		if existing.Hash == hash && existing.Status == corpus.StatusCompleted {
			o.logger.Debug("ingest skipped, content unchanged",
				"source_id", in.SourceID, "version", existing.Version)
			res.Status = JobSkipped
			return res, nil
		}
	case errors.Is(err, corpus.ErrSourceNotFound):
		existing = corpus.Source{ID: in.SourceID, CreatedAt: now}
	default:
		return res, &JobError{Component: "store", Retryable: true,
			Err: &corpus.ErrStoreUnavailable{Op: "get source", Err: err}}
	}

	src := corpus.Source{
		ID:         in.SourceID,
		Hash:       hash,
		Version:    existing.Version + 1,
		Status:     corpus.StatusProcessing,
		Filename:   in.Metadata.Filename,
		TotalPages: in.Metadata.TotalPages,
		CreatedAt:  existing.CreatedAt,
		UpdatedAt:  now,
	}
	if src.CreatedAt == 0 {
		src.CreatedAt = now
	}
	if err := o.store.UpsertSource(ctx, src); err != nil {
		return res, &JobError{Component: "store", Retryable: true,
			Err: &corpus.ErrStoreUnavailable{Op: "upsert source", Err: err}}
	}

	chunks, err := o.chunker.Chunk(ctx, in)
	if err != nil {
		o.markFailed(ctx, src)
		return res, &JobError{Component: "chunk", Retryable: false, Err: err}
	}

	stats, err := o.embedder.Embed(ctx, chunks)
	if err != nil {
		o.markFailed(ctx, src)
		return res, &JobError{Component: "embed", Retryable: true, Err: err}
	}
	res.EmbeddingsGenerated = stats.Generated
	res.EmbeddingFailures = stats.Failures

	if err := o.store.ReplaceChunks(ctx, in.SourceID, chunks); err != nil {
		o.markFailed(ctx, src)
		return res, &JobError{Component: "store", Retryable: true,
			Err: &corpus.ErrStoreUnavailable{Op: "replace chunks", Err: err}}
	}
	res.ChunksCreated = len(chunks)

	src.Status = corpus.StatusCompleted
	src.UpdatedAt = corpus.NowUnix()
	if err := o.store.UpsertSource(ctx, src); err != nil {
		return res, &JobError{Component: "store", Retryable: true,
			Err: &corpus.ErrStoreUnavailable{Op: "complete source", Err: err}}
	}

	if o.validator != nil {
		report, err := o.validator.ValidateSource(ctx, in.SourceID)
		if err != nil {
			return res, &JobError{Component: "validate", Retryable: true, Err: err}
		}
		res.QualityReport = &report
		if o.qualityGate > 0 && report.Score < o.qualityGate {
			return res, &JobError{Component: "validate", Retryable: false,
				Err: fmt.Errorf("quality %.3f below gate %.3f (%s)",
					report.Score, o.qualityGate, report.Grade)}
		}
	}

	res.Status = JobCompleted
	return res, nil
}

// markFailed best-effort flips the source record to failed so a half-done
// ingest is visible. The original error wins; this one is only logged.
func (o *Orchestrator) markFailed(ctx context.Context, src corpus.Source) {
	src.Status = corpus.StatusFailed
	src.UpdatedAt = corpus.NowUnix()
	if err := o.store.UpsertSource(ctx, src); err != nil {
		o.logger.Warn("could not mark source failed",
			"source_id", src.ID, "error", err)
	}
}

// IngestAll runs Ingest for each input over a bounded worker pool. Results
// come back in input order; a failed source does not stop the others.
func (o *Orchestrator) IngestAll(ctx context.Context, inputs []corpus.SourceInput) ([]Result, error) {
	if len(inputs) == 0 {
		return nil, nil
	}

	type indexed struct {
		idx int
		in  corpus.SourceInput
	}
	work := make(chan indexed)
	results := make([]Result, len(inputs))
	errs := make([]error, len(inputs))

	var wg sync.WaitGroup
	workers := min(o.workers, len(inputs))
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range work {
				res, err := o.Ingest(ctx, item.in)
				results[item.idx] = res
				errs[item.idx] = err
			}
		}()
	}

	for i, in := range inputs {
		select {
		case work <- indexed{idx: i, in: in}:
		case <-ctx.Done():
			close(work)
			wg.Wait()
			return results, ctx.Err()
		}
	}
	close(work)
	wg.Wait()

	var failed int
	for _, err := range errs {
		if err != nil {
			failed++
		}
	}
	if failed > 0 {
		return results, fmt.Errorf("%d of %d sources failed", failed, len(inputs))
	}
	return results, nil
}
