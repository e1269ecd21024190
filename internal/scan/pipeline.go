// Package scan runs the bounded upload-and-analyze workflow for one document.
package scan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nfarrow/vitalink/internal/backend"
	"github.com/nfarrow/vitalink/internal/record"
	"github.com/nfarrow/vitalink/internal/store"
)

// AnalysisTimeout is the hard deadline for one analyze request; large
// documents can legitimately take minutes to process.
const AnalysisTimeout = 120 * time.Second

var (
	// ErrBusy rejects a submit while a prior job is still in flight. It is a
	// concurrency guard, not a judgment on the new request.
	ErrBusy = errors.New("a scan is already in progress")
	// ErrNoFile rejects an empty submission before any network call.
	ErrNoFile = errors.New("no file selected")
)

// File is one document selected for scanning.
type File struct {
	Name string
	MIME string
	Data []byte
}

// Stage is the forward-only lifecycle position of one scan job.
type Stage string

const (
	StageSelected   Stage = "selected"
	StageUploading  Stage = "uploading"
	StageAnalyzing  Stage = "analyzing"
	StagePersisting Stage = "persisting"
	StageComplete   Stage = "complete"
	StageFailed     Stage = "failed"
)

var stageRank = map[Stage]int{
	StageSelected:   0,
	StageUploading:  1,
	StageAnalyzing:  2,
	StagePersisting: 3,
	StageComplete:   4,
	StageFailed:     4,
}

// Job tracks one upload-and-analyze attempt.
type Job struct {
	CorrelationID string
	Stage         Stage
}

// advance moves the job forward; stages are never revisited.
func (j *Job) advance(next Stage) {
	if stageRank[next] <= stageRank[j.Stage] {
		return
	}
	j.Stage = next
}

// Analyzer is the pipeline-facing subset of the backend client.
type Analyzer interface {
	Analyze(ctx context.Context, fileName string, mimeType string, data []byte) (record.Analysis, error)
}

// Persister performs the dual best-effort write.
type Persister interface {
	Persist(ctx context.Context, rec record.HealthRecord, key string, mimeType string, data []byte) store.Outcome
}

// Notifier receives the single user-visible message a failed scan produces.
type Notifier interface {
	Narrate(text string)
}

// Pipeline orchestrates file selection -> analysis -> persistence. One job
// per pipeline may be in flight at a time.
type Pipeline struct {
	logger   *slog.Logger
	analyzer Analyzer
	gateway  Persister
	notifier Notifier
	userID   string
	timeout  time.Duration

	mu      sync.Mutex
	current *Job

	// test seams
	newID func() string
	now   func() time.Time
}

func NewPipeline(logger *slog.Logger, analyzer Analyzer, gateway Persister, notifier Notifier, userID string) *Pipeline {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Pipeline{
		logger:   logger,
		analyzer: analyzer,
		gateway:  gateway,
		notifier: notifier,
		userID:   userID,
		timeout:  AnalysisTimeout,
		newID:    uuid.NewString,
		now:      time.Now,
	}
}

// Active returns a snapshot of the in-flight job, if any.
func (p *Pipeline) Active() (Job, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return Job{}, false
	}
	return *p.current, true
}

// Submit runs one scan job to completion. The analysis request is bounded by
// the hard timeout; persistence failures degrade to a partial result rather
// than an error. The returned record is fully populated on success even when
// neither persistence write landed.
func (p *Pipeline) Submit(ctx context.Context, file File) (record.HealthRecord, error) {
	if len(file.Data) == 0 {
		return record.HealthRecord{}, ErrNoFile
	}

	job := &Job{CorrelationID: p.newID(), Stage: StageSelected}
	p.mu.Lock()
	if p.current != nil {
		p.mu.Unlock()
		return record.HealthRecord{}, ErrBusy
	}
	p.current = job
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.current = nil
		p.mu.Unlock()
	}()

	p.logger.Info("scan started", "correlation_id", job.CorrelationID, "file", file.Name, "bytes", len(file.Data))

	job.advance(StageUploading)
	analysisCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	job.advance(StageAnalyzing)
	analysis, err := p.analyzer.Analyze(analysisCtx, file.Name, file.MIME, file.Data)
	if err != nil {
		job.advance(StageFailed)
		p.notifyFailure(err)
		return record.HealthRecord{}, err
	}

	rec := record.FromAnalysis(analysis, p.userID, p.now())
	rec.FileName = file.Name
	rec.FileType = file.MIME

	job.advance(StagePersisting)
	key := fmt.Sprintf("%s/uploads/%s-%s", p.userID, job.CorrelationID, file.Name)
	outcome := p.gateway.Persist(ctx, rec, key, file.MIME, file.Data)

	job.advance(StageComplete)
	p.logger.Info("scan complete",
		"correlation_id", job.CorrelationID,
		"blob_write_ok", outcome.BlobWriteOK,
		"record_write_ok", outcome.RecordWriteOK,
	)
	return outcome.Record, nil
}

// notifyFailure emits the single user-visible message for a failed scan.
func (p *Pipeline) notifyFailure(err error) {
	if p.notifier == nil {
		return
	}

	var analysisErr *backend.AnalysisError
	switch {
	case errors.Is(err, backend.ErrRateLimited):
		p.notifier.Narrate("Traffic limit reached. Please wait 30-60 seconds before the next scan.")
	case errors.Is(err, backend.ErrAnalysisTimeout):
		p.notifier.Narrate("The scan took too long and was cancelled. Please try again.")
	case errors.As(err, &analysisErr):
		p.notifier.Narrate("Scan error: " + analysisErr.Message)
	default:
		p.notifier.Narrate("Failed to connect to the scanner service.")
	}
}
