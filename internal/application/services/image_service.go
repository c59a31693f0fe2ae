package services

import (
	"errors"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/escolahabilidade/habilidade-go/internal/infrastructure/media"
	"github.com/escolahabilidade/habilidade-go/internal/infrastructure/observability/logging"
	"github.com/escolahabilidade/habilidade-go/pkg/config"
	"github.com/escolahabilidade/habilidade-go/utils"
)

// ErrJobRunning is returned when a batch is submitted while another is
// still processing.
var ErrJobRunning = errors.New("image processing job already running")

// ErrNoFiles is returned for an empty batch.
var ErrNoFiles = errors.New("no files to process")

// ImageServiceConfig carries the tunables so tests can shrink them.
type ImageServiceConfig struct {
	BatchSize       int
	BatchDelay      time.Duration
	RecordRetention time.Duration
}

func NewDefaultImageServiceConfig() ImageServiceConfig {
	return ImageServiceConfig{
		BatchSize:       config.ImageBatchSize,
		BatchDelay:      config.ImageBatchDelay,
		RecordRetention: config.ImageRecordRetention,
	}
}

// Per-file progress checkpoints, one per pipeline stage. Disabled stages are
// skipped along with their checkpoint; completion always lands on 100.
const (
	progressValidated   = 10
	progressMetadata    = 20
	progressPlaceholder = 40
	progressOptimized   = 70
	progressThumbnails  = 90
	progressResponsive  = 100
)

// imagePipeline is the stage surface the service drives. *media.Pipeline is
// the production implementation.
type imagePipeline interface {
	Validate(up media.Upload) error
	ExtractMetadata(up media.Upload) (media.Metadata, error)
	Decode(up media.Upload) (image.Image, error)
	Placeholder(img image.Image) (string, error)
	Optimize(img image.Image, baseName string) (string, error)
	Thumbnails(img image.Image, baseName string) ([]media.Variant, error)
	Responsive(img image.Image, baseName string) ([]media.Variant, error)
}

// ImageService runs uploads through the rendering pipeline in chunks. Each
// file gets its own record with an id, status, and progress, and the batch
// record outlives the job briefly so clients can read the terminal state.
type ImageService struct {
	pipeline imagePipeline
	logger   *logging.ChanneledLogger
	config   ImageServiceConfig

	running atomic.Bool

	mu        sync.Mutex
	records   map[string]*media.ProcessingRecord
	cancelled map[string]*atomic.Bool
}

func NewImageService(pipeline *media.Pipeline, logger *logging.ChanneledLogger, cfg ImageServiceConfig) *ImageService {
	return newImageService(pipeline, logger, cfg)
}

func newImageService(pipeline imagePipeline, logger *logging.ChanneledLogger, cfg ImageServiceConfig) *ImageService {
	return &ImageService{
		pipeline:  pipeline,
		logger:    logger,
		config:    cfg,
		records:   make(map[string]*media.ProcessingRecord),
		cancelled: make(map[string]*atomic.Bool),
	}
}

// ProcessBatch starts a batch job and returns its id. Only one batch runs at
// a time. The stage options select which output stages run for every file in
// the batch.
func (s *ImageService) ProcessBatch(uploads []media.Upload, opts media.StageOptions) (string, error) {
	if len(uploads) == 0 {
		return "", ErrNoFiles
	}
	if !s.running.CompareAndSwap(false, true) {
		return "", ErrJobRunning
	}

	id := utils.GenerateULID()
	files := make([]*media.FileRecord, len(uploads))
	for i, up := range uploads {
		files[i] = media.NewFileRecord(utils.GenerateULID(), up.Name)
	}
	record := media.NewProcessingRecord(id, files)
	flag := &atomic.Bool{}

	s.mu.Lock()
	s.records[id] = record
	s.cancelled[id] = flag
	s.mu.Unlock()

	s.logger.Media().Info("Image batch started", "jobId", id, "files", len(uploads),
		"thumbnails", opts.Thumbnails, "responsive", opts.Responsive)

	go s.run(record, flag, uploads, opts)
	return id, nil
}

// Status returns a snapshot of a job, if its record is still retained. The
// snapshot carries the per-file lifecycle alongside the batch status.
func (s *ImageService) Status(id string) (media.Snapshot, bool) {
	s.mu.Lock()
	record, ok := s.records[id]
	s.mu.Unlock()
	if !ok {
		return media.Snapshot{}, false
	}
	return record.Snapshot(), true
}

// Cancel requests cancellation. A batch id cancels the whole job: files
// already in flight finish and remaining chunks are skipped. A file id
// cancels just that file before its chunk is dispatched. Returns false for
// unknown ids and already finished work.
func (s *ImageService) Cancel(id string) bool {
	s.mu.Lock()
	record, ok := s.records[id]
	flag := s.cancelled[id]
	if !ok {
		for _, r := range s.records {
			if f, found := r.File(id); found {
				s.mu.Unlock()
				if f.Cancel() {
					s.logger.Media().Info("Image file cancelled", "fileId", id, "jobId", r.ID)
					return true
				}
				return false
			}
		}
	}
	s.mu.Unlock()

	if !ok || record.Status().Terminal() {
		return false
	}
	flag.Store(true)
	s.logger.Media().Info("Image batch cancellation requested", "jobId", id)
	return true
}

func (s *ImageService) run(record *media.ProcessingRecord, cancelled *atomic.Bool, uploads []media.Upload, opts media.StageOptions) {
	defer s.running.Store(false)

	files := record.Files()
	total := len(uploads)

	for start := 0; start < total; start += s.config.BatchSize {
		if cancelled.Load() {
			for _, f := range files[start:] {
				f.Cancel()
			}
			record.Finish(media.StatusCancelled)
			s.logger.Media().Info("Image batch cancelled", "jobId", record.ID)
			s.scheduleGC(record.ID)
			return
		}
		if start > 0 {
			time.Sleep(s.config.BatchDelay)
		}

		end := start + s.config.BatchSize
		if end > total {
			end = total
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			if files[i].Status().Terminal() {
				continue
			}
			wg.Add(1)
			go func(file *media.FileRecord, up media.Upload) {
				defer wg.Done()

				processed, err := s.processOne(up, file.ID, opts, file.SetProgress)
				if err != nil {
					file.Fail(err.Error())
					s.logger.LogError(logging.ChannelMedia, "process_image", err, map[string]any{"file": up.Name, "jobId": record.ID})
					return
				}
				file.Complete(processed)
			}(files[i], uploads[i])
		}
		wg.Wait()
	}

	failures := 0
	for _, f := range files {
		if f.Status() == media.StatusError {
			failures++
		}
	}

	status := media.StatusCompleted
	if failures == total {
		status = media.StatusError
	}
	record.Finish(status)
	s.logger.Media().Info("Image batch finished", "jobId", record.ID, "files", total, "failures", failures, "status", status)
	s.scheduleGC(record.ID)
}

// processOne runs a single upload through the enabled stages, reporting
// progress at each checkpoint that actually runs.
func (s *ImageService) processOne(up media.Upload, fileID string, opts media.StageOptions, progress func(int)) (*media.ProcessedImage, error) {
	if err := s.pipeline.Validate(up); err != nil {
		return nil, err
	}
	progress(progressValidated)

	meta, err := s.pipeline.ExtractMetadata(up)
	if err != nil {
		return nil, err
	}
	progress(progressMetadata)

	img, err := s.pipeline.Decode(up)
	if err != nil {
		return nil, err
	}

	processed := &media.ProcessedImage{Metadata: meta}
	baseName := media.BaseName(up.Name, fileID)

	if opts.Placeholder {
		if processed.Placeholder, err = s.pipeline.Placeholder(img); err != nil {
			return nil, err
		}
		progress(progressPlaceholder)
	}

	if opts.Optimize {
		if processed.Optimized, err = s.pipeline.Optimize(img, baseName); err != nil {
			return nil, err
		}
		progress(progressOptimized)
	}

	if opts.Thumbnails {
		if processed.Thumbnails, err = s.pipeline.Thumbnails(img, baseName); err != nil {
			return nil, err
		}
		progress(progressThumbnails)
	}

	if opts.Responsive {
		if processed.Responsive, err = s.pipeline.Responsive(img, baseName); err != nil {
			return nil, err
		}
		progress(progressResponsive)
	}

	return processed, nil
}

// scheduleGC drops the record after the retention window.
func (s *ImageService) scheduleGC(id string) {
	time.AfterFunc(s.config.RecordRetention, func() {
		s.mu.Lock()
		delete(s.records, id)
		delete(s.cancelled, id)
		s.mu.Unlock()
		s.logger.Media().Debug("Processing record collected", "jobId", id)
	})
}
