package media

import (
	"sync"
	"time"
)

// Status tracks the lifecycle of a processing job or a single file in it.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether no further progress updates can follow.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError || s == StatusCancelled
}

// Upload is a raw image payload received from a client.
type Upload struct {
	Name string
	Data []byte
}

// FileRecord tracks one upload through the pipeline. Each file has its own
// id, status, and checkpoint progress, so a poller can watch a single file
// move through the stages independently of its batch.
type FileRecord struct {
	mu       sync.RWMutex
	ID       string
	Name     string
	status   Status
	progress int
	result   *ProcessedImage
	errMsg   string
}

// NewFileRecord starts a file record in the processing state.
func NewFileRecord(id, name string) *FileRecord {
	return &FileRecord{ID: id, Name: name, status: StatusProcessing}
}

// FileSnapshot is a point-in-time copy of one file's state.
type FileSnapshot struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Status    Status          `json:"status"`
	Progress  int             `json:"progress"`
	Processed *ProcessedImage `json:"processed,omitempty"`
	Error     string          `json:"error,omitempty"`
}

func (f *FileRecord) Snapshot() FileSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return FileSnapshot{
		ID:        f.ID,
		Name:      f.Name,
		Status:    f.status,
		Progress:  f.progress,
		Processed: f.result,
		Error:     f.errMsg,
	}
}

func (f *FileRecord) Status() Status {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.status
}

// SetProgress records a new checkpoint. Progress never moves backwards and
// stops once the file is terminal.
func (f *FileRecord) SetProgress(pct int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.status.Terminal() {
		return
	}
	if pct > f.progress {
		f.progress = pct
	}
}

// Complete marks the file successfully processed.
func (f *FileRecord) Complete(result *ProcessedImage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.status.Terminal() {
		return
	}
	f.status = StatusCompleted
	f.progress = 100
	f.result = result
}

// Fail marks the file as errored. The file still counts as finished for the
// batch's overall progress.
func (f *FileRecord) Fail(msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.status.Terminal() {
		return
	}
	f.status = StatusError
	f.progress = 100
	f.errMsg = msg
}

// Cancel marks the file cancelled. Returns false if it already finished.
func (f *FileRecord) Cancel() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.status.Terminal() {
		return false
	}
	f.status = StatusCancelled
	return true
}

// ProcessingRecord tracks one batch job: a file record per upload plus the
// batch status. The record stays readable for a grace period after reaching
// a terminal status, then is garbage collected.
type ProcessingRecord struct {
	mu         sync.RWMutex
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	status     Status
	files      []*FileRecord
}

// NewProcessingRecord starts a record in the processing state. The file set
// is fixed at construction.
func NewProcessingRecord(id string, files []*FileRecord) *ProcessingRecord {
	return &ProcessingRecord{
		ID:        id,
		StartedAt: time.Now(),
		status:    StatusProcessing,
		files:     files,
	}
}

// Snapshot is a point-in-time copy safe to serialize. Overall progress is
// the mean of the per-file checkpoints.
type Snapshot struct {
	ID       string         `json:"id"`
	Status   Status         `json:"status"`
	Progress int            `json:"progress"`
	Files    []FileSnapshot `json:"files"`
}

func (r *ProcessingRecord) Snapshot() Snapshot {
	r.mu.RLock()
	status := r.status
	r.mu.RUnlock()

	files := make([]FileSnapshot, len(r.files))
	sum := 0
	for i, f := range r.files {
		files[i] = f.Snapshot()
		sum += files[i].Progress
	}

	progress := 0
	if len(files) > 0 {
		progress = sum / len(files)
	}
	return Snapshot{
		ID:       r.ID,
		Status:   status,
		Progress: progress,
		Files:    files,
	}
}

// Files returns the per-file records. The slice is fixed at construction;
// each record locks itself.
func (r *ProcessingRecord) Files() []*FileRecord {
	return r.files
}

// File looks up one file record by its id.
func (r *ProcessingRecord) File(id string) (*FileRecord, bool) {
	for _, f := range r.files {
		if f.ID == id {
			return f, true
		}
	}
	return nil, false
}

func (r *ProcessingRecord) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// Finish transitions to a terminal status. The first terminal transition
// wins; later calls are ignored.
func (r *ProcessingRecord) Finish(status Status) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status.Terminal() {
		return false
	}
	r.status = status
	r.FinishedAt = time.Now()
	return true
}
