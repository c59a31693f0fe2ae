package services

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/escolahabilidade/habilidade-go/internal/infrastructure/media"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngUpload(t *testing.T, name string, width, height int) media.Upload {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 120, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return media.Upload{Name: name, Data: buf.Bytes()}
}

func allStages() media.StageOptions {
	return media.StageOptions{Placeholder: true, Optimize: true, Thumbnails: true, Responsive: true}
}

func newTestImageService(t *testing.T) (*ImageService, string) {
	t.Helper()
	basePath := t.TempDir()
	pipeline := media.NewPipeline(basePath, 10<<20)
	svc := NewImageService(pipeline, newTestLogger(t), ImageServiceConfig{
		BatchSize:       2,
		BatchDelay:      time.Millisecond,
		RecordRetention: 100 * time.Millisecond,
	})
	return svc, basePath
}

func waitTerminal(t *testing.T, svc *ImageService, jobID string) media.Snapshot {
	t.Helper()
	var snapshot media.Snapshot
	require.Eventually(t, func() bool {
		snap, ok := svc.Status(jobID)
		if !ok || !snap.Status.Terminal() {
			return false
		}
		snapshot = snap
		return true
	}, 10*time.Second, 10*time.Millisecond)
	return snapshot
}

func TestProcessBatchCompletes(t *testing.T) {
	svc, basePath := newTestImageService(t)

	uploads := []media.Upload{
		pngUpload(t, "Foto da Turma.png", 800, 600),
		pngUpload(t, "banner.png", 200, 100),
		pngUpload(t, "logo.png", 50, 50),
	}

	jobID, err := svc.ProcessBatch(uploads, allStages())
	require.NoError(t, err)

	snapshot := waitTerminal(t, svc, jobID)
	assert.Equal(t, media.StatusCompleted, snapshot.Status)
	assert.Equal(t, 100, snapshot.Progress)
	require.Len(t, snapshot.Files, 3)

	for _, file := range snapshot.Files {
		require.Empty(t, file.Error)
		require.NotNil(t, file.Processed)
		assert.Equal(t, media.StatusCompleted, file.Status)
		assert.NotEmpty(t, file.Processed.Optimized)
		assert.Len(t, file.Processed.Thumbnails, 3)
		assert.True(t, len(file.Processed.Placeholder) > len("data:image/jpeg;base64,"))
	}

	// The optimized rendition landed on disk under a sanitized name.
	entries, err := os.ReadDir(filepath.Join(basePath, "images"))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(entries), 3)
}

func TestProcessBatchDefaultSkipsThumbnails(t *testing.T) {
	svc, basePath := newTestImageService(t)

	jobID, err := svc.ProcessBatch([]media.Upload{pngUpload(t, "capa.png", 800, 600)}, media.DefaultStageOptions())
	require.NoError(t, err)

	snapshot := waitTerminal(t, svc, jobID)
	require.Len(t, snapshot.Files, 1)
	file := snapshot.Files[0]
	require.NotNil(t, file.Processed)
	assert.Empty(t, file.Processed.Thumbnails)
	assert.NotEmpty(t, file.Processed.Optimized)
	assert.NotEmpty(t, file.Processed.Responsive)
	assert.Equal(t, 100, file.Progress)

	_, err = os.Stat(filepath.Join(basePath, "images", "thumbs"))
	assert.True(t, os.IsNotExist(err), "disabled stages must not write output")
}

func TestStatusExposesPerFileRecords(t *testing.T) {
	svc, _ := newTestImageService(t)

	uploads := []media.Upload{
		pngUpload(t, "ok.png", 120, 90),
		{Name: "notas.txt", Data: []byte("definitely not an image")},
	}

	jobID, err := svc.ProcessBatch(uploads, media.DefaultStageOptions())
	require.NoError(t, err)

	snapshot := waitTerminal(t, svc, jobID)
	assert.Equal(t, media.StatusCompleted, snapshot.Status, "one bad file must not fail the batch")
	require.Len(t, snapshot.Files, 2)

	assert.NotEmpty(t, snapshot.Files[0].ID)
	assert.NotEmpty(t, snapshot.Files[1].ID)
	assert.NotEqual(t, snapshot.Files[0].ID, snapshot.Files[1].ID)

	assert.Equal(t, "ok.png", snapshot.Files[0].Name)
	assert.Equal(t, media.StatusCompleted, snapshot.Files[0].Status)
	assert.Equal(t, 100, snapshot.Files[0].Progress)
	assert.NotNil(t, snapshot.Files[0].Processed)

	assert.Equal(t, "notas.txt", snapshot.Files[1].Name)
	assert.Equal(t, media.StatusError, snapshot.Files[1].Status)
	assert.Equal(t, 100, snapshot.Files[1].Progress)
	assert.NotEmpty(t, snapshot.Files[1].Error)
	assert.Nil(t, snapshot.Files[1].Processed)
}

func TestProcessBatchAllFailuresIsError(t *testing.T) {
	svc, _ := newTestImageService(t)

	jobID, err := svc.ProcessBatch([]media.Upload{
		{Name: "a.bin", Data: []byte("junk")},
		{Name: "b.bin", Data: []byte("more junk")},
	}, media.DefaultStageOptions())
	require.NoError(t, err)

	snapshot := waitTerminal(t, svc, jobID)
	assert.Equal(t, media.StatusError, snapshot.Status)
}

func TestProcessBatchRejectsEmptyAndConcurrent(t *testing.T) {
	svc, _ := newTestImageService(t)

	_, err := svc.ProcessBatch(nil, media.DefaultStageOptions())
	assert.ErrorIs(t, err, ErrNoFiles)

	jobID, err := svc.ProcessBatch([]media.Upload{pngUpload(t, "a.png", 400, 300)}, media.DefaultStageOptions())
	require.NoError(t, err)

	// A second batch is allowed again once the first finishes.
	waitTerminal(t, svc, jobID)
	jobID2, err := svc.ProcessBatch([]media.Upload{pngUpload(t, "b.png", 400, 300)}, media.DefaultStageOptions())
	require.NoError(t, err)
	waitTerminal(t, svc, jobID2)
}

func TestCancelUnknownJob(t *testing.T) {
	svc, _ := newTestImageService(t)
	assert.False(t, svc.Cancel("missing"))
}

func TestTerminalRecordIsCollected(t *testing.T) {
	svc, _ := newTestImageService(t)

	jobID, err := svc.ProcessBatch([]media.Upload{pngUpload(t, "a.png", 60, 40)}, media.DefaultStageOptions())
	require.NoError(t, err)
	waitTerminal(t, svc, jobID)

	assert.Eventually(t, func() bool {
		_, ok := svc.Status(jobID)
		return !ok
	}, 5*time.Second, 20*time.Millisecond)

	assert.False(t, svc.Cancel(jobID), "collected jobs cannot be cancelled")
}

// recordingPipeline skips real rendering and records when each file enters
// the pipeline plus which output stages ran.
type recordingPipeline struct {
	mu          sync.Mutex
	dispatches  []time.Time
	stageCalls  map[string]int
	blockFirst  chan struct{}
	blockSignal sync.Once
	started     chan struct{}
}

func newRecordingPipeline() *recordingPipeline {
	return &recordingPipeline{stageCalls: make(map[string]int)}
}

func (p *recordingPipeline) stage(name string) {
	p.mu.Lock()
	p.stageCalls[name]++
	p.mu.Unlock()
}

func (p *recordingPipeline) Validate(up media.Upload) error {
	p.mu.Lock()
	p.dispatches = append(p.dispatches, time.Now())
	p.mu.Unlock()
	if p.blockFirst != nil {
		p.blockSignal.Do(func() { close(p.started) })
		<-p.blockFirst
	}
	return nil
}

func (p *recordingPipeline) ExtractMetadata(up media.Upload) (media.Metadata, error) {
	return media.Metadata{Width: 1, Height: 1, Format: "png", Size: len(up.Data)}, nil
}

func (p *recordingPipeline) Decode(up media.Upload) (image.Image, error) {
	return image.NewRGBA(image.Rect(0, 0, 1, 1)), nil
}

func (p *recordingPipeline) Placeholder(img image.Image) (string, error) {
	p.stage("placeholder")
	return "data:image/jpeg;base64,xx", nil
}

func (p *recordingPipeline) Optimize(img image.Image, baseName string) (string, error) {
	p.stage("optimize")
	return "/media/images/" + baseName + ".webp", nil
}

func (p *recordingPipeline) Thumbnails(img image.Image, baseName string) ([]media.Variant, error) {
	p.stage("thumbnails")
	return []media.Variant{{Width: 150, Format: "webp"}}, nil
}

func (p *recordingPipeline) Responsive(img image.Image, baseName string) ([]media.Variant, error) {
	p.stage("responsive")
	return []media.Variant{{Width: 640, Format: "webp"}}, nil
}

func fakeUploads(n int) []media.Upload {
	uploads := make([]media.Upload, n)
	for i := range uploads {
		uploads[i] = media.Upload{Name: "f.png", Data: []byte{1}}
	}
	return uploads
}

func TestProcessBatchChunksWithDelay(t *testing.T) {
	pipeline := newRecordingPipeline()
	delay := 60 * time.Millisecond
	svc := newImageService(pipeline, newTestLogger(t), ImageServiceConfig{
		BatchSize:       5,
		BatchDelay:      delay,
		RecordRetention: time.Minute,
	})

	jobID, err := svc.ProcessBatch(fakeUploads(12), media.DefaultStageOptions())
	require.NoError(t, err)
	waitTerminal(t, svc, jobID)

	pipeline.mu.Lock()
	dispatches := append([]time.Time(nil), pipeline.dispatches...)
	pipeline.mu.Unlock()
	require.Len(t, dispatches, 12)

	// Group dispatch times into chunks: files in one chunk start together,
	// chunks are separated by the configured delay.
	chunks := []int{1}
	last := dispatches[0]
	for _, ts := range dispatches[1:] {
		if ts.Sub(last) >= delay/2 {
			chunks = append(chunks, 0)
		}
		chunks[len(chunks)-1]++
		if ts.After(last) {
			last = ts
		}
	}
	assert.Equal(t, []int{5, 5, 2}, chunks)
}

func TestProcessBatchStageToggles(t *testing.T) {
	pipeline := newRecordingPipeline()
	svc := newImageService(pipeline, newTestLogger(t), ImageServiceConfig{
		BatchSize:       5,
		BatchDelay:      time.Millisecond,
		RecordRetention: time.Minute,
	})

	jobID, err := svc.ProcessBatch(fakeUploads(2), media.StageOptions{Optimize: true})
	require.NoError(t, err)
	snapshot := waitTerminal(t, svc, jobID)

	pipeline.mu.Lock()
	calls := pipeline.stageCalls
	pipeline.mu.Unlock()
	assert.Equal(t, 2, calls["optimize"])
	assert.Zero(t, calls["placeholder"])
	assert.Zero(t, calls["thumbnails"])
	assert.Zero(t, calls["responsive"])

	// Files still finish at 100 even though later checkpoints were skipped.
	for _, file := range snapshot.Files {
		assert.Equal(t, media.StatusCompleted, file.Status)
		assert.Equal(t, 100, file.Progress)
	}
}

func TestCancelSingleFile(t *testing.T) {
	pipeline := newRecordingPipeline()
	pipeline.blockFirst = make(chan struct{})
	pipeline.started = make(chan struct{})
	svc := newImageService(pipeline, newTestLogger(t), ImageServiceConfig{
		BatchSize:       1,
		BatchDelay:      time.Millisecond,
		RecordRetention: time.Minute,
	})

	jobID, err := svc.ProcessBatch(fakeUploads(2), media.DefaultStageOptions())
	require.NoError(t, err)

	// Wait until the first file is inside the pipeline, then cancel the
	// second file before its chunk is dispatched.
	<-pipeline.started
	snapshot, ok := svc.Status(jobID)
	require.True(t, ok)
	require.Len(t, snapshot.Files, 2)
	require.True(t, svc.Cancel(snapshot.Files[1].ID))

	close(pipeline.blockFirst)
	final := waitTerminal(t, svc, jobID)

	assert.Equal(t, media.StatusCompleted, final.Status)
	assert.Equal(t, media.StatusCompleted, final.Files[0].Status)
	assert.Equal(t, media.StatusCancelled, final.Files[1].Status)
	assert.False(t, svc.Cancel(final.Files[1].ID), "a cancelled file stays cancelled")
}

func TestPipelineValidate(t *testing.T) {
	pipeline := media.NewPipeline(t.TempDir(), 1024)

	small := pngUpload(t, "ok.png", 4, 4)
	assert.NoError(t, pipeline.Validate(small))

	big := pngUpload(t, "big.png", 200, 200)
	assert.Error(t, pipeline.Validate(big), "oversized uploads are rejected before decoding")

	assert.Error(t, pipeline.Validate(media.Upload{Name: "x.txt", Data: []byte("text")}))
	assert.Error(t, pipeline.Validate(media.Upload{Name: "empty.png"}))
}

func TestBaseNameSanitizes(t *testing.T) {
	assert.Equal(t, "foto-da-turma-01ABC", media.BaseName("Foto da Turma.PNG", "01ABC"))
	assert.Equal(t, "image-01ABC", media.BaseName("???.png", "01ABC"))
}
