package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/escolahabilidade/habilidade-go/internal/application/services"
	"github.com/escolahabilidade/habilidade-go/internal/infrastructure/media"
	"github.com/escolahabilidade/habilidade-go/internal/infrastructure/observability/logging"
	"github.com/gin-gonic/gin"
)

// ImageHandlers exposes the image processing endpoints
type ImageHandlers struct {
	imageService *services.ImageService
	logger       *logging.ChanneledLogger
}

func NewImageHandlers(imageService *services.ImageService, logger *logging.ChanneledLogger) *ImageHandlers {
	return &ImageHandlers{
		imageService: imageService,
		logger:       logger,
	}
}

// PostUpload accepts a multipart batch and starts a processing job
func (h *ImageHandlers) PostUpload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	files := form.File["images"]
	uploads := make([]media.Upload, 0, len(files))
	for _, header := range files {
		file, err := header.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		data, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		uploads = append(uploads, media.Upload{Name: header.Filename, Data: data})
	}

	jobID, err := h.imageService.ProcessBatch(uploads, stageOptions(c))
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, services.ErrJobRunning) {
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	h.logger.Media().Info("Image upload accepted", "jobId", jobID, "files", len(uploads))
	c.JSON(http.StatusAccepted, gin.H{"jobId": jobID, "files": len(uploads)})
}

// stageOptions reads the per-request stage toggles from the form, falling
// back to the defaults for any field the client leaves out.
func stageOptions(c *gin.Context) media.StageOptions {
	opts := media.DefaultStageOptions()
	if v, ok := c.GetPostForm("placeholder"); ok {
		opts.Placeholder = v == "true"
	}
	if v, ok := c.GetPostForm("optimize"); ok {
		opts.Optimize = v == "true"
	}
	if v, ok := c.GetPostForm("thumbnails"); ok {
		opts.Thumbnails = v == "true"
	}
	if v, ok := c.GetPostForm("responsive"); ok {
		opts.Responsive = v == "true"
	}
	return opts
}

// GetStatus reports the progress of a processing job
func (h *ImageHandlers) GetStatus(c *gin.Context) {
	snapshot, ok := h.imageService.Status(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown job"})
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

// PostCancel requests cancellation of a running job
func (h *ImageHandlers) PostCancel(c *gin.Context) {
	if !h.imageService.Cancel(c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown or finished job"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"cancelling": true})
}
