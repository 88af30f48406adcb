// internal/handler/print_handler.go
package handler

import (
	"encoding/base64"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"print-service/internal/compose"
	"print-service/internal/config"
	"print-service/internal/halftone"
	"print-service/internal/journal"
	"print-service/internal/model"
	"print-service/internal/session"
	"print-service/internal/utils"
)

// PrintHandler serves print, status and job-journal requests.
type PrintHandler struct {
	runner   *session.Runner
	journal  journal.Journal
	eventBus *EventBus
	defaults config.PrinterConfig
	logger   *zap.Logger
}

// NewPrintHandler creates a new print handler
func NewPrintHandler(runner *session.Runner, jrnl journal.Journal, eventBus *EventBus, defaults config.PrinterConfig, logger *zap.Logger) *PrintHandler {
	return &PrintHandler{
		runner:   runner,
		journal:  jrnl,
		eventBus: eventBus,
		defaults: defaults,
		logger:   logger.With(zap.String("component", "print-handler")),
	}
}

// RegisterRoutes registers print routes
func (h *PrintHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/print", h.Print)
	router.POST("/print/image", h.PrintImage)
	router.GET("/status", h.Status)
	router.GET("/drawer", h.Drawer)
	router.GET("/jobs", h.ListJobs)
	router.GET("/jobs/:job_id", h.GetJob)
}

// PrintRequest is the JSON body of a print request. Data carries the
// pre-rendered command stream, base64-encoded; Text is an alternative plain
// form sent through verbatim. An empty destination returns the buffer
// unchanged without touching a device.
type PrintRequest struct {
	Destination string       `json:"destination"`
	Family      string       `json:"family"`
	Data        string       `json:"data"`
	Text        string       `json:"text"`
	Options     printOptions `json:"options"`
}

// printOptions distinguishes an absent timeout from an explicit 0, which
// disables the print deadline.
type printOptions struct {
	model.Options
	TimeoutSeconds *int `json:"timeout_seconds"`
}

// PrintResponse reports the terminal result of one request.
type PrintResponse struct {
	JobID  uuid.UUID        `json:"job_id"`
	Result model.ResultCode `json:"result"`
	Output string           `json:"output,omitempty"`
}

// Print transmits a pre-rendered command stream to a printer.
func (h *PrintHandler) Print(c *gin.Context) {
	var req PrintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	cmd := []byte(req.Text)
	if req.Data != "" {
		var err error
		cmd, err = base64.StdEncoding.DecodeString(req.Data)
		if err != nil {
			utils.ErrorResponse(c, http.StatusBadRequest, "Data must be base64-encoded", err)
			return
		}
	}

	opts := req.Options.Options
	opts.TimeoutSeconds = h.resolveTimeout(req.Options.TimeoutSeconds)
	h.run(c, req.Destination, req.Family, cmd, opts)
}

// PrintImage halftones an uploaded image (PNG, JPEG or BMP), composes the
// per-family document around it and prints it. Options arrive as query
// parameters; landscape emulation rotates the raster.
func (h *PrintHandler) PrintImage(c *gin.Context) {
	file, _, err := c.Request.FormFile("image")
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Image file is required", err)
		return
	}
	defer file.Close()

	img, err := halftone.DecodeRaster(file)
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Unsupported image", err)
		return
	}

	family, err := h.resolveFamily(c.Query("family"))
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Unknown printer family", err)
		return
	}

	opts := h.imageOptionsFromQuery(c)
	cmd := compose.ComposeImage(family, opts, img)
	h.run(c, c.Query("destination"), string(family), cmd, opts)
}

// Status runs a status-only inquiry against a printer.
func (h *PrintHandler) Status(c *gin.Context) {
	h.run(c, h.resolveDestination(c.Query("destination")), c.Query("family"), nil,
		model.Options{StatusOnly: true})
}

// Drawer reports the drawer-kick pin level. Only the escpos family answers.
func (h *PrintHandler) Drawer(c *gin.Context) {
	h.run(c, h.resolveDestination(c.Query("destination")), c.Query("family"), nil,
		model.Options{StatusOnly: true, DrawerStatus: true})
}

// run executes one session and reports its result, journaling the job and
// publishing its lifecycle events.
func (h *PrintHandler) run(c *gin.Context, destination, family string, cmd []byte, opts model.Options) {
	fam, err := h.resolveFamily(family)
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Unknown printer family", err)
		return
	}
	// Reject malformed destinations before the job is journaled or announced.
	if _, err := model.ParseDestination(destination); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid destination", err)
		return
	}
	if opts.CharsPerLine == 0 {
		opts.CharsPerLine = h.defaults.CharsPerLine
	}

	job := model.NewPrintJob(destination, fam, opts.StatusOnly, len(cmd))
	jobLogger := utils.NewJobLogger(h.logger, job.ID.String(), string(fam), destination)

	if err := h.journal.RecordStart(c.Request.Context(), job); err != nil {
		jobLogger.Warn("Failed to journal job start", zap.Error(err))
	}
	h.eventBus.Publish(JobStarted(job))

	res, err := h.runner.Run(c.Request.Context(), destination, fam, cmd, opts)
	if err != nil {
		jobLogger.Resolved("", err)
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid print request", err)
		return
	}

	if err := h.journal.RecordResult(c.Request.Context(), job.ID, res.Code); err != nil {
		jobLogger.Warn("Failed to journal job result", zap.Error(err))
	}
	h.eventBus.Publish(JobResolved(job, res.Code))
	jobLogger.Resolved(string(res.Code), nil)

	response := PrintResponse{JobID: job.ID, Result: res.Code}
	if len(res.Output) > 0 {
		response.Output = base64.StdEncoding.EncodeToString(res.Output)
	}
	utils.SuccessResponse(c, http.StatusOK, "Session resolved", response)
}

// ListJobs returns recent journal entries.
func (h *PrintHandler) ListJobs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	jobs, err := h.journal.ListRecent(c.Request.Context(), limit)
	if err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to list jobs", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Jobs retrieved", jobs)
}

// GetJob returns one journal entry by ID.
func (h *PrintHandler) GetJob(c *gin.Context) {
	id, err := uuid.Parse(c.Param("job_id"))
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid job ID", err)
		return
	}
	job, err := h.journal.GetJob(c.Request.Context(), id)
	if err != nil {
		utils.ErrorResponse(c, http.StatusNotFound, "Job not found", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Job retrieved", job)
}

// resolveDestination applies the configured default for status inquiries,
// which have no identity path worth reaching.
func (h *PrintHandler) resolveDestination(destination string) string {
	if destination == "" {
		return h.defaults.Destination
	}
	return destination
}

func (h *PrintHandler) resolveFamily(family string) (model.PrinterFamily, error) {
	if family == "" {
		family = h.defaults.Family
	}
	return model.ParseFamily(family)
}

// resolveTimeout applies the configured default only when the request left
// the deadline unset; an explicit 0 means no deadline.
func (h *PrintHandler) resolveTimeout(explicit *int) int {
	if explicit == nil {
		return h.defaults.TimeoutSeconds
	}
	return *explicit
}

func (h *PrintHandler) imageOptionsFromQuery(c *gin.Context) model.Options {
	var opts model.Options
	opts.Threshold, _ = strconv.Atoi(c.DefaultQuery("threshold", "128"))
	opts.Gamma, _ = strconv.ParseFloat(c.DefaultQuery("gamma", "1.0"), 64)
	opts.Landscape = c.Query("landscape") == "true"
	opts.UpsideDown = c.Query("upside_down") == "true"
	opts.Cut = c.DefaultQuery("cut", "true") == "true"
	opts.CharsPerLine, _ = strconv.Atoi(c.DefaultQuery("chars_per_line", "0"))
	opts.MarginLeft, _ = strconv.Atoi(c.DefaultQuery("margin_left", "0"))
	opts.MarginRight, _ = strconv.Atoi(c.DefaultQuery("margin_right", "0"))
	opts.Resolution, _ = strconv.Atoi(c.DefaultQuery("resolution", "203"))

	opts.TimeoutSeconds = h.defaults.TimeoutSeconds
	if raw, ok := c.GetQuery("timeout_seconds"); ok {
		if t, err := strconv.Atoi(raw); err == nil {
			opts.TimeoutSeconds = t
		}
	}
	return opts
}
