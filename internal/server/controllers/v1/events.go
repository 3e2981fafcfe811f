package v1

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/USA-RedDragon/crashgate/internal/config"
	"github.com/USA-RedDragon/crashgate/internal/db/models"
	"github.com/USA-RedDragon/crashgate/internal/events"
	"github.com/USA-RedDragon/crashgate/internal/gate"
	v1 "github.com/USA-RedDragon/crashgate/internal/server/apimodels/v1"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	AttachmentEditorLog  = "editor_log"
	AttachmentPlayerLog  = "player_log"
	AttachmentScreenshot = "screenshot"
)

func POSTEvent(c *gin.Context) {
	var req v1.POSTEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	cfg, ok := c.MustGet("config").(*config.Config)
	if !ok {
		slog.Error("Failed to get config from context")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Try again later"})
		return
	}
	submissionGate, ok := c.MustGet("gate").(*gate.Gate)
	if !ok {
		slog.Error("Failed to get gate from context")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Try again later"})
		return
	}

	event := gate.Event{
		Kind:     gate.ParseKind(req.Kind),
		Severity: gate.ParseSeverity(req.Severity),
		Type:     req.Type,
		Message:  req.Message,
		Stack:    req.Stack,
		Editor:   req.Editor,
	}
	decision := submissionGate.Decide(&event)

	resp := v1.POSTEventResponse{
		Submit:   decision.Submit,
		Reason:   string(decision.Reason),
		ReportID: uuid.NewString(),
	}
	if decision.Submit {
		resp.Attachments = attachments(cfg.Reporting, event.Editor)
		publish(c, cfg, &event, req, resp)
	}

	if value, ok := c.Get("db"); ok {
		db, ok := value.(*gorm.DB)
		if ok {
			err := models.CreateReport(db.WithContext(c.Request.Context()), &models.Report{
				ReportID:  resp.ReportID,
				Database:  cfg.Reporting.Database,
				Kind:      event.Kind.String(),
				Severity:  event.Severity.String(),
				Type:      event.Type,
				Message:   event.Message,
				Editor:    event.Editor,
				Submitted: decision.Submit,
				Reason:    resp.Reason,
			})
			if err != nil {
				slog.Error("Failed to record report", "error", err)
			}
		}
	}

	c.JSON(http.StatusOK, resp)
}

// attachments lists what the caller should send along with an accepted report.
func attachments(reporting config.Reporting, editor bool) []string {
	var out []string
	if editor && reporting.CaptureEditorLog {
		out = append(out, AttachmentEditorLog)
	}
	if !editor && reporting.CapturePlayerLog {
		out = append(out, AttachmentPlayerLog)
	}
	if reporting.CaptureScreenshots {
		out = append(out, AttachmentScreenshot)
	}
	return out
}

func publish(c *gin.Context, cfg *config.Config, event *gate.Event, req v1.POSTEventRequest, resp v1.POSTEventResponse) {
	value, ok := c.Get("events")
	if !ok {
		return
	}
	bus, ok := value.(*events.EventBus)
	if !ok || bus == nil {
		return
	}

	application := req.Application
	if application == "" {
		application = cfg.Reporting.Application
	}
	version := req.Version
	if version == "" {
		version = cfg.Reporting.Version
	}
	if !bus.Publish(events.ReportEvent{
		ReportID:    resp.ReportID,
		Database:    cfg.Reporting.Database,
		Application: application,
		Version:     version,
		Kind:        event.Kind.String(),
		Severity:    event.Severity.String(),
		Type:        event.Type,
		Message:     event.Message,
		Stack:       event.Stack,
		Editor:      event.Editor,
		Attachments: resp.Attachments,
		Time:        time.Now().UTC(),
	}) {
		slog.Warn("Dropped accepted report, event queue is full", "report_id", resp.ReportID)
	}
}
