package consultation

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/render"
	"github.com/labstack/echo/v4"

	view "github.com/ehr/consult/internal/platform/render"
	"github.com/ehr/consult/internal/platform/session"
)

// Banner texts of the dashboard.
const (
	MsgSaved = "처방이 저장되었습니다!"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the dashboard behind the patient guard.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/consultation", session.RequirePatient())
	g.GET("", h.Show)
	g.POST("/prescriptions", h.CreatePrescription)
	g.GET("/prescriptions/export", h.ExportPrescriptions)
	g.GET("/charts/:name", h.Chart)
}

func patientFrom(c echo.Context) (session.PatientContext, error) {
	p, ok := session.PatientFrom(c)
	if !ok {
		return p, echo.NewHTTPError(http.StatusForbidden, session.MsgNoPatient)
	}
	return p, nil
}

func (h *Handler) Show(c echo.Context) error {
	p, err := patientFrom(c)
	if err != nil {
		return err
	}
	d, err := h.svc.Dashboard(c.Request().Context(), p)
	if err != nil {
		return err
	}
	return c.Render(http.StatusOK, "consultation", view.Page{
		Title: p.Name + " 님",
		Data:  d,
	})
}

// CreatePrescription saves the posted prescription and renders the
// dashboard with the refreshed history.
func (h *Handler) CreatePrescription(c echo.Context) error {
	p, err := patientFrom(c)
	if err != nil {
		return err
	}
	var in PrescriptionInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid prescription form")
	}

	ctx := c.Request().Context()
	rx, history, err := h.svc.SavePrescription(ctx, p, in)
	if errors.Is(err, ErrInvalidPrescription) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err != nil {
		return err
	}

	d, err := h.svc.Dashboard(ctx, p)
	if err != nil {
		return err
	}
	d.History = history
	d.ShowHistory = true
	d.SavedID = rx.ID
	return c.Render(http.StatusOK, "consultation", view.Page{
		Title:  p.Name + " 님",
		Notice: view.Success(MsgSaved),
		Data:   d,
	})
}

// ExportPrescriptions downloads the history as an xlsx workbook.
func (h *Handler) ExportPrescriptions(c echo.Context) error {
	p, err := patientFrom(c)
	if err != nil {
		return err
	}
	history, err := h.svc.PrescriptionHistory(c.Request().Context(), p)
	if err != nil {
		return err
	}
	data, err := ExportHistory(history)
	if err != nil {
		return err
	}
	filename := fmt.Sprintf("prescriptions-%s-%s.xlsx", p.PatientID, h.svc.Today().Format("20060102"))
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return c.Blob(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

// Chart serves one chart as a standalone HTML document for an iframe.
func (h *Handler) Chart(c echo.Context) error {
	p, err := patientFrom(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	var chart render.Renderer
	switch c.Param("name") {
	case ChartDose:
		rows, err := h.svc.Predictions(ctx, p)
		if err != nil {
			return err
		}
		chart = DoseChart(rows)
	case ChartSideEffects:
		rows, err := h.svc.RecentSideEffects(ctx, p)
		if err != nil {
			return err
		}
		chart = SideEffectChart(rows)
	case ChartPHQ9:
		rows, err := h.svc.PHQ9(ctx, p)
		if err != nil {
			return err
		}
		chart = PHQ9Chart(rows)
	case ChartAdherence:
		rows, err := h.svc.Adherence(ctx, p)
		if err != nil {
			return err
		}
		chart = AdherenceChart(rows)
	default:
		return echo.NewHTTPError(http.StatusNotFound, "unknown chart")
	}

	var buf bytes.Buffer
	if err := chart.Render(&buf); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return c.HTMLBlob(http.StatusOK, buf.Bytes())
}
