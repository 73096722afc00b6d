package patient

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/consult/internal/platform/render"
	"github.com/ehr/consult/internal/platform/session"
	"github.com/ehr/consult/pkg/pagination"
)

// NextPagePath is where a successful selection transfers control.
const NextPagePath = "/consultation"

// SearchView is the template data of the search page.
type SearchView struct {
	Query   string
	Results []*Summary
}

type Handler struct {
	svc      *Service
	sessions *session.Manager
	logger   zerolog.Logger
}

func NewHandler(svc *Service, sessions *session.Manager, logger zerolog.Logger) *Handler {
	return &Handler{svc: svc, sessions: sessions, logger: logger}
}

func (h *Handler) RegisterRoutes(e *echo.Echo, api *echo.Group) {
	e.GET("/", func(c echo.Context) error {
		return c.Redirect(http.StatusFound, "/patients")
	})
	e.GET("/patients", h.SearchPage)
	e.POST("/patients/select", h.Select)
	e.POST("/patients/clear", h.Clear)
	api.GET("/patients", h.ListPatients)
}

func (h *Handler) SearchPage(c echo.Context) error {
	q := c.QueryParam("q")
	results, err := h.svc.Search(c.Request().Context(), q)
	if err != nil {
		return err
	}
	return h.renderSearch(c, q, results, nil)
}

func (h *Handler) renderSearch(c echo.Context, q string, results []*Summary, notice *render.Notice) error {
	page := render.Page{
		Title:  "환자 검색",
		Notice: notice,
		Data:   SearchView{Query: q, Results: results},
	}
	if len(results) == 0 && notice == nil {
		page.Notice = render.Warning("검색된 환자가 없습니다.")
	}
	return c.Render(http.StatusOK, "search", page)
}

// Select reads the posted grid and hands the first flagged patient to the
// consultation page through the session.
func (h *Handler) Select(c echo.Context) error {
	form, err := c.FormParams()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid form")
	}
	rows, err := gridRowsFromForm(form)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	p, ok := SelectFirst(rows)
	if !ok {
		return h.renderSearch(c, form.Get("q"), summariesOf(rows), render.Info("선택된 환자가 없습니다."))
	}

	sess, err := session.FromContext(c)
	if err != nil {
		return err
	}
	sess.SetPatient(p)
	if err := h.sessions.Save(c, sess); err != nil {
		return err
	}
	h.logger.Info().Str("patient_id", p.PatientID).Msg("patient selected")
	return c.Redirect(http.StatusSeeOther, NextPagePath)
}

// Clear forgets the selected patient and returns to the search page.
func (h *Handler) Clear(c echo.Context) error {
	sess, err := session.FromContext(c)
	if err != nil {
		return err
	}
	if err := h.sessions.Destroy(c, sess); err != nil {
		return err
	}
	h.logger.Info().Str("session_id", sess.ID).Msg("patient selection cleared")
	return c.Redirect(http.StatusSeeOther, "/patients")
}

// ListPatients is the JSON form of the search.
func (h *Handler) ListPatients(c echo.Context) error {
	pg := pagination.FromContext(c, h.svc.Limit())
	results, err := h.svc.SearchN(c.Request().Context(), c.QueryParam("q"), pg.Limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if results == nil {
		results = []*Summary{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(results, len(results), pg.Limit))
}

func summariesOf(rows []GridRow) []*Summary {
	out := make([]*Summary, 0, len(rows))
	for _, r := range rows {
		out = append(out, &Summary{
			PatientID:      r.PatientID,
			Name:           r.Name,
			BirthDate:      r.BirthDate,
			FirstVisitDate: r.FirstVisitDate,
		})
	}
	return out
}

type formError string

func (e formError) Error() string { return string(e) }

// gridRowsFromForm rebuilds the grid from parallel form arrays. "selected"
// carries the indices of flagged rows.
func gridRowsFromForm(form map[string][]string) ([]GridRow, error) {
	ids := form["patient_id"]
	names := form["name"]
	dobs := form["birth_date"]
	visits := form["first_visit_date"]
	if len(names) != len(ids) || len(dobs) != len(ids) || len(visits) != len(ids) {
		return nil, formError("grid columns have different lengths")
	}

	rows := make([]GridRow, len(ids))
	for i := range ids {
		rows[i] = GridRow{PatientID: ids[i], Name: names[i], BirthDate: dobs[i], FirstVisitDate: visits[i]}
	}
	for _, v := range form["selected"] {
		idx, err := strconv.Atoi(v)
		if err != nil || idx < 0 || idx >= len(rows) {
			return nil, formError("invalid selected row: " + v)
		}
		rows[idx].Selected = true
	}
	return rows, nil
}
