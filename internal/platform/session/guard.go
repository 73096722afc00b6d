package session

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

const patientKey = "patient"

// Messages shown when the consultation page is reached without a selection.
const (
	MsgInvalidAccess = "잘못된 접근입니다."
	MsgNoPatient     = "환자 정보가 없습니다. 환자 검색 페이지에서 먼저 선택해주세요."
)

// RequirePatient stops the request with 403 unless the session is logged in
// and holds a selected patient. On success the PatientContext is placed on
// the echo context for handlers to read with PatientFrom.
func RequirePatient() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			s, err := FromContext(c)
			if err != nil {
				return echo.NewHTTPError(http.StatusForbidden, MsgInvalidAccess)
			}
			if !s.LoggedIn() {
				return echo.NewHTTPError(http.StatusForbidden, MsgInvalidAccess)
			}
			p, ok := s.Patient()
			if !ok {
				return echo.NewHTTPError(http.StatusForbidden, MsgNoPatient)
			}
			c.Set(patientKey, p)
			c.Set("patient_id", p.PatientID)
			return next(c)
		}
	}
}

// PatientFrom returns the patient resolved by RequirePatient.
func PatientFrom(c echo.Context) (PatientContext, bool) {
	p, ok := c.Get(patientKey).(PatientContext)
	return p, ok && p.PatientID != ""
}
