// Package session carries the selected patient from the search page to the
// consultation dashboard. Values live in a server-side Store under the fixed
// keys below; the browser only holds a signed session id.
package session

import (
	"context"
	"errors"
	"time"
)

// Fixed session keys shared by the search and consultation pages.
const (
	KeyLoggedIn          = "is_logged_in"
	KeyPatientID         = "patient_id"
	KeyPatientName       = "patient_name"
	KeyPatientDOB        = "patient_dob"
	KeyPatientFirstVisit = "patient_first_visit"
)

var ErrNotFound = errors.New("session not found")

// PatientContext is the identity handed from the search flow to the
// dashboard flow.
type PatientContext struct {
	PatientID  string `json:"patient_id"`
	Name       string `json:"name"`
	BirthDate  string `json:"birth_date"`
	FirstVisit string `json:"first_visit_date"`
}

// Session is one browser's key-value state.
type Session struct {
	ID     string
	Values map[string]string
}

func New(id string) *Session {
	return &Session{ID: id, Values: make(map[string]string)}
}

// LoggedIn reports the is_logged_in flag. An absent flag counts as logged in;
// only an explicit false value rejects.
func (s *Session) LoggedIn() bool {
	v, ok := s.Values[KeyLoggedIn]
	if !ok {
		return true
	}
	switch v {
	case "", "0", "false", "False":
		return false
	}
	return true
}

func (s *Session) SetLoggedIn(v bool) {
	if v {
		s.Values[KeyLoggedIn] = "true"
	} else {
		s.Values[KeyLoggedIn] = "false"
	}
}

// Patient returns the selected patient, if any.
func (s *Session) Patient() (PatientContext, bool) {
	p := PatientContext{
		PatientID:  s.Values[KeyPatientID],
		Name:       s.Values[KeyPatientName],
		BirthDate:  s.Values[KeyPatientDOB],
		FirstVisit: s.Values[KeyPatientFirstVisit],
	}
	return p, p.PatientID != ""
}

// SetPatient records the selected patient and marks the session logged in.
func (s *Session) SetPatient(p PatientContext) {
	s.SetLoggedIn(true)
	s.Values[KeyPatientID] = p.PatientID
	s.Values[KeyPatientName] = p.Name
	s.Values[KeyPatientDOB] = p.BirthDate
	s.Values[KeyPatientFirstVisit] = p.FirstVisit
}

// Store persists sessions. Load returns ErrNotFound for unknown or expired ids.
type Store interface {
	Load(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}
