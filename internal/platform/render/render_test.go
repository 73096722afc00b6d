package render

import (
	"bytes"
	"io/fs"
	"strings"
	"testing"
	"time"
)

type searchRow struct {
	PatientID      string
	Name           string
	BirthDate      string
	FirstVisitDate string
}

type searchData struct {
	Query   string
	Results []searchRow
}

func TestNew_ParsesPages(t *testing.T) {
	r, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, name := range []string{"search", "consultation", "error"} {
		if _, ok := r.pages[name]; !ok {
			t.Errorf("expected page %q to be parsed", name)
		}
	}
	if _, ok := r.pages["layout"]; ok {
		t.Error("layout must not be a page of its own")
	}
}

func TestRender_UnknownPage(t *testing.T) {
	r := MustNew()
	var buf bytes.Buffer
	if err := r.Render(&buf, "missing", Page{}, nil); err == nil {
		t.Error("expected error for unknown page")
	}
}

func TestRender_EscapesFieldValues(t *testing.T) {
	r := MustNew()
	var buf bytes.Buffer
	page := Page{
		Title: "환자 검색",
		Data: searchData{
			Query:   `"><script>alert(1)</script>`,
			Results: []searchRow{{PatientID: "P1", Name: "<b>홍길동</b>", BirthDate: "1980-01-02"}},
		},
	}
	if err := r.Render(&buf, "search", page, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.String()
	if strings.Contains(out, "<script>alert(1)</script>") {
		t.Error("query was not escaped")
	}
	if strings.Contains(out, "<b>홍길동</b>") {
		t.Error("name was not escaped")
	}
	if !strings.Contains(out, `name="selected" value="0"`) {
		t.Error("expected selection checkbox for first row")
	}
	if !strings.Contains(out, `value="P1" readonly`) {
		t.Error("expected read-only patient id")
	}
}

func TestRender_NoticeBanner(t *testing.T) {
	r := MustNew()
	var buf bytes.Buffer
	page := Page{Title: "x", Notice: Warning("검색된 환자가 없습니다."), Data: searchData{}}
	if err := r.Render(&buf, "search", page, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), `notice-warning`) || !strings.Contains(buf.String(), "검색된 환자가 없습니다.") {
		t.Errorf("expected warning banner, got %s", buf.String())
	}
	if strings.Contains(buf.String(), `action="/patients/select"`) {
		t.Error("selection form must not render without results")
	}
}

func TestFormatDate(t *testing.T) {
	d := time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)
	var nilDate *time.Time
	tests := []struct {
		in   interface{}
		want string
	}{
		{d, "2024-03-09"},
		{&d, "2024-03-09"},
		{nilDate, "-"},
		{time.Time{}, "-"},
		{"2024-03-09", "-"},
	}
	for _, tt := range tests {
		if got := formatDate(tt.in); got != tt.want {
			t.Errorf("formatDate(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatNumber(t *testing.T) {
	f := 2.5
	i := 3
	var nf *float64
	var ni *int
	tests := []struct {
		in   interface{}
		want string
	}{
		{f, "2.5"},
		{&f, "2.5"},
		{24.0 / 3, "8"},
		{i, "3"},
		{&i, "3"},
		{nf, "-"},
		{ni, "-"},
		{"x", "-"},
	}
	for _, tt := range tests {
		if got := formatNumber(tt.in); got != tt.want {
			t.Errorf("formatNumber(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestOrDash(t *testing.T) {
	s := "weight"
	empty := ""
	var none *string
	if orDash(&s) != "weight" || orDash(&empty) != "-" || orDash(none) != "-" || orDash("") != "-" {
		t.Error("unexpected orDash output")
	}
}

func TestStatic_ServesAssets(t *testing.T) {
	for _, name := range []string{"dashboard.js", "style.css"} {
		if _, err := fs.Stat(Static(), name); err != nil {
			t.Errorf("expected embedded asset %s: %v", name, err)
		}
	}
}
