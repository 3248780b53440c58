package export

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/Spok95/course-tracker/internal/models"
)

type ProgressReader interface {
	Records(ctx context.Context, userID int64) ([]models.ProgressRecord, error)
}

type ResultReader interface {
	Summary(ctx context.Context, userID int64) ([]models.WeekResult, error)
}

type UserReader interface {
	Get(ctx context.Context, userID int64) (*models.User, error)
	ListStudents(ctx context.Context) ([]models.User, error)
}

type CertificateReader interface {
	Get(ctx context.Context, userID int64) (*models.Certificate, error)
}

type Exporter struct {
	users    UserReader
	progress ProgressReader
	results  ResultReader
	certs    CertificateReader
	now      func() time.Time
}

func New(users UserReader, progress ProgressReader, results ResultReader, certs CertificateReader) *Exporter {
	return &Exporter{users: users, progress: progress, results: results, certs: certs, now: time.Now}
}

func formatGrade(g *float64) string {
	if g == nil {
		return ""
	}
	return strconv.FormatFloat(*g, 'f', -1, 64)
}

func orEmpty(s models.AssignmentStatus) string {
	if s == "" {
		return "not submitted"
	}
	return string(s)
}

// TranscriptSheet строит по строке на неделю 0..N: доступ, статус задания, оценка, бейдж.
func TranscriptSheet(recs []models.ProgressRecord, results []models.WeekResult) SheetSpec {
	byWeek := make(map[int]models.WeekResult, len(results))
	for _, r := range results {
		byWeek[r.Week] = r
	}
	s := SheetSpec{
		Title:  "Transcript",
		Header: []string{"Week", "Access", "Admin override", "Assignment", "Grade", "Badge"},
	}
	for _, p := range recs {
		override := ""
		if p.OverrideByAdmin {
			override = "yes"
		}
		row := []string{strconv.Itoa(p.Week), string(p.Status), override, "", "", ""}
		if p.Week == models.OrientationWeek {
			row[0] = "0 (orientation)"
		} else if r, ok := byWeek[p.Week]; ok {
			row[3] = orEmpty(r.Status)
			row[4] = formatGrade(r.Grade)
			row[5] = r.Badge
		} else {
			row[3] = orEmpty("")
		}
		s.Rows = append(s.Rows, row)
	}
	return s
}

type StudentResults struct {
	User        models.User
	Results     []models.WeekResult
	Certificate *models.Certificate
}

// GradebookSheet строит ведомость: студент в строке, неделя в колонке.
func GradebookSheet(totalWeeks int, students []StudentResults) SheetSpec {
	s := SheetSpec{Title: "Gradebook", Header: []string{"Username", "Name", "Cohort"}}
	for w := 1; w <= totalWeeks; w++ {
		s.Header = append(s.Header, fmt.Sprintf("Week %d", w))
	}
	s.Header = append(s.Header, "Approved", "Certificate")

	for _, st := range students {
		row := []string{st.User.Username, st.User.DisplayName(), st.User.Cohort}
		byWeek := make(map[int]models.WeekResult, len(st.Results))
		for _, r := range st.Results {
			byWeek[r.Week] = r
		}
		approved := 0
		for w := 1; w <= totalWeeks; w++ {
			r := byWeek[w]
			cell := ""
			switch {
			case r.Grade != nil:
				cell = fmt.Sprintf("%s (%s)", formatGrade(r.Grade), r.Badge)
				approved++
			case r.Status != "":
				cell = string(r.Status)
			}
			row = append(row, cell)
		}
		cert := ""
		if st.Certificate != nil {
			cert = st.Certificate.Serial
		}
		row = append(row, fmt.Sprintf("%d/%d", approved, totalWeeks), cert)
		s.Rows = append(s.Rows, row)
	}
	return s
}

// Transcript: выписка одного студента. Возвращает содержимое файла и имя.
func (e *Exporter) Transcript(ctx context.Context, userID int64) ([]byte, string, error) {
	u, err := e.users.Get(ctx, userID)
	if err != nil {
		return nil, "", err
	}
	recs, err := e.progress.Records(ctx, userID)
	if err != nil {
		return nil, "", err
	}
	results, err := e.results.Summary(ctx, userID)
	if err != nil {
		return nil, "", err
	}
	data, err := Bytes([]SheetSpec{TranscriptSheet(recs, results)})
	if err != nil {
		return nil, "", err
	}
	return data, TranscriptFilename(u.DisplayName()), nil
}

// Gradebook: ведомость по когорте; пустая когорта означает всех студентов.
func (e *Exporter) Gradebook(ctx context.Context, cohort string, totalWeeks int) ([]byte, string, error) {
	students, err := e.users.ListStudents(ctx)
	if err != nil {
		return nil, "", err
	}
	var rows []StudentResults
	for _, u := range students {
		if cohort != "" && u.Cohort != cohort {
			continue
		}
		results, err := e.results.Summary(ctx, u.ID)
		if err != nil {
			return nil, "", err
		}
		cert, err := e.certs.Get(ctx, u.ID)
		if err != nil {
			return nil, "", err
		}
		rows = append(rows, StudentResults{User: u, Results: results, Certificate: cert})
	}
	data, err := Bytes([]SheetSpec{GradebookSheet(totalWeeks, rows)})
	if err != nil {
		return nil, "", err
	}
	return data, GradebookFilename(cohort, e.now().Format("2006-01-02")), nil
}
