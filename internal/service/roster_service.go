package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-substitution-api/internal/dto"
	"github.com/noah-isme/sma-substitution-api/internal/models"
	appErrors "github.com/noah-isme/sma-substitution-api/pkg/errors"
	"github.com/noah-isme/sma-substitution-api/pkg/export"
)

var rosterHeaders = []string{"Period", "Class", "Subject", "Absent Teacher", "Substitute", "Status"}

type rosterReader interface {
	ListRoster(ctx context.Context, date time.Time) ([]models.RosterEntry, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// RosterService builds the daily substitution roster.
type RosterService struct {
	offers   rosterReader
	csv      csvRenderer
	pdf      pdfRenderer
	validate *validator.Validate
	logger   *zap.Logger
}

// NewRosterService constructs a RosterService with the default renderers when none are given.
func NewRosterService(offers rosterReader, csv csvRenderer, pdf pdfRenderer, validate *validator.Validate, logger *zap.Logger) *RosterService {
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RosterService{offers: offers, csv: csv, pdf: pdf, validate: validate, logger: logger}
}

// Entries returns the accepted and completed substitutions on the date.
func (s *RosterService) Entries(ctx context.Context, query dto.RosterQuery) ([]models.RosterEntry, time.Time, error) {
	if err := s.validate.Struct(query); err != nil {
		return nil, time.Time{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid roster query")
	}
	date, err := time.Parse(dateLayout, query.Date)
	if err != nil {
		return nil, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "date must use YYYY-MM-DD")
	}
	entries, err := s.offers.ListRoster(ctx, date)
	if err != nil {
		return nil, time.Time{}, persistenceError(err, "failed to load roster")
	}
	if entries == nil {
		entries = []models.RosterEntry{}
	}
	return entries, date, nil
}

// Export renders the roster as CSV or PDF.
func (s *RosterService) Export(ctx context.Context, query dto.RosterQuery) (*dto.RosterExport, error) {
	format := strings.ToLower(strings.TrimSpace(query.Format))
	if format != "csv" && format != "pdf" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
	query.Format = format
	entries, date, err := s.Entries(ctx, query)
	if err != nil {
		return nil, err
	}
	dataset := rosterDataset(entries)
	filename := fmt.Sprintf("substitution-roster-%s.%s", date.Format(dateLayout), format)

	var body []byte
	var contentType string
	switch format {
	case "csv":
		body, err = s.csv.Render(dataset)
		contentType = "text/csv"
	default:
		body, err = s.pdf.Render(dataset, fmt.Sprintf("Substitution roster %s (%s)", date.Format(dateLayout), models.DayOf(date)))
		contentType = "application/pdf"
	}
	if err != nil {
		s.logger.Error("roster render failed", zap.String("format", format), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render roster")
	}
	return &dto.RosterExport{Filename: filename, ContentType: contentType, Body: body}, nil
}

func rosterDataset(entries []models.RosterEntry) export.Dataset {
	rows := make([]map[string]string, 0, len(entries))
	for _, entry := range entries {
		rows = append(rows, map[string]string{
			"Period":         strconv.Itoa(entry.PeriodNumber),
			"Class":          entry.ClassName,
			"Subject":        entry.Subject,
			"Absent Teacher": entry.OriginalTeacherName,
			"Substitute":     entry.SubstituteName,
			"Status":         string(entry.Status),
		})
	}
	return export.Dataset{Headers: rosterHeaders, Rows: rows}
}
