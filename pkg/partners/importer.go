// Package partners imports the partner-librairies spreadsheet. Raw rows are
// quarantined as bronze records; everything downstream sees only the
// pseudonymized silver form.
package partners

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/datapulse/ingest/models"
	"github.com/xuri/excelize/v2"
)

// RequiredColumns are the spreadsheet headers an import cannot run without.
var RequiredColumns = []string{
	"nom_librairie",
	"adresse",
	"code_postal",
	"ville",
	"contact_nom",
	"contact_email",
	"contact_telephone",
	"ca_annuel",
	"date_partenariat",
	"specialite",
}

// StructuralError means the file itself is unusable. It aborts the whole
// import, unlike row-level validation errors.
type StructuralError struct {
	Problems []string
}

func (e *StructuralError) Error() string {
	return "spreadsheet structure invalid: " + strings.Join(e.Problems, "; ")
}

// FieldError records why one row was rejected.
type FieldError struct {
	Row     int
	Field   string
	Problem string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("row %d: %s: %s", e.Row, e.Field, e.Problem)
}

// Stats summarizes one import.
type Stats struct {
	Rows     int
	Valid    int
	Skipped  int
	Problems []FieldError
}

var (
	postcodeRe  = regexp.MustCompile(`^\d{5}$`)
	emailRe     = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	phoneClean  = regexp.MustCompile(`[\s.\-]`)
	phoneRe     = regexp.MustCompile(`^(0[1-9]\d{8}|[1-9]\d{8})$`)
	dateFormats = []string{"2006-01-02", "02/01/2006", "2006-01-02 15:04:05", "01-02-06"}
)

// Importer reads and validates the partner spreadsheet.
type Importer struct {
	salt  string
	log   *slog.Logger
	stats Stats
}

// NewImporter builds an importer using the given pseudonymization salt.
func NewImporter(salt string, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{salt: salt, log: logger}
}

// ValidateFile checks the file before any row is read: it must exist, be a
// spreadsheet, carry every required column, and contain at least one data
// row. Any problem is structural and fatal.
func (im *Importer) ValidateFile(path string) error {
	var problems []string

	if _, err := os.Stat(path); err != nil {
		return &StructuralError{Problems: []string{fmt.Sprintf("file not readable: %v", err)}}
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".xlsx", ".xls":
	default:
		problems = append(problems, fmt.Sprintf("unsupported extension %q", ext))
	}
	if len(problems) > 0 {
		return &StructuralError{Problems: problems}
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return &StructuralError{Problems: []string{fmt.Sprintf("cannot open spreadsheet: %v", err)}}
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return &StructuralError{Problems: []string{fmt.Sprintf("cannot read sheet: %v", err)}}
	}
	if len(rows) == 0 {
		return &StructuralError{Problems: []string{"sheet is empty"}}
	}

	header := headerIndex(rows[0])
	for _, col := range RequiredColumns {
		if _, ok := header[col]; !ok {
			problems = append(problems, fmt.Sprintf("missing column %q", col))
		}
	}
	if len(rows) < 2 {
		problems = append(problems, "no data rows")
	}
	if len(problems) > 0 {
		return &StructuralError{Problems: problems}
	}
	return nil
}

// Import reads the spreadsheet and returns the silver (pseudonymized) and
// bronze (raw) record lists. Rows failing validation are skipped and
// recorded in Stats; a structural problem aborts with *StructuralError.
func (im *Importer) Import(ctx context.Context, path, batchID string) ([]models.CleanPartner, []models.RawPartner, error) {
	if err := im.ValidateFile(path); err != nil {
		return nil, nil, err
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, nil, &StructuralError{Problems: []string{err.Error()}}
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, nil, &StructuralError{Problems: []string{err.Error()}}
	}

	header := headerIndex(rows[0])
	now := time.Now().UTC()
	meta := models.RecordMeta{
		Source:    filepath.Base(path),
		FetchedAt: now,
		BatchID:   batchID,
	}

	var (
		silver []models.CleanPartner
		bronze []models.RawPartner
	)
	for i, row := range rows[1:] {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		rowNum := i + 2 // 1-based, after the header
		im.stats.Rows++

		raw := im.parseRow(header, row, rowNum, meta)
		if raw == nil {
			continue // blank line
		}

		problems := im.validateRow(raw)
		if len(problems) > 0 {
			im.stats.Skipped++
			im.stats.Problems = append(im.stats.Problems, problems...)
			for _, p := range problems {
				im.log.Warn("row rejected", "row", p.Row, "field", p.Field, "problem", p.Problem)
			}
			continue
		}

		im.stats.Valid++
		bronze = append(bronze, *raw)
		silver = append(silver, im.toClean(raw, now, batchID))
	}

	im.log.Info("spreadsheet imported",
		"file", filepath.Base(path), "rows", im.stats.Rows,
		"valid", im.stats.Valid, "skipped", im.stats.Skipped)
	return silver, bronze, nil
}

// Stats returns the counters from the last Import run.
func (im *Importer) Stats() Stats {
	return im.stats
}

func headerIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return idx
}

func cell(row []string, header map[string]int, col string) string {
	i, ok := header[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func (im *Importer) parseRow(header map[string]int, row []string, rowNum int, meta models.RecordMeta) *models.RawPartner {
	raw := &models.RawPartner{
		NomLibrairie:     cell(row, header, "nom_librairie"),
		Adresse:          cell(row, header, "adresse"),
		CodePostal:       cell(row, header, "code_postal"),
		Ville:            cell(row, header, "ville"),
		ContactNom:       cell(row, header, "contact_nom"),
		ContactEmail:     cell(row, header, "contact_email"),
		ContactTelephone: cell(row, header, "contact_telephone"),
		DatePartenariat:  cell(row, header, "date_partenariat"),
		Specialite:       cell(row, header, "specialite"),
		RowNumber:        rowNum,
		Meta:             meta,
	}
	if raw.NomLibrairie == "" && raw.Adresse == "" && raw.Ville == "" {
		return nil
	}

	if s := cell(row, header, "ca_annuel"); s != "" {
		s = strings.ReplaceAll(strings.ReplaceAll(s, " ", ""), ",", ".")
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			raw.CAAnnuel = &v
		}
	}
	return raw
}

func (im *Importer) validateRow(raw *models.RawPartner) []FieldError {
	var errs []FieldError
	add := func(field, problem string) {
		errs = append(errs, FieldError{Row: raw.RowNumber, Field: field, Problem: problem})
	}

	if raw.NomLibrairie == "" {
		add("nom_librairie", "required")
	}
	if raw.Adresse == "" {
		add("adresse", "required")
	}
	if raw.Ville == "" {
		add("ville", "required")
	}
	if !postcodeRe.MatchString(raw.CodePostal) {
		add("code_postal", fmt.Sprintf("expected 5 digits, got %q", raw.CodePostal))
	}
	if raw.ContactEmail != "" && !emailRe.MatchString(raw.ContactEmail) {
		add("contact_email", "invalid format")
	}
	if raw.ContactTelephone != "" {
		digits := phoneClean.ReplaceAllString(raw.ContactTelephone, "")
		if !phoneRe.MatchString(digits) {
			add("contact_telephone", "invalid french number")
		}
	}
	return errs
}

func (im *Importer) toClean(raw *models.RawPartner, now time.Time, batchID string) models.CleanPartner {
	return models.CleanPartner{
		Nom:             raw.NomLibrairie,
		Adresse:         raw.Adresse,
		CodePostal:      raw.CodePostal,
		Ville:           raw.Ville,
		Specialite:      raw.Specialite,
		DatePartenariat: normalizeDate(raw.DatePartenariat),
		RevenueRange:    BucketRevenue(raw.CAAnnuel),
		ContactHash: Pseudonymize([]string{
			raw.ContactNom, raw.ContactEmail, raw.ContactTelephone,
		}, im.salt),
		ImportedAt: now,
		BatchID:    batchID,
	}
}

// normalizeDate rewrites a recognized date to ISO form and passes anything
// else through untouched.
func normalizeDate(s string) string {
	if s == "" {
		return ""
	}
	for _, layout := range dateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return s
}
