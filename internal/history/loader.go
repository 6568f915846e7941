package history

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"transaction-automation-service/internal/extract"
	"transaction-automation-service/internal/models"
	apperrors "transaction-automation-service/pkg/errors"
	"transaction-automation-service/pkg/logger"
)

// Format identifies a history file format
type Format string

const (
	FormatCSV  Format = "csv"
	FormatTSV  Format = "tsv"
	FormatJSON Format = "json"
)

// FormatFor returns the format implied by a file extension
func FormatFor(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV, true
	case ".tsv":
		return FormatTSV, true
	case ".json":
		return FormatJSON, true
	default:
		return "", false
	}
}

// Stats describes one load
type Stats struct {
	Source        string
	Format        Format
	RecordsRead   int
	RecordsLoaded int
	Errors        []*apperrors.RecordError
}

// HasErrors returns true if any row was rejected
func (s *Stats) HasErrors() bool {
	return len(s.Errors) > 0
}

// String returns a human-readable summary
func (s *Stats) String() string {
	return fmt.Sprintf("Read %d records from %s (%d loaded), %d errors",
		s.RecordsRead, filepath.Base(s.Source), s.RecordsLoaded, len(s.Errors))
}

// SampleErrors returns up to max error messages
func (s *Stats) SampleErrors(max int) []string {
	limit := len(s.Errors)
	if max > 0 && max < limit {
		limit = max
	}
	samples := make([]string, 0, limit)
	for _, err := range s.Errors[:limit] {
		samples = append(samples, err.Error())
	}
	return samples
}

// Loader reads history files into history entries
type Loader struct {
	config *Config
	now    func() time.Time
	logger logger.Logger
}

// Option customises a Loader
type Option func(*Loader)

// WithClock sets the clock used to resolve relative dates
func WithClock(now func() time.Time) Option {
	return func(l *Loader) { l.now = now }
}

// WithLogger sets the loader's logger
func WithLogger(log logger.Logger) Option {
	return func(l *Loader) { l.logger = log.WithComponent("history") }
}

// NewLoader creates a loader. A nil config uses the defaults.
func NewLoader(config *Config, opts ...Option) (*Loader, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CategoryConfiguration, apperrors.CodeInvalidConfig,
			"invalid history loader configuration")
	}

	l := &Loader{
		config: config.Clone(),
		now:    time.Now,
		logger: logger.WithComponent("history"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// LoadFile loads a history file, choosing the format from its extension.
// Entries are returned in chronological order.
func (l *Loader) LoadFile(ctx context.Context, path string) ([]models.HistoryEntry, *Stats, error) {
	format, ok := FormatFor(path)
	if !ok {
		return nil, nil, apperrors.ParseError(apperrors.CodeInvalidFormat, path, filepath.Ext(path), nil).
			WithSuggestion("history files must end in .csv, .tsv or .json")
	}

	l.logger.WithFields(logger.Fields{
		"file_path": path,
		"format":    format,
	}).Debug("Opening history file")

	file, err := os.Open(path)
	if err != nil {
		l.logger.WithError(err).WithField("file_path", path).Error("Failed to open history file")
		switch {
		case os.IsNotExist(err):
			return nil, nil, apperrors.FileError(apperrors.CodeFileNotFound, path, err)
		case os.IsPermission(err):
			return nil, nil, apperrors.FileError(apperrors.CodeFilePermission, path, err)
		default:
			return nil, nil, apperrors.Wrap(err, apperrors.CategoryFile, apperrors.CodeUnexpectedError,
				fmt.Sprintf("cannot open %s", path))
		}
	}
	defer file.Close()

	switch format {
	case FormatJSON:
		return l.LoadJSON(ctx, file, path)
	case FormatTSV:
		return l.loadDelimited(ctx, file, path, '\t', FormatTSV)
	default:
		return l.LoadCSV(ctx, file, path)
	}
}

// LoadCSV reads delimited history rows. Headers are matched against the
// configured column aliases, case-insensitively.
func (l *Loader) LoadCSV(ctx context.Context, r io.Reader, source string) ([]models.HistoryEntry, *Stats, error) {
	return l.loadDelimited(ctx, r, source, l.config.Delimiter, FormatCSV)
}

func (l *Loader) loadDelimited(ctx context.Context, r io.Reader, source string, delimiter rune, format Format) ([]models.HistoryEntry, *Stats, error) {
	start := time.Now()
	l.logger.WithFields(logger.Fields{
		"source": source,
		"format": format,
	}).Info("Starting history load")

	reader := csv.NewReader(r)
	reader.Comma = delimiter
	reader.Comment = l.config.Comment
	reader.TrimLeadingSpace = l.config.TrimLeadingSpace
	reader.FieldsPerRecord = -1

	stats := &Stats{Source: source, Format: format}
	columns, line, err := l.readHeader(reader, source)
	if err != nil {
		return nil, stats, err
	}

	collector := apperrors.NewRecordErrorCollector(l.config.MaxErrors, l.config.ContinueOnError)
	var entries []models.HistoryEntry

	for {
		if err := ctx.Err(); err != nil {
			return nil, stats, apperrors.InternalError(apperrors.CodeUnexpectedError, "history_load", err)
		}

		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			recErr := apperrors.NewRecordError(apperrors.CodeInvalidFormat,
				&apperrors.RecordContext{File: source, Line: line}, "malformed row", err)
			stats.Errors = append(stats.Errors, recErr)
			if !collector.Add(recErr) {
				return nil, stats, recErr
			}
			continue
		}
		if l.config.SkipEmptyRows && isEmptyRecord(record) {
			continue
		}

		stats.RecordsRead++
		entry, recErr := l.entryFromRecord(record, columns, source, line)
		if recErr != nil {
			l.logger.WithFields(logger.Fields{
				"line_number": line,
				"code":        recErr.Code,
			}).Debug("Rejected history row")
			stats.Errors = append(stats.Errors, recErr)
			if !collector.Add(recErr) {
				return nil, stats, recErr
			}
			continue
		}
		entries = append(entries, entry)
	}

	sortEntries(entries)
	stats.RecordsLoaded = len(entries)

	l.logger.WithFields(logger.Fields{
		"source":   source,
		"records":  stats.RecordsRead,
		"loaded":   stats.RecordsLoaded,
		"errors":   len(stats.Errors),
		"duration": time.Since(start),
	}).Info("History load completed")

	return entries, stats, nil
}

// readHeader resolves canonical columns to indices and returns the number of
// lines consumed
func (l *Loader) readHeader(reader *csv.Reader, source string) (map[string]int, int, error) {
	if !l.config.HasHeader {
		columns := make(map[string]int)
		for i, name := range positionalColumns {
			columns[name] = i
		}
		return columns, 0, nil
	}

	headers, err := reader.Read()
	if err == io.EOF {
		return nil, 0, apperrors.ParseError(apperrors.CodeInvalidFormat, source, "empty", nil).
			WithSuggestion("ensure the file contains a header row and data rows")
	}
	if err != nil {
		return nil, 0, apperrors.ParseError(apperrors.CodeInvalidFormat, source, "headers", err)
	}

	index := make(map[string]int, len(headers))
	for i, h := range headers {
		key := strings.ToLower(strings.TrimSpace(h))
		if _, dup := index[key]; !dup {
			index[key] = i
		}
	}

	columns := make(map[string]int)
	for column := range l.config.ColumnAliases {
		for _, alias := range l.config.aliasesFor(column) {
			if i, ok := index[strings.ToLower(alias)]; ok {
				columns[column] = i
				break
			}
		}
	}
	for _, column := range positionalColumns {
		if _, ok := columns[column]; ok {
			continue
		}
		if i, ok := index[column]; ok {
			columns[column] = i
		}
	}

	var missing []string
	for _, column := range RequiredColumns() {
		if _, ok := columns[column]; !ok {
			missing = append(missing, column)
		}
	}
	if len(missing) > 0 {
		l.logger.WithFields(logger.Fields{
			"missing_columns":   missing,
			"available_headers": headers,
		}).Error("Required columns are missing")
		return nil, 1, apperrors.ParseError(apperrors.CodeMissingColumn, source, strings.Join(missing, ", "), nil).
			WithContext("available_headers", headers)
	}

	return columns, 1, nil
}

// positionalColumns is the column order assumed for headerless files
var positionalColumns = []string{
	ColumnID, ColumnTimestamp, ColumnAmount, ColumnCounterparty,
	ColumnInstitution, ColumnDirection, ColumnConfidence,
}

func (l *Loader) entryFromRecord(record []string, columns map[string]int, source string, line int) (models.HistoryEntry, *apperrors.RecordError) {
	field := func(column string) string {
		i, ok := columns[column]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}
	rowErr := func(code apperrors.ErrorCode, column, value, expected string, cause error) *apperrors.RecordError {
		return apperrors.NewRecordError(code, &apperrors.RecordContext{
			File: source, Line: line, Column: column, Value: value, Expected: expected,
		}, fmt.Sprintf("invalid %s", column), cause)
	}

	entry := models.HistoryEntry{
		ID:           field(ColumnID),
		Counterparty: extract.CleanField(field(ColumnCounterparty)),
		Institution:  models.ParseInstitution(field(ColumnInstitution)),
		Direction:    models.DirectionExpense,
		Confidence:   1,
	}
	if entry.ID == "" {
		entry.ID = fmt.Sprintf("%s:%d", filepath.Base(source), line)
	}

	raw := field(ColumnAmount)
	amount, err := extract.ParseAmount(raw)
	if err != nil {
		return entry, rowErr(apperrors.CodeInvalidAmount, ColumnAmount, raw, "a number such as 1,250.00", err)
	}
	entry.Amount = amount

	raw = field(ColumnTimestamp)
	ts, ok := l.resolveTime(raw)
	if !ok {
		return entry, rowErr(apperrors.CodeInvalidDate, ColumnTimestamp, raw, "a date such as 2024-06-01 or 01/06/2024", nil)
	}
	entry.Timestamp = ts

	if raw = field(ColumnDirection); raw != "" {
		dir, err := models.ParseDirection(raw)
		if err != nil {
			return entry, rowErr(apperrors.CodeOutOfRange, ColumnDirection, raw, "expense, income or transfer", err)
		}
		entry.Direction = dir
	}

	if raw = field(ColumnConfidence); raw != "" {
		c, err := strconv.ParseFloat(raw, 64)
		if err != nil || c < 0 || c > 1 {
			return entry, rowErr(apperrors.CodeOutOfRange, ColumnConfidence, raw, "a value between 0 and 1", err)
		}
		entry.Confidence = c
	}

	if entry.GroupingKey() == string(models.InstitutionUnknown) && entry.Counterparty == "" {
		return entry, rowErr(apperrors.CodeMissingField, ColumnCounterparty, "", "a counterparty or institution", nil)
	}

	return entry, nil
}

func (l *Loader) resolveTime(s string) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	t, ok := extract.ResolveDate(s, l.now())
	if !ok || !extract.IsValidDate(t) {
		return time.Time{}, false
	}
	return t, true
}

// LoadJSON reads a JSON array of history entries
func (l *Loader) LoadJSON(ctx context.Context, r io.Reader, source string) ([]models.HistoryEntry, *Stats, error) {
	stats := &Stats{Source: source, Format: FormatJSON}

	var raw []models.HistoryEntry
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, stats, apperrors.ParseError(apperrors.CodeInvalidFormat, source, "json", err).
			WithSuggestion("the file must contain a JSON array of history entries")
	}
	if err := ctx.Err(); err != nil {
		return nil, stats, apperrors.InternalError(apperrors.CodeUnexpectedError, "history_load", err)
	}

	collector := apperrors.NewRecordErrorCollector(l.config.MaxErrors, l.config.ContinueOnError)
	entries := make([]models.HistoryEntry, 0, len(raw))
	for i, entry := range raw {
		stats.RecordsRead++
		ctxInfo := &apperrors.RecordContext{File: source, Line: i + 1}

		var recErr *apperrors.RecordError
		switch {
		case !extract.IsValidDate(entry.Timestamp):
			ctxInfo.Column = ColumnTimestamp
			recErr = apperrors.NewRecordError(apperrors.CodeInvalidDate, ctxInfo, "invalid timestamp", nil)
		case entry.Direction != "" && !entry.Direction.IsValid():
			ctxInfo.Column, ctxInfo.Value = ColumnDirection, string(entry.Direction)
			recErr = apperrors.NewRecordError(apperrors.CodeOutOfRange, ctxInfo, "invalid direction", nil)
		case strings.TrimSpace(entry.GroupingKey()) == "":
			ctxInfo.Column = ColumnCounterparty
			recErr = apperrors.NewRecordError(apperrors.CodeMissingField, ctxInfo, "missing counterparty", nil)
		}
		if recErr != nil {
			stats.Errors = append(stats.Errors, recErr)
			if !collector.Add(recErr) {
				return nil, stats, recErr
			}
			continue
		}

		if entry.ID == "" {
			entry.ID = fmt.Sprintf("%s:%d", filepath.Base(source), i+1)
		}
		if entry.Direction == "" {
			entry.Direction = models.DirectionExpense
		}
		entry.Institution = models.ParseInstitution(string(entry.Institution))
		entry.Counterparty = extract.CleanField(entry.Counterparty)
		entries = append(entries, entry)
	}

	sortEntries(entries)
	stats.RecordsLoaded = len(entries)

	l.logger.WithFields(logger.Fields{
		"source": source,
		"loaded": stats.RecordsLoaded,
		"errors": len(stats.Errors),
	}).Info("History load completed")

	return entries, stats, nil
}

func sortEntries(entries []models.HistoryEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].Timestamp.Equal(entries[j].Timestamp) {
			return entries[i].Timestamp.Before(entries[j].Timestamp)
		}
		return entries[i].ID < entries[j].ID
	})
}

func isEmptyRecord(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}
