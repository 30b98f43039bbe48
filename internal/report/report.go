package report

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"html"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const unavailableMessage = "⚠️ Данные отсутствуют или CSV некорректен."

const disclaimer = "\n⚠️ Это демонстрационный отчёт. Ответ составлен ботом-ассистентом."

// Built-in sample rows written when the dataset file is absent, so the
// report is never empty on a fresh install.
var sampleRows = [][]string{
	{"title", "city", "salary", "skills", "date"},
	{"Python developer", "Москва", "180000", "Django;SQL;Docker", "2025-09-10"},
	{"Data analyst", "Санкт-Петербург", "160000", "SQL;Tableau;Python", "2025-09-12"},
	{"SMM manager", "Москва", "120000", "Content;UGC;Short video", "2025-09-14"},
}

// Engine builds a short analytical report over a CSV dataset.
type Engine struct {
	csvPath string
	logger  *zap.Logger
	printer *message.Printer
}

func New(csvPath string, logger *zap.Logger) *Engine {
	return &Engine{
		csvPath: csvPath,
		logger:  logger,
		printer: message.NewPrinter(language.English),
	}
}

// EnsureDemoCSV writes the built-in sample dataset if no file exists yet.
func (e *Engine) EnsureDemoCSV() error {
	if _, err := os.Stat(e.csvPath); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat dataset: %w", err)
	}

	f, err := os.Create(e.csvPath)
	if err != nil {
		return fmt.Errorf("create dataset: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.WriteAll(sampleRows); err != nil {
		return fmt.Errorf("write dataset: %w", err)
	}
	e.logger.Info("Created demo dataset", zap.String("path", e.csvPath))
	return nil
}

// dataset is the loaded CSV: a header index plus data rows.
type dataset struct {
	columns map[string]int
	rows    [][]string
}

func (d *dataset) column(name string) (int, bool) {
	idx, ok := d.columns[name]
	return idx, ok
}

// load reads the dataset, retrying with CP1251 when the file is not valid
// UTF-8 (legacy exports).
func (e *Engine) load() (*dataset, error) {
	if err := e.EnsureDemoCSV(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(e.csvPath)
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	if !utf8.Valid(data) {
		decoded, err := charmap.Windows1251.NewDecoder().Bytes(data)
		if err != nil {
			return nil, fmt.Errorf("decode cp1251: %w", err)
		}
		e.logger.Info("Loaded dataset as cp1251", zap.String("path", e.csvPath))
		data = decoded
	}

	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return &dataset{columns: map[string]int{}}, nil
	}

	columns := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		columns[strings.TrimSpace(name)] = i
	}
	return &dataset{columns: columns, rows: records[1:]}, nil
}

// Generate produces the formatted report. Load or parse failures yield a
// fixed unavailable message instead of an error; missing columns just skip
// their section.
func (e *Engine) Generate() string {
	ds, err := e.load()
	if err != nil {
		e.logger.Error("Failed to load dataset", zap.Error(err))
		return unavailableMessage
	}
	if len(ds.rows) == 0 {
		return unavailableMessage
	}

	parts := []string{"<b>📊 Аналитический отчёт (demo.csv)</b>"}

	if avg, ok := meanSalary(ds); ok {
		parts = append(parts, e.printer.Sprintf("💰 Средняя зарплата: <b>%d ₽</b>", int64(math.Round(avg))))
	}
	if cities := topValues(ds, "city", 5); len(cities) > 0 {
		parts = append(parts, "🏙️ Топ городов: "+joinEscaped(cities))
	}
	if titles := topValues(ds, "title", 5); len(titles) > 0 {
		parts = append(parts, "💼 Топ вакансий: "+joinEscaped(titles))
	}
	if skills := topSkills(ds, 10); len(skills) > 0 {
		parts = append(parts, "🔥 Частые навыки: "+joinEscaped(skills))
	}

	parts = append(parts, disclaimer)
	return strings.Join(parts, "\n")
}

func meanSalary(ds *dataset) (float64, bool) {
	idx, ok := ds.column("salary")
	if !ok {
		return 0, false
	}
	var sum float64
	var count int
	for _, row := range ds.rows {
		if idx >= len(row) {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(row[idx]), 64)
		if err != nil || math.IsNaN(v) {
			continue
		}
		sum += v
		count++
	}
	if count == 0 {
		return 0, false
	}
	return sum / float64(count), true
}

// topValues returns up to n most frequent non-empty values of a column.
// Ties break by first appearance so the output is deterministic.
func topValues(ds *dataset, column string, n int) []string {
	idx, ok := ds.column(column)
	if !ok {
		return nil
	}
	var values []string
	for _, row := range ds.rows {
		if idx < len(row) && row[idx] != "" {
			values = append(values, row[idx])
		}
	}
	return mostFrequent(values, n)
}

// topSkills splits the semicolon-delimited skills column across all rows and
// counts token frequency.
func topSkills(ds *dataset, n int) []string {
	idx, ok := ds.column("skills")
	if !ok {
		return nil
	}
	var tokens []string
	for _, row := range ds.rows {
		if idx >= len(row) || row[idx] == "" {
			continue
		}
		for _, token := range strings.Split(row[idx], ";") {
			if token != "" {
				tokens = append(tokens, token)
			}
		}
	}
	return mostFrequent(tokens, n)
}

func mostFrequent(values []string, n int) []string {
	counts := make(map[string]int)
	firstSeen := make(map[string]int)
	var order []string
	for i, v := range values {
		if counts[v] == 0 {
			firstSeen[v] = i
			order = append(order, v)
		}
		counts[v]++
	}
	sort.SliceStable(order, func(i, j int) bool {
		if counts[order[i]] != counts[order[j]] {
			return counts[order[i]] > counts[order[j]]
		}
		return firstSeen[order[i]] < firstSeen[order[j]]
	})
	if len(order) > n {
		order = order[:n]
	}
	return order
}

func joinEscaped(values []string) string {
	escaped := make([]string, len(values))
	for i, v := range values {
		escaped[i] = html.EscapeString(v)
	}
	return strings.Join(escaped, ", ")
}
