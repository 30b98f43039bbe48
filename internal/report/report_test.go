package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "demo.csv"), zap.NewNop())
}

func writeDataset(t *testing.T, e *Engine, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(e.csvPath, []byte(content), 0o644))
}

func TestGenerateSynthesizesDemoDataset(t *testing.T) {
	e := newTestEngine(t)

	// No file yet: Generate must create the sample dataset first.
	out := e.Generate()

	require.Contains(t, out, "Аналитический отчёт")
	require.Contains(t, out, "153,333")
	require.Contains(t, out, "🏙️ Топ городов: Москва, Санкт-Петербург")
	require.Contains(t, out, "💼 Топ вакансий: Python developer, Data analyst, SMM manager")
	require.Contains(t, out, "демонстрационный отчёт")

	_, err := os.Stat(e.csvPath)
	require.NoError(t, err)
}

func TestGenerateSkillFrequency(t *testing.T) {
	e := newTestEngine(t)

	out := e.Generate()

	// SQL appears in two rows of the sample data, so it leads the skills
	// section; the rest follow in first-appearance order.
	idx := strings.Index(out, "🔥 Частые навыки: ")
	require.GreaterOrEqual(t, idx, 0)
	line := out[idx:]
	if nl := strings.IndexByte(line, '\n'); nl >= 0 {
		line = line[:nl]
	}
	require.Equal(t, "🔥 Частые навыки: SQL, Django, Docker, Tableau, Python, Content, UGC, Short video", line)
}

func TestGenerateEmptyDataset(t *testing.T) {
	e := newTestEngine(t)
	writeDataset(t, e, "title,city,salary,skills,date\n")

	require.Equal(t, unavailableMessage, e.Generate())
}

func TestGenerateMalformedCSV(t *testing.T) {
	e := newTestEngine(t)
	writeDataset(t, e, "title,city\nonly-one-field\n\"")

	require.Equal(t, unavailableMessage, e.Generate())
}

func TestGenerateCP1251Fallback(t *testing.T) {
	e := newTestEngine(t)

	utf8Data := "title,city,salary,skills,date\n" +
		"Аналитик,Москва,100000,SQL,2025-01-01\n"
	encoded, err := charmap.Windows1251.NewEncoder().Bytes([]byte(utf8Data))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(e.csvPath, encoded, 0o644))

	out := e.Generate()
	require.Contains(t, out, "Москва")
	require.Contains(t, out, "100,000")
}

func TestGenerateEscapesValues(t *testing.T) {
	e := newTestEngine(t)
	writeDataset(t, e, "title,city,salary,skills,date\n"+
		"<b>Dev</b>,R&D town,1000,Go;<i>SQL</i>,2025-01-01\n")

	out := e.Generate()
	require.Contains(t, out, "&lt;b&gt;Dev&lt;/b&gt;")
	require.Contains(t, out, "R&amp;D town")
	require.Contains(t, out, "&lt;i&gt;SQL&lt;/i&gt;")
	require.NotContains(t, out, "<b>Dev</b>")
}

func TestGenerateSkipsMissingSections(t *testing.T) {
	e := newTestEngine(t)
	writeDataset(t, e, "title,date\nDev,2025-01-01\n")

	out := e.Generate()
	require.NotContains(t, out, "Средняя зарплата")
	require.NotContains(t, out, "Топ городов")
	require.NotContains(t, out, "Частые навыки")
	require.Contains(t, out, "💼 Топ вакансий: Dev")
}

func TestGenerateSkipsUnparsableSalaries(t *testing.T) {
	e := newTestEngine(t)
	writeDataset(t, e, "title,city,salary,skills,date\n"+
		"Dev,Москва,not-a-number,SQL,2025-01-01\n")

	out := e.Generate()
	require.NotContains(t, out, "Средняя зарплата")
	require.Contains(t, out, "Москва")
}

func TestMostFrequentTieBreaksByFirstAppearance(t *testing.T) {
	got := mostFrequent([]string{"b", "a", "b", "a", "c"}, 2)
	require.Equal(t, []string{"b", "a"}, got)
}

func TestEnsureDemoCSVKeepsExistingFile(t *testing.T) {
	e := newTestEngine(t)
	writeDataset(t, e, "title,city,salary,skills,date\nDev,Казань,1,Go,2025-01-01\n")

	require.NoError(t, e.EnsureDemoCSV())

	out := e.Generate()
	require.Contains(t, out, "Казань")
	require.NotContains(t, out, "Санкт-Петербург")
}
