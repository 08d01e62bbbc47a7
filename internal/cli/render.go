package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/Veraticus/pricesync/internal/model"
	"github.com/Veraticus/pricesync/internal/report"
)

// TopMatches is the number of example matches shown in a report.
const TopMatches = 10

var codeMethods = []model.Method{
	model.MethodExact,
	model.MethodSuffix,
	model.MethodPrefix,
	model.MethodSimilarity,
}

// RenderSummary writes the coverage report of a reconciliation run.
func RenderSummary(w io.Writer, strategy model.Strategy, s report.Summary) error {
	var b strings.Builder

	fmt.Fprintf(&b, "Source products:  %d\n", s.TotalSource)
	fmt.Fprintf(&b, "Persisted:        %d\n", s.Persisted)

	if strategy == model.StrategyName {
		fmt.Fprintf(&b, "  • by name:      %d\n", s.Count(model.MethodNameSimilarity))
	} else {
		for _, m := range codeMethods {
			fmt.Fprintf(&b, "  • %-14s %d\n", string(m)+":", s.Count(m))
		}
	}

	coverage := fmt.Sprintf("Coverage:         %.1f%%", s.Coverage)
	if s.LowCoverage() {
		b.WriteString(WarningStyle.Render(coverage))
	} else {
		b.WriteString(SuccessStyle.Render(coverage))
	}

	if _, err := fmt.Fprintln(w, RenderBox(ChartIcon+" Mapping Report", b.String())); err != nil {
		return err
	}

	if top := s.Top(TopMatches); len(top) > 0 {
		if _, err := fmt.Fprintln(w, FormatTitle("Best matches")); err != nil {
			return err
		}
		if err := writeMappingTable(w, top); err != nil {
			return err
		}
	}

	var advice string
	switch {
	case s.Empty():
		advice = FormatWarning("No matches found. Check that both catalogs use comparable code schemes.")
	case s.LowCoverage():
		advice = FormatWarning(fmt.Sprintf(
			"Coverage is below %.0f%%. Review the mapping before syncing prices, or try matching by name.",
			report.LowCoverageThreshold))
	default:
		advice = FormatSuccess("Mapping is ready for price sync.")
	}
	_, err := fmt.Fprintln(w, advice)
	return err
}

// RenderMappings writes persisted mappings as a table.
func RenderMappings(w io.Writer, entries []model.MappingEntry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, SubtleStyle.Render("No mappings stored. Run 'pricesync map' first."))
		return err
	}
	if err := writeMappingTable(w, entries); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\n%d mappings\n", len(entries))
	return err
}

func writeMappingTable(w io.Writer, entries []model.MappingEntry) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
		HeaderStyle.Render("SOURCE"),
		HeaderStyle.Render("TARGET"),
		HeaderStyle.Render("SCORE"),
		HeaderStyle.Render("METHOD"),
		HeaderStyle.Render("NAME"))

	for _, e := range entries {
		name := e.SourceName
		if name == "" {
			name = SubtleStyle.Render("-")
		}
		fmt.Fprintf(tw, "%s\t%s\t%.2f\t%s\t%s\n", e.SourceCode, e.TargetCode, e.Score, e.Method, name)
	}

	return tw.Flush()
}

// RenderRuns writes the mapping run history.
func RenderRuns(w io.Writer, runs []model.MappingRun) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, SubtleStyle.Render("No mapping runs recorded."))
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
		HeaderStyle.Render("STARTED"),
		HeaderStyle.Render("ID"),
		HeaderStyle.Render("BY"),
		HeaderStyle.Render("SOURCE"),
		HeaderStyle.Render("TARGET"),
		HeaderStyle.Render("PERSISTED"),
		HeaderStyle.Render("COVERAGE"))

	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%.1f%%\n",
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			r.ID, r.Strategy, r.SourceTotal, r.TargetTotal, r.Persisted, r.Coverage)
	}

	return tw.Flush()
}

// RenderSyncStats writes per-sink price sync counts.
func RenderSyncStats(w io.Writer, sinks map[string]model.SyncStats) error {
	names := make([]string, 0, len(sinks))
	for name := range sinks {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		s := sinks[name]
		line := fmt.Sprintf("%-10s success %d, failed %d", name+":", s.Success, s.Failed)
		if s.Failed > 0 {
			line = WarningStyle.Render(line)
		}
		b.WriteString(line + "\n")
	}

	_, err := fmt.Fprintln(w, RenderBox("Price Sync", strings.TrimRight(b.String(), "\n")))
	return err
}

// CheckResult is the outcome of one connectivity check.
type CheckResult struct {
	Err  error
	Name string
}

// RenderChecks writes connectivity results and reports whether all passed.
func RenderChecks(w io.Writer, results []CheckResult) (bool, error) {
	ok := true
	for _, r := range results {
		line := FormatSuccess(strings.ToUpper(r.Name) + ": OK")
		if r.Err != nil {
			ok = false
			line = FormatError(fmt.Sprintf("%s: FAIL (%v)", strings.ToUpper(r.Name), r.Err))
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return ok, err
		}
	}
	return ok, nil
}
