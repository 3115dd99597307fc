package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	modifiedMark = color.New(color.FgGreen).SprintFunc()
	sourceColor  = color.New(color.FgCyan).SprintFunc()
	errorColor   = color.New(color.FgRed).SprintFunc()
)

// outputResult writes a CLIResult to the command's stdout in the selected
// format.
func outputResult(cmd *cobra.Command, result CLIResult) error {
	w := cmd.OutOrStdout()
	if flagFormat == "text" {
		return outputResultText(w, result)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// outputError writes an error in the selected format and returns it so RunE
// can propagate it to Cobra. In JSON mode the error is written to stdout as a
// CLIResult envelope. In text mode it goes to stderr.
func outputError(cmd *cobra.Command, command string, err error) error {
	errorHandled = true
	if flagFormat == "text" {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s %s\n", errorColor("Error:"), err)
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	_ = enc.Encode(CLIResult{Command: command, Error: err.Error()})
	return err
}

// formatFileResultsText prints the transformed code when it was not
// written, and otherwise one line per file with its injected modules.
func formatFileResultsText(w io.Writer, results []CLIFileResult) {
	for _, r := range results {
		if r.Code != "" {
			if len(results) > 1 {
				fmt.Fprintf(w, "// %s\n", r.File)
			}
			fmt.Fprint(w, r.Code)
			continue
		}
		mark := " "
		if r.Modified {
			mark = modifiedMark("M")
		}
		fmt.Fprintf(w, "%s %s\n", mark, r.File)
		for _, inj := range r.Injections {
			fmt.Fprintf(w, "    + %s (%s)\n", sourceColor(inj.Source), inj.Provider)
		}
	}
}

// formatUsagesText formats CLIUsage results as aligned columns.
func formatUsagesText(w io.Writer, usages []CLIUsage) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tLINE\tCOL\tKIND\tUSAGE\tHANDLED BY")
	for _, u := range usages {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\t%s\n",
			u.File, u.Line, u.Col, u.Kind, u.Usage, u.HandledBy)
	}
	tw.Flush()
}

// formatInjectionsText formats CLIInjection results as aligned columns.
func formatInjectionsText(w io.Writer, injs []CLIInjection) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SOURCE\tEXPORT\tBINDING\tPROVIDER\tPOSITION")
	for _, inj := range injs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			inj.Source, inj.ExportName, inj.Binding, inj.Provider, inj.Position)
	}
	tw.Flush()
}

// formatModuleCountsText formats CLIModuleCount results as aligned columns.
func formatModuleCountsText(w io.Writer, counts []CLIModuleCount) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FILES\tMODULE")
	for _, c := range counts {
		fmt.Fprintf(tw, "%d\t%s\n", c.Files, c.Source)
	}
	tw.Flush()
}

// formatUsageCountsText formats CLIUsageCount results as aligned columns.
func formatUsageCountsText(w io.Writer, counts []CLIUsageCount) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "COUNT\tKIND\tUSAGE")
	for _, c := range counts {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", c.Count, c.Kind, c.Usage)
	}
	tw.Flush()
}

// formatSummaryText formats CLIScanSummary as readable text.
func formatSummaryText(w io.Writer, s CLIScanSummary) {
	fmt.Fprintf(w, "Root: %s\n", s.Root)
	fmt.Fprintf(w, "Files: %d (%d modified, %d unchanged)\n", s.Files, s.Modified, s.Unchanged)
	fmt.Fprintf(w, "Usages: %d\n", s.Usages)
	fmt.Fprintf(w, "Injections: %d\n", s.Injections)
	if s.Database != "" {
		fmt.Fprintf(w, "Database: %s\n", s.Database)
	}
	if len(s.Modules) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Modules:")
		for _, m := range s.Modules {
			fmt.Fprintf(w, "  %s: %d file(s)\n", sourceColor(m.Source), m.Files)
		}
	}
}

// outputResultText dispatches to the appropriate text formatter based on the
// result type.
func outputResultText(w io.Writer, result CLIResult) error {
	switch v := result.Results.(type) {
	case []CLIFileResult:
		formatFileResultsText(w, v)
	case []CLIUsage:
		formatUsagesText(w, v)
	case []CLIInjection:
		formatInjectionsText(w, v)
	case []CLIModuleCount:
		formatModuleCountsText(w, v)
	case []CLIUsageCount:
		formatUsageCountsText(w, v)
	case CLIScanSummary:
		formatSummaryText(w, v)
	case nil:
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}
	if result.Error != "" {
		fmt.Fprintf(w, "\n%s %s\n", errorColor("Error:"), result.Error)
	}
	return nil
}

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}
