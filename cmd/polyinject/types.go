package main

import (
	"github.com/jward/polyinject"
	"github.com/jward/polyinject/internal/store"
)

// CLIResult is the top-level JSON envelope for all commands.
type CLIResult struct {
	Command    string `json:"command"`
	Results    any    `json:"results"`
	TotalCount *int   `json:"total_count,omitempty"`
	Error      string `json:"error,omitempty"`
}

// CLIFileResult describes one transformed file.
type CLIFileResult struct {
	File       string         `json:"file"`
	Modified   bool           `json:"modified"`
	Script     bool           `json:"script"`
	Usages     []CLIUsage     `json:"usages"`
	Injections []CLIInjection `json:"injections"`
	// Code is set when nothing was written, so the output can be piped.
	Code string `json:"code,omitempty"`
}

// CLIUsage is a JSON-friendly usage report.
type CLIUsage struct {
	File      string  `json:"file,omitempty"`
	Kind      string  `json:"kind"`
	Usage     string  `json:"usage"`
	Name      string  `json:"name,omitempty"`
	Source    string  `json:"source,omitempty"`
	Object    *string `json:"object,omitempty"`
	Key       string  `json:"key,omitempty"`
	Placement string  `json:"placement,omitempty"`
	Line      int     `json:"line"`
	Col       int     `json:"col"`
	HandledBy string  `json:"handled_by,omitempty"`
}

// CLIInjection is a JSON-friendly injected statement.
type CLIInjection struct {
	Source     string `json:"source"`
	ExportName string `json:"export_name,omitempty"`
	Binding    string `json:"binding,omitempty"`
	Provider   string `json:"provider"`
	Position   string `json:"position"`
}

// CLIModuleCount is the number of files importing one injected module.
type CLIModuleCount struct {
	Source string `json:"source"`
	Files  int    `json:"files"`
}

// CLIUsageCount aggregates identical usages across the index.
type CLIUsageCount struct {
	Kind  string `json:"kind"`
	Usage string `json:"usage"`
	Count int    `json:"count"`
}

// CLIScanSummary is the result of scan and of each watch cycle.
type CLIScanSummary struct {
	Root       string           `json:"root"`
	Files      int              `json:"files"`
	Modified   int              `json:"modified"`
	Unchanged  int              `json:"unchanged"`
	Usages     int              `json:"usages"`
	Injections int              `json:"injections"`
	Modules    []CLIModuleCount `json:"modules,omitempty"`
	Database   string           `json:"database,omitempty"`
}

func resultToCLI(r *polyinject.Result, withCode bool) CLIFileResult {
	out := CLIFileResult{
		File:       r.Path,
		Modified:   r.Modified,
		Script:     r.Script,
		Usages:     make([]CLIUsage, 0, len(r.Usages)),
		Injections: make([]CLIInjection, 0, len(r.Injections)),
	}
	for _, u := range r.Usages {
		out.Usages = append(out.Usages, CLIUsage{
			Kind:      string(u.Kind),
			Usage:     u.Report.String(),
			Name:      u.Name,
			Source:    u.Source,
			Object:    u.Object,
			Key:       u.Key,
			Placement: string(u.Placement),
			Line:      u.Line,
			Col:       u.Col,
			HandledBy: u.HandledBy,
		})
	}
	for _, inj := range r.Injections {
		out.Injections = append(out.Injections, CLIInjection{
			Source:     inj.Source,
			ExportName: inj.ExportName,
			Binding:    inj.Binding,
			Provider:   inj.Provider,
			Position:   inj.Position.String(),
		})
	}
	if withCode {
		out.Code = string(r.Code)
	}
	return out
}

func storedUsageToCLI(u *store.Usage, file string) CLIUsage {
	r := polyinject.Report{
		Kind:      polyinject.ReportKind(u.Kind),
		Source:    u.Source,
		Name:      u.Name,
		Object:    u.Object,
		Key:       u.Key,
		Placement: polyinject.Placement(u.Placement),
	}
	return CLIUsage{
		File:      file,
		Kind:      u.Kind,
		Usage:     r.String(),
		Name:      u.Name,
		Source:    u.Source,
		Object:    u.Object,
		Key:       u.Key,
		Placement: u.Placement,
		Line:      u.Line,
		Col:       u.Col,
		HandledBy: u.HandledBy,
	}
}

func storedInjectionToCLI(inj *store.Injection) CLIInjection {
	return CLIInjection{
		Source:     inj.Source,
		ExportName: inj.ExportName,
		Binding:    inj.Binding,
		Provider:   inj.Provider,
		Position:   inj.Position,
	}
}

func usageCountToCLI(c store.UsageCount) CLIUsageCount {
	r := polyinject.Report{
		Kind:   polyinject.ReportKind(c.Kind),
		Name:   c.Name,
		Source: c.Source,
		Key:    c.Key,
	}
	if c.Object != "" {
		obj := c.Object
		r.Object = &obj
	}
	return CLIUsageCount{Kind: c.Kind, Usage: r.String(), Count: c.Count}
}

func summarize(root string, run *polyinject.Run) CLIScanSummary {
	s := CLIScanSummary{
		Root:      root,
		Files:     len(run.Results) + len(run.Unchanged),
		Unchanged: len(run.Unchanged),
	}
	for _, r := range run.Results {
		if r.Modified {
			s.Modified++
		}
		s.Usages += len(r.Usages)
		s.Injections += len(r.Injections)
	}
	return s
}
