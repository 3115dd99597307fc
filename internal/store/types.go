package store

import "time"

// File is one processed source file. Hash is the content hash of the file as
// it exists on disk after processing, so an unchanged file is skipped next
// time whether or not it was rewritten in place.
type File struct {
	ID            int64
	Path          string
	Hash          string
	Method        string
	LastProcessed time.Time
}

// Usage is one detected usage report. Object is nil when the receiver was
// not resolved. HandledBy names the provider that took ownership, if any.
type Usage struct {
	ID        int64
	FileID    int64
	Kind      string
	Name      string
	Source    string
	Object    *string
	Key       string
	Placement string
	Line      int
	Col       int
	HandledBy string
}

// Injection is one statement a provider injected.
type Injection struct {
	ID         int64
	FileID     int64
	Source     string
	ExportName string
	Binding    string
	Provider   string
	Position   string
}

// ModuleCount is the number of files a module was injected into.
type ModuleCount struct {
	Source string
	Files  int
}

// UsageCount aggregates usages with the same shape across all files.
type UsageCount struct {
	Kind   string
	Name   string
	Source string
	Object string
	Key    string
	Count  int
}
