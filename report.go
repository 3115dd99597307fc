package polyinject

import "fmt"

// ReportKind tags a usage report.
type ReportKind string

const (
	// KindImport is a side-effect import or top-level require of a module.
	KindImport ReportKind = "import"
	// KindGlobal is a reference to an identifier with no local binding.
	KindGlobal ReportKind = "global"
	// KindProperty is a member read off a possibly resolved object.
	KindProperty ReportKind = "property"
	// KindIn is an `key in object` membership test.
	KindIn ReportKind = "in"
)

// Report is one normalized usage. Which fields are set depends on Kind:
// Source for KindImport, Name for KindGlobal, and Object, Key and Placement
// for KindProperty and KindIn. Object is nil when the receiver could not be
// resolved; Key is always set for property and membership reports.
type Report struct {
	Kind      ReportKind
	Source    string
	Name      string
	Object    *string
	Key       string
	Placement Placement
}

// ObjectName returns the resolved object, or "" when unresolved.
func (r Report) ObjectName() string {
	if r.Object == nil {
		return ""
	}
	return *r.Object
}

func (r Report) String() string {
	switch r.Kind {
	case KindImport:
		return fmt.Sprintf("import %q", r.Source)
	case KindGlobal:
		return "global " + r.Name
	case KindProperty, KindIn:
		obj := "?"
		if r.Object != nil {
			obj = *r.Object
		}
		if r.Placement == PlacementPrototype {
			obj += ".prototype"
		}
		if r.Kind == KindIn {
			return fmt.Sprintf("%q in %s", r.Key, obj)
		}
		return obj + "." + r.Key
	}
	return string(r.Kind)
}

func importReport(source string) Report {
	return Report{Kind: KindImport, Source: source}
}

func globalReport(name string) Report {
	return Report{Kind: KindGlobal, Name: name}
}

func memberReport(kind ReportKind, id string, placement Placement, key string) Report {
	r := Report{Kind: kind, Key: key, Placement: placement}
	if id != "" {
		r.Object = &id
	}
	return r
}
