// internal/normalize/fragments.go
package normalize

// Fragment is one unit of free text extracted from a record for independent
// anonymization. The ID is derived from the source path, so it is unique
// within a request and stable across repeated extractions of the same record
// shape.
type Fragment struct {
	ID         string `json:"fragmentId"`
	SourcePath string `json:"sourcePath"`
	Content    string `json:"content"`
}

// AnonymizedFragment is the anonymized counterpart of a Fragment, keyed by
// the same ID.
type AnonymizedFragment struct {
	ID      string `json:"fragmentId"`
	Content string `json:"content"`
}
