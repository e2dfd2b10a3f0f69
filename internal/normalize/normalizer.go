// internal/normalize/normalizer.go
package normalize

import (
	"fmt"
	"strings"

	"yma-anonymizer/internal/ehr"
)

// Normalizer converts visit records into text fragments and back. Which
// fields carry free text is decided by a configured allow-list of field
// paths, never by sniffing value types: a missed field is a privacy leak,
// an over-eager one corrupts structured clinical codes.
type Normalizer struct {
	textFields  []string
	placeholder string
}

func New(textFields []string, placeholder string) *Normalizer {
	return &Normalizer{
		textFields:  textFields,
		placeholder: placeholder,
	}
}

// Extract walks the records in order and pulls every allow-listed field that
// holds a non-empty string. Fragment order is deterministic for a given
// record shape: records in sequence, fields in allow-list order.
func (n *Normalizer) Extract(records []ehr.VisitRecord) []Fragment {
	var fragments []Fragment
	for i, record := range records {
		for _, field := range n.textFields {
			value, ok := lookupPath(record, field)
			if !ok {
				continue
			}
			text, ok := value.(string)
			if !ok || strings.TrimSpace(text) == "" {
				continue
			}
			sourcePath := fmt.Sprintf("data[%d].%s", i, field)
			fragments = append(fragments, Fragment{
				ID:         sourcePath,
				SourcePath: sourcePath,
				Content:    text,
			})
		}
	}
	return fragments
}

// Reassemble rebuilds the records with anonymized content substituted for
// every extracted field. A field whose anonymized counterpart is missing is
// replaced with the redaction placeholder: leaking the original text is the
// worse failure mode. Fields outside the allow-list pass through unmodified.
func (n *Normalizer) Reassemble(records []ehr.VisitRecord, anonymized map[string]AnonymizedFragment) []ehr.VisitRecord {
	out := make([]ehr.VisitRecord, len(records))
	for i, record := range records {
		rebuilt := copyRecord(record)
		for _, field := range n.textFields {
			value, ok := lookupPath(rebuilt, field)
			if !ok {
				continue
			}
			text, ok := value.(string)
			if !ok || strings.TrimSpace(text) == "" {
				continue
			}

			id := fmt.Sprintf("data[%d].%s", i, field)
			if frag, ok := anonymized[id]; ok && frag.Content != "" {
				setPath(rebuilt, field, frag.Content)
			} else {
				setPath(rebuilt, field, n.placeholder)
			}
		}
		out[i] = rebuilt
	}
	return out
}

// lookupPath resolves a dotted field path inside a record.
func lookupPath(record map[string]interface{}, path string) (interface{}, bool) {
	segments := strings.Split(path, ".")
	var current interface{} = map[string]interface{}(record)
	for _, segment := range segments {
		node, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		current, ok = node[segment]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// setPath writes a value at a dotted field path. Intermediate maps must
// already exist; Reassemble only writes paths that lookupPath resolved.
func setPath(record map[string]interface{}, path string, value interface{}) {
	segments := strings.Split(path, ".")
	node := map[string]interface{}(record)
	for _, segment := range segments[:len(segments)-1] {
		next, ok := node[segment].(map[string]interface{})
		if !ok {
			return
		}
		node = next
	}
	node[segments[len(segments)-1]] = value
}

// copyRecord deep-copies nested maps so reassembly never mutates the
// caller's records.
func copyRecord(record map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(record))
	for k, v := range record {
		if nested, ok := v.(map[string]interface{}); ok {
			out[k] = copyRecord(nested)
			continue
		}
		out[k] = v
	}
	return out
}
