// Package checklist is the document-completeness gate for submission.
//
// healthCertificate is uploadable but never required; the two sets are named
// here, in one place, so the asymmetry is explicit.
package checklist

import (
	"admission/internal/registration/models"
)

// Required is the minimum document set that authorizes Draft → Submitted.
var Required = []models.DocumentType{
	models.DocBirthCertificate,
	models.DocFamilyCard,
	models.DocPreviousDiploma,
	models.DocPhoto,
}

// Uploadable is every accepted document type, required or not.
var Uploadable = []models.DocumentType{
	models.DocBirthCertificate,
	models.DocFamilyCard,
	models.DocPreviousDiploma,
	models.DocPhoto,
	models.DocHealthCertificate,
}

// Missing returns the required document types absent from docs, in the
// declaration order of Required. An empty result means the checklist is
// complete. Pure function, no side effects.
func Missing(docs map[models.DocumentType]*models.Document) []models.DocumentType {
	var missing []models.DocumentType
	for _, required := range Required {
		if docs[required] == nil {
			missing = append(missing, required)
		}
	}
	return missing
}

// IsComplete reports whether every required document is present.
func IsComplete(docs map[models.DocumentType]*models.Document) bool {
	return len(Missing(docs)) == 0
}

// Keys converts document types to their string form for error payloads.
func Keys(types []models.DocumentType) []string {
	keys := make([]string, len(types))
	for i, t := range types {
		keys[i] = string(t)
	}
	return keys
}
