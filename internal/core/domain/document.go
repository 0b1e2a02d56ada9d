package domain

import "strings"

// Document is one immutable unit of retrieved course-catalog content:
// a section of a course description plus the metadata it was indexed under.
type Document struct {
	Text     string          `json:"text"`
	Metadata SectionMetadata `json:"metadata"`
}

// SectionMetadata identifies where a section came from. Lecturers is kept
// as a list; corpora that store it as a single string are normalized at
// the vector-store boundary.
type SectionMetadata struct {
	CourseCode   string   `json:"course_code"`
	CourseTitle  string   `json:"course_title"`
	SectionTitle string   `json:"section_title"`
	Lecturers    []string `json:"lecturers,omitempty"`
	FileName     string   `json:"file_name,omitempty"`
}

// LecturersNormalized joins the lecturers field into one lowercase string
// for substring matching against extracted names.
func (m SectionMetadata) LecturersNormalized() string {
	if len(m.Lecturers) == 0 {
		return ""
	}
	return strings.ToLower(strings.Join(m.Lecturers, " "))
}

// LecturerMatches reports whether target (already lowercased) appears in
// the document's lecturer field.
func (m SectionMetadata) LecturerMatches(targetLower string) bool {
	if targetLower == "" {
		return false
	}
	return strings.Contains(m.LecturersNormalized(), targetLower)
}

// SourceKey renders the "CODE:Section" identifier used in response source
// lists.
func (m SectionMetadata) SourceKey() string {
	if m.CourseCode == "" {
		return m.SectionTitle
	}
	return m.CourseCode + ":" + m.SectionTitle
}

// SearchFilter is a flat field=value equality filter for the vector index.
// Multiple fields combine with logical AND; empty values must not be added.
type SearchFilter map[string]string
