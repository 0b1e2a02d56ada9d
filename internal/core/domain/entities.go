package domain

// ExtractedEntities accumulates structured entities across extraction
// stages. Later stages only fill slots that are still empty; a value set
// by an earlier, higher-confidence stage is never overwritten.
type ExtractedEntities struct {
	CourseCode      string   `json:"course_code,omitempty"`
	CourseTitle     string   `json:"course_title,omitempty"`
	Lecturers       []string `json:"lecturers,omitempty"`
	ComparisonCodes []string `json:"comparison_codes,omitempty"`
}

// SetCourse fills the course code and title slots if the code slot is
// still empty. Returns true when the value was accepted.
func (e *ExtractedEntities) SetCourse(code, title string) bool {
	if e.CourseCode != "" || code == "" {
		return false
	}
	e.CourseCode = code
	e.CourseTitle = title
	return true
}

// SetLecturers fills the lecturer slot if still empty.
func (e *ExtractedEntities) SetLecturers(lecturers []string) bool {
	if len(e.Lecturers) > 0 || len(lecturers) == 0 {
		return false
	}
	e.Lecturers = lecturers
	return true
}

// SetComparisonCodes fills the comparison slot if still empty.
func (e *ExtractedEntities) SetComparisonCodes(codes []string) bool {
	if len(e.ComparisonCodes) > 0 || len(codes) == 0 {
		return false
	}
	e.ComparisonCodes = codes
	return true
}

// IsZero reports whether no stage contributed anything.
func (e ExtractedEntities) IsZero() bool {
	return e.CourseCode == "" && e.CourseTitle == "" &&
		len(e.Lecturers) == 0 && len(e.ComparisonCodes) == 0
}

// PartialEntities is what the fallback extraction LLM may propose. Every
// field is unverified until checked against the catalog.
type PartialEntities struct {
	CourseCode  string   `json:"course_code"`
	CourseTitle string   `json:"course_title"`
	Lecturers   []string `json:"lecturers"`
}
