package domain

// Response is the terminal record for one processed query. It is created
// once by the pipeline and never mutated after return.
type Response struct {
	Query             string         `json:"query"`
	Answer            string         `json:"answer"`
	Confidence        float64        `json:"confidence"`
	Sources           []string       `json:"sources"`
	GenerationMode    Mode           `json:"generation_mode"`
	ProcessingTime    float64        `json:"processing_time"`
	ReasoningSteps    []string       `json:"reasoning_steps"`
	ConflictsDetected []string       `json:"conflicts_detected"`
	Metadata          map[string]any `json:"metadata"`
}

// PipelineStats is a snapshot of the orchestrator's running counters.
type PipelineStats struct {
	TotalQueries      int64          `json:"total_queries"`
	SuccessfulQueries int64          `json:"successful_queries"`
	AverageTime       float64        `json:"average_time"`
	ModeUsage         map[Mode]int64 `json:"mode_usage"`
}

// CatalogStats summarizes the metadata catalog.
type CatalogStats struct {
	CodeCount  int `json:"total_course_codes"`
	TitleCount int `json:"total_unique_titles"`
	FileCount  int `json:"total_files"`
}
