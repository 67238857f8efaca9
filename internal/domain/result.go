package domain

// ArtifactKind names a downloadable output of a completed job.
type ArtifactKind string

const (
	ArtifactSubtitles ArtifactKind = "srt"
	ArtifactWorkbook  ArtifactKind = "workbook"
	ArtifactJSON      ArtifactKind = "json"
	ArtifactVideo     ArtifactKind = "video"
)

// JobResult is everything a completed job hands back: the transcript, the
// analysis, and the paths of the artifacts that were generated.
type JobResult struct {
	VideoFile     string `json:"video_file"`
	Language      string `json:"language,omitempty"`
	Transcription string `json:"transcription"`
	AnalysisResult
	Files map[ArtifactKind]string `json:"files,omitempty"`
}
