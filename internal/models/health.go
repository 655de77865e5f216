// internal/models/health.go
package models

// HealthStatus is the book service state as seen by the workspace.
type HealthStatus int

const (
	Unreachable HealthStatus = iota
	Unhealthy
	Healthy
)

func (s HealthStatus) String() string {
	switch s {
	case Healthy:
		return "healthy"
	case Unhealthy:
		return "unhealthy"
	default:
		return "unreachable"
	}
}

func (s HealthStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ChapterRef locates a chapter of a book and the working copy it runs in.
type ChapterRef struct {
	BookPath    string `json:"bookPath"`
	WorkPath    string `json:"workPath"`
	ChapterPath string `json:"chapterPath"`
}
