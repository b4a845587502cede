package journey

import "time"

// Journey is one tracked browsing session. ID is assigned by the store.
type Journey struct {
	ID         int64    `json:"id,omitempty"`
	Title      string   `json:"title"`
	Created    int64    `json:"created"` // unix milliseconds
	Updated    int64    `json:"updated"` // unix milliseconds
	Tags       []string `json:"tags"`
	Shared     bool     `json:"shared"`
	RootNodeID string   `json:"rootNodeId,omitempty"`
}

// Node is a single page visit inside a journey. ParentID is empty for a root.
type Node struct {
	ID         string   `json:"id"`
	JourneyID  int64    `json:"journeyId"`
	TabID      int      `json:"tabId"`
	URL        string   `json:"url"`
	Title      string   `json:"title"`
	ParentID   string   `json:"parentId,omitempty"`
	Timestamp  int64    `json:"timestamp"` // unix milliseconds
	Duration   int64    `json:"duration"`  // accumulated focus time, milliseconds
	Note       string   `json:"note"`
	Screenshot string   `json:"screenshot,omitempty"`
	Metadata   Metadata `json:"metadata"`
}

// Metadata holds annotations and scraped page details for a node.
type Metadata struct {
	Keywords      []string `json:"keywords,omitempty"`
	AhaMoment     bool     `json:"ahaMoment,omitempty"`
	Description   string   `json:"description,omitempty"`
	Author        string   `json:"author,omitempty"`
	OGTitle       string   `json:"ogTitle,omitempty"`
	OGDescription string   `json:"ogDescription,omitempty"`
	PublishedTime string   `json:"publishedTime,omitempty"`
	MainContent   string   `json:"mainContent,omitempty"`
}

// DurationSeconds returns the accumulated focus time in seconds.
func (n Node) DurationSeconds() float64 {
	return float64(n.Duration) / 1000
}

// Millis converts t to unix milliseconds, the timestamp unit used on the wire.
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}
