package model

// LinkCountThreshold is the minimum absolute change in child_count reported
// as a link count change. Smaller fluctuations are treated as noise.
const LinkCountThreshold = 5

// ChangeSet is the structured difference between two snapshots.
// It is computed once per comparison and not modified afterwards.
type ChangeSet struct {
	// PreviousID and CurrentID identify the compared snapshots.
	PreviousID string `json:"previous_id,omitempty"`
	CurrentID  string `json:"current_id,omitempty"`

	// BaseURL is the site of the current snapshot.
	BaseURL string `json:"base_url,omitempty"`

	NewPages         []PageChange      `json:"new_pages"`
	RemovedPages     []PageChange      `json:"removed_pages"`
	BrokenLinks      []BrokenLink      `json:"broken_links"`
	FixedLinks       []FixedLink       `json:"fixed_links"`
	TitleChanges     []TitleChange     `json:"title_changes"`
	DepthChanges     []DepthChange     `json:"depth_changes"`
	LinkCountChanges []LinkCountChange `json:"link_count_changes"`

	Summary ChangeSummary `json:"summary"`
}

// PageChange describes a page that appeared or disappeared.
type PageChange struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	Depth int    `json:"depth"`
}

// BrokenLink is a page that is non-200 now but was not before.
type BrokenLink struct {
	URL        string `json:"url"`
	StatusCode int    `json:"status_code"`
	Title      string `json:"title"`
}

// FixedLink is a page that was non-200 before and is healthy now.
type FixedLink struct {
	URL        string `json:"url"`
	StatusCode int    `json:"status_code"`
}

// TitleChange records a changed <title> on a page present in both snapshots.
type TitleChange struct {
	URL      string `json:"url"`
	OldTitle string `json:"old_title"`
	NewTitle string `json:"new_title"`
}

// DepthChange records a page that moved in the site tree.
// Delta is NewDepth - OldDepth; positive means the page moved deeper.
type DepthChange struct {
	URL      string `json:"url"`
	OldDepth int    `json:"old_depth"`
	NewDepth int    `json:"new_depth"`
	Delta    int    `json:"change"`
}

// LinkCountChange records a significant change of a page's outbound links.
type LinkCountChange struct {
	URL      string `json:"url"`
	OldCount int    `json:"old_count"`
	NewCount int    `json:"new_count"`
	Delta    int    `json:"change"`
}

// ChangeSummary holds the aggregate figures of a comparison.
type ChangeSummary struct {
	PreviousTotal    int     `json:"previous_total_pages"`
	CurrentTotal     int     `json:"current_total_pages"`
	PagesAdded       int     `json:"pages_added"`
	PagesRemoved     int     `json:"pages_removed"`
	NewBrokenLinks   int     `json:"new_broken_links"`
	FixedLinks       int     `json:"fixed_links"`
	TitleChanges     int     `json:"title_changes"`
	DepthChanges     int     `json:"depth_changes"`
	LinkCountChanges int     `json:"link_count_changes"`
	NetChange        int     `json:"net_change"`
	PercentChange    float64 `json:"percent_change"`
}

// NewChangeSet returns a ChangeSet with every category initialized empty,
// so serialized output always carries arrays rather than nulls.
func NewChangeSet() *ChangeSet {
	return &ChangeSet{
		NewPages:         make([]PageChange, 0),
		RemovedPages:     make([]PageChange, 0),
		BrokenLinks:      make([]BrokenLink, 0),
		FixedLinks:       make([]FixedLink, 0),
		TitleChanges:     make([]TitleChange, 0),
		DepthChanges:     make([]DepthChange, 0),
		LinkCountChanges: make([]LinkCountChange, 0),
	}
}

// IsEmpty reports whether the comparison found no change at all.
func (c *ChangeSet) IsEmpty() bool {
	return len(c.NewPages) == 0 &&
		len(c.RemovedPages) == 0 &&
		len(c.BrokenLinks) == 0 &&
		len(c.FixedLinks) == 0 &&
		len(c.TitleChanges) == 0 &&
		len(c.DepthChanges) == 0 &&
		len(c.LinkCountChanges) == 0
}

// Assessment is the overall verdict of a change report.
type Assessment string

const (
	// AssessmentCritical means more than 10 pages broke or disappeared.
	AssessmentCritical Assessment = "CRITICAL"
	// AssessmentWarning means more than 5 pages broke or disappeared.
	AssessmentWarning Assessment = "WARNING"
	// AssessmentImproved means pages were added or fixed without major losses.
	AssessmentImproved Assessment = "IMPROVED"
	// AssessmentStable means nothing significant changed.
	AssessmentStable Assessment = "STABLE"
)

// Assess classifies the change set for reporting.
func (c *ChangeSet) Assess() Assessment {
	critical := len(c.BrokenLinks) + len(c.RemovedPages)
	switch {
	case critical > 10:
		return AssessmentCritical
	case critical > 5:
		return AssessmentWarning
	case len(c.NewPages) > 0 || len(c.FixedLinks) > 0:
		return AssessmentImproved
	default:
		return AssessmentStable
	}
}
