package domain

// SiteInfo is the per-site leaf of the grouped projection.
type SiteInfo struct {
	Site        string `json:"site"`
	ProductType string `json:"productType"`
	Status      string `json:"status"`
	SyncStatus  string `json:"syncStatus,omitempty"`
}

// ValueGroup collects every site that produced the same canonical value for
// one property.
type ValueGroup struct {
	Value string     `json:"value"`
	Sites []SiteInfo `json:"sites"`
}

// PropertyGroup is the top level of the read-only projection: one property,
// its distinct values, and the sites behind each value. Projections are
// recomputed from stored results on every read and never persisted.
type PropertyGroup struct {
	Property string       `json:"property"`
	Values   []ValueGroup `json:"values"`
}

// SyncGroup is the ephemeral payload submitted to the remote system: all
// sites that share one canonical value for one attribute. It exists only
// for the duration of a sync call.
type SyncGroup struct {
	PropertyName  string            `json:"propertyName"`
	Value         string            `json:"value"`
	Sites         []string          `json:"sites"`
	Type          string            `json:"type,omitempty"`
	Applicability map[string]string `json:"applicability,omitempty"`
}

// SyncOutcome records the fate of one submitted group.
type SyncOutcome struct {
	PropertyName string `json:"propertyName"`
	Value        string `json:"value"`
	Success      bool   `json:"success"`
	Error        string `json:"error,omitempty"`
}

// SyncReport is the aggregate of a full sync pass.
type SyncReport struct {
	Total    int           `json:"total"`
	Success  int           `json:"success"`
	Failed   int           `json:"failed"`
	Outcomes []SyncOutcome `json:"outcomes"`
}
