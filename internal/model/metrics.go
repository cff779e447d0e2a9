package model

// SystemMetrics are the aggregate counts recorded after each import
type SystemMetrics struct {
	TotalProposals         int
	OpenProposals          int
	TotalChangesets        int
	TotalEvents            int
	TotalDocuments         int
	TotalImages            int
	ActiveSubscriptions    int
	BusiestRegion          string
	BusiestRegionProposals int
}
