// Package httpapi exposes the stats aggregation over HTTP.
package httpapi

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type statsRequest struct {
	Usernames      []string `json:"usernames"`
	StartDate      string   `json:"startDate"`
	IncludeSummary bool     `json:"includeSummary"`
}
