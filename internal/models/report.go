package models

// DailyCount is the number of complaints created on one UTC calendar date
type DailyCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// DepartmentCount is the number of complaints routed to a department.
// Complaints without a department are reported under DepartmentID nil.
type DepartmentCount struct {
	DepartmentID *int   `json:"department_id"`
	Name         string `json:"name"`
	Count        int    `json:"count"`
}

// StatusCounts maps every status to the number of complaints in it
type StatusCounts map[Status]int

// Total sums all statuses
func (s StatusCounts) Total() int {
	total := 0
	for _, n := range s {
		total += n
	}
	return total
}

// PriorityCounts maps every priority to the number of complaints with it
type PriorityCounts map[Priority]int

// Dashboard is the admin landing summary
type Dashboard struct {
	Complaints       StatusCounts       `json:"complaints"`
	TotalComplaints  int                `json:"total_complaints"`
	UsersByRole      map[Role]int       `json:"users_by_role"`
	RecentComplaints []ComplaintSummary `json:"recent_complaints"`
}

// Analytics feeds the admin charts
type Analytics struct {
	ComplaintsByDay []DailyCount      `json:"complaints_by_day"`
	DepartmentStats []DepartmentCount `json:"department_stats"`
	PriorityStats   PriorityCounts    `json:"priority_stats"`
	StatusStats     StatusCounts      `json:"status_stats"`
}

// DailySummary covers the complaints created on one UTC date
type DailySummary struct {
	Date       string             `json:"date"`
	Total      int                `json:"total"`
	Pending    int                `json:"pending"`
	Assigned   int                `json:"assigned"`
	Resolved   int                `json:"resolved"`
	Complaints []ComplaintSummary `json:"complaints"`
}
