package models

import "time"

type TicketStatus string

const (
	StatusWaiting   TicketStatus = "WAITING"
	StatusCalled    TicketStatus = "CALLED"
	StatusCompleted TicketStatus = "COMPLETED"
	StatusSkipped   TicketStatus = "SKIPPED"
	StatusCancelled TicketStatus = "CANCELLED"
)

type Tenant struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Slug      string     `json:"slug"`
	Email     string     `json:"email,omitempty"`
	Phone     string     `json:"phone,omitempty"`
	IsActive  bool       `json:"isActive"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
}

type Queue struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Description    string  `json:"description,omitempty"`
	Capacity       int     `json:"capacity"`
	AvgServiceTime int     `json:"avgServiceTime"`
	IsActive       bool    `json:"isActive"`
	TenantID       string  `json:"tenantId"`
	Tenant         *Tenant `json:"tenant,omitempty"`
}

type Ticket struct {
	ID            string       `json:"id"`
	Number        int          `json:"number"`
	ClientName    string       `json:"clientName,omitempty"`
	ClientPhone   string       `json:"clientPhone,omitempty"`
	ClientEmail   string       `json:"clientEmail,omitempty"`
	Priority      int          `json:"priority"`
	Status        TicketStatus `json:"status"`
	EstimatedTime *int         `json:"estimatedTime,omitempty"`
	Position      *int         `json:"position,omitempty"`
	QueueID       string       `json:"queueId"`
	Queue         *Queue       `json:"queue,omitempty"`
	CreatedAt     time.Time    `json:"createdAt"`
	UpdatedAt     time.Time    `json:"updatedAt"`
	CalledAt      *time.Time   `json:"calledAt,omitempty"`
	CompletedAt   *time.Time   `json:"completedAt,omitempty"`
}

/*
|--------------------------------------------------------------------------
| DASHBOARD PAYLOAD
|--------------------------------------------------------------------------
| Shape returned by GET /clients/dashboard. Tickets are nested
| tenant -> queue -> ticket[]; the dashboard engine flattens them.
*/

type DashboardClient struct {
	Identifier         string `json:"identifier"`
	TotalActiveTickets int    `json:"totalActiveTickets"`
}

type DashboardSummary struct {
	TotalWaiting        int     `json:"totalWaiting"`
	TotalCalled         int     `json:"totalCalled"`
	AvgWaitTime         float64 `json:"avgWaitTime"`
	NextCallEstimate    float64 `json:"nextCallEstimate"`
	EstablishmentsCount int     `json:"establishmentsCount"`
}

type QueueTickets struct {
	Queue   Queue    `json:"queue"`
	Tickets []Ticket `json:"tickets"`
}

type TenantTickets struct {
	Tenant Tenant                  `json:"tenant"`
	Queues map[string]QueueTickets `json:"queues"`
}

type RealTimeMetrics struct {
	CurrentServiceSpeed float64 `json:"currentServiceSpeed"`
	TimeSinceLastCall   float64 `json:"timeSinceLastCall"`
	TrendDirection      string  `json:"trendDirection"`
}

type ClientDashboard struct {
	Client          DashboardClient          `json:"client"`
	Summary         DashboardSummary         `json:"summary"`
	Tickets         map[string]TenantTickets `json:"tickets"`
	RealTimeMetrics RealTimeMetrics          `json:"realTimeMetrics"`
}

/*
|--------------------------------------------------------------------------
| OTHER ENDPOINT PAYLOADS
|--------------------------------------------------------------------------
*/

type CreateTicketRequest struct {
	ClientName  string `json:"clientName,omitempty"`
	ClientPhone string `json:"clientPhone,omitempty"`
	ClientEmail string `json:"clientEmail,omitempty"`
	Priority    int    `json:"priority,omitempty"`
}

type UserQueueTicket struct {
	ID          string     `json:"id"`
	Number      int        `json:"number"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
	ValidatedAt *time.Time `json:"validatedAt,omitempty"`
	Token       string     `json:"token"`
}

type UserQueue struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Tenant      Tenant            `json:"tenant"`
	Tickets     []UserQueueTicket `json:"tickets"`
}

type UserQueuesData struct {
	Client struct {
		Identifier string `json:"identifier"`
		Name       string `json:"name,omitempty"`
		Phone      string `json:"phone,omitempty"`
		Email      string `json:"email,omitempty"`
		UserType   string `json:"userType"`
	} `json:"client"`
	Queues []UserQueue `json:"queues"`
}

type ClientTicketsData struct {
	Client  DashboardClient `json:"client"`
	Tickets []Ticket        `json:"tickets"`
}
