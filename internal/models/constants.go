package models

// JobStatus константы статусов заданий
const (
	JobStatusOpen      = "open"
	JobStatusAssigned  = "assigned"
	JobStatusCompleted = "completed"
	JobStatusCancelled = "cancelled"
)

// EngagementStatus константы статусов откликов/приглашений
const (
	EngagementStatusRequested = "requested"
	EngagementStatusEngaged   = "engaged"
	EngagementStatusOffered   = "offered"
	EngagementStatusAssigned  = "assigned"
	EngagementStatusCompleted = "completed"
	EngagementStatusCancelled = "cancelled"
)

// EngagementInitiator — кто создал отклик
const (
	EngagementByCustomer   = "customer"
	EngagementByContractor = "contractor"
)

// Роли пользователей
const (
	RoleCustomer   = "customer"
	RoleContractor = "contractor"
	RoleAdmin      = "admin"
)

// ValidJobStatuses список валидных статусов заданий
var ValidJobStatuses = map[string]struct{}{
	JobStatusOpen:      {},
	JobStatusAssigned:  {},
	JobStatusCompleted: {},
	JobStatusCancelled: {},
}

// ValidEngagementStatuses список валидных статусов откликов
var ValidEngagementStatuses = map[string]struct{}{
	EngagementStatusRequested: {},
	EngagementStatusEngaged:   {},
	EngagementStatusOffered:   {},
	EngagementStatusAssigned:  {},
	EngagementStatusCompleted: {},
	EngagementStatusCancelled: {},
}
