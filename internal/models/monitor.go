package models

// MonitoredProcess is a process polled for new results. The poller advances
// LastFromCursor and LastRunTime each cycle.
type MonitoredProcess struct {
	ID string `gorm:"primaryKey;size:64" json:"id"`
	// Authorized is true when the process may be run by this relay.
	Authorized     bool    `gorm:"column:authorized;default:false" json:"authorized"`
	LastFromCursor *string `gorm:"column:lastFromCursor;type:text" json:"lastFromCursor"`
	ProcessData    JSON    `gorm:"column:processData;type:text" json:"processData"`
	CreatedAt      Millis  `gorm:"column:createdAt;not null;autoCreateTime:false" json:"createdAt"`
	LastRunTime    *Millis `gorm:"column:lastRunTime" json:"lastRunTime"`
}

// Validate checks the persisted shape of a monitored process.
func (p *MonitoredProcess) Validate() error {
	if p.ID == "" {
		return NewValidationError("monitoredProcess", "id", "must be a non-empty string")
	}
	if p.CreatedAt < 0 {
		return NewValidationError("monitoredProcess", "createdAt", "must be a non-negative integer")
	}
	if p.LastRunTime != nil && *p.LastRunTime < 0 {
		return NewValidationError("monitoredProcess", "lastRunTime", "must be a non-negative integer")
	}
	return nil
}
