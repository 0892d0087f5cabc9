package model

// TimeRecord one day of one person in a time-and-attendance report
type TimeRecord struct {
	PersonName     string `validate:"required" field:"personName"`
	JobTitle       string `field:"jobTitle"`
	CostCenter     string `field:"costCenter"`
	Date           string `validate:"required,datetime=2006-01-02" field:"date"`
	PlannedShift   string `field:"plannedShift"`
	ActualShift    string `field:"actualShift"`
	CheckIn        string `validate:"omitempty,datetime=15:04:05" field:"checkIn"`
	CheckOut       string `validate:"omitempty,datetime=15:04:05" field:"checkOut"`
	WorkedMinutes  *int   `validate:"omitempty,min=0" field:"workedMinutes"`
	WorkedDuration string `field:"workedDuration"`
}

// Record converts to the canonical record form
func (t TimeRecord) Record() Record {
	r := Record{
		"personName":   t.PersonName,
		"jobTitle":     t.JobTitle,
		"costCenter":   t.CostCenter,
		"date":         t.Date,
		"plannedShift": t.PlannedShift,
		"actualShift":  t.ActualShift,
		"checkIn":      t.CheckIn,
		"checkOut":     t.CheckOut,
	}
	if t.WorkedMinutes != nil {
		r["workedMinutes"] = *t.WorkedMinutes
		r["workedDuration"] = t.WorkedDuration
	}
	return r
}

// StopEvent vehicle stop / alert event
type StopEvent struct {
	PlateNumber      string `validate:"required,plate" field:"plateNumber"`
	ArrivalTime      string `validate:"required,datetime=2006-01-02 15:04:05" field:"arrivalTime"`
	StandingDuration string `field:"standingDuration"` // H:MM
	Position         string `field:"position"`
	ImportantPoint   string `field:"importantPoint"` // verbatim marker text
	Status           string `field:"status"`
}

// Record converts to the canonical record form
func (s StopEvent) Record() Record {
	r := Record{
		"plateNumber":      s.PlateNumber,
		"arrivalTime":      s.ArrivalTime,
		"standingDuration": s.StandingDuration,
		"position":         s.Position,
		"importantPoint":   s.ImportantPoint,
	}
	if s.Status != "" {
		r["status"] = s.Status
	}
	return r
}

// VehicleMovement one iFleet movement row
type VehicleMovement struct {
	PlateNumber      string   `validate:"required,plate" field:"plateNumber"`
	Timestamp        string   `validate:"required,datetime=2006-01-02 15:04:05" field:"timestamp"`
	TimeSpentMinutes *int     `validate:"omitempty,min=0" field:"timeSpentMinutes"`
	TimeSpent        string   `field:"timeSpent"`
	DistanceKm       *float64 `validate:"omitempty,min=0" field:"distanceKm"`
	Location         string   `field:"location"`
	DriverName       string   `field:"driverName"`
	Event            string   `field:"event"`
}

// Record converts to the canonical record form
func (v VehicleMovement) Record() Record {
	r := Record{
		"plateNumber": v.PlateNumber,
		"timestamp":   v.Timestamp,
	}
	if v.TimeSpentMinutes != nil {
		r["timeSpentMinutes"] = *v.TimeSpentMinutes
		r["timeSpent"] = v.TimeSpent
	}
	if v.DistanceKm != nil {
		r["distanceKm"] = *v.DistanceKm
	}
	if v.Location != "" {
		r["location"] = v.Location
	}
	if v.DriverName != "" {
		r["driverName"] = v.DriverName
	}
	if v.Event != "" {
		r["event"] = v.Event
	}
	return r
}
