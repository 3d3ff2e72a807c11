package converter

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/client/models"
)

type serverDWR struct {
	ID             *int64          `json:"id"`
	Subproject     Ref             `json:"subproject"`
	SubprojectID   *int64          `json:"subproject_id"`
	Date           string          `json:"date"`
	TicketNumber   string          `json:"ticket_number"`
	Notes          string          `json:"notes"`
	Contact        Ref             `json:"contact"`
	ContactDetails json.RawMessage `json:"contact_details"`
	IsLastDay      bool            `json:"is_last_day"`
	IsLocked       bool            `json:"is_locked"`
	LockDate       *string         `json:"lock_date"`
	IsApproved     bool            `json:"is_approved"`
	ApprovedAt     *string         `json:"approved_at"`
	ApprovedBy     Ref             `json:"approved_by"`
	Status         string          `json:"status"`
}

// DWR converts a server daily work record into a fresh local record in the
// checked-out working set. A new local id is generated.
func DWR(raw json.RawMessage, now time.Time) (*models.DWR, error) {
	var s serverDWR
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("failed to decode daily work record: %w", err)
	}
	subprojectID := firstID(s.Subproject.ID, s.SubprojectID)
	if subprojectID == nil {
		return nil, fmt.Errorf("daily work record %v has no subproject", s.ID)
	}

	contactData := rawOrNil(s.ContactDetails)
	if contactData == nil {
		contactData = s.Contact.Data
	}

	status := models.DWRStatus(s.Status)
	if status == "" {
		status = models.StatusDraft
	}

	synced := now
	return &models.DWR{
		LocalID:        models.NewLocalID(),
		ServerID:       s.ID,
		SubprojectID:   *subprojectID,
		SubprojectData: s.Subproject.Data,
		Date:           s.Date,
		TicketNumber:   s.TicketNumber,
		Notes:          s.Notes,
		ContactID:      s.Contact.ID,
		ContactData:    contactData,
		IsLastDay:      s.IsLastDay,
		IsLocked:       s.IsLocked,
		LockDate:       s.LockDate,
		IsApproved:     s.IsApproved,
		ApprovedAt:     s.ApprovedAt,
		ApprovedBy:     s.ApprovedBy.ID,
		Status:         status,
		IsCheckedOut:   true,
		LastSyncedAt:   &synced,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

type serverWorkAssignment struct {
	ID                *int64          `json:"id"`
	WorkDescription   Ref             `json:"work_description"`
	WorkDescriptionID *int64          `json:"work_description_id"`
	Description       string          `json:"description"`
	FromTime          string          `json:"from_time"`
	FromTimeAlt       string          `json:"fromTime"`
	ToTime            *string         `json:"to_time"`
	ToTimeAlt         *string         `json:"toTime"`
	InputValues       json.RawMessage `json:"input_values"`
	IsLegacy          bool            `json:"is_legacy"`
}

func WorkAssignment(raw json.RawMessage, dwrLocalID string) (*models.WorkAssignment, error) {
	var s serverWorkAssignment
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("failed to decode work assignment: %w", err)
	}
	from := s.FromTime
	if from == "" {
		from = s.FromTimeAlt
	}
	to := s.ToTime
	if to == nil {
		to = s.ToTimeAlt
	}
	inputs := rawOrNil(s.InputValues)
	if inputs == nil {
		inputs = json.RawMessage(`{}`)
	}
	return &models.WorkAssignment{
		LocalID:             models.NewLocalID(),
		ServerID:            s.ID,
		DWRLocalID:          dwrLocalID,
		WorkDescriptionID:   firstID(s.WorkDescriptionID, s.WorkDescription.ID),
		WorkDescriptionData: s.WorkDescription.Data,
		Description:         s.Description,
		FromTime:            from,
		ToTime:              to,
		InputValues:         inputs,
		IsLegacy:            s.IsLegacy,
	}, nil
}

type serverTimeRecord struct {
	ID         *int64 `json:"id"`
	Employee   Ref    `json:"employee"`
	StartTime  *Text  `json:"start_time"`
	StopTime   *Text  `json:"stop_time"`
	RigTime    *Text  `json:"rig_time"`
	TravelTime *Text  `json:"travel_time"`
	Role       Ref    `json:"role"`
}

func TimeRecord(raw json.RawMessage, dwrLocalID string) (*models.TimeRecord, error) {
	var s serverTimeRecord
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("failed to decode time record: %w", err)
	}
	if s.Employee.ID == nil {
		return nil, fmt.Errorf("time record %v has no employee", s.ID)
	}
	return &models.TimeRecord{
		LocalID:      models.NewLocalID(),
		ServerID:     s.ID,
		DWRLocalID:   dwrLocalID,
		EmployeeID:   *s.Employee.ID,
		EmployeeData: s.Employee.Data,
		StartTime:    textPtr(s.StartTime),
		StopTime:     textPtr(s.StopTime),
		RigTime:      textPtr(s.RigTime),
		TravelTime:   textPtr(s.TravelTime),
		RoleID:       s.Role.ID,
		RoleData:     s.Role.Data,
	}, nil
}

type serverChargeLine struct {
	ID                *int64  `json:"id"`
	InventoryItem     Ref     `json:"inventory_item"`
	ServiceItem       Ref     `json:"service_item"`
	MiscellaneousItem Ref     `json:"miscellaneous_item"`
	ItemName          string  `json:"item_name"`
	CustomName        string  `json:"custom_name"`
	QuantityUsed      *Number `json:"quantity_used"`
	PriceAtUse        *Number `json:"price_at_use"`
	IsBillable        *bool   `json:"is_billable"`
	OffTurnkey        bool    `json:"off_turnkey"`
	Total             *Number `json:"total"`
	UnitName          string  `json:"unit_name"`
	UnitAbbreviation  string  `json:"unit_abbreviation"`
}

type serverChargeRecord struct {
	ID                   *int64             `json:"id"`
	InventoryCharges     []serverChargeLine `json:"inventory_charges"`
	ServiceCharges       []serverChargeLine `json:"service_charges"`
	MiscellaneousCharges []serverChargeLine `json:"miscellaneous_charges"`
	TotalAmount          *Number            `json:"total_amount"`
	IsManualTotal        bool               `json:"is_manual_total"`
}

// ChargeRecord converts a server charge record with its nested lines.
func ChargeRecord(raw json.RawMessage, dwrLocalID string) (*models.ChargeRecord, error) {
	var s serverChargeRecord
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("failed to decode charge record: %w", err)
	}
	c := &models.ChargeRecord{
		LocalID:       models.NewLocalID(),
		ServerID:      s.ID,
		DWRLocalID:    dwrLocalID,
		TotalAmount:   numValue(s.TotalAmount),
		IsManualTotal: s.IsManualTotal,
	}
	for _, l := range s.InventoryCharges {
		c.InventoryCharges = append(c.InventoryCharges, chargeLine(l, models.ChargeInventory, c.LocalID))
	}
	for _, l := range s.ServiceCharges {
		c.ServiceCharges = append(c.ServiceCharges, chargeLine(l, models.ChargeService, c.LocalID))
	}
	for _, l := range s.MiscellaneousCharges {
		c.MiscCharges = append(c.MiscCharges, chargeLine(l, models.ChargeMisc, c.LocalID))
	}
	return c, nil
}

func chargeLine(s serverChargeLine, kind models.ChargeKind, recordLocalID string) models.ChargeLine {
	l := models.ChargeLine{
		Kind:                kind,
		LocalID:             models.NewLocalID(),
		ServerID:            s.ID,
		ChargeRecordLocalID: recordLocalID,
		ItemName:            s.ItemName,
		QuantityUsed:        numValue(s.QuantityUsed),
		PriceAtUse:          numValue(s.PriceAtUse),
		IsBillable:          boolOr(s.IsBillable, true),
		OffTurnkey:          s.OffTurnkey,
		Total:               numPtr(s.Total),
		UnitName:            s.UnitName,
		UnitAbbreviation:    s.UnitAbbreviation,
	}
	switch kind {
	case models.ChargeInventory:
		l.ItemID = s.InventoryItem.idValue()
	case models.ChargeService:
		l.ItemID = s.ServiceItem.idValue()
	case models.ChargeMisc:
		l.ItemID = s.MiscellaneousItem.idValue()
		if s.CustomName != "" {
			l.ItemName = s.CustomName
		}
	}
	return l
}

type serverCustomer struct {
	ID   *int64 `json:"id"`
	Name string `json:"name"`
}

type serverProject struct {
	ID           *int64          `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Customer     *serverCustomer `json:"customer"`
	CustomerID   *int64          `json:"customer_id"`
	CustomerName string          `json:"customer_name"`
	Status       string          `json:"status"`
	StartDate    string          `json:"start_date"`
	EndDate      string          `json:"end_date"`
	IsActive     *bool           `json:"is_active"`
}

type serverSubproject struct {
	ID          int64          `json:"id"`
	Project     *serverProject `json:"project"`
	ProjectID   *int64         `json:"project_id"`
	Name        string         `json:"name"`
	JobNumber   string         `json:"job_number"`
	Description string         `json:"description"`
	AssignedRig *struct {
		ID        *int64 `json:"id"`
		Name      string `json:"name"`
		RigNumber Text   `json:"rig_number"`
	} `json:"assigned_rig"`
	AssignedRigID     *int64 `json:"assigned_rig_id"`
	AssignedRigName   string `json:"assigned_rig_name"`
	AssignedRigNumber Text   `json:"assigned_rig_number"`
	Well              *struct {
		ID        *int64          `json:"id"`
		Name      string          `json:"name"`
		APINumber string          `json:"api_number"`
		Customer  *serverCustomer `json:"customer"`
	} `json:"well"`
	WellID   *int64          `json:"well_id"`
	Customer *serverCustomer `json:"customer"`
	Status   string          `json:"status"`
	IsActive *bool           `json:"is_active"`
}

// Subproject converts a server subproject. The nested project, when present,
// is returned as well. rigID fills the assigned rig when the server omits it.
func Subproject(raw json.RawMessage, rigID int64) (*models.Subproject, *models.Project, error) {
	var s serverSubproject
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, nil, fmt.Errorf("failed to decode subproject: %w", err)
	}

	sp := &models.Subproject{
		ServerID:          s.ID,
		ProjectID:         s.ProjectID,
		Name:              s.Name,
		JobNumber:         s.JobNumber,
		Description:       s.Description,
		AssignedRigID:     s.AssignedRigID,
		AssignedRigName:   s.AssignedRigName,
		AssignedRigNumber: string(s.AssignedRigNumber),
		WellID:            s.WellID,
		Status:            s.Status,
		IsActive:          boolOr(s.IsActive, true),
	}
	if sp.Status == "" {
		sp.Status = "active"
	}
	if s.AssignedRig != nil {
		sp.AssignedRigID = firstID(s.AssignedRig.ID, sp.AssignedRigID)
		if s.AssignedRig.Name != "" {
			sp.AssignedRigName = s.AssignedRig.Name
		}
		if s.AssignedRig.RigNumber != "" {
			sp.AssignedRigNumber = string(s.AssignedRig.RigNumber)
		}
	}
	if sp.AssignedRigID == nil && rigID != 0 {
		sp.AssignedRigID = &rigID
	}
	if s.Well != nil {
		sp.WellID = firstID(s.Well.ID, sp.WellID)
		sp.WellName = s.Well.Name
		sp.WellAPINumber = s.Well.APINumber
		if s.Well.Customer != nil {
			sp.CustomerID = s.Well.Customer.ID
			sp.CustomerName = s.Well.Customer.Name
		}
	}
	if sp.CustomerID == nil && s.Customer != nil {
		sp.CustomerID = s.Customer.ID
		sp.CustomerName = s.Customer.Name
	}

	var project *models.Project
	if p := s.Project; p != nil && p.ID != nil {
		sp.ProjectID = p.ID
		project = &models.Project{
			ServerID:     *p.ID,
			Name:         p.Name,
			Description:  p.Description,
			CustomerID:   p.CustomerID,
			CustomerName: p.CustomerName,
			Status:       p.Status,
			StartDate:    p.StartDate,
			EndDate:      p.EndDate,
			IsActive:     boolOr(p.IsActive, true),
		}
		if p.Customer != nil {
			project.CustomerID = firstID(p.Customer.ID, project.CustomerID)
			if p.Customer.Name != "" {
				project.CustomerName = p.Customer.Name
			}
		}
		if project.Status == "" {
			project.Status = "active"
		}
	}
	return sp, project, nil
}
