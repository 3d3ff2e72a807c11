package converter

import (
	"encoding/json"

	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/client/models"
)

// Payload field names that carry a parent's server id. They are filled in
// by parent resolution when the parent was created in the same pass.
const (
	FieldDWRID          = "dwr_id"
	FieldChargeRecordID = "charge_record_id"
)

// ParentField returns the payload field carrying the parent's server id for
// entity, or "" for root entities.
func ParentField(entity models.EntityType) string {
	switch entity {
	case models.EntityWorkAssignment, models.EntityTimeRecord, models.EntityChargeRecord:
		return FieldDWRID
	case models.EntityInventoryCharge, models.EntityServiceCharge, models.EntityMiscCharge:
		return FieldChargeRecordID
	}
	return ""
}

// ParentEntity returns the entity type of entity's parent, or "" for roots.
func ParentEntity(entity models.EntityType) models.EntityType {
	switch ParentField(entity) {
	case FieldDWRID:
		return models.EntityDWR
	case FieldChargeRecordID:
		return models.EntityChargeRecord
	}
	return ""
}

func DWRPayload(d *models.DWR) map[string]any {
	return map[string]any{
		"subproject_id": d.SubprojectID,
		"date":          d.Date,
		"ticket_number": d.TicketNumber,
		"notes":         d.Notes,
		"contact_id":    ptr(d.ContactID),
		"is_last_day":   d.IsLastDay,
		"status":        string(d.Status),
	}
}

func WorkAssignmentPayload(w *models.WorkAssignment, dwrServerID *int64) map[string]any {
	return map[string]any{
		FieldDWRID:            ptr(dwrServerID),
		"work_description_id": ptr(w.WorkDescriptionID),
		"description":         w.Description,
		"from_time":           w.FromTime,
		"to_time":             ptr(w.ToTime),
		"input_values":        rawValue(w.InputValues),
		"is_legacy":           w.IsLegacy,
	}
}

func TimeRecordPayload(tr *models.TimeRecord, dwrServerID *int64) map[string]any {
	return map[string]any{
		FieldDWRID:    ptr(dwrServerID),
		"employee_id": tr.EmployeeID,
		"start_time":  ptr(tr.StartTime),
		"stop_time":   ptr(tr.StopTime),
		"rig_time":    ptr(tr.RigTime),
		"travel_time": ptr(tr.TravelTime),
		"role_id":     ptr(tr.RoleID),
	}
}

func ChargeRecordPayload(c *models.ChargeRecord, dwrServerID *int64) map[string]any {
	return map[string]any{
		FieldDWRID:        ptr(dwrServerID),
		"total_amount":    c.TotalAmount,
		"is_manual_total": c.IsManualTotal,
	}
}

func ChargeLinePayload(l *models.ChargeLine, chargeRecordServerID *int64) map[string]any {
	p := map[string]any{
		FieldChargeRecordID: ptr(chargeRecordServerID),
		"quantity_used":     l.QuantityUsed,
		"price_at_use":      l.PriceAtUse,
		"is_billable":       l.IsBillable,
		"off_turnkey":       l.OffTurnkey,
	}
	p[l.Kind.ItemField()+"_id"] = l.ItemID
	if l.Kind == models.ChargeMisc {
		p["custom_name"] = l.ItemName
	}
	return p
}

// Encode marshals a payload for storage on a sync operation.
func Encode(payload map[string]any) (json.RawMessage, error) {
	return json.Marshal(payload)
}

func ptr[T any](v *T) any {
	if v == nil {
		return nil
	}
	return *v
}

func rawValue(raw json.RawMessage) any {
	if rawOrNil(raw) == nil {
		return map[string]any{}
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return map[string]any{}
	}
	return v
}
