package models

// ChargeKind selects one of the three charge-line tables.
type ChargeKind string

const (
	ChargeInventory ChargeKind = "inventory"
	ChargeService   ChargeKind = "service"
	ChargeMisc      ChargeKind = "miscellaneous"
)

var ChargeKinds = []ChargeKind{ChargeInventory, ChargeService, ChargeMisc}

// Entity returns the sync entity type for lines of this kind.
func (k ChargeKind) Entity() EntityType {
	switch k {
	case ChargeService:
		return EntityServiceCharge
	case ChargeMisc:
		return EntityMiscCharge
	default:
		return EntityInventoryCharge
	}
}

// ItemField is the server field carrying the referenced item id.
func (k ChargeKind) ItemField() string {
	switch k {
	case ChargeService:
		return "service_item"
	case ChargeMisc:
		return "miscellaneous_item"
	default:
		return "inventory_item"
	}
}

// ChargeKindOf maps a charge-line entity type back to its kind.
func ChargeKindOf(e EntityType) (ChargeKind, bool) {
	for _, k := range ChargeKinds {
		if k.Entity() == e {
			return k, true
		}
	}
	return "", false
}

// ChargeRecord is the single charge record owned by a DWR.
type ChargeRecord struct {
	LocalID       string
	ServerID      *int64
	DWRLocalID    string
	TotalAmount   float64
	IsManualTotal bool
	Mutation

	InventoryCharges []ChargeLine
	ServiceCharges   []ChargeLine
	MiscCharges      []ChargeLine
}

// Lines returns the charge lines of the given kind.
func (c *ChargeRecord) Lines(kind ChargeKind) []ChargeLine {
	switch kind {
	case ChargeService:
		return c.ServiceCharges
	case ChargeMisc:
		return c.MiscCharges
	default:
		return c.InventoryCharges
	}
}

// ChargeLine is an inventory, service or miscellaneous charge. For
// miscellaneous lines ItemName holds the custom name.
type ChargeLine struct {
	Kind                ChargeKind
	LocalID             string
	ServerID            *int64
	ChargeRecordLocalID string
	ItemID              int64
	ItemName            string
	QuantityUsed        float64
	PriceAtUse          float64
	IsBillable          bool
	OffTurnkey          bool
	Total               *float64
	UnitName            string
	UnitAbbreviation    string
	Mutation
}
