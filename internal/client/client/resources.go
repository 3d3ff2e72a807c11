package client

import (
	"strconv"

	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/client/models"
)

const (
	PathCheckout     = "/api/workrecords/checkout/"
	PathCheckin      = "/api/workrecords/checkin/"
	PathToken        = "/api/token/"
	PathTokenRefresh = "/api/token/refresh/"
	PathHealth       = "/api/health/"
)

// Collections.
const (
	ResourceDWRs             = "/api/workrecords/dailyworkrecords/"
	ResourceWorkAssignments  = "/api/workrecords/work-assignments/"
	ResourceTimeRecords      = "/api/workrecords/employee-time-records/"
	ResourceChargeRecords    = "/api/workrecords/charge-records/"
	ResourceInventoryCharges = "/api/workrecords/inventory-charges/"
	ResourceServiceCharges   = "/api/workrecords/service-charges/"
	ResourceMiscCharges      = "/api/workrecords/miscellaneous-charges/"

	ResourceSubprojects      = "/api/wells/subprojects/"
	ResourceEmployees        = "/api/employees/employees/"
	ResourceEmployeeTypes    = "/api/employees/employee-types/"
	ResourceWorkDescriptions = "/api/tenants/work-descriptions/"
	ResourceInventoryItems   = "/api/inventory/inventory/"
	ResourceServiceItems     = "/api/inventory/services/"
)

var entityResources = map[models.EntityType]string{
	models.EntityDWR:             ResourceDWRs,
	models.EntityWorkAssignment:  ResourceWorkAssignments,
	models.EntityTimeRecord:      ResourceTimeRecords,
	models.EntityChargeRecord:    ResourceChargeRecords,
	models.EntityInventoryCharge: ResourceInventoryCharges,
	models.EntityServiceCharge:   ResourceServiceCharges,
	models.EntityMiscCharge:      ResourceMiscCharges,
}

// EntityResource returns the collection path for a syncable entity.
func EntityResource(entity models.EntityType) (string, bool) {
	r, ok := entityResources[entity]
	return r, ok
}

func Detail(resource string, id int64) string {
	return resource + strconv.FormatInt(id, 10) + "/"
}
