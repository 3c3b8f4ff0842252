package api

import (
	"github.com/ruteri/vehicle-registry/interfaces"
)

// RegisterRequest is the body of POST /api/vehicles/{registration}/register.
type RegisterRequest struct {
	Caller interfaces.Address `json:"caller"`
}

// TransferRequest is the body of POST /api/vehicles/{registration}/transfer.
type TransferRequest struct {
	Caller   interfaces.Address `json:"caller"`
	NewOwner interfaces.Address `json:"new_owner"`
}

// ServiceRequest is the body of POST /api/vehicles/{registration}/service.
type ServiceRequest struct {
	Caller         interfaces.Address `json:"caller"`
	ServiceDetails string             `json:"service_details"`
}

// VehicleResponse is the data of GET /api/vehicles/{registration}. Static is
// present only when a vehicle lookup service is configured and knows the
// registration.
type VehicleResponse struct {
	Record *interfaces.VehicleRecord `json:"record"`
	Static *interfaces.VehicleData   `json:"static,omitempty"`
}

// SnapshotResponse is the data of POST /api/vehicles/{registration}/history/snapshots.
type SnapshotResponse struct {
	ContentID    string                  `json:"content_id"`
	Registration interfaces.Registration `json:"registration"`
	Events       int                     `json:"events"`
	Backend      string                  `json:"backend"`
}

// ServiceTypesResponse is the data of GET /api/service-types.
type ServiceTypesResponse struct {
	ServiceTypes []string `json:"service_types"`
}
