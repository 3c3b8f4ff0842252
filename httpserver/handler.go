package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ruteri/vehicle-registry/api"
	"github.com/ruteri/vehicle-registry/history"
	"github.com/ruteri/vehicle-registry/interfaces"
	"github.com/ruteri/vehicle-registry/metrics"
)

// maxBodySize is the maximum allowed request body size (1MB).
const maxBodySize = 1024 * 1024

// ErrArchiveDisabled is reported by the snapshot endpoints when no archive
// backend is configured.
var ErrArchiveDisabled = errors.New("history snapshot archive is not configured")

// HandlerConfig holds the handler's collaborators. Archive, Lookup and
// Metrics are optional.
type HandlerConfig struct {
	Registry interfaces.VehicleRegistry
	Records  interfaces.RecordReader
	History  interfaces.HistoryProvider
	Archive  *history.Archive
	Lookup   interfaces.VehicleLookup
	Metrics  *metrics.Metrics
}

// Handler processes HTTP requests for the vehicle registry.
type Handler struct {
	registry interfaces.VehicleRegistry
	records  interfaces.RecordReader
	history  interfaces.HistoryProvider
	archive  *history.Archive
	lookup   interfaces.VehicleLookup
	metrics  *metrics.Metrics
	log      *slog.Logger
}

// NewHandler creates a new HTTP request handler.
func NewHandler(cfg HandlerConfig, log *slog.Logger) *Handler {
	return &Handler{
		registry: cfg.Registry,
		records:  cfg.Records,
		history:  cfg.History,
		archive:  cfg.Archive,
		lookup:   cfg.Lookup,
		metrics:  cfg.Metrics,
		log:      log,
	}
}

// StatusFor maps an error kind to the HTTP status reported for it.
func StatusFor(kind interfaces.ErrorKind) int {
	switch kind {
	case interfaces.KindAlreadyRegistered:
		return http.StatusConflict
	case interfaces.KindNotFound:
		return http.StatusNotFound
	case interfaces.KindNotOwner:
		return http.StatusForbidden
	case interfaces.KindInvalidInput, interfaces.KindDecodeFailure:
		return http.StatusBadRequest
	case interfaces.KindHistorySourceUnavailable:
		return http.StatusServiceUnavailable
	case interfaces.KindSubmissionFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func registrationParam(r *http.Request) interfaces.Registration {
	return interfaces.NormalizeRegistration(chi.URLParam(r, "registration"))
}

func parseAddress(op interfaces.OpKind, registration interfaces.Registration, field string, raw interfaces.Address) (interfaces.Address, error) {
	addr, err := interfaces.NewAddress(raw.String())
	if err != nil {
		return "", &interfaces.RegistryError{
			Kind:         interfaces.KindInvalidInput,
			Op:           op,
			Registration: registration,
			Reason:       fmt.Sprintf("%s: %v", field, err),
		}
	}
	return addr, nil
}

// decodeBody reads a JSON request body into v.
func decodeBody(r *http.Request, op interfaces.OpKind, registration interfaces.Registration, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		return interfaces.NewRegistryError(interfaces.KindInvalidInput, op, registration, "", "failed to read request body")
	}
	if len(body) > maxBodySize {
		return interfaces.NewRegistryError(interfaces.KindInvalidInput, op, registration, "", "request body exceeds %d bytes", maxBodySize)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return interfaces.NewRegistryError(interfaces.KindInvalidInput, op, registration, "", "invalid request body: %v", err)
	}
	return nil
}

// HandleRegister registers a vehicle to the caller.
//
// URL format: POST /api/vehicles/{registration}/register
// Request body: {"caller": "<address>"}
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	registration := registrationParam(r)

	var req api.RegisterRequest
	if err := decodeBody(r, interfaces.OpRegister, registration, &req); err != nil {
		h.writeError(w, err)
		return
	}

	caller, err := parseAddress(interfaces.OpRegister, registration, "caller", req.Caller)
	if err != nil {
		h.writeError(w, err)
		return
	}

	receipt, err := h.registry.Register(r.Context(), registration, caller)
	h.writeReceipt(w, interfaces.OpRegister, receipt, err)
}

// HandleTransfer transfers ownership of a vehicle.
//
// URL format: POST /api/vehicles/{registration}/transfer
// Request body: {"caller": "<address>", "new_owner": "<address>"}
func (h *Handler) HandleTransfer(w http.ResponseWriter, r *http.Request) {
	registration := registrationParam(r)

	var req api.TransferRequest
	if err := decodeBody(r, interfaces.OpTransfer, registration, &req); err != nil {
		h.writeError(w, err)
		return
	}

	caller, err := parseAddress(interfaces.OpTransfer, registration, "caller", req.Caller)
	if err != nil {
		h.writeError(w, err)
		return
	}
	newOwner, err := parseAddress(interfaces.OpTransfer, registration, "new_owner", req.NewOwner)
	if err != nil {
		h.writeError(w, err)
		return
	}

	receipt, err := h.registry.Transfer(r.Context(), registration, newOwner, caller)
	h.writeReceipt(w, interfaces.OpTransfer, receipt, err)
}

// HandleAddService appends a service record to a vehicle.
//
// URL format: POST /api/vehicles/{registration}/service
// Request body: {"caller": "<address>", "service_details": "oil-change"}
func (h *Handler) HandleAddService(w http.ResponseWriter, r *http.Request) {
	registration := registrationParam(r)

	var req api.ServiceRequest
	if err := decodeBody(r, interfaces.OpAddService, registration, &req); err != nil {
		h.writeError(w, err)
		return
	}

	caller, err := parseAddress(interfaces.OpAddService, registration, "caller", req.Caller)
	if err != nil {
		h.writeError(w, err)
		return
	}

	receipt, err := h.registry.AddServiceRecord(r.Context(), registration, req.ServiceDetails, caller)
	h.writeReceipt(w, interfaces.OpAddService, receipt, err)
}

// HandleInfo returns the program's version string.
//
// URL format: GET /api/info?caller=<address>
func (h *Handler) HandleInfo(w http.ResponseWriter, r *http.Request) {
	caller := interfaces.Address(strings.TrimSpace(r.URL.Query().Get("caller")))
	receipt, err := h.registry.GetInfo(r.Context(), caller)
	h.writeReceipt(w, interfaces.OpGetInfo, receipt, err)
}

// HandleVehicle returns the current record of a vehicle, with static vehicle
// data attached when a lookup service knows it. Lookup failures never fail
// the request.
//
// URL format: GET /api/vehicles/{registration}
func (h *Handler) HandleVehicle(w http.ResponseWriter, r *http.Request) {
	registration := registrationParam(r)
	if err := registration.Validate(); err != nil {
		h.writeError(w, &interfaces.RegistryError{
			Kind: interfaces.KindInvalidInput, Registration: registration, Reason: err.Error(),
		})
		return
	}

	record, err := h.records.Record(r.Context(), registration)
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := api.VehicleResponse{Record: record}
	if h.lookup != nil {
		static, err := h.lookup.Lookup(r.Context(), registration)
		switch {
		case err == nil:
			resp.Static = static
		case errors.Is(err, interfaces.ErrVehicleNotFound):
		default:
			h.log.Warn("Static vehicle lookup failed",
				slog.String("registration", registration.String()),
				"err", err)
		}
	}

	h.writeResult(w, http.StatusOK, interfaces.OkResult(resp, ""))
}

// HandleHistory returns the reconstructed history of a vehicle.
//
// URL format: GET /api/vehicles/{registration}/history
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	hist, err := h.history.History(r.Context(), registrationParam(r))
	if err != nil {
		h.writeError(w, err)
		return
	}

	message := fmt.Sprintf("%d events for %s", len(hist.Events), hist.Registration)
	if hist.Degraded {
		message = fmt.Sprintf("%s (stale: %s)", message, hist.DegradedReason)
	}
	h.writeResult(w, http.StatusOK, interfaces.OkResult(hist, message))
}

// HandleExportSnapshot reconstructs the history of a vehicle and archives it.
//
// URL format: POST /api/vehicles/{registration}/history/snapshots
func (h *Handler) HandleExportSnapshot(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		h.writeResult(w, http.StatusNotImplemented, interfaces.ErrResult(ErrArchiveDisabled))
		return
	}

	hist, err := h.history.History(r.Context(), registrationParam(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	if hist.Degraded {
		h.writeError(w, &interfaces.RegistryError{
			Kind:         interfaces.KindHistorySourceUnavailable,
			Op:           interfaces.OpHistory,
			Registration: hist.Registration,
			Reason:       "refusing to archive stale history: " + hist.DegradedReason,
		})
		return
	}

	id, err := h.archive.Store(r.Context(), hist)
	if err != nil {
		h.log.Error("Failed to archive history snapshot",
			slog.String("registration", hist.Registration.String()),
			"err", err)
		h.writeError(w, err)
		return
	}

	resp := api.SnapshotResponse{
		ContentID:    id.String(),
		Registration: hist.Registration,
		Events:       len(hist.Events),
		Backend:      h.archive.Backend(),
	}
	h.writeResult(w, http.StatusCreated, interfaces.OkResult(resp, "Archived history snapshot "+id.String()))
}

// HandleSnapshot returns an archived history snapshot.
//
// URL format: GET /api/history/snapshots/{id}
func (h *Handler) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		h.writeResult(w, http.StatusNotImplemented, interfaces.ErrResult(ErrArchiveDisabled))
		return
	}

	id, err := interfaces.NewContentIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, &interfaces.RegistryError{Kind: interfaces.KindInvalidInput, Op: interfaces.OpHistory, Reason: err.Error()})
		return
	}

	hist, err := h.archive.Fetch(r.Context(), id)
	if errors.Is(err, interfaces.ErrContentNotFound) {
		h.writeError(w, &interfaces.RegistryError{
			Kind: interfaces.KindNotFound, Op: interfaces.OpHistory, Reason: fmt.Sprintf("snapshot %s not found", id),
		})
		return
	}
	if err != nil {
		h.log.Error("Failed to fetch history snapshot", slog.String("contentID", id.String()), "err", err)
		h.writeError(w, err)
		return
	}

	h.writeResult(w, http.StatusOK, interfaces.OkResult(hist, ""))
}

// HandleServiceTypes returns the catalogue of well-known service descriptions.
//
// URL format: GET /api/service-types
func (h *Handler) HandleServiceTypes(w http.ResponseWriter, r *http.Request) {
	h.writeResult(w, http.StatusOK, interfaces.OkResult(api.ServiceTypesResponse{ServiceTypes: interfaces.ServiceTypes}, ""))
}

func (h *Handler) writeReceipt(w http.ResponseWriter, op interfaces.OpKind, receipt *interfaces.Receipt, err error) {
	h.metrics.RecordOperation(op, err)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeResult(w, http.StatusOK, interfaces.OkResult(receipt, receipt.Message))
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	kind := interfaces.KindOf(err)
	status := StatusFor(kind)
	if status >= http.StatusInternalServerError {
		h.log.Error("Request failed", slog.String("kind", string(kind)), "err", err)
	} else {
		h.log.Debug("Request rejected", slog.String("kind", string(kind)), "err", err)
	}
	h.writeResult(w, status, interfaces.ErrResult(err))
}

func (h *Handler) writeResult(w http.ResponseWriter, status int, result interfaces.Result) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(result); err != nil {
		h.log.Error("Failed to encode response", "err", err)
	}
}
