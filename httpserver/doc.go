/*
Package httpserver implements the HTTP API of the vehicle registry.

It exposes the registry operations, record reads and reconstructed vehicle
histories over JSON. Every response body is the result envelope
interfaces.Result; failures carry the error kind, message, registration and
operation of the underlying RegistryError.

API Endpoints:

  - POST /api/vehicles/{registration}/register - body {"caller"}
  - POST /api/vehicles/{registration}/transfer - body {"caller", "new_owner"}
  - POST /api/vehicles/{registration}/service - body {"caller", "service_details"}
  - GET /api/vehicles/{registration} - current record, plus static data when a lookup service is configured
  - GET /api/vehicles/{registration}/history - reconstructed history, newest first
  - POST /api/vehicles/{registration}/history/snapshots - archive the current history
  - GET /api/history/snapshots/{id} - fetch an archived history
  - GET /api/info?caller= - program version string
  - GET /api/service-types - catalogue of well-known service descriptions
  - GET /livez, /readyz, /drain, /undrain - health and load balancer control
  - /debug/* - pprof, when enabled

Error kinds map to status codes:

	AlreadyRegistered         409
	NotFound                  404
	NotOwner                  403
	InvalidInput              400
	DecodeFailure             400
	HistorySourceUnavailable  503
	SubmissionFailed          502
	anything else             500

Usage:

	handler := httpserver.NewHandler(httpserver.HandlerConfig{
		Registry: client,
		Records:  ledger,
		History:  historyService,
		Archive:  archive,
	}, logger)

	server, err := httpserver.New(&httpserver.HTTPServerConfig{
		ListenAddr:  ":8080",
		MetricsAddr: ":8090",
		Log:         logger,
	}, handler)
	server.RunInBackground()
	defer server.Shutdown()
*/
package httpserver
