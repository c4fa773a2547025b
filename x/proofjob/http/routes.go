package http

// Route patterns for the prover HTTP surface.
const (
	routeProve       = "/prove"
	routeProveStatus = "/prove/{jobID}"
	routeHealth      = "/health"
)

// Route names for mux URL building.
const (
	routeNameProve       = "proofjob_submit"
	routeNameProveStatus = "proofjob_status"
	routeNameHealth      = "proofjob_health"
)
