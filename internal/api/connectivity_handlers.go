package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (s *Server) registerConnectivityRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getConnectivity",
		Method:      http.MethodGet,
		Path:        "/api/v1/connectivity",
		Summary:     "Connectivity state",
		Tags:        []string{"Connectivity"},
	}, s.handleGetConnectivity)

	huma.Register(s.api, huma.Operation{
		OperationID: "setConnectivity",
		Method:      http.MethodPut,
		Path:        "/api/v1/connectivity",
		Summary:     "Report connectivity",
		Description: "Lets the UI report browser online/offline events. Going online starts a sync cycle when watching is enabled.",
		Tags:        []string{"Connectivity"},
		Middlewares: huma.Middlewares{s.rateLimited(s.triggerLimiter)},
	}, s.handleSetConnectivity)
}

// ConnectivityBody is the connectivity state.
type ConnectivityBody struct {
	Online bool `json:"online" doc:"Whether the remote is reachable"`
}

// ConnectivityResponse reports the state after a change.
type ConnectivityResponse struct {
	Online  bool `json:"online" doc:"Whether the remote is reachable"`
	Changed bool `json:"changed" doc:"Whether this request caused a transition"`
}

// ConnectivityOutput wraps the connectivity state for Huma.
type ConnectivityOutput struct {
	Body ConnectivityResponse
}

// SetConnectivityInput contains the reported state.
type SetConnectivityInput struct {
	Body ConnectivityBody
}

func (s *Server) handleGetConnectivity(_ context.Context, _ *struct{}) (*ConnectivityOutput, error) {
	if s.connectivity == nil {
		return &ConnectivityOutput{Body: ConnectivityResponse{}}, nil
	}
	return &ConnectivityOutput{Body: ConnectivityResponse{Online: s.connectivity.Online()}}, nil
}

func (s *Server) handleSetConnectivity(_ context.Context, input *SetConnectivityInput) (*ConnectivityOutput, error) {
	if s.connectivity == nil {
		return nil, errNoRemote
	}
	changed := s.connectivity.Set(input.Body.Online)
	if changed {
		s.logger.Info("connectivity reported by client", "online", input.Body.Online)
	}
	return &ConnectivityOutput{
		Body: ConnectivityResponse{Online: s.connectivity.Online(), Changed: changed},
	}, nil
}
