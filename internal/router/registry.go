package router

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/pterm/pterm"

	"github.com/caravan-llm/caravan/internal/logger"
)

type RouteInfo struct {
	Handler     http.HandlerFunc
	Description string
	Method      string
	Order       int
	IsRelay     bool
}

type RouteRegistry struct {
	routes   map[string]RouteInfo
	logger   *logger.StyledLogger
	orderSeq int
}

func NewRouteRegistry(logger *logger.StyledLogger) *RouteRegistry {
	return &RouteRegistry{
		routes:   make(map[string]RouteInfo),
		logger:   logger,
		orderSeq: 0,
	}
}

func (r *RouteRegistry) Register(route string, handler http.HandlerFunc, description string) {
	r.RegisterWithMethod(route, handler, description, http.MethodGet)
}

func (r *RouteRegistry) RegisterWithMethod(route string, handler http.HandlerFunc, description, method string) {
	r.registerWithMethod(route, handler, description, method, false)
}

// RegisterRelayRoute marks a route as carrying chat traffic so WireUpWithMiddleware
// can apply the body size cap and the stricter rate limit bucket to it.
func (r *RouteRegistry) RegisterRelayRoute(route string, handler http.HandlerFunc, description, method string) {
	r.registerWithMethod(route, handler, description, method, true)
}

func (r *RouteRegistry) registerWithMethod(route string, handler http.HandlerFunc, description, method string, isRelay bool) {
	r.routes[route] = RouteInfo{
		Handler:     handler,
		Description: description,
		Method:      method,
		Order:       r.orderSeq,
		IsRelay:     isRelay,
	}
	r.orderSeq++
}

func (r *RouteRegistry) WireUp(mux *http.ServeMux) {
	for route, info := range r.routes {
		mux.HandleFunc(route, info.Handler)
	}
	r.logRoutesTable()
}

// WireUpWithMiddleware wraps relay routes with relayChain and every other
// route with opsChain. A nil chain leaves the handler bare.
func (r *RouteRegistry) WireUpWithMiddleware(mux *http.ServeMux, relayChain, opsChain func(http.Handler) http.Handler) {
	for route, info := range r.routes {
		var handler http.Handler = info.Handler

		if info.IsRelay {
			if relayChain != nil {
				handler = relayChain(handler)
			}
		} else if opsChain != nil {
			handler = opsChain(handler)
		}
		mux.Handle(route, handler)
	}
	r.logRoutesTable()
}

func (r *RouteRegistry) logRoutesTable() {
	if len(r.routes) == 0 {
		return
	}

	type routeEntry struct {
		path   string
		method string
		desc   string
		order  int
	}

	var entries []routeEntry
	for route, info := range r.routes {
		entries = append(entries, routeEntry{
			path:   route,
			method: info.Method,
			desc:   info.Description,
			order:  info.Order,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].order < entries[j].order
	})

	tableData := [][]string{
		{"ROUTE", "METHOD", "DESCRIPTION"},
	}

	for _, entry := range entries {
		tableData = append(tableData, []string{
			entry.path,
			entry.method,
			entry.desc,
		})
	}

	r.logger.InfoWithCount("Registered web routes", len(entries))
	tableString, _ := pterm.DefaultTable.WithHasHeader().WithData(tableData).Srender()
	fmt.Print(tableString)
}

func (r *RouteRegistry) GetRoutes() map[string]RouteInfo {
	return r.routes
}
