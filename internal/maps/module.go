package maps

import (
	apphttp "servitec_backend/internal/http"
)

// Module mounts the address lookup used by the request form.
type Module struct {
	handler *Handler
}

func NewModule(search AddressSearcher) *Module {
	return &Module{handler: NewHandler(search)}
}

func (m *Module) Name() string {
	return "maps"
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.GET("/maps/address-lookup", m.handler.LookupAddress)
}

var _ apphttp.Module = (*Module)(nil)
