package middleware

import "github.com/danielgtaylor/huma/v2"

// Container collects middlewares for one handler registration.
// GetAllAndClear hands them over and resets, so the same container can
// be reused while wiring consecutive handlers.
type Container struct {
	mws huma.Middlewares
}

func NewContainer() *Container {
	return &Container{}
}

func (c *Container) Add(mw func(huma.Context, func(huma.Context))) {
	c.mws = append(c.mws, mw)
}

func (c *Container) GetAllAndClear() huma.Middlewares {
	mws := c.mws
	c.mws = nil
	return mws
}
