// Package loader provides the plugin-like feature loading system.
//
// Each feature implements the Feature interface, which defines its lifecycle
// hooks and route registration logic. The Manager registers features via
// Register() and loads the enabled ones via LoadAll(), in registration order.
//
//	mgr := loader.NewManager()
//	mgr.Register(status.NewFeature(scheduler, logger))
//	names, err := mgr.LoadAll(app)
package loader
