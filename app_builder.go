package lightmapper

type AppBuilder struct {
	app       *App
	modules   []Module
	resources []any
}

func NewAppBuilder() *AppBuilder {
	return &AppBuilder{app: NewApp()}
}

func (b *AppBuilder) UseModule(modules ...Module) *AppBuilder {
	b.modules = append(b.modules, modules...)

	return b
}

// UseResources registers resources before any module is installed, so modules
// can pick them up (a preconfigured Logger, for instance).
func (b *AppBuilder) UseResources(resources ...any) *AppBuilder {
	b.resources = append(b.resources, resources...)

	return b
}

func (b *AppBuilder) Build() *App {
	app := b.app
	app.addResources(b.resources...)
	app.UseModules(b.modules...)

	return app
}
