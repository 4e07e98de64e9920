package starfield

import (
	"fmt"
)

// RendererTag names the render path currently drawing. At most one path
// draws at any time.
type RendererTag struct {
	Name string
}

// ensureSingleRenderer claims the tag for name. A different active path is a
// programming error: it is logged and the app fails fast.
func ensureSingleRenderer(app *App, tag *RendererTag, name RendererName) {
	if tag.Name == "" || tag.Name == string(name) {
		tag.Name = string(name)
		app.Logger().Infof("renderer active: %s", name)
		return
	}
	app.Logger().Errorf("Multiple renderers active: %s and %s", tag.Name, name)
	panic(fmt.Sprintf("Multiple renderers active: %s and %s", tag.Name, name))
}

func releaseRenderer(tag *RendererTag, name RendererName) {
	if tag.Name == string(name) {
		tag.Name = ""
	}
}

func installRendererTag(app *App, cmd *Commands) *RendererTag {
	if tag := ResourceOf[RendererTag](app); tag != nil {
		return tag
	}
	tag := &RendererTag{}
	cmd.AddResources(tag)
	return tag
}
