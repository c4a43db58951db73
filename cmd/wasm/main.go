//go:build js && wasm

package main

import (
	"context"
	"encoding/json"
	"sync"
	"syscall/js"

	"github.com/inamate/imageboard/internal/document"
	"github.com/inamate/imageboard/internal/engine"
	"github.com/inamate/imageboard/internal/geom"
)

var (
	// mu serializes engine access between JS callbacks and decode goroutines.
	mu  sync.Mutex
	eng *engine.Engine
)

func main() {
	eng = engine.NewEngine(engine.DefaultConfig())

	imageboardEngine := js.Global().Get("Object").New()

	// --- Input ---
	imageboardEngine.Set("pointerDown", js.FuncOf(pointerDown))
	imageboardEngine.Set("pointerMove", js.FuncOf(pointerMove))
	imageboardEngine.Set("pointerUp", js.FuncOf(pointerUp))
	imageboardEngine.Set("keyDown", js.FuncOf(keyDown))
	imageboardEngine.Set("keyUp", js.FuncOf(keyUp))
	imageboardEngine.Set("zoomAt", js.FuncOf(zoomAt))

	// --- Commands ---
	imageboardEngine.Set("setTool", js.FuncOf(setTool))
	imageboardEngine.Set("setStyle", js.FuncOf(setStyle))
	imageboardEngine.Set("setCropAspect", js.FuncOf(setCropAspect))
	imageboardEngine.Set("setAnnotationText", js.FuncOf(setAnnotationText))
	imageboardEngine.Set("setImageOutline", js.FuncOf(setImageOutline))
	imageboardEngine.Set("undo", js.FuncOf(undo))
	imageboardEngine.Set("redo", js.FuncOf(redo))
	imageboardEngine.Set("deleteSelection", js.FuncOf(deleteSelection))
	imageboardEngine.Set("confirmCrop", js.FuncOf(confirmCrop))
	imageboardEngine.Set("uncrop", js.FuncOf(uncrop))
	imageboardEngine.Set("group", js.FuncOf(group))
	imageboardEngine.Set("ungroup", js.FuncOf(ungroup))
	imageboardEngine.Set("arrange", js.FuncOf(arrange))
	imageboardEngine.Set("align", js.FuncOf(align))
	imageboardEngine.Set("stack", js.FuncOf(stack))
	imageboardEngine.Set("matchSize", js.FuncOf(matchSize))
	imageboardEngine.Set("selectLayer", js.FuncOf(selectLayer))
	imageboardEngine.Set("addImage", js.FuncOf(addImage))
	imageboardEngine.Set("loadProject", js.FuncOf(loadProject))

	// --- Queries ---
	imageboardEngine.Set("render", js.FuncOf(render))
	imageboardEngine.Set("layers", js.FuncOf(layers))
	imageboardEngine.Set("getRaster", js.FuncOf(getRaster))
	imageboardEngine.Set("saveProject", js.FuncOf(saveProject))
	imageboardEngine.Set("isDirty", js.FuncOf(isDirty))

	js.Global().Set("imageboardEngine", imageboardEngine)
	js.Global().Set("imageboardWasmReady", js.ValueOf(true))

	select {}
}

func errorResult(err error) interface{} {
	return js.ValueOf(map[string]interface{}{"error": err.Error()})
}

func okResult() interface{} {
	return js.ValueOf(map[string]interface{}{"ok": true})
}

func missing(what string) interface{} {
	return js.ValueOf(map[string]interface{}{"error": "missing " + what})
}

// decodeArg unmarshals a JSON string argument.
func decodeArg(v js.Value, out any) error {
	return json.Unmarshal([]byte(v.String()), out)
}

// --- Input Handlers ---

func pointerArg(args []js.Value) (engine.Pointer, bool) {
	if len(args) < 1 {
		return engine.Pointer{}, false
	}
	var p engine.Pointer
	if err := decodeArg(args[0], &p); err != nil {
		return engine.Pointer{}, false
	}
	return p, true
}

func pointerDown(this js.Value, args []js.Value) interface{} {
	p, ok := pointerArg(args)
	if !ok {
		return nil
	}
	mu.Lock()
	defer mu.Unlock()
	eng.PointerDown(p)
	return nil
}

func pointerMove(this js.Value, args []js.Value) interface{} {
	p, ok := pointerArg(args)
	if !ok {
		return nil
	}
	mu.Lock()
	defer mu.Unlock()
	eng.PointerMove(p)
	return nil
}

func pointerUp(this js.Value, args []js.Value) interface{} {
	p, ok := pointerArg(args)
	if !ok {
		return nil
	}
	mu.Lock()
	defer mu.Unlock()
	eng.PointerUp(p)
	return nil
}

func keyDown(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return js.ValueOf(false)
	}
	var mods engine.Modifiers
	if len(args) > 1 && args[1].Type() == js.TypeString {
		if err := decodeArg(args[1], &mods); err != nil {
			return js.ValueOf(false)
		}
	}
	mu.Lock()
	defer mu.Unlock()
	return js.ValueOf(eng.KeyDown(args[0].String(), mods))
}

func keyUp(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return nil
	}
	mu.Lock()
	defer mu.Unlock()
	eng.KeyUp(args[0].String())
	return nil
}

func zoomAt(this js.Value, args []js.Value) interface{} {
	if len(args) < 3 {
		return nil
	}
	mu.Lock()
	defer mu.Unlock()
	eng.ZoomAt(args[0].Float(), args[1].Float(), args[2].Float())
	return nil
}

// --- Command Handlers ---

func setTool(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return missing("tool")
	}
	mu.Lock()
	defer mu.Unlock()
	if err := eng.SetTool(engine.Tool(args[0].String())); err != nil {
		return errorResult(err)
	}
	return okResult()
}

func setStyle(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return missing("style JSON")
	}
	var st engine.Style
	if err := decodeArg(args[0], &st); err != nil {
		return errorResult(err)
	}
	mu.Lock()
	defer mu.Unlock()
	eng.SetStyle(st)
	return okResult()
}

func setCropAspect(this js.Value, args []js.Value) interface{} {
	ratio := 0.0
	if len(args) > 0 && args[0].Type() == js.TypeNumber {
		ratio = args[0].Float()
	}
	mu.Lock()
	defer mu.Unlock()
	eng.SetCropAspect(ratio)
	return nil
}

func setAnnotationText(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return missing("annotation ref or text")
	}
	var ref document.AnnotationRef
	if err := decodeArg(args[0], &ref); err != nil {
		return errorResult(err)
	}
	mu.Lock()
	defer mu.Unlock()
	if err := eng.SetAnnotationText(ref, args[1].String()); err != nil {
		return errorResult(err)
	}
	return okResult()
}

func setImageOutline(this js.Value, args []js.Value) interface{} {
	if len(args) < 3 {
		return missing("outline color, width or opacity")
	}
	mu.Lock()
	defer mu.Unlock()
	return js.ValueOf(eng.SetImageOutline(args[0].String(), args[1].Float(), args[2].Float()))
}

func undo(this js.Value, args []js.Value) interface{} {
	mu.Lock()
	defer mu.Unlock()
	return js.ValueOf(eng.Undo())
}

func redo(this js.Value, args []js.Value) interface{} {
	mu.Lock()
	defer mu.Unlock()
	return js.ValueOf(eng.Redo())
}

func deleteSelection(this js.Value, args []js.Value) interface{} {
	mu.Lock()
	defer mu.Unlock()
	return js.ValueOf(eng.DeleteSelection())
}

func confirmCrop(this js.Value, args []js.Value) interface{} {
	mu.Lock()
	defer mu.Unlock()
	ids, err := eng.ConfirmCrop()
	if err != nil {
		return errorResult(err)
	}
	return js.ValueOf(map[string]interface{}{"ok": true, "images": stringsToJS(ids)})
}

func uncrop(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return missing("image id")
	}
	mu.Lock()
	defer mu.Unlock()
	if err := eng.Uncrop(args[0].String()); err != nil {
		return errorResult(err)
	}
	return okResult()
}

func group(this js.Value, args []js.Value) interface{} {
	label := ""
	if len(args) > 0 && args[0].Type() == js.TypeString {
		label = args[0].String()
	}
	mu.Lock()
	defer mu.Unlock()
	id, err := eng.Group(label)
	if err != nil {
		return errorResult(err)
	}
	return js.ValueOf(map[string]interface{}{"ok": true, "id": id})
}

func ungroup(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return missing("group id")
	}
	mu.Lock()
	defer mu.Unlock()
	if err := eng.Ungroup(args[0].String()); err != nil {
		return errorResult(err)
	}
	return okResult()
}

func arrange(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return missing("layer ref or op")
	}
	var ref document.LayerRef
	if err := decodeArg(args[0], &ref); err != nil {
		return errorResult(err)
	}
	mu.Lock()
	defer mu.Unlock()
	if err := eng.Arrange(ref, document.ArrangeOp(args[1].String())); err != nil {
		return errorResult(err)
	}
	return okResult()
}

func align(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return missing("edge")
	}
	mu.Lock()
	defer mu.Unlock()
	if err := eng.Align(document.AlignEdge(args[0].String())); err != nil {
		return errorResult(err)
	}
	return okResult()
}

func stack(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return missing("direction")
	}
	mu.Lock()
	defer mu.Unlock()
	if err := eng.Stack(document.StackDirection(args[0].String())); err != nil {
		return errorResult(err)
	}
	return okResult()
}

func matchSize(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return missing("dimension")
	}
	mu.Lock()
	defer mu.Unlock()
	if err := eng.MatchSize(document.SizeDimension(args[0].String())); err != nil {
		return errorResult(err)
	}
	return okResult()
}

func selectLayer(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return missing("layer ref")
	}
	var ref document.LayerRef
	if err := decodeArg(args[0], &ref); err != nil {
		return errorResult(err)
	}
	var mods engine.Modifiers
	if len(args) > 1 && args[1].Type() == js.TypeString {
		if err := decodeArg(args[1], &mods); err != nil {
			return errorResult(err)
		}
	}
	mu.Lock()
	defer mu.Unlock()
	eng.SelectLayer(ref, mods)
	return okResult()
}

// addImage takes an array of {name, data: Uint8Array} and the screen
// point to drop them at. Decoding runs off the event loop; the returned
// promise resolves with the new image ids.
func addImage(this js.Value, args []js.Value) interface{} {
	if len(args) < 3 {
		return missing("files or drop point")
	}
	arr := args[0]
	files := make([]engine.File, arr.Length())
	for i := range files {
		item := arr.Index(i)
		data := item.Get("data")
		buf := make([]byte, data.Get("length").Int())
		js.CopyBytesToGo(buf, data)
		files[i] = engine.File{Name: item.Get("name").String(), Data: buf}
	}
	screen := geom.Pt(args[1].Float(), args[2].Float())

	handler := js.FuncOf(func(this js.Value, p []js.Value) interface{} {
		resolve := p[0]
		go func() {
			decoded, err := eng.DecodeFiles(context.Background(), files)

			mu.Lock()
			ids := eng.AddDecoded(decoded, eng.View().ScreenToWorld(screen))
			mu.Unlock()

			result := map[string]interface{}{"images": stringsToJS(ids)}
			if err != nil {
				result["error"] = err.Error()
			}
			resolve.Invoke(js.ValueOf(result))
		}()
		return nil
	})
	promise := js.Global().Get("Promise").New(handler)
	handler.Release()
	return promise
}

func loadProject(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return missing("project JSON")
	}
	mu.Lock()
	defer mu.Unlock()
	if err := eng.LoadProject([]byte(args[0].String())); err != nil {
		return errorResult(err)
	}
	return okResult()
}

// --- Query Handlers ---

func render(this js.Value, args []js.Value) interface{} {
	mu.Lock()
	defer mu.Unlock()
	out, err := eng.RenderJSON()
	if err != nil {
		return errorResult(err)
	}
	return js.ValueOf(out)
}

func layers(this js.Value, args []js.Value) interface{} {
	mu.Lock()
	defer mu.Unlock()
	data, err := json.Marshal(eng.Layers())
	if err != nil {
		return errorResult(err)
	}
	return js.ValueOf(string(data))
}

func getRaster(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return missing("raster handle")
	}
	mu.Lock()
	defer mu.Unlock()
	url, err := eng.RasterDataURL(args[0].String())
	if err != nil {
		return errorResult(err)
	}
	return js.ValueOf(url)
}

func saveProject(this js.Value, args []js.Value) interface{} {
	mu.Lock()
	defer mu.Unlock()
	data, err := eng.SaveProject()
	if err != nil {
		return errorResult(err)
	}
	return js.ValueOf(string(data))
}

func isDirty(this js.Value, args []js.Value) interface{} {
	mu.Lock()
	defer mu.Unlock()
	return js.ValueOf(eng.IsDirty())
}

func stringsToJS(ids []string) []interface{} {
	out := make([]interface{}, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}
