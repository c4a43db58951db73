package export

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/inamate/imageboard/internal/document"
	"github.com/inamate/imageboard/internal/project"
	"github.com/inamate/imageboard/internal/raster"
	"github.com/inamate/imageboard/internal/typeid"
)

type Handler struct {
	fonts       *raster.FontMeasurer
	prefixWidth int
	maxBytes    int64
}

func NewHandler(fonts *raster.FontMeasurer, prefixWidth int, maxBytes int64) *Handler {
	return &Handler{fonts: fonts, prefixWidth: prefixWidth, maxBytes: maxBytes}
}

// ExportZip handles POST /export/zip. The body is a project document; the
// optional "images" query parameter is a comma separated list of image ids
// to export instead of the whole board.
func (h *Handler) ExportZip(w http.ResponseWriter, r *http.Request) {
	if h.maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "request too large", http.StatusBadRequest)
		return
	}

	store := raster.NewStore()
	st, err := project.Decode(data, raster.NewDecoder(store))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	images := st.Scene.Images
	if ids := r.URL.Query().Get("images"); ids != "" {
		images = selectImages(st.Scene, strings.Split(ids, ","))
	}
	if len(images) == 0 {
		http.Error(w, "no images to export", http.StatusBadRequest)
		return
	}

	exportID := typeid.NewExportID()
	slog.Info("export started", "export", exportID, "images", len(images))

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="imageboard-%s.zip"`, exportID))
	b := Bundler{Store: store, Fonts: h.fonts, PrefixWidth: h.prefixWidth}
	if err := b.Write(r.Context(), images, w); err != nil {
		// Headers are already sent; the client sees a truncated archive.
		slog.Error("export failed", "export", exportID, "error", err)
		return
	}
	slog.Info("export complete", "export", exportID)
}

// selectImages keeps the scene's z order.
func selectImages(s document.Scene, ids []string) []document.Image {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[strings.TrimSpace(id)] = true
	}
	var out []document.Image
	for _, img := range s.Images {
		if want[img.ID] {
			out = append(out, img)
		}
	}
	return out
}
