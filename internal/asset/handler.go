// Package asset stores uploaded images as PNG files named by their pixel
// content, so the same picture uploaded twice is stored once.
package asset

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/crypto/blake2b"

	"github.com/inamate/imageboard/internal/raster"
	"github.com/inamate/imageboard/internal/typeid"
)

// recentTTL is how long upload metadata is remembered for deduplication.
const recentTTL = 30 * time.Minute

// UploadResponse is returned from the upload endpoint.
type UploadResponse struct {
	ID     string `json:"id"`
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Name   string `json:"name"`
}

// Handler serves asset upload and retrieval endpoints.
type Handler struct {
	dir      string
	maxBytes int64
	// recent maps a blake2b digest of the uploaded bytes to its response.
	recent *cache.Cache
}

// NewHandler creates a new asset handler that stores files in dir.
func NewHandler(dir string, maxBytes int64) *Handler {
	if err := os.MkdirAll(dir, 0755); err != nil {
		slog.Error("create asset dir", "error", err, "dir", dir)
	}
	return &Handler{
		dir:      dir,
		maxBytes: maxBytes,
		recent:   cache.New(recentTTL, 2*recentTTL),
	}
}

// Upload handles POST /assets/upload (multipart form with "file" field).
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		http.Error(w, fmt.Sprintf("file too large (max %dMB)", h.maxBytes>>20), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "missing file field", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "failed to read file", http.StatusBadRequest)
		return
	}

	resp, err := h.store(data, header.Filename)
	if err != nil {
		if errors.Is(err, raster.ErrUnsupportedImage) {
			http.Error(w, "invalid image: "+err.Error(), http.StatusBadRequest)
			return
		}
		slog.Error("store asset", "error", err, "name", header.Filename)
		http.Error(w, "failed to save file", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}

// store decodes data and writes it as PNG unless the same bytes or the same
// pixels were stored before.
func (h *Handler) store(data []byte, name string) (UploadResponse, error) {
	digest := blake2b.Sum256(data)
	key := hex.EncodeToString(digest[:])
	if cached, ok := h.recent.Get(key); ok {
		resp := cached.(UploadResponse)
		resp.Name = name
		slog.Debug("asset upload deduplicated", "asset", resp.ID)
		return resp, nil
	}

	// A private store keeps the decoded pixels only for this upload.
	store := raster.NewStore()
	d, err := raster.NewDecoder(store).Decode(data)
	if err != nil {
		return UploadResponse{}, err
	}
	id := typeid.PrefixAsset + "_" + strings.TrimPrefix(d.Handle, raster.HandlePrefix)
	filename := id + ".png"
	path := filepath.Join(h.dir, filename)

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		encoded, err := store.EncodePNG(d.Handle)
		if err != nil {
			return UploadResponse{}, fmt.Errorf("encode png: %w", err)
		}
		if err := writeFileAtomic(path, encoded); err != nil {
			return UploadResponse{}, err
		}
		slog.Info("asset stored", "asset", id, "format", d.Format, "width", d.Width, "height", d.Height)
	}

	resp := UploadResponse{
		ID:     id,
		URL:    fmt.Sprintf("/assets/%s", filename),
		Width:  d.Width,
		Height: d.Height,
		Name:   name,
	}
	h.recent.Set(key, resp, cache.DefaultExpiration)
	return resp, nil
}

// Serve returns an http.Handler that serves stored asset files with caching headers.
func (h *Handler) Serve() http.Handler {
	fs := http.FileServer(http.Dir(h.dir))
	return http.StripPrefix("/assets/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Asset ids are derived from content, so files are immutable.
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		fs.ServeHTTP(w, r)
	}))
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return fmt.Errorf("create asset file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write asset file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close asset file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename asset file: %w", err)
	}
	return nil
}
