package httpx

import (
	"bytes"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// ---- 圖片上傳：POST /upload ----
// 收 multipart，檢查圖片型別後寫進物件儲存，回 {"url": ...}。
func HandleUpload(app *AppCtx) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, 20<<20) // 20MB
		if err := r.ParseMultipartForm(25 << 20); err != nil {
			writeError(w, http.StatusBadRequest, "parse form: "+err.Error())
			return
		}
		file, hdr, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "form file: "+err.Error())
			return
		}
		defer file.Close()

		head := make([]byte, 512)
		n, _ := io.ReadFull(file, head)
		head = head[:n]
		mtype := http.DetectContentType(head)

		ext := ""
		switch mtype {
		case "image/jpeg":
			ext = ".jpg"
		case "image/png":
			ext = ".png"
		case "image/webp":
			ext = ".webp"
		case "image/gif":
			ext = ".gif"
		default:
			if e := strings.ToLower(filepath.Ext(hdr.Filename)); map[string]bool{
				".jpg": true, ".jpeg": true, ".png": true, ".webp": true, ".gif": true,
			}[e] {
				ext = e
			}
			if ext == "" {
				writeError(w, http.StatusBadRequest, "unsupported image type: "+mtype)
				return
			}
		}

		name := strings.TrimSuffix(hdr.Filename, filepath.Ext(hdr.Filename)) + ext

		// 進度回報在 server 端只累計 metrics
		var last int64
		progress := func(transferred, total int64) {
			uploadBytes.Add(float64(transferred - last))
			last = transferred
		}

		url, err := app.Blobs.Upload(r.Context(), name,
			io.MultiReader(bytes.NewReader(head), file), hdr.Size, progress)
		if err != nil {
			log.Error().Err(err).Str("file", hdr.Filename).Msg("upload failed")
			writeError(w, http.StatusBadGateway, "upload failed")
			return
		}
		uploadsTotal.Inc()
		writeJSON(w, http.StatusOK, map[string]string{"url": url})
	}
}
