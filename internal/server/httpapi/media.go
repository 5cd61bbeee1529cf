package httpapi

import "net/http"

// handlePresignUpload mints a storage key plus a URL that accepts one
// attachment upload for it.
func (s *Server) handlePresignUpload(w http.ResponseWriter, r *http.Request) {
	key, url, err := s.presigner.PresignedPutURL(r.Context())
	if err != nil {
		s.log.Error(r.Context(), "failed to presign upload", "error", err)
		s.respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]string{"key": key, "url": url})
}

// handlePresignDownload mints a download URL for a stored attachment key.
func (s *Server) handlePresignDownload(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		s.respondError(w, http.StatusBadRequest, "key is required")
		return
	}

	url, err := s.presigner.PresignedGetURL(r.Context(), key)
	if err != nil {
		s.log.Error(r.Context(), "failed to presign download", "error", err)
		s.respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]string{"url": url})
}
