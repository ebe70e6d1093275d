// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ManuGH/loopcast/internal/fsutil"
	"github.com/ManuGH/loopcast/internal/log"
	"github.com/disintegration/imaging"
)

// Thumbnails larger than this are downscaled to fit.
const (
	thumbnailMaxWidth  = 1280
	thumbnailMaxHeight = 720
)

// nextPart returns the first file part named field. Other parts are drained.
func nextPart(r *http.Request, field string) (*multipart.Part, error) {
	reader, err := r.MultipartReader()
	if err != nil {
		return nil, fmt.Errorf("%w: invalid multipart payload", errBadRequest)
	}
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: missing %q file field", errBadRequest, field)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: read multipart data: %v", errBadRequest, err)
		}
		if part.FormName() == field && part.FileName() != "" {
			return part, nil
		}
		_ = part.Close()
	}
}

// uploadName returns a free "<unixmillis><ext>" name inside dir.
func (s *Server) uploadName(dir, ext string) string {
	ms := s.clock.Now().UnixMilli()
	for {
		name := strconv.FormatInt(ms, 10) + ext
		if _, err := os.Lstat(filepath.Join(dir, name)); errors.Is(err, os.ErrNotExist) {
			return name
		}
		ms++
	}
}

// ensureJob answers 404 before any upload bytes are read.
func (s *Server) ensureJob(w http.ResponseWriter, r *http.Request, id string) bool {
	if _, err := s.jobs.Status(id); err != nil {
		writeError(w, r, err)
		return false
	}
	return true
}

func (s *Server) handleUploadVideo(w http.ResponseWriter, r *http.Request) {
	r, id := jobContext(r)
	if !s.ensureJob(w, r, id) {
		return
	}
	if s.cfg.UploadMaxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.UploadMaxBytes)
	}
	part, err := nextPart(r, "video")
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer part.Close()

	if ext := strings.ToLower(filepath.Ext(part.FileName())); ext != ".mp4" {
		writeError(w, r, fmt.Errorf("%w: only .mp4 videos are accepted", errBadRequest))
		return
	}

	name := s.uploadName(s.cfg.UploadsDir, ".mp4")
	path := filepath.Join(s.cfg.UploadsDir, name)
	size, err := fsutil.WriteAtomic(r.Context(), path, part, 0o640)
	if err != nil {
		writeError(w, r, fmt.Errorf("save video: %w", err))
		return
	}
	if _, err := s.jobs.SetVideo(r.Context(), id, name); err != nil {
		_ = os.Remove(path)
		writeError(w, r, err)
		return
	}
	logger := log.WithContext(r.Context(), log.WithComponent("api"))
	logger.Info().
		Str(log.FieldEvent, "upload.video").
		Str(log.FieldPath, name).
		Int64("bytes", size).
		Msg("video uploaded")
	s.respond(w, r, id)
}

func (s *Server) handleUploadThumbnail(w http.ResponseWriter, r *http.Request) {
	r, id := jobContext(r)
	if !s.ensureJob(w, r, id) {
		return
	}
	// Room for the multipart framing around the image itself.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.ThumbnailMaxBytes+64<<10)
	part, err := nextPart(r, "thumbnail")
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer part.Close()

	if ct := part.Header.Get("Content-Type"); !strings.HasPrefix(ct, "image/") {
		writeError(w, r, fmt.Errorf("%w: thumbnail must be an image, got %q", errBadRequest, ct))
		return
	}
	ext := strings.ToLower(filepath.Ext(part.FileName()))
	format, err := imaging.FormatFromExtension(ext)
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: unsupported image type %q", errBadRequest, ext))
		return
	}

	data, err := io.ReadAll(io.LimitReader(part, s.cfg.ThumbnailMaxBytes+1))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if int64(len(data)) > s.cfg.ThumbnailMaxBytes {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{
			Error:     fmt.Sprintf("thumbnail exceeds %d bytes", s.cfg.ThumbnailMaxBytes),
			RequestID: log.RequestIDFromContext(r.Context()),
		})
		return
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: thumbnail is not a decodable image: %v", errBadRequest, err))
		return
	}
	body := io.Reader(bytes.NewReader(data))
	if b := img.Bounds(); b.Dx() > thumbnailMaxWidth || b.Dy() > thumbnailMaxHeight {
		body, err = fitThumbnail(img, format)
		if err != nil {
			writeError(w, r, err)
			return
		}
	}

	name := s.uploadName(s.cfg.ThumbnailsDir, ext)
	path := filepath.Join(s.cfg.ThumbnailsDir, name)
	if _, err := fsutil.WriteAtomic(r.Context(), path, body, 0o640); err != nil {
		writeError(w, r, fmt.Errorf("save thumbnail: %w", err))
		return
	}
	if _, err := s.jobs.SetThumbnail(r.Context(), id, name); err != nil {
		_ = os.Remove(path)
		writeError(w, r, err)
		return
	}
	logger := log.WithContext(r.Context(), log.WithComponent("api"))
	logger.Info().
		Str(log.FieldEvent, "upload.thumbnail").
		Str(log.FieldPath, name).
		Msg("thumbnail uploaded")
	s.respond(w, r, id)
}

func fitThumbnail(img image.Image, format imaging.Format) (io.Reader, error) {
	var buf bytes.Buffer
	fitted := imaging.Fit(img, thumbnailMaxWidth, thumbnailMaxHeight, imaging.Lanczos)
	if err := imaging.Encode(&buf, fitted, format, imaging.JPEGQuality(90)); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return &buf, nil
}
