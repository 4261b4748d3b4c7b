package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/kdduha/bill-parser/internal/metrics"
	"github.com/kdduha/bill-parser/internal/models"
	"github.com/kdduha/bill-parser/internal/service"
	"github.com/kdduha/bill-parser/internal/storage"
	"github.com/sirupsen/logrus"
)

const imageField = "image"

const (
	errNoImage          = "No image provided"
	errUnsupportedImage = "File format not supported. Please upload JPG or PNG"
	errImageTooLarge    = "Image is too large"
)

type billService interface {
	Parse(ctx context.Context, req *models.ParseRequest) (string, error)
	ParseStream(ctx context.Context, req *models.ParseRequest) (<-chan models.StreamChunk, error)
}

type BillHandler struct {
	logger   *logrus.Logger
	service  billService
	store    *storage.TempStore
	maxBytes int64
}

func NewBillHandler(logger *logrus.Logger, service billService, store *storage.TempStore, maxBytes int64) *BillHandler {
	return &BillHandler{
		logger:   logger,
		service:  service,
		store:    store,
		maxBytes: maxBytes,
	}
}

// requestError is a failure detected before the model is called.
type requestError struct {
	status  int
	message string
	label   string
}

func (e *requestError) metricStatus() string {
	if e.status >= http.StatusInternalServerError {
		return metrics.StatusError
	}
	return metrics.StatusBadRequest
}

// ParseBill godoc
// @Summary Parse receipt image
// @Description Upload a JPG or PNG receipt. The body of a 200 response is the model reply, expected to match models.Bill.
// @Tags bill
// @Accept multipart/form-data
// @Produce json
// @Param image formData file true "Receipt image (jpg, jpeg, png)"
// @Success 200 {object} models.Bill
// @Failure 400 {object} models.ErrorResponse
// @Failure 413 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /parse-bill [post]
func (h *BillHandler) ParseBill(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	req, release, reqErr := h.receive(w, r)
	if reqErr != nil {
		metrics.ObserveBillParse(reqErr.metricStatus(), reqErr.label, start)
		writeError(w, reqErr.status, reqErr.message)
		return
	}
	defer release()

	log := h.logger.WithFields(logrus.Fields{"file": req.FileName, "format": req.FileFormat})

	result, err := h.service.Parse(r.Context(), req)
	if err != nil {
		log.WithError(err).Error("parse bill failed")
		metrics.ObserveBillParse(metrics.StatusError, req.FileFormat, start)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	metrics.ObserveBillParse(metrics.StatusOK, req.FileFormat, start)
	log.WithField("duration", time.Since(start)).Info("bill parsed")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(result)); err != nil {
		log.WithError(err).Warn("failed to write response")
	}
}

// ParseBillStream godoc
// @Summary Stream receipt parsing
// @Description Same upload as /parse-bill; the model reply is streamed as server-sent events.
// @Tags bill
// @Accept multipart/form-data
// @Produce text/event-stream
// @Param image formData file true "Receipt image (jpg, jpeg, png)"
// @Success 200 {object} models.StreamChunk "Stream of tokens (SSE)"
// @Failure 400 {object} models.ErrorResponse
// @Failure 413 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /parse-bill/stream [post]
func (h *BillHandler) ParseBillStream(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	req, release, reqErr := h.receive(w, r)
	if reqErr != nil {
		metrics.ObserveBillParse(reqErr.metricStatus(), reqErr.label, start)
		writeError(w, reqErr.status, reqErr.message)
		return
	}
	defer release()

	log := h.logger.WithFields(logrus.Fields{"file": req.FileName, "format": req.FileFormat})

	stream, err := h.service.ParseStream(r.Context(), req)
	if err != nil {
		log.WithError(err).Error("parse bill stream failed")
		metrics.ObserveBillParse(metrics.StatusError, req.FileFormat, start)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	flusher := http.NewResponseController(w)

	for chunk := range stream {
		if chunk.Err != nil {
			log.WithError(chunk.Err).Error("parse bill stream failed")
			metrics.ObserveBillParse(metrics.StatusError, req.FileFormat, start)
			writeStreamError(w, chunk.Err.Error())
			flusher.Flush()
			return
		}

		if chunk.Delta != "" {
			data, err := sonic.Marshal(models.StreamChunk{Delta: chunk.Delta})
			if err != nil {
				writeStreamError(w, fmt.Sprintf("marshal error %v", err))
				flusher.Flush()
				return
			}

			fmt.Fprintf(w, "event: message\ndata: %s\n\n", data)
			flusher.Flush()
		}

		if chunk.Done {
			metrics.ObserveBillParse(metrics.StatusOK, req.FileFormat, start)
			fmt.Fprint(w, "event: done\ndata: {}\n\n")
			flusher.Flush()
			return
		}
	}
}

// receive validates the upload, spools it to a temp file and encodes it.
// On success the caller must invoke release exactly once.
func (h *BillHandler) receive(w http.ResponseWriter, r *http.Request) (*models.ParseRequest, func(), *requestError) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)

	file, header, err := r.FormFile(imageField)
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, nil, &requestError{status: http.StatusRequestEntityTooLarge, message: errImageTooLarge, label: "unknown"}
		}
		return nil, nil, &requestError{status: http.StatusBadRequest, message: errNoImage, label: "unknown"}
	}
	defer file.Close()

	format := strings.ToLower(strings.TrimPrefix(filepath.Ext(header.Filename), "."))
	if !service.IsSupportedFormat(format) {
		return nil, nil, &requestError{status: http.StatusBadRequest, message: errUnsupportedImage, label: "unsupported"}
	}

	tmp, err := h.store.Save(file, format)
	if err != nil {
		h.logger.WithError(err).Error("failed to spool upload")
		return nil, nil, &requestError{status: http.StatusInternalServerError, message: err.Error(), label: format}
	}
	release := func() {
		if err := tmp.Remove(); err != nil {
			h.logger.WithError(err).WithField("path", tmp.Path()).Warn("failed to remove temp file")
		}
	}

	encoded, err := tmp.ReadBase64()
	if err != nil {
		release()
		h.logger.WithError(err).Error("failed to read spooled upload")
		return nil, nil, &requestError{status: http.StatusInternalServerError, message: err.Error(), label: format}
	}

	return &models.ParseRequest{
		FileName:   header.Filename,
		FileFormat: format,
		FileBase64: encoded,
	}, release, nil
}

// writeStreamError emits an SSE error frame. JSON encoding keeps the payload
// on one line whatever the message contains.
func writeStreamError(w http.ResponseWriter, message string) {
	data, err := sonic.Marshal(models.ErrorResponse{Error: message})
	if err != nil {
		data = []byte(`{"error":"internal error"}`)
	}
	fmt.Fprintf(w, "event: error\ndata: %s\n\n", data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = sonic.ConfigDefault.NewEncoder(w).Encode(models.ErrorResponse{Error: message})
}
