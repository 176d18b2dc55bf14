package handler

import (
	"errors"
	"fmt"

	"github.com/cordobacasas/casas/internal/domain"
	"github.com/cordobacasas/casas/internal/service"
)

// UploadReportDTO is the JSON representation of an image batch outcome.
type UploadReportDTO struct {
	Images           []string           `json:"images"`
	Failures         []UploadFailureDTO `json:"failures"`
	Dropped          int                `json:"dropped"`
	CapacityExceeded bool               `json:"capacityExceeded"`
	Message          string             `json:"message,omitempty"`
}

// UploadFailureDTO describes one image that was skipped.
type UploadFailureDTO struct {
	Filename string `json:"filename"`
	Reason   string `json:"reason"`
}

func toUploadReportDTO(r *service.UploadReport, maxImages int) UploadReportDTO {
	dto := UploadReportDTO{
		Images:           make([]string, len(r.Stored)),
		Failures:         make([]UploadFailureDTO, len(r.Failures)),
		Dropped:          r.Dropped,
		CapacityExceeded: r.CapacityExceeded(),
	}
	for i, img := range r.Stored {
		dto.Images[i] = img.URL
	}
	for i, f := range r.Failures {
		dto.Failures[i] = UploadFailureDTO{Filename: f.Filename, Reason: failureReason(f.Err)}
	}
	if dto.CapacityExceeded {
		dto.Message = fmt.Sprintf("Se alcanzó el máximo de %d imágenes; %d no se subieron.", maxImages, r.Dropped)
	}
	return dto
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrDecode):
		return "decode"
	case errors.Is(err, domain.ErrEncode):
		return "encode"
	default:
		return "upload"
	}
}
