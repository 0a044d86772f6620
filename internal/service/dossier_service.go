package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"github.com/jung-kurt/gofpdf"
	"go.uber.org/zap"

	"github.com/noah-isme/teg-intake-api/internal/models"
)

// Dossier slots, in page order.
const (
	SlotAuthor1Form             = "autor1_planilla"
	SlotAuthor1ID               = "autor1_cedula"
	SlotTutorLetter             = "tutor_carta_aceptacion"
	SlotTutorID                 = "tutor_cedula"
	SlotAuthor1Community        = "autor1_constancia_comunidad"
	SlotAuthor1CommunityService = "autor1_servicio_comunitario"
	SlotFitnessLetter           = "carta_apto_defensa"
	SlotAuthor2Form             = "autor2_planilla"
	SlotAuthor2ID               = "autor2_cedula"
	SlotAuthor2Community        = "autor2_constancia_comunidad"
	SlotAuthor2CommunityService = "autor2_servicio_comunitario"
)

const (
	dossierJPEGQuality = 85
	dossierMarginMM    = 10.0
)

// DossierPage is one candidate image of the consolidated dossier.
type DossierPage struct {
	Slot string
	File *models.UploadedFile
}

// Dossier is the assembled PDF with one page per decodable image.
type Dossier struct {
	Content []byte
	Pages   int
	Sources []string
}

// DossierService merges supporting images into a single A4 PDF.
type DossierService struct {
	logger *zap.Logger
}

// NewDossierService constructs a DossierService.
func NewDossierService(logger *zap.Logger) *DossierService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DossierService{logger: logger}
}

// Assemble renders pages in the given order. Missing and undecodable images
// are skipped; a nil dossier means no page could be produced.
func (s *DossierService) Assemble(ctx context.Context, pages []DossierPage) (*Dossier, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(dossierMarginMM, dossierMarginMM, dossierMarginMM)
	pdf.SetAutoPageBreak(false, 0)
	pageW, pageH := pdf.GetPageSize()
	maxW := pageW - 2*dossierMarginMM
	maxH := pageH - 2*dossierMarginMM

	out := &Dossier{}
	for i, page := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if page.File == nil || len(page.File.Content) == 0 {
			continue
		}
		jpeg, err := normalizeImage(page.File.Content)
		if err != nil {
			s.logger.Warn("skipping undecodable dossier image",
				zap.String("slot", page.Slot),
				zap.String("file", page.File.Name),
				zap.Error(err),
			)
			continue
		}

		name := fmt.Sprintf("page-%d", i)
		opts := gofpdf.ImageOptions{ImageType: "JPG"}
		info := pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(jpeg))
		if err := pdf.Error(); err != nil {
			return nil, fmt.Errorf("register dossier image %s: %w", page.Slot, err)
		}

		w, h := fitImage(info.Width(), info.Height(), maxW, maxH)
		pdf.AddPage()
		pdf.ImageOptions(name, dossierMarginMM, dossierMarginMM, w, h, false, opts, 0, "")
		out.Pages++
		out.Sources = append(out.Sources, page.Slot)
	}

	if out.Pages == 0 {
		return nil, nil
	}
	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render dossier: %w", err)
	}
	out.Content = buf.Bytes()
	return out, nil
}

// normalizeImage decodes with EXIF orientation applied, drops transparency
// onto white and re-encodes as JPEG.
func normalizeImage(raw []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return nil, err
	}
	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return nil, fmt.Errorf("empty image")
	}
	canvas := imaging.New(bounds.Dx(), bounds.Dy(), color.White)
	flat := imaging.Overlay(canvas, img, image.Pt(0, 0), 1.0)

	buf := &bytes.Buffer{}
	if err := imaging.Encode(buf, flat, imaging.JPEG, imaging.JPEGQuality(dossierJPEGQuality)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// fitImage scales to the full usable width, shrinking further when the
// result would overflow the page height.
func fitImage(imgW, imgH, maxW, maxH float64) (float64, float64) {
	if imgW <= 0 || imgH <= 0 {
		return maxW, maxH
	}
	w := maxW
	h := imgH * w / imgW
	if h > maxH {
		h = maxH
		w = imgW * h / imgH
	}
	return w, h
}
