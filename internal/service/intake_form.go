package service

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/noah-isme/teg-intake-api/internal/models"
	appErrors "github.com/noah-isme/teg-intake-api/pkg/errors"
)

var (
	imageExtensions    = []string{"jpg", "jpeg", "png"}
	documentExtensions = []string{"doc", "docx"}
	recordExtensions   = []string{"pdf"}

	reUnsafeName = regexp.MustCompile(`[^A-Za-z0-9-]+`)
)

// IntakeSubmission is one student submission as posted. It lives for a single
// request.
type IntakeSubmission struct {
	Procedure    string
	Program      string
	Modality     string
	Title        string
	ResearchLine string

	Author1 models.Person
	Author2 models.Person
	Tutor   models.Person

	Author1Form             *models.UploadedFile
	Author1IDCopy           *models.UploadedFile
	Author1Community        *models.UploadedFile
	Author1CommunityService *models.UploadedFile
	Author1AcademicRecord   *models.UploadedFile

	Author2Form             *models.UploadedFile
	Author2IDCopy           *models.UploadedFile
	Author2Community        *models.UploadedFile
	Author2CommunityService *models.UploadedFile
	Author2AcademicRecord   *models.UploadedFile

	TutorLetter   *models.UploadedFile
	TutorIDCopy   *models.UploadedFile
	FitnessLetter *models.UploadedFile
	FinalDocument *models.UploadedFile
}

// validSubmission is an IntakeSubmission that passed every check, with
// branch-irrelevant fields already dropped.
type validSubmission struct {
	IntakeSubmission
	procedure models.Process
	modality  models.Modality
}

type uploadRule struct {
	field      string
	file       *models.UploadedFile
	extensions []string
}

// validateSubmission collects every violation into one validation error.
// It has no side effects.
func validateSubmission(sub IntakeSubmission, available []models.Process, programs []string, maxFileSize int64) (*validSubmission, error) {
	var fails []appErrors.FieldError
	fail := func(field, msg string) {
		fails = append(fails, appErrors.FieldError{Field: field, Message: msg})
	}

	sub.Title = strings.TrimSpace(sub.Title)
	sub.ResearchLine = strings.TrimSpace(sub.ResearchLine)
	sub.Author1 = trimPerson(sub.Author1)
	sub.Author2 = trimPerson(sub.Author2)
	sub.Tutor = trimPerson(sub.Tutor)

	procedure, ok := models.ParseProcess(strings.TrimSpace(sub.Procedure))
	if !ok || !containsProcess(available, procedure) {
		fail("tramite", "el trámite seleccionado no está disponible")
	}
	modality, ok := models.ParseModality(strings.TrimSpace(sub.Modality))
	if !ok {
		fail("modalidad", "la modalidad debe ser Individual o Pareja")
	}
	if !containsFold(programs, strings.TrimSpace(sub.Program)) {
		fail("programa", "programa académico no válido")
	} else {
		sub.Program = canonicalProgram(programs, sub.Program)
	}

	if sub.Title == "" {
		fail("titulo", "el título es obligatorio")
	}
	if sub.Author1.NationalID == "" {
		fail("autor1_cedula", "la cédula del autor 1 es obligatoria")
	}
	if sub.FinalDocument == nil || len(sub.FinalDocument.Content) == 0 {
		fail("documento_final", "el documento final es obligatorio")
	}

	if modality != models.ModalityPaired {
		sub.Author2 = models.Person{}
		sub.Author2Form = nil
		sub.Author2IDCopy = nil
		sub.Author2Community = nil
		sub.Author2CommunityService = nil
		sub.Author2AcademicRecord = nil
	}
	if procedure != models.ProcessThesis {
		sub.FitnessLetter = nil
	}

	rules := []uploadRule{
		{"autor1_planilla", sub.Author1Form, imageExtensions},
		{"autor1_cedula_img", sub.Author1IDCopy, imageExtensions},
		{"autor1_constancia_comunidad", sub.Author1Community, imageExtensions},
		{"autor1_servicio_comunitario", sub.Author1CommunityService, imageExtensions},
		{"autor1_record_academico", sub.Author1AcademicRecord, recordExtensions},
		{"autor2_planilla", sub.Author2Form, imageExtensions},
		{"autor2_cedula_img", sub.Author2IDCopy, imageExtensions},
		{"autor2_constancia_comunidad", sub.Author2Community, imageExtensions},
		{"autor2_servicio_comunitario", sub.Author2CommunityService, imageExtensions},
		{"autor2_record_academico", sub.Author2AcademicRecord, recordExtensions},
		{"tutor_carta_aceptacion", sub.TutorLetter, imageExtensions},
		{"tutor_cedula_img", sub.TutorIDCopy, imageExtensions},
		{"carta_apto_defensa", sub.FitnessLetter, imageExtensions},
		{"documento_final", sub.FinalDocument, documentExtensions},
	}
	for _, rule := range rules {
		if rule.file == nil {
			continue
		}
		if !containsString(rule.extensions, rule.file.Ext()) {
			fail(rule.field, fmt.Sprintf("tipo de archivo no permitido, use: %s", strings.Join(rule.extensions, ", ")))
			continue
		}
		if maxFileSize > 0 && rule.file.Size() > maxFileSize {
			fail(rule.field, fmt.Sprintf("el archivo supera el tamaño máximo de %d MB", maxFileSize/(1<<20)))
		}
	}

	if len(fails) > 0 {
		return nil, appErrors.Validation("la solicitud contiene datos inválidos", fails)
	}
	return &validSubmission{IntakeSubmission: sub, procedure: procedure, modality: modality}, nil
}

// dossierPages lists the supporting images in dossier order.
func (v *validSubmission) dossierPages() []DossierPage {
	pages := []DossierPage{
		{Slot: SlotAuthor1Form, File: v.Author1Form},
		{Slot: SlotAuthor1ID, File: v.Author1IDCopy},
		{Slot: SlotTutorLetter, File: v.TutorLetter},
		{Slot: SlotTutorID, File: v.TutorIDCopy},
		{Slot: SlotAuthor1Community, File: v.Author1Community},
		{Slot: SlotAuthor1CommunityService, File: v.Author1CommunityService},
	}
	if v.procedure == models.ProcessThesis {
		pages = append(pages, DossierPage{Slot: SlotFitnessLetter, File: v.FitnessLetter})
	}
	if v.modality == models.ModalityPaired {
		pages = append(pages,
			DossierPage{Slot: SlotAuthor2Form, File: v.Author2Form},
			DossierPage{Slot: SlotAuthor2ID, File: v.Author2IDCopy},
			DossierPage{Slot: SlotAuthor2Community, File: v.Author2Community},
			DossierPage{Slot: SlotAuthor2CommunityService, File: v.Author2CommunityService},
		)
	}
	return pages
}

// dossierName is EXP_<tramite>_<cedula>_<short-id>.pdf.
func (v *validSubmission) dossierName(shortID string) string {
	return fmt.Sprintf("EXP_%s_%s_%s.pdf", sanitizeName(string(v.procedure)), sanitizeName(v.Author1.NationalID), shortID)
}

// documentName is DOC_<tramite>_<programa>_<cedula>_<short-id>.<ext>.
func (v *validSubmission) documentName(shortID string) string {
	return fmt.Sprintf("DOC_%s_%s_%s_%s.%s",
		sanitizeName(string(v.procedure)),
		sanitizeName(v.Program),
		sanitizeName(v.Author1.NationalID),
		shortID,
		v.FinalDocument.Ext(),
	)
}

// sanitizeName strips diacritics and collapses anything outside
// [A-Za-z0-9-] into a single underscore.
func sanitizeName(raw string) string {
	var b strings.Builder
	for _, r := range norm.NFD.String(strings.TrimSpace(raw)) {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	out := strings.Trim(reUnsafeName.ReplaceAllString(b.String(), "_"), "_")
	if out == "" {
		return "sin_dato"
	}
	return out
}

func trimPerson(p models.Person) models.Person {
	return models.Person{
		NationalID: strings.TrimSpace(p.NationalID),
		Name:       strings.TrimSpace(p.Name),
		Phone:      strings.TrimSpace(p.Phone),
		Email:      strings.TrimSpace(p.Email),
	}
}

func containsProcess(list []models.Process, p models.Process) bool {
	for _, item := range list {
		if item == p {
			return true
		}
	}
	return false
}

func containsString(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}

func containsFold(list []string, value string) bool {
	return canonicalProgram(list, value) != ""
}

func canonicalProgram(list []string, value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	for _, item := range list {
		if strings.EqualFold(item, value) {
			return item
		}
	}
	return ""
}
