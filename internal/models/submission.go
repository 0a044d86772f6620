package models

import "time"

// Modality is the authorship arrangement of a submission.
type Modality string

const (
	ModalityIndividual Modality = "Individual"
	ModalityPaired     Modality = "Pareja"
)

// ParseModality validates a modality name.
func ParseModality(raw string) (Modality, bool) {
	switch Modality(raw) {
	case ModalityIndividual, ModalityPaired:
		return Modality(raw), true
	}
	return "", false
}

// NoDossierMarker replaces the dossier reference when no supporting image
// could be assembled.
const NoDossierMarker = "N/A (Sin soportes)"

// RegisteredAtLayout formats FECHA_REGISTRO.
const RegisteredAtLayout = "2006-01-02 15:04"

// RecordColumns is the fixed, externally visible column order of the record
// table. Tutor contact columns trail the original local layout so that older
// tables only ever gain columns at the end.
var RecordColumns = []string{
	"FECHA_REGISTRO",
	"PROGRAMA_ACADEMICO",
	"TIPO_TRAMITE",
	"MODALIDAD",
	"TITULO_PROYECTO",
	"LINEA_INVESTIGACION",
	"AUTOR1_CEDULA",
	"AUTOR1_NOMBRE",
	"AUTOR1_TLF",
	"AUTOR1_CORREO",
	"AUTOR2_CEDULA",
	"AUTOR2_NOMBRE",
	"AUTOR2_TLF",
	"AUTOR2_CORREO",
	"TUTOR_NOMBRE",
	"TUTOR_CEDULA",
	"RUTA_EXPEDIENTE",
	"RUTA_TRABAJO",
	"TUTOR_CORREO",
	"TUTOR_TLF",
}

// Person groups the identity and contact fields of an author or tutor.
type Person struct {
	NationalID string `json:"cedula"`
	Name       string `json:"nombre"`
	Phone      string `json:"telefono"`
	Email      string `json:"correo"`
}

// SubmissionRecord is one appended row. It is never updated or deleted.
type SubmissionRecord struct {
	RegisteredAt time.Time
	Program      string
	Procedure    Process
	Modality     Modality
	Title        string
	ResearchLine string
	Author1      Person
	Author2      Person
	Tutor        Person
	DossierRef   string
	DocumentRef  string
}

// Values renders the record in RecordColumns order.
func (r SubmissionRecord) Values() []string {
	return []string{
		r.RegisteredAt.Format(RegisteredAtLayout),
		r.Program,
		string(r.Procedure),
		string(r.Modality),
		r.Title,
		r.ResearchLine,
		r.Author1.NationalID,
		r.Author1.Name,
		r.Author1.Phone,
		r.Author1.Email,
		r.Author2.NationalID,
		r.Author2.Name,
		r.Author2.Phone,
		r.Author2.Email,
		r.Tutor.Name,
		r.Tutor.NationalID,
		r.DossierValue(),
		r.DocumentRef,
		r.Tutor.Email,
		r.Tutor.Phone,
	}
}

// DossierValue is RUTA_EXPEDIENTE: the dossier reference or the no-dossier
// marker.
func (r SubmissionRecord) DossierValue() string {
	if r.DossierRef == "" {
		return NoDossierMarker
	}
	return r.DossierRef
}
