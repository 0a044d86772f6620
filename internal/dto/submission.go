package dto

import (
	"mime/multipart"
	"time"
)

// SubmissionForm binds the multipart intake form. Field names are the ones the
// student front-end posts.
type SubmissionForm struct {
	Procedure    string `form:"tramite"`
	Program      string `form:"programa"`
	Modality     string `form:"modalidad"`
	Title        string `form:"titulo"`
	ResearchLine string `form:"linea_investigacion"`

	Author1Name  string `form:"autor1_nombre"`
	Author1ID    string `form:"autor1_cedula"`
	Author1Email string `form:"autor1_correo"`
	Author1Phone string `form:"autor1_telefono"`

	Author2Name  string `form:"autor2_nombre"`
	Author2ID    string `form:"autor2_cedula"`
	Author2Email string `form:"autor2_correo"`
	Author2Phone string `form:"autor2_telefono"`

	TutorName  string `form:"tutor_nombre"`
	TutorID    string `form:"tutor_cedula"`
	TutorEmail string `form:"tutor_correo"`
	TutorPhone string `form:"tutor_telefono"`

	Author1EnrollmentForm   *multipart.FileHeader `form:"autor1_planilla"`
	Author1IDCopy           *multipart.FileHeader `form:"autor1_cedula_img"`
	Author1CommunityProof   *multipart.FileHeader `form:"autor1_constancia_comunidad"`
	Author1CommunityService *multipart.FileHeader `form:"autor1_servicio_comunitario"`
	Author1AcademicRecord   *multipart.FileHeader `form:"autor1_record_academico"`

	Author2EnrollmentForm   *multipart.FileHeader `form:"autor2_planilla"`
	Author2IDCopy           *multipart.FileHeader `form:"autor2_cedula_img"`
	Author2CommunityProof   *multipart.FileHeader `form:"autor2_constancia_comunidad"`
	Author2CommunityService *multipart.FileHeader `form:"autor2_servicio_comunitario"`
	Author2AcademicRecord   *multipart.FileHeader `form:"autor2_record_academico"`

	TutorAcceptanceLetter *multipart.FileHeader `form:"tutor_carta_aceptacion"`
	TutorIDCopy           *multipart.FileHeader `form:"tutor_cedula_img"`
	FitnessLetter         *multipart.FileHeader `form:"carta_apto_defensa"`
	FinalDocument         *multipart.FileHeader `form:"documento_final"`
}

// SubmissionResponse confirms an accepted submission.
type SubmissionResponse struct {
	ID               string     `json:"id"`
	Procedure        string     `json:"procedure"`
	RegisteredAt     string     `json:"registered_at"`
	DossierRef       string     `json:"dossier_ref"`
	DossierPages     int        `json:"dossier_pages"`
	DocumentRef      string     `json:"document_ref"`
	ReceiptURL       string     `json:"receipt_url,omitempty"`
	ReceiptExpiresAt *time.Time `json:"receipt_expires_at,omitempty"`
}
