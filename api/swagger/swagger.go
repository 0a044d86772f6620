package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "TEG Intake API",
        "description": "Enrollment intake for Proyecto and TEG submissions",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http",
        "https"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Enrollment", "description": "Student form and receipts"},
        {"name": "Admin", "description": "Coordinator panel"}
    ],
    "paths": {
        "/enrollment/status": {
            "get": {
                "tags": ["Enrollment"],
                "summary": "Procedures open today",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/submissions": {
            "post": {
                "tags": ["Enrollment"],
                "summary": "Submit an enrollment",
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "tramite", "in": "formData", "required": true, "type": "string", "enum": ["Proyecto", "TEG"]},
                    {"name": "programa", "in": "formData", "required": true, "type": "string"},
                    {"name": "modalidad", "in": "formData", "required": true, "type": "string", "enum": ["Individual", "Pareja"]},
                    {"name": "titulo", "in": "formData", "required": true, "type": "string"},
                    {"name": "linea_investigacion", "in": "formData", "type": "string"},
                    {"name": "autor1_nombre", "in": "formData", "type": "string"},
                    {"name": "autor1_cedula", "in": "formData", "required": true, "type": "string"},
                    {"name": "autor1_correo", "in": "formData", "type": "string"},
                    {"name": "autor1_telefono", "in": "formData", "type": "string"},
                    {"name": "autor2_nombre", "in": "formData", "type": "string"},
                    {"name": "autor2_cedula", "in": "formData", "type": "string"},
                    {"name": "autor2_correo", "in": "formData", "type": "string"},
                    {"name": "autor2_telefono", "in": "formData", "type": "string"},
                    {"name": "tutor_nombre", "in": "formData", "type": "string"},
                    {"name": "tutor_cedula", "in": "formData", "type": "string"},
                    {"name": "tutor_correo", "in": "formData", "type": "string"},
                    {"name": "tutor_telefono", "in": "formData", "type": "string"},
                    {"name": "autor1_planilla", "in": "formData", "type": "file"},
                    {"name": "autor1_cedula_img", "in": "formData", "type": "file"},
                    {"name": "autor1_constancia_comunidad", "in": "formData", "type": "file"},
                    {"name": "autor1_servicio_comunitario", "in": "formData", "type": "file"},
                    {"name": "autor1_record_academico", "in": "formData", "type": "file"},
                    {"name": "autor2_planilla", "in": "formData", "type": "file"},
                    {"name": "autor2_cedula_img", "in": "formData", "type": "file"},
                    {"name": "autor2_constancia_comunidad", "in": "formData", "type": "file"},
                    {"name": "autor2_servicio_comunitario", "in": "formData", "type": "file"},
                    {"name": "autor2_record_academico", "in": "formData", "type": "file"},
                    {"name": "tutor_carta_aceptacion", "in": "formData", "type": "file"},
                    {"name": "tutor_cedula_img", "in": "formData", "type": "file"},
                    {"name": "carta_apto_defensa", "in": "formData", "type": "file"},
                    {"name": "documento_final", "in": "formData", "required": true, "type": "file"}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation failed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Enrollment closed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "413": {"description": "Request too large", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "502": {"description": "Storage failure", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/receipts/{token}": {
            "get": {
                "tags": ["Enrollment"],
                "summary": "Download a submission receipt",
                "produces": ["application/pdf"],
                "parameters": [
                    {"name": "token", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "PDF receipt"},
                    "403": {"description": "Invalid or expired token", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/login": {
            "post": {
                "tags": ["Admin"],
                "summary": "Authenticate coordinator",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/windows": {
            "get": {
                "tags": ["Admin"],
                "summary": "List enrollment windows",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Admin"],
                "summary": "Replace enrollment windows",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateWindowsRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation failed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/records/export": {
            "get": {
                "tags": ["Admin"],
                "summary": "Download the record table",
                "security": [{"BearerAuth": []}],
                "produces": ["application/octet-stream"],
                "parameters": [
                    {"name": "format", "in": "query", "type": "string", "enum": ["xlsx", "csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "Rendered table"},
                    "404": {"description": "No submissions yet", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "properties": {
                "username": {"type": "string"},
                "password": {"type": "string"}
            },
            "required": ["username", "password"]
        },
        "WindowInput": {
            "type": "object",
            "properties": {
                "active": {"type": "boolean"},
                "start": {"type": "string", "format": "date"},
                "end": {"type": "string", "format": "date"}
            },
            "required": ["start", "end"]
        },
        "UpdateWindowsRequest": {
            "type": "object",
            "properties": {
                "proyecto": {"$ref": "#/definitions/WindowInput"},
                "teg": {"$ref": "#/definitions/WindowInput"}
            }
        },
        "FieldError": {
            "type": "object",
            "properties": {
                "field": {"type": "string"},
                "message": {"type": "string"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"},
                "details": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/FieldError"}
                }
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
