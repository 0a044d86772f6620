package dto

// WindowItem represents one enrollment window exposed via API.
type WindowItem struct {
	Process string `json:"process"`
	Active  bool   `json:"active"`
	Start   string `json:"start"`
	End     string `json:"end"`
	Open    bool   `json:"open"`
}

// WindowInput is the editable part of a window.
type WindowInput struct {
	Active bool   `json:"active"`
	Start  string `json:"start" validate:"required,datetime=2006-01-02"`
	End    string `json:"end" validate:"required,datetime=2006-01-02"`
}

// UpdateWindowsRequest replaces both windows at once.
type UpdateWindowsRequest struct {
	Project WindowInput `json:"proyecto"`
	Thesis  WindowInput `json:"teg"`
}

// WindowsResponse lists both windows. Warnings flag windows that can never
// open, such as a start date after the end date.
type WindowsResponse struct {
	Today    string       `json:"today"`
	Windows  []WindowItem `json:"windows"`
	Warnings []string     `json:"warnings,omitempty"`
}

// EnrollmentStatusResponse tells the student form what it may offer.
type EnrollmentStatusResponse struct {
	Open       bool     `json:"open"`
	Today      string   `json:"today"`
	Procedures []string `json:"procedures"`
	Programs   []string `json:"programs"`
	Modalities []string `json:"modalities"`
	Notice     string   `json:"notice,omitempty"`
}
