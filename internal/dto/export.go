package dto

// RecordExportQuery selects the rendering of the record table.
type RecordExportQuery struct {
	Format string `form:"format" validate:"omitempty,oneof=xlsx csv pdf"`
}
