// Package models defines the persisted entities.
package models

// All returns every model in migration order.
func All() []any {
	return []any{
		&User{},
		&Profile{},
		&ClientSequence{},
		&LabTestRequest{},
		&LabTestItem{},
		&ConsultancyRequest{},
	}
}
