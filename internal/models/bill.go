package models

import "fmt"

// ParseRequest carries one uploaded receipt image to the parse service.
type ParseRequest struct {
	FileName   string
	FileFormat string
	FileBase64 string
}

func (r ParseRequest) Validate() error {
	if r.FileBase64 == "" {
		return fmt.Errorf("file_base64 is empty")
	}
	if r.FileFormat == "" {
		return fmt.Errorf("file_format is empty")
	}
	return nil
}

// Bill is the shape the model is asked to reply with. The endpoint returns
// the model text as is; this type only documents it and backs optional
// reply validation.
type Bill struct {
	Items    []BillItem `json:"items"`
	Total    float64    `json:"total" example:"12.5"`
	Currency string     `json:"currency" example:"USD"`
	Date     string     `json:"date" example:"2024-01-15"`
	Merchant string     `json:"merchant" example:"Corner Cafe"`
}

type BillItem struct {
	Name     string  `json:"name" example:"Latte"`
	Quantity float64 `json:"quantity" example:"2"`
	Price    float64 `json:"price" example:"4.25"`
}

type ErrorResponse struct {
	Error string `json:"error" example:"No image provided"`
}

type StreamChunk struct {
	Delta string `json:"delta,omitempty"`
	Done  bool   `json:"done,omitempty"`
	Err   error  `json:"-"`
}
