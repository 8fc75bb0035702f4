package domain

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// PayloadKind names a structured document type carried in an envelope
type PayloadKind string

const (
	PayloadBOQImport        PayloadKind = "boq_import"
	PayloadWorkforceDetails PayloadKind = "workforce_details"
	PayloadMarkupData       PayloadKind = "markup_data"
)

var (
	// ErrUnsupportedPayload is returned for an unknown kind or schema version
	ErrUnsupportedPayload = errors.New("unsupported payload")
	// ErrMalformedPayload is returned when the data does not match its declared kind
	ErrMalformedPayload = errors.New("malformed payload")
)

// PayloadEnvelope is the wire shape of every structured document
type PayloadEnvelope struct {
	Kind          PayloadKind     `json:"kind" validate:"required"`
	SchemaVersion int             `json:"schemaVersion" validate:"required,gte=1"`
	Data          json.RawMessage `json:"data" validate:"required"`
}

// Payload is implemented by every decoded document variant
type Payload interface {
	PayloadKind() PayloadKind
	SchemaVersion() int
}

// BOQImportV1 is a bill of quantities extracted from a tender document
type BOQImportV1 struct {
	BillNumber int              `json:"billNumber"`
	BillName   string           `json:"billName"`
	Sections   []BOQSectionV1   `json:"sections"`
	Currency   string           `json:"currency,omitempty"`
	Source     *BOQSourceInfoV1 `json:"source,omitempty"`
}

// BOQSourceInfoV1 describes where an import came from
type BOQSourceInfoV1 struct {
	FileName string `json:"fileName"`
	Sheet    string `json:"sheet,omitempty"`
}

// BOQSectionV1 is a section of an imported bill
type BOQSectionV1 struct {
	Code  string      `json:"code"`
	Name  string      `json:"name"`
	Items []BOQItemV1 `json:"items"`
}

// BOQItemV1 is an imported line item. Total, when non-zero, is kept verbatim.
type BOQItemV1 struct {
	Code            string           `json:"code"`
	Description     string           `json:"description"`
	ItemType        ItemType         `json:"itemType"`
	Unit            string           `json:"unit,omitempty"`
	Quantity        decimal.Decimal  `json:"quantity"`
	SupplyRate      decimal.Decimal  `json:"supplyRate"`
	InstallRate     decimal.Decimal  `json:"installRate"`
	PrimeCostAmount decimal.Decimal  `json:"primeCostAmount"`
	Percentage      decimal.Decimal  `json:"percentage"`
	ReferenceCode   string           `json:"referenceCode,omitempty"`
	Total           *decimal.Decimal `json:"total,omitempty"`
}

func (BOQImportV1) PayloadKind() PayloadKind { return PayloadBOQImport }
func (BOQImportV1) SchemaVersion() int       { return 1 }

// WorkforceDetailsV1 describes crew allocation on site
type WorkforceDetailsV1 struct {
	Crews []WorkforceCrewV1 `json:"crews"`
}

// WorkforceCrewV1 is one crew on site
type WorkforceCrewV1 struct {
	Trade     string `json:"trade"`
	Headcount int    `json:"headcount"`
	Foreman   string `json:"foreman,omitempty"`
}

func (WorkforceDetailsV1) PayloadKind() PayloadKind { return PayloadWorkforceDetails }
func (WorkforceDetailsV1) SchemaVersion() int       { return 1 }

// MarkupDataV1 holds drawing annotations
type MarkupDataV1 struct {
	DrawingRef  string          `json:"drawingRef"`
	Annotations []MarkupShapeV1 `json:"annotations"`
}

// MarkupShapeV1 is a single annotation on a drawing
type MarkupShapeV1 struct {
	Shape  string    `json:"shape"`
	Points []float64 `json:"points"`
	Label  string    `json:"label,omitempty"`
}

func (MarkupDataV1) PayloadKind() PayloadKind { return PayloadMarkupData }
func (MarkupDataV1) SchemaVersion() int       { return 1 }

type payloadKey struct {
	kind    PayloadKind
	version int
}

var payloadDecoders = map[payloadKey]func(json.RawMessage) (Payload, error){
	{PayloadBOQImport, 1}:        decodeInto[BOQImportV1],
	{PayloadWorkforceDetails, 1}: decodeInto[WorkforceDetailsV1],
	{PayloadMarkupData, 1}:       decodeInto[MarkupDataV1],
}

func decodeInto[T Payload](data json.RawMessage) (Payload, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return v, nil
}

// DecodePayload turns an envelope into its typed variant
func DecodePayload(env PayloadEnvelope) (Payload, error) {
	decode, ok := payloadDecoders[payloadKey{env.Kind, env.SchemaVersion}]
	if !ok {
		return nil, fmt.Errorf("%w: %s v%d", ErrUnsupportedPayload, env.Kind, env.SchemaVersion)
	}
	if len(env.Data) == 0 {
		return nil, fmt.Errorf("%w: empty data", ErrMalformedPayload)
	}
	return decode(env.Data)
}

// EncodePayload wraps a typed variant in its envelope
func EncodePayload(p Payload) (PayloadEnvelope, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return PayloadEnvelope{}, fmt.Errorf("failed to encode %s payload: %w", p.PayloadKind(), err)
	}
	return PayloadEnvelope{Kind: p.PayloadKind(), SchemaVersion: p.SchemaVersion(), Data: data}, nil
}
