package domain_test

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/straye-as/project-access-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePayload_BOQImport(t *testing.T) {
	total := decimal.RequireFromString("1250.00")
	env, err := domain.EncodePayload(domain.BOQImportV1{
		BillNumber: 3,
		BillName:   "Lighting",
		Sections: []domain.BOQSectionV1{{
			Code: "3.1",
			Name: "Luminaires",
			Items: []domain.BOQItemV1{
				{Code: "3.1.1", Description: "LED panel", ItemType: domain.ItemTypeQuantity, Quantity: decimal.NewFromInt(10), SupplyRate: decimal.NewFromInt(100), InstallRate: decimal.NewFromInt(25), Total: &total},
			},
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PayloadBOQImport, env.Kind)
	assert.Equal(t, 1, env.SchemaVersion)

	decoded, err := domain.DecodePayload(env)
	require.NoError(t, err)
	boq, ok := decoded.(domain.BOQImportV1)
	require.True(t, ok)
	assert.Equal(t, "Lighting", boq.BillName)
	require.Len(t, boq.Sections[0].Items, 1)
	assert.True(t, total.Equal(*boq.Sections[0].Items[0].Total))
}

func TestDecodePayload_Rejects(t *testing.T) {
	tests := []struct {
		name string
		env  domain.PayloadEnvelope
		want error
	}{
		{"unknown kind", domain.PayloadEnvelope{Kind: "site_diary", SchemaVersion: 1, Data: json.RawMessage(`{}`)}, domain.ErrUnsupportedPayload},
		{"future version", domain.PayloadEnvelope{Kind: domain.PayloadMarkupData, SchemaVersion: 2, Data: json.RawMessage(`{}`)}, domain.ErrUnsupportedPayload},
		{"empty data", domain.PayloadEnvelope{Kind: domain.PayloadWorkforceDetails, SchemaVersion: 1}, domain.ErrMalformedPayload},
		{"wrong shape", domain.PayloadEnvelope{Kind: domain.PayloadWorkforceDetails, SchemaVersion: 1, Data: json.RawMessage(`{"crews":"three"}`)}, domain.ErrMalformedPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := domain.DecodePayload(tt.env)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
