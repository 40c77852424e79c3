package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/melafrancom/erp-bulonera/internal/calc"
	"github.com/melafrancom/erp-bulonera/internal/dto"
	"github.com/melafrancom/erp-bulonera/internal/model"
)

type conversionFixture struct {
	svc         ConversionService
	quotes      *quoteRepoStub
	sales       *saleRepoStub
	conversions *conversionRepoStub
	products    *productRepoStub
	notifier    *notifierStub
}

func newConversionFixture() *conversionFixture {
	customers := newCustomerRepoStub()
	f := &conversionFixture{
		quotes:      newQuoteRepoStub(customers),
		sales:       newSaleRepoStub(customers),
		conversions: newConversionRepoStub(),
		products:    newProductRepoStub(),
		notifier:    &notifierStub{},
	}
	f.svc = NewConversionService(f.quotes, f.sales, f.conversions, f.products, f.notifier)
	return f
}

// seedAcceptedQuote stores an accepted two-line quote valid until tomorrow.
func (f *conversionFixture) seedAcceptedQuote(t *testing.T) *model.Quote {
	t.Helper()
	tornillo := f.products.add(&model.Product{Code: "TOR-010", Name: "Tornillo 10mm", CurrentCost: dec("40.00")})
	tuerca := f.products.add(&model.Product{Code: "TUE-010", Name: "Tuerca 10mm", CurrentCost: dec("15.00")})

	quote := &model.Quote{
		Number:     "PRES-2026-00007",
		ValidUntil: time.Now().AddDate(0, 0, 1),
		Status:     model.QuoteAccepted,
		Notes:      "entrega en obra",
		Items: []model.QuoteItem{
			{
				ProductID:       tornillo.ID,
				Quantity:        dec("10"),
				UnitPrice:       dec("100.00"),
				DiscountType:    calc.DiscountNone,
				TaxPercentage:   dec("21"),
				LineOrder:       0,
				CalculationMode: model.ModePriceToTotal,
			},
			{
				ProductID:       tuerca.ID,
				Quantity:        dec("20"),
				UnitPrice:       dec("25.00"),
				DiscountType:    calc.DiscountNone,
				TaxPercentage:   dec("21"),
				LineOrder:       1,
				CalculationMode: model.ModePriceToTotal,
			},
		},
	}
	require.NoError(t, f.quotes.Create(context.Background(), nil, quote))
	return quote
}

func TestConvertCreatesSaleAndAuditRecord(t *testing.T) {
	f := newConversionFixture()
	quote := f.seedAcceptedQuote(t)
	actor := testActor()

	override := dto.PriceOverride{
		QuoteItemID: quote.Items[1].ID.String(),
		NewPrice:    dec("20.00"),
	}
	resp, err := f.svc.Convert(context.Background(), quote.ID, actor, []dto.PriceOverride{override})
	require.NoError(t, err)

	// sale: draft, linked back to the quote, counterparty and notes carried
	assert.Equal(t, "draft", resp.Status)
	assert.Equal(t, quote.ID.String(), resp.QuoteID)
	assert.Equal(t, "entrega en obra", resp.Notes)
	assert.Contains(t, resp.InternalNotes, "Convertido desde presupuesto PRES-2026-00007")
	require.Len(t, resp.Items, 2)

	// unmodified line keeps the quoted price, overridden one takes the new one
	assert.True(t, resp.Items[0].UnitPrice.Equal(dec("100.00")))
	assert.True(t, resp.Items[1].UnitPrice.Equal(dec("20.00")))
	assert.True(t, resp.Items[0].UnitCost.Equal(dec("40.00")))
	assert.True(t, resp.Items[1].UnitCost.Equal(dec("15.00")))

	// 10*100 + 20*20 = 1400, 21% tax on top
	assert.True(t, resp.Subtotal.Equal(dec("1400.00")), "subtotal %s", resp.Subtotal)
	assert.True(t, resp.Total.Equal(dec("1694.00")), "total %s", resp.Total)

	// quote ends up converted
	assert.Equal(t, model.QuoteConverted, f.quotes.quotes[quote.ID].Status)

	// audit record snapshots the original prices, not the overridden ones
	require.Len(t, f.conversions.records, 1)
	record := f.conversions.records[0]
	assert.Equal(t, quote.ID, record.QuoteID)
	assert.Equal(t, uuid.MustParse(resp.ID), record.SaleID)
	require.NotNil(t, record.ConvertedByID)
	assert.Equal(t, actor.ID, *record.ConvertedByID)

	var snapshot quoteSnapshot
	require.NoError(t, json.Unmarshal(record.OriginalQuoteData, &snapshot))
	assert.Equal(t, "PRES-2026-00007", snapshot.QuoteNumber)
	require.Len(t, snapshot.Items, 2)
	assert.Equal(t, "25", snapshot.Items[1].UnitPrice)

	var mods []dto.PriceOverride
	require.NoError(t, json.Unmarshal(record.Modifications, &mods))
	require.Len(t, mods, 1)
	assert.Equal(t, override.QuoteItemID, mods[0].QuoteItemID)

	require.Len(t, f.notifier.notices, 1)
}

func TestConvertWithoutModificationsStoresEmptyList(t *testing.T) {
	f := newConversionFixture()
	quote := f.seedAcceptedQuote(t)

	_, err := f.svc.Convert(context.Background(), quote.ID, testActor(), nil)
	require.NoError(t, err)

	require.Len(t, f.conversions.records, 1)
	assert.JSONEq(t, "[]", string(f.conversions.records[0].Modifications))
}

func TestConvertRejectsNonAcceptedQuote(t *testing.T) {
	f := newConversionFixture()
	quote := f.seedAcceptedQuote(t)
	f.quotes.quotes[quote.ID].Status = model.QuoteSent

	_, err := f.svc.Convert(context.Background(), quote.ID, testActor(), nil)
	var notConvertible *NotConvertibleError
	require.ErrorAs(t, err, &notConvertible)
	assert.Equal(t, model.QuoteSent, notConvertible.Status)

	// nothing was written
	assert.Empty(t, f.sales.sales)
	assert.Empty(t, f.conversions.records)
}

func TestConvertRejectsExpiredValidity(t *testing.T) {
	f := newConversionFixture()
	quote := f.seedAcceptedQuote(t)
	f.quotes.quotes[quote.ID].ValidUntil = time.Now().AddDate(0, 0, -1)

	_, err := f.svc.Convert(context.Background(), quote.ID, testActor(), nil)
	var notConvertible *NotConvertibleError
	require.ErrorAs(t, err, &notConvertible)
	assert.Empty(t, f.sales.sales)
}

func TestConvertRejectsForeignItemOverride(t *testing.T) {
	f := newConversionFixture()
	quote := f.seedAcceptedQuote(t)

	_, err := f.svc.Convert(context.Background(), quote.ID, testActor(), []dto.PriceOverride{{
		QuoteItemID: uuid.New().String(),
		NewPrice:    dec("1.00"),
	}})
	require.Error(t, err)
	assert.Empty(t, f.sales.sales)
}

func TestConvertTwiceFails(t *testing.T) {
	f := newConversionFixture()
	quote := f.seedAcceptedQuote(t)
	actor := testActor()

	_, err := f.svc.Convert(context.Background(), quote.ID, actor, nil)
	require.NoError(t, err)

	// first conversion left the quote in converted state
	_, err = f.svc.Convert(context.Background(), quote.ID, actor, nil)
	var notConvertible *NotConvertibleError
	require.ErrorAs(t, err, &notConvertible)
	assert.Len(t, f.sales.sales, 1)
	assert.Len(t, f.conversions.records, 1)
}

func TestConversionRecordLookup(t *testing.T) {
	f := newConversionFixture()
	quote := f.seedAcceptedQuote(t)

	sale, err := f.svc.Convert(context.Background(), quote.ID, testActor(), nil)
	require.NoError(t, err)

	record, err := f.svc.Record(context.Background(), quote.ID)
	require.NoError(t, err)
	assert.Equal(t, quote.ID.String(), record.QuoteID)
	assert.Equal(t, sale.ID, record.SaleID)
	assert.NotNil(t, record.OriginalQuoteData)
}
