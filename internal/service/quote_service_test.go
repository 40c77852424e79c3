package service

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/melafrancom/erp-bulonera/internal/dto"
	"github.com/melafrancom/erp-bulonera/internal/model"
)

func newQuoteFixture() (QuoteService, *quoteRepoStub, *customerRepoStub, *productRepoStub) {
	customers := newCustomerRepoStub()
	quotes := newQuoteRepoStub(customers)
	products := newProductRepoStub()
	return NewQuoteService(quotes, customers, products), quotes, customers, products
}

func testActor() Actor {
	return Actor{ID: uuid.New(), Username: "vendedor1"}
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestQuoteCreateComputesTotals(t *testing.T) {
	svc, _, customers, products := newQuoteFixture()
	customer := customers.add(&model.Customer{BusinessName: "Metalúrgica Sur SA", CuitCuil: "30-71234567-8"})
	tornillo := products.add(&model.Product{Code: "TOR-001", Name: "Tornillo hexagonal 8mm", CurrentPrice: dec("100.00")})
	customerID := customer.ID.String()

	resp, err := svc.Create(context.Background(), testActor(), dto.CreateQuoteRequest{
		CustomerID: &customerID,
		ValidUntil: "2026-12-31",
		Items: []dto.LineRequest{{
			ProductID:     tornillo.ID.String(),
			Quantity:      dec("10"),
			UnitPrice:     dec("100.00"),
			DiscountType:  "percentage",
			DiscountValue: dec("10"),
			TaxPercentage: dec("21"),
		}},
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(resp.Number, "PRES-"), "number %s", resp.Number)
	assert.Equal(t, "draft", resp.Status)
	assert.Equal(t, "Metalúrgica Sur SA", resp.Customer)
	require.Len(t, resp.Items, 1)

	assert.True(t, resp.Subtotal.Equal(dec("1000.00")), "subtotal %s", resp.Subtotal)
	assert.True(t, resp.Discount.Equal(dec("100.00")), "discount %s", resp.Discount)
	assert.True(t, resp.Tax.Equal(dec("189.00")), "tax %s", resp.Tax)
	assert.True(t, resp.Total.Equal(dec("1089.00")), "total %s", resp.Total)

	// price_to_total keeps target_total mirroring the computed line total
	require.NotNil(t, resp.Items[0].TargetTotal)
	assert.True(t, resp.Items[0].TargetTotal.Equal(dec("1089.00")))
}

func TestQuoteCreateDerivesPriceFromTarget(t *testing.T) {
	svc, _, _, products := newQuoteFixture()
	product := products.add(&model.Product{Code: "ARN-014", Name: "Arandela plana 14mm"})
	target := dec("1089.00")

	resp, err := svc.Create(context.Background(), testActor(), dto.CreateQuoteRequest{
		CustomerName: "Cliente Ocasional",
		ValidUntil:   "2026-12-31",
		Items: []dto.LineRequest{{
			ProductID:       product.ID.String(),
			Quantity:        dec("10"),
			DiscountType:    "percentage",
			DiscountValue:   dec("10"),
			TaxPercentage:   dec("21"),
			CalculationMode: "total_to_price",
			TargetTotal:     &target,
		}},
	})
	require.NoError(t, err)
	require.Len(t, resp.Items, 1)

	assert.True(t, resp.Items[0].UnitPrice.Equal(dec("100.00")), "unit price %s", resp.Items[0].UnitPrice)
	assert.True(t, resp.Total.Equal(dec("1089.00")), "total %s", resp.Total)
}

func TestQuoteCreateTargetModeRequiresTarget(t *testing.T) {
	svc, _, _, products := newQuoteFixture()
	product := products.add(&model.Product{Code: "TUE-010", Name: "Tuerca 10mm"})

	_, err := svc.Create(context.Background(), testActor(), dto.CreateQuoteRequest{
		CustomerName: "Cliente Ocasional",
		ValidUntil:   "2026-12-31",
		Items: []dto.LineRequest{{
			ProductID:       product.ID.String(),
			Quantity:        dec("5"),
			CalculationMode: "total_to_price",
		}},
	})
	require.ErrorIs(t, err, errTargetTotalRequired)
}

func TestQuoteCreateRequiresCounterparty(t *testing.T) {
	svc, _, _, _ := newQuoteFixture()

	_, err := svc.Create(context.Background(), testActor(), dto.CreateQuoteRequest{
		ValidUntil: "2026-12-31",
	})
	require.ErrorIs(t, err, errCounterpartyRequired)
}

func TestQuoteLineMutationsRecalculateTotals(t *testing.T) {
	svc, _, _, products := newQuoteFixture()
	bulon := products.add(&model.Product{Code: "BUL-012", Name: "Bulón 12mm"})

	resp, err := svc.Create(context.Background(), testActor(), dto.CreateQuoteRequest{
		CustomerName: "Cliente Ocasional",
		ValidUntil:   "2026-12-31",
	})
	require.NoError(t, err)
	quoteID := uuid.MustParse(resp.ID)
	assert.True(t, resp.Total.IsZero())

	resp, err = svc.AddLine(context.Background(), quoteID, dto.LineRequest{
		ProductID:     bulon.ID.String(),
		Quantity:      dec("4"),
		UnitPrice:     dec("50.00"),
		TaxPercentage: dec("21"),
	})
	require.NoError(t, err)
	require.Len(t, resp.Items, 1)
	assert.True(t, resp.Subtotal.Equal(dec("200.00")), "subtotal %s", resp.Subtotal)
	assert.True(t, resp.Total.Equal(dec("242.00")), "total %s", resp.Total)

	itemID := uuid.MustParse(resp.Items[0].ID)
	resp, err = svc.UpdateLine(context.Background(), quoteID, itemID, dto.LineRequest{
		ProductID:     bulon.ID.String(),
		Quantity:      dec("2"),
		UnitPrice:     dec("50.00"),
		TaxPercentage: dec("21"),
	})
	require.NoError(t, err)
	assert.True(t, resp.Subtotal.Equal(dec("100.00")), "subtotal %s", resp.Subtotal)
	assert.True(t, resp.Total.Equal(dec("121.00")), "total %s", resp.Total)

	// removing the last line zeroes the cached totals
	resp, err = svc.RemoveLine(context.Background(), quoteID, itemID)
	require.NoError(t, err)
	assert.Empty(t, resp.Items)
	assert.True(t, resp.Subtotal.IsZero())
	assert.True(t, resp.Discount.IsZero())
	assert.True(t, resp.Tax.IsZero())
	assert.True(t, resp.Total.IsZero())
}

func TestQuoteLineEditsRejectedOutsideDraftAndSent(t *testing.T) {
	svc, quotes, _, products := newQuoteFixture()
	product := products.add(&model.Product{Code: "VAR-001", Name: "Varilla roscada"})

	resp, err := svc.Create(context.Background(), testActor(), dto.CreateQuoteRequest{
		CustomerName: "Cliente Ocasional",
		ValidUntil:   "2026-12-31",
	})
	require.NoError(t, err)
	quoteID := uuid.MustParse(resp.ID)
	quotes.quotes[quoteID].Status = model.QuoteAccepted

	_, err = svc.AddLine(context.Background(), quoteID, dto.LineRequest{
		ProductID: product.ID.String(),
		Quantity:  dec("1"),
		UnitPrice: dec("10.00"),
	})
	var illegalErr *IllegalTransitionError
	require.ErrorAs(t, err, &illegalErr)
	assert.Equal(t, "accepted", illegalErr.Current)
}

func TestQuoteCancelAppendsReason(t *testing.T) {
	svc, quotes, _, _ := newQuoteFixture()
	actor := testActor()

	resp, err := svc.Create(context.Background(), actor, dto.CreateQuoteRequest{
		CustomerName: "Cliente Ocasional",
		ValidUntil:   "2026-12-31",
	})
	require.NoError(t, err)
	quoteID := uuid.MustParse(resp.ID)

	resp, err = svc.Transition(context.Background(), quoteID, actor, QuoteActionCancel, "el cliente desistió")
	require.NoError(t, err)
	assert.Equal(t, "cancelled", resp.Status)

	stored := quotes.quotes[quoteID]
	assert.Contains(t, stored.InternalNotes, "Cancelado por vendedor1")
	assert.Contains(t, stored.InternalNotes, "el cliente desistió")
}

func TestQuoteDeleteOnlyDraft(t *testing.T) {
	svc, quotes, _, _ := newQuoteFixture()
	actor := testActor()

	resp, err := svc.Create(context.Background(), actor, dto.CreateQuoteRequest{
		CustomerName: "Cliente Ocasional",
		ValidUntil:   "2026-12-31",
	})
	require.NoError(t, err)
	quoteID := uuid.MustParse(resp.ID)

	_, err = svc.Transition(context.Background(), quoteID, actor, QuoteActionSend, "")
	require.NoError(t, err)

	err = svc.Delete(context.Background(), quoteID)
	var illegalErr *IllegalTransitionError
	require.ErrorAs(t, err, &illegalErr)

	quotes.quotes[quoteID].Status = model.QuoteDraft
	require.NoError(t, svc.Delete(context.Background(), quoteID))
	_, err = svc.Get(context.Background(), quoteID)
	require.Error(t, err)
}
