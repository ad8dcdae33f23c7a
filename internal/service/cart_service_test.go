package service

import (
	"context"
	"errors"
	"math"
	"testing"

	"storefront/internal/domain"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cartFixture struct {
	products *mockProductRepository
	carts    *mockCartRepository
	svc      CartService
	cartID   string
}

func newCartFixture(t *testing.T, opts CartServiceOptions) *cartFixture {
	t.Helper()
	products := newMockProductRepository()
	carts := newMockCartRepository()
	svc := NewCartService(carts, products, opts)

	cart, err := svc.CreateCart(context.Background())
	require.NoError(t, err)
	require.NotNil(t, cart.Lines)

	return &cartFixture{products: products, carts: carts, svc: svc, cartID: cart.ID}
}

func (f *cartFixture) product(title string) *domain.Product {
	return f.products.add(domain.ProductFields{Title: title, Code: title, Status: domain.ProductStatusAvailable})
}

// Feature: storefront, Property 9: Add-or-increment accumulates quantities
func TestProperty_AddAccumulates(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("repeated adds of one product keep one line with the summed quantity", prop.ForAll(
		func(quantities []int) bool {
			f := newCartFixture(t, CartServiceOptions{})
			ctx := context.Background()

			var lines []domain.CartLineItem
			var err error
			sum := 0
			for _, q := range quantities {
				sum += q
				lines, err = f.svc.AddProduct(ctx, f.cartID, "P1", q)
				if err != nil {
					return false
				}
			}
			return len(lines) == 1 && lines[0].Quantity == sum && lines[0].ProductID == "p1"
		},
		gen.SliceOfN(5, gen.IntRange(1, 50)).SuchThat(func(v []int) bool { return len(v) > 0 }),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// Feature: storefront, Property 10: Lines stay unique per product
func TestProperty_LinesStayUnique(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("any sequence of adds yields one line per distinct id in first-seen order", prop.ForAll(
		func(picks []int) bool {
			f := newCartFixture(t, CartServiceOptions{})
			ids := []string{"a", "B", "c", "A", "b"}

			var lines []domain.CartLineItem
			var err error
			order := []string{}
			seen := map[string]bool{}
			for _, p := range picks {
				id := ids[p]
				lines, err = f.svc.AddProduct(context.Background(), f.cartID, id, 1)
				if err != nil {
					return false
				}
				if c := domain.CanonicalID(id); !seen[c] {
					seen[c] = true
					order = append(order, c)
				}
			}

			if len(lines) != len(order) {
				return false
			}
			total := 0
			for i, line := range lines {
				if line.ProductID != order[i] {
					return false
				}
				total += line.Quantity
			}
			return total == len(picks)
		},
		gen.SliceOfN(12, gen.IntRange(0, 4)).SuchThat(func(v []int) bool { return len(v) > 0 }),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestAddAddRemove(t *testing.T) {
	f := newCartFixture(t, CartServiceOptions{})
	ctx := context.Background()

	lines, err := f.svc.AddProduct(ctx, f.cartID, "P1", 2)
	require.NoError(t, err)
	assert.Equal(t, []domain.CartLineItem{{ProductID: "p1", Quantity: 2}}, lines)

	lines, err = f.svc.AddProduct(ctx, f.cartID, "P1", 3)
	require.NoError(t, err)
	assert.Equal(t, []domain.CartLineItem{{ProductID: "p1", Quantity: 5}}, lines)

	lines, err = f.svc.RemoveProduct(ctx, f.cartID, "P1")
	require.NoError(t, err)
	assert.Empty(t, lines)
	assert.NotNil(t, lines)

	_, err = f.svc.RemoveProduct(ctx, f.cartID, "P1")
	assert.ErrorIs(t, err, ErrProductNotInCart)
}

func TestAddProduct_RejectsNonPositiveQuantity(t *testing.T) {
	f := newCartFixture(t, CartServiceOptions{})

	for _, q := range []int{0, -1} {
		_, err := f.svc.AddProduct(context.Background(), f.cartID, "p1", q)
		assert.ErrorIs(t, err, ErrInvalidQuantity)
	}
	assert.Zero(t, f.carts.saves)
}

func TestAddProduct_RejectsQuantityOverflow(t *testing.T) {
	f := newCartFixture(t, CartServiceOptions{})
	ctx := context.Background()

	_, err := f.svc.AddProduct(ctx, f.cartID, "p1", math.MaxInt)
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	lines, err := f.svc.AddProduct(ctx, f.cartID, "p1", MaxQuantity-1)
	require.NoError(t, err)
	require.Equal(t, []domain.CartLineItem{{ProductID: "p1", Quantity: MaxQuantity - 1}}, lines)

	lines, err = f.svc.AddProduct(ctx, f.cartID, "p1", 1)
	require.NoError(t, err)
	assert.Equal(t, MaxQuantity, lines[0].Quantity)

	saves := f.carts.saves
	_, err = f.svc.AddProduct(ctx, f.cartID, "p1", 2)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
	assert.Equal(t, saves, f.carts.saves)

	resolved, err := f.svc.GetCart(ctx, f.cartID)
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	assert.Equal(t, MaxQuantity, resolved[0].Quantity)

	_, err = f.svc.SetQuantity(ctx, f.cartID, "p1", MaxQuantity+1)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
	_, err = f.svc.ReplaceLines(ctx, f.cartID, []domain.CartLineItem{{ProductID: "p1", Quantity: MaxQuantity + 1}})
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestGetCart_ResolvesProducts(t *testing.T) {
	f := newCartFixture(t, CartServiceOptions{})
	ctx := context.Background()
	lamp := f.product("lamp")

	_, err := f.svc.AddProduct(ctx, f.cartID, lamp.ID, 1)
	require.NoError(t, err)
	_, err = f.svc.AddProduct(ctx, f.cartID, "gone", 4)
	require.NoError(t, err)

	resolved, err := f.svc.GetCart(ctx, f.cartID)
	require.NoError(t, err)
	require.Len(t, resolved, 2)
	assert.Same(t, lamp, resolved[0].Product)
	assert.Equal(t, 1, resolved[0].Quantity)
	assert.Nil(t, resolved[1].Product)
	assert.Equal(t, 4, resolved[1].Quantity)

	empty := newCartFixture(t, CartServiceOptions{})
	resolved, err = empty.svc.GetCart(ctx, empty.cartID)
	require.NoError(t, err)
	assert.NotNil(t, resolved)
	assert.Empty(t, resolved)
}

func TestReplaceLines_AllOrNothing(t *testing.T) {
	f := newCartFixture(t, CartServiceOptions{})
	ctx := context.Background()
	lamp := f.product("lamp")
	desk := f.product("desk")

	_, err := f.svc.AddProduct(ctx, f.cartID, lamp.ID, 1)
	require.NoError(t, err)
	savesBefore := f.carts.saves

	_, err = f.svc.ReplaceLines(ctx, f.cartID, []domain.CartLineItem{
		{ProductID: desk.ID, Quantity: 2},
		{ProductID: "nope", Quantity: 1},
		{ProductID: "also-nope", Quantity: 3},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidProducts)

	var invalid *InvalidProductsError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, []domain.CartLineItem{{ProductID: "nope", Quantity: 1}, {ProductID: "also-nope", Quantity: 3}}, invalid.Lines)

	assert.Equal(t, savesBefore, f.carts.saves)
	cart, err := f.carts.FindByID(ctx, f.cartID)
	require.NoError(t, err)
	assert.Equal(t, []domain.CartLineItem{{ProductID: lamp.ID, Quantity: 1}}, cart.Lines)

	lines, err := f.svc.ReplaceLines(ctx, f.cartID, []domain.CartLineItem{
		{ProductID: desk.ID, Quantity: 2},
		{ProductID: lamp.ID, Quantity: 9},
	})
	require.NoError(t, err)
	assert.Equal(t, []domain.CartLineItem{{ProductID: desk.ID, Quantity: 2}, {ProductID: lamp.ID, Quantity: 9}}, lines)

	lines, err = f.svc.ReplaceLines(ctx, f.cartID, []domain.CartLineItem{})
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestReplaceLines_RejectsBadLines(t *testing.T) {
	f := newCartFixture(t, CartServiceOptions{})
	ctx := context.Background()
	lamp := f.product("lamp")

	_, err := f.svc.ReplaceLines(ctx, f.cartID, []domain.CartLineItem{{ProductID: lamp.ID, Quantity: 0}})
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = f.svc.ReplaceLines(ctx, f.cartID, []domain.CartLineItem{
		{ProductID: lamp.ID, Quantity: 1},
		{ProductID: " " + lamp.ID, Quantity: 1},
	})
	assert.ErrorIs(t, err, ErrDuplicateLine)
	assert.Zero(t, f.carts.saves)
}

func TestSetQuantity_ReplacesRatherThanAdds(t *testing.T) {
	f := newCartFixture(t, CartServiceOptions{})
	ctx := context.Background()

	_, err := f.svc.SetQuantity(ctx, f.cartID, "p1", 3)
	assert.ErrorIs(t, err, ErrProductNotInCart)

	_, err = f.svc.AddProduct(ctx, f.cartID, "p1", 5)
	require.NoError(t, err)

	lines, err := f.svc.SetQuantity(ctx, f.cartID, "P1", 3)
	require.NoError(t, err)
	assert.Equal(t, []domain.CartLineItem{{ProductID: "p1", Quantity: 3}}, lines)

	_, err = f.svc.SetQuantity(ctx, f.cartID, "p1", 0)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestSetQuantity_MissingLineLeavesCartUnchanged(t *testing.T) {
	f := newCartFixture(t, CartServiceOptions{})
	ctx := context.Background()

	_, err := f.svc.AddProduct(ctx, f.cartID, "p1", 2)
	require.NoError(t, err)
	_, err = f.svc.AddProduct(ctx, f.cartID, "p2", 4)
	require.NoError(t, err)
	before, err := f.carts.FindByID(ctx, f.cartID)
	require.NoError(t, err)
	saves := f.carts.saves

	_, err = f.svc.SetQuantity(ctx, f.cartID, "p3", 9)
	assert.ErrorIs(t, err, ErrProductNotInCart)

	after, err := f.carts.FindByID(ctx, f.cartID)
	require.NoError(t, err)
	assert.Equal(t, before.Lines, after.Lines)
	assert.Equal(t, before.Version, after.Version)
	assert.Equal(t, saves, f.carts.saves)
}

func TestClearCart_Idempotent(t *testing.T) {
	f := newCartFixture(t, CartServiceOptions{})
	ctx := context.Background()

	_, err := f.svc.AddProduct(ctx, f.cartID, "p1", 1)
	require.NoError(t, err)

	require.NoError(t, f.svc.ClearCart(ctx, f.cartID))
	require.NoError(t, f.svc.ClearCart(ctx, f.cartID))

	resolved, err := f.svc.GetCart(ctx, f.cartID)
	require.NoError(t, err)
	assert.Empty(t, resolved)
}

func TestUnknownCartIsNotFound(t *testing.T) {
	f := newCartFixture(t, CartServiceOptions{})
	ctx := context.Background()

	_, err := f.svc.GetCart(ctx, "missing")
	assert.ErrorIs(t, err, ErrCartNotFound)
	_, err = f.svc.AddProduct(ctx, "missing", "p1", 1)
	assert.ErrorIs(t, err, ErrCartNotFound)
	_, err = f.svc.ReplaceLines(ctx, "missing", nil)
	assert.ErrorIs(t, err, ErrCartNotFound)
	_, err = f.svc.SetQuantity(ctx, "missing", "p1", 1)
	assert.ErrorIs(t, err, ErrCartNotFound)
	_, err = f.svc.RemoveProduct(ctx, "missing", "p1")
	assert.ErrorIs(t, err, ErrCartNotFound)
	assert.ErrorIs(t, f.svc.ClearCart(ctx, "missing"), ErrCartNotFound)
}

func TestCartIDMatchingIsCanonical(t *testing.T) {
	f := newCartFixture(t, CartServiceOptions{})

	_, err := f.svc.AddProduct(context.Background(), " "+f.cartID+" ", "p1", 1)
	assert.NoError(t, err)
}

// interleave simulates a concurrent writer landing between read and save
func interleave(f *cartFixture) {
	fired := false
	f.carts.beforeSave = func(id string) {
		if fired {
			return
		}
		fired = true
		stored := f.carts.carts[domain.CanonicalID(id)]
		stored.Lines = append(stored.Lines, domain.CartLineItem{ProductID: "other", Quantity: 1})
		stored.Version++
	}
}

func TestConcurrentEdit_LastWriterWinsByDefault(t *testing.T) {
	f := newCartFixture(t, CartServiceOptions{})
	interleave(f)

	lines, err := f.svc.AddProduct(context.Background(), f.cartID, "p1", 1)
	require.NoError(t, err)
	assert.Equal(t, []domain.CartLineItem{{ProductID: "p1", Quantity: 1}}, lines)
}

func TestConcurrentEdit_OptimisticLockingRejects(t *testing.T) {
	f := newCartFixture(t, CartServiceOptions{OptimisticLocking: true})
	interleave(f)

	_, err := f.svc.AddProduct(context.Background(), f.cartID, "p1", 1)
	assert.ErrorIs(t, err, ErrConcurrentUpdate)

	lines, err := f.svc.AddProduct(context.Background(), f.cartID, "p1", 1)
	require.NoError(t, err)
	assert.Equal(t, []domain.CartLineItem{{ProductID: "other", Quantity: 1}, {ProductID: "p1", Quantity: 1}}, lines)
}
