package cart

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/rp-jtw/storefront/internal/apperr"
	"github.com/rp-jtw/storefront/internal/backend"
	"github.com/rp-jtw/storefront/internal/logging"
	"github.com/rp-jtw/storefront/internal/store"
)

type staticTokens map[string]string

func (s staticTokens) AccessToken(_ context.Context, sid string) (string, error) {
	tok, ok := s[sid]
	if !ok {
		return "", apperr.ErrNoToken
	}
	return tok, nil
}

type fakeBackend struct {
	mu       sync.Mutex
	lines    []backend.CartItem
	products map[string]backend.Product
	missing  map[string]bool
	inflight int32
	peak     int32
	gate     chan struct{}
	calls    int
	enquired []string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{products: map[string]backend.Product{}, missing: map[string]bool{}}
}

func (f *fakeBackend) cart() backend.Cart {
	out := make([]backend.CartItem, len(f.lines))
	copy(out, f.lines)
	return backend.Cart{Items: out}
}

func (f *fakeBackend) Cart(context.Context, string) (backend.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cart(), nil
}

func (f *fakeBackend) AddToCart(_ context.Context, _ string, id string, qty int) (backend.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	for i := range f.lines {
		if f.lines[i].ProductID == id {
			f.lines[i].Quantity += qty
			return f.cart(), nil
		}
	}
	f.lines = append(f.lines, backend.CartItem{ProductID: id, Quantity: qty})
	return f.cart(), nil
}

func (f *fakeBackend) RemoveFromCart(_ context.Context, _ string, id string) (backend.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.lines {
		if f.lines[i].ProductID == id {
			f.lines = append(f.lines[:i], f.lines[i+1:]...)
			return f.cart(), nil
		}
	}
	return backend.Cart{}, &apperr.RemoteError{Op: "remove item from cart", Status: http.StatusNotFound, Message: "Item not in cart"}
}

func (f *fakeBackend) ClearCart(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lines = nil
	return nil
}

func (f *fakeBackend) GenerateEnquiry(_ context.Context, token string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enquired = append(f.enquired, token)
	return "Enquiry generated", nil
}

func (f *fakeBackend) Product(_ context.Context, _ string, id string) (backend.Product, error) {
	n := atomic.AddInt32(&f.inflight, 1)
	for {
		peak := atomic.LoadInt32(&f.peak)
		if n <= peak || atomic.CompareAndSwapInt32(&f.peak, peak, n) {
			break
		}
	}
	defer atomic.AddInt32(&f.inflight, -1)
	if f.gate != nil {
		<-f.gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.missing[id] {
		return backend.Product{}, &apperr.RemoteError{Op: "fetch product", Status: http.StatusNotFound, Message: "Product not found"}
	}
	return f.products[id], nil
}

const sid = "s-1"

func newTestService(fb *fakeBackend) (*Service, store.Store) {
	st := store.NewMemory()
	return NewService(fb, staticTokens{sid: "tok"}, st, time.Hour, logging.Discard()), st
}

func TestAddValidatesBeforeNetwork(t *testing.T) {
	fb := newFakeBackend()
	svc, _ := newTestService(fb)
	ctx := context.Background()

	_, err := svc.Add(ctx, sid, " ", 1)
	require.True(t, apperr.IsValidation(err))
	_, err = svc.Add(ctx, sid, "p1", 0)
	require.True(t, apperr.IsValidation(err))
	require.Zero(t, fb.calls)
}

func TestAddRequiresSignedInSession(t *testing.T) {
	svc, _ := newTestService(newFakeBackend())
	_, err := svc.Add(context.Background(), "other", "p1", 1)
	require.ErrorIs(t, err, apperr.ErrNoToken)
}

func TestMutationsReplaceMirror(t *testing.T) {
	fb := newFakeBackend()
	svc, _ := newTestService(fb)
	ctx := context.Background()

	_, err := svc.Add(ctx, sid, "p1", 2)
	require.NoError(t, err)
	items, err := svc.Add(ctx, sid, "p2", 1)
	require.NoError(t, err)
	require.Len(t, items, 2)

	mirror, err := svc.Mirror(ctx, sid)
	require.NoError(t, err)
	require.Equal(t, items, mirror)

	items, err = svc.Clear(ctx, sid)
	require.NoError(t, err)
	require.Empty(t, items)
	mirror, err = svc.Mirror(ctx, sid)
	require.NoError(t, err)
	require.Empty(t, mirror)
}

func TestRemoveIsIdempotent(t *testing.T) {
	fb := newFakeBackend()
	svc, _ := newTestService(fb)
	ctx := context.Background()

	_, err := svc.Add(ctx, sid, "p1", 1)
	require.NoError(t, err)
	_, err = svc.Add(ctx, sid, "p2", 1)
	require.NoError(t, err)

	first, err := svc.Remove(ctx, sid, "p1")
	require.NoError(t, err)
	second, err := svc.Remove(ctx, sid, "p1")
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Len(t, second, 1)
	require.Equal(t, "p2", second[0].ProductID)
}

func TestEnrichPreservesOrderAndDegradesGaps(t *testing.T) {
	fb := newFakeBackend()
	fb.products["p1"] = backend.Product{ID: "p1", Name: "Ring", Price: backend.NumberPrice(500)}
	fb.products["p3"] = backend.Product{ID: "p3", Name: "Bangle", MakingChargesPerGram: 40, Weight: 10}
	fb.missing["p2"] = true
	fb.gate = make(chan struct{})
	svc, _ := newTestService(fb)

	stubs := []Item{{ProductID: "p1", Quantity: 1}, {ProductID: "p2", Quantity: 2}, {ProductID: "p3", Quantity: 1}}

	done := make(chan []Item)
	go func() { done <- svc.Enrich(context.Background(), sid, stubs) }()

	// every lookup is started before any is allowed to finish
	require.Eventually(t, func() bool { return atomic.LoadInt32(&fb.inflight) == 3 }, time.Second, time.Millisecond)
	close(fb.gate)
	out := <-done

	require.Equal(t, int32(3), atomic.LoadInt32(&fb.peak))
	require.Equal(t, []string{"p1", "p2", "p3"}, []string{out[0].ProductID, out[1].ProductID, out[2].ProductID})
	require.True(t, out[0].Enriched)
	require.Equal(t, "Ring", out[0].Name)
	require.False(t, out[1].Enriched)
	require.Equal(t, 2, out[1].Quantity)
	require.Equal(t, 400.0, ComputePrice(out[2]))
	require.Equal(t, 900.0, ComputeTotal(out))
}

func TestLoadPricesEnrichedCart(t *testing.T) {
	fb := newFakeBackend()
	fb.products["p1"] = backend.Product{ID: "p1", Name: "Ring", Price: backend.NumberPrice(100)}
	fb.products["p2"] = backend.Product{ID: "p2", Name: "Chain", Price: backend.TextPrice("₹50")}
	fb.lines = []backend.CartItem{{ProductID: "p1", Quantity: 2}, {ProductID: "p2", Quantity: 1}}
	svc, _ := newTestService(fb)

	view, err := svc.Load(context.Background(), sid)
	require.NoError(t, err)
	require.Equal(t, 250.0, view.Total)
	require.Equal(t, 3, view.Count)

	lines := Lines(view.Items)
	require.Equal(t, "Ring", lines[0].Name)
	require.Equal(t, 100.0, lines[0].UnitPrice)
}

func TestDropMirror(t *testing.T) {
	fb := newFakeBackend()
	svc, st := newTestService(fb)
	ctx := context.Background()

	_, err := svc.Add(ctx, sid, "p1", 1)
	require.NoError(t, err)
	require.NoError(t, svc.DropMirror(ctx, sid))

	_, err = st.Get(ctx, mirrorKey(sid))
	require.True(t, errors.Is(err, store.ErrNotFound))
}

func TestQuoteSheet(t *testing.T) {
	items := []Item{
		{ProductID: "p1", Name: "Ring", Purity: "22K", Weight: 4.5, Quantity: 2, Price: backend.NumberPrice(100)},
		{ProductID: "p2", Quantity: 1},
	}
	book, err := QuoteSheet(items)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(book))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(quoteSheetName)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	require.Equal(t, "Product", rows[0][1])
	require.Equal(t, []string{"1", "Ring", "p1", "22K", "4.5", "2", "100", "200"}, rows[1])
	require.Equal(t, "Product", rows[2][1])
	require.Equal(t, "Estimated Total", rows[3][6])
	require.Equal(t, "200", rows[3][7])
}

func TestGenerateEnquiryUsesSessionToken(t *testing.T) {
	fb := newFakeBackend()
	svc, _ := newTestService(fb)
	ctx := context.Background()

	msg, err := svc.GenerateEnquiry(ctx, sid)
	require.NoError(t, err)
	require.Equal(t, "Enquiry generated", msg)
	require.Equal(t, []string{"tok"}, fb.enquired)

	_, err = svc.GenerateEnquiry(ctx, "signed-out")
	require.ErrorIs(t, err, apperr.ErrNoToken)
	require.Len(t, fb.enquired, 1)
}
