package orders

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/sitestock/sitestock/internal/purchasing"
	"github.com/sitestock/sitestock/internal/shared"
)

type memoryOrderRepo struct {
	mu         sync.Mutex
	lines      map[int64]purchasing.Line
	orders     map[int64]Order
	items      map[int64][]Item
	nextID     int64
	failInsert error
}

type memoryOrderTx struct {
	repo *memoryOrderRepo
}

func newMemoryOrderRepo(lines ...purchasing.Line) *memoryOrderRepo {
	repo := &memoryOrderRepo{
		lines:  make(map[int64]purchasing.Line),
		orders: make(map[int64]Order),
		items:  make(map[int64][]Item),
		nextID: 1000,
	}
	for _, line := range lines {
		repo.lines[line.ID] = line
	}
	return repo
}

func (r *memoryOrderRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	orders := make(map[int64]Order, len(r.orders))
	for id, o := range r.orders {
		orders[id] = o
	}
	items := make(map[int64][]Item, len(r.items))
	for id, list := range r.items {
		items[id] = append([]Item(nil), list...)
	}
	nextID := r.nextID
	if err := fn(ctx, &memoryOrderTx{repo: r}); err != nil {
		r.orders, r.items, r.nextID = orders, items, nextID
		return err
	}
	return nil
}

func (r *memoryOrderRepo) load(id int64) (Order, error) {
	o, ok := r.orders[id]
	if !ok {
		return Order{}, ErrOrderNotFound.With("order_id", id)
	}
	o.Items = append([]Item{}, r.items[id]...)
	o.Total = orderTotal(o.Items)
	return o, nil
}

func (r *memoryOrderRepo) GetOrder(ctx context.Context, id int64) (Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load(id)
}

func (r *memoryOrderRepo) ListOrders(ctx context.Context, projectID int64, filters ListFilters) ([]Order, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Order
	for id := int64(1001); id <= r.nextID; id++ {
		o, err := r.load(id)
		if err != nil || o.ProjectID != projectID {
			continue
		}
		if filters.SupplierID > 0 && o.SupplierID != filters.SupplierID {
			continue
		}
		if filters.Status != "" && o.Status != filters.Status {
			continue
		}
		out = append(out, o)
	}
	return out, len(out), nil
}

func (r *memoryOrderRepo) orderedTotal(lineID int64) decimal.Decimal {
	total := decimal.Zero
	for orderID, list := range r.items {
		if r.orders[orderID].Status == StatusCancelled {
			continue
		}
		for _, item := range list {
			if item.RequestItemID == lineID {
				total = total.Add(item.Quantity)
			}
		}
	}
	return total
}

func (tx *memoryOrderTx) LockLines(ctx context.Context, ids []int64) (map[int64]purchasing.Line, error) {
	out := make(map[int64]purchasing.Line, len(ids))
	for _, id := range ids {
		line, ok := tx.repo.lines[id]
		if !ok {
			continue
		}
		line.TotalOrdered = tx.repo.orderedTotal(id)
		line.RemainingQuantity = purchasing.Remaining(line.RequestedQuantity, line.TotalOrdered)
		out[id] = line
	}
	return out, nil
}

func (tx *memoryOrderTx) CreateOrder(ctx context.Context, o Order) (Order, error) {
	tx.repo.nextID++
	o.ID = tx.repo.nextID
	o.CreatedAt = time.Now()
	tx.repo.orders[o.ID] = o
	return o, nil
}

func (tx *memoryOrderTx) InsertItem(ctx context.Context, item Item) (Item, error) {
	if tx.repo.failInsert != nil {
		return Item{}, tx.repo.failInsert
	}
	tx.repo.nextID++
	item.ID = tx.repo.nextID
	tx.repo.items[item.OrderID] = append(tx.repo.items[item.OrderID], item)
	return item, nil
}

func (tx *memoryOrderTx) LockOrder(ctx context.Context, id int64) (Order, error) {
	return tx.repo.load(id)
}

func (tx *memoryOrderTx) UpdateOrderStatus(ctx context.Context, id int64, status Status) error {
	o := tx.repo.orders[id]
	o.Status = status
	tx.repo.orders[id] = o
	return nil
}

func (r *memoryOrderRepo) deliver(orderID int64, qty decimal.Decimal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.items[orderID]
	list[0].DeliveredQuantity = qty
	list[0].Status = ItemStatusFor(qty, list[0].Quantity)
	o := r.orders[orderID]
	o.Status = DeriveStatus(o.Status, list)
	r.orders[orderID] = o
}

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func strPtr(s string) *string { return &s }

func decPtr(v string) *decimal.Decimal {
	x := d(v)
	return &x
}

var agent = shared.Actor{UserID: 13, RoleID: 4}

func approvedLines() []purchasing.Line {
	return []purchasing.Line{
		{ID: 1, RequestID: 10, ProjectID: 7, RequestStatus: "APPROVED", MaterialID: 100, UnitID: 3, RequestedQuantity: d("100"), Price: decPtr("2.50"), Currency: strPtr("EUR")},
		{ID: 2, RequestID: 10, ProjectID: 7, RequestStatus: "APPROVED", MaterialID: 101, UnitID: 3, RequestedQuantity: d("10")},
		{ID: 3, RequestID: 11, ProjectID: 7, RequestStatus: "PENDING_APPROVAL", MaterialID: 100, UnitID: 3, RequestedQuantity: d("5")},
		{ID: 4, RequestID: 12, ProjectID: 8, RequestStatus: "APPROVED", MaterialID: 100, UnitID: 3, RequestedQuantity: d("5")},
		{ID: 5, RequestID: 13, ProjectID: 7, RequestStatus: "APPROVED", MaterialID: 102, UnitID: 1, RequestedQuantity: d("8"), Price: decPtr("1"), Currency: strPtr("USD")},
	}
}

func order(lineID int64, quantity string) CreateInput {
	return CreateInput{
		ProjectID:  7,
		SupplierID: 55,
		Selections: []Selection{{RequestItemID: lineID, Quantity: d(quantity)}},
	}
}

func TestOrderingUpToRemaining(t *testing.T) {
	repo := newMemoryOrderRepo(approvedLines()...)
	svc := NewService(repo, nil, nil, "EUR")
	ctx := context.Background()

	first, err := svc.CreateOrder(ctx, agent, order(1, "60"))
	require.NoError(t, err)
	require.Equal(t, StatusCreated, first.Status)
	require.Len(t, first.Items, 1)
	require.Equal(t, ItemOrdered, first.Items[0].Status)
	require.True(t, first.Items[0].DeliveredQuantity.IsZero())
	require.True(t, first.Items[0].Sum.Equal(d("150")))
	require.Equal(t, "EUR", first.Currency)

	_, err = svc.CreateOrder(ctx, agent, order(1, "50"))
	require.ErrorIs(t, err, ErrOverOrdering)
	var de *shared.Error
	require.True(t, errors.As(err, &de))
	require.Equal(t, "40", de.Details["remaining"])
	require.Equal(t, "100", de.Details["material_id"])
	require.Equal(t, "1", de.Details["request_item_id"])

	_, err = svc.CreateOrder(ctx, agent, order(1, "40"))
	require.NoError(t, err)

	_, err = svc.CreateOrder(ctx, agent, order(1, "0.0001"))
	require.ErrorIs(t, err, ErrOverOrdering)
}

func TestDuplicateSelectionsAreSummed(t *testing.T) {
	repo := newMemoryOrderRepo(approvedLines()...)
	svc := NewService(repo, nil, nil, "EUR")

	input := order(1, "60")
	input.Selections = append(input.Selections, Selection{RequestItemID: 1, Quantity: d("41")})
	_, err := svc.CreateOrder(context.Background(), agent, input)
	require.ErrorIs(t, err, ErrOverOrdering)
	require.Empty(t, repo.orders)
}

func TestCreateOrderValidation(t *testing.T) {
	repo := newMemoryOrderRepo(approvedLines()...)
	svc := NewService(repo, nil, nil, "EUR")
	ctx := context.Background()

	_, err := svc.CreateOrder(ctx, agent, order(1, "0"))
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = svc.CreateOrder(ctx, agent, order(1, "-3"))
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = svc.CreateOrder(ctx, agent, order(1, "0.00004"))
	require.ErrorIs(t, err, ErrInvalidQuantity)
	var de *shared.Error
	require.ErrorAs(t, err, &de)
	require.Equal(t, "1", de.Details["request_item_id"])

	finePrice := order(1, "1")
	finePrice.Selections[0].Price = d("0.00001")
	_, err = svc.CreateOrder(ctx, agent, finePrice)
	require.ErrorIs(t, err, purchasing.ErrInvalidPrice)
	require.NotErrorIs(t, err, ErrPriceRequired)

	_, err = svc.CreateOrder(ctx, agent, CreateInput{ProjectID: 7, SupplierID: 55})
	require.ErrorIs(t, err, ErrEmptyOrder)

	noSupplier := order(1, "1")
	noSupplier.SupplierID = 0
	_, err = svc.CreateOrder(ctx, agent, noSupplier)
	require.ErrorIs(t, err, ErrInvalidSupplier)

	_, err = svc.CreateOrder(ctx, agent, order(3, "1"))
	require.ErrorIs(t, err, ErrInvalidLineForProject)

	_, err = svc.CreateOrder(ctx, agent, order(4, "1"))
	require.ErrorIs(t, err, ErrInvalidLineForProject)

	_, err = svc.CreateOrder(ctx, agent, order(999, "1"))
	require.ErrorIs(t, err, ErrInvalidLineForProject)

	_, err = svc.CreateOrder(ctx, agent, order(2, "1"))
	require.ErrorIs(t, err, ErrPriceRequired)

	badCurrency := order(1, "1")
	badCurrency.Currency = "XYZW"
	_, err = svc.CreateOrder(ctx, agent, badCurrency)
	require.ErrorIs(t, err, purchasing.ErrInvalidCurrency)

	require.Empty(t, repo.orders)
}

func TestCreateOrderIsAllOrNothing(t *testing.T) {
	repo := newMemoryOrderRepo(approvedLines()...)
	svc := NewService(repo, nil, nil, "EUR")
	ctx := context.Background()

	input := CreateInput{
		ProjectID:  7,
		SupplierID: 55,
		Selections: []Selection{
			{RequestItemID: 1, Quantity: d("10")},
			{RequestItemID: 2, Quantity: d("11"), Price: d("3")},
		},
	}
	_, err := svc.CreateOrder(ctx, agent, input)
	require.ErrorIs(t, err, ErrOverOrdering)
	require.Empty(t, repo.orders)
	require.Empty(t, repo.items)

	repo.failInsert = errors.New("disk full")
	input.Selections[1].Quantity = d("5")
	_, err = svc.CreateOrder(ctx, agent, input)
	require.Error(t, err)
	require.Empty(t, repo.orders)
}

func TestExplicitPriceAndCurrency(t *testing.T) {
	repo := newMemoryOrderRepo(approvedLines()...)
	svc := NewService(repo, nil, nil, "EUR")
	ctx := context.Background()

	input := CreateInput{
		ProjectID:  7,
		SupplierID: 55,
		Selections: []Selection{
			{RequestItemID: 1, Quantity: d("3"), Price: d("1.005")},
			{RequestItemID: 2, Quantity: d("2"), Price: d("10")},
		},
	}
	o, err := svc.CreateOrder(ctx, agent, input)
	require.NoError(t, err)
	require.True(t, o.Items[0].Sum.Equal(d("3.02")))
	require.True(t, o.Total.Equal(d("23.02")))

	mixed := CreateInput{
		ProjectID:  7,
		SupplierID: 55,
		Selections: []Selection{{RequestItemID: 1, Quantity: d("1")}, {RequestItemID: 5, Quantity: d("1")}},
	}
	_, err = svc.CreateOrder(ctx, agent, mixed)
	require.ErrorIs(t, err, ErrCurrencyMismatch)

	usd := order(1, "1")
	usd.Currency = "usd"
	_, err = svc.CreateOrder(ctx, agent, usd)
	require.ErrorIs(t, err, ErrCurrencyMismatch)
}

func TestConcurrentOrdersNeverOverOrder(t *testing.T) {
	repo := newMemoryOrderRepo(approvedLines()...)
	svc := NewService(repo, nil, nil, "EUR")
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]Order, 8)
	errs := make([]error, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.CreateOrder(ctx, agent, order(1, "30"))
		}(i)
	}
	wg.Wait()

	accepted := decimal.Zero
	for i, err := range errs {
		if err != nil {
			require.ErrorIs(t, err, ErrOverOrdering)
			continue
		}
		accepted = accepted.Add(results[i].Items[0].Quantity)
	}
	require.True(t, accepted.Equal(d("90")), accepted.String())
}

func TestCancelOrderReturnsQuantity(t *testing.T) {
	repo := newMemoryOrderRepo(approvedLines()...)
	svc := NewService(repo, nil, nil, "EUR")
	ctx := context.Background()

	o, err := svc.CreateOrder(ctx, agent, order(1, "100"))
	require.NoError(t, err)
	_, err = svc.CreateOrder(ctx, agent, order(1, "1"))
	require.ErrorIs(t, err, ErrOverOrdering)

	cancelled, err := svc.CancelOrder(ctx, agent, o.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, cancelled.Status)

	_, err = svc.CancelOrder(ctx, agent, o.ID)
	require.ErrorIs(t, err, ErrOrderNotCancellable)

	second, err := svc.CreateOrder(ctx, agent, order(1, "100"))
	require.NoError(t, err)

	repo.deliver(second.ID, d("1"))
	_, err = svc.CancelOrder(ctx, agent, second.ID)
	require.ErrorIs(t, err, ErrOrderNotCancellable)

	_, err = svc.CancelOrder(ctx, agent, 424242)
	require.ErrorIs(t, err, ErrOrderNotFound)
}

func TestListOrdersFilters(t *testing.T) {
	repo := newMemoryOrderRepo(approvedLines()...)
	svc := NewService(repo, nil, nil, "EUR")
	ctx := context.Background()

	_, err := svc.CreateOrder(ctx, agent, order(1, "10"))
	require.NoError(t, err)
	other := order(1, "10")
	other.SupplierID = 56
	_, err = svc.CreateOrder(ctx, agent, other)
	require.NoError(t, err)

	list, total, err := svc.ListOrders(ctx, 7, ListFilters{SupplierID: 56})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Equal(t, int64(56), list[0].SupplierID)

	_, _, err = svc.ListOrders(ctx, 7, ListFilters{Status: "SHIPPED"})
	require.ErrorIs(t, err, ErrInvalidStatus)
}

func TestDeriveStatus(t *testing.T) {
	items := []Item{
		{Quantity: d("10"), DeliveredQuantity: d("0")},
		{Quantity: d("5"), DeliveredQuantity: d("0")},
	}
	require.Equal(t, StatusCreated, DeriveStatus(StatusCreated, items))

	items[0].DeliveredQuantity = d("4")
	require.Equal(t, StatusPartiallyDelivered, DeriveStatus(StatusCreated, items))

	items[0].DeliveredQuantity = d("10")
	require.Equal(t, StatusPartiallyDelivered, DeriveStatus(StatusCreated, items))

	items[1].DeliveredQuantity = d("5")
	require.Equal(t, StatusDelivered, DeriveStatus(StatusPartiallyDelivered, items))
	require.Equal(t, StatusCancelled, DeriveStatus(StatusCancelled, items))
}

func TestItemStatusFor(t *testing.T) {
	require.Equal(t, ItemOrdered, ItemStatusFor(decimal.Zero, d("40")))
	require.Equal(t, ItemPartiallyReceived, ItemStatusFor(d("30"), d("40")))
	require.Equal(t, ItemReceived, ItemStatusFor(d("40"), d("40")))
}

func TestLineSumRounding(t *testing.T) {
	require.True(t, LineSum(d("0.333"), d("3")).Equal(d("1")))
	require.True(t, LineSum(d("19.99"), d("2.5")).Equal(d("49.98")))
}

func TestGenerateNumberIsUniquePerCall(t *testing.T) {
	pattern := regexp.MustCompile(`^PO-\d{8}-[0-9A-F]{12}$`)
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		number := generateNumber("PO")
		require.Regexp(t, pattern, number)
		_, dup := seen[number]
		require.False(t, dup, number)
		seen[number] = struct{}{}
	}
}
